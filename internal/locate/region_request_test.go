// Copyright 2025 Ekjot Singh
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package locate_test

import (
	"context"
	"testing"
	"time"

	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/ekjotsingh/kvrouter/internal/locate"
	"github.com/ekjotsingh/kvrouter/internal/mock"
	"github.com/ekjotsingh/kvrouter/internal/retry"
	"github.com/stretchr/testify/require"
)

// TestSendReqFollowsLeaderChange mirrors the teacher's TestUpdateLeader
// expectations at the RpcController layer: a stale leader in the cache
// gets a NotLeader reply, updates to the reported leader, and the
// retried attempt succeeds.
func TestSendReqFollowsLeaderChange(t *testing.T) {
	cluster := mock.NewCluster()
	regionID, _ := cluster.Bootstrap(3)
	cache := locate.NewRegionCache(cluster, 0)
	sender := locate.NewRegionRequestSender(cache, mock.NewTransport(cluster), 5)

	r := cache.GetRegionByID(regionID)
	require.Nil(t, r)
	r, st := cache.LookupRegionByKey(context.Background(), []byte("k"))
	require.True(t, st.IsOK())

	cluster.TransferLeader(regionID, r.Replicas()[2].StoreID)

	bo := retry.NewBackoffer(context.Background(), 2000)
	call := &kvrpc.PutCall{Key: []byte("k"), Value: []byte("v")}
	st = sender.SendReq(bo, call, regionID, time.Second)
	require.True(t, st.IsOK())
}

// TestSendReqInvalidatesOnEpochMismatch exercises the EpochNotMatch
// branch: a split bumps the region's epoch out from under a cached
// lookup, so the stale attempt must fail with a non-retryable status
// and the cache entry must be gone afterwards.
func TestSendReqInvalidatesOnEpochMismatch(t *testing.T) {
	cluster := mock.NewCluster()
	regionID, _ := cluster.Bootstrap(1)
	cache := locate.NewRegionCache(cluster, 0)
	sender := locate.NewRegionRequestSender(cache, mock.NewTransport(cluster), 5)

	_, st := cache.LookupRegionByKey(context.Background(), []byte("k"))
	require.True(t, st.IsOK())

	cluster.Split([]byte("m"))

	bo := retry.NewBackoffer(context.Background(), 2000)
	call := &kvrpc.PutCall{Key: []byte("k"), Value: []byte("v")}
	st = sender.SendReq(bo, call, regionID, time.Second)
	require.False(t, st.IsOK())
	require.Nil(t, cache.GetRegionByID(regionID))
}
