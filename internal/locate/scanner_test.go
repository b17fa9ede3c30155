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

// TestScannerCrossesRegions walks a range split across two regions and
// must return every key in order regardless of the boundary, matching
// the teacher's Scanner crossing-region behavior.
func TestScannerCrossesRegions(t *testing.T) {
	cluster := mock.NewCluster()
	cluster.Bootstrap(1)
	cache := locate.NewRegionCache(cluster, 0)
	sender := locate.NewRegionRequestSender(cache, mock.NewTransport(cluster), 5)

	for _, k := range []string{"a", "b", "m", "n", "z"} {
		r, st := cache.LookupRegionByKey(context.Background(), []byte(k))
		require.True(t, st.IsOK())
		call := &kvrpc.PutCall{Key: []byte(k), Value: []byte(k)}
		st = sender.SendReq(retry.NewBackoffer(context.Background(), 2000), call, r.ID(), time.Second)
		require.True(t, st.IsOK())
	}
	cluster.Split([]byte("m"))

	scanner, st := locate.NewScanner(context.Background(), cache, sender, []byte("a"), []byte("z"), 2, false, time.Second)
	require.True(t, st.IsOK())

	var keys []string
	for scanner.Valid() {
		keys = append(keys, string(scanner.Key()))
		require.True(t, scanner.Next(context.Background()).IsOK())
	}
	require.Equal(t, []string{"a", "b", "m", "n"}, keys)
}
