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

package scatter_test

import (
	"context"
	"testing"
	"time"

	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/ekjotsingh/kvrouter/internal/locate"
	"github.com/ekjotsingh/kvrouter/internal/mock"
	"github.com/ekjotsingh/kvrouter/internal/scatter"
	"github.com/ekjotsingh/kvrouter/status"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(t *testing.T, numStores int) (*scatter.Orchestrator, *mock.Cluster) {
	t.Helper()
	cluster := mock.NewCluster()
	cluster.Bootstrap(numStores)
	cache := locate.NewRegionCache(cluster, 0)
	sender := locate.NewRegionRequestSender(cache, mock.NewTransport(cluster), 5)
	return scatter.NewOrchestrator(cache, sender, 8, time.Second, 10*time.Second), cluster
}

// TestBatchPutThenBatchGetSingleRegion exercises the fan-out/fan-in
// path when every key lands in one region.
func TestBatchPutThenBatchGetSingleRegion(t *testing.T) {
	orch, _ := newOrchestrator(t, 1)
	ctx := context.Background()

	pairs := []kvrpc.KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}
	st := orch.BatchPut(ctx, pairs)
	require.True(t, st.IsOK())

	got, st := orch.BatchGet(ctx, [][]byte{[]byte("a"), []byte("b"), []byte("missing"), []byte("c")})
	require.True(t, st.IsOK())
	require.Len(t, got, 3)
}

// TestBatchGetAcrossRegions exercises the partition phase's grouping
// when keys span multiple regions after a split. The BatchPut above
// warms the cache against the single pre-split region; the Split call
// that follows makes that cached entry stale, so BatchGet must recover
// by re-partitioning once the first sub-batch reports EpochMismatch.
func TestBatchGetAcrossRegions(t *testing.T) {
	orch, cluster := newOrchestrator(t, 1)
	ctx := context.Background()

	require.True(t, orch.BatchPut(ctx, []kvrpc.KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("z"), Value: []byte("2")},
	}).IsOK())

	cluster.Split([]byte("m"))

	got, st := orch.BatchGet(ctx, [][]byte{[]byte("a"), []byte("z")})
	require.True(t, st.IsOK())
	require.Len(t, got, 2)
}

// TestBatchPutIfAbsentReportsPerKeyOutcome exercises the per-key
// KeyOpState reduce step.
func TestBatchPutIfAbsentReportsPerKeyOutcome(t *testing.T) {
	orch, _ := newOrchestrator(t, 1)
	ctx := context.Background()

	require.True(t, orch.BatchPut(ctx, []kvrpc.KVPair{{Key: []byte("a"), Value: []byte("1")}}).IsOK())

	states, st := orch.BatchPutIfAbsent(ctx, []kvrpc.KVPair{
		{Key: []byte("a"), Value: []byte("2")},
		{Key: []byte("b"), Value: []byte("3")},
	}, false)
	require.True(t, st.IsOK())
	require.Len(t, states, 2)

	byKey := map[string]bool{}
	for _, s := range states {
		byKey[string(s.Key)] = s.Applied
	}
	require.False(t, byKey["a"])
	require.True(t, byKey["b"])
}

// TestBatchCompareAndSet exercises the CAS batch path end to end.
func TestBatchCompareAndSet(t *testing.T) {
	orch, _ := newOrchestrator(t, 1)
	ctx := context.Background()
	require.True(t, orch.BatchPut(ctx, []kvrpc.KVPair{{Key: []byte("a"), Value: []byte("1")}}).IsOK())

	states, st := orch.BatchCompareAndSet(ctx,
		[]kvrpc.KVPair{
			{Key: []byte("a"), Value: []byte("2")},
			{Key: []byte("a-missing"), Value: []byte("y")},
		},
		[][]byte{[]byte("1"), []byte("x")},
	)
	require.True(t, st.IsOK())
	require.True(t, states[0].Applied)
	require.False(t, states[1].Applied)
}

// TestBatchCompareAndSetRejectsLengthMismatch exercises the
// InvalidArgument guard: pairs/expected must line up one-to-one, and a
// caller that builds them from mismatched sources must be rejected
// before any region is contacted rather than silently truncated.
func TestBatchCompareAndSetRejectsLengthMismatch(t *testing.T) {
	orch, _ := newOrchestrator(t, 1)
	ctx := context.Background()

	_, st := orch.BatchCompareAndSet(ctx,
		[]kvrpc.KVPair{{Key: []byte("a"), Value: []byte("2")}},
		[][]byte{[]byte("1"), []byte("extra")},
	)
	require.False(t, st.IsOK())
	require.Equal(t, status.InvalidArgument, st.Code())
}
