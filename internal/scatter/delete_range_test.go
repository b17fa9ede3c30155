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

	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/stretchr/testify/require"
)

// TestDeleteRangeSingleRegion is the one-region base case: the walker
// emits a single sub-request and stops.
func TestDeleteRangeSingleRegion(t *testing.T) {
	orch, _ := newOrchestrator(t, 1)
	ctx := context.Background()
	require.True(t, orch.BatchPut(ctx, []kvrpc.KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("z"), Value: []byte("9")},
	}).IsOK())

	n, st := orch.DeleteRange(ctx, []byte("a"), []byte("c"), true, false)
	require.True(t, st.IsOK())
	require.Equal(t, uint64(2), n)

	got, st := orch.BatchGet(ctx, [][]byte{[]byte("a"), []byte("b"), []byte("z")})
	require.True(t, st.IsOK())
	require.Len(t, got, 1)
}

// TestDeleteRangeAcrossThreeRegions exercises the walker across three
// regions, including the "end == R.end_key" boundary case and its
// compensating point-delete when the overall range end is inclusive.
func TestDeleteRangeAcrossThreeRegions(t *testing.T) {
	orch, cluster := newOrchestrator(t, 1)
	ctx := context.Background()

	require.True(t, orch.BatchPut(ctx, []kvrpc.KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("m"), Value: []byte("2")},
		{Key: []byte("m1"), Value: []byte("3")},
		{Key: []byte("t"), Value: []byte("4")},
		{Key: []byte("z"), Value: []byte("5")},
	}).IsOK())

	cluster.Split([]byte("m"))
	cluster.Split([]byte("t"))

	// Delete [a, t] inclusive: the boundary at "t" coincides exactly
	// with the third region's start, so the walk ends in the second
	// region [m, t) and a compensating point delete removes "t" itself.
	n, st := orch.DeleteRange(ctx, []byte("a"), []byte("t"), true, true)
	require.True(t, st.IsOK())
	require.Equal(t, uint64(4), n) // "a", "m", "m1" interior, plus point-delete of "t"

	got, st := orch.BatchGet(ctx, [][]byte{[]byte("a"), []byte("m"), []byte("m1"), []byte("t"), []byte("z")})
	require.True(t, st.IsOK())
	require.Len(t, got, 1)
	require.Equal(t, []byte("z"), got[0].Key)
}

// TestDeleteRangeRejectsEmptyRange exercises the start < end
// precondition.
func TestDeleteRangeRejectsEmptyRange(t *testing.T) {
	orch, _ := newOrchestrator(t, 1)
	_, st := orch.DeleteRange(context.Background(), []byte("z"), []byte("a"), true, false)
	require.False(t, st.IsOK())
}
