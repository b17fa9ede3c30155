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

package kvrouter_test

import (
	"context"
	"testing"

	"github.com/ekjotsingh/kvrouter/config"
	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/ekjotsingh/kvrouter/internal/mock"
	"github.com/ekjotsingh/kvrouter/kvrouter"
	"github.com/stretchr/testify/require"
)

func testPairs() []kvrpc.KVPair {
	return []kvrpc.KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("z"), Value: []byte("3")},
	}
}

func newTestClient(t *testing.T, numStores int) (*kvrouter.Client, *mock.Cluster) {
	t.Helper()
	cluster := mock.NewCluster()
	cluster.Bootstrap(numStores)
	c := kvrouter.NewClient(context.Background(), 1, cluster, mock.NewTransport(cluster), config.DefaultConfig(), nil)
	t.Cleanup(func() { _ = c.Close() })
	return c, cluster
}

// TestSingleKeyRoundTrip exercises the single-key path end to end.
func TestSingleKeyRoundTrip(t *testing.T) {
	c, _ := newTestClient(t, 1)
	ctx := context.Background()

	require.True(t, c.Put(ctx, []byte("k"), []byte("v1")).IsOK())
	v, st := c.Get(ctx, []byte("k"))
	require.True(t, st.IsOK())
	require.Equal(t, []byte("v1"), v)

	applied, st := c.PutIfAbsent(ctx, []byte("k"), []byte("v2"))
	require.True(t, st.IsOK())
	require.False(t, applied)

	applied, st = c.CompareAndSet(ctx, []byte("k"), []byte("v1"), []byte("v3"))
	require.True(t, st.IsOK())
	require.True(t, applied)

	require.True(t, c.Delete(ctx, []byte("k")).IsOK())
	_, st = c.Get(ctx, []byte("k"))
	require.False(t, st.IsOK())
}

// TestBatchAndDeleteRangeThroughClient exercises the Orchestrator
// wiring reachable from the public Client, including recovery from a
// cache staled by a Split between the warm-up BatchPut and the
// DeleteRange call that follows it.
func TestBatchAndDeleteRangeThroughClient(t *testing.T) {
	c, cluster := newTestClient(t, 1)
	ctx := context.Background()

	require.True(t, c.BatchPut(ctx, testPairs()).IsOK())
	cluster.Split([]byte("m"))

	n, st := c.DeleteRange(ctx, []byte("a"), []byte("z"), true, false)
	require.True(t, st.IsOK())
	require.Equal(t, uint64(2), n)
}

// TestScanThroughClient exercises Scan end to end through the public
// Client.
func TestScanThroughClient(t *testing.T) {
	c, _ := newTestClient(t, 1)
	ctx := context.Background()
	require.True(t, c.BatchPut(ctx, testPairs()).IsOK())

	scanner, st := c.Scan(ctx, []byte("a"), nil, 10)
	require.True(t, st.IsOK())
	var keys [][]byte
	for scanner.Valid() {
		keys = append(keys, scanner.Key())
		require.True(t, scanner.Next(ctx).IsOK())
	}
	require.Len(t, keys, 3)
}
