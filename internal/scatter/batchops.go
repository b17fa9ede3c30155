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

package scatter

import (
	"context"

	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/ekjotsingh/kvrouter/internal/retry"
	"github.com/ekjotsingh/kvrouter/status"
)

// BatchGet fans a multi-key read out to every region it touches;
// missing keys are simply omitted from the returned KVPairs rather
// than reported as per-key failures.
func (o *Orchestrator) BatchGet(ctx context.Context, keys [][]byte) ([]kvrpc.KVPair, status.Status) {
	bo := retry.NewBackoffer(ctx, int(o.totalDeadline.Milliseconds()))
	var batches []*subBatch
	st := o.runWithRetry(bo, "BatchGet", func() ([]*subBatch, status.Status) {
		groups, gst := partitionByRegion(ctx, o.cache, keys)
		if !gst.IsOK() {
			return nil, gst
		}
		batches = make([]*subBatch, len(groups))
		for i, g := range groups {
			groupKeys := make([][]byte, len(g.indices))
			for j, idx := range g.indices {
				groupKeys[j] = keys[idx]
			}
			batches[i] = &subBatch{region: g.region, call: &kvrpc.BatchGetCall{Keys: groupKeys}}
		}
		return batches, status.OK
	})
	if !st.IsOK() {
		return nil, st
	}
	var out []kvrpc.KVPair
	for _, b := range batches {
		out = append(out, b.call.(*kvrpc.BatchGetCall).Results...)
	}
	return out, st
}

// BatchPut writes every pair, atomic per region only; a multi-region
// batch is not atomic as a whole.
func (o *Orchestrator) BatchPut(ctx context.Context, pairs []kvrpc.KVPair) status.Status {
	keys := make([][]byte, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	bo := retry.NewBackoffer(ctx, int(o.totalDeadline.Milliseconds()))
	return o.runWithRetry(bo, "BatchPut", func() ([]*subBatch, status.Status) {
		groups, gst := partitionByRegion(ctx, o.cache, keys)
		if !gst.IsOK() {
			return nil, gst
		}
		batches := make([]*subBatch, len(groups))
		for i, g := range groups {
			groupPairs := make([]kvrpc.KVPair, len(g.indices))
			for j, idx := range g.indices {
				groupPairs[j] = pairs[idx]
			}
			batches[i] = &subBatch{region: g.region, call: &kvrpc.BatchPutCall{Pairs: groupPairs}}
		}
		return batches, status.OK
	})
}

// BatchPutIfAbsent writes each pair only if its key is absent. atomic
// requests per-region atomicity of the conditional write; it has no
// effect across regions.
func (o *Orchestrator) BatchPutIfAbsent(ctx context.Context, pairs []kvrpc.KVPair, atomic bool) ([]kvrpc.KeyOpState, status.Status) {
	keys := make([][]byte, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	bo := retry.NewBackoffer(ctx, int(o.totalDeadline.Milliseconds()))
	var batches []*subBatch
	st := o.runWithRetry(bo, "BatchPutIfAbsent", func() ([]*subBatch, status.Status) {
		groups, gst := partitionByRegion(ctx, o.cache, keys)
		if !gst.IsOK() {
			return nil, gst
		}
		batches = make([]*subBatch, len(groups))
		for i, g := range groups {
			groupPairs := make([]kvrpc.KVPair, len(g.indices))
			for j, idx := range g.indices {
				groupPairs[j] = pairs[idx]
			}
			batches[i] = &subBatch{region: g.region, call: &kvrpc.BatchPutIfAbsentCall{Pairs: groupPairs, IsAtomic: atomic}}
		}
		return batches, status.OK
	})
	if !st.IsOK() {
		return nil, st
	}
	var out []kvrpc.KeyOpState
	for _, b := range batches {
		out = append(out, b.call.(*kvrpc.BatchPutIfAbsentCall).States...)
	}
	return out, st
}

// BatchDelete removes every key, routed per-region.
func (o *Orchestrator) BatchDelete(ctx context.Context, keys [][]byte) status.Status {
	bo := retry.NewBackoffer(ctx, int(o.totalDeadline.Milliseconds()))
	return o.runWithRetry(bo, "BatchDelete", func() ([]*subBatch, status.Status) {
		groups, gst := partitionByRegion(ctx, o.cache, keys)
		if !gst.IsOK() {
			return nil, gst
		}
		batches := make([]*subBatch, len(groups))
		for i, g := range groups {
			groupKeys := make([][]byte, len(g.indices))
			for j, idx := range g.indices {
				groupKeys[j] = keys[idx]
			}
			batches[i] = &subBatch{region: g.region, call: &kvrpc.BatchDeleteCall{Keys: groupKeys}}
		}
		return batches, status.OK
	})
}

// BatchCompareAndSet performs a conditional write per key: pairs[i]'s
// value is written only if the key's current value equals
// expected[i] (nil meaning "must not currently exist"). pairs and
// expected must be the same length; a mismatch is rejected with
// InvalidArgument before any region is contacted, since there is no
// reasonable interpretation of extra or missing entries.
func (o *Orchestrator) BatchCompareAndSet(ctx context.Context, pairs []kvrpc.KVPair, expected [][]byte) ([]kvrpc.KeyOpState, status.Status) {
	if len(pairs) != len(expected) {
		return nil, status.InvalidArgumentStatus("pairs and expected must be the same length")
	}
	keys := make([][]byte, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	bo := retry.NewBackoffer(ctx, int(o.totalDeadline.Milliseconds()))
	var batches []*subBatch
	st := o.runWithRetry(bo, "BatchCompareAndSet", func() ([]*subBatch, status.Status) {
		groups, gst := partitionByRegion(ctx, o.cache, keys)
		if !gst.IsOK() {
			return nil, gst
		}
		batches = make([]*subBatch, len(groups))
		for i, g := range groups {
			groupPairs := make([]kvrpc.KVPair, len(g.indices))
			groupExpected := make([][]byte, len(g.indices))
			for j, idx := range g.indices {
				groupPairs[j] = pairs[idx]
				groupExpected[j] = expected[idx]
			}
			batches[i] = &subBatch{region: g.region, call: &kvrpc.BatchCompareAndSetCall{Pairs: groupPairs, Expected: groupExpected}}
		}
		return batches, status.OK
	})
	if !st.IsOK() {
		return nil, st
	}
	var out []kvrpc.KeyOpState
	for _, b := range batches {
		out = append(out, b.call.(*kvrpc.BatchCompareAndSetCall).States...)
	}
	return out, st
}
