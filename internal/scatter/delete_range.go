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
	"bytes"
	"context"

	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/ekjotsingh/kvrouter/internal/retry"
	"github.com/ekjotsingh/kvrouter/status"
)

// DeleteRange is the multi-region walker: it walks regions from start
// to end, emits one KvDeleteRange sub-request per region visited (every
// interior region boundary exclusive), dispatches them concurrently,
// and issues a compensating
// point Delete(end) when the user's inclusive end coincides with a
// region boundary.
func (o *Orchestrator) DeleteRange(ctx context.Context, start, end []byte, withStart, withEnd bool) (uint64, status.Status) {
	if len(start) == 0 || len(end) == 0 || bytes.Compare(start, end) >= 0 {
		return 0, status.IllegalStateStatus("DeleteRange requires non-empty start < end")
	}

	bo := retry.NewBackoffer(ctx, int(o.totalDeadline.Milliseconds()))
	var batches []*subBatch
	var deleteEndKey bool
	st := o.runWithRetry(bo, "KvDeleteRange", func() ([]*subBatch, status.Status) {
		walked, dek, wst := o.buildDeleteRangeWalk(ctx, start, end, withStart, withEnd)
		if !wst.IsOK() {
			return nil, wst
		}
		batches = walked
		deleteEndKey = dek
		return batches, status.OK
	})
	if !st.IsOK() {
		return 0, st
	}

	var deleteCount uint64
	for _, b := range batches {
		deleteCount += b.call.(*kvrpc.DeleteRangeCall).DeleteCount
	}

	if deleteEndKey {
		if ok, delSt := o.deletePoint(bo, end); ok {
			deleteCount++
		} else {
			st = delSt
		}
	}

	return deleteCount, st
}

// buildDeleteRangeWalk computes the per-region sub-batches for one
// walk of [start, end) against the cache's current view of topology.
// Re-run fresh on every runWithRetry iteration, so a mid-walk
// EpochMismatch/RegionNotFound re-derives the walk against whatever
// the coordinator now reports rather than patching up a stale plan.
func (o *Orchestrator) buildDeleteRangeWalk(ctx context.Context, start, end []byte, withStart, withEnd bool) (batches []*subBatch, deleteEndKey bool, st status.Status) {
	visited := make(map[uint64]bool)

	cur := start
	curWithStart := withStart
	for {
		r, lookupSt := o.cache.LookupRegionByKey(ctx, cur)
		if !lookupSt.IsOK() {
			return nil, false, lookupSt
		}
		if visited[r.ID()] {
			return nil, false, status.IllegalStateStatus("DeleteRange walker revisited a region")
		}
		visited[r.ID()] = true

		rEnd := r.EndKey()
		switch {
		case len(rEnd) == 0 || bytes.Compare(end, rEnd) < 0:
			// end < R.end_key (or R is the last, unbounded region).
			batches = append(batches, &subBatch{region: r, call: &kvrpc.DeleteRangeCall{
				StartKey: cur, EndKey: end, WithStart: curWithStart, WithEnd: withEnd,
			}})
			return batches, deleteEndKey, status.OK

		case bytes.Compare(end, rEnd) > 0:
			// end > R.end_key: this region's whole remaining range goes,
			// the walk continues into the next region.
			batches = append(batches, &subBatch{region: r, call: &kvrpc.DeleteRangeCall{
				StartKey: cur, EndKey: rEnd, WithStart: curWithStart, WithEnd: false,
			}})
			cur = rEnd
			curWithStart = true

		default:
			// end == R.end_key: the walk ends here; if the user wanted an
			// inclusive end, end itself belongs to the *next* region and
			// needs a compensating point delete.
			batches = append(batches, &subBatch{region: r, call: &kvrpc.DeleteRangeCall{
				StartKey: cur, EndKey: end, WithStart: curWithStart, WithEnd: false,
			}})
			if withEnd {
				deleteEndKey = true
			}
			return batches, deleteEndKey, status.OK
		}
	}
}

// deletePoint issues the compensating single-key delete for the
// inclusive-end boundary case, routing it through SendReqForKey so it
// re-resolves and retries the same way any other single-key call does.
func (o *Orchestrator) deletePoint(bo *retry.Backoffer, key []byte) (ok bool, st status.Status) {
	call := &kvrpc.DeleteCall{Key: key}
	childBo, cancel := bo.Fork()
	defer cancel()
	st = o.sender.SendReqForKey(childBo, call, key, o.callTimeout)
	return st.IsOK(), st
}
