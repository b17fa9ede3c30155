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

// Package scatter implements the Orchestrator: the batch scatter/gather
// layer that partitions a multi-key request by region, fans the
// per-region sub-batches out through a locate.RegionRequestSender, and
// merges their results. It is modeled on the teacher's rawkv.Client
// batch helpers (sendBatchReq/sendBatchPut), generalized from their
// hand-rolled goroutine+channel fan-out to golang.org/x/sync/errgroup
// under a bounded-parallelism semaphore.
package scatter

import (
	"context"

	"github.com/ekjotsingh/kvrouter/internal/locate"
	"github.com/ekjotsingh/kvrouter/region"
	"github.com/ekjotsingh/kvrouter/status"
)

// group is one region's share of a partitioned batch: the indices (into
// the caller's original input slice) that route to this region, and the
// Region snapshot they were routed against.
type group struct {
	regionID uint64
	region   *region.Region
	indices  []int
}

// partitionByRegion looks up every key and groups the resulting indices
// by region id, keeping a parallel region snapshot. The first lookup
// failure short-circuits and is returned as st; groups is nil in that
// case, since a partially-partitioned batch can't be dispatched
// meaningfully.
func partitionByRegion(ctx context.Context, cache *locate.RegionCache, keys [][]byte) (groups []*group, st status.Status) {
	byRegion := make(map[uint64]*group)
	order := make([]uint64, 0)
	for i, key := range keys {
		r, lookupSt := cache.LookupRegionByKey(ctx, key)
		if !lookupSt.IsOK() {
			return nil, lookupSt
		}
		g, ok := byRegion[r.ID()]
		if !ok {
			g = &group{regionID: r.ID(), region: r}
			byRegion[r.ID()] = g
			order = append(order, r.ID())
		}
		g.indices = append(g.indices, i)
	}
	groups = make([]*group, 0, len(order))
	for _, id := range order {
		groups = append(groups, byRegion[id])
	}
	return groups, status.OK
}
