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

package locate

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/ekjotsingh/kvrouter/internal/logutil"
	"github.com/ekjotsingh/kvrouter/metrics"
	"github.com/ekjotsingh/kvrouter/region"
	"github.com/ekjotsingh/kvrouter/status"
	"github.com/google/btree"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// btreeDegree is the branching factor of the ordered index; the
// teacher's region_cache_test.go exercises the same google/btree
// package over region start keys.
const btreeDegree = 32

// btreeItem is the element stored in the ordered index, keyed by the
// region's start key so that a predecessor search on any key finds
// the region whose range might contain it.
type btreeItem struct {
	startKey []byte
	cached   *region.Region
}

func (it *btreeItem) Less(other btree.Item) bool {
	return bytes.Compare(it.startKey, other.(*btreeItem).startKey) < 0
}

// RegionCache is the MetaCache: an ordered, in-memory index from
// start-key to Region, refreshed from a CoordinatorClient on miss or
// on staleness feedback from the RpcController.
type RegionCache struct {
	coordinator CoordinatorClient
	ttl         time.Duration

	mu struct {
		sync.RWMutex
		sorted  *btree.BTree
		byID    map[uint64]*region.Region
		lastHit map[uint64]int64 // region id -> unix seconds, for TTL eviction
	}

	// refreshGroup deduplicates concurrent cache-miss refreshes. It is
	// keyed by a coarse bucket of the missing key (see bucketKey)
	// rather than the exact key, so that concurrent lookups of
	// distinct keys landing in the same unknown region coalesce onto
	// one ScanRegions call.
	refreshGroup singleflight.Group
}

// NewRegionCache constructs an empty cache backed by coordinator.
func NewRegionCache(coordinator CoordinatorClient, ttl time.Duration) *RegionCache {
	c := &RegionCache{coordinator: coordinator, ttl: ttl}
	c.mu.sorted = btree.New(btreeDegree)
	c.mu.byID = make(map[uint64]*region.Region)
	c.mu.lastHit = make(map[uint64]int64)
	return c
}

// bucketPrefixLen is how many leading key bytes are used to coalesce
// concurrent refreshes of unrelated-looking keys that nonetheless fall
// in the same not-yet-cached region. A coarser bucket coalesces more
// aggressively at the cost of occasionally serializing lookups that
// turn out to resolve to different regions (they simply re-check the
// now-warm cache after the leader's scan completes and, on a genuine
// miss, issue their own follow-up scan).
const bucketPrefixLen = 1

func bucketKey(key []byte) string {
	if len(key) <= bucketPrefixLen {
		return string(key)
	}
	return string(key[:bucketPrefixLen])
}

// LookupRegionByKey returns the region that owns key, refreshing from
// the coordinator on a cache miss.
func (c *RegionCache) LookupRegionByKey(ctx context.Context, key []byte) (*region.Region, status.Status) {
	if r := c.searchCachedRegion(key); r != nil {
		metrics.CacheCounter.WithLabelValues("hit").Inc()
		return r, status.OK
	}
	metrics.CacheCounter.WithLabelValues("miss").Inc()
	return c.refreshForKey(ctx, key)
}

// LocateEndKey is LookupRegionByKey's counterpart for reverse/boundary
// lookups: it returns the region whose range contains key when key is
// treated as an exclusive end rather than an inclusive start.
func (c *RegionCache) LocateEndKey(ctx context.Context, key []byte) (*region.Region, status.Status) {
	c.mu.RLock()
	var found *region.Region
	// A key as an end boundary belongs to the region whose range is
	// (startKey, endKey] when walking backwards, i.e. the last region
	// whose startKey < key and (endKey == "" || endKey >= key).
	c.mu.sorted.DescendLessOrEqual(&btreeItem{startKey: key}, func(item btree.Item) bool {
		r := item.(*btreeItem).cached
		if bytes.Compare(r.StartKey(), key) < 0 || len(key) == 0 {
			if len(r.EndKey()) == 0 || bytes.Compare(key, r.EndKey()) <= 0 {
				found = r
			}
		}
		return false
	})
	c.mu.RUnlock()
	if found != nil && c.checkTTL(found) {
		return found, status.OK
	}
	return c.refreshForKey(ctx, key)
}

func (c *RegionCache) refreshForKey(ctx context.Context, key []byte) (*region.Region, status.Status) {
	v, err, _ := c.refreshGroup.Do(bucketKey(key), func() (interface{}, error) {
		regions, scanErr := c.coordinator.ScanRegions(ctx, key, nextKey(key), 1)
		if scanErr != nil {
			return nil, scanErr
		}
		if len(regions) == 0 {
			return nil, errNoRegion
		}
		r := regions[0]
		c.insertRegion(r)
		return r, nil
	})
	if err != nil {
		if err == errNoRegion {
			return nil, status.RegionNotFoundStatus("no region covers key")
		}
		metrics.CacheCounter.WithLabelValues("refresh_error").Inc()
		return nil, status.NetworkStatus(err)
	}
	r := v.(*region.Region)
	if !r.Contains(key) {
		// The single-flight leader resolved a different key's region;
		// re-check the (now presumably warmer) cache for our own key,
		// falling back to a direct, uncoalesced scan.
		if cached := c.searchCachedRegion(key); cached != nil {
			return cached, status.OK
		}
		regions, scanErr := c.coordinator.ScanRegions(ctx, key, nextKey(key), 1)
		if scanErr != nil {
			return nil, status.NetworkStatus(scanErr)
		}
		if len(regions) == 0 {
			return nil, status.RegionNotFoundStatus("no region covers key")
		}
		c.insertRegion(regions[0])
		return regions[0], status.OK
	}
	return r, status.OK
}

var errNoRegion = errors.New("coordinator returned no region")

// nextKey returns key with a single 0x00 byte appended, used to make
// ScanRegions' upper bound exclusive-of-key-inclusive: ScanRegions(key,
// key⊕0x00, limit=1) finds the one region owning key.
func nextKey(key []byte) []byte {
	out := make([]byte, len(key)+1)
	copy(out, key)
	return out
}

// searchCachedRegion does a predecessor search plus containment check
// under a read lock, honoring TTL.
func (c *RegionCache) searchCachedRegion(key []byte) *region.Region {
	c.mu.RLock()
	var found *region.Region
	c.mu.sorted.DescendLessOrEqual(&btreeItem{startKey: key}, func(item btree.Item) bool {
		r := item.(*btreeItem).cached
		if r.Contains(key) {
			found = r
		}
		return false
	})
	c.mu.RUnlock()
	if found != nil && c.checkTTL(found) {
		return found
	}
	return nil
}

func (c *RegionCache) checkTTL(r *region.Region) bool {
	if c.ttl <= 0 {
		return true
	}
	c.mu.RLock()
	last, ok := c.mu.lastHit[r.ID()]
	c.mu.RUnlock()
	if !ok {
		return true
	}
	return time.Since(time.Unix(last, 0)) < c.ttl
}

// insertRegion installs r unconditionally, replacing anything it
// overlaps. Used by the miss-refresh path.
func (c *RegionCache) insertRegion(r *region.Region) {
	c.mu.Lock()
	c.evictOverlappingLocked(r.StartKey(), r.EndKey())
	c.mu.sorted.ReplaceOrInsert(&btreeItem{startKey: r.StartKey(), cached: r})
	c.mu.byID[r.ID()] = r
	c.mu.lastHit[r.ID()] = time.Now().Unix()
	c.mu.Unlock()
}

func (c *RegionCache) evictOverlappingLocked(startKey, endKey []byte) {
	var toDelete []*btreeItem
	c.mu.sorted.Ascend(func(item btree.Item) bool {
		it := item.(*btreeItem)
		if it.cached.Overlaps(startKey, endKey) {
			toDelete = append(toDelete, it)
		}
		return true
	})
	for _, it := range toDelete {
		c.mu.sorted.Delete(it)
		delete(c.mu.byID, it.cached.ID())
		delete(c.mu.lastHit, it.cached.ID())
	}
}

// OverlapInstall atomically replaces any cached region overlapping
// r's range, but only if r's epoch is strictly greater than the
// region(s) it would replace. Regions with no cached overlap are
// always installed.
func (c *RegionCache) OverlapInstall(r *region.Region) {
	c.mu.Lock()
	shouldInstall := true
	c.mu.sorted.Ascend(func(item btree.Item) bool {
		it := item.(*btreeItem)
		if it.cached.Overlaps(r.StartKey(), r.EndKey()) && !r.Epoch().GreaterThan(it.cached.Epoch()) {
			shouldInstall = false
			return false
		}
		return true
	})
	if shouldInstall {
		c.evictOverlappingLocked(r.StartKey(), r.EndKey())
		c.mu.sorted.ReplaceOrInsert(&btreeItem{startKey: r.StartKey(), cached: r})
		c.mu.byID[r.ID()] = r
		c.mu.lastHit[r.ID()] = time.Now().Unix()
	}
	c.mu.Unlock()
}

// InvalidateRegion evicts the cached entry for regionID if its cached
// epoch is no newer than observed, so that the next lookup forces a
// refresh. Called by the RpcController on RegionNotFound/EpochMismatch
// feedback.
func (c *RegionCache) InvalidateRegion(regionID uint64, observed region.Epoch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.mu.byID[regionID]
	if !ok {
		return
	}
	if r.Epoch().GreaterThan(observed) {
		return
	}
	c.mu.sorted.Delete(&btreeItem{startKey: r.StartKey()})
	delete(c.mu.byID, regionID)
	delete(c.mu.lastHit, regionID)
	logInvalidate(context.Background(), regionID, "stale epoch feedback")
}

// GetRegionByID returns the currently cached snapshot for regionID, or
// nil if it is not (or no longer) cached.
func (c *RegionCache) GetRegionByID(regionID uint64) *region.Region {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mu.byID[regionID]
}

// UpdateLeader records that storeID is (or should be tried as) the
// leader of regionID, switching the cached snapshot's leader index.
// If storeID is not among the region's known replicas, the cached
// entry is dropped instead so the next lookup reloads full topology
// from the coordinator (mirrors the teacher's TestUpdateLeader2).
func (c *RegionCache) UpdateLeader(regionID uint64, storeID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.mu.byID[regionID]
	if !ok {
		return
	}
	idx := int32(-1)
	for i, ep := range r.Replicas() {
		if ep.StoreID == storeID {
			idx = int32(i)
			break
		}
	}
	if idx < 0 {
		c.mu.sorted.Delete(&btreeItem{startKey: r.StartKey()})
		delete(c.mu.byID, regionID)
		delete(c.mu.lastHit, regionID)
		logInvalidate(context.Background(), regionID, "reported leader store not in cached replica set")
		return
	}
	updated := r.WithLeader(idx)
	c.mu.sorted.ReplaceOrInsert(&btreeItem{startKey: updated.StartKey(), cached: updated})
	c.mu.byID[regionID] = updated
}

// ListRegionIDsInKeyRange returns, in start-key order, the ids of all
// cached regions intersecting [start, end), refreshing first if the
// range is not fully covered by the cache. A diagnostic helper; the
// DeleteRange walker keeps its own visited set instead.
func (c *RegionCache) ListRegionIDsInKeyRange(ctx context.Context, start, end []byte) ([]uint64, status.Status) {
	key := start
	var ids []uint64
	for {
		r, st := c.LookupRegionByKey(ctx, key)
		if !st.IsOK() {
			return nil, st
		}
		ids = append(ids, r.ID())
		if len(r.EndKey()) == 0 {
			break
		}
		if len(end) > 0 && bytes.Compare(r.EndKey(), end) >= 0 {
			break
		}
		key = r.EndKey()
	}
	return ids, status.OK
}

// Close releases resources held by the cache. No-op today but kept as
// a stable extension point (matching the teacher's RegionCache.Close).
func (c *RegionCache) Close() {}

// logInvalidate is a small helper so call sites log consistently; kept
// here rather than duplicated at every InvalidateRegion caller.
func logInvalidate(ctx context.Context, regionID uint64, reason string) {
	logutil.Logger(ctx).Warn("invalidating cached region",
		zap.Uint64("regionID", regionID), zap.String("reason", reason))
}
