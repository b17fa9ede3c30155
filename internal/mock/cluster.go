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

// Package mock is a small in-memory stand-in for a coordinator and its
// stores, playing the role the teacher's store/mockstore/mocktikv plays
// in region_cache_test.go. That package isn't vendored here, so this
// one is built locally in the same spirit: just enough topology and KV
// state to drive the MetaCache, RpcController and Orchestrator through
// their retry and staleness paths without a real network. Topology is
// kept in kvproto's own metapb.Region/metapb.Peer/metapb.RegionEpoch
// shapes rather than a bespoke struct, so this double exercises the
// same wire types a real PD client would decode.
package mock

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/ekjotsingh/kvrouter/region"
	"github.com/pingcap/errors"
	"github.com/pingcap/kvproto/pkg/metapb"
)

// regionState pairs a metapb.Region with the leader index this cluster
// double tracks out of band (real PD doesn't track leadership, the
// region's own Raft group does; this mock stands in for both).
type regionState struct {
	meta      *metapb.Region
	leaderIdx int32
}

func (rs *regionState) epoch() region.Epoch {
	return region.Epoch{ConfVer: rs.meta.RegionEpoch.ConfVer, Version: rs.meta.RegionEpoch.Version}
}

func (rs *regionState) replicas(stores map[uint64]*metapb.Store) []region.Endpoint {
	out := make([]region.Endpoint, len(rs.meta.Peers))
	for i, p := range rs.meta.Peers {
		out[i] = region.Endpoint{StoreID: p.StoreId, Addr: stores[p.StoreId].Address}
	}
	return out
}

func (rs *regionState) snapshot(stores map[uint64]*metapb.Store) *region.Region {
	return region.NewRegion(rs.meta.Id, rs.meta.StartKey, rs.meta.EndKey, rs.epoch(), rs.replicas(stores), rs.leaderIdx)
}

// Cluster is an in-memory topology plus a flat key/value store shared
// by every region. It is the test double for both the coordinator
// (Cluster itself implements locate.CoordinatorClient) and the store
// fleet (via Transport). stores resolves a metapb.Peer's StoreId to its
// dial address, mirroring how a real client resolves a Region's Peers
// through a separate GetStore call rather than an address embedded in
// the peer itself.
type Cluster struct {
	mu           sync.Mutex
	regions      []*regionState // kept sorted by startKey
	stores       map[uint64]*metapb.Store
	data         map[string][]byte
	nextRegionID uint64
	nextStoreID  uint64
}

// NewCluster returns an empty cluster with no regions.
func NewCluster() *Cluster {
	return &Cluster{data: make(map[string][]byte), stores: make(map[uint64]*metapb.Store)}
}

// Bootstrap creates a single region spanning the whole keyspace,
// replicated across numStores stores, with the first store as leader.
func (c *Cluster) Bootstrap(numStores int) (regionID uint64, storeIDs []uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	peers := make([]*metapb.Peer, numStores)
	for i := 0; i < numStores; i++ {
		c.nextStoreID++
		sid := c.nextStoreID
		storeIDs = append(storeIDs, sid)
		c.stores[sid] = &metapb.Store{Id: sid, Address: storeAddr(sid)}
		peers[i] = &metapb.Peer{Id: sid, StoreId: sid}
	}
	c.nextRegionID++
	rs := &regionState{
		meta: &metapb.Region{
			Id:          c.nextRegionID,
			StartKey:    nil,
			EndKey:      nil,
			RegionEpoch: &metapb.RegionEpoch{ConfVer: 1, Version: 1},
			Peers:       peers,
		},
		leaderIdx: 0,
	}
	c.regions = []*regionState{rs}
	return rs.meta.Id, storeIDs
}

func storeAddr(storeID uint64) string {
	return "mock-store-" + strconv.FormatUint(storeID, 10)
}

// Split breaks the region containing key into two at key, bumping
// Version on both halves (conf_ver unchanged, replicas copied).
func (c *Cluster) Split(key []byte) (leftID, rightID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.findLocked(key)
	rs := c.regions[idx]
	if bytes.Equal(rs.meta.StartKey, key) {
		return rs.meta.Id, rs.meta.Id // splitting exactly at the start is a no-op
	}

	c.nextRegionID++
	rightPeers := make([]*metapb.Peer, len(rs.meta.Peers))
	copy(rightPeers, rs.meta.Peers)
	right := &regionState{
		meta: &metapb.Region{
			Id:          c.nextRegionID,
			StartKey:    append([]byte(nil), key...),
			EndKey:      rs.meta.EndKey,
			RegionEpoch: &metapb.RegionEpoch{ConfVer: rs.meta.RegionEpoch.ConfVer, Version: rs.meta.RegionEpoch.Version + 1},
			Peers:       rightPeers,
		},
		leaderIdx: rs.leaderIdx,
	}
	rs.meta.EndKey = append([]byte(nil), key...)
	rs.meta.RegionEpoch = &metapb.RegionEpoch{ConfVer: rs.meta.RegionEpoch.ConfVer, Version: rs.meta.RegionEpoch.Version + 1}

	c.regions = append(c.regions, right)
	sort.Slice(c.regions, func(i, j int) bool {
		return bytes.Compare(c.regions[i].meta.StartKey, c.regions[j].meta.StartKey) < 0
	})
	return rs.meta.Id, right.meta.Id
}

// TransferLeader switches regionID's leader to storeID. The epoch is
// left unchanged (the replica set is the same), so callers still
// addressing the old leader see NotLeader with the new leader's hint.
func (c *Cluster) TransferLeader(regionID uint64, storeID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs := c.findByIDLocked(regionID)
	if rs == nil {
		return
	}
	for i, p := range rs.meta.Peers {
		if p.StoreId == storeID {
			rs.leaderIdx = int32(i)
			return
		}
	}
}

// findLocked returns the index of the region containing key; caller
// holds c.mu.
func (c *Cluster) findLocked(key []byte) int {
	i := sort.Search(len(c.regions), func(i int) bool {
		return bytes.Compare(c.regions[i].meta.StartKey, key) > 0
	})
	return i - 1
}

func (c *Cluster) findByIDLocked(id uint64) *regionState {
	for _, rs := range c.regions {
		if rs.meta.Id == id {
			return rs
		}
	}
	return nil
}

// ScanRegions implements locate.CoordinatorClient: it returns the
// region whose range contains key (always called here with limit=1,
// so only the first match is returned).
func (c *Cluster) ScanRegions(ctx context.Context, key, endKey []byte, limit int) ([]*region.Region, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.findLocked(key)
	if idx < 0 || idx >= len(c.regions) {
		return nil, errors.New("mock: no region covers key")
	}
	var out []*region.Region
	for i := idx; i < len(c.regions) && len(out) < limit; i++ {
		out = append(out, c.regions[i].snapshot(c.stores))
	}
	return out, nil
}

// RegionByID exposes a region's current snapshot for assertions in
// tests (e.g. "fetch R0's epoch after a split").
func (c *Cluster) RegionByID(id uint64) *region.Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs := c.findByIDLocked(id)
	if rs == nil {
		return nil
	}
	return rs.snapshot(c.stores)
}
