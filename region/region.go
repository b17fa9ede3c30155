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

// Package region holds the passive topology model shared by the
// MetaCache, the RpcController and the Orchestrator: a Region is a
// contiguous key range with an ordered list of replicas, a leader
// hint, and a monotonically increasing Epoch.
package region

import "bytes"

// Epoch identifies a region's topology generation. It increases on
// replica membership change (ConfVer) and on split/merge (Version).
type Epoch struct {
	ConfVer uint64
	Version uint64
}

// GreaterThan reports whether e supersedes other, per spec: a higher
// epoch always wins, comparing ConfVer first, then Version.
func (e Epoch) GreaterThan(other Epoch) bool {
	if e.ConfVer != other.ConfVer {
		return e.ConfVer > other.ConfVer
	}
	return e.Version > other.Version
}

// Endpoint is a replica's network address within a store.
type Endpoint struct {
	StoreID uint64
	Addr    string
}

// VerID uniquely identifies one version of a region: the region id
// paired with its epoch. Two Regions with the same id but different
// VerID are different snapshots of the same shard's history.
type VerID struct {
	ID      uint64
	Epoch   Epoch
}

// Region is an immutable snapshot of one shard of the keyspace.
// Instances are never mutated after construction; updates publish a
// new *Region and swap the cache's pointer to it (see internal/locate).
type Region struct {
	id         uint64
	startKey   []byte
	endKey     []byte
	epoch      Epoch
	replicas   []Endpoint
	leaderIdx  int32 // index into replicas; may be stale or -1 if unknown
	lastAccess int64 // unix seconds; not read here, RegionCache keeps TTL times in its own map
}

// NewRegion constructs a Region snapshot. leaderIdx may be -1 if the
// leader is not yet known.
func NewRegion(id uint64, startKey, endKey []byte, epoch Epoch, replicas []Endpoint, leaderIdx int32) *Region {
	r := &Region{
		id:        id,
		startKey:  append([]byte(nil), startKey...),
		endKey:    append([]byte(nil), endKey...),
		epoch:     epoch,
		replicas:  append([]Endpoint(nil), replicas...),
		leaderIdx: leaderIdx,
	}
	return r
}

// ID returns the region's stable identifier.
func (r *Region) ID() uint64 { return r.id }

// StartKey returns the inclusive start of the region's range.
func (r *Region) StartKey() []byte { return r.startKey }

// EndKey returns the exclusive end of the region's range. An empty
// slice means unbounded.
func (r *Region) EndKey() []byte { return r.endKey }

// Epoch returns the region's topology generation.
func (r *Region) Epoch() Epoch { return r.epoch }

// Replicas returns the ordered replica set. Callers must not mutate
// the returned slice.
func (r *Region) Replicas() []Endpoint { return r.replicas }

// VerID returns the (id, epoch) pair identifying this exact snapshot.
func (r *Region) VerID() VerID { return VerID{ID: r.id, Epoch: r.epoch} }

// Leader returns the replica currently believed to be the leader, and
// true if a leader hint is present. The hint may be stale.
func (r *Region) Leader() (Endpoint, bool) {
	if r.leaderIdx < 0 || int(r.leaderIdx) >= len(r.replicas) {
		return Endpoint{}, false
	}
	return r.replicas[r.leaderIdx], true
}

// LeaderIndex returns the raw leader index, or -1 if unknown.
func (r *Region) LeaderIndex() int32 { return r.leaderIdx }

// WithLeader returns a new Region snapshot with the leader switched to
// the replica at idx. The receiver is left unmodified (Regions are
// immutable once published).
func (r *Region) WithLeader(idx int32) *Region {
	clone := *r
	clone.leaderIdx = idx
	return &clone
}

// Contains reports whether key falls within [startKey, endKey).
func (r *Region) Contains(key []byte) bool {
	return bytes.Compare(r.startKey, key) <= 0 &&
		(len(r.endKey) == 0 || bytes.Compare(key, r.endKey) < 0)
}

// Overlaps reports whether r's range intersects [startKey, endKey).
func (r *Region) Overlaps(startKey, endKey []byte) bool {
	if len(endKey) != 0 && bytes.Compare(r.startKey, endKey) >= 0 {
		return false
	}
	if len(r.endKey) != 0 && bytes.Compare(startKey, r.endKey) >= 0 {
		return false
	}
	return true
}
