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

package mock

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
)

// Transport implements locate.Transport directly against a Cluster,
// standing in for the real wire client the way mocktikv.NewRPCClient
// does for the teacher's tests.
type Transport struct {
	cluster *Cluster
}

// NewTransport builds a Transport serving cluster's regions.
func NewTransport(cluster *Cluster) *Transport {
	return &Transport{cluster: cluster}
}

// SendRequest validates call's RequestContext against the cluster's
// current view of the target region (leader, epoch) and, if it still
// holds, executes call in-place against the cluster's flat KV map.
func (t *Transport) SendRequest(ctx context.Context, addr string, call kvrpc.Call, timeout time.Duration) (*kvrpc.RegionError, error) {
	reqCtx := call.Context()

	t.cluster.mu.Lock()
	defer t.cluster.mu.Unlock()

	rs := t.cluster.findByIDLocked(reqCtx.RegionID)
	if rs == nil {
		return &kvrpc.RegionError{RegionNotFound: true}, nil
	}
	leaderPeer := rs.meta.Peers[rs.leaderIdx]
	leaderStore := t.cluster.stores[leaderPeer.StoreId]
	if leaderStore.Address != addr {
		hint := kvrpc.Endpoint{StoreID: leaderStore.Id, Addr: leaderStore.Address}
		return &kvrpc.RegionError{NotLeader: &hint}, nil
	}
	if reqCtx.Epoch != rs.epoch() {
		return &kvrpc.RegionError{EpochNotMatch: true}, nil
	}

	executeLocked(t.cluster.data, call)
	return nil, nil
}

// executeLocked applies call to data; the caller holds the cluster's
// lock for the duration. Each case mirrors one kvrpc.Call variant
// one-to-one, matching the closed tagged-variant contract of
// internal/kvrpc: no default fallthrough is expected to ever fire for
// a call type defined in this module.
func executeLocked(data map[string][]byte, call kvrpc.Call) {
	switch c := call.(type) {
	case *kvrpc.GetCall:
		v, ok := data[string(c.Key)]
		c.Value, c.Found = v, ok

	case *kvrpc.BatchGetCall:
		for _, k := range c.Keys {
			if v, ok := data[string(k)]; ok {
				c.Results = append(c.Results, kvrpc.KVPair{Key: k, Value: v})
			}
		}

	case *kvrpc.PutCall:
		data[string(c.Key)] = c.Value

	case *kvrpc.BatchPutCall:
		for _, p := range c.Pairs {
			data[string(p.Key)] = p.Value
		}

	case *kvrpc.PutIfAbsentCall:
		if _, exists := data[string(c.Key)]; !exists {
			data[string(c.Key)] = c.Value
			c.Applied = true
		}

	case *kvrpc.BatchPutIfAbsentCall:
		for _, p := range c.Pairs {
			applied := false
			if _, exists := data[string(p.Key)]; !exists {
				data[string(p.Key)] = p.Value
				applied = true
			}
			c.States = append(c.States, kvrpc.KeyOpState{Key: p.Key, Applied: applied})
		}

	case *kvrpc.DeleteCall:
		delete(data, string(c.Key))

	case *kvrpc.BatchDeleteCall:
		for _, k := range c.Keys {
			delete(data, string(k))
		}

	case *kvrpc.CompareAndSetCall:
		cur, exists := data[string(c.Key)]
		if valueEqual(cur, exists, c.Expected) {
			data[string(c.Key)] = c.New
			c.Applied = true
		}

	case *kvrpc.BatchCompareAndSetCall:
		for i, p := range c.Pairs {
			cur, exists := data[string(p.Key)]
			applied := false
			if valueEqual(cur, exists, c.Expected[i]) {
				data[string(p.Key)] = p.Value
				applied = true
			}
			c.States = append(c.States, kvrpc.KeyOpState{Key: p.Key, Applied: applied})
		}

	case *kvrpc.DeleteRangeCall:
		var count uint64
		for k := range data {
			key := []byte(k)
			if inRange(key, c.StartKey, c.EndKey, c.WithStart, c.WithEnd) {
				delete(data, k)
				count++
			}
		}
		c.DeleteCount = count

	case *kvrpc.ScanCall:
		var keys []string
		for k := range data {
			key := []byte(k)
			if bytes.Compare(key, c.StartKey) >= 0 && (len(c.EndKey) == 0 || bytes.Compare(key, c.EndKey) < 0) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		if c.Reverse {
			for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
		if len(keys) > c.Limit {
			keys = keys[:c.Limit]
		}
		for _, k := range keys {
			c.Results = append(c.Results, kvrpc.KVPair{Key: []byte(k), Value: data[k]})
		}
	}
}

// valueEqual implements compare-and-set's "expected" semantics: a nil
// Expected means "key must not currently exist".
func valueEqual(cur []byte, exists bool, expected []byte) bool {
	if expected == nil {
		return !exists
	}
	if !exists {
		return false
	}
	if len(cur) != len(expected) {
		return false
	}
	for i := range cur {
		if cur[i] != expected[i] {
			return false
		}
	}
	return true
}

// inRange reports whether key falls between start and end, each bound
// included or excluded per withStart/withEnd; an empty end is
// unbounded.
func inRange(key, start, end []byte, withStart, withEnd bool) bool {
	cmpStart := bytes.Compare(key, start)
	if withStart {
		if cmpStart < 0 {
			return false
		}
	} else if cmpStart <= 0 {
		return false
	}
	if len(end) > 0 {
		cmpEnd := bytes.Compare(key, end)
		if cmpEnd > 0 || (cmpEnd == 0 && !withEnd) {
			return false
		}
	}
	return true
}
