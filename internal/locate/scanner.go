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
	"time"

	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/ekjotsingh/kvrouter/internal/retry"
	"github.com/ekjotsingh/kvrouter/region"
	"github.com/ekjotsingh/kvrouter/status"
)

// scanBatchSize is the per-region fetch size used when the caller
// passes a batch size of 1 or less; chosen to match the teacher's
// scanBatchSize constant.
const scanBatchSize = 256

// Scanner walks keys across regions in order, fetching up to its batch
// size of pairs at a time and crossing region boundaries transparently. It is
// the Go-native counterpart of the teacher's store/tikv Scanner,
// rebuilt over RegionCache/RegionRequestSender instead of a
// transaction snapshot since this router has no transaction layer.
type Scanner struct {
	cache       *RegionCache
	sender      *RegionRequestSender
	callTimeout time.Duration
	batchSize   int
	reverse     bool

	valid        bool
	eof          bool
	cachePairs   []kvrpc.KVPair
	idx          int
	nextStartKey []byte
	endKey       []byte
	nextEndKey   []byte
}

// NewScanner builds a Scanner over [startKey, endKey) (or, reversed,
// the same range walked from just below endKey down to startKey
// inclusive) and primes it with the first batch. An empty endKey means "no upper bound" (forward)
// or "no lower bound" (reverse), matching LookupRegionByKey/
// LocateEndKey's own empty-bound convention.
func NewScanner(ctx context.Context, cache *RegionCache, sender *RegionRequestSender, startKey, endKey []byte, batchSize int, reverse bool, callTimeout time.Duration) (*Scanner, status.Status) {
	if batchSize <= 1 {
		batchSize = scanBatchSize
	}
	s := &Scanner{
		cache:        cache,
		sender:       sender,
		callTimeout:  callTimeout,
		batchSize:    batchSize,
		reverse:      reverse,
		valid:        true,
		nextStartKey: startKey,
		endKey:       endKey,
		nextEndKey:   endKey,
	}
	if st := s.Next(ctx); !st.IsOK() {
		return nil, st
	}
	return s, status.OK
}

// Valid reports whether Key/Value currently refer to a live pair.
func (s *Scanner) Valid() bool { return s.valid }

// Key returns the current pair's key; nil once the scan is exhausted.
func (s *Scanner) Key() []byte {
	if s.valid {
		return s.cachePairs[s.idx].Key
	}
	return nil
}

// Value returns the current pair's value; nil once the scan is
// exhausted.
func (s *Scanner) Value() []byte {
	if s.valid {
		return s.cachePairs[s.idx].Value
	}
	return nil
}

// Next advances to the following pair, fetching another region's
// worth of data when the local batch is exhausted.
func (s *Scanner) Next(ctx context.Context) status.Status {
	if !s.valid {
		return status.IllegalStateStatus("scanner is no longer valid")
	}
	bo := retry.NewBackoffer(ctx, int(s.callTimeout.Milliseconds())*4)
	for {
		s.idx++
		if s.idx >= len(s.cachePairs) {
			if s.eof {
				s.Close()
				return status.OK
			}
			if st := s.getData(ctx, bo); !st.IsOK() {
				s.Close()
				return st
			}
			if s.idx >= len(s.cachePairs) {
				continue
			}
		}

		current := s.cachePairs[s.idx]
		if !s.reverse && len(s.endKey) > 0 && bytes.Compare(current.Key, s.endKey) >= 0 {
			s.eof = true
			s.Close()
			return status.OK
		}
		if s.reverse && len(s.nextStartKey) > 0 && bytes.Compare(current.Key, s.nextStartKey) < 0 {
			s.eof = true
			s.Close()
			return status.OK
		}
		return status.OK
	}
}

// Close ends the scan early; idempotent.
func (s *Scanner) Close() { s.valid = false }

// getData issues one ScanCall against the region owning the current
// cursor and refills cachePairs from its response, advancing the
// cursor past the last key returned the same way the teacher's
// getData does (re-seeking at the last key's immediate successor
// rather than trusting the region's reported end key, since a region
// split between calls would otherwise be missed). Should the region
// reported by the cache have gone stale (EpochMismatch/RegionNotFound)
// by the time the call lands, the lookup and bounds computation are
// redone from scratch against the now-refreshed cache rather than
// just re-sending the same call, since the region just invalidated is
// exactly what s.nextStartKey/s.nextEndKey need re-resolving against.
func (s *Scanner) getData(ctx context.Context, bo *retry.Backoffer) status.Status {
	for {
		var r *region.Region
		var lookupSt status.Status
		if !s.reverse {
			r, lookupSt = s.cache.LookupRegionByKey(ctx, s.nextStartKey)
		} else {
			r, lookupSt = s.cache.LocateEndKey(ctx, s.nextEndKey)
		}
		if !lookupSt.IsOK() {
			return lookupSt
		}

		reqStart, reqEnd := s.nextStartKey, s.endKey
		if !s.reverse {
			if len(reqEnd) > 0 && len(r.EndKey()) > 0 && bytes.Compare(r.EndKey(), reqEnd) < 0 {
				reqEnd = r.EndKey()
			}
		} else {
			reqStart = s.nextStartKey
			if len(reqStart) == 0 || (len(r.StartKey()) > 0 && bytes.Compare(r.StartKey(), reqStart) > 0) {
				reqStart = r.StartKey()
			}
		}

		call := &kvrpc.ScanCall{StartKey: reqStart, EndKey: reqEnd, Limit: s.batchSize, Reverse: s.reverse}
		if s.reverse {
			call.StartKey, call.EndKey = reqStart, s.nextEndKey
		}
		childBo, cancel := bo.Fork()
		sendSt := s.sender.SendReq(childBo, call, r.ID(), s.callTimeout)
		cancel()
		if !sendSt.IsOK() {
			switch sendSt.Code() {
			case status.EpochMismatch, status.RegionNotFound:
				if boErr := bo.Backoff(retry.BoRegionMiss, sendSt); boErr != nil {
					return status.TimeoutStatus()
				}
				continue
			default:
				return sendSt
			}
		}

		s.cachePairs, s.idx = call.Results, 0
		if len(call.Results) < s.batchSize {
			if !s.reverse {
				s.nextStartKey = r.EndKey()
			} else {
				s.nextEndKey = reqStart
			}
			atEOF := !s.reverse && (len(r.EndKey()) == 0 || (len(s.endKey) > 0 && bytes.Compare(s.nextStartKey, s.endKey) >= 0))
			atEOF = atEOF || (s.reverse && (len(r.StartKey()) == 0 || (len(s.nextStartKey) > 0 && bytes.Compare(s.nextStartKey, s.nextEndKey) >= 0)))
			if atEOF {
				s.eof = true
			}
			return status.OK
		}
		lastKey := call.Results[len(call.Results)-1].Key
		if !s.reverse {
			s.nextStartKey = append(append([]byte(nil), lastKey...), 0x00)
		} else {
			s.nextEndKey = append([]byte(nil), lastKey...)
		}
		return status.OK
	}
}
