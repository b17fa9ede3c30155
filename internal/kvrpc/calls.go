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

package kvrpc

// base is embedded by every method-specific call to provide the common
// Context()/SetContext() plumbing without repeating it per type.
type base struct {
	ctx RequestContext
}

func (b *base) SetContext(ctx RequestContext) { b.ctx = ctx }
func (b *base) Context() RequestContext       { return b.ctx }

// KVPair is a single key/value result, shared across Get/BatchGet/Scan
// style responses.
type KVPair struct {
	Key   []byte
	Value []byte
}

// KeyOpState reports whether a conditional per-key write applied,
// shared across PutIfAbsent/CompareAndSet style responses.
type KeyOpState struct {
	Key     []byte
	Applied bool
}

// GetCall is a single-key read.
type GetCall struct {
	base
	Key   []byte
	Value []byte // populated on success
	Found bool
}

func (*GetCall) Method() string { return "Get" }

// BatchGetCall is a multi-key read routed to one region.
type BatchGetCall struct {
	base
	Keys    [][]byte
	Results []KVPair // only keys that were found
}

func (*BatchGetCall) Method() string { return "BatchGet" }

// PutCall is a single unconditional write.
type PutCall struct {
	base
	Key   []byte
	Value []byte
}

func (*PutCall) Method() string { return "Put" }

// BatchPutCall is a multi-key unconditional write routed to one
// region; atomic within that region only.
type BatchPutCall struct {
	base
	Pairs []KVPair
}

func (*BatchPutCall) Method() string { return "BatchPut" }

// PutIfAbsentCall writes Key/Value only if Key does not already exist.
type PutIfAbsentCall struct {
	base
	Key     []byte
	Value   []byte
	Applied bool
}

func (*PutIfAbsentCall) Method() string { return "PutIfAbsent" }

// BatchPutIfAbsentCall is the batch form, atomic per region when
// IsAtomic is set.
type BatchPutIfAbsentCall struct {
	base
	Pairs    []KVPair
	IsAtomic bool
	States   []KeyOpState
}

func (*BatchPutIfAbsentCall) Method() string { return "BatchPutIfAbsent" }

// DeleteCall removes a single key.
type DeleteCall struct {
	base
	Key []byte
}

func (*DeleteCall) Method() string { return "Delete" }

// BatchDeleteCall removes multiple keys routed to one region.
type BatchDeleteCall struct {
	base
	Keys [][]byte
}

func (*BatchDeleteCall) Method() string { return "BatchDelete" }

// CompareAndSetCall performs an atomic compare-and-set on a single
// key: writes New only if the key's current value equals Expected.
type CompareAndSetCall struct {
	base
	Key      []byte
	Expected []byte
	New      []byte
	Applied  bool
}

func (*CompareAndSetCall) Method() string { return "CompareAndSet" }

// BatchCompareAndSetCall is the batch form, atomic per region only.
// Pairs carries each key's new value; Expected carries the
// correspondingly-indexed prior value the caller requires before the
// write applies (nil meaning "key must not currently exist"), mirroring
// CompareAndSetCall's single-key semantics. The two slices are kept
// parallel rather than bundled into one per-key struct so a caller that
// builds them independently (e.g. zipping a key list against a
// separately-sourced expected-value list) can't silently paper over a
// length mismatch — callers must explicitly line them up, and a
// mismatch is rejected with InvalidArgument before any region is
// contacted.
type BatchCompareAndSetCall struct {
	base
	Pairs    []KVPair
	Expected [][]byte
	States   []KeyOpState
}

func (*BatchCompareAndSetCall) Method() string { return "BatchCompareAndSet" }

// DeleteRangeCall deletes every key in the sub-range assigned to one
// region by the walker. WithStart/WithEnd say whether StartKey/EndKey
// themselves are deleted. The walker carries the user's inclusivity at
// the overall range's own start and end and sends every interior
// region boundary as an exclusive end; when the user's inclusive end
// coincides with a region's end key, that sub-request is also sent
// with an exclusive end and the end key is removed by a compensating
// point Delete issued after the walk completes.
type DeleteRangeCall struct {
	base
	StartKey    []byte
	EndKey      []byte
	WithStart   bool
	WithEnd     bool
	DeleteCount uint64
}

func (*DeleteRangeCall) Method() string { return "KvDeleteRange" }

// ScanCall reads up to Limit pairs from [StartKey, EndKey) (walked
// backwards, from the largest key below EndKey, when Reverse is set)
// within a single region; an empty EndKey is unbounded. internal/locate.Scanner issues one ScanCall per
// region crossed, chaining StartKey/EndKey as it walks (mirrors the
// teacher's ScanRequest/getData loop in store/tikv/scan.go).
type ScanCall struct {
	base
	StartKey []byte
	EndKey   []byte
	Limit    int
	Reverse  bool
	Results  []KVPair
}

func (*ScanCall) Method() string { return "Scan" }
