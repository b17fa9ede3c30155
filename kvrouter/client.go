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

// Package kvrouter is the public entry point: a Client exposing the
// single-key and batch key/value operations, composing the MetaCache,
// RpcController and Orchestrator underneath. Its shape
// (NewClient/Close/ClusterID plus one method per operation) mirrors the
// teacher's client-go/v2 rawkv.Client.
package kvrouter

import (
	"context"

	"github.com/ekjotsingh/kvrouter/config"
	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/ekjotsingh/kvrouter/internal/locate"
	"github.com/ekjotsingh/kvrouter/internal/logutil"
	"github.com/ekjotsingh/kvrouter/internal/retry"
	"github.com/ekjotsingh/kvrouter/internal/scatter"
	"github.com/ekjotsingh/kvrouter/status"
	"go.uber.org/zap"
)

// Client is the router's public handle. It is safe for concurrent use
// by any number of goroutines.
type Client struct {
	clusterID uint64
	cfg       *config.Config
	cache     *locate.RegionCache
	sender    *locate.RegionRequestSender
	orch      *scatter.Orchestrator
}

// NewClient builds a Client over coordinator (region topology) and
// transport (the wire channel to stores). Wiring a real gRPC-backed
// coordinator/transport pair is an external collaborator's concern;
// this constructor only assembles the router core around whatever
// implementations the caller supplies.
func NewClient(ctx context.Context, clusterID uint64, coordinator locate.CoordinatorClient, transport locate.Transport, cfg *config.Config, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger != nil {
		logutil.SetGlobalLogger(logger)
	}
	cache := locate.NewRegionCache(coordinator, cfg.RegionCacheTTL)
	sender := locate.NewRegionRequestSender(cache, transport, cfg.MaxRetries)
	orch := scatter.NewOrchestrator(cache, sender, cfg.MaxParallelSubBatches, cfg.CallTimeout, cfg.TotalDeadline)
	return &Client{clusterID: clusterID, cfg: cfg, cache: cache, sender: sender, orch: orch}
}

// ClusterID returns the identifier of the cluster this Client talks
// to, matching rawkv.Client.ClusterID.
func (c *Client) ClusterID() uint64 { return c.clusterID }

// Close releases resources held by the Client.
func (c *Client) Close() error {
	c.cache.Close()
	return nil
}

func (c *Client) backoffer(ctx context.Context) *retry.Backoffer {
	return retry.NewBackoffer(ctx, int(c.cfg.TotalDeadline.Milliseconds()))
}

// Get reads a single key. Not-found is reported as an error status,
// not an empty value, so callers can't confuse "absent" with "empty".
func (c *Client) Get(ctx context.Context, key []byte) ([]byte, status.Status) {
	call := &kvrpc.GetCall{Key: key}
	if st := c.sender.SendReqForKey(c.backoffer(ctx), call, key, c.cfg.CallTimeout); !st.IsOK() {
		return nil, st
	}
	if !call.Found {
		return nil, status.NotFoundStatus()
	}
	return call.Value, status.OK
}

// Put writes a single key unconditionally.
func (c *Client) Put(ctx context.Context, key, value []byte) status.Status {
	call := &kvrpc.PutCall{Key: key, Value: value}
	return c.sender.SendReqForKey(c.backoffer(ctx), call, key, c.cfg.CallTimeout)
}

// PutIfAbsent writes key/value only if key does not already exist.
func (c *Client) PutIfAbsent(ctx context.Context, key, value []byte) (applied bool, st status.Status) {
	call := &kvrpc.PutIfAbsentCall{Key: key, Value: value}
	if st := c.sender.SendReqForKey(c.backoffer(ctx), call, key, c.cfg.CallTimeout); !st.IsOK() {
		return false, st
	}
	return call.Applied, status.OK
}

// Delete removes a single key.
func (c *Client) Delete(ctx context.Context, key []byte) status.Status {
	call := &kvrpc.DeleteCall{Key: key}
	return c.sender.SendReqForKey(c.backoffer(ctx), call, key, c.cfg.CallTimeout)
}

// CompareAndSet performs an atomic compare-and-set on a single key. A
// nil expected means "key must not currently exist", mirroring
// PutIfAbsent's semantics at the single-key level.
func (c *Client) CompareAndSet(ctx context.Context, key, expected, newValue []byte) (applied bool, st status.Status) {
	call := &kvrpc.CompareAndSetCall{Key: key, Expected: expected, New: newValue}
	if st := c.sender.SendReqForKey(c.backoffer(ctx), call, key, c.cfg.CallTimeout); !st.IsOK() {
		return false, st
	}
	return call.Applied, status.OK
}

// BatchGet reads multiple keys in one logical call; missing keys are
// omitted from the result.
func (c *Client) BatchGet(ctx context.Context, keys [][]byte) ([]kvrpc.KVPair, status.Status) {
	return c.orch.BatchGet(ctx, keys)
}

// BatchPut writes multiple pairs; per-region atomic only.
func (c *Client) BatchPut(ctx context.Context, pairs []kvrpc.KVPair) status.Status {
	return c.orch.BatchPut(ctx, pairs)
}

// BatchPutIfAbsent is the batch form of PutIfAbsent.
func (c *Client) BatchPutIfAbsent(ctx context.Context, pairs []kvrpc.KVPair, atomic bool) ([]kvrpc.KeyOpState, status.Status) {
	return c.orch.BatchPutIfAbsent(ctx, pairs, atomic)
}

// BatchDelete removes multiple keys in one logical call.
func (c *Client) BatchDelete(ctx context.Context, keys [][]byte) status.Status {
	return c.orch.BatchDelete(ctx, keys)
}

// BatchCompareAndSet is the batch form of CompareAndSet: pairs[i]'s
// value is written only if the key's current value equals
// expected[i]. pairs and expected must be the same length.
func (c *Client) BatchCompareAndSet(ctx context.Context, pairs []kvrpc.KVPair, expected [][]byte) ([]kvrpc.KeyOpState, status.Status) {
	return c.orch.BatchCompareAndSet(ctx, pairs, expected)
}

// DeleteRange removes every key between start and end, withStart and
// withEnd choosing whether each bound itself is removed, walking
// however many regions the range spans.
func (c *Client) DeleteRange(ctx context.Context, start, end []byte, withStart, withEnd bool) (deleteCount uint64, st status.Status) {
	return c.orch.DeleteRange(ctx, start, end, withStart, withEnd)
}

// Scan returns a Scanner walking [start, end) in key order, crossing
// region boundaries transparently. Grounded on the teacher's
// store/tikv Scanner.
func (c *Client) Scan(ctx context.Context, start, end []byte, batchSize int) (*locate.Scanner, status.Status) {
	return locate.NewScanner(ctx, c.cache, c.sender, start, end, batchSize, false, c.cfg.CallTimeout)
}

// ReverseScan returns a Scanner walking [start, end) backwards, from
// the largest key below end down to start inclusive.
func (c *Client) ReverseScan(ctx context.Context, start, end []byte, batchSize int) (*locate.Scanner, status.Status) {
	return locate.NewScanner(ctx, c.cache, c.sender, start, end, batchSize, true, c.cfg.CallTimeout)
}
