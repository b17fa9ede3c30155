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
	"time"

	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/ekjotsingh/kvrouter/internal/locate"
	"github.com/ekjotsingh/kvrouter/internal/logutil"
	"github.com/ekjotsingh/kvrouter/internal/retry"
	"github.com/ekjotsingh/kvrouter/metrics"
	"github.com/ekjotsingh/kvrouter/region"
	"github.com/ekjotsingh/kvrouter/status"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// subBatch is one region's share of a batch: the request built for
// that region, and the status it completed with once its worker joins.
// Exactly one worker writes status; the parent only reads it after the
// errgroup join, so no lock is needed.
type subBatch struct {
	region *region.Region
	call   kvrpc.Call
	status status.Status
}

// Orchestrator is the batch scatter/gather layer. It partitions a
// batch by region via the MetaCache, dispatches one sub-batch per
// region concurrently through a RegionRequestSender, and merges the
// results.
type Orchestrator struct {
	cache         *locate.RegionCache
	sender        *locate.RegionRequestSender
	maxParallel   int
	callTimeout   time.Duration
	totalDeadline time.Duration
}

// NewOrchestrator builds an Orchestrator. maxParallel bounds concurrent
// sub-batch fan-out.
func NewOrchestrator(cache *locate.RegionCache, sender *locate.RegionRequestSender, maxParallel int, callTimeout, totalDeadline time.Duration) *Orchestrator {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Orchestrator{cache: cache, sender: sender, maxParallel: maxParallel, callTimeout: callTimeout, totalDeadline: totalDeadline}
}

// dispatch runs every sub-batch's call concurrently, bounded by
// o.maxParallel, each against an independent Backoffer forked from bo
// so sub-batches back off independently instead of serializing through
// a shared budget. It writes each subBatch's status field directly,
// and blocks until every sub-batch has been attempted, honoring ctx
// cancellation without abandoning any worker mid-flight.
func (o *Orchestrator) dispatch(bo *retry.Backoffer, batches []*subBatch) {
	sem := make(chan struct{}, o.maxParallel)
	var eg errgroup.Group

	for _, b := range batches {
		b := b
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			childBo, cancel := bo.Fork()
			defer cancel()
			b.status = o.sender.SendReq(childBo, b.call, b.region.ID(), o.callTimeout)
			outcome := "ok"
			if !b.status.IsOK() {
				outcome = "error"
			}
			metrics.SubBatchCounter.WithLabelValues(b.call.Method(), outcome).Inc()
			return nil
		})
	}
	_ = eg.Wait() // workers record status on their own subBatch; dispatch itself never fails
}

// runWithRetry runs one partition+dispatch round via build, and, if
// the aggregated result comes back EpochMismatch or RegionNotFound,
// retries the whole round from scratch. By the time aggregate reports
// either code, the RpcController has already invalidated the stale
// cache entry that caused it (see RegionRequestSender.onRegionError),
// so re-running build re-partitions against fresh topology rather than
// walking into the same mismatch again. Each retry consumes one unit
// of bo's backoff budget, bounding the loop by the same deadline that
// bounds everything else in the call.
func (o *Orchestrator) runWithRetry(bo *retry.Backoffer, method string, build func() ([]*subBatch, status.Status)) status.Status {
	for {
		batches, st := build()
		if !st.IsOK() {
			return st
		}
		o.dispatch(bo, batches)
		result := aggregate(bo.Ctx(), method, batches)
		if result.IsOK() {
			return result
		}
		switch result.Code() {
		case status.EpochMismatch, status.RegionNotFound:
			if boErr := bo.Backoff(retry.BoRegionMiss, result); boErr != nil {
				return status.TimeoutStatus()
			}
			continue
		default:
			return result
		}
	}
}

// aggregate is the reduce phase: Ok iff every sub-batch is Ok, else
// the first non-Ok status in iteration order; later failures are
// logged at WARNING, not returned.
func aggregate(ctx context.Context, method string, batches []*subBatch) status.Status {
	var first status.Status
	seenFailure := false
	for _, b := range batches {
		if b.status.IsOK() {
			continue
		}
		if !seenFailure {
			first = b.status
			seenFailure = true
			continue
		}
		logutil.Logger(ctx).Warn("sub-batch failed",
			zap.String("method", method), zap.Uint64("regionID", b.region.ID()), zap.Error(b.status))
	}
	if !seenFailure {
		return status.OK
	}
	return first
}
