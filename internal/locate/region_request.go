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
	"context"
	"time"

	"github.com/ekjotsingh/kvrouter/internal/kvrpc"
	"github.com/ekjotsingh/kvrouter/internal/logutil"
	"github.com/ekjotsingh/kvrouter/internal/retry"
	"github.com/ekjotsingh/kvrouter/metrics"
	"github.com/ekjotsingh/kvrouter/region"
	"github.com/ekjotsingh/kvrouter/status"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Transport is the abstract RPC channel the RegionRequestSender sends
// calls over. Its wire encoding is an external collaborator's concern;
// this core only needs to send a Call to an address and learn whether
// the server rejected it with a RegionError.
type Transport interface {
	SendRequest(ctx context.Context, addr string, call kvrpc.Call, timeout time.Duration) (*kvrpc.RegionError, error)
}

var requestIDCounter atomic.Uint64

func nextRequestID() uint64 { return requestIDCounter.Add(1) }

// RegionRequestSender is the RpcController: it executes one logical
// call against one region, selecting the current leader, retrying on
// transient failures, and refreshing the MetaCache on region/epoch
// errors, until the call succeeds or its budget (a Backoffer plus an
// optional attempt cap) is exhausted.
type RegionRequestSender struct {
	cache      *RegionCache
	transport  Transport
	maxRetries int // 0 means "no attempt cap, retry until Backoffer budget runs out"
}

// NewRegionRequestSender builds a controller over cache and transport.
func NewRegionRequestSender(cache *RegionCache, transport Transport, maxRetries int) *RegionRequestSender {
	return &RegionRequestSender{cache: cache, transport: transport, maxRetries: maxRetries}
}

// SendReq executes call against regionID, retrying the state machine
// below until success, a non-retryable error, or budget exhaustion. On
// return, status.OK means call's response fields were populated by the
// transport; any other status means the response must not be consumed
// by the caller.
//
// SendReq retries only within a fixed regionID: an EpochMismatch or
// RegionNotFound verdict evicts the stale cache entry (see
// onRegionError) but is reported to the caller as non-retryable,
// because this method has no key to re-resolve a replacement region
// from. Callers that know the key the call targets should use
// SendReqForKey instead, which re-partitions by key on exactly this
// condition so the next attempt reads fresh topology.
func (s *RegionRequestSender) SendReq(bo *retry.Backoffer, call kvrpc.Call, regionID uint64, timeout time.Duration) status.Status {
	start := time.Now()
	method := call.Method()
	st := s.sendReqLoop(bo, call, regionID, timeout)
	outcome := "ok"
	if !st.IsOK() {
		outcome = "error"
	}
	metrics.CmdHistogram.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
	return st
}

func (s *RegionRequestSender) sendReqLoop(bo *retry.Backoffer, call kvrpc.Call, regionID uint64, timeout time.Duration) status.Status {
	requestID := nextRequestID()
	for attempt := 1; ; attempt++ {
		select {
		case <-bo.Ctx().Done():
			return status.TimeoutStatus()
		default:
		}
		if s.maxRetries > 0 && attempt > s.maxRetries {
			return status.InternalStatus("max retries exceeded")
		}

		r := s.cache.GetRegionByID(regionID)
		if r == nil {
			return status.RegionNotFoundStatus("region no longer cached")
		}
		leader, ok := r.Leader()
		if !ok {
			leader = r.Replicas()[0]
		}

		call.SetContext(kvrpc.RequestContext{RegionID: r.ID(), Epoch: r.Epoch(), RequestID: requestID})

		callCtx, cancel := context.WithTimeout(bo.Ctx(), timeout)
		regionErr, err := s.transport.SendRequest(callCtx, leader.Addr, call, timeout)
		cancel()

		if err != nil {
			if callCtx.Err() != nil {
				return status.TimeoutStatus()
			}
			metrics.RetryCounter.WithLabelValues(string(retry.BoTiKVRPC)).Inc()
			s.cache.UpdateLeader(r.ID(), nextReplica(r, leader).StoreID)
			if boErr := bo.Backoff(retry.BoTiKVRPC, errors.Trace(err)); boErr != nil {
				return status.NetworkStatus(err)
			}
			continue
		}

		if regionErr == nil {
			return status.OK
		}

		retryable, st := s.onRegionError(bo, r, regionErr)
		if !retryable {
			return st
		}
	}
}

// SendReqForKey locates the region owning key via cache, executes call
// against it, and, should the attempt come back EpochMismatch or
// RegionNotFound, re-locates key (the prior cache entry having just
// been invalidated by onRegionError) and retries the whole lookup+send,
// backing off between rounds until bo's budget runs out. This is what
// gives single-key callers
// (Client's Get/Put/Delete/CompareAndSet, the DeleteRange walker's
// compensating point delete) the same self-healing behavior the
// Orchestrator gets from re-partitioning a stale batch.
func (s *RegionRequestSender) SendReqForKey(bo *retry.Backoffer, call kvrpc.Call, key []byte, timeout time.Duration) status.Status {
	for {
		select {
		case <-bo.Ctx().Done():
			return status.TimeoutStatus()
		default:
		}

		r, lookupSt := s.cache.LookupRegionByKey(bo.Ctx(), key)
		if !lookupSt.IsOK() {
			return lookupSt
		}

		st := s.SendReq(bo, call, r.ID(), timeout)
		if st.IsOK() {
			return st
		}
		switch st.Code() {
		case status.EpochMismatch, status.RegionNotFound:
			if boErr := bo.Backoff(retry.BoRegionMiss, st); boErr != nil {
				return status.TimeoutStatus()
			}
			continue
		default:
			return st
		}
	}
}

// onRegionError interprets a server-reported RegionError, invalidating
// or refreshing the cache as needed and backing off before the caller
// retries. The returned Status is only meaningful when retryable is
// false.
func (s *RegionRequestSender) onRegionError(bo *retry.Backoffer, r *region.Region, regionErr *kvrpc.RegionError) (retryable bool, st status.Status) {
	switch {
	case regionErr.NotLeader != nil:
		logutil.Logger(bo.Ctx()).Warn("region reports NotLeader",
			zap.Uint64("regionID", r.ID()))
		metrics.RetryCounter.WithLabelValues("notLeader").Inc()
		if regionErr.NotLeader.StoreID != 0 {
			s.cache.UpdateLeader(r.ID(), regionErr.NotLeader.StoreID)
			return true, status.OK
		}
		if err := bo.Backoff(retry.BoRegionMiss, errors.New("no leader available")); err != nil {
			return false, status.LeaderChangedStatus(nil)
		}
		return true, status.OK

	case regionErr.EpochNotMatch:
		logutil.Logger(bo.Ctx()).Warn("region reports EpochNotMatch", zap.Uint64("regionID", r.ID()))
		metrics.RetryCounter.WithLabelValues("epochNotMatch").Inc()
		s.cache.InvalidateRegion(r.ID(), r.Epoch())
		return false, status.EpochMismatchStatus("cached epoch stale")

	case regionErr.RegionNotFound:
		logutil.Logger(bo.Ctx()).Warn("region reports RegionNotFound", zap.Uint64("regionID", r.ID()))
		metrics.RetryCounter.WithLabelValues("regionNotFound").Inc()
		s.cache.InvalidateRegion(r.ID(), r.Epoch())
		return false, status.RegionNotFoundStatus("region not found at replica")

	case regionErr.ServerIsBusy:
		metrics.RetryCounter.WithLabelValues("serverBusy").Inc()
		if err := bo.Backoff(retry.BoServerBusy, errors.New("server is busy")); err != nil {
			return false, status.TimeoutStatus()
		}
		return true, status.OK

	default:
		s.cache.InvalidateRegion(r.ID(), r.Epoch())
		return false, status.InternalStatus("unrecognized region error")
	}
}

// nextReplica returns the replica following cur in r's replica list,
// wrapping around, used to round-robin probe a follower after a send
// failure when no NotLeader hint is available.
func nextReplica(r *region.Region, cur region.Endpoint) region.Endpoint {
	replicas := r.Replicas()
	for i, ep := range replicas {
		if ep == cur {
			return replicas[(i+1)%len(replicas)]
		}
	}
	return replicas[0]
}
