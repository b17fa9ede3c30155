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

// Package retry implements the exponential-backoff-with-jitter policy
// used by the RpcController between attempts, and by the Orchestrator
// and Scanner between re-partition rounds. It is modeled on the
// teacher's store/tikv Backoffer, which every retry loop in this
// codebase threads through as the first argument.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/pingcap/errors"
	"go.uber.org/atomic"
)

// Type names a reason for backing off, used only for logging/metrics
// labels (as the teacher's BoRegionMiss/BoTiKVRPC/BoServerBusy do).
type Type string

const (
	// BoRegionMiss covers region-not-found and stale-epoch responses.
	BoRegionMiss Type = "regionMiss"
	// BoTiKVRPC covers transport-level send failures.
	BoTiKVRPC Type = "tikvRPC"
	// BoServerBusy covers explicit server-busy responses.
	BoServerBusy Type = "serverBusy"
	// BoTxnLockFast is unused by this core (no transaction layer) but
	// kept as a recognizable backoff type for callers building on top.
	BoTxnLockFast Type = "txnLockFast"
)

const (
	baseBackoffMs = 2
	maxBackoffMs  = 2000
)

// Backoffer accumulates total sleep time against a budget and a
// deadline, and exposes Fork so that concurrent sub-batches can each
// own an independent error/sleep trail rooted in the same context and
// deadline. totalSleep/attempts are typed atomics rather than plain
// ints because Ctx/TotalSleep/Attempts are read from the owning
// goroutine while Backoff itself may be called from a forked child's
// goroutine during the same logical call.
type Backoffer struct {
	ctx        context.Context
	maxSleepMs int
	totalSleep atomic.Int32
	attempts   atomic.Int32
	errors     []error
}

// NewBackoffer creates a Backoffer bound to ctx with a total sleep
// budget of maxSleepMs milliseconds across all attempts.
func NewBackoffer(ctx context.Context, maxSleepMs int) *Backoffer {
	return &Backoffer{ctx: ctx, maxSleepMs: maxSleepMs}
}

// Ctx returns the backoffer's context, honored by callers for
// cancellation/deadline checks before issuing the next attempt.
func (b *Backoffer) Ctx() context.Context { return b.ctx }

// TotalSleep returns the accumulated backoff sleep in milliseconds.
func (b *Backoffer) TotalSleep() int { return int(b.totalSleep.Load()) }

// Attempts returns how many times Backoff has been called.
func (b *Backoffer) Attempts() int { return int(b.attempts.Load()) }

// Backoff sleeps for an exponentially increasing, jittered duration
// and records err. It returns a non-nil error once the backoffer's
// budget is exhausted or the context is done, signaling the caller to
// give up and surface a Timeout/Internal status.
func (b *Backoffer) Backoff(typ Type, err error) error {
	select {
	case <-b.ctx.Done():
		return errors.Trace(b.ctx.Err())
	default:
	}

	attempt := b.attempts.Add(1)
	b.errors = append(b.errors, errors.Annotatef(err, "backoff(%s)", typ))

	sleepMs := backoffDurationMs(int(attempt))
	if b.TotalSleep()+sleepMs > b.maxSleepMs {
		return errors.Errorf("backoff budget (%dms) exhausted after %d attempts, last error: %v", b.maxSleepMs, attempt, err)
	}
	b.totalSleep.Add(int32(sleepMs))

	timer := time.NewTimer(time.Duration(sleepMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-b.ctx.Done():
		return errors.Trace(b.ctx.Err())
	}
}

// backoffDurationMs computes exponential backoff with full jitter,
// capped at maxBackoffMs.
func backoffDurationMs(attempt int) int {
	capped := baseBackoffMs << uint(attempt)
	if capped <= 0 || capped > maxBackoffMs {
		capped = maxBackoffMs
	}
	return rand.Intn(capped) + 1
}

// Fork returns a child Backoffer sharing this one's context and
// budget class, along with a cancel func. Used so that each concurrent
// sub-batch worker backs off independently without serializing through
// a shared counter, while still honoring the parent's cancellation.
func (b *Backoffer) Fork() (*Backoffer, context.CancelFunc) {
	ctx, cancel := context.WithCancel(b.ctx)
	return NewBackoffer(ctx, b.maxSleepMs), cancel
}

// Errors returns the errors recorded across all Backoff calls, oldest
// first. Exposed for tests that assert on retry counts.
func (b *Backoffer) Errors() []error { return b.errors }
