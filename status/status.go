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

// Package status defines the tagged-variant result type that every
// operation in this client returns: a single Ok/error status that the
// orchestrator and region request sender use to decide whether to
// retry, refresh topology, or surface an error to the caller.
package status

import "fmt"

// Code classifies a Status. The zero value is Ok.
type Code int

const (
	// Ok means the operation completed successfully.
	Ok Code = iota
	// NotFound means a requested key does not exist.
	NotFound
	// RegionNotFound means the target region is unknown to the server
	// that was asked, or has been split/merged away.
	RegionNotFound
	// EpochMismatch means the caller's region epoch is stale.
	EpochMismatch
	// LeaderChanged means the contacted replica is no longer (or never
	// was) the leader; Hint may carry the new leader if known.
	LeaderChanged
	// Timeout means the call's deadline elapsed before completion.
	Timeout
	// Network means a transport-level error occurred.
	Network
	// IllegalState means a client-side invariant was violated.
	IllegalState
	// InvalidArgument means a precondition on the caller's input failed.
	InvalidArgument
	// Internal means an unexpected, non-retryable failure occurred.
	Internal
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "Ok"
	case NotFound:
		return "NotFound"
	case RegionNotFound:
		return "RegionNotFound"
	case EpochMismatch:
		return "EpochMismatch"
	case LeaderChanged:
		return "LeaderChanged"
	case Timeout:
		return "Timeout"
	case Network:
		return "Network"
	case IllegalState:
		return "IllegalState"
	case InvalidArgument:
		return "InvalidArgument"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Endpoint is the minimal replica-address hint a LeaderChanged status
// may carry. Defined here so this package does not import region;
// region.Endpoint has the same fields and converts to it directly.
type Endpoint struct {
	StoreID uint64
	Addr    string
}

// Status is the error/result type threaded through every layer of the
// router: MetaCache, RpcController, and the Orchestrator. It implements
// the error interface so it composes with normal Go error handling,
// while still letting callers switch on Code for retry decisions.
type Status struct {
	code Code
	hint *Endpoint
	msg  string
}

// OK is the canonical success value.
var OK = Status{code: Ok}

// IsOK reports whether s represents success.
func (s Status) IsOK() bool { return s.code == Ok }

// Code returns the status's classification.
func (s Status) Code() Code { return s.code }

// Hint returns the leader hint carried by a LeaderChanged status, or
// nil if none was provided.
func (s Status) Hint() *Endpoint { return s.hint }

// Error implements the error interface.
func (s Status) Error() string {
	if s.msg == "" {
		return s.code.String()
	}
	return fmt.Sprintf("%s: %s", s.code, s.msg)
}

// NotFoundStatus builds a NotFound status.
func NotFoundStatus() Status { return Status{code: NotFound} }

// RegionNotFoundStatus builds a RegionNotFound status.
func RegionNotFoundStatus(msg string) Status { return Status{code: RegionNotFound, msg: msg} }

// EpochMismatchStatus builds an EpochMismatch status.
func EpochMismatchStatus(msg string) Status { return Status{code: EpochMismatch, msg: msg} }

// LeaderChangedStatus builds a LeaderChanged status, optionally with a
// replica hint.
func LeaderChangedStatus(hint *Endpoint) Status { return Status{code: LeaderChanged, hint: hint} }

// TimeoutStatus builds a Timeout status.
func TimeoutStatus() Status { return Status{code: Timeout} }

// NetworkStatus wraps a transport error.
func NetworkStatus(err error) Status {
	if err == nil {
		return Status{code: Network}
	}
	return Status{code: Network, msg: err.Error()}
}

// IllegalStateStatus builds an IllegalState status.
func IllegalStateStatus(msg string) Status { return Status{code: IllegalState, msg: msg} }

// InvalidArgumentStatus builds an InvalidArgument status.
func InvalidArgumentStatus(msg string) Status { return Status{code: InvalidArgument, msg: msg} }

// InternalStatus builds an Internal status.
func InternalStatus(msg string) Status { return Status{code: Internal, msg: msg} }

// FromError converts a generic error into a Network status,
// preserving a Status unchanged if that's what was passed.
func FromError(err error) Status {
	if err == nil {
		return OK
	}
	if s, ok := err.(Status); ok {
		return s
	}
	return NetworkStatus(err)
}

// Retryable reports whether the RpcController should retry locally for
// this status without surfacing it to the Orchestrator.
func (s Status) Retryable() bool {
	switch s.code {
	case LeaderChanged, EpochMismatch, RegionNotFound, Network:
		return true
	default:
		return false
	}
}
