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

// Package kvrpc defines the method-specific request/response pairs the
// RpcController and Orchestrator are generic over. The wire encoding of
// each method is an external collaborator's concern; this package fixes
// only the shape every call carries: a context of {region_id,
// region_epoch, request_id} plus a typed payload.
package kvrpc

import "github.com/ekjotsingh/kvrouter/region"

// RequestContext is attached to every Call before it is sent, and is
// what the server-side (or, in this repo, the mock transport) uses to
// validate the caller's view of topology is current.
type RequestContext struct {
	RegionID  uint64
	Epoch     region.Epoch
	RequestID uint64
}

// RegionError is what a server returns instead of a normal response
// when it disagrees with the caller's RequestContext: it is not
// leader, its epoch is stale, or it no longer owns the region at all.
// The RpcController interprets this and decides whether/how to retry.
type RegionError struct {
	NotLeader      *Endpoint
	EpochNotMatch  bool
	RegionNotFound bool
	ServerIsBusy   bool
}

// Endpoint mirrors region.Endpoint; duplicated here to keep this
// package's server-error shape self-contained (this is the external
// wire-error contract, independent of the client's own cache model).
type Endpoint struct {
	StoreID uint64
	Addr    string
}

// Call is the generic shape every method-specific request/response
// pair implements. Implementations are small value-ish structs, one
// per method, forming a closed tagged variant rather than a class
// hierarchy that callers would need to downcast (DESIGN NOTE §9).
type Call interface {
	// Method identifies the RPC for logging, metrics, and dispatch.
	Method() string
	// SetContext attaches the per-attempt routing context. Called once
	// per attempt by the RpcController, so it must overwrite, not
	// accumulate, any context from a prior attempt.
	SetContext(ctx RequestContext)
	// Context returns the context most recently attached.
	Context() RequestContext
}
