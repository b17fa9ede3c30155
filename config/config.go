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

// Package config holds the small, independently constructible config
// structs the client is built from, following the teacher's convention
// of one Default*() per concern rather than a single monolithic
// options struct.
package config

import "time"

// Config is the top-level client configuration.
type Config struct {
	// CoordinatorEndpoints are the addresses of the topology
	// coordinator (PD-equivalent) used to resolve region metadata.
	CoordinatorEndpoints []string
	// CallTimeout bounds a single RPC attempt.
	CallTimeout time.Duration
	// MaxRetries bounds the number of attempts RpcController makes per
	// logical call before giving up (0 means "retry until deadline").
	MaxRetries int
	// TotalDeadline bounds the wall-clock time a single logical call
	// (across all retries) may take.
	TotalDeadline time.Duration
	// MaxParallelSubBatches bounds how many region sub-batches an
	// Orchestrator call runs concurrently.
	MaxParallelSubBatches int
	// RegionCacheTTL is how long a cached region is trusted before a
	// lookup forces a refresh.
	RegionCacheTTL time.Duration
}

// DefaultConfig returns the configuration the teacher's own store/tikv
// client uses for analogous timeouts (read-timeout-medium class calls,
// a generous retry budget, bounded fan-out).
func DefaultConfig(endpoints ...string) *Config {
	return &Config{
		CoordinatorEndpoints:  endpoints,
		CallTimeout:           2 * time.Second,
		MaxRetries:            0,
		TotalDeadline:         40 * time.Second,
		MaxParallelSubBatches: 32,
		RegionCacheTTL:        10 * time.Minute,
	}
}
