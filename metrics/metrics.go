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

// Package metrics declares the Prometheus collectors shared by the
// MetaCache, RpcController and Orchestrator, grouped the way the
// teacher's util/metric package groups per-subsystem histograms.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CmdHistogram observes per-method call latency, labeled by method
	// name and outcome ("ok" / "error").
	CmdHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kvrouter",
			Subsystem: "client",
			Name:      "cmd_duration_seconds",
			Help:      "Duration of client operations by method and outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 18),
		},
		[]string{"method", "outcome"},
	)

	// CacheCounter counts MetaCache lookups by result ("hit", "miss",
	// "refresh_error").
	CacheCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvrouter",
			Subsystem: "region_cache",
			Name:      "lookup_total",
			Help:      "MetaCache lookups by outcome.",
		},
		[]string{"result"},
	)

	// RetryCounter counts RpcController retries by reason.
	RetryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvrouter",
			Subsystem: "rpc_controller",
			Name:      "retry_total",
			Help:      "RpcController retries by backoff reason.",
		},
		[]string{"reason"},
	)

	// SubBatchCounter counts per-region sub-batch outcomes issued by
	// the Orchestrator.
	SubBatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvrouter",
			Subsystem: "orchestrator",
			Name:      "sub_batch_total",
			Help:      "Orchestrator sub-batches by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(CmdHistogram, CacheCounter, RetryCounter, SubBatchCounter)
}
