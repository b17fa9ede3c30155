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

// Package locate implements the MetaCache (RegionCache) and the
// RpcController (RegionRequestSender): the two pieces of the router
// that, respectively, resolve keys to regions and execute a single
// region-targeted RPC with leader-following and retry.
package locate

import (
	"context"

	"github.com/ekjotsingh/kvrouter/region"
)

// CoordinatorClient is the upstream service the MetaCache consults on
// a lookup miss or staleness signal. It stands in for a PD-style
// topology coordinator; service discovery and authentication for it
// are an external collaborator's concern, not this core's.
type CoordinatorClient interface {
	// ScanRegions returns up to limit regions whose ranges intersect
	// [key, endKey), ordered by start key.
	ScanRegions(ctx context.Context, key, endKey []byte, limit int) ([]*region.Region, error)
}
