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

package locate_test

import (
	"context"
	"testing"
	"time"

	"github.com/ekjotsingh/kvrouter/internal/locate"
	"github.com/ekjotsingh/kvrouter/internal/mock"
	. "github.com/pingcap/check"
)

func TestT(t *testing.T) { TestingT(t) }

type testRegionCacheSuite struct {
	cluster *mock.Cluster
	cache   *locate.RegionCache
}

var _ = Suite(&testRegionCacheSuite{})

func (s *testRegionCacheSuite) SetUpTest(c *C) {
	s.cluster = mock.NewCluster()
	s.cluster.Bootstrap(3)
	s.cache = locate.NewRegionCache(s.cluster, 0)
}

// TestSimple mirrors the teacher's TestSimple: a fresh lookup hits the
// coordinator once and installs a usable region.
func (s *testRegionCacheSuite) TestSimple(c *C) {
	r, st := s.cache.LookupRegionByKey(context.Background(), []byte("k"))
	c.Assert(st.IsOK(), IsTrue)
	c.Assert(r, NotNil)
	c.Assert(r.Contains([]byte("k")), IsTrue)
}

// TestCacheHit mirrors the teacher's hit-path assertions: a second
// lookup for a key inside the same region must resolve to the same
// region as the first.
func (s *testRegionCacheSuite) TestCacheHit(c *C) {
	r1, st := s.cache.LookupRegionByKey(context.Background(), []byte("k1"))
	c.Assert(st.IsOK(), IsTrue)
	r2, st := s.cache.LookupRegionByKey(context.Background(), []byte("k2"))
	c.Assert(st.IsOK(), IsTrue)
	c.Assert(r1.ID(), Equals, r2.ID())
}

// TestUpdateLeader mirrors the teacher's TestUpdateLeader: switching
// the cluster's leader and reporting it via UpdateLeader must be
// reflected in the next cached lookup.
func (s *testRegionCacheSuite) TestUpdateLeader(c *C) {
	r, st := s.cache.LookupRegionByKey(context.Background(), []byte("k"))
	c.Assert(st.IsOK(), IsTrue)
	newLeader := r.Replicas()[1]
	s.cache.UpdateLeader(r.ID(), newLeader.StoreID)

	updated := s.cache.GetRegionByID(r.ID())
	leader, _ := updated.Leader()
	c.Assert(leader.StoreID, Equals, newLeader.StoreID)
}

// TestUpdateLeader2 mirrors the teacher's TestUpdateLeader2: a
// reported leader store outside the cached replica set drops the
// entry so the next lookup refreshes topology from scratch.
func (s *testRegionCacheSuite) TestUpdateLeader2(c *C) {
	r, st := s.cache.LookupRegionByKey(context.Background(), []byte("k"))
	c.Assert(st.IsOK(), IsTrue)
	s.cache.UpdateLeader(r.ID(), 9999)
	c.Assert(s.cache.GetRegionByID(r.ID()), IsNil)
}

// TestSplit mirrors the teacher's TestSplit: after the cluster splits
// a region and the stale cached snapshot is invalidated (as the
// RpcController does on EpochNotMatch feedback), the next lookups
// install each half.
func (s *testRegionCacheSuite) TestSplit(c *C) {
	r, st := s.cache.LookupRegionByKey(context.Background(), []byte("m"))
	c.Assert(st.IsOK(), IsTrue)

	leftID, rightID := s.cluster.Split([]byte("m"))
	c.Assert(leftID, Not(Equals), rightID)
	s.cache.InvalidateRegion(r.ID(), r.Epoch())

	left, st := s.cache.LookupRegionByKey(context.Background(), []byte("a"))
	c.Assert(st.IsOK(), IsTrue)
	c.Assert(left.ID(), Equals, leftID)

	right, st := s.cache.LookupRegionByKey(context.Background(), []byte("z"))
	c.Assert(st.IsOK(), IsTrue)
	c.Assert(right.ID(), Equals, rightID)
}

// TestListRegionIDsInCache mirrors the teacher's
// TestListRegionIDsInCache: listing the regions a key range spans.
func (s *testRegionCacheSuite) TestListRegionIDsInCache(c *C) {
	s.cluster.Split([]byte("m"))
	ids, st := s.cache.ListRegionIDsInKeyRange(context.Background(), nil, nil)
	c.Assert(st.IsOK(), IsTrue)
	c.Assert(len(ids), Equals, 2)
}

// TestContains mirrors the teacher's TestContains/TestContainsByEnd.
func (s *testRegionCacheSuite) TestContains(c *C) {
	r, st := s.cache.LookupRegionByKey(context.Background(), []byte("k"))
	c.Assert(st.IsOK(), IsTrue)
	c.Assert(r.Contains([]byte("k")), IsTrue)

	left, st := s.cache.LocateEndKey(context.Background(), []byte("k"))
	c.Assert(st.IsOK(), IsTrue)
	c.Assert(left.ID(), Equals, r.ID())
}

// TestTTLEviction exercises the RegionCacheTTL lifecycle: a cache
// built with a very short TTL re-refreshes instead of serving a stale
// hit.
func (s *testRegionCacheSuite) TestTTLEviction(c *C) {
	cache := locate.NewRegionCache(s.cluster, time.Nanosecond)
	r1, st := cache.LookupRegionByKey(context.Background(), []byte("k"))
	c.Assert(st.IsOK(), IsTrue)
	time.Sleep(time.Millisecond)
	r2, st := cache.LookupRegionByKey(context.Background(), []byte("k"))
	c.Assert(st.IsOK(), IsTrue)
	c.Assert(r1.ID(), Equals, r2.ID())
}
