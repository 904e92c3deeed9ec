// Package plicache caches position list indexes (PLIs) of attribute subsets
// and composes missing ones from cached subsets.
//
// A request for a vertical that is not cached is answered by picking a small
// set of cached subset PLIs that together cover the vertical, filling the gaps
// with single-column PLIs and intersecting them. Whether an intermediate or
// final result is retained is decided by a CachingMethod. When a memory budget
// is configured, an EvictionMethod decides which multi-column entries make room,
// and evicted entries may be written to a blob store and restored later.
//
// Single-column PLIs are inserted at construction and are never evicted.
//
// Results are returned as a Handle. A borrowed handle points at an entry owned
// by the cache; an owned handle belongs to the caller alone.
package plicache
