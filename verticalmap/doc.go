// Package verticalmap provides a map keyed by attribute subsets.
//
// The map is a set-trie over the column bits of its keys: the path from the
// root to a node spells the set bits of a key in ascending order. Subset and
// superset queries therefore only visit the part of the trie that can match,
// instead of scanning every entry.
//
// Map is not safe for concurrent use. Blocking wraps a Map behind a
// reader/writer lock.
package verticalmap
