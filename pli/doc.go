// Package pli implements position list indexes (stripped partitions).
//
// A PLI groups the row ids of a relation into clusters of rows that share the
// same value on an attribute subset. Clusters of size one are stripped, so a
// PLI only stores rows that agree with at least one other row. Two PLIs of
// attribute sets X and Y intersect into the PLI of X ∪ Y.
//
// Row ids inside a cluster are ascending, and clusters are ordered by their
// first row id, which makes equal partitions structurally identical.
package pli
