// Package sample estimates agreement counts from random tuple pairs.
//
// An AgreeSetSample draws pairs of tuples and records, for every pair, the set
// of columns on which both tuples agree (the agree set). The number of
// sampled agree sets that contain a vertical X, scaled to the population,
// estimates how many tuple pairs of the relation agree on X.
//
// A focused sample only draws pairs that already agree on a restriction
// vertical, i.e. pairs from the clusters of the restriction's PLI. Estimates
// are then only valid for verticals that contain the focus.
package sample
