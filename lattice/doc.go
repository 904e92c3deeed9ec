// Package lattice searches the attribute lattice of a relation for minimal
// approximate dependencies.
//
// A SearchSpace explores the lattice for one DependencyStrategy: either the
// functional dependencies with a fixed right-hand side, or the unique column
// combinations (keys). Candidates are popped from a priority queue of launch
// pads, ascended towards supersets until the error drops below the threshold,
// and the resulting peak is trickled down to its minimal dependencies. Visited
// verticals are recorded in set-tries so that implied candidates are pruned.
//
// Errors are estimated from agree-set samples where possible and computed
// exactly from position list indexes when a decision depends on them. All
// shared state lives in a ProfilingContext: the relation, the PLI cache, the
// sample map and the random source.
package lattice
