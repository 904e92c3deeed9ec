// Package model defines the relational types the dependency search operates on.
//
// # Attribute Subsets
//
//   - Vertical: immutable set of columns of one schema, backed by a bitset
//   - Column: a single attribute with its schema position
//   - Schema: ordered column list that materializes verticals from indices
//
// # Relation Data
//
//   - Relation: columnar, dictionary-encoded relation
//   - ColumnData: per-column probing table, null rows and single-column PLI
//
// # Relation Builder
//
// Use the fluent API to construct a relation from string rows:
//
//	rel, err := model.NewRelationBuilder("orders", "id", "customer", "city").
//	    WithNullValue("").
//	    AddRow("1", "alice", "berlin").
//	    AddRow("2", "bob", "berlin").
//	    Build()
package model
