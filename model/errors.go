package model

import "errors"

var (
	// ErrUnknownColumn is returned when a column name is not part of a schema.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrRowWidth is returned when a row does not match the schema width.
	ErrRowWidth = errors.New("row width does not match schema")

	// ErrNoColumns is returned when a relation is built without columns.
	ErrNoColumns = errors.New("relation has no columns")
)
