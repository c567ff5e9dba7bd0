// Package types defines the entity graph (Database, Table, Column, Row, Value),
// the closed set of column types and their type descriptors, the validation
// rules that decide whether a value is accepted by a column, the row
// consistency checks, the Store interface, and the standard error types for
// the tablestore system.
package types
