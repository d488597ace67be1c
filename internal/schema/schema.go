// Package schema implements the table and collection schema types from
// spec §3 (TableSchema, PkeyColSchema, TableOptions) and the index overlay
// schema (Collection, IndexSchema) plus its pkey expression AST.
//
// Grounded on internal/domain/models.go's struct/constructor shape and
// original_source/src/ots_static_index/type_delegates.h for the AST node
// set and evaluation order.
package schema

import "fmt"

// ColumnType is a pkey column's declared value type.
type ColumnType int

const (
	ColumnTypeInvalid ColumnType = iota
	ColumnTypeInteger
	ColumnTypeString
	ColumnTypeBinary
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeInteger:
		return "Integer"
	case ColumnTypeString:
		return "String"
	case ColumnTypeBinary:
		return "Binary"
	default:
		return "Invalid"
	}
}

// PkeyOption is a per-column modifier. AutoIncrement is only legal on an
// Integer column (spec §3).
type PkeyOption int

const (
	PkeyOptionNone PkeyOption = iota
	PkeyOptionAutoIncrement
)

// PkeyColSchema describes one column of a table's primary key.
type PkeyColSchema struct {
	Name   string
	Type   ColumnType
	Option PkeyOption
}

// Validate enforces "AutoIncrement is only legal on Integer" (spec §3).
func (c PkeyColSchema) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("schema: pkey column name must not be empty")
	}
	if c.Option == PkeyOptionAutoIncrement && c.Type != ColumnTypeInteger {
		return fmt.Errorf("schema: column %q: AutoIncrement is only legal on Integer columns", c.Name)
	}
	return nil
}

// TableOptions carries the optional server-side table settings named in
// spec §3. A zero value for any field means "unset" — use the HasX
// booleans to distinguish unset from an explicit zero.
type TableOptions struct {
	HasReservedThroughput bool
	ReservedReadCU        int64
	ReservedWriteCU       int64

	HasTTLSeconds bool
	TTLSeconds    int64 // must be > 0 when set

	HasMaxVersions bool
	MaxVersions    int64 // must be > 0 when set

	HasBloomFilterType bool
	BloomFilterType    string

	HasBlockSize bool
	BlockSize    int64

	HasMaxTimeDeviation bool
	MaxTimeDeviationSec int64
}

// Validate enforces the positivity constraints spec §3 places on
// TableOptions when a field is set.
func (o TableOptions) Validate() error {
	if o.HasTTLSeconds && o.TTLSeconds <= 0 {
		return fmt.Errorf("schema: TTL seconds must be > 0, got %d", o.TTLSeconds)
	}
	if o.HasMaxVersions && o.MaxVersions <= 0 {
		return fmt.Errorf("schema: max versions must be > 0, got %d", o.MaxVersions)
	}
	return nil
}

// TableSchema is the DDL shape of a single table.
type TableSchema struct {
	Name       string
	PkeySchema []PkeyColSchema
	Options    TableOptions
}

// Validate checks the table name, every pkey column, and the options.
func (s TableSchema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema: table name must not be empty")
	}
	if len(s.PkeySchema) == 0 {
		return fmt.Errorf("schema: table %q must declare at least one pkey column", s.Name)
	}
	seen := make(map[string]bool, len(s.PkeySchema))
	for _, c := range s.PkeySchema {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("schema: table %q: %w", s.Name, err)
		}
		if seen[c.Name] {
			return fmt.Errorf("schema: table %q: duplicate pkey column %q", s.Name, c.Name)
		}
		seen[c.Name] = true
	}
	return s.Options.Validate()
}

// ColumnNames returns the pkey column names in declared order.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, len(s.PkeySchema))
	for i, c := range s.PkeySchema {
		names[i] = c.Name
	}
	return names
}
