package schema

import "fmt"

// PkeyColDef is one column of an index (or primary) table's declared pkey
// within a Collection: either a plain passthrough of a source attribute
// (Expr is an Attr node referencing a same-named primary column) or a
// composited expression (spec §3, "Composited pkey" in the glossary).
type PkeyColDef struct {
	Name string
	Type ColumnType
	Expr *Expr // how to compute this column's value from source attributes
}

// IndexSchema describes one secondary index table within a Collection.
type IndexSchema struct {
	Table       TableSchema
	PkeyDefs    []PkeyColDef // parallel to Table.PkeySchema, by name
	RequiredAttrs []string   // attrs that must be present for a row to be indexed here
}

// PkeyDef returns the expression definition for the named pkey column.
func (ix IndexSchema) PkeyDef(name string) (PkeyColDef, bool) {
	for _, d := range ix.PkeyDefs {
		if d.Name == name {
			return d, true
		}
	}
	return PkeyColDef{}, false
}

// Collection bundles a primary table with its secondary indexes and the
// attribute requirements the overlay's Insert validates against (spec §3).
type Collection struct {
	Name           string
	Primary        TableSchema
	PrimaryPkeyDefs []PkeyColDef // identity defs for the primary's own pkey columns
	Indexes        []IndexSchema
	RequiredAttrs  []string
	OptionalAttrs  []string
}

// Validate checks the primary schema, every index schema, and that every
// index's pkey expression only references attrs in Required ∪ Optional.
func (c Collection) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("schema: collection name must not be empty")
	}
	if err := c.Primary.Validate(); err != nil {
		return err
	}
	known := make(map[string]bool, len(c.RequiredAttrs)+len(c.OptionalAttrs))
	for _, a := range c.RequiredAttrs {
		known[a] = true
	}
	for _, a := range c.OptionalAttrs {
		known[a] = true
	}
	for _, ix := range c.Indexes {
		if err := ix.Table.Validate(); err != nil {
			return fmt.Errorf("schema: collection %q: index %q: %w", c.Name, ix.Table.Name, err)
		}
		for _, def := range ix.PkeyDefs {
			if def.Expr == nil {
				return fmt.Errorf("schema: collection %q: index %q: pkey column %q has no expression", c.Name, ix.Table.Name, def.Name)
			}
			if err := def.Expr.Validate(); err != nil {
				return fmt.Errorf("schema: collection %q: index %q: pkey column %q: %w", c.Name, ix.Table.Name, def.Name, err)
			}
			for _, attrName := range def.Expr.AttrNames() {
				if !known[attrName] {
					return fmt.Errorf("schema: collection %q: index %q: pkey column %q references unknown attribute %q",
						c.Name, ix.Table.Name, def.Name, attrName)
				}
			}
		}
	}
	return nil
}

// Table returns the schema named by table, which may be the primary table
// or any index, by table name. Used by index selection (spec §4.7.4) to
// iterate "every candidate table (primary + indexes)".
func (c Collection) Table(name string) (TableSchema, bool) {
	if c.Primary.Name == name {
		return c.Primary, true
	}
	for _, ix := range c.Indexes {
		if ix.Table.Name == name {
			return ix.Table, true
		}
	}
	return TableSchema{}, false
}
