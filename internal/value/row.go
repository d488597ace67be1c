package value

import "fmt"

// PrimaryKeyColumn is a single (name, value) pair within a primary key.
type PrimaryKeyColumn struct {
	Name  string
	Value Value
}

// PrimaryKey is an ordered sequence of columns. Order is semantically
// significant — it must match the schema's declared pkey column order.
type PrimaryKey struct {
	Columns []PrimaryKeyColumn
}

// Get returns the value of the named pkey column and whether it was found.
func (k PrimaryKey) Get(name string) (Value, bool) {
	for _, c := range k.Columns {
		if c.Name == name {
			return c.Value, true
		}
	}
	return Value{}, false
}

// Validate enforces spec §3's write-path pkey invariant: no column may
// hold InfMin/InfMax (those are range-bound sentinels only).
func (k PrimaryKey) Validate() error {
	for _, c := range k.Columns {
		if c.Value.Kind() == KindInfMin || c.Value.Kind() == KindInfMax {
			return fmt.Errorf("value: pkey column %q may not be %s in a write", c.Name, c.Value.Kind())
		}
		if err := c.Value.Validate(); err != nil {
			return fmt.Errorf("value: pkey column %q: %w", c.Name, err)
		}
	}
	return nil
}

// ComparePrimaryKeys compares two keys column-by-column in declared order.
// Keys of differing length or differing column names at some position are
// Uncomparable.
func ComparePrimaryKeys(a, b PrimaryKey) Ordering {
	if len(a.Columns) != len(b.Columns) {
		return Uncomparable
	}
	for i := range a.Columns {
		if a.Columns[i].Name != b.Columns[i].Name {
			return Uncomparable
		}
		switch o := Compare(a.Columns[i].Value, b.Columns[i].Value); o {
		case Equal:
			continue
		default:
			return o
		}
	}
	return Equal
}

// Attribute is a non-key column: (name, value, optional write timestamp).
type Attribute struct {
	Name         string
	Value        Value
	HasTimestamp bool
	TimestampMs  int64
}

// Validate enforces spec §3's attribute timestamp invariant: when present,
// non-negative and millisecond-aligned (trivially true for an int64 of
// milliseconds — the check guards against a caller passing microseconds
// or a negative clock skew value).
func (a Attribute) Validate() error {
	if a.HasTimestamp && a.TimestampMs < 0 {
		return fmt.Errorf("value: attribute %q timestamp must be non-negative, got %d", a.Name, a.TimestampMs)
	}
	return a.Value.Validate()
}

// Row pairs a primary key with its attribute set.
type Row struct {
	Key        PrimaryKey
	Attributes []Attribute
}

// Attr returns the named attribute's value and whether it was present.
func (r Row) Attr(name string) (Value, bool) {
	for _, a := range r.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return Value{}, false
}

// Validate runs PrimaryKey.Validate and Attribute.Validate over the whole row.
func (r Row) Validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	for _, a := range r.Attributes {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// HasRequired reports whether r carries every attribute named in required,
// used by the index overlay's insert fan-out (spec §4.7.2) to decide
// whether a row is eligible for the primary table / a given index table.
func (r Row) HasRequired(required []string) bool {
	for _, name := range required {
		if _, ok := r.Attr(name); !ok {
			return false
		}
	}
	return true
}
