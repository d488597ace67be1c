// Package arrowutil converts between this module's row representation and
// Arrow record batches, so query results can be handed to Arrow-native
// consumers (columnar analytics tooling, IPC writers) instead of only JSON.
package arrowutil

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rat-data/colstore/internal/schema"
	"github.com/rat-data/colstore/internal/value"
)

// RowsToRecord builds one Arrow record batch from rows: one column per
// pkey column in tbl's schema order, followed by one column per distinct
// attribute name observed across rows (sorted for determinism). A row
// missing an attribute column gets a null in that slot.
func RowsToRecord(rows []*value.Row, tbl *schema.TableSchema) (arrow.Record, error) {
	alloc := memory.NewGoAllocator()

	attrNames := collectAttrNames(rows)

	fields := make([]arrow.Field, 0, len(tbl.PkeySchema)+len(attrNames))
	for _, pk := range tbl.PkeySchema {
		fields = append(fields, arrow.Field{Name: pk.Name, Type: arrowTypeFor(pk.Type), Nullable: false})
	}
	for _, name := range attrNames {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true})
	}
	schemaArrow := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(alloc, schemaArrow)
	defer builder.Release()

	for _, row := range rows {
		for i, pk := range tbl.PkeySchema {
			v, ok := row.Key.Get(pk.Name)
			if !ok {
				return nil, fmt.Errorf("arrowutil: row missing pkey column %q", pk.Name)
			}
			if err := appendTyped(builder.Field(i), pk.Type, v); err != nil {
				return nil, fmt.Errorf("arrowutil: pkey column %q: %w", pk.Name, err)
			}
		}
		for j, name := range attrNames {
			col := builder.Field(len(tbl.PkeySchema) + j).(*array.StringBuilder)
			v, ok := row.Attr(name)
			if !ok {
				col.AppendNull()
				continue
			}
			col.Append(attrToString(v))
		}
	}

	return builder.NewRecord(), nil
}

func collectAttrNames(rows []*value.Row) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for _, a := range row.Attributes {
			seen[a.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// attrToString renders an attribute value as a plain string for the
// attribute columns, which are always typed as Arrow strings regardless
// of the value's own kind (attributes are schemaless, unlike pkey
// columns).
func attrToString(v value.Value) string {
	switch v.Kind() {
	case value.KindInteger:
		i, _ := v.AsInteger()
		return fmt.Sprintf("%d", i)
	case value.KindString, value.KindBinary:
		raw, _ := v.AsBytes()
		return string(raw)
	case value.KindBoolean:
		b, _ := v.AsBoolean()
		return fmt.Sprintf("%t", b)
	case value.KindDouble:
		f, _ := v.AsDouble()
		return fmt.Sprintf("%v", f)
	default:
		return v.Kind().String()
	}
}

func arrowTypeFor(t schema.ColumnType) arrow.DataType {
	switch t {
	case schema.ColumnTypeInteger:
		return arrow.PrimitiveTypes.Int64
	case schema.ColumnTypeString:
		return arrow.BinaryTypes.String
	case schema.ColumnTypeBinary:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

func appendTyped(b array.Builder, t schema.ColumnType, v value.Value) error {
	switch t {
	case schema.ColumnTypeInteger:
		i, ok := v.AsInteger()
		if !ok {
			return fmt.Errorf("value is not an integer (kind %s)", v.Kind())
		}
		b.(*array.Int64Builder).Append(i)
	case schema.ColumnTypeString:
		raw, ok := v.AsBytes()
		if !ok {
			return fmt.Errorf("value is not a string (kind %s)", v.Kind())
		}
		b.(*array.StringBuilder).Append(string(raw))
	case schema.ColumnTypeBinary:
		raw, ok := v.AsBytes()
		if !ok {
			return fmt.Errorf("value is not binary (kind %s)", v.Kind())
		}
		b.(*array.BinaryBuilder).Append(raw)
	default:
		return fmt.Errorf("unsupported pkey column type %s", t)
	}
	return nil
}
