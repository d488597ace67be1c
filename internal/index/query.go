package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/rat-data/colstore/internal/bulk"
	"github.com/rat-data/colstore/internal/schema"
	"github.com/rat-data/colstore/internal/value"
)

// Overlay executes Find/Insert/Delete/Update/Upsert against one
// Collection through a bulk.Coordinator (spec §4.7.2-§4.7.6).
type Overlay struct {
	coord *bulk.Coordinator
	coll  schema.Collection
}

func NewOverlay(coord *bulk.Coordinator, coll schema.Collection) *Overlay {
	return &Overlay{coord: coord, coll: coll}
}

// OrderBy is Find's optional single-key sort (spec §4.7.1's Sorter).
type OrderBy struct {
	Field     string
	Direction int // +1 or -1
}

// columnBinding classifies one pkey column against a condition: point-
// fixed (contributes to the $in cross product), range-fixed (only legal
// for the single column immediately after the point-fixed prefix), or
// unbounded (clamped to InfMin/InfMax).
type columnBinding struct {
	def  schema.PkeyColDef
	kind string // "point", "range", "unbounded"
	fc   FieldCondition
}

func bindColumns(defs []schema.PkeyColDef, cond Condition) []columnBinding {
	bindings := make([]columnBinding, len(defs))
	rangeUsed := false
	for i, def := range defs {
		attrNames := def.Expr.AttrNames()
		if !rangeUsed && len(attrNames) > 0 {
			allPoint := true
			for _, a := range attrNames {
				fc, ok := cond.Get(a)
				if !ok || !fc.IsPointFixed() {
					allPoint = false
					break
				}
			}
			if allPoint {
				bindings[i] = columnBinding{def: def, kind: "point"}
				continue
			}
			if !def.Expr.IsHashed() && len(attrNames) == 1 {
				if fc, ok := cond.Get(attrNames[0]); ok && fc.IsRangeFixed() {
					bindings[i] = columnBinding{def: def, kind: "range", fc: fc}
					rangeUsed = true
					continue
				}
			}
		}
		bindings[i] = columnBinding{def: def, kind: "unbounded"}
		rangeUsed = true
	}
	return bindings
}

func fullyPointFixed(bindings []columnBinding) bool {
	for _, b := range bindings {
		if b.kind != "point" {
			return false
		}
	}
	return true
}

// crossProductCombos enumerates every combination of $in options across
// the source attributes read by the point-fixed columns (spec §4.7.5:
// "$in on multiple columns multiplies request count").
func crossProductCombos(bindings []columnBinding, cond Condition) []map[string]value.Value {
	seen := map[string]bool{}
	var names []string
	for _, b := range bindings {
		if b.kind != "point" {
			continue
		}
		for _, a := range b.def.Expr.AttrNames() {
			if !seen[a] {
				seen[a] = true
				names = append(names, a)
			}
		}
	}
	sort.Strings(names)

	combos := []map[string]value.Value{{}}
	for _, name := range names {
		fc, _ := cond.Get(name)
		opts := fc.InOptions()
		var next []map[string]value.Value
		for _, combo := range combos {
			for _, opt := range opts {
				nc := make(map[string]value.Value, len(combo)+1)
				for k, v := range combo {
					nc[k] = v
				}
				nc[name] = opt
				next = append(next, nc)
			}
		}
		combos = next
	}
	return combos
}

func attrLookup(combo map[string]value.Value) func(string) (value.Value, bool) {
	return func(name string) (value.Value, bool) {
		v, ok := combo[name]
		return v, ok
	}
}

func pointKey(defs []schema.PkeyColDef, combo map[string]value.Value) (value.PrimaryKey, error) {
	var cols []value.PrimaryKeyColumn
	lookup := attrLookup(combo)
	for _, def := range defs {
		v, err := schema.Eval(def.Expr, lookup)
		if err != nil {
			return value.PrimaryKey{}, err
		}
		cols = append(cols, value.PrimaryKeyColumn{Name: def.Name, Value: v})
	}
	return value.PrimaryKey{Columns: cols}, nil
}

// rangeBounds builds the inclusive Start / exclusive End pkeys for one
// combo of the point-fixed prefix (spec §4.7.5's GetRange construction,
// including the successor-based exclusive-upper-bound rule and the
// InfMin/InfMax clamp for unbounded trailing columns).
func rangeBounds(bindings []columnBinding, combo map[string]value.Value) (value.PrimaryKey, value.PrimaryKey, error) {
	lookup := attrLookup(combo)
	var start, end []value.PrimaryKeyColumn
	for _, b := range bindings {
		switch b.kind {
		case "point":
			v, err := schema.Eval(b.def.Expr, lookup)
			if err != nil {
				return value.PrimaryKey{}, value.PrimaryKey{}, err
			}
			start = append(start, value.PrimaryKeyColumn{Name: b.def.Name, Value: v})
			end = append(end, value.PrimaryKeyColumn{Name: b.def.Name, Value: v})
		case "range":
			lower, upper, hasLower, hasUpper := b.fc.Bounds()
			lv, uv := value.InfMin(), value.InfMax()
			if hasLower {
				lv = lower
				if b.fc.ExclusiveLower() {
					if succ, err := value.Successor(lv); err == nil {
						lv = succ
					}
				}
			}
			if hasUpper {
				uv = upper
				if !b.fc.ExclusiveUpper() {
					if succ, err := value.Successor(uv); err == nil {
						uv = succ
					}
				}
			}
			start = append(start, value.PrimaryKeyColumn{Name: b.def.Name, Value: lv})
			end = append(end, value.PrimaryKeyColumn{Name: b.def.Name, Value: uv})
		default: // unbounded
			start = append(start, value.PrimaryKeyColumn{Name: b.def.Name, Value: value.InfMin()})
			end = append(end, value.PrimaryKeyColumn{Name: b.def.Name, Value: value.InfMax()})
		}
	}
	return value.PrimaryKey{Columns: start}, value.PrimaryKey{Columns: end}, nil
}

// rowCollector is the raw-row sink used internally by Delete/Update,
// which need value.Row rather than RowToJson's projected map.
type rowCollector struct {
	graph *Graph
	self  NodeID
	rows  []value.Row
	err   error
	done  chan struct{}
}

func newRowCollector(graph *Graph) (NodeID, *rowCollector) {
	c := &rowCollector{done: make(chan struct{})}
	id := graph.Add(c)
	c.self = id
	c.graph = graph
	return id, c
}

func (c *rowCollector) OnNext(row value.Row) error {
	c.rows = append(c.rows, row)
	return nil
}
func (c *rowCollector) OnCompletion() { close(c.done) }
func (c *rowCollector) OnError(err error) {
	if c.err == nil {
		c.err = err
	}
	close(c.done)
}

// indexForTable finds the IndexSchema whose table name matches, if any.
func (o *Overlay) indexForTable(name string) (schema.IndexSchema, bool) {
	for _, ix := range o.coll.Indexes {
		if ix.Table.Name == name {
			return ix, true
		}
	}
	return schema.IndexSchema{}, false
}

// findRows runs the full operator pipeline of spec §4.7.5 and returns the
// raw rows it produces, attaching matchers/sorter/window but a
// rowCollector sink instead of RowToJson.
func (o *Overlay) findRows(ctx context.Context, cond Condition, start, limit int, order *OrderBy) ([]value.Row, error) {
	cand := SelectTable(o.coll, cond)

	var defs []schema.PkeyColDef
	var columnsToGet []string
	if cand.IsIndex {
		ix, _ := o.indexForTable(cand.TableName)
		defs = ix.PkeyDefs
	} else {
		defs = o.coll.PrimaryPkeyDefs
	}

	bindings := bindColumns(defs, cond)
	graph := NewGraph()
	quickQuit := &QuickQuit{}

	sinkID, sink := newRowCollector(graph)
	tail := sinkID
	if limit > 0 || start > 0 {
		w := NewSliceWindow(graph, start, limit, quickQuit)
		graph.Connect(w, tail)
		tail = w
	}
	if order != nil {
		s := NewSorter(graph, order.Field, order.Direction)
		graph.Connect(s, tail)
		tail = s
	}
	for _, fc := range cond.Fields {
		m := NewMatcher(graph, fc)
		graph.Connect(m, tail)
		tail = m
	}

	producerTail := tail
	if cand.IsIndex {
		p := NewIndexRowToPrimary(ctx, graph, o.coord, o.coll.Primary.Name, o.coll.PrimaryPkeyDefs, columnsToGet)
		graph.Connect(p, tail)
		producerTail = p
	}

	if fullyPointFixed(bindings) {
		combos := crossProductCombos(bindings, cond)
		keys := make([]value.PrimaryKey, 0, len(combos))
		for _, combo := range combos {
			k, err := pointKey(defs, combo)
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
		producerID := graph.Add(&noopObserver{})
		graph.Connect(producerID, producerTail)
		if err := RunGetRows(graph, producerID, o.coord, cand.TableName, keys, nil); err != nil {
			return nil, err
		}
	} else {
		combos := crossProductCombos(bindings, cond)
		for _, combo := range combos {
			startPk, endPk, err := rangeBounds(bindings, combo)
			if err != nil {
				return nil, err
			}
			producerID := graph.Add(&noopObserver{})
			graph.Connect(producerID, producerTail)
			req := wireRangeRequest(cand.TableName, startPk, endPk)
			if err := RunGetRange(ctx, o.coord, graph, producerID, req, quickQuit); err != nil {
				return nil, err
			}
		}
	}

	<-sink.done
	if sink.err != nil {
		return nil, sink.err
	}
	return sink.rows, nil
}

// Find implements spec §4.7.5 end to end, projecting the result through
// RowToJson.
func (o *Overlay) Find(ctx context.Context, projection []string, cond Condition, start, limit int, order *OrderBy) ([]JSONRow, error) {
	rows, err := o.findRows(ctx, cond, start, limit, order)
	if err != nil {
		return nil, err
	}
	graph := NewGraph()
	_, sink := NewRowToJson(graph, projection)
	for _, row := range rows {
		if err := sink.OnNext(row); err != nil {
			return nil, err
		}
	}
	sink.OnCompletion()
	<-sink.Done
	return sink.Rows, sink.Err
}

// FindArrow runs the same query as Find but projects the result through
// RowToArrow instead of RowToJson (spec §4.9), returning a single Arrow
// record batch. table should be the schema of whichever table the query
// actually resolves the row against: the primary table, since findRows
// always joins index hits back to their primary row before returning
// (spec §4.7.3's join-back semantics).
func (o *Overlay) FindArrow(ctx context.Context, cond Condition, start, limit int, order *OrderBy) (arrow.Record, error) {
	rows, err := o.findRows(ctx, cond, start, limit, order)
	if err != nil {
		return nil, err
	}
	graph := NewGraph()
	_, sink := NewRowToArrow(graph, &o.coll.Primary)
	for _, row := range rows {
		if err := sink.OnNext(row); err != nil {
			return nil, err
		}
	}
	sink.OnCompletion()
	<-sink.Done
	return sink.Record, sink.Err
}

// noopObserver is a placeholder arena node used purely so a producer's
// emit path has a stable NodeID to call EmitNext/EmitCompletion/EmitError
// on; it forwards nothing on its own, the Connect call wires its single
// child directly into the matcher/sorter chain.
type noopObserver struct{}

func (noopObserver) OnNext(value.Row) error { return nil }
func (noopObserver) OnCompletion()           {}
func (noopObserver) OnError(error)           {}

// Insert implements the two-phase fan-out of spec §4.7.2.
func (o *Overlay) Insert(ctx context.Context, data map[string]value.Value) error {
	if !hasAll(data, o.coll.RequiredAttrs) {
		return fmt.Errorf("index: insert into %q missing a required attribute", o.coll.Name)
	}
	lookup := func(name string) (value.Value, bool) {
		v, ok := data[name]
		return v, ok
	}

	var indexFutures []*bulk.Future
	for _, ix := range o.coll.Indexes {
		if !hasAll(data, ix.RequiredAttrs) {
			continue
		}
		row, err := buildRow(ix.PkeyDefs, lookup, data)
		if err != nil {
			return err
		}
		indexFutures = append(indexFutures, o.coord.SubmitPut(ix.Table.Name, wireclientPutRowRequest(ix.Table.Name, row)))
	}
	for _, f := range indexFutures {
		if res := f.Wait(); res.Err != nil {
			return res.Err
		}
	}

	primaryRow, err := buildRow(o.coll.PrimaryPkeyDefs, lookup, data)
	if err != nil {
		return err
	}
	f := o.coord.SubmitPut(o.coll.Primary.Name, wireclientPutRowRequest(o.coll.Primary.Name, primaryRow))
	if res := f.Wait(); res.Err != nil {
		return res.Err
	}
	return nil
}

// Delete implements spec §4.7.3's non-atomic find-then-delete.
func (o *Overlay) Delete(ctx context.Context, cond Condition) error {
	rows, err := o.findRows(ctx, cond, 0, 0, nil)
	if err != nil {
		return err
	}
	for _, row := range rows {
		primaryKey, err := projectPrimaryKey(o.coll.PrimaryPkeyDefs, row)
		if err != nil {
			return err
		}
		f := o.coord.SubmitDelete(o.coll.Primary.Name, wireclientDeleteRowRequest(o.coll.Primary.Name, primaryKey))
		if res := f.Wait(); res.Err != nil {
			return res.Err
		}
		for _, ix := range o.coll.Indexes {
			ixKey, err := projectPrimaryKeyFromRow(ix.PkeyDefs, row)
			if err != nil {
				continue
			}
			df := o.coord.SubmitDelete(ix.Table.Name, wireclientDeleteRowRequest(ix.Table.Name, ixKey))
			if res := df.Wait(); res.Err != nil {
				return res.Err
			}
		}
	}
	return nil
}

// Mutation is Update/Upsert's partial-row modifier: Set overrides or adds
// columns, Unset removes them (spec §4.7.6).
type Mutation struct {
	Set   map[string]value.Value
	Unset []string
}

func (o *Overlay) conditionIsPointOnPrimaryPkey(cond Condition) bool {
	for _, def := range o.coll.PrimaryPkeyDefs {
		attrNames := def.Expr.AttrNames()
		if len(attrNames) != 1 || attrNames[0] != def.Name {
			return false
		}
		fc, ok := cond.Get(def.Name)
		if !ok || !fc.IsPointFixed() {
			return false
		}
	}
	return true
}

// Update implements spec §4.7.6: find, merge, delete, reinsert.
func (o *Overlay) Update(ctx context.Context, cond Condition, mut Mutation) error {
	if !o.conditionIsPointOnPrimaryPkey(cond) {
		return fmt.Errorf("index: update condition must be a point query on the primary key")
	}
	rows, err := o.findRows(ctx, cond, 0, 0, nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		merged := mergeRow(row, mut)
		if err := o.Delete(ctx, cond); err != nil {
			return err
		}
		if err := o.Insert(ctx, merged); err != nil {
			return err
		}
	}
	return nil
}

// Upsert implements spec §4.7.6's Update variant where a zero-result find
// becomes an insert; more than one match is rejected.
func (o *Overlay) Upsert(ctx context.Context, cond Condition, mut Mutation) error {
	if !o.conditionIsPointOnPrimaryPkey(cond) {
		return fmt.Errorf("index: upsert condition must be a point query on the primary key")
	}
	rows, err := o.findRows(ctx, cond, 0, 0, nil)
	if err != nil {
		return err
	}
	switch len(rows) {
	case 0:
		return o.Insert(ctx, mut.Set)
	case 1:
		merged := mergeRow(rows[0], mut)
		if err := o.Delete(ctx, cond); err != nil {
			return err
		}
		return o.Insert(ctx, merged)
	default:
		return fmt.Errorf("index: upsert condition matched more than one row")
	}
}

func hasAll(data map[string]value.Value, required []string) bool {
	for _, name := range required {
		if _, ok := data[name]; !ok {
			return false
		}
	}
	return true
}

func buildRow(defs []schema.PkeyColDef, lookup func(string) (value.Value, bool), data map[string]value.Value) (value.Row, error) {
	var cols []value.PrimaryKeyColumn
	for _, def := range defs {
		v, err := schema.Eval(def.Expr, lookup)
		if err != nil {
			return value.Row{}, fmt.Errorf("index: evaluating pkey column %q: %w", def.Name, err)
		}
		cols = append(cols, value.PrimaryKeyColumn{Name: def.Name, Value: v})
	}
	var attrs []value.Attribute
	for name, v := range data {
		attrs = append(attrs, value.Attribute{Name: name, Value: v})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	return value.Row{Key: value.PrimaryKey{Columns: cols}, Attributes: attrs}, nil
}

// projectPrimaryKey reads the primary pkey columns straight off row.Key.
// Used when row already came from the primary table.
func projectPrimaryKey(defs []schema.PkeyColDef, row value.Row) (value.PrimaryKey, error) {
	var cols []value.PrimaryKeyColumn
	for _, def := range defs {
		v, ok := row.Key.Get(def.Name)
		if !ok {
			v, ok = row.Attr(def.Name)
		}
		if !ok {
			return value.PrimaryKey{}, fmt.Errorf("index: row missing primary key column %q", def.Name)
		}
		cols = append(cols, value.PrimaryKeyColumn{Name: def.Name, Value: v})
	}
	return value.PrimaryKey{Columns: cols}, nil
}

// projectPrimaryKeyFromRow evaluates an index table's own pkey expression
// tree against a (now joined) primary row's attributes, used by Delete to
// find that row's corresponding index entry.
func projectPrimaryKeyFromRow(defs []schema.PkeyColDef, row value.Row) (value.PrimaryKey, error) {
	lookup := func(name string) (value.Value, bool) {
		if v, ok := row.Attr(name); ok {
			return v, true
		}
		return row.Key.Get(name)
	}
	var cols []value.PrimaryKeyColumn
	for _, def := range defs {
		v, err := schema.Eval(def.Expr, lookup)
		if err != nil {
			return value.PrimaryKey{}, err
		}
		cols = append(cols, value.PrimaryKeyColumn{Name: def.Name, Value: v})
	}
	return value.PrimaryKey{Columns: cols}, nil
}

func mergeRow(row value.Row, mut Mutation) map[string]value.Value {
	merged := make(map[string]value.Value, len(row.Attributes)+len(mut.Set))
	for _, c := range row.Key.Columns {
		merged[c.Name] = c.Value
	}
	for _, a := range row.Attributes {
		merged[a.Name] = a.Value
	}
	for _, name := range mut.Unset {
		delete(merged, name)
	}
	for name, v := range mut.Set {
		merged[name] = v
	}
	return merged
}
