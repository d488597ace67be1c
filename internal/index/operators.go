package index

import (
	"sort"
	"sync"

	"github.com/rat-data/colstore/internal/value"
)

// Matcher wraps a downstream Observer and drops rows failing a
// FieldCondition (spec §4.7.1's ExactMatcher/InsideMatcher/RangeMatcher,
// unified here by the Op already carried on FieldCondition).
type Matcher struct {
	graph *Graph
	self  NodeID
	cond  FieldCondition
}

// NewMatcher registers a Matcher in graph and returns its id; connect it
// to its downstream node(s) with graph.Connect.
func NewMatcher(graph *Graph, cond FieldCondition) NodeID {
	m := &Matcher{graph: graph, cond: cond}
	id := graph.Add(m)
	m.self = id
	return id
}

func (m *Matcher) OnNext(row value.Row) error {
	v, ok := row.Attr(m.cond.Field)
	if !ok {
		v, ok = row.Key.Get(m.cond.Field)
	}
	if !ok || !m.cond.Match(v) {
		return nil
	}
	return m.graph.EmitNext(m.self, row)
}

func (m *Matcher) OnCompletion() { m.graph.EmitCompletion(m.self) }
func (m *Matcher) OnError(err error) { m.graph.EmitError(m.self, err) }

// Sorter buffers every row until upstream completes, then emits them in
// sorted order (spec §4.7.1: "Sorter(field, direction)").
type Sorter struct {
	graph     *Graph
	self      NodeID
	field     string
	direction int // +1 or -1
	rows      []value.Row
}

func NewSorter(graph *Graph, field string, direction int) NodeID {
	s := &Sorter{graph: graph, field: field, direction: direction}
	id := graph.Add(s)
	s.self = id
	return id
}

func (s *Sorter) OnNext(row value.Row) error {
	s.rows = append(s.rows, row)
	return nil
}

func (s *Sorter) fieldValue(row value.Row) value.Value {
	if v, ok := row.Attr(s.field); ok {
		return v
	}
	v, _ := row.Key.Get(s.field)
	return v
}

func (s *Sorter) OnCompletion() {
	sort.SliceStable(s.rows, func(i, j int) bool {
		o := value.Compare(s.fieldValue(s.rows[i]), s.fieldValue(s.rows[j]))
		if s.direction < 0 {
			return o == value.Greater
		}
		return o == value.Less
	})
	for _, row := range s.rows {
		if err := s.graph.EmitNext(s.self, row); err != nil {
			s.graph.EmitError(s.self, err)
			return
		}
	}
	s.graph.EmitCompletion(s.self)
}

func (s *Sorter) OnError(err error) { s.graph.EmitError(s.self, err) }

// QuickQuit is the shared flag SliceWindow sets once it has emitted
// limit rows; RowProducer implementations poll it between pages (spec
// §4.7.1, §4.7.5).
type QuickQuit struct {
	mu   sync.Mutex
	quit bool
}

func (q *QuickQuit) Set() {
	q.mu.Lock()
	q.quit = true
	q.mu.Unlock()
}

func (q *QuickQuit) Get() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.quit
}

// SliceWindow skips start rows, emits up to limit (0 means unbounded),
// then sets quickQuit (spec §4.7.1).
type SliceWindow struct {
	graph     *Graph
	self      NodeID
	start     int
	limit     int
	quickQuit *QuickQuit
	seen      int
	emitted   int
}

func NewSliceWindow(graph *Graph, start, limit int, quickQuit *QuickQuit) NodeID {
	w := &SliceWindow{graph: graph, start: start, limit: limit, quickQuit: quickQuit}
	id := graph.Add(w)
	w.self = id
	return id
}

func (w *SliceWindow) OnNext(row value.Row) error {
	if w.limit > 0 && w.emitted >= w.limit {
		if w.quickQuit != nil {
			w.quickQuit.Set()
		}
		return nil
	}
	if w.seen < w.start {
		w.seen++
		return nil
	}
	w.emitted++
	err := w.graph.EmitNext(w.self, row)
	if w.limit > 0 && w.emitted >= w.limit && w.quickQuit != nil {
		w.quickQuit.Set()
	}
	return err
}

func (w *SliceWindow) OnCompletion() { w.graph.EmitCompletion(w.self) }
func (w *SliceWindow) OnError(err error) { w.graph.EmitError(w.self, err) }

// JSONRow is the projected shape RowToJson emits (spec §4.7.1).
type JSONRow map[string]any

// RowToJson projects each row to a JSONRow according to projection
// (empty means all columns), collecting into Rows. It is the pipeline's
// default terminal sink; RowToArrow can take its place.
type RowToJson struct {
	graph      *Graph
	self       NodeID
	projection []string
	Rows       []JSONRow
	Err        error
	Done       chan struct{}
}

func NewRowToJson(graph *Graph, projection []string) (NodeID, *RowToJson) {
	r := &RowToJson{projection: projection, Done: make(chan struct{})}
	id := graph.Add(r)
	r.self = id
	r.graph = graph
	return id, r
}

func (r *RowToJson) OnNext(row value.Row) error {
	out := JSONRow{}
	include := func(name string, v value.Value) {
		if len(r.projection) > 0 && !containsString(r.projection, name) {
			return
		}
		out[name] = jsonValue(v)
	}
	for _, c := range row.Key.Columns {
		include(c.Name, c.Value)
	}
	for _, a := range row.Attributes {
		include(a.Name, a.Value)
	}
	r.Rows = append(r.Rows, out)
	return nil
}

func (r *RowToJson) OnCompletion() { close(r.Done) }

func (r *RowToJson) OnError(err error) {
	if r.Err == nil {
		r.Err = err
	}
	close(r.Done)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func jsonValue(v value.Value) any {
	switch v.Kind() {
	case value.KindInteger:
		i, _ := v.AsInteger()
		return i
	case value.KindString:
		b, _ := v.AsBytes()
		return string(b)
	case value.KindBinary:
		b, _ := v.AsBytes()
		return b
	case value.KindBoolean:
		b, _ := v.AsBoolean()
		return b
	case value.KindDouble:
		f, _ := v.AsDouble()
		return f
	default:
		return nil
	}
}
