package index

import (
	"context"

	"github.com/rat-data/colstore/internal/bulk"
	"github.com/rat-data/colstore/internal/schema"
	"github.com/rat-data/colstore/internal/value"
	"github.com/rat-data/colstore/internal/wireclient"
)

// RunGetRange drives a paginated GetRange through coord, emitting each row
// into graph at self, auto-issuing the next page until the response is no
// longer truncated or quickQuit is set (spec §4.7.1's RowProducer).
func RunGetRange(ctx context.Context, coord *bulk.Coordinator, graph *Graph, self NodeID, req wireclient.GetRangeRequest, quickQuit *QuickQuit) error {
	for {
		f := coord.SubmitGetRange(ctx, req)
		res := f.Wait()
		if res.Err != nil {
			graph.EmitError(self, res.Err)
			return res.Err
		}
		for _, row := range res.Resp.Rows {
			if err := graph.EmitNext(self, row); err != nil {
				graph.EmitError(self, err)
				return err
			}
			if quickQuit != nil && quickQuit.Get() {
				graph.EmitCompletion(self)
				return nil
			}
		}
		if !res.Resp.Truncated || res.Resp.NextStart == nil || (quickQuit != nil && quickQuit.Get()) {
			graph.EmitCompletion(self)
			return nil
		}
		req.Start = *res.Resp.NextStart
	}
}

// RunGetRows submits one GetRow per key through coord. They land in the
// same tick and get folded into a single BatchGetRow RPC by the
// coordinator, then RunGetRows emits the rows found, in key order,
// skipping misses silently (a $in query is a set of point lookups, not a
// join; a miss just means that key has no row). This is the RowProducer
// variant spec §4.7.1 describes for point/in-fixed queries.
func RunGetRows(graph *Graph, self NodeID, coord *bulk.Coordinator, table string, keys []value.PrimaryKey, columnsToGet []string) error {
	futures := make([]*bulk.Future, len(keys))
	for i, k := range keys {
		futures[i] = coord.SubmitGet(table, wireclient.BatchGetRowItem{PrimaryKey: k, ColumnsToGet: columnsToGet})
	}
	for _, f := range futures {
		res := f.Wait()
		if res.Err != nil {
			graph.EmitError(self, res.Err)
			return res.Err
		}
		if !res.Found {
			continue
		}
		if err := graph.EmitNext(self, res.Row); err != nil {
			graph.EmitError(self, err)
			return err
		}
	}
	graph.EmitCompletion(self)
	return nil
}

// IndexRowToPrimary receives rows from an index table's producer,
// re-projects them into the primary table's pkey columns by evaluating the
// primary table's pkey expression tree against the index row's own
// attributes, and issues one GetRow per row into the coordinator,
// serializing the resulting primary rows downstream. Index rows whose
// primary counterpart is missing are dropped rather than treated as an
// error (spec §4.7.3 tolerates orphaned index entries left behind by the
// non-atomic delete).
type IndexRowToPrimary struct {
	graph        *Graph
	self         NodeID
	ctx          context.Context
	coord        *bulk.Coordinator
	primaryTable string
	pkeyDefs     []schema.PkeyColDef
	columnsToGet []string
	err          error
}

func NewIndexRowToPrimary(ctx context.Context, graph *Graph, coord *bulk.Coordinator, primaryTable string, pkeyDefs []schema.PkeyColDef, columnsToGet []string) NodeID {
	p := &IndexRowToPrimary{
		ctx:          ctx,
		coord:        coord,
		primaryTable: primaryTable,
		pkeyDefs:     pkeyDefs,
		columnsToGet: columnsToGet,
	}
	id := graph.Add(p)
	p.self = id
	p.graph = graph
	return id
}

func (p *IndexRowToPrimary) OnNext(indexRow value.Row) error {
	attr := func(name string) (value.Value, bool) {
		if v, ok := indexRow.Attr(name); ok {
			return v, true
		}
		return indexRow.Key.Get(name)
	}
	var cols []value.PrimaryKeyColumn
	for _, def := range p.pkeyDefs {
		v, err := schema.Eval(def.Expr, attr)
		if err != nil {
			// Source attribute missing from this index row: treat like a
			// miss rather than failing the whole query.
			return nil
		}
		cols = append(cols, value.PrimaryKeyColumn{Name: def.Name, Value: v})
	}
	pkey := value.PrimaryKey{Columns: cols}

	f := p.coord.SubmitGet(p.primaryTable, wireclient.BatchGetRowItem{PrimaryKey: pkey, ColumnsToGet: p.columnsToGet})
	res := f.Wait()
	if res.Err != nil {
		return res.Err
	}
	if !res.Found {
		return nil
	}
	return p.graph.EmitNext(p.self, res.Row)
}

func (p *IndexRowToPrimary) OnCompletion() { p.graph.EmitCompletion(p.self) }

func (p *IndexRowToPrimary) OnError(err error) {
	p.err = err
	p.graph.EmitError(p.self, err)
}
