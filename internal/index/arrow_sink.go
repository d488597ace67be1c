package index

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/rat-data/colstore/internal/arrowutil"
	"github.com/rat-data/colstore/internal/schema"
	"github.com/rat-data/colstore/internal/value"
)

// RowToArrow is an alternate terminal operator to RowToJson: it buffers
// every row until upstream completes, then converts the whole batch to
// one Arrow record via arrowutil.RowsToRecord (spec §4.9).
type RowToArrow struct {
	graph *Graph
	self  NodeID
	table *schema.TableSchema

	rows   []*value.Row
	Record arrow.Record
	Err    error
	Done   chan struct{}
}

func NewRowToArrow(graph *Graph, table *schema.TableSchema) (NodeID, *RowToArrow) {
	r := &RowToArrow{table: table, Done: make(chan struct{})}
	id := graph.Add(r)
	r.self = id
	r.graph = graph
	return id, r
}

func (r *RowToArrow) OnNext(row value.Row) error {
	r.rows = append(r.rows, &row)
	return nil
}

func (r *RowToArrow) OnCompletion() {
	rec, err := arrowutil.RowsToRecord(r.rows, r.table)
	if err != nil {
		r.Err = err
		close(r.Done)
		return
	}
	r.Record = rec
	close(r.Done)
}

func (r *RowToArrow) OnError(err error) {
	if r.Err == nil {
		r.Err = err
	}
	close(r.Done)
}
