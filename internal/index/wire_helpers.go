package index

import (
	"github.com/rat-data/colstore/internal/value"
	"github.com/rat-data/colstore/internal/wireclient"
)

func wireclientPutRowRequest(table string, row value.Row) wireclient.PutRowRequest {
	return wireclient.PutRowRequest{TableName: table, Row: row}
}

func wireclientDeleteRowRequest(table string, pk value.PrimaryKey) wireclient.DeleteRowRequest {
	return wireclient.DeleteRowRequest{TableName: table, PrimaryKey: pk}
}

func wireRangeRequest(table string, start, end value.PrimaryKey) wireclient.GetRangeRequest {
	return wireclient.GetRangeRequest{TableName: table, Start: start, End: end}
}
