package entity

import (
	"reflect"

	gojson "github.com/goccy/go-json"
)

const (
	// IndexColumn is the synthesized position column of an array table.
	IndexColumn = "Index"
	// ValueColumn is the synthesized element column of an array table.
	ValueColumn = "Value"
)

// TableType is the reflect.Type of the generic row-table representation.
var TableType = reflect.TypeOf((*Table)(nil)).Elem()

// Column describes one table column.
type Column struct {
	Name  string
	Type  reflect.Type
	Index bool
}

// MarshalJSON renders the column type by name.
func (c Column) MarshalJSON() ([]byte, error) {
	typeName := ""
	if c.Type != nil {
		typeName = c.Type.String()
	}
	return gojson.Marshal(struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Index bool   `json:"index,omitempty"`
	}{c.Name, typeName, c.Index})
}

// Row maps column names to cell values.
type Row map[string]any

// Table is the generic row-table representation of structured values.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Values returns the cells of one column in row order.
func (t Table) Values(column string) []any {
	out := make([]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, r[column])
	}
	return out
}

// arrayColumns returns the Index/Value column pair for an element type.
func arrayColumns(elem reflect.Type) []Column {
	return []Column{
		{Name: IndexColumn, Type: reflect.TypeOf((*int)(nil)).Elem(), Index: true},
		{Name: ValueColumn, Type: elem},
	}
}
