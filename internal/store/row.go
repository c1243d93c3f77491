package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is an ordered column to value mapping. Column order is the order the
// backend returned them in and is kept when the row is serialized.
type Row struct {
	columns []string
	values  []any
}

func NewRow(columns []string, values []any) Row {
	if len(columns) != len(values) {
		panic(fmt.Sprintf("store: row has %d columns and %d values", len(columns), len(values)))
	}
	return Row{columns: columns, values: values}
}

func (r Row) Columns() []string {
	return r.columns
}

func (r Row) Values() []any {
	return r.values
}

func (r Row) Len() int {
	return len(r.columns)
}

func (r Row) Get(column string) (any, bool) {
	for i, name := range r.columns {
		if name == column {
			return r.values[i], true
		}
	}
	return nil, false
}

// String renders a column value the way it is shown to users and bound back
// into key lookups. Missing and NULL values render as "".
func (r Row) String(column string) string {
	value, ok := r.Get(column)
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.columns))
	for i, name := range r.columns {
		out[name] = r.values[i]
	}
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
