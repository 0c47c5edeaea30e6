package tabular

import (
	"github.com/crosscheckhq/crosscheck/pkg/errors"
)

// Record is a single row: a mapping from column name to cell value.
// Column order lives on the Dataset, not the record.
type Record map[string]Value

// Value returns the cell for a column, or null when the column is
// absent from the record.
func (r Record) Value(column string) Value {
	if v, ok := r[column]; ok {
		return v
	}
	return Null()
}

// Dataset is a named, ordered sequence of records. Datasets are
// immutable for the duration of a run: the constructor copies the
// record slice and accessors never expose internal state for mutation.
type Dataset struct {
	name    string
	columns []string
	records []Record
}

// NewDataset creates a dataset from column order and records.
func NewDataset(name string, columns []string, records []Record) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	recs := make([]Record, len(records))
	copy(recs, records)
	return &Dataset{name: name, columns: cols, records: recs}
}

// Name returns the dataset's identifier.
func (d *Dataset) Name() string {
	return d.name
}

// Columns returns the column names in load order.
func (d *Dataset) Columns() []string {
	cols := make([]string, len(d.columns))
	copy(cols, d.columns)
	return cols
}

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Record returns the record at index i.
func (d *Dataset) Record(i int) Record {
	return d.records[i]
}

// Records returns all records in order.
func (d *Dataset) Records() []Record {
	recs := make([]Record, len(d.records))
	copy(recs, d.records)
	return recs
}

// Column returns every cell of the named column in record order, or a
// ColumnError naming the available columns when it does not exist.
func (d *Dataset) Column(name string) ([]Value, error) {
	if !d.HasColumn(name) {
		return nil, errors.NewColumnError(name, d.name, d.Columns())
	}
	values := make([]Value, len(d.records))
	for i, rec := range d.records {
		values[i] = rec.Value(name)
	}
	return values, nil
}

// KeySet returns the set of canonical string forms of the named
// column's cells. Coercing to string before set membership avoids
// type-mismatch false negatives between "1" and 1.
func (d *Dataset) KeySet(column string) (map[string]struct{}, error) {
	values, err := d.Column(column)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(values))
	for _, v := range values {
		keys[v.String()] = struct{}{}
	}
	return keys, nil
}

// Index builds a lookup from canonical key string to the first record
// carrying that key in the named column.
func (d *Dataset) Index(keyColumn string) (map[string]Record, error) {
	if !d.HasColumn(keyColumn) {
		return nil, errors.NewColumnError(keyColumn, d.name, d.Columns())
	}
	index := make(map[string]Record, len(d.records))
	for _, rec := range d.records {
		key := rec.Value(keyColumn).String()
		if _, exists := index[key]; !exists {
			index[key] = rec
		}
	}
	return index, nil
}
