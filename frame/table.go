// Package frame holds the tabular data the dashboard evaluates: a feature Table read
// from CSV and a Series of label or prediction values aligned row by row with it.
//
// Table wraps a github.com/go-gota/gota DataFrame and is immutable; every operation
// returns a new Table.
package frame

import (
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/ezoic/elasticity/pkg/errors"
)

// Table is a feature table: rows are observations, columns are named features.
type Table struct {
	df dataframe.DataFrame
}

// ReadCSV reads a CSV with a header row, detecting column types.
func ReadCSV(r io.Reader) (Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	)
	if df.Err != nil {
		return Table{}, errors.Wrap(df.Err, "read csv")
	}
	return Table{df: df}, nil
}

// FromColumns builds a table from equally long float columns, in the given order.
func FromColumns(names []string, columns [][]float64) (Table, error) {
	if len(names) != len(columns) {
		return Table{}, errors.NewDimensionError("FromColumns", len(names), len(columns), 1)
	}
	cols := make([]series.Series, len(names))
	for i, name := range names {
		if len(columns[i]) != len(columns[0]) {
			return Table{}, errors.NewDimensionError("FromColumns", len(columns[0]), len(columns[i]), 0)
		}
		cols[i] = series.New(columns[i], series.Float, name)
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return Table{}, errors.Wrap(df.Err, "build table")
	}
	return Table{df: df}, nil
}

// Names returns the column names in order.
func (t Table) Names() []string { return t.df.Names() }

// Nrow returns the number of rows.
func (t Table) Nrow() int { return t.df.Nrow() }

// HasColumn reports whether the table has a column called name.
func (t Table) HasColumn(name string) bool {
	for _, n := range t.df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// IsNumeric reports whether the named column holds numbers.
func (t Table) IsNumeric(name string) bool {
	if !t.HasColumn(name) {
		return false
	}
	switch t.df.Col(name).Type() {
	case series.Int, series.Float, series.Bool:
		return true
	default:
		return false
	}
}

// Records returns the textual value of every cell in the named column. Float cells
// are written with FormatFloat.
func (t Table) Records(name string) ([]string, error) {
	if !t.HasColumn(name) {
		return nil, errors.NewValueError("Records", "no column "+strconv.Quote(name))
	}
	col := t.df.Col(name)
	if col.Type() != series.Float {
		return col.Records(), nil
	}
	values := col.Float()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = FormatFloat(v)
	}
	return out, nil
}

// FormatFloat returns the shortest decimal text that parses back to v.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Floats returns the named column as float64 values. String columns are rejected.
func (t Table) Floats(name string) ([]float64, error) {
	if !t.HasColumn(name) {
		return nil, errors.NewValueError("Floats", "no column "+strconv.Quote(name))
	}
	if !t.IsNumeric(name) {
		return nil, errors.NewValueError("Floats", "column "+strconv.Quote(name)+" is not numeric")
	}
	return t.df.Col(name).Float(), nil
}

// Select returns a table with only the named columns, in the given order.
func (t Table) Select(names ...string) (Table, error) {
	for _, n := range names {
		if !t.HasColumn(n) {
			return Table{}, errors.NewValueError("Select", "no column "+strconv.Quote(n))
		}
	}
	df := t.df.Select(names)
	if df.Err != nil {
		return Table{}, errors.Wrap(df.Err, "select columns")
	}
	return Table{df: df}, nil
}

// Drop returns a table without the named column. Dropping a missing column is a no-op.
func (t Table) Drop(name string) Table {
	if !t.HasColumn(name) {
		return t
	}
	return Table{df: t.df.Drop(name)}
}

// Subset returns the rows at the given positions, in order. rows must not be empty.
func (t Table) Subset(rows []int) (Table, error) {
	if len(rows) == 0 {
		return Table{}, errors.Wrap(errors.ErrEmptyData, "subset: no rows")
	}
	df := t.df.Subset(rows)
	if df.Err != nil {
		return Table{}, errors.Wrap(df.Err, "subset rows")
	}
	return Table{df: df}, nil
}

// WithColumn returns a table with a float column appended, or replaced when a
// column of that name already exists.
func (t Table) WithColumn(name string, values []float64) (Table, error) {
	if len(values) != t.Nrow() {
		return Table{}, errors.NewDimensionError("WithColumn", t.Nrow(), len(values), 0)
	}
	df := t.df.Mutate(series.New(values, series.Float, name))
	if df.Err != nil {
		return Table{}, errors.Wrapf(df.Err, "add column %q", name)
	}
	return Table{df: df}, nil
}

// WriteCSV writes the table with a header row. Float cells keep full precision.
func (t Table) WriteCSV(w io.Writer) error {
	df := t.df
	for _, name := range df.Names() {
		if df.Col(name).Type() != series.Float {
			continue
		}
		records, err := t.Records(name)
		if err != nil {
			return err
		}
		if df = df.Mutate(series.New(records, series.String, name)); df.Err != nil {
			return errors.Wrapf(df.Err, "format column %q", name)
		}
	}
	if err := df.WriteCSV(w); err != nil {
		return errors.Wrap(err, "write csv")
	}
	return nil
}

// Distinct returns the sorted unique textual values of the named column. Numeric
// columns sort by value, others lexically.
func (t Table) Distinct(name string) ([]string, error) {
	records, err := t.Records(name)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}

	if t.IsNumeric(name) {
		sort.SliceStable(out, func(i, j int) bool {
			return parseOrNaN(out[i]) < parseOrNaN(out[j])
		})
	} else {
		sort.Strings(out)
	}
	return out, nil
}

func parseOrNaN(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
