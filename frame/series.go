package frame

import (
	"io"
	"strconv"

	"github.com/ezoic/elasticity/pkg/errors"
)

// Series is a named column of numeric values aligned positionally with the rows of
// a Table, such as the test labels or the model predictions.
type Series struct {
	Name   string
	Values []float64
}

// Len returns the number of values.
func (s Series) Len() int { return len(s.Values) }

// ReadSeries reads one numeric column from a CSV with a header row. An empty column
// name selects the first column.
func ReadSeries(r io.Reader, column string) (Series, error) {
	t, err := ReadCSV(r)
	if err != nil {
		return Series{}, err
	}

	names := t.Names()
	if len(names) == 0 {
		return Series{}, errors.Wrap(errors.ErrEmptyData, "read series: no columns")
	}
	if column == "" {
		column = names[0]
	}

	values, err := t.Floats(column)
	if err != nil {
		return Series{}, err
	}
	return Series{Name: column, Values: values}, nil
}

// CheckAligned returns a DimensionError unless s has exactly one value per row of t.
func (s Series) CheckAligned(op string, t Table) error {
	if s.Len() != t.Nrow() {
		return errors.NewDimensionError(op, t.Nrow(), s.Len(), 0)
	}
	return nil
}

// Pick returns the values at the given positions, in order.
func (s Series) Pick(rows []int) (Series, error) {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if r < 0 || r >= len(s.Values) {
			return Series{}, errors.NewValueError("Pick", "row "+strconv.Itoa(r)+" out of range")
		}
		out[i] = s.Values[r]
	}
	return Series{Name: s.Name, Values: out}, nil
}
