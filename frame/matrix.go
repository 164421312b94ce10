package frame

import (
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/elasticity/pkg/errors"
)

// Encoder converts a categorical column into numbers.
type Encoder interface {
	// Encodes reports whether the encoder knows the column.
	Encodes(column string) bool
	// Transform maps the textual values of the column to numbers.
	Transform(column string, values []string) ([]float64, error)
}

// Matrix converts the named columns of t into an (n_rows, len(columns)) matrix in the
// given column order. Columns known to enc are encoded from their textual values;
// every other column must be numeric. enc may be nil.
func Matrix(t Table, columns []string, enc Encoder) (*mat.Dense, error) {
	n := t.Nrow()
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "matrix: table has no rows")
	}
	if len(columns) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "matrix: no columns")
	}

	X := mat.NewDense(n, len(columns), nil)
	for j, name := range columns {
		if !t.HasColumn(name) {
			return nil, errors.NewValueError("Matrix", "missing feature column "+strconv.Quote(name))
		}

		var values []float64
		var err error
		if enc != nil && enc.Encodes(name) {
			var records []string
			if records, err = t.Records(name); err == nil {
				values, err = enc.Transform(name, records)
			}
		} else {
			values, err = t.Floats(name)
		}
		if err != nil {
			return nil, err
		}

		X.SetCol(j, values)
	}
	return X, nil
}
