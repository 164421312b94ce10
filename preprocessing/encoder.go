// Package preprocessing turns raw feature columns into the numeric inputs estimators
// are trained on.
package preprocessing

import (
	"sort"

	"github.com/ezoic/elasticity/core/model"
	"github.com/ezoic/elasticity/pkg/errors"
)

// Unknown is the code assigned to a category not seen during Fit.
const Unknown = -1

// OrdinalEncoder maps the string values of categorical columns to integer codes, in
// the sorted order of the categories learned at training time.
type OrdinalEncoder struct {
	state *model.StateManager

	// Categories maps each encoded column to its sorted categories.
	Categories map[string][]string

	index map[string]map[string]int
}

// NewOrdinalEncoder creates an unfitted encoder.
func NewOrdinalEncoder() *OrdinalEncoder {
	return &OrdinalEncoder{state: model.NewStateManager()}
}

// NewOrdinalEncoderFromCategories restores an encoder from previously learned
// categories, for example those stored in a model artifact. Each list must be sorted
// and free of duplicates.
func NewOrdinalEncoderFromCategories(categories map[string][]string) (*OrdinalEncoder, error) {
	e := NewOrdinalEncoder()
	for column, cats := range categories {
		for i := 1; i < len(cats); i++ {
			if cats[i-1] >= cats[i] {
				return nil, errors.NewValueError("NewOrdinalEncoderFromCategories",
					"categories of "+column+" must be sorted and unique")
			}
		}
	}
	e.setCategories(categories)
	return e, nil
}

// Fit learns the categories of each column. columns maps a column name to its values.
func (e *OrdinalEncoder) Fit(columns map[string][]string) (err error) {
	defer errors.Recover(&err, "OrdinalEncoder.Fit")
	if len(columns) == 0 {
		return errors.NewModelError("OrdinalEncoder.Fit", "no columns", errors.ErrEmptyData)
	}

	categories := make(map[string][]string, len(columns))
	for column, values := range columns {
		if len(values) == 0 {
			return errors.NewModelError("OrdinalEncoder.Fit", "empty column "+column, errors.ErrEmptyData)
		}

		set := make(map[string]struct{})
		for _, v := range values {
			set[v] = struct{}{}
		}
		cats := make([]string, 0, len(set))
		for v := range set {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		categories[column] = cats
	}

	e.setCategories(categories)
	return nil
}

func (e *OrdinalEncoder) setCategories(categories map[string][]string) {
	e.Categories = categories
	e.index = make(map[string]map[string]int, len(categories))
	for column, cats := range categories {
		idx := make(map[string]int, len(cats))
		for i, c := range cats {
			idx[c] = i
		}
		e.index[column] = idx
	}
	e.state.SetFitted()
	e.state.SetDimensions(len(categories), 0)
}

// IsFitted reports whether categories have been learned or restored.
func (e *OrdinalEncoder) IsFitted() bool { return e.state.IsFitted() }

// Encodes reports whether column is one of the encoded columns.
func (e *OrdinalEncoder) Encodes(column string) bool {
	_, ok := e.index[column]
	return ok
}

// Transform returns the code of each value of column. Values not seen during Fit
// become Unknown.
func (e *OrdinalEncoder) Transform(column string, values []string) ([]float64, error) {
	if !e.state.IsFitted() {
		return nil, errors.NewNotFittedError("OrdinalEncoder", "Transform")
	}
	idx, ok := e.index[column]
	if !ok {
		return nil, errors.NewValueError("OrdinalEncoder.Transform", "column "+column+" was not fitted")
	}

	out := make([]float64, len(values))
	for i, v := range values {
		code, found := idx[v]
		if !found {
			code = Unknown
		}
		out[i] = float64(code)
	}
	return out, nil
}
