// Package evaluate computes prediction-quality metrics over the rows of a test set
// that match a store/month filter.
package evaluate

import (
	"strconv"
	"time"

	"github.com/ezoic/elasticity/frame"
	"github.com/ezoic/elasticity/metrics"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
)

// All is the filter value that selects every row.
const All = "All"

// Column names added to evaluated tables.
const (
	ActualColumn    = "Actual"
	PredictedColumn = "Predicted"
)

// Options name the feature columns the filters apply to.
type Options struct {
	StoreColumn string
	MonthColumn string
}

// DefaultOptions filters on the Store and Month columns.
func DefaultOptions() Options {
	return Options{StoreColumn: "Store", MonthColumn: "Month"}
}

// Filter selects rows by store and month. An empty value or All leaves that
// dimension unfiltered.
type Filter struct {
	Store string `form:"store" json:"store"`
	Month string `form:"month" json:"month"`
}

// Result is the evaluation of one filtered selection.
type Result struct {
	Metrics metrics.Report
	// Table is the selected feature rows with Actual and Predicted columns added.
	Table     frame.Table
	Actual    []float64
	Predicted []float64
	Rows      int
	// Applied lists the filters that took effect, as column=value.
	Applied []string
}

// Evaluator applies filters and computes metrics.
type Evaluator struct {
	opts   Options
	logger log.Logger
}

// New creates an Evaluator.
func New(opts Options) *Evaluator {
	return &Evaluator{opts: opts, logger: log.GetLoggerWithName("evaluate")}
}

type condition struct {
	column, value string
}

// conditions returns the filters that apply to t. A filter applies only when its
// column exists and its value is set and not All.
func (e *Evaluator) conditions(t frame.Table, f Filter) []condition {
	var out []condition
	for _, c := range []condition{
		{e.opts.StoreColumn, f.Store},
		{e.opts.MonthColumn, f.Month},
	} {
		if c.column == "" || c.value == "" || c.value == All || !t.HasColumn(c.column) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Evaluate selects the rows of features matching f and computes R², RMSE and MSE of
// predicted against actual over them. Each filter is an exact match on the cell's
// textual value, or on its value for numeric columns, and filters combine with AND. An empty selection returns an
// EmptySelectionError and no metrics.
func (e *Evaluator) Evaluate(features frame.Table, actual, predicted frame.Series, f Filter) (*Result, error) {
	start := time.Now()
	if err := actual.CheckAligned("Evaluate", features); err != nil {
		return nil, err
	}
	if err := predicted.CheckAligned("Evaluate", features); err != nil {
		return nil, err
	}

	conds := e.conditions(features, f)
	applied := make([]string, len(conds))
	for i, c := range conds {
		applied[i] = c.column + "=" + c.value
	}

	rows, err := e.selectRows(features, conds)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		e.logger.Info("Empty selection", log.FilterKey, applied)
		return nil, errors.NewEmptySelectionError(applied...)
	}

	joined, err := Joined(features, actual, predicted)
	if err != nil {
		return nil, err
	}
	a, p := actual, predicted
	if len(rows) != features.Nrow() {
		if joined, err = joined.Subset(rows); err != nil {
			return nil, err
		}
		if a, err = actual.Pick(rows); err != nil {
			return nil, err
		}
		if p, err = predicted.Pick(rows); err != nil {
			return nil, err
		}
	}

	report, err := metrics.Evaluate(a.Values, p.Values)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Selection evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.PhaseKey, log.PhaseEvaluation,
		log.FilterKey, applied,
		log.RowsKey, len(rows),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return &Result{
		Metrics:   report,
		Table:     joined,
		Actual:    a.Values,
		Predicted: p.Values,
		Rows:      len(rows),
		Applied:   applied,
	}, nil
}

func (e *Evaluator) selectRows(t frame.Table, conds []condition) ([]int, error) {
	matchers := make([]func(int) bool, len(conds))
	for i, c := range conds {
		m, err := matcher(t, c)
		if err != nil {
			return nil, err
		}
		matchers[i] = m
	}

	rows := make([]int, 0, t.Nrow())
	for r := 0; r < t.Nrow(); r++ {
		keep := true
		for _, match := range matchers {
			if !match(r) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// matcher compares numeric columns by value when the filter value is a number, so
// "7" and "7.0" select the same rows, and everything else by text.
func matcher(t frame.Table, c condition) (func(int) bool, error) {
	if t.IsNumeric(c.column) {
		if want, err := strconv.ParseFloat(c.value, 64); err == nil {
			values, err := t.Floats(c.column)
			if err != nil {
				return nil, err
			}
			return func(r int) bool { return values[r] == want }, nil
		}
	}
	records, err := t.Records(c.column)
	if err != nil {
		return nil, err
	}
	return func(r int) bool { return records[r] == c.value }, nil
}

// Joined returns features with Actual and Predicted columns, for every row.
func Joined(features frame.Table, actual, predicted frame.Series) (frame.Table, error) {
	t, err := features.WithColumn(ActualColumn, actual.Values)
	if err != nil {
		return frame.Table{}, err
	}
	return t.WithColumn(PredictedColumn, predicted.Values)
}

// FilterOptions returns All followed by the sorted distinct values of column, or nil
// when the table has no such column.
func FilterOptions(t frame.Table, column string) []string {
	if column == "" || !t.HasColumn(column) {
		return nil
	}
	values, err := t.Distinct(column)
	if err != nil {
		return nil
	}
	return append([]string{All}, values...)
}

// FilterOptions returns the store and month choices for t.
func (e *Evaluator) FilterOptions(t frame.Table) (stores, months []string) {
	return FilterOptions(t, e.opts.StoreColumn), FilterOptions(t, e.opts.MonthColumn)
}
