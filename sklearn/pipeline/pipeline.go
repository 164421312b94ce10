// Package pipeline bundles a trained estimator with the feature columns it was trained
// on and the encoder for its categorical inputs, so predictions can be made directly
// from a feature table.
package pipeline

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/elasticity/core/model"
	"github.com/ezoic/elasticity/frame"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
	"github.com/ezoic/elasticity/preprocessing"
)

// Importance is the score of one input feature.
type Importance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"importance"`
}

// Pipeline is a trained model together with its ordered feature names.
type Pipeline struct {
	// FeatureNames are the table columns fed to the estimator, in training order.
	FeatureNames []string
	// Encoder encodes the categorical feature columns. It may be nil.
	Encoder *preprocessing.OrdinalEncoder
	// Estimator makes the predictions.
	Estimator model.Regressor

	// Name is the estimator name recorded in artifacts.
	Name string

	logger log.Logger
}

// New wraps a fitted estimator.
func New(name string, featureNames []string, encoder *preprocessing.OrdinalEncoder, estimator model.Regressor) *Pipeline {
	return &Pipeline{
		FeatureNames: featureNames,
		Encoder:      encoder,
		Estimator:    estimator,
		Name:         name,
		logger:       log.GetLoggerWithName("pipeline").With(log.ModelNameKey, name),
	}
}

// Estimator is a regressor that can be trained in-process.
type Estimator interface {
	model.Regressor
	model.Fitter
}

// Fit trains est on the named feature columns of features against target. String
// columns are ordinal-encoded with categories learned from features.
func Fit(name string, est Estimator, features frame.Table, featureNames []string, target frame.Series) (*Pipeline, error) {
	if err := target.CheckAligned("pipeline.Fit", features); err != nil {
		return nil, err
	}

	columns := make(map[string][]string)
	for _, f := range featureNames {
		if !features.HasColumn(f) {
			return nil, errors.NewValueError("pipeline.Fit", "missing feature column "+f)
		}
		if !features.IsNumeric(f) {
			records, err := features.Records(f)
			if err != nil {
				return nil, err
			}
			columns[f] = records
		}
	}

	var encoder *preprocessing.OrdinalEncoder
	if len(columns) > 0 {
		encoder = preprocessing.NewOrdinalEncoder()
		if err := encoder.Fit(columns); err != nil {
			return nil, err
		}
	}

	X, err := frame.Matrix(features, featureNames, encoderOrNil(encoder))
	if err != nil {
		return nil, err
	}
	y := mat.NewVecDense(target.Len(), append([]float64(nil), target.Values...))
	if err := est.Fit(X, y); err != nil {
		return nil, errors.Wrapf(err, "fit %s", name)
	}

	return New(name, featureNames, encoder, est), nil
}

// encoderOrNil avoids handing frame.Matrix a typed nil interface.
func encoderOrNil(e *preprocessing.OrdinalEncoder) frame.Encoder {
	if e == nil {
		return nil
	}
	return e
}

// Predict selects FeatureNames from features, encodes them and returns one
// prediction per row.
func (p *Pipeline) Predict(features frame.Table) (frame.Series, error) {
	start := time.Now()
	X, err := frame.Matrix(features, p.FeatureNames, encoderOrNil(p.Encoder))
	if err != nil {
		return frame.Series{}, err
	}

	pred, err := p.Estimator.Predict(X)
	if err != nil {
		return frame.Series{}, errors.Wrapf(err, "%s predict", p.Name)
	}
	values := model.ColumnToSlice(pred)
	if len(values) != features.Nrow() {
		return frame.Series{}, errors.NewDimensionError("Pipeline.Predict", features.Nrow(), len(values), 0)
	}

	if p.logger != nil {
		p.logger.Debug("Predictions computed",
			log.OperationKey, log.OperationPredict,
			log.PredsKey, len(values),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return frame.Series{Name: "Predicted", Values: values}, nil
}

// FeatureImportances returns the importance of each feature for the whole model,
// sorted by descending score. Importances are a property of the trained model and do
// not depend on any row filter. Estimators without importances yield ErrNotAvailable.
func (p *Pipeline) FeatureImportances() ([]Importance, error) {
	fi, ok := p.Estimator.(model.FeatureImportancer)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotAvailable, "%s has no feature importances", p.Name)
	}
	scores := fi.FeatureImportances()
	if scores == nil {
		return nil, errors.Wrapf(errors.ErrNotAvailable, "%s has no feature importances", p.Name)
	}
	if len(scores) != len(p.FeatureNames) {
		return nil, errors.NewDimensionError("Pipeline.FeatureImportances", len(p.FeatureNames), len(scores), 0)
	}

	out := make([]Importance, len(scores))
	for i, s := range scores {
		out[i] = Importance{Feature: p.FeatureNames[i], Score: s}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
