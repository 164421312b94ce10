package loader

import (
	"context"

	"github.com/ezoic/elasticity/frame"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/sklearn/pipeline"
)

// Paths names the inputs of one evaluation.
type Paths struct {
	Features    string // X_test.csv
	Labels      string // y_test.csv
	Model       string // model artifact
	LabelColumn string // column of Labels to read; empty = first
}

// Assets are the loaded inputs with the model's predictions for every feature row.
type Assets struct {
	Features    frame.Table
	Labels      frame.Series
	Model       *pipeline.Pipeline
	Predictions frame.Series
}

// LoadAssets loads features, labels and model, checks that labels align with the
// feature rows and computes the predictions once.
func LoadAssets(ctx context.Context, src Source, paths Paths) (*Assets, error) {
	features, err := LoadTable(ctx, src, paths.Features)
	if err != nil {
		return nil, err
	}
	labels, err := LoadSeries(ctx, src, paths.Labels, paths.LabelColumn)
	if err != nil {
		return nil, err
	}
	if err := labels.CheckAligned("LoadAssets", features); err != nil {
		return nil, err
	}
	model, err := LoadPipeline(ctx, src, paths.Model)
	if err != nil {
		return nil, err
	}

	predictions, err := model.Predict(features)
	if err != nil {
		return nil, errors.Wrap(err, "predict test set")
	}

	return &Assets{
		Features:    features,
		Labels:      labels,
		Model:       model,
		Predictions: predictions,
	}, nil
}
