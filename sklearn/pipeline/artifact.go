package pipeline

import (
	"io"

	"github.com/ezoic/elasticity/core/model"
	"github.com/ezoic/elasticity/linear"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/preprocessing"
	"github.com/ezoic/elasticity/sklearn/ensemble"
	"github.com/ezoic/elasticity/sklearn/tree"
)

// ReadArtifact decodes a pipeline from a model artifact. The estimator is chosen by
// the artifact's model name.
func ReadArtifact(r io.Reader) (*Pipeline, error) {
	a, err := model.ReadArtifact(r)
	if err != nil {
		return nil, err
	}

	var (
		est       model.Regressor
		nFeatures int
	)
	switch a.ModelSpec.Name {
	case linear.Name:
		var p linear.Params
		if err := a.DecodeParams(&p); err != nil {
			return nil, err
		}
		lr, err := linear.FromParams(p)
		if err != nil {
			return nil, errors.NewDeserializationError("ReadArtifact", a.ModelSpec.Name, err)
		}
		est, nFeatures = lr, p.NFeatures
	case tree.Name:
		var p tree.Params
		if err := a.DecodeParams(&p); err != nil {
			return nil, err
		}
		dt, err := tree.FromParams(p)
		if err != nil {
			return nil, errors.NewDeserializationError("ReadArtifact", a.ModelSpec.Name, err)
		}
		est, nFeatures = dt, p.NFeatures
	case ensemble.Name:
		var p ensemble.Params
		if err := a.DecodeParams(&p); err != nil {
			return nil, err
		}
		rf, err := ensemble.FromParams(p)
		if err != nil {
			return nil, errors.NewDeserializationError("ReadArtifact", a.ModelSpec.Name, err)
		}
		est, nFeatures = rf, p.NFeatures
	default:
		return nil, errors.NewDeserializationError("ReadArtifact", "model artifact",
			errors.Newf("unsupported estimator %q", a.ModelSpec.Name))
	}

	if nFeatures != len(a.FeatureNames) {
		return nil, errors.NewDeserializationError("ReadArtifact", a.ModelSpec.Name,
			errors.NewDimensionError("ReadArtifact", len(a.FeatureNames), nFeatures, 1))
	}

	var encoder *preprocessing.OrdinalEncoder
	if len(a.Categories) > 0 {
		if encoder, err = preprocessing.NewOrdinalEncoderFromCategories(a.Categories); err != nil {
			return nil, errors.NewDeserializationError("ReadArtifact", "categories", err)
		}
	}

	return New(a.ModelSpec.Name, a.FeatureNames, encoder, est), nil
}

// WriteArtifact encodes the pipeline as a model artifact.
func (p *Pipeline) WriteArtifact(w io.Writer) error {
	var params interface{}
	var err error
	switch est := p.Estimator.(type) {
	case *linear.LinearRegression:
		params, err = est.Params()
	case *tree.DecisionTreeRegressor:
		params, err = est.Params()
	case *ensemble.RandomForestRegressor:
		params, err = est.Params()
	default:
		return errors.Wrapf(errors.ErrNotImplemented, "export %T", p.Estimator)
	}
	if err != nil {
		return err
	}

	var categories map[string][]string
	if p.Encoder != nil {
		categories = p.Encoder.Categories
	}
	a, err := model.NewArtifact(p.Name, p.FeatureNames, categories, params)
	if err != nil {
		return err
	}
	return a.Write(w)
}
