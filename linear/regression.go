// Package linear provides ordinary least squares regression.
//
// LinearRegression fits y = X·w + b by solving the least squares problem with a QR
// decomposition of the design matrix, which avoids forming XᵀX explicitly:
//
//	lr := linear.NewLinearRegression()
//	if err := lr.Fit(X, y); err != nil {
//		return err
//	}
//	predictions, err := lr.Predict(XTest)
//
// Trained models round-trip through Params, the same coefficient layout scikit-learn
// exposes as coef_ and intercept_, so models exported from Python load unchanged.
// Linear models do not report feature importances.
package linear

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/elasticity/core/model"
	"github.com/ezoic/elasticity/metrics"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
)

// Name identifies LinearRegression in model artifacts.
const Name = "LinearRegression"

// Params are the learned parameters of a LinearRegression.
type Params struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	NFeatures    int       `json:"n_features"`
}

// LinearRegression is an ordinary least squares regression model.
type LinearRegression struct {
	State     *model.StateManager
	Weights   *mat.VecDense // coefficients, one per feature
	Intercept float64
	NFeatures int
	logger    log.Logger
}

// NewLinearRegression creates an unfitted model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{
		State:  model.NewStateManager(),
		logger: log.GetLoggerWithName("linear").With(log.ModelNameKey, Name),
	}
}

// FromParams restores a fitted model from exported parameters.
func FromParams(p Params) (*LinearRegression, error) {
	if p.NFeatures <= 0 {
		return nil, errors.NewValueError("LinearRegression.FromParams", "n_features must be positive")
	}
	if len(p.Coefficients) != p.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.FromParams", p.NFeatures, len(p.Coefficients), 0)
	}

	lr := NewLinearRegression()
	lr.NFeatures = p.NFeatures
	lr.Intercept = p.Intercept
	lr.Weights = mat.NewVecDense(p.NFeatures, append([]float64(nil), p.Coefficients...))
	lr.State.SetFitted()
	// sample count is unknown for loaded models
	lr.State.SetDimensions(lr.NFeatures, 0)
	return lr, nil
}

// Fit trains the model on X (n_samples, n_features) and the column vector y.
//
// Errors:
//   - ErrEmptyData: if X or y are empty
//   - ErrDimensionMismatch: if X and y have different numbers of rows
//   - ErrSingularMatrix: if the design matrix is rank deficient
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	startTime := time.Now()
	r, c := X.Dims()
	ry, cy := y.Dims()

	lr.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if r < c+1 {
		return errors.NewModelError("LinearRegression.Fit", "fewer samples than parameters", errors.ErrSingularMatrix)
	}

	// design = [1, X]
	design := mat.NewDense(r, c+1, nil)
	target := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < c; j++ {
			design.Set(i, j+1, X.At(i, j))
		}
		target.SetVec(i, y.At(i, 0))
	}

	var qr mat.QR
	qr.Factorize(design)

	var solution mat.VecDense
	if err := qr.SolveVecTo(&solution, false, target); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "rank deficient design", errors.ErrSingularMatrix)
	}

	lr.NFeatures = c
	lr.Intercept = solution.AtVec(0)
	lr.Weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.Weights.SetVec(j, solution.AtVec(j+1))
	}

	lr.State.SetFitted()
	lr.State.SetDimensions(c, r)

	lr.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)
	return nil
}

// Predict returns an (n_samples, 1) matrix of X·w + b.
//
// Errors:
//   - ErrNotFitted: if the model hasn't been trained or loaded
//   - ErrDimensionMismatch: if X has a different number of features than the model
func (lr *LinearRegression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LinearRegression.Predict")
	if !lr.State.IsFitted() {
		return nil, errors.NewNotFittedError(Name, "Predict")
	}

	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	lr.logger.Debug("Prediction started",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, r,
	)

	predictions := mat.NewVecDense(r, nil)
	predictions.MulVec(X, lr.Weights)
	for i := 0; i < r; i++ {
		predictions.SetVec(i, predictions.AtVec(i)+lr.Intercept)
	}

	return predictions, nil
}

// Score returns the R² of the model's predictions for X against y.
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	actual, predicted := model.ColumnToSlice(y), model.ColumnToSlice(yPred)
	return metrics.R2Score(mat.NewVecDense(len(actual), actual), mat.NewVecDense(len(predicted), predicted))
}

// Params exports the learned parameters.
func (lr *LinearRegression) Params() (Params, error) {
	if !lr.State.IsFitted() {
		return Params{}, errors.NewNotFittedError(Name, "Params")
	}
	return Params{
		Coefficients: lr.GetWeights(),
		Intercept:    lr.Intercept,
		NFeatures:    lr.NFeatures,
	}, nil
}

// GetWeights returns a copy of the learned coefficients.
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.Weights)
}

// GetIntercept returns the learned intercept.
func (lr *LinearRegression) GetIntercept() float64 {
	if !lr.State.IsFitted() {
		return 0
	}
	return lr.Intercept
}

// IsFitted returns whether the model has been fitted.
func (lr *LinearRegression) IsFitted() bool {
	return lr.State.IsFitted()
}
