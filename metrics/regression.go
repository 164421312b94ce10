// Package metrics provides the prediction-quality metrics shown on the dashboard.
//
// Regression metrics:
//   - MSE: Mean Squared Error
//   - RMSE: Root Mean Squared Error, exactly the square root of MSE
//   - R²: coefficient of determination around the mean of the actual values
//
// Evaluate computes the dashboard triple (R², RMSE, MSE) in one call over plain
// slices:
//
//	report, err := metrics.Evaluate(actual, predicted)
//	fmt.Printf("R² %.4f RMSE %.2f\n", report.R2, report.RMSE)
//
// Vector forms taking *mat.VecDense serve estimator code working in gonum.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/elasticity/pkg/errors"
)

// Report holds the metrics computed over one set of predictions.
type Report struct {
	R2   float64 `json:"r2"`
	RMSE float64 `json:"rmse"`
	MSE  float64 `json:"mse"`
}

// Evaluate computes R², RMSE and MSE of predicted against actual.
//
// Errors:
//   - ErrEmptyData: if actual is empty
//   - ErrDimensionMismatch: if the slices differ in length
func Evaluate(actual, predicted []float64) (Report, error) {
	if err := checkLengths("Evaluate", len(actual), len(predicted)); err != nil {
		return Report{}, err
	}

	mse := meanSquaredError(actual, predicted)
	return Report{
		R2:   r2(actual, predicted),
		RMSE: math.Sqrt(mse),
		MSE:  mse,
	}, nil
}

// MSE calculates the Mean Squared Error between true and predicted values.
//
// MSE measures the average squared differences between predictions and actual
// values. Lower values indicate better model performance.
//
// Errors:
//   - ErrEmptyData: if input vectors are empty
//   - ErrDimensionMismatch: if yTrue and yPred have different lengths
//
// Example:
//
//	mse, err := metrics.MSE(yTrue, yPred)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("MSE: %.4f\n", mse)
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkLengths("MSE", yTrue.Len(), yPred.Len()); err != nil {
		return 0, err
	}
	return meanSquaredError(mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred)), nil
}

// RMSE calculates the Root Mean Squared Error, in the same units as the target.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// R2Score calculates the coefficient of determination (R²).
//
// R² = 1 - RSS/TSS where TSS is taken around the mean of yTrue. Values range from
// negative infinity to 1. When yTrue has no variance the score is 1.0 for a perfect
// prediction and 0.0 otherwise.
//
// Errors:
//   - ErrEmptyData: if input vectors are empty
//   - ErrDimensionMismatch: if yTrue and yPred have different lengths
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	if err := checkLengths("R2Score", yTrue.Len(), yPred.Len()); err != nil {
		return 0, err
	}
	return r2(mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred)), nil
}

func checkLengths(op string, nTrue, nPred int) error {
	if nTrue == 0 {
		return errors.Wrapf(errors.ErrEmptyData, "%s: empty vector", op)
	}
	if nPred != nTrue {
		return errors.NewDimensionError(op, nTrue, nPred, 0)
	}
	return nil
}

func meanSquaredError(actual, predicted []float64) float64 {
	var sum float64
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return sum / float64(len(actual))
}

func r2(actual, predicted []float64) float64 {
	mean := stat.Mean(actual, nil)

	var tss, rss float64
	for i, v := range actual {
		tss += (v - mean) * (v - mean)
		rss += (v - predicted[i]) * (v - predicted[i])
	}

	if tss == 0 {
		if rss == 0 {
			return 1
		}
		return 0
	}
	return 1 - rss/tss
}
