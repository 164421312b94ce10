// Package model provides the estimator abstractions shared by every model the
// dashboard can load or train.
//
// Estimators track their training state with a StateManager and expose a small set of
// capability interfaces:
//
//   - Regressor: produce one prediction per input row
//   - Fitter: learn from a feature matrix and a target column
//   - FeatureImportancer: optionally report one importance score per input feature
//
// Trained estimators travel between processes as JSON artifacts (see Artifact), the
// Go-readable counterpart of a pickled (estimator, feature names) pair.
package model

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// EstimatorState represents the learning state of a model.
type EstimatorState int

const (
	// NotFitted indicates the model is not yet trained.
	NotFitted EstimatorState = iota
	// Fitted indicates the model has been trained or loaded.
	Fitted
)

// Regressor predicts a continuous target. Predict returns an (n_samples, 1) matrix.
type Regressor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Fitter is implemented by estimators that can be trained in-process.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// FeatureImportancer is implemented by estimators that can score input features.
// The returned slice has one entry per training feature, in training column order.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// StateManager tracks whether an estimator is fitted and the dimensions it was fitted on.
// It is safe for concurrent use.
type StateManager struct {
	mu        sync.RWMutex
	State     EstimatorState
	NFeatures int
	NSamples  int
}

// NewStateManager returns a StateManager in the NotFitted state.
func NewStateManager() *StateManager {
	return &StateManager{State: NotFitted}
}

// IsFitted reports whether the estimator has been trained or loaded.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State == Fitted
}

// SetFitted marks the estimator as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = Fitted
}

// SetDimensions records the training shape. nSamples is 0 for loaded models.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// GetDimensions returns the recorded training shape.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// Reset returns the estimator to the NotFitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = NotFitted
	s.NFeatures = 0
	s.NSamples = 0
}

// ColumnToSlice copies the first column of m into a new slice.
func ColumnToSlice(m mat.Matrix) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.At(i, 0)
	}
	return out
}
