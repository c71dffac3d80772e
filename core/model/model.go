// Package model provides the core abstractions shared by every regressor
// in the pipeline.
//
// The four model families (random forest, ordinary least squares, decision
// tree, locally-weighted regression) differ in everything except their
// contract: each is fitted once against the training partition and then
// asked for predictions. Expressing that contract as a single interface is
// what lets the evaluation harness compare all of them on one table with
// one metric.
//
// Example usage:
//
//	type MyModel struct {
//		state *model.StateManager
//		// model-specific fields
//	}
//
//	func (m *MyModel) Fit(X, y mat.Matrix) error {
//		// training logic
//		m.state.SetFitted()
//		return nil
//	}
package model

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Regressor is the uniform fit/predict contract implemented by all four
// model families. Fit trains on a feature matrix of shape
// (n_samples, n_features) and a target column vector of shape
// (n_samples, 1). Predict returns a column vector of predictions.
// Implementations must not mutate their inputs and must be immutable once
// fitted.
type Regressor interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
	Name() string
}

// StateManager tracks whether an estimator has been fitted and records the
// training dimensions. Models hold one by composition so the fitted-state
// bookkeeping stays out of the training logic.
type StateManager struct {
	mu       sync.RWMutex
	fitted   bool
	features int
	samples  int
}

// NewStateManager creates an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether SetFitted has been called.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the estimator as trained. Called by model
// implementations at the end of a successful Fit.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset returns the estimator to its untrained state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.features = 0
	s.samples = 0
}

// SetDimensions records the training set shape for later validation.
func (s *StateManager) SetDimensions(features, samples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features = features
	s.samples = samples
}

// Dimensions returns the recorded (features, samples) of the training set.
func (s *StateManager) Dimensions() (features, samples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features, s.samples
}
