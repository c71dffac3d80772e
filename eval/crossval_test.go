package eval

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/petroml/orfcast/core/model"
	pkgerrors "github.com/petroml/orfcast/pkg/errors"
)

// meanModel predicts the training mean for every row. Its out-of-fold
// behavior is exactly computable, which makes the pooled metrics easy to
// check.
type meanModel struct {
	mean   float64
	fitted bool
}

func (m *meanModel) Fit(X, y mat.Matrix) error {
	r, _ := y.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		sum += y.At(i, 0)
	}
	m.mean = sum / float64(r)
	m.fitted = true
	return nil
}

func (m *meanModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.fitted {
		return nil, pkgerrors.NewNotFittedError("meanModel", "Predict")
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.mean)
	}
	return out, nil
}

func (m *meanModel) Name() string { return "mean" }

// identityModel predicts the first feature unchanged.
type identityModel struct{}

func (m *identityModel) Fit(X, y mat.Matrix) error { return nil }

func (m *identityModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, X.At(i, 0))
	}
	return out, nil
}

func (m *identityModel) Name() string { return "identity" }

func TestKFoldIndices_CoversEveryRowOnce(t *testing.T) {
	folds, err := KFoldIndices(23, 5, 123)
	if err != nil {
		t.Fatalf("KFoldIndices() error = %v", err)
	}
	if len(folds) != 5 {
		t.Fatalf("got %d folds, want 5", len(folds))
	}

	seen := make(map[int]int)
	for _, fold := range folds {
		for _, i := range fold {
			seen[i]++
		}
	}
	if len(seen) != 23 {
		t.Errorf("folds cover %d distinct rows, want 23", len(seen))
	}
	for i, count := range seen {
		if count != 1 {
			t.Errorf("row %d assigned %d times", i, count)
		}
	}

	// Fold sizes differ by at most one.
	min, max := len(folds[0]), len(folds[0])
	for _, fold := range folds {
		if len(fold) < min {
			min = len(fold)
		}
		if len(fold) > max {
			max = len(fold)
		}
	}
	if max-min > 1 {
		t.Errorf("fold sizes range from %d to %d, want spread <= 1", min, max)
	}
}

func TestKFoldIndices_Validation(t *testing.T) {
	var valueErr *pkgerrors.ValueError
	if _, err := KFoldIndices(10, 1, 123); !errors.As(err, &valueErr) {
		t.Errorf("k=1: expected ValueError, got %v", err)
	}

	var trainErr *pkgerrors.TrainingError
	if _, err := KFoldIndices(4, 5, 123); !errors.As(err, &trainErr) {
		t.Errorf("n<k: expected TrainingError, got %v", err)
	}
}

func TestKFoldIndices_Deterministic(t *testing.T) {
	a, err := KFoldIndices(20, 4, 7)
	if err != nil {
		t.Fatalf("KFoldIndices() error = %v", err)
	}
	b, err := KFoldIndices(20, 4, 7)
	if err != nil {
		t.Fatalf("KFoldIndices() error = %v", err)
	}
	for f := range a {
		for i := range a[f] {
			if a[f][i] != b[f][i] {
				t.Fatalf("fold %d differs at position %d", f, i)
			}
		}
	}
}

func TestCrossValidate_PooledMetrics(t *testing.T) {
	// Target equals the first feature exactly, so the identity model is
	// perfect out of fold: pooled RMSE and MAE zero, R2 one, every fold
	// RMSE zero.
	n := 20
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i)*2)
		y.Set(i, 0, float64(i))
	}

	factory := func() model.Regressor { return &identityModel{} }
	sum, err := CrossValidate(factory, X, y, 5, 123)
	if err != nil {
		t.Fatalf("CrossValidate() error = %v", err)
	}
	if sum.RMSE != 0 {
		t.Errorf("pooled RMSE = %v, want 0", sum.RMSE)
	}
	if sum.MAE != 0 {
		t.Errorf("pooled MAE = %v, want 0", sum.MAE)
	}
	if sum.R2 != 1 {
		t.Errorf("pooled R2 = %v, want 1", sum.R2)
	}
	if len(sum.FoldRMSEs) != 5 {
		t.Fatalf("got %d fold RMSEs, want 5", len(sum.FoldRMSEs))
	}
	for f, rmse := range sum.FoldRMSEs {
		if rmse != 0 {
			t.Errorf("fold %d RMSE = %v, want 0", f, rmse)
		}
	}
}

func TestCrossValidate_NonTrivialTarget(t *testing.T) {
	// A varying target gives the mean model a strictly positive pooled
	// RMSE and a negative-or-zero R2.
	n := 20
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i))
	}

	factory := func() model.Regressor { return &meanModel{} }
	sum, err := CrossValidate(factory, X, y, 4, 123)
	if err != nil {
		t.Fatalf("CrossValidate() error = %v", err)
	}
	if !(sum.RMSE > 0) || math.IsNaN(sum.RMSE) {
		t.Errorf("pooled RMSE = %v, want > 0", sum.RMSE)
	}
	if sum.R2 > 0 {
		t.Errorf("R2 = %v, want <= 0 for an out-of-fold mean predictor", sum.R2)
	}
}

func TestCrossValidate_TooFewRows(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	factory := func() model.Regressor { return &meanModel{} }
	_, err := CrossValidate(factory, X, y, 5, 123)

	var trainErr *pkgerrors.TrainingError
	if !errors.As(err, &trainErr) {
		t.Fatalf("expected TrainingError, got %v", err)
	}
}

func TestSubsetRows(t *testing.T) {
	m := mat.NewDense(4, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
		7, 8,
	})
	sub := SubsetRows(m, []int{3, 0})
	if r, c := sub.Dims(); r != 2 || c != 2 {
		t.Fatalf("dims = %dx%d, want 2x2", r, c)
	}
	if sub.At(0, 0) != 7 || sub.At(1, 1) != 2 {
		t.Errorf("wrong rows selected: %v", mat.Formatted(sub))
	}
}
