package tree

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	pkgerrors "github.com/petroml/orfcast/pkg/errors"
)

// stepData builds a target with a single sharp step at x = 9.5, the
// easiest possible split for a regression tree to find.
func stepData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3)) // uninformative
		if i < 10 {
			y.Set(i, 0, 1)
		} else {
			y.Set(i, 0, 5)
		}
	}
	return X, y
}

func TestFit_FindsStep(t *testing.T) {
	X, y := stepData(20)
	tr := NewRegressor()

	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if !tr.IsFitted() {
		t.Fatal("IsFitted() = false after Fit")
	}

	pred, err := tr.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		want := 1.0
		if i >= 10 {
			want = 5.0
		}
		if got := pred.At(i, 0); math.Abs(got-want) > 1e-12 {
			t.Errorf("row %d: prediction = %v, want %v", i, got, want)
		}
	}
}

func TestFit_ImportanceOnSplitFeature(t *testing.T) {
	X, y := stepData(20)
	tr := NewRegressor()
	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	imp := tr.FeatureImportances()
	if len(imp) != 2 {
		t.Fatalf("got %d importances, want 2", len(imp))
	}
	if imp[0] <= imp[1] {
		t.Errorf("importances = %v, want feature 0 dominant", imp)
	}
	sum := imp[0] + imp[1]
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("importances sum to %v, want 1", sum)
	}
}

func TestComplexityParameter_PrunesWeakSplits(t *testing.T) {
	// A big step plus a tiny wiggle: cp=0 chases the wiggle, the default
	// cp=0.01 stops at the step.
	n := 40
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		v := 1.0
		if i >= 20 {
			v = 5.0
		}
		v += 0.001 * float64(i%2)
		y.Set(i, 0, v)
	}

	greedy := NewRegressor(WithCP(0))
	if err := greedy.Fit(X, y); err != nil {
		t.Fatalf("Fit(cp=0) error = %v", err)
	}
	pruned := NewRegressor() // default cp 0.01
	if err := pruned.Fit(X, y); err != nil {
		t.Fatalf("Fit(cp=0.01) error = %v", err)
	}

	if pruned.NumLeaves() >= greedy.NumLeaves() {
		t.Errorf("pruned leaves = %d, greedy leaves = %d, want pruned < greedy",
			pruned.NumLeaves(), greedy.NumLeaves())
	}
	if pruned.NumLeaves() != 2 {
		t.Errorf("pruned leaves = %d, want 2 (only the step survives pruning)", pruned.NumLeaves())
	}
}

func TestMaxLeafNodes(t *testing.T) {
	X, y := stepData(40)
	// Noise so splits keep happening beyond the step.
	for i := 0; i < 40; i++ {
		y.Set(i, 0, y.At(i, 0)+float64(i)*0.3)
	}

	tr := NewRegressor(WithCP(0), WithMaxLeafNodes(4))
	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if got := tr.NumLeaves(); got > 4 {
		t.Errorf("NumLeaves() = %d, want <= 4", got)
	}
}

func TestDeterministic_SameSeed(t *testing.T) {
	X, y := stepData(30)

	a := NewRegressor(WithCP(0), WithMaxFeatures(1), WithRandomState(7))
	b := NewRegressor(WithCP(0), WithMaxFeatures(1), WithRandomState(7))
	if err := a.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	pa, err := a.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	pb, err := b.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < 30; i++ {
		if pa.At(i, 0) != pb.At(i, 0) {
			t.Fatalf("row %d: predictions differ across identically seeded trees", i)
		}
	}
}

func TestFit_Validation(t *testing.T) {
	tr := NewRegressor()

	var trainErr *pkgerrors.TrainingError
	oneRow := mat.NewDense(1, 1, []float64{1})
	if err := tr.Fit(oneRow, mat.NewDense(1, 1, []float64{1})); !errors.As(err, &trainErr) {
		t.Errorf("single row: expected TrainingError, got %v", err)
	}

	var dimErr *pkgerrors.DimensionError
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	if err := tr.Fit(X, mat.NewDense(3, 1, []float64{1, 2, 3})); !errors.As(err, &dimErr) {
		t.Errorf("row mismatch: expected DimensionError, got %v", err)
	}

	var valueErr *pkgerrors.ValueError
	if err := tr.Fit(X, mat.NewDense(4, 2, nil)); !errors.As(err, &valueErr) {
		t.Errorf("wide y: expected ValueError, got %v", err)
	}
}

func TestPredict_BeforeFit(t *testing.T) {
	tr := NewRegressor()
	_, err := tr.Predict(mat.NewDense(1, 1, []float64{1}))

	var nf *pkgerrors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
}

func TestConstantTarget_SingleLeaf(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(6, 1, []float64{2, 2, 2, 2, 2, 2})

	tr := NewRegressor()
	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if got := tr.NumLeaves(); got != 1 {
		t.Errorf("NumLeaves() = %d, want 1 for a zero-variance target", got)
	}
	pred, err := tr.Predict(mat.NewDense(1, 1, []float64{100}))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if pred.At(0, 0) != 2 {
		t.Errorf("prediction = %v, want 2", pred.At(0, 0))
	}
}
