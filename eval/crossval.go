package eval

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/petroml/orfcast/core/model"
	"github.com/petroml/orfcast/metrics"
	pkgerrors "github.com/petroml/orfcast/pkg/errors"
)

// CVSummary holds the pooled out-of-fold metrics of a cross-validation
// run. RMSE, R2 and MAE are computed over the concatenated held-out
// predictions of all folds, which weights every row equally regardless of
// fold size.
type CVSummary struct {
	RMSE      float64
	R2        float64
	MAE       float64
	FoldRMSEs []float64
}

// KFoldIndices assigns n rows to k folds after a seeded shuffle. Fold
// sizes differ by at most one row.
//
// Errors:
//   - TrainingError: n < k, so at least one fold would be empty
func KFoldIndices(n, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, pkgerrors.NewValueError("KFoldIndices", "k must be at least 2")
	}
	if n < k {
		return nil, pkgerrors.NewTrainingError("KFoldIndices", k, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([][]int, k)
	for i, idx := range perm {
		f := i % k
		folds[f] = append(folds[f], idx)
	}
	return folds, nil
}

// CrossValidate runs k-fold cross-validation: for each fold, a fresh
// model from factory is fitted on the remaining rows and predicts the
// held-out fold. Returns the pooled out-of-fold metrics.
//
// Errors:
//   - TrainingError: fewer rows than folds
//   - any error from the underlying Fit/Predict calls
func CrossValidate(factory func() model.Regressor, X, y *mat.Dense, k int, seed int64) (CVSummary, error) {
	n, _ := X.Dims()
	folds, err := KFoldIndices(n, k, seed)
	if err != nil {
		return CVSummary{}, err
	}

	pooledTrue := make([]float64, 0, n)
	pooledPred := make([]float64, 0, n)
	foldRMSEs := make([]float64, 0, k)

	for _, holdout := range folds {
		trainIdx := complement(n, holdout)

		m := factory()
		if err := m.Fit(SubsetRows(X, trainIdx), SubsetRows(y, trainIdx)); err != nil {
			return CVSummary{}, err
		}

		pred, err := m.Predict(SubsetRows(X, holdout))
		if err != nil {
			return CVSummary{}, err
		}

		foldTrue := make([]float64, len(holdout))
		foldPred := make([]float64, len(holdout))
		for j, idx := range holdout {
			foldTrue[j] = y.At(idx, 0)
			foldPred[j] = pred.At(j, 0)
		}
		pooledTrue = append(pooledTrue, foldTrue...)
		pooledPred = append(pooledPred, foldPred...)

		foldRMSE, err := metrics.RMSESlice(foldTrue, foldPred)
		if err != nil {
			return CVSummary{}, err
		}
		foldRMSEs = append(foldRMSEs, foldRMSE)
	}

	trueVec := mat.NewVecDense(len(pooledTrue), pooledTrue)
	predVec := mat.NewVecDense(len(pooledPred), pooledPred)

	rmse, err := metrics.RMSE(trueVec, predVec)
	if err != nil {
		return CVSummary{}, err
	}
	mae, err := metrics.MAE(trueVec, predVec)
	if err != nil {
		return CVSummary{}, err
	}
	r2, err := metrics.R2Score(trueVec, predVec)
	if err != nil {
		return CVSummary{}, err
	}

	return CVSummary{RMSE: rmse, R2: r2, MAE: mae, FoldRMSEs: foldRMSEs}, nil
}

// SubsetRows copies the given rows of m into a new dense matrix.
func SubsetRows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}

func complement(n int, exclude []int) []int {
	member := make(map[int]bool, len(exclude))
	for _, i := range exclude {
		member[i] = true
	}
	out := make([]int, 0, n-len(exclude))
	for i := 0; i < n; i++ {
		if !member[i] {
			out = append(out, i)
		}
	}
	return out
}
