// Package metrics implements the evaluation metrics applied uniformly to
// every fitted model in the pipeline.
//
// RMSE is the comparison metric: it is computed for each (model,
// partition) pair and is what makes four structurally different model
// families comparable on one table. MAE and R² additionally appear in the
// cross-validation summary of the ensemble model.
//
// All functions validate shapes and fail with a DimensionError when
// predicted and observed lengths differ; a length mismatch indicates a
// pipeline bug upstream and is never recoverable.
//
// Example usage:
//
//	rmse, err := metrics.RMSE(yTrue, yPred)
//	if err != nil {
//		return err
//	}
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	pkgerrors "github.com/petroml/orfcast/pkg/errors"
)

// MSE returns the mean squared error between observed and predicted
// values.
//
// Errors:
//   - ValueError: if the vectors are empty
//   - DimensionError: if the vectors differ in length
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, pkgerrors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, pkgerrors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE returns the root mean squared error, the pipeline's shared
// comparison metric. It is non-negative, zero exactly when the inputs are
// identical, and symmetric in its arguments.
//
// Errors:
//   - ValueError: if the vectors are empty
//   - DimensionError: if the vectors differ in length
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// RMSESlice is RMSE over plain float64 slices, for callers that never
// materialize gonum vectors.
func RMSESlice(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) == 0 {
		return 0, pkgerrors.NewValueError("RMSE", "empty slice")
	}
	if len(yPred) != len(yTrue) {
		return 0, pkgerrors.NewDimensionError("RMSE", len(yTrue), len(yPred), 0)
	}
	var sum float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(yTrue))), nil
}

// MAE returns the mean absolute error between observed and predicted
// values. More robust to outliers than MSE since differences are not
// squared.
//
// Errors:
//   - ValueError: if the vectors are empty
//   - DimensionError: if the vectors differ in length
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, pkgerrors.NewValueError("MAE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, pkgerrors.NewDimensionError("MAE", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score returns the coefficient of determination. 1 means perfect
// predictions, 0 means no better than predicting the mean, negative means
// worse than the mean.
//
// Errors:
//   - ValueError: if the vectors are empty or yTrue has no variance
//   - DimensionError: if the vectors differ in length
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, pkgerrors.NewValueError("R2Score", "empty vector")
	}
	if yPred.Len() != n {
		return 0, pkgerrors.NewDimensionError("R2Score", n, yPred.Len(), 0)
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		obs := yTrue.AtVec(i)
		tss += (obs - yMean) * (obs - yMean)
		rss += (obs - yPred.AtVec(i)) * (obs - yPred.AtVec(i))
	}

	if tss == 0 {
		return 0, pkgerrors.NewValueError("R2Score", "no variance in yTrue")
	}
	return 1 - rss/tss, nil
}

// ColumnVector copies column 0 of an (n, 1) matrix into a VecDense. It is
// the bridge between model Predict output and the metric functions.
func ColumnVector(m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if c != 1 {
		return nil, pkgerrors.NewValueError("ColumnVector", "input must be a column vector (n×1 matrix)")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}
