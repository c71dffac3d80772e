// Package linear implements the ordinary least squares model of the
// ensemble.
//
// The model solves the normal equations by explicit inversion of X'X,
// which is well-conditioned for this dataset's seven predictors, and
// additionally derives the classical inference table: per-coefficient
// standard error, t-statistic and two-sided p-value under the Student-t
// distribution with n-p-1 degrees of freedom. The p-values are what the
// report's coefficient table is built from.
//
// Example usage:
//
//	lr := linear.NewRegression()
//	if err := lr.Fit(X, y); err != nil {
//		return err
//	}
//	predictions, err := lr.Predict(XTest)
package linear

import (
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/petroml/orfcast/core/model"
	"github.com/petroml/orfcast/eval"
	pkgerrors "github.com/petroml/orfcast/pkg/errors"
	"github.com/petroml/orfcast/pkg/log"
)

// Coefficient is one row of the inference table.
type Coefficient struct {
	Feature  string
	Estimate float64
	StdError float64
	TValue   float64
	PValue   float64
}

// Regression is an ordinary least squares model with coefficient
// inference. Immutable once fitted.
type Regression struct {
	state     *model.StateManager
	features  []string // Feature names for the coefficient table
	weights   *mat.VecDense
	intercept float64
	nFeatures int
	coefs     []Coefficient
	logger    log.Logger
}

// NewRegression creates an untrained OLS model. featureNames labels the
// coefficient table; pass nil to use positional labels.
func NewRegression(featureNames []string) *Regression {
	lr := &Regression{
		state:    model.NewStateManager(),
		features: featureNames,
	}
	lr.logger = log.GetLoggerWithName("linear").With(
		log.ModelNameKey, "LinearRegression",
		log.ComponentKey, "linear",
	)
	return lr
}

// Name implements model.Regressor.
func (lr *Regression) Name() string { return "LinearRegression" }

// Fit trains the model by solving (X'X)w = X'y with an intercept column
// prepended, then derives the coefficient inference table.
//
// Errors:
//   - ModelError(ErrEmptyData): X or y is empty
//   - DimensionError: sample counts of X and y differ
//   - TrainingError: fewer rows than coefficients, the system is
//     underdetermined
//   - ModelError(ErrSingularMatrix): X'X is not invertible
func (lr *Regression) Fit(X, y mat.Matrix) (err error) {
	defer pkgerrors.Recover(&err, "LinearRegression.Fit")

	start := time.Now()
	r, c := X.Dims()
	ry, cy := y.Dims()

	lr.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)

	if r == 0 || c == 0 {
		return pkgerrors.NewModelError("LinearRegression.Fit", "empty data", pkgerrors.ErrEmptyData)
	}
	if ry != r {
		return pkgerrors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return pkgerrors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if r < c+2 {
		return pkgerrors.NewTrainingError("LinearRegression", c+2, r)
	}

	lr.nFeatures = c

	// Design matrix with intercept: [1, X].
	XI := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		XI.Set(i, 0, 1.0)
		for j := 0; j < c; j++ {
			XI.Set(i, j+1, X.At(i, j))
		}
	}

	var XT mat.Dense
	XT.CloneFrom(XI.T())

	var XTX mat.Dense
	XTX.Mul(&XT, XI)

	var XTXInv mat.Dense
	if err := XTXInv.Inverse(&XTX); err != nil {
		return pkgerrors.NewModelError("LinearRegression.Fit", "singular matrix", pkgerrors.ErrSingularMatrix)
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}

	var XTy mat.VecDense
	XTy.MulVec(&XT, yVec)

	beta := mat.NewVecDense(c+1, nil)
	beta.MulVec(&XTXInv, &XTy)

	lr.intercept = beta.AtVec(0)
	lr.weights = mat.NewVecDense(c, nil)
	for i := 0; i < c; i++ {
		lr.weights.SetVec(i, beta.AtVec(i+1))
	}

	lr.coefs = lr.inferenceTable(XI, yVec, beta, &XTXInv)

	lr.state.SetFitted()
	lr.state.SetDimensions(c, r)

	lr.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)
	return nil
}

// inferenceTable computes standard errors, t-statistics and p-values for
// the fitted coefficients. Residual variance uses n-p-1 degrees of
// freedom.
func (lr *Regression) inferenceTable(XI *mat.Dense, y, beta *mat.VecDense, XTXInv *mat.Dense) []Coefficient {
	r, cols := XI.Dims()
	dof := float64(r - cols)

	var fitted mat.VecDense
	fitted.MulVec(XI, beta)

	var rss float64
	for i := 0; i < r; i++ {
		resid := y.AtVec(i) - fitted.AtVec(i)
		rss += resid * resid
	}
	sigma2 := rss / dof

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}

	table := make([]Coefficient, cols)
	for j := 0; j < cols; j++ {
		se := math.Sqrt(sigma2 * XTXInv.At(j, j))
		est := beta.AtVec(j)
		t := est / se
		p := 2 * tDist.Survival(math.Abs(t))

		name := "(Intercept)"
		if j > 0 {
			if lr.features != nil && j-1 < len(lr.features) {
				name = lr.features[j-1]
			} else {
				name = "x" + strconv.Itoa(j)
			}
		}
		table[j] = Coefficient{Feature: name, Estimate: est, StdError: se, TValue: t, PValue: p}
	}
	return table
}

// Predict implements model.Regressor.
//
// Errors:
//   - NotFittedError: Fit has not succeeded yet
//   - DimensionError: X has a different feature count than training
func (lr *Regression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer pkgerrors.Recover(&err, "LinearRegression.Predict")

	if !lr.state.IsFitted() {
		return nil, pkgerrors.NewNotFittedError("LinearRegression", "Predict")
	}

	r, c := X.Dims()
	if c != lr.nFeatures {
		return nil, pkgerrors.NewDimensionError("LinearRegression.Predict", lr.nFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.weights.AtVec(j)
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// Coefficients returns the inference table: one row per coefficient,
// intercept first.
func (lr *Regression) Coefficients() []Coefficient {
	out := make([]Coefficient, len(lr.coefs))
	copy(out, lr.coefs)
	return out
}

// Intercept returns the fitted intercept, 0 when unfitted.
func (lr *Regression) Intercept() float64 {
	if !lr.state.IsFitted() {
		return 0
	}
	return lr.intercept
}

// Weights returns a copy of the fitted coefficient vector, nil when
// unfitted.
func (lr *Regression) Weights() []float64 {
	if lr.weights == nil {
		return nil
	}
	out := make([]float64, lr.weights.Len())
	for i := range out {
		out[i] = lr.weights.AtVec(i)
	}
	return out
}

// IsFitted reports whether the model has been trained.
func (lr *Regression) IsFitted() bool { return lr.state.IsFitted() }

// CrossValidate runs k-fold cross-validation of a fresh OLS model on
// (X, y) and returns the pooled out-of-fold metrics. The receiver's own
// fitted state is not touched.
//
// Errors:
//   - TrainingError: fewer rows than folds
func (lr *Regression) CrossValidate(X, y *mat.Dense, k int, seed int64) (eval.CVSummary, error) {
	factory := func() model.Regressor { return NewRegression(lr.features) }
	return eval.CrossValidate(factory, X, y, k, seed)
}
