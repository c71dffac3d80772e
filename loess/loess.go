// Package loess implements the locally-weighted regression model. Unlike
// the other three models it is univariate: during Fit it selects the
// single predictor with the largest absolute Pearson correlation to the
// target and smooths against that predictor alone.
//
// Prediction at a point x0 fits a weighted quadratic over the span
// fraction of training points nearest to x0, using the classical tricube
// weight (1 - (d/dmax)³)³. The reference smoothing span is 0.8.
package loess

import (
	"math"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/petroml/orfcast/core/model"
	pkgerrors "github.com/petroml/orfcast/pkg/errors"
	"github.com/petroml/orfcast/pkg/log"
)

// DefaultSpan is the reference smoothing span.
const DefaultSpan = 0.8

// minTrainRows is the fewest rows a quadratic local fit can work with.
const minTrainRows = 5

// SelectBestPredictor returns the column of X whose absolute Pearson
// correlation with y is largest, together with the per-column
// correlations. Ties break toward the lower column index, which follows
// the predictor declaration order.
//
// Errors:
//   - ValueError: X or y is empty
//   - DimensionError: row counts differ
func SelectBestPredictor(X, y mat.Matrix) (int, []float64, error) {
	n, p := X.Dims()
	ry, _ := y.Dims()
	if n == 0 || p == 0 {
		return 0, nil, pkgerrors.NewValueError("SelectBestPredictor", "empty data")
	}
	if ry != n {
		return 0, nil, pkgerrors.NewDimensionError("SelectBestPredictor", n, ry, 0)
	}

	target := make([]float64, n)
	for i := 0; i < n; i++ {
		target[i] = y.At(i, 0)
	}

	corrs := make([]float64, p)
	best := 0
	bestAbs := math.Inf(-1)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = X.At(i, j)
		}
		c := stat.Correlation(col, target, nil)
		corrs[j] = c
		if abs := math.Abs(c); abs > bestAbs {
			bestAbs = abs
			best = j
		}
	}
	return best, corrs, nil
}

// Regressor is the LOESS model, implementing model.Regressor. Immutable
// once fitted.
type Regressor struct {
	state    *model.StateManager
	span     float64
	features []string

	// Learned attributes
	predictor_ int // Selected column of X
	corrs_     []float64
	xs_        []float64 // Training values of the selected predictor, sorted with ys_
	ys_        []float64
	nFeatures_ int

	logger log.Logger
}

// NewRegressor creates an untrained LOESS model with the given span.
// featureNames labels the selected predictor in reports; pass nil to
// report the column index.
func NewRegressor(featureNames []string, span float64) *Regressor {
	if span <= 0 || span > 1 {
		span = DefaultSpan
	}
	return &Regressor{
		state:    model.NewStateManager(),
		span:     span,
		features: featureNames,
		logger: log.GetLoggerWithName("loess").With(
			log.ModelNameKey, "Loess",
			log.ComponentKey, "loess",
		),
	}
}

// Name implements model.Regressor.
func (l *Regressor) Name() string { return "Loess" }

// Fit selects the best predictor and stores the training pairs for local
// fitting at prediction time.
//
// Errors:
//   - TrainingError: fewer than 5 rows
//   - DimensionError: row counts of X and y differ
func (l *Regressor) Fit(X, y mat.Matrix) (err error) {
	defer pkgerrors.Recover(&err, "Loess.Fit")

	start := time.Now()
	n, p := X.Dims()
	if n < minTrainRows {
		return pkgerrors.NewTrainingError("Loess", minTrainRows, n)
	}

	best, corrs, err := SelectBestPredictor(X, y)
	if err != nil {
		return err
	}
	l.predictor_ = best
	l.corrs_ = corrs
	l.nFeatures_ = p

	pairs := make([][2]float64, n)
	for i := 0; i < n; i++ {
		pairs[i] = [2]float64{X.At(i, best), y.At(i, 0)}
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a][0] < pairs[b][0] })

	l.xs_ = make([]float64, n)
	l.ys_ = make([]float64, n)
	for i, pr := range pairs {
		l.xs_[i] = pr[0]
		l.ys_[i] = pr[1]
	}

	l.state.SetFitted()
	l.state.SetDimensions(p, n)

	l.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		"predictor", l.PredictorName(),
		"correlation", corrs[best],
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict implements model.Regressor. X must have the same feature count
// as training; only the selected predictor column is read.
//
// Errors:
//   - NotFittedError: Fit has not succeeded yet
//   - DimensionError: X has a different feature count than training
func (l *Regressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer pkgerrors.Recover(&err, "Loess.Predict")

	if !l.state.IsFitted() {
		return nil, pkgerrors.NewNotFittedError("Loess", "Predict")
	}

	n, p := X.Dims()
	if p != l.nFeatures_ {
		return nil, pkgerrors.NewDimensionError("Loess.Predict", l.nFeatures_, p, 1)
	}

	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, l.smoothAt(X.At(i, l.predictor_)))
	}
	return out, nil
}

// Predictor returns the selected column index, -1 before fitting.
func (l *Regressor) Predictor() int {
	if !l.state.IsFitted() {
		return -1
	}
	return l.predictor_
}

// PredictorName returns the selected predictor's name, or its index when
// no names were supplied.
func (l *Regressor) PredictorName() string {
	if l.features != nil && l.predictor_ < len(l.features) {
		return l.features[l.predictor_]
	}
	return "column " + strconv.Itoa(l.predictor_)
}

// Correlations returns the per-predictor Pearson correlations with the
// target computed during Fit.
func (l *Regressor) Correlations() []float64 {
	out := make([]float64, len(l.corrs_))
	copy(out, l.corrs_)
	return out
}

// IsFitted reports whether the model has been trained.
func (l *Regressor) IsFitted() bool { return l.state.IsFitted() }

// smoothAt evaluates the local quadratic at x0 over the span-nearest
// neighborhood.
func (l *Regressor) smoothAt(x0 float64) float64 {
	n := len(l.xs_)
	k := int(math.Ceil(l.span * float64(n)))
	if k < 3 {
		k = 3
	}
	if k > n {
		k = n
	}

	// The training xs are sorted, so the k nearest neighbors form a
	// contiguous window located with two pointers.
	lo, hi := l.window(x0, k)

	dmax := 0.0
	for i := lo; i < hi; i++ {
		if d := math.Abs(l.xs_[i] - x0); d > dmax {
			dmax = d
		}
	}
	if dmax == 0 {
		// All neighbors at x0 exactly; return their weighted mean.
		var sum float64
		for i := lo; i < hi; i++ {
			sum += l.ys_[i]
		}
		return sum / float64(hi-lo)
	}

	weights := make([]float64, hi-lo)
	for i := lo; i < hi; i++ {
		weights[i-lo] = tricube(math.Abs(l.xs_[i]-x0) / dmax)
	}

	if v, ok := l.weightedPoly(lo, hi, weights, x0, 2); ok {
		return v
	}
	if v, ok := l.weightedPoly(lo, hi, weights, x0, 1); ok {
		return v
	}

	var wSum, vSum float64
	for i := lo; i < hi; i++ {
		wSum += weights[i-lo]
		vSum += weights[i-lo] * l.ys_[i]
	}
	return vSum / wSum
}

// window returns [lo, hi) covering the k training points nearest x0.
func (l *Regressor) window(x0 float64, k int) (int, int) {
	n := len(l.xs_)
	lo := sort.SearchFloat64s(l.xs_, x0)
	hi := lo
	for hi-lo < k {
		switch {
		case lo == 0:
			hi++
		case hi == n:
			lo--
		case x0-l.xs_[lo-1] <= l.xs_[hi]-x0:
			lo--
		default:
			hi++
		}
	}
	return lo, hi
}

// weightedPoly solves the weighted polynomial least squares of the given
// degree over [lo, hi) and evaluates it at x0. Returns false when the
// normal equations are singular.
func (l *Regressor) weightedPoly(lo, hi int, weights []float64, x0 float64, degree int) (float64, bool) {
	m := degree + 1
	A := mat.NewDense(m, m, nil)
	b := mat.NewVecDense(m, nil)

	for i := lo; i < hi; i++ {
		w := weights[i-lo]
		// Center on x0 so the intercept is the fitted value.
		x := l.xs_[i] - x0
		powers := make([]float64, 2*m-1)
		powers[0] = 1
		for p := 1; p < len(powers); p++ {
			powers[p] = powers[p-1] * x
		}
		for r := 0; r < m; r++ {
			for c := 0; c < m; c++ {
				A.Set(r, c, A.At(r, c)+w*powers[r+c])
			}
			b.SetVec(r, b.AtVec(r)+w*powers[r]*l.ys_[i])
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(A, b); err != nil {
		return 0, false
	}
	return coef.AtVec(0), true
}

func tricube(u float64) float64 {
	if u >= 1 {
		return 0
	}
	c := 1 - u*u*u
	return c * c * c
}
