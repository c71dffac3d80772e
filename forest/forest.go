// Package forest implements the cross-validated random-forest model: a
// bagged ensemble of regression trees with a grid search over mtry, the
// number of features considered at each split.
//
// Training follows the reference protocol: 10-fold cross-validation is
// run for every mtry candidate in the grid 2..⌊p/3⌋ (step 2), the
// candidate with the lowest pooled CV RMSE wins, and the final forest is
// refit on the full training partition with that mtry. The fitted model
// also exposes the CV summary {RMSE, R², MAE} of the winning candidate
// and a per-predictor importance ranking scaled so the strongest
// predictor scores 100.
package forest

import (
	"math/rand"
	"runtime"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/petroml/orfcast/core/model"
	"github.com/petroml/orfcast/eval"
	pkgerrors "github.com/petroml/orfcast/pkg/errors"
	"github.com/petroml/orfcast/pkg/log"
	"github.com/petroml/orfcast/tree"
)

// Importance is one entry of the feature-importance ranking, scaled to
// [0, 100] with the most important feature at 100.
type Importance struct {
	Feature string
	Score   float64
}

// Config holds the forest hyperparameters. The zero value is not usable;
// use DefaultConfig.
type Config struct {
	NumTrees       int   // Trees per forest
	MinSamplesLeaf int   // Minimum rows per leaf
	MaxLeafNodes   int   // Leaf cap per tree
	CVFolds        int   // Folds for the mtry grid search
	Seed           int64 // Seeds bootstrap sampling, feature subsets and fold assignment
}

// DefaultConfig returns the reference protocol: 100 trees, minimum leaf
// size 5, at most 30 leaves, 10-fold cross-validation.
func DefaultConfig(seed int64) Config {
	return Config{
		NumTrees:       100,
		MinSamplesLeaf: 5,
		MaxLeafNodes:   30,
		CVFolds:        10,
		Seed:           seed,
	}
}

// MtryGrid returns the mtry candidates for p predictors: 2 up to ⌊p/3⌋
// in steps of 2.
//
// Errors:
//   - ConfigurationError: ⌊p/3⌋ < 2, the grid would be empty
func MtryGrid(p int) ([]int, error) {
	lower := 2
	upper := p / 3
	if upper < lower {
		return nil, pkgerrors.NewConfigurationError("forest.MtryGrid",
			"mtry upper bound below lower bound; need at least 6 predictors")
	}
	var grid []int
	for m := lower; m <= upper; m += 2 {
		grid = append(grid, m)
	}
	return grid, nil
}

// Regressor is the cross-validated random forest, implementing
// model.Regressor. Immutable once fitted.
type Regressor struct {
	state    *model.StateManager
	cfg      Config
	features []string

	// Learned attributes
	bag          *bagging
	mtry_        int
	cv_          eval.CVSummary
	importances_ []Importance

	logger log.Logger
}

// NewRegressor creates an untrained forest. featureNames labels the
// importance ranking; pass nil for positional labels.
func NewRegressor(featureNames []string, cfg Config) *Regressor {
	return &Regressor{
		state:    model.NewStateManager(),
		cfg:      cfg,
		features: featureNames,
		logger: log.GetLoggerWithName("forest").With(
			log.ModelNameKey, "RandomForestRegressor",
			log.ComponentKey, "forest",
		),
	}
}

// Name implements model.Regressor.
func (f *Regressor) Name() string { return "RandomForest" }

// Fit runs the grid search and fits the final forest.
//
// Errors:
//   - TrainingError: fewer rows than CV folds
//   - ConfigurationError: empty mtry grid for this predictor count
func (f *Regressor) Fit(X, y mat.Matrix) (err error) {
	defer pkgerrors.Recover(&err, "RandomForest.Fit")

	start := time.Now()
	n, p := X.Dims()

	f.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.FeaturesKey, p,
	)

	if n < f.cfg.CVFolds {
		return pkgerrors.NewTrainingError("RandomForest", f.cfg.CVFolds, n)
	}

	grid, err := MtryGrid(p)
	if err != nil {
		return err
	}

	Xd, yd := denseCopy(X), denseCopy(y)

	bestRMSE := 0.0
	bestMtry := -1
	var bestCV eval.CVSummary
	for _, mtry := range grid {
		mtry := mtry
		factory := func() model.Regressor {
			return newBagging(f.cfg, mtry)
		}
		cv, err := eval.CrossValidate(factory, Xd, yd, f.cfg.CVFolds, f.cfg.Seed)
		if err != nil {
			return err
		}
		f.logger.Info("Grid candidate evaluated",
			"mtry", mtry,
			"cv_rmse", cv.RMSE,
		)
		if bestMtry == -1 || cv.RMSE < bestRMSE {
			bestRMSE = cv.RMSE
			bestMtry = mtry
			bestCV = cv
		}
	}

	f.mtry_ = bestMtry
	f.cv_ = bestCV

	f.bag = newBagging(f.cfg, bestMtry)
	if err := f.bag.Fit(Xd, yd); err != nil {
		return err
	}

	f.importances_ = f.scaleImportances(f.bag.importances())

	f.state.SetFitted()
	f.state.SetDimensions(p, n)

	f.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		"mtry", bestMtry,
		"cv_rmse", bestCV.RMSE,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict implements model.Regressor.
//
// Errors:
//   - NotFittedError: Fit has not succeeded yet
func (f *Regressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer pkgerrors.Recover(&err, "RandomForest.Predict")

	if !f.state.IsFitted() {
		return nil, pkgerrors.NewNotFittedError("RandomForest", "Predict")
	}
	return f.bag.Predict(X)
}

// Mtry returns the grid-search winner, -1 before fitting.
func (f *Regressor) Mtry() int {
	if !f.state.IsFitted() {
		return -1
	}
	return f.mtry_
}

// CVSummary returns the cross-validation metrics of the winning mtry.
func (f *Regressor) CVSummary() eval.CVSummary { return f.cv_ }

// Importances returns the feature-importance ranking scaled to [0, 100],
// in descending score order.
func (f *Regressor) Importances() []Importance {
	out := make([]Importance, len(f.importances_))
	copy(out, f.importances_)
	return out
}

// IsFitted reports whether the model has been trained.
func (f *Regressor) IsFitted() bool { return f.state.IsFitted() }

// scaleImportances converts mean per-tree importances into the reported
// ranking: descending order, strongest feature pinned at 100.
func (f *Regressor) scaleImportances(raw []float64) []Importance {
	maxScore := 0.0
	for _, v := range raw {
		if v > maxScore {
			maxScore = v
		}
	}

	out := make([]Importance, len(raw))
	for i, v := range raw {
		name := "x" + strconv.Itoa(i)
		if f.features != nil && i < len(f.features) {
			name = f.features[i]
		}
		score := 0.0
		if maxScore > 0 {
			score = v / maxScore * 100
		}
		out[i] = Importance{Feature: name, Score: score}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

// bagging is a plain bootstrap-aggregated forest with a fixed mtry. It is
// the unit the grid search cross-validates; Regressor wraps the winning
// configuration.
type bagging struct {
	state *model.StateManager
	cfg   Config
	mtry  int
	trees []*tree.Regressor
}

func newBagging(cfg Config, mtry int) *bagging {
	return &bagging{state: model.NewStateManager(), cfg: cfg, mtry: mtry}
}

func (b *bagging) Name() string { return "RandomForest" }

func (b *bagging) Fit(X, y mat.Matrix) error {
	n, p := X.Dims()
	if n < 2 {
		return pkgerrors.NewTrainingError("RandomForest", 2, n)
	}

	b.trees = make([]*tree.Regressor, b.cfg.NumTrees)
	Xd, yd := denseCopy(X), denseCopy(y)

	// Trees are independent given their per-tree seed, so they fit in
	// parallel over a read-only view of the data.
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for t := 0; t < b.cfg.NumTrees; t++ {
		t := t
		g.Go(func() error {
			treeSeed := b.cfg.Seed + int64(t)
			rng := rand.New(rand.NewSource(treeSeed))

			boot := make([]int, n)
			for i := range boot {
				boot[i] = rng.Intn(n)
			}

			tr := tree.NewRegressor(
				tree.WithCP(0),
				tree.WithMinSamplesLeaf(b.cfg.MinSamplesLeaf),
				tree.WithMaxLeafNodes(b.cfg.MaxLeafNodes),
				tree.WithMaxFeatures(b.mtry),
				tree.WithRandomState(treeSeed),
			)
			if err := tr.Fit(eval.SubsetRows(Xd, boot), eval.SubsetRows(yd, boot)); err != nil {
				return err
			}
			b.trees[t] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	b.state.SetFitted()
	b.state.SetDimensions(p, n)
	return nil
}

func (b *bagging) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !b.state.IsFitted() {
		return nil, pkgerrors.NewNotFittedError("RandomForest", "Predict")
	}

	n, _ := X.Dims()
	sum := make([]float64, n)
	for _, tr := range b.trees {
		pred, err := tr.Predict(X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			sum[i] += pred.At(i, 0)
		}
	}

	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, sum[i]/float64(len(b.trees)))
	}
	return out, nil
}

// importances returns the mean of per-tree normalized importances.
func (b *bagging) importances() []float64 {
	if len(b.trees) == 0 {
		return nil
	}
	acc := make([]float64, len(b.trees[0].FeatureImportances()))
	for _, tr := range b.trees {
		for i, v := range tr.FeatureImportances() {
			acc[i] += v
		}
	}
	for i := range acc {
		acc[i] /= float64(len(b.trees))
	}
	return acc
}

func denseCopy(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j))
		}
	}
	return out
}
