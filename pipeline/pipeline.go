// Package pipeline wires the full run together: acquire the dataset,
// clean and filter it, split it, fit the four models, evaluate everything
// with the shared RMSE contract, and hand the results to the report
// layer.
//
// The run is batch-oriented and fail-fast: any error before model fitting
// aborts the run. Model fitting itself supports partial success — a model
// that cannot train is recorded as failed and the remaining models still
// make it into the comparison table — unless Strict is set, which
// restores the reference halt-on-first-failure behavior.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/petroml/orfcast/core/model"
	"github.com/petroml/orfcast/dataset"
	"github.com/petroml/orfcast/eval"
	"github.com/petroml/orfcast/forest"
	"github.com/petroml/orfcast/linear"
	"github.com/petroml/orfcast/loess"
	"github.com/petroml/orfcast/metrics"
	pkgerrors "github.com/petroml/orfcast/pkg/errors"
	"github.com/petroml/orfcast/pkg/log"
	"github.com/petroml/orfcast/report"
	"github.com/petroml/orfcast/tree"
)

// Reference protocol constants.
const (
	DefaultRatio = 0.8
	DefaultSeed  = 123

	linearCVFolds = 5
)

// Config configures a pipeline run.
type Config struct {
	URL     string                // Archive URL
	WorkDir string                // Download/extraction directory
	OutDir  string                // Plot output directory; empty disables plots
	Seed    int64                 // Partitioning and forest seed
	Ratio   float64               // Train fraction
	Filters dataset.FilterConfig  // Domain validity thresholds
	Timeout time.Duration         // HTTP timeout
	Retries int                   // Download retries
	Strict  bool                  // Halt on the first model training failure
}

// DefaultConfig returns the reference run configuration for the given
// archive URL.
func DefaultConfig(url string) Config {
	return Config{
		URL:     url,
		WorkDir: "data",
		OutDir:  "plots",
		Seed:    DefaultSeed,
		Ratio:   DefaultRatio,
		Filters: dataset.DefaultFilterConfig(),
		Timeout: 60 * time.Second,
		Retries: 2,
	}
}

// Result is everything a run produces: the working dataset, the
// partition, the fitted models and their evaluations.
type Result struct {
	RunID     string
	Frame     *dataset.Frame
	Partition *eval.Partition

	Forest *forest.Regressor
	Linear *linear.Regression
	Tree   *tree.Regressor
	Loess  *loess.Regressor

	LinearCV    eval.CVSummary
	Evaluations []report.ModelEvaluation
	Percentiles []report.PercentileRow
}

// Run executes the full pipeline including dataset acquisition.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	loader := dataset.NewLoader(dataset.LoaderConfig{
		URL:     cfg.URL,
		Dir:     cfg.WorkDir,
		Target:  dataset.TargetColumn,
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
	})
	table, err := loader.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return RunWithTable(ctx, cfg, table)
}

// RunWithTable executes the pipeline on an already-loaded raw table. This
// is the entry point tests use to avoid the network.
func RunWithTable(ctx context.Context, cfg Config, table *dataset.Table) (*Result, error) {
	runID := uuid.NewString()
	logger := log.GetLoggerWithName("pipeline").With(
		log.RunIDKey, runID,
		log.PhaseKey, log.PhasePipeline,
	)
	start := time.Now()
	logger.Info("Run started",
		log.RowsKey, table.NumRows(),
		log.SeedKey, cfg.Seed,
	)

	if cfg.Ratio == 0 {
		cfg.Ratio = DefaultRatio
	}

	frame, err := dataset.PrepareModelingFrame(table, cfg.Filters)
	if err != nil {
		logger.Error("Cleaning stage failed", log.StageKey, "clean")
		return nil, err
	}

	partition, err := eval.TrainTestSplit(frame, dataset.TargetColumn, cfg.Ratio, cfg.Seed)
	if err != nil {
		logger.Error("Split stage failed", log.StageKey, "split")
		return nil, err
	}

	XTrain, err := partition.Train.Matrix(dataset.Predictors...)
	if err != nil {
		return nil, err
	}
	yTrain, err := partition.Train.Vector(dataset.TargetColumn)
	if err != nil {
		return nil, err
	}
	XTest, err := partition.Test.Matrix(dataset.Predictors...)
	if err != nil {
		return nil, err
	}
	yTest, err := partition.Test.Vector(dataset.TargetColumn)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     runID,
		Frame:     frame,
		Partition: partition,
		Forest:    forest.NewRegressor(dataset.Predictors, forest.DefaultConfig(cfg.Seed)),
		Linear:    linear.NewRegression(dataset.Predictors),
		Tree:      tree.NewRegressor(),
		Loess:     loess.NewRegressor(dataset.Predictors, loess.DefaultSpan),
	}

	// The four fits are independent and share only a read-only view of
	// the training partition.
	models := []model.Regressor{res.Forest, res.Linear, res.Tree, res.Loess}
	fitErrs := make([]error, len(models))

	var g errgroup.Group
	for i, m := range models {
		i, m := i, m
		g.Go(func() error {
			fitErrs[i] = m.Fit(XTrain, yTrain)
			return nil
		})
	}
	_ = g.Wait()

	for i, m := range models {
		if fitErrs[i] == nil {
			continue
		}
		if cfg.Strict {
			logger.Error("Model training failed", log.StageKey, "fit", log.ModelNameKey, m.Name())
			return nil, fitErrs[i]
		}
		logger.Warn("Model training failed, continuing without it",
			log.StageKey, "fit",
			log.ModelNameKey, m.Name(),
		)
	}

	// Linear model cross-validation, reported alongside its coefficients.
	if fitErrs[1] == nil {
		cv, err := res.Linear.CrossValidate(XTrain, yTrain, linearCVFolds, cfg.Seed)
		if err != nil {
			if cfg.Strict {
				return nil, err
			}
			logger.Warn("Linear cross-validation failed", log.StageKey, "fit")
		} else {
			res.LinearCV = cv
		}
	}

	for i, m := range models {
		ev := report.ModelEvaluation{Model: m.Name(), Err: fitErrs[i]}
		if fitErrs[i] == nil {
			trainRMSE, err := evaluateRMSE(m, XTrain, yTrain)
			if err != nil {
				return nil, err
			}
			testRMSE, err := evaluateRMSE(m, XTest, yTest)
			if err != nil {
				return nil, err
			}
			ev.TrainRMSE = trainRMSE
			ev.TestRMSE = testRMSE
		}
		res.Evaluations = append(res.Evaluations, ev)
	}

	res.Percentiles, err = report.PercentileTable(frame, dataset.FilterParams)
	if err != nil {
		return nil, err
	}

	if cfg.OutDir != "" {
		if err := savePlots(res, cfg.OutDir); err != nil {
			return nil, pkgerrors.Wrap(err, "orfcast: rendering plots")
		}
	}

	logger.Info("Run completed",
		log.RowsKey, frame.NumRows(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// evaluateRMSE applies the shared metric to one (model, partition half)
// pair.
func evaluateRMSE(m model.Regressor, X, y *mat.Dense) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	predVec, err := metrics.ColumnVector(pred)
	if err != nil {
		return 0, err
	}
	obsVec, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	return metrics.RMSE(obsVec, predVec)
}

func savePlots(res *Result, dir string) error {
	if err := report.SaveScatterPlots(res.Frame, dataset.Predictors, dataset.TargetColumn, dir); err != nil {
		return err
	}
	if err := report.SaveHistograms(res.Frame, dataset.FilterParams, dir); err != nil {
		return err
	}
	if res.Forest.IsFitted() {
		return report.SaveImportanceBar(res.Forest.Importances(), dir+"/importance.png")
	}
	return nil
}

// WriteReport writes every table of the run to w, in the reference
// order: CV summary, coefficient table, RMSE comparison, importance
// ranking, percentile table.
func WriteReport(w io.Writer, res *Result) error {
	write := func(title string, f func() error) error {
		if _, err := io.WriteString(w, "\n== "+title+" ==\n"); err != nil {
			return err
		}
		return f()
	}

	if res.Forest.IsFitted() {
		if err := write("Random forest cross-validation", func() error {
			return report.WriteCVTable(w, res.Forest.CVSummary())
		}); err != nil {
			return err
		}
	}
	if res.Linear.IsFitted() {
		if err := write("Linear model coefficients", func() error {
			return report.WriteCoefficientTable(w, res.Linear.Coefficients())
		}); err != nil {
			return err
		}
		if err := write("Linear model cross-validation", func() error {
			return report.WriteCVTable(w, res.LinearCV)
		}); err != nil {
			return err
		}
	}
	if err := write("RMSE comparison", func() error {
		return report.WriteComparisonTable(w, res.Evaluations)
	}); err != nil {
		return err
	}
	if res.Forest.IsFitted() {
		if err := write("Feature importance", func() error {
			return report.WriteImportanceTable(w, res.Forest.Importances())
		}); err != nil {
			return err
		}
	}
	return write("Parameter percentiles", func() error {
		return report.WritePercentileTable(w, res.Percentiles)
	})
}
