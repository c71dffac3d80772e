// Package report renders the comparison tables and exploratory charts of
// a pipeline run. Tables are plain text written to any io.Writer; charts
// are PNG files rendered with gonum/plot.
//
// Nothing in here is part of the modeling contract: the pipeline hands
// over fitted models, evaluation results and the modeling frame, and this
// package only formats them.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/montanaflynn/stats"

	"github.com/petroml/orfcast/dataset"
	"github.com/petroml/orfcast/eval"
	"github.com/petroml/orfcast/forest"
	"github.com/petroml/orfcast/linear"
)

// ModelEvaluation is one row of the RMSE comparison table. Err is set
// when the model failed to train; its RMSE fields are then meaningless.
type ModelEvaluation struct {
	Model     string
	TrainRMSE float64
	TestRMSE  float64
	Err       error
}

// PercentileRow is one row of the percentile table.
type PercentileRow struct {
	Parameter string
	P10       float64
	P50       float64
	P90       float64
}

// WriteComparisonTable writes the Train/Test RMSE comparison across all
// models. Models that failed to train are listed with the failure instead
// of numbers.
func WriteComparisonTable(w io.Writer, evals []ModelEvaluation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Model\tTrain_RMSE\tTest_RMSE")
	for _, e := range evals {
		if e.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t(%v)\n", e.Model, e.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", e.Model, e.TrainRMSE, e.TestRMSE)
	}
	return tw.Flush()
}

// WriteCVTable writes the cross-validation summary of the ensemble model.
func WriteCVTable(w io.Writer, cv eval.CVSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RMSE\tRsquared\tMAE")
	fmt.Fprintf(tw, "%.4f\t%.4f\t%.4f\n", cv.RMSE, cv.R2, cv.MAE)
	return tw.Flush()
}

// WriteCoefficientTable writes the OLS inference table.
func WriteCoefficientTable(w io.Writer, coefs []linear.Coefficient) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Feature\tEstimate\tStd.Error\tT-value\tP-value")
	for _, c := range coefs {
		fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%.4f\t%.4g\n",
			c.Feature, c.Estimate, c.StdError, c.TValue, c.PValue)
	}
	return tw.Flush()
}

// WriteImportanceTable writes the feature-importance ranking.
func WriteImportanceTable(w io.Writer, imps []forest.Importance) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Feature\tImportance")
	for _, imp := range imps {
		fmt.Fprintf(tw, "%s\t%.2f\n", imp.Feature, imp.Score)
	}
	return tw.Flush()
}

// PercentileTable computes {P10, P50, P90} for each named column present
// in the frame. Absent columns are skipped, mirroring the per-parameter
// filter policy.
func PercentileTable(f *dataset.Frame, params []string) ([]PercentileRow, error) {
	var rows []PercentileRow
	for _, param := range params {
		col := f.Column(param)
		if col == nil {
			continue
		}
		data := stats.Float64Data(col)
		p10, err := stats.Percentile(data, 10)
		if err != nil {
			return nil, err
		}
		p50, err := stats.Percentile(data, 50)
		if err != nil {
			return nil, err
		}
		p90, err := stats.Percentile(data, 90)
		if err != nil {
			return nil, err
		}
		rows = append(rows, PercentileRow{Parameter: param, P10: p10, P50: p50, P90: p90})
	}
	return rows, nil
}

// WritePercentileTable writes the percentile table.
func WritePercentileTable(w io.Writer, rows []PercentileRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Parameter\tP10\tP50\tP90")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\n", r.Parameter, r.P10, r.P50, r.P90)
	}
	return tw.Flush()
}
