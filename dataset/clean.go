package dataset

import (
	"time"

	pkgerrors "github.com/petroml/orfcast/pkg/errors"
	"github.com/petroml/orfcast/pkg/log"
)

// TargetColumn is the fixed target variable: the oil recovery factor.
// Column names are case-sensitive.
const TargetColumn = "ORF"

// FilterParams are the eight reservoir parameters subject to the nonzero
// validity filter, in the order the filters are applied. A parameter
// absent from the schema silently skips its filter; the final projection
// is where absence becomes fatal.
var FilterParams = []string{"THK", "POROSITY", "SW", "PERMEABILITY", "PI", "API", "GOR", "ORF"}

// Predictors are the seven predictor columns every model trains on.
var Predictors = []string{"THK", "POROSITY", "SW", "PERMEABILITY", "PI", "API", "GOR"}

// FilterConfig holds the domain validity thresholds. The defaults encode
// reservoir physics: a gas-oil ratio of 10 or more means the well is
// effectively a gas producer, and crude below 5 API is not recoverable
// oil.
type FilterConfig struct {
	GORMin float64 // Rows kept only when GOR > GORMin
	GORMax float64 // Rows kept only when GOR < GORMax
	APIMin float64 // Rows kept only when API > APIMin
}

// DefaultFilterConfig returns the reference thresholds.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{GORMin: 0, GORMax: 10, APIMin: 5}
}

// Clean converts a raw Table into a numeric Frame.
//
// Policy, in order:
//  1. Drop every row with a missing value in any column of the full raw
//     schema, not just the modeling columns. One missing cell anywhere
//     discards the whole row.
//  2. Keep only columns whose every remaining cell parses as numeric.
//
// Fails with SchemaError if the target column does not survive the
// numeric restriction.
func Clean(t *Table, target string) (*Frame, error) {
	start := time.Now()
	logger := log.GetLoggerWithName("dataset").With(log.ComponentKey, "clean")

	width := len(t.Columns)

	// Complete cases only: a row qualifies when it has a cell for every
	// column and none of them is missing.
	complete := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if len(row) < width {
			continue
		}
		ok := true
		for c := 0; c < width; c++ {
			if missingCell(row[c]) {
				ok = false
				break
			}
		}
		if ok {
			complete = append(complete, row)
		}
	}

	var names []string
	var cols [][]float64
	for c, name := range t.Columns {
		col := make([]float64, 0, len(complete))
		numeric := true
		for _, row := range complete {
			v, ok := parseNumeric(row[c])
			if !ok {
				numeric = false
				break
			}
			col = append(col, v)
		}
		if numeric {
			names = append(names, name)
			cols = append(cols, col)
		}
	}

	frame, err := NewFrame(names, cols)
	if err != nil {
		return nil, err
	}
	if !frame.Has(target) {
		return nil, pkgerrors.NewSchemaError("Clean", target)
	}

	logger.Info("Cleaning completed",
		log.OperationKey, log.OperationClean,
		log.RowsKey, frame.NumRows(),
		log.ColumnsKey, frame.NumCols(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return frame, nil
}

// ApplyFilters applies the domain validity filters in their fixed order:
// the per-parameter nonzero checks in FilterParams order, then the GOR
// range, then the API floor. Each filter is an independent row predicate,
// so the result is order-independent; the order is fixed anyway to keep
// row-count logs comparable between runs.
//
// A parameter missing from the frame skips its nonzero filter. The range
// filters likewise skip when their column is absent. Absence is only
// fatal at Project.
func ApplyFilters(f *Frame, cfg FilterConfig) *Frame {
	logger := log.GetLoggerWithName("dataset").With(log.ComponentKey, "filter")
	before := f.NumRows()

	for _, param := range FilterParams {
		col := f.Column(param)
		if col == nil {
			logger.Warn("Filter column absent, skipping",
				log.ColumnsKey, param,
			)
			continue
		}
		// Exact comparison, matching the reference behavior. Non-integer
		// telemetry that merely rounds to zero survives this filter.
		f = f.FilterRows(func(i int) bool {
			return col[i] != 0
		})
	}

	if gor := f.Column("GOR"); gor != nil {
		f = f.FilterRows(func(i int) bool {
			return gor[i] > cfg.GORMin && gor[i] < cfg.GORMax
		})
	}
	if api := f.Column("API"); api != nil {
		f = f.FilterRows(func(i int) bool {
			return api[i] > cfg.APIMin
		})
	}

	logger.Info("Filtering completed",
		log.OperationKey, log.OperationClean,
		log.RowsKey, f.NumRows(),
		"rows_dropped", before-f.NumRows(),
	)
	return f
}

// Project reduces the frame to exactly the seven predictors plus the
// target, in that order. Unlike the nonzero filters, a missing predictor
// here is fatal: the models cannot train without the full predictor set.
//
// Errors:
//   - SchemaError: any predictor or the target is absent
func Project(f *Frame, target string) (*Frame, error) {
	names := make([]string, 0, len(Predictors)+1)
	names = append(names, Predictors...)
	names = append(names, target)
	return f.Select(names...)
}

// PrepareModelingFrame runs the complete preparation sequence on a raw
// table: clean, filter, project. The result is the immutable working
// dataset every model trains and evaluates on.
func PrepareModelingFrame(t *Table, cfg FilterConfig) (*Frame, error) {
	frame, err := Clean(t, TargetColumn)
	if err != nil {
		return nil, err
	}
	frame = ApplyFilters(frame, cfg)
	return Project(frame, TargetColumn)
}
