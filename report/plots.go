package report

import (
	"os"
	"path/filepath"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/petroml/orfcast/dataset"
	"github.com/petroml/orfcast/forest"
	pkgerrors "github.com/petroml/orfcast/pkg/errors"
)

// SaveScatterPlots renders one predictor-vs-target scatter PNG per
// predictor into dir.
func SaveScatterPlots(f *dataset.Frame, predictors []string, target, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	y := f.Column(target)
	if y == nil {
		return pkgerrors.NewSchemaError("SaveScatterPlots", target)
	}

	for _, name := range predictors {
		col := f.Column(name)
		if col == nil {
			continue
		}

		pts := make(plotter.XYs, len(col))
		for i := range col {
			pts[i].X = col[i]
			pts[i].Y = y[i]
		}

		p := plot.New()
		p.Title.Text = name + " vs " + target
		p.X.Label.Text = name
		p.Y.Label.Text = target

		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		p.Add(scatter)

		out := filepath.Join(dir, "scatter_"+name+".png")
		if err := p.Save(6*vg.Inch, 4*vg.Inch, out); err != nil {
			return err
		}
	}
	return nil
}

// SaveHistograms renders a histogram PNG per parameter with vertical
// markers at the P10, P50 and P90 percentiles.
func SaveHistograms(f *dataset.Frame, params []string, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, name := range params {
		col := f.Column(name)
		if col == nil {
			continue
		}

		p := plot.New()
		p.Title.Text = "Distribution of " + name
		p.X.Label.Text = name
		p.Y.Label.Text = "Count"

		hist, err := plotter.NewHist(plotter.Values(col), 16)
		if err != nil {
			return err
		}
		p.Add(hist)

		_, ymax := histHeight(hist)
		data := stats.Float64Data(col)
		for _, q := range []float64{10, 50, 90} {
			v, err := stats.Percentile(data, q)
			if err != nil {
				return err
			}
			marker, err := plotter.NewLine(plotter.XYs{{X: v, Y: 0}, {X: v, Y: ymax}})
			if err != nil {
				return err
			}
			marker.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(marker)
		}

		out := filepath.Join(dir, "hist_"+name+".png")
		if err := p.Save(6*vg.Inch, 4*vg.Inch, out); err != nil {
			return err
		}
	}
	return nil
}

// SaveImportanceBar renders the feature-importance ranking as a bar
// chart.
func SaveImportanceBar(imps []forest.Importance, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	values := make(plotter.Values, len(imps))
	names := make([]string, len(imps))
	for i, imp := range imps {
		values[i] = imp.Score
		names[i] = imp.Feature
	}

	p := plot.New()
	p.Title.Text = "Feature importance"
	p.Y.Label.Text = "Importance (scaled to 100)"

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return err
	}
	p.Add(bars)
	p.NominalX(names...)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// histHeight returns the x of the tallest bin and its height.
func histHeight(h *plotter.Histogram) (float64, float64) {
	var x, max float64
	for _, bin := range h.Bins {
		if bin.Weight > max {
			max = bin.Weight
			x = (bin.Min + bin.Max) / 2
		}
	}
	if max == 0 {
		max = 1
	}
	return x, max
}
