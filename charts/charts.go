// Package charts renders the dashboard figures as PNG images with gonum/plot.
package charts

import (
	"image/color"
	"io"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/sklearn/pipeline"
)

// Size is the rendered image size.
type Size struct {
	Width, Height vg.Length
}

// DefaultSize is used when a zero Size is given.
var DefaultSize = Size{Width: 8 * vg.Inch, Height: 6 * vg.Inch}

func (s Size) orDefault() Size {
	if s.Width <= 0 || s.Height <= 0 {
		return DefaultSize
	}
	return s
}

var identityColor = color.RGBA{R: 220, G: 20, B: 20, A: 255}

// ActualVsPredicted writes a scatter of actual (x) against predicted (y) with a dashed
// red y=x reference line spanning the range of actual.
func ActualVsPredicted(w io.Writer, actual, predicted []float64, size Size) error {
	if len(actual) == 0 {
		return errors.Wrap(errors.ErrEmptySelection, "actual vs predicted")
	}
	if len(actual) != len(predicted) {
		return errors.NewDimensionError("ActualVsPredicted", len(actual), len(predicted), 0)
	}

	p := plot.New()
	p.Title.Text = "Actual vs Predicted Revenue"
	p.X.Label.Text = "Actual Revenue"
	p.Y.Label.Text = "Predicted Revenue"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(actual))
	lo, hi := actual[0], actual[0]
	for i := range actual {
		pts[i].X = actual[i]
		pts[i].Y = predicted[i]
		lo = min(lo, actual[i])
		hi = max(hi, actual[i])
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "scatter")
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 160}
	scatter.GlyphStyle.Radius = vg.Points(2.5)

	line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "identity line")
	}
	line.LineStyle.Color = identityColor
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}

	p.Add(scatter, line)
	p.Legend.Add("Predictions", scatter)
	p.Legend.Add("Perfect prediction", line)
	p.Legend.Top = true
	p.Legend.Left = true

	return render(w, p, size)
}

// FeatureImportances writes a horizontal bar chart of the top n importances, the
// largest at the top. A non-positive n keeps every feature.
func FeatureImportances(w io.Writer, importances []pipeline.Importance, n int, size Size) error {
	if len(importances) == 0 {
		return errors.Wrap(errors.ErrNotAvailable, "feature importances")
	}

	top := TopN(importances, n)
	// Bars are drawn bottom-up, so ascending order puts the largest bar on top.
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score < top[j].Score })

	values := make(plotter.Values, len(top))
	names := make([]string, len(top))
	for i, imp := range top {
		values[i] = imp.Score
		names[i] = imp.Feature
	}

	p := plot.New()
	p.Title.Text = "Feature Importances"
	p.X.Label.Text = "Importance"

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return errors.Wrap(err, "bar chart")
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)

	return render(w, p, size)
}

// TopN returns at most n importances with the highest scores, in descending order.
func TopN(importances []pipeline.Importance, n int) []pipeline.Importance {
	out := append([]pipeline.Importance(nil), importances...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func render(w io.Writer, p *plot.Plot, size Size) error {
	size = size.orDefault()
	wt, err := p.WriterTo(size.Width, size.Height, "png")
	if err != nil {
		return errors.Wrap(err, "render png")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write png")
	}
	return nil
}
