package charts

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var nan = math.NaN()

var (
	wheelColor    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	stimOnColor   = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	correctColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	errorColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	boundaryWidth = vg.Points(1)
)

// Figure size of a trial PNG.
const (
	PlotWidth  = 8 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

// WriteTracePNG plots the wheel angle over one trial with vertical markers at
// stimulus onset and feedback, and writes it as PNG.
func WriteTracePNG(w io.Writer, session string, t Trace) error {
	if len(t.Times) == 0 {
		return fmt.Errorf("trial %d has no frames", t.TrialNo)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s trial %d", session, t.TrialNo)
	p.X.Label.Text = "Time in trial (s)"
	p.Y.Label.Text = "Wheel (deg)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(t.Times))
	for i := range t.Times {
		pts[i] = plotter.XY{X: t.Times[i], Y: t.WheelDeg[i]}
	}
	wheelLine, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	wheelLine.Color = wheelColor
	wheelLine.Width = vg.Points(1.5)
	p.Add(wheelLine)
	p.Legend.Add("wheel", wheelLine)

	lo, hi := minMax(t.WheelDeg)
	outcome := errorColor
	if t.Record.Correct {
		outcome = correctColor
	}
	markers := []struct {
		name  string
		frame int
		color color.Color
	}{
		{"stim on", t.Record.StimOn, stimOnColor},
		{"feedback", t.Record.Feedback, outcome},
	}
	for _, m := range markers {
		at, ok := t.TimeAt(m.frame)
		if !ok {
			continue
		}
		vline, err := plotter.NewLine(plotter.XYs{{X: at, Y: lo}, {X: at, Y: hi}})
		if err != nil {
			return err
		}
		vline.Color = m.color
		vline.Width = boundaryWidth
		vline.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(vline)
		p.Legend.Add(m.name, vline)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(PlotWidth, PlotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// minMax pads a flat range so vertical markers stay visible.
func minMax(v []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi-lo < 1 {
		lo--
		hi++
	}
	return lo, hi
}
