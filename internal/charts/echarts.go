package charts

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trialviewer/internal/trials"
)

// echarts reads "-" as a gap in a series.
const gap = "-"

// RenderTracePage writes an HTML page plotting the wheel angle and the
// stimulus position of one trial.
func RenderTracePage(w io.Writer, session string, t Trace) error {
	x := make([]string, len(t.Times))
	wheelData := make([]opts.LineData, len(t.Times))
	posData := make([]opts.LineData, len(t.Times))
	for i := range t.Times {
		x[i] = strconv.FormatFloat(t.Times[i], 'f', 3, 64)
		wheelData[i] = opts.LineData{Value: t.WheelDeg[i]}
		if math.IsNaN(t.Position[i]) {
			posData[i] = opts.LineData{Value: gap}
		} else {
			posData[i] = opts.LineData{Value: t.Position[i]}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Trial trace", Width: "100%", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Trial %d", t.TrialNo),
			Subtitle: fmt.Sprintf("session=%s stim_on=%d feedback=%d correct=%t", session, t.Record.StimOn, t.Record.Feedback, t.Record.Correct),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time in trial (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Wheel (deg)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Stimulus position", Min: -1, Max: 2})
	line.SetXAxis(x).
		AddSeries("wheel", wheelData, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("stimulus", posData, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), YAxisIndex: 1}))

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(line)
	return page.Render(w)
}

// ContrastAccuracy is the fraction of correct trials at one contrast.
type ContrastAccuracy struct {
	Contrast float32 `json:"contrast"`
	Trials   int     `json:"trials"`
	Correct  int     `json:"correct"`
}

// Fraction returns Correct/Trials, or 0 with no trials.
func (c ContrastAccuracy) Fraction() float64 {
	if c.Trials == 0 {
		return 0
	}
	return float64(c.Correct) / float64(c.Trials)
}

// AccuracyByContrast groups records by contrast, ascending.
func AccuracyByContrast(records []trials.Record) []ContrastAccuracy {
	byContrast := make(map[float32]*ContrastAccuracy)
	for _, r := range records {
		acc, ok := byContrast[r.Contrast]
		if !ok {
			acc = &ContrastAccuracy{Contrast: r.Contrast}
			byContrast[r.Contrast] = acc
		}
		acc.Trials++
		if r.Correct {
			acc.Correct++
		}
	}
	out := make([]ContrastAccuracy, 0, len(byContrast))
	for _, acc := range byContrast {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contrast < out[j].Contrast })
	return out
}

// RenderSessionPage writes an HTML page with the per-trial response time and
// the accuracy at each contrast.
func RenderSessionPage(w io.Writer, session string, records []trials.Record, fps float64) error {
	x := make([]string, len(records))
	correct := make([]opts.BarData, len(records))
	incorrect := make([]opts.BarData, len(records))
	for i, r := range records {
		x[i] = strconv.Itoa(i)
		rt := float64(r.Feedback-r.StimOn) / fps
		if r.Correct {
			correct[i] = opts.BarData{Value: rt}
			incorrect[i] = opts.BarData{Value: gap}
		} else {
			correct[i] = opts.BarData{Value: gap}
			incorrect[i] = opts.BarData{Value: rt}
		}
	}

	rt := charts.NewBar()
	rt.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Session", Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Response time", Subtitle: fmt.Sprintf("session=%s trials=%d", session, len(records))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Trial", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Stimulus to feedback (s)"}),
	)
	rt.SetXAxis(x).
		AddSeries("correct", correct, charts.WithBarChartOpts(opts.BarChart{Stack: "rt"})).
		AddSeries("incorrect", incorrect, charts.WithBarChartOpts(opts.BarChart{Stack: "rt"}))

	accs := AccuracyByContrast(records)
	cx := make([]string, len(accs))
	cy := make([]opts.BarData, len(accs))
	for i, a := range accs {
		cx[i] = strconv.FormatFloat(float64(a.Contrast), 'g', -1, 32)
		cy[i] = opts.BarData{Value: a.Fraction()}
	}
	acc := charts.NewBar()
	acc.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Accuracy by contrast"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Contrast", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Fraction correct", Min: 0, Max: 1}),
	)
	acc.SetXAxis(cx).
		AddSeries("accuracy", cy, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(rt, acc)
	return page.Render(w)
}
