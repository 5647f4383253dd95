// Package charts renders session and trial figures: interactive go-echarts
// pages and static gonum/plot PNGs.
package charts

import (
	"github.com/banshee-data/trialviewer/internal/stimulus"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/trials"
	"github.com/banshee-data/trialviewer/internal/wheel"
)

// echarts JS is served from the public asset mirror.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Trace is one trial sampled frame by frame, from its start up to the next
// trial's start.
type Trace struct {
	TrialNo int
	Record  trials.Record
	Frames  []int
	// Times are seconds since the trial start.
	Times    []float64
	WheelDeg []float64
	// Position is the stimulus position, NaN while hidden.
	Position []float64
	Phases   []stimulus.Phase
}

// TraceTrial samples trial n. The stimulus position is evaluated exactly as
// playback would show it.
func TraceTrial(store *timeseries.Store, index *trials.Index, geom wheel.Geometry, n int) (Trace, error) {
	rec, err := index.RecordAt(n)
	if err != nil {
		return Trace{}, err
	}
	end := store.Len()
	if !index.IsLast(n) {
		next, err := index.RecordAt(n + 1)
		if err != nil {
			return Trace{}, err
		}
		end = next.Start
	}

	lastFrame := store.Len() - 1
	initRaw, err := store.Get(timeseries.WheelAngleSignal, min(rec.StimOn, lastFrame))
	if err != nil {
		return Trace{}, err
	}
	endRaw, err := store.Get(timeseries.WheelAngleSignal, min(rec.Feedback, lastFrame))
	if err != nil {
		return Trace{}, err
	}
	tr := stimulus.Trial{
		Record:    rec,
		NextStart: end,
		SideFlip:  stimulus.SideFlip(rec.Right),
		InitDeg:   geom.Degrees(initRaw),
		EndDeg:    geom.Degrees(endRaw),
	}

	out := Trace{TrialNo: n, Record: rec}
	elapsed := 0.0
	for f := rec.Start; f < end; f++ {
		raw, err := store.Get(timeseries.WheelAngleSignal, f)
		if err != nil {
			return Trace{}, err
		}
		dt, err := store.Get(timeseries.FrameDuration, f)
		if err != nil {
			return Trace{}, err
		}
		deg := geom.Degrees(raw)
		st := stimulus.Evaluate(f, tr, deg)

		pos := nan
		if st.Visible {
			pos = float64(st.Position)
		}
		out.Frames = append(out.Frames, f)
		out.Times = append(out.Times, elapsed)
		out.WheelDeg = append(out.WheelDeg, float64(deg))
		out.Position = append(out.Position, pos)
		out.Phases = append(out.Phases, st.Phase)
		elapsed += float64(dt)
	}
	return out, nil
}

// TimeAt returns the trace time of frame, or false when frame is outside it.
func (t Trace) TimeAt(frame int) (float64, bool) {
	if len(t.Frames) == 0 {
		return 0, false
	}
	i := frame - t.Frames[0]
	if i < 0 || i >= len(t.Times) {
		return 0, false
	}
	return t.Times[i], true
}
