package sessionio

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/trials"
)

// SyntheticOptions shapes a generated session.
type SyntheticOptions struct {
	Name   string
	Trials int
	// TrialFrames is the length of every trial.
	TrialFrames int
	FPS         float64
	Seed        uint64
}

var contrasts = []float32{0, 0.0625, 0.125, 0.25, 1}

// Synthetic generates a plausible session: the wheel turns a quarter
// revolution during each open-loop period, towards the stimulus when the
// trial is correct and away from it otherwise. Paws follow the wheel.
func Synthetic(opts SyntheticOptions) *Session {
	if opts.Trials <= 0 {
		opts.Trials = 20
	}
	if opts.TrialFrames <= 0 {
		opts.TrialFrames = 240
	}
	if opts.FPS <= 0 {
		opts.FPS = 60
	}
	if opts.Name == "" {
		opts.Name = "synthetic"
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	frames := opts.Trials * opts.TrialFrames
	ch := make(map[string][]float32, len(timeseries.Required()))
	for _, name := range timeseries.Required() {
		ch[name] = make([]float32, frames)
	}

	recs := make([]trials.Record, opts.Trials)
	wheel := float32(0)
	for i := range recs {
		start := i * opts.TrialFrames
		stimOn := start + opts.TrialFrames/4 + rng.IntN(opts.TrialFrames/8+1)
		feedback := stimOn + opts.TrialFrames/8 + rng.IntN(opts.TrialFrames/4+1)
		rec := trials.Record{
			Start:    start,
			StimOn:   stimOn,
			Feedback: feedback,
			Right:    rng.IntN(2) == 0,
			Contrast: contrasts[rng.IntN(len(contrasts))],
			Correct:  rng.Float64() < 0.8,
		}
		recs[i] = rec

		// a correct response moves the stimulus to the centre
		dir := float32(1)
		if rec.Right != rec.Correct {
			dir = -1
		}
		turn := dir * math.Pi / 2
		startWheel := wheel
		for f := start; f < start+opts.TrialFrames; f++ {
			switch {
			case f >= stimOn && f <= feedback:
				t := float32(f-stimOn) / float32(max(feedback-stimOn, 1))
				wheel = startWheel + turn*t
			case f > feedback:
				wheel = startWheel + turn
			}
			ch[timeseries.WheelAngleSignal][f] = wheel
		}
	}

	jitter := 1 / (opts.FPS * 50)
	for f := 0; f < frames; f++ {
		ch[timeseries.FrameDuration][f] = float32(1/opts.FPS + (rng.Float64()-0.5)*jitter)
		// the side cameras run at the same rate; the body camera at half
		ch[timeseries.LeftLocalIndex][f] = float32(f)
		ch[timeseries.BodyLocalIndex][f] = float32(f) / 2

		w := float64(ch[timeseries.WheelAngleSignal][f])
		for k, p := range timeseries.Paws {
			offset := float64(k) * 40
			ch[p.X][f] = float32(320 + offset + 30*math.Sin(w) + rng.NormFloat64())
			ch[p.Y][f] = float32(240 + offset/2 + 20*math.Cos(w) + rng.NormFloat64())
		}
	}

	var size int64
	for _, v := range ch {
		size += int64(len(v) * 4)
	}
	return &Session{Name: opts.Name, Trials: recs, Channels: ch, Bytes: size}
}
