package playback

import (
	"github.com/banshee-data/trialviewer/internal/stimulus"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/trials"
	"github.com/banshee-data/trialviewer/internal/wheel"
)

// TrialContext is everything derived from the current trial number. It is
// rebuilt as a whole on every advance or navigation and never patched.
type TrialContext struct {
	TrialNo int
	Trial   stimulus.Trial
	Next    trials.Record
	HasNext bool
}

// buildContext derives the context for trial n. For the last trial the
// feedback-held phase runs to the end of the session.
func buildContext(index *trials.Index, store *timeseries.Store, geom wheel.Geometry, n int) (TrialContext, error) {
	cur, err := index.RecordAt(n)
	if err != nil {
		return TrialContext{}, err
	}

	tc := TrialContext{
		TrialNo: n,
		Trial: stimulus.Trial{
			Record:    cur,
			NextStart: store.Len(),
			SideFlip:  stimulus.SideFlip(cur.Right),
		},
	}
	if !index.IsLast(n) {
		next, err := index.RecordAt(n + 1)
		if err != nil {
			return TrialContext{}, err
		}
		tc.Next = next
		tc.HasNext = true
		tc.Trial.NextStart = next.Start
	}

	initRaw, err := store.Get(timeseries.WheelAngleSignal, min(cur.StimOn, store.Len()-1))
	if err != nil {
		return TrialContext{}, err
	}
	// a feedback frame equal to the session length reads the final sample
	endRaw, err := store.Get(timeseries.WheelAngleSignal, min(cur.Feedback, store.Len()-1))
	if err != nil {
		return TrialContext{}, err
	}
	tc.Trial.InitDeg = geom.Degrees(initRaw)
	tc.Trial.EndDeg = geom.Degrees(endRaw)
	return tc, nil
}
