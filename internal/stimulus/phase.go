// Package stimulus evaluates what the subject saw at a given frame: the
// visual stimulus position driven by the wheel, and the one-shot go/outcome
// cues of each trial.
package stimulus

import (
	"fmt"

	"github.com/goki/mat32"

	"github.com/banshee-data/trialviewer/internal/trials"
)

// Fixed rest positions for the feedback-held phase.
const (
	RestPositionCorrect float32 = 0
	// ErrorRestPosition is the slot an incorrect trial's stimulus rests in.
	// It is a rendering slot, not an angular position.
	ErrorRestPosition float32 = 2
)

// Phase is the trial phase at a frame.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreStimulus
	PhaseOpenLoop
	PhaseFeedbackHeld
)

func (p Phase) String() string {
	switch p {
	case PhasePreStimulus:
		return "pre_stimulus"
	case PhaseOpenLoop:
		return "open_loop"
	case PhaseFeedbackHeld:
		return "feedback_held"
	default:
		return "idle"
	}
}

// MarshalText lets phases appear by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for q := PhaseIdle; q <= PhaseFeedbackHeld; q++ {
		if q.String() == string(b) {
			*p = q
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Trial is the per-trial context shared by the phase machine and the cue
// controller. It is computed once per trial change.
type Trial struct {
	Record    trials.Record
	NextStart int     // start of the next trial, or the session length for the last one
	SideFlip  float32 // +1 for a right-side stimulus, -1 for left
	InitDeg   float32 // wheel angle at stimulus onset
	EndDeg    float32 // wheel angle at feedback
}

// SideFlip returns +1 for right and -1 for left.
func SideFlip(right bool) float32 {
	if right {
		return 1
	}
	return -1
}

// State is the stimulus as it should be drawn.
type State struct {
	Phase    Phase   `json:"phase"`
	Visible  bool    `json:"visible"`
	Position float32 `json:"position"`
	Contrast float32 `json:"contrast"`
}

// Evaluate computes the stimulus state at frame given the wheel angle (in
// degrees) at that frame. It has no side effects.
func Evaluate(frame int, tr Trial, wheelDeg float32) State {
	r := tr.Record
	st := State{Contrast: r.Contrast}

	switch {
	case frame >= r.StimOn && frame <= r.Feedback:
		st.Phase = PhaseOpenLoop
		st.Visible = true
		t := InverseLerp(tr.EndDeg, tr.InitDeg, wheelDeg)
		if r.Correct {
			st.Position = tr.SideFlip * t
		} else {
			st.Position = 1 - tr.SideFlip*t
		}
	case frame > r.Feedback && frame <= tr.NextStart:
		st.Phase = PhaseFeedbackHeld
		st.Visible = true
		if r.Correct {
			st.Position = RestPositionCorrect
		} else {
			st.Position = ErrorRestPosition
		}
	case frame >= r.Start && frame < r.StimOn:
		st.Phase = PhasePreStimulus
	default:
		st.Phase = PhaseIdle
	}
	return st
}

// InverseLerp returns where x lies between a and b, clamped to [0,1]. A
// degenerate range yields 0.
func InverseLerp(a, b, x float32) float32 {
	if a == b {
		return 0
	}
	return mat32.Max(0, mat32.Min(1, (x-a)/(b-a)))
}
