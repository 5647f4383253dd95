package stimulus

import (
	"fmt"
	"time"
)

// Default auto-clear delays.
const (
	DefaultGoCueDuration      = 200 * time.Millisecond
	DefaultOutcomeCueDuration = 500 * time.Millisecond
)

// Cue is the visual/audio cue currently shown.
type Cue int

const (
	CueIdle Cue = iota
	CueGo
	CueCorrect
	CueIncorrect
)

func (c Cue) String() string {
	switch c {
	case CueGo:
		return "go"
	case CueCorrect:
		return "correct"
	case CueIncorrect:
		return "incorrect"
	default:
		return "idle"
	}
}

// MarshalText lets cues appear by name in JSON.
func (c Cue) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cue) UnmarshalText(b []byte) error {
	for d := CueIdle; d <= CueIncorrect; d++ {
		if d.String() == string(b) {
			*c = d
			return nil
		}
	}
	return fmt.Errorf("unknown cue %q", b)
}

// CueEvent records one cue firing.
type CueEvent struct {
	Cue   Cue       `json:"cue"`
	Frame int       `json:"frame"`
	At    time.Time `json:"at"`
}

// CueState holds the per-trial fired flags.
type CueState struct {
	GoFired       bool `json:"go_fired"`
	FeedbackFired bool `json:"feedback_fired"`
}

// CueController fires each trial's go and outcome cues once, on the first
// frame at or past their boundary, and clears the visual after a delay. Only
// the most recent cue's clear deadline is kept.
type CueController struct {
	goDuration      time.Duration
	outcomeDuration time.Duration

	state   CueState
	active  Cue
	clearAt time.Time
}

// NewCueController returns a controller with the given auto-clear delays.
// Non-positive delays fall back to the defaults.
func NewCueController(goDuration, outcomeDuration time.Duration) *CueController {
	if goDuration <= 0 {
		goDuration = DefaultGoCueDuration
	}
	if outcomeDuration <= 0 {
		outcomeDuration = DefaultOutcomeCueDuration
	}
	return &CueController{goDuration: goDuration, outcomeDuration: outcomeDuration}
}

// Update fires any cue whose boundary frame has been reached in this trial.
func (c *CueController) Update(frame int, tr Trial, now time.Time) []CueEvent {
	var fired []CueEvent

	if frame >= tr.Record.StimOn && !c.state.GoFired {
		c.state.GoFired = true
		c.show(CueGo, now.Add(c.goDuration))
		fired = append(fired, CueEvent{Cue: CueGo, Frame: frame, At: now})
	}

	if frame >= tr.Record.Feedback && !c.state.FeedbackFired {
		c.state.FeedbackFired = true
		outcome := CueIncorrect
		if tr.Record.Correct {
			outcome = CueCorrect
		}
		c.show(outcome, now.Add(c.outcomeDuration))
		fired = append(fired, CueEvent{Cue: outcome, Frame: frame, At: now})
	}

	return fired
}

// show replaces the visible cue and its pending clear.
func (c *CueController) show(cue Cue, clearAt time.Time) {
	c.active = cue
	c.clearAt = clearAt
}

// Visual returns the cue to display at now.
func (c *CueController) Visual(now time.Time) Cue {
	if c.active != CueIdle && !now.Before(c.clearAt) {
		c.active = CueIdle
		c.clearAt = time.Time{}
	}
	return c.active
}

// Reset re-arms both cues for a new trial. A visual still on screen keeps its
// clear deadline.
func (c *CueController) Reset() {
	c.state = CueState{}
}

// State returns the fired flags.
func (c *CueController) State() CueState {
	return c.state
}
