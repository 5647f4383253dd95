package playback

import (
	"github.com/banshee-data/trialviewer/internal/media"
	"github.com/banshee-data/trialviewer/internal/stimulus"
	"github.com/banshee-data/trialviewer/internal/trials"
)

// Snapshot is a read-only view of the engine after a tick or command.
type Snapshot struct {
	Loaded      bool                `json:"loaded"`
	Playing     bool                `json:"playing"`
	Preparing   bool                `json:"preparing"`
	MasterFrame int                 `json:"master_frame"`
	Time        float64             `json:"time"`
	TrialNo     int                 `json:"trial_no"`
	TrialCount  int                 `json:"trial_count"`
	CanPrev     bool                `json:"can_prev"`
	CanNext     bool                `json:"can_next"`
	Trial       trials.Record       `json:"trial"`
	NextStart   int                 `json:"next_start"`
	WheelDeg    float32             `json:"wheel_deg"`
	Stimulus    stimulus.State      `json:"stimulus"`
	Cue         stimulus.Cue        `json:"cue"`
	Cues        stimulus.CueState   `json:"cues"`
	Fired       []stimulus.CueEvent `json:"fired,omitempty"`
	Overlays    []Overlay           `json:"overlays"`
	LocalFrames media.LocalFrames   `json:"local_frames"`
}

// Snapshot captures the current state. The cue visual is resolved against the
// engine's clock.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Loaded:      e.loaded,
		Playing:     e.playing,
		Preparing:   e.pending != nil,
		MasterFrame: e.master,
		Time:        e.pclock.Time(),
		TrialNo:     e.ctx.TrialNo,
		TrialCount:  e.index.Count(),
		CanPrev:     e.loaded && !e.index.IsFirst(e.ctx.TrialNo),
		CanNext:     e.loaded && !e.index.IsLast(e.ctx.TrialNo),
		Trial:       e.ctx.Trial.Record,
		NextStart:   e.ctx.Trial.NextStart,
		WheelDeg:    e.wheelDeg,
		Stimulus:    e.stim,
		Cue:         e.cues.Visual(e.clock.Now()),
		Cues:        e.cues.State(),
		Overlays:    append([]Overlay(nil), e.overlays...),
		LocalFrames: e.lastSeek,
	}
	if len(e.fired) > 0 {
		s.Fired = append([]stimulus.CueEvent(nil), e.fired...)
	}
	return s
}

// TrialContext returns the current trial context.
func (e *Engine) TrialContext() TrialContext {
	return e.ctx
}

// URLs returns the media URL of each track.
func (e *Engine) URLs() map[media.TrackID]string {
	return e.coord.URLs()
}
