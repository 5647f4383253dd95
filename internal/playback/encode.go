package playback

import (
	"encoding/json"
	"math"

	"github.com/goki/mat32"

	"github.com/banshee-data/trialviewer/internal/stimulus"
	"github.com/banshee-data/trialviewer/internal/trials"
)

// finite returns a pointer to v, or nil for NaN and ±Inf, which
// encoding/json refuses.
func finite(v float32) *float32 {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return nil
	}
	return &v
}

// MarshalJSON writes a null position for an untracked paw.
func (o Overlay) MarshalJSON() ([]byte, error) {
	out := struct {
		Name     string      `json:"name"`
		Tracked  bool        `json:"tracked"`
		Position *mat32.Vec2 `json:"position"`
	}{Name: o.Name, Tracked: o.Tracked}
	if o.Tracked {
		out.Position = &o.Position
	}
	return json.Marshal(out)
}

// MarshalJSON encodes the sample-derived floats as null when they are not
// finite. Decoding such a snapshot leaves them zero.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	type stim struct {
		stimulus.State
		Position *float32 `json:"position"`
		Contrast *float32 `json:"contrast"`
	}
	type record struct {
		trials.Record
		Contrast *float32 `json:"contrast"`
	}
	return json.Marshal(struct {
		plain
		WheelDeg *float32 `json:"wheel_deg"`
		Stimulus stim     `json:"stimulus"`
		Trial    record   `json:"trial"`
	}{
		plain:    plain(s),
		WheelDeg: finite(s.WheelDeg),
		Stimulus: stim{State: s.Stimulus, Position: finite(s.Stimulus.Position), Contrast: finite(s.Stimulus.Contrast)},
		Trial:    record{Record: s.Trial, Contrast: finite(s.Trial.Contrast)},
	})
}
