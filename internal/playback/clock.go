package playback

import (
	"github.com/banshee-data/trialviewer/internal/media"
	"github.com/banshee-data/trialviewer/internal/timeseries"
)

// Clock derives the master frame from the reference track and accumulates
// elapsed session time from the per-frame durations.
type Clock struct {
	store *timeseries.Store
	time  float64
}

// NewClock returns a clock at time zero.
func NewClock(store *timeseries.Store) *Clock {
	return &Clock{store: store}
}

// Advance reads the reference track's current frame. While the track is not
// ready it reports ok=false and leaves time untouched; otherwise the frame's
// duration is added to the accumulated time.
func (c *Clock) Advance(ref media.Track) (frame int, ok bool, err error) {
	pos := ref.Frame()
	if !pos.Ready {
		return 0, false, nil
	}
	dt, err := c.store.Get(timeseries.FrameDuration, pos.Frame)
	if err != nil {
		return 0, false, err
	}
	c.time += float64(dt)
	return pos.Frame, true, nil
}

// Time returns the accumulated session time in seconds.
func (c *Clock) Time() float64 {
	return c.time
}
