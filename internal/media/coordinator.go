package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goki/mat32"

	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/timeutil"
)

// ErrSuperseded is returned by Wait when a newer SeekAndPrepare replaced the
// handle being waited on.
var ErrSuperseded = errors.New("seek superseded by a newer request")

var logf = monitoring.Tagged("sync")

// Handle identifies one SeekAndPrepare request.
type Handle struct {
	gen    uint64
	Master int
	Local  LocalFrames
}

// LocalFrames holds the seek target of each track for one master frame.
type LocalFrames struct {
	Right int `json:"right"`
	Left  int `json:"left"`
	Body  int `json:"body"`
}

// Coordinator keeps the three tracks aligned on seeks. It is not safe for
// concurrent use; the playback runner owns it.
type Coordinator struct {
	store  *timeseries.Store
	tracks Tracks
	gen    uint64
}

// NewCoordinator returns a Coordinator over a complete set of tracks. The
// store must carry the left and body local index channels.
func NewCoordinator(store *timeseries.Store, tracks Tracks) (*Coordinator, error) {
	if !tracks.Complete() {
		return nil, fmt.Errorf("coordinator needs right, left and body tracks")
	}
	if err := store.Require(timeseries.LeftLocalIndex, timeseries.BodyLocalIndex); err != nil {
		return nil, err
	}
	return &Coordinator{store: store, tracks: tracks}, nil
}

// Reference returns the track whose local frame is the master frame.
func (c *Coordinator) Reference() Track {
	return c.tracks.Right
}

// LocalFrames maps a master frame onto each track.
func (c *Coordinator) LocalFrames(master int) (LocalFrames, error) {
	left, err := c.store.Get(timeseries.LeftLocalIndex, master)
	if err != nil {
		return LocalFrames{}, err
	}
	body, err := c.store.Get(timeseries.BodyLocalIndex, master)
	if err != nil {
		return LocalFrames{}, err
	}
	return LocalFrames{
		Right: master,
		Left:  int(mat32.Round(left)),
		Body:  int(mat32.Round(body)),
	}, nil
}

// SeekAndPrepare seeks every track to its local frame and asks each to
// prepare. Any earlier handle is superseded.
func (c *Coordinator) SeekAndPrepare(master int) (Handle, error) {
	local, err := c.LocalFrames(master)
	if err != nil {
		return Handle{}, err
	}

	c.tracks.Right.Seek(local.Right)
	c.tracks.Left.Seek(local.Left)
	c.tracks.Body.Seek(local.Body)

	for _, nt := range c.tracks.each() {
		nt.track.Prepare()
	}

	c.gen++
	logf("seek master=%d right=%d left=%d body=%d (gen %d)", master, local.Right, local.Left, local.Body, c.gen)
	return Handle{gen: c.gen, Master: master, Local: local}, nil
}

// Superseded reports whether a newer SeekAndPrepare replaced h.
func (c *Coordinator) Superseded(h Handle) bool {
	return h.gen != c.gen
}

// IsReady polls the tracks without blocking. Every track is polled on each
// call so that all of them make progress.
func (c *Coordinator) IsReady(h Handle) bool {
	if c.Superseded(h) {
		return false
	}
	ready := true
	for _, nt := range c.tracks.each() {
		if !nt.track.IsPrepared() {
			ready = false
		}
	}
	return ready
}

// Wait suspends until h is ready, polling on every tick of the clock. It has
// no timeout of its own; ctx carries the caller's policy.
func (c *Coordinator) Wait(ctx context.Context, h Handle, clock timeutil.Clock, interval time.Duration) error {
	if c.IsReady(h) {
		return nil
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.Superseded(h) {
			return ErrSuperseded
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if c.IsReady(h) {
				return nil
			}
		}
	}
}

// Play starts all tracks.
func (c *Coordinator) Play() {
	for _, nt := range c.tracks.each() {
		nt.track.Play()
	}
}

// Stop halts all tracks.
func (c *Coordinator) Stop() {
	for _, nt := range c.tracks.each() {
		nt.track.Stop()
	}
}

// URLs returns each track's media URL.
func (c *Coordinator) URLs() map[TrackID]string {
	out := make(map[TrackID]string, 3)
	for _, nt := range c.tracks.each() {
		out[nt.id] = nt.track.URL()
	}
	return out
}
