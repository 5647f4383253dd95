// Package playback drives trial replay: it follows the reference video track,
// advances trials, evaluates the stimulus and cues, and handles navigation.
package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goki/mat32"

	"github.com/banshee-data/trialviewer/internal/media"
	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/stimulus"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/timeutil"
	"github.com/banshee-data/trialviewer/internal/trials"
	"github.com/banshee-data/trialviewer/internal/wheel"
)

var (
	// ErrNavigationBoundary is returned for prev on the first trial and next
	// on the last. State is left unchanged.
	ErrNavigationBoundary = errors.New("no trial in that direction")
	// ErrNotLoaded is returned by Tick and navigation before Load completes.
	ErrNotLoaded = errors.New("session not loaded")
)

var logf = monitoring.Tagged("playback")

// DefaultPollInterval is how often Load polls track readiness.
const DefaultPollInterval = 20 * time.Millisecond

// Session is the immutable data one engine replays.
type Session struct {
	Store  *timeseries.Store
	Trials *trials.Index
}

// Options configures an Engine. Zero values take defaults.
type Options struct {
	Host               HostObserver
	Clock              timeutil.Clock
	Geometry           wheel.Geometry
	GoCueDuration      time.Duration
	OutcomeCueDuration time.Duration
	PollInterval       time.Duration
}

// Overlay is one tracked paw position in video pixel coordinates. Tracked is
// false where the tracker lost the paw and the channels hold NaN; the
// position is then meaningless and encodes as null.
type Overlay struct {
	Name     string     `json:"name"`
	Tracked  bool       `json:"tracked"`
	Position mat32.Vec2 `json:"position"`
}

// transition is a pending seek. When resume is set, playback restarts once
// every track is prepared.
type transition struct {
	handle media.Handle
	resume bool
}

// Engine is the playback state machine. It is single-threaded: every method
// must be called from the goroutine that owns it (see Runner).
type Engine struct {
	store  *timeseries.Store
	index  *trials.Index
	coord  *media.Coordinator
	host   HostObserver
	clock  timeutil.Clock
	geom   wheel.Geometry
	poll   time.Duration
	pclock *Clock
	cues   *stimulus.CueController

	loaded   bool
	playing  bool
	ctx      TrialContext
	master   int
	wheelDeg float32
	stim     stimulus.State
	overlays []Overlay
	lastSeek media.LocalFrames
	pending  *transition
	fired    []stimulus.CueEvent
}

// NewEngine validates the session against the channels playback needs and
// returns a stopped, unloaded engine.
func NewEngine(sess Session, coord *media.Coordinator, opts Options) (*Engine, error) {
	if sess.Store == nil || sess.Trials == nil || coord == nil {
		return nil, fmt.Errorf("engine needs a store, a trial index and a coordinator")
	}
	if err := sess.Store.Require(timeseries.Required()...); err != nil {
		return nil, err
	}
	if err := sess.Trials.ValidateAgainst(sess.Store.Len()); err != nil {
		return nil, err
	}

	if opts.Host == nil {
		opts.Host = NopHost{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Geometry.UnitsPerRevolution == 0 {
		opts.Geometry = wheel.NewGeometry(0)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Engine{
		store:  sess.Store,
		index:  sess.Trials,
		coord:  coord,
		host:   opts.Host,
		clock:  opts.Clock,
		geom:   opts.Geometry,
		poll:   opts.PollInterval,
		pclock: NewClock(sess.Store),
		cues:   stimulus.NewCueController(opts.GoCueDuration, opts.OutcomeCueDuration),
	}, nil
}

// Load positions every track at the first trial's start and waits for them to
// be prepared. Playback stays stopped. Host.OnLoaded fires once all tracks
// are ready.
func (e *Engine) Load(ctx context.Context) error {
	tc, err := buildContext(e.index, e.store, e.geom, 0)
	if err != nil {
		return err
	}
	e.Stop()
	h, err := e.seekTo(tc)
	if err != nil {
		return err
	}
	if err := e.coord.Wait(ctx, h, e.clock, e.poll); err != nil {
		return fmt.Errorf("waiting for tracks: %w", err)
	}
	e.pending = nil
	e.loaded = true
	logf("loaded %d trials over %d frames", e.index.Count(), e.store.Len())
	e.host.OnLoaded()
	return nil
}

// Tick runs one update. It first resolves any pending transition, then, when
// playing and the reference track is ready:
//   - accumulates time and notifies the host
//   - advances through every trial whose next start has been reached
//   - evaluates the stimulus phase and position
//   - fires cues
//   - refreshes the paw overlays
//
// A tick on which the reference track is not ready mutates nothing. Playback
// stops after the tick that reaches the session's last frame, so time stops
// accumulating there.
func (e *Engine) Tick() error {
	if !e.loaded {
		return ErrNotLoaded
	}
	e.fired = e.fired[:0]
	e.pollTransition()
	if !e.playing {
		return nil
	}

	frame, ok, err := e.pclock.Advance(e.coord.Reference())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	e.host.OnTimeUpdated(e.pclock.Time())

	for e.ctx.HasNext && frame >= e.ctx.Trial.NextStart {
		next, err := buildContext(e.index, e.store, e.geom, e.ctx.TrialNo+1)
		if err != nil {
			return err
		}
		e.enterTrial(next)
		logf("advanced to trial %d at frame %d", next.TrialNo, frame)
		e.host.OnTrialChanged(next.TrialNo)
	}

	e.master = frame
	if err := e.evaluate(frame); err != nil {
		return err
	}
	e.fired = append(e.fired, e.cues.Update(frame, e.ctx.Trial, e.clock.Now())...)
	if err := e.refreshOverlays(frame); err != nil {
		return err
	}
	if frame >= e.store.Len()-1 {
		logf("end of session at frame %d, stopping", frame)
		e.Stop()
	}
	return nil
}

// Play starts playback from the current position.
func (e *Engine) Play() {
	if e.playing {
		return
	}
	e.playing = true
	e.coord.Play()
}

// Stop halts playback. A pending transition keeps tracking readiness but will
// not resume playback.
func (e *Engine) Stop() {
	if e.pending != nil {
		e.pending.resume = false
	}
	if !e.playing {
		return
	}
	e.playing = false
	e.coord.Stop()
}

// evaluate refreshes the wheel angle and stimulus state for frame.
func (e *Engine) evaluate(frame int) error {
	raw, err := e.store.Get(timeseries.WheelAngleSignal, frame)
	if err != nil {
		return err
	}
	e.wheelDeg = e.geom.Degrees(raw)
	e.stim = stimulus.Evaluate(frame, e.ctx.Trial, e.wheelDeg)
	return nil
}

func (e *Engine) refreshOverlays(frame int) error {
	out := make([]Overlay, 0, len(timeseries.Paws))
	for _, p := range timeseries.Paws {
		x, err := e.store.Get(p.X, frame)
		if err != nil {
			return err
		}
		y, err := e.store.Get(p.Y, frame)
		if err != nil {
			return err
		}
		out = append(out, Overlay{
			Name:     p.Name,
			Tracked:  finite(x) != nil && finite(y) != nil,
			Position: mat32.Vec2{X: x, Y: y},
		})
	}
	e.overlays = out
	return nil
}

// enterTrial replaces the trial context and re-arms the cues.
func (e *Engine) enterTrial(tc TrialContext) {
	e.ctx = tc
	e.cues.Reset()
}

// seekTo moves every track to the start of tc and makes it current. The
// stimulus and overlays are refreshed for the start frame so a paused view
// shows the new trial immediately.
func (e *Engine) seekTo(tc TrialContext) (media.Handle, error) {
	start := tc.Trial.Record.Start
	h, err := e.coord.SeekAndPrepare(start)
	if err != nil {
		return media.Handle{}, err
	}
	e.enterTrial(tc)
	e.master = start
	e.lastSeek = h.Local
	if err := e.evaluate(start); err != nil {
		return h, err
	}
	return h, e.refreshOverlays(start)
}

// pollTransition resumes playback once the pending seek is ready. A
// superseded transition is dropped.
func (e *Engine) pollTransition() {
	p := e.pending
	if p == nil {
		return
	}
	if e.coord.Superseded(p.handle) {
		e.pending = nil
		return
	}
	if !e.coord.IsReady(p.handle) {
		return
	}
	e.pending = nil
	if p.resume {
		logf("tracks ready at frame %d, resuming", p.handle.Master)
		e.Play()
	}
}
