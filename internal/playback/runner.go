package playback

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/trialviewer/internal/media"
	"github.com/banshee-data/trialviewer/internal/timeutil"
)

// ErrRunnerStopped is returned for commands sent after Run has returned.
var ErrRunnerStopped = errors.New("playback runner stopped")

// DefaultTickInterval matches a 60Hz display refresh.
const DefaultTickInterval = time.Second / 60

// Controller is the command surface the HTTP API and host bridge drive.
type Controller interface {
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
	NextTrial(ctx context.Context) error
	PrevTrial(ctx context.Context) error
	GotoTrial(ctx context.Context, n int) error
	Snapshot() Snapshot
	URLs() map[media.TrackID]string
}

type command struct {
	fn   func(*Engine) error
	errc chan error
}

// Runner owns an Engine on a single goroutine. Ticks and commands are
// serialised through Run's select loop; readers see the snapshot published
// after each one.
type Runner struct {
	engine   *Engine
	clock    timeutil.Clock
	interval time.Duration
	urls     map[media.TrackID]string
	// loadTimeout bounds Load; zero waits as long as ctx allows.
	loadTimeout time.Duration

	cmds chan command
	done chan struct{}
	snap atomic.Pointer[Snapshot]
}

// NewRunner wraps e. The engine must not be used directly once Run starts.
func NewRunner(e *Engine, clock timeutil.Clock, interval time.Duration) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	r := &Runner{
		engine:   e,
		clock:    clock,
		interval: interval,
		urls:     e.URLs(),
		cmds:     make(chan command),
		done:     make(chan struct{}),
	}
	r.publish()
	return r
}

// SetLoadTimeout bounds how long Run waits for the tracks to prepare. It must
// be called before Run.
func (r *Runner) SetLoadTimeout(d time.Duration) {
	r.loadTimeout = d
}

// Run loads the session and then ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	if err := r.load(ctx); err != nil {
		return err
	}
	r.publish()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.engine.Stop()
			r.publish()
			return nil
		case <-ticker.C():
			if err := r.engine.Tick(); err != nil {
				logf("tick failed, stopping: %v", err)
				r.engine.Stop()
			}
			r.publish()
		case cmd := <-r.cmds:
			err := cmd.fn(r.engine)
			r.publish()
			cmd.errc <- err
		}
	}
}

func (r *Runner) load(ctx context.Context) error {
	if r.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.loadTimeout)
		defer cancel()
	}
	if err := r.engine.Load(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	return nil
}

// Do runs fn on the engine goroutine and returns its error.
func (r *Runner) Do(ctx context.Context, fn func(*Engine) error) error {
	cmd := command{fn: fn, errc: make(chan error, 1)}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) publish() {
	s := r.engine.Snapshot()
	r.snap.Store(&s)
}

// Snapshot returns the most recently published state.
func (r *Runner) Snapshot() Snapshot {
	return *r.snap.Load()
}

// URLs returns the media URL of each track.
func (r *Runner) URLs() map[media.TrackID]string {
	out := make(map[media.TrackID]string, len(r.urls))
	for k, v := range r.urls {
		out[k] = v
	}
	return out
}

func (r *Runner) Play(ctx context.Context) error {
	return r.Do(ctx, func(e *Engine) error {
		if !e.loaded {
			return ErrNotLoaded
		}
		e.Play()
		return nil
	})
}

func (r *Runner) Stop(ctx context.Context) error {
	return r.Do(ctx, func(e *Engine) error {
		e.Stop()
		return nil
	})
}

func (r *Runner) NextTrial(ctx context.Context) error {
	return r.Do(ctx, (*Engine).NextTrial)
}

func (r *Runner) PrevTrial(ctx context.Context) error {
	return r.Do(ctx, (*Engine).PrevTrial)
}

func (r *Runner) GotoTrial(ctx context.Context, n int) error {
	return r.Do(ctx, func(e *Engine) error {
		return e.GotoTrial(n)
	})
}
