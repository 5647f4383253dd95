package playback

import "fmt"

// NextTrial moves to the following trial. While playing, playback stops for
// the seek and resumes once every track is prepared.
func (e *Engine) NextTrial() error {
	if !e.loaded {
		return ErrNotLoaded
	}
	if e.index.IsLast(e.ctx.TrialNo) {
		return fmt.Errorf("%w: trial %d is the last", ErrNavigationBoundary, e.ctx.TrialNo)
	}
	tc, err := e.target(e.ctx.TrialNo + 1)
	if err != nil {
		return err
	}
	return e.changeTrial(tc, e.playing)
}

// PrevTrial moves to the preceding trial, resuming like NextTrial.
func (e *Engine) PrevTrial() error {
	if !e.loaded {
		return ErrNotLoaded
	}
	if e.index.IsFirst(e.ctx.TrialNo) {
		return fmt.Errorf("%w: trial %d is the first", ErrNavigationBoundary, e.ctx.TrialNo)
	}
	tc, err := e.target(e.ctx.TrialNo - 1)
	if err != nil {
		return err
	}
	return e.changeTrial(tc, e.playing)
}

// GotoTrial stops playback and seeks to the start of trial n without
// resuming.
func (e *Engine) GotoTrial(n int) error {
	if !e.loaded {
		return ErrNotLoaded
	}
	tc, err := e.target(n)
	if err != nil {
		return err
	}
	e.Stop()
	return e.changeTrial(tc, false)
}

// target builds the context for trial n and checks every track can seek to
// its start. Nothing is changed, so a rejected navigation leaves playback,
// and any pending resume, as it was.
func (e *Engine) target(n int) (TrialContext, error) {
	tc, err := buildContext(e.index, e.store, e.geom, n)
	if err != nil {
		return TrialContext{}, err
	}
	if _, err := e.coord.LocalFrames(tc.Trial.Record.Start); err != nil {
		return TrialContext{}, fmt.Errorf("trial %d: %w", n, err)
	}
	return tc, nil
}

// changeTrial starts a transition to tc. Any earlier pending transition is
// cancelled; if it was going to resume playback, the new one will.
func (e *Engine) changeTrial(tc TrialContext, resume bool) error {
	if e.pending != nil {
		resume = resume || e.pending.resume
		e.pending = nil
	}
	e.Stop()
	h, err := e.seekTo(tc)
	if err != nil {
		return err
	}
	e.pending = &transition{handle: h, resume: resume}
	logf("trial %d: seek to frame %d (resume=%t)", tc.TrialNo, tc.Trial.Record.Start, resume)
	e.host.OnTrialChanged(tc.TrialNo)
	return nil
}
