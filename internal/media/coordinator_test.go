package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

// fakeTrack becomes prepared after readyAfter polls following a Prepare.
type fakeTrack struct {
	url        string
	frame      int
	seeks      []int
	prepares   int
	readyAfter int
	polls      int
	prepared   bool
	playing    bool
}

func (f *fakeTrack) URL() string { return f.url }
func (f *fakeTrack) Frame() Position {
	if !f.prepared {
		return NotReady
	}
	return At(f.frame)
}
func (f *fakeTrack) Seek(frame int) {
	f.frame = frame
	f.seeks = append(f.seeks, frame)
	f.prepared = false
}
func (f *fakeTrack) IsPrepared() bool {
	if f.prepared {
		return true
	}
	if f.prepares == 0 {
		return false
	}
	f.polls++
	if f.polls > f.readyAfter {
		f.prepared = true
	}
	return f.prepared
}
func (f *fakeTrack) Prepare() { f.prepares++; f.polls = 0 }
func (f *fakeTrack) Play()    { f.playing = true }
func (f *fakeTrack) Stop()    { f.playing = false }

func newStore(t *testing.T) *timeseries.Store {
	t.Helper()
	s, err := timeseries.New(map[string][]float32{
		timeseries.LeftLocalIndex: {0, 0.4, 1.6, 2.5, 4},
		timeseries.BodyLocalIndex: {10, 11.2, 11.8, 13.49, 14.51},
	})
	require.NoError(t, err)
	return s
}

func newTracks(readyAfter int) (Tracks, *fakeTrack, *fakeTrack, *fakeTrack) {
	r := &fakeTrack{url: "r", readyAfter: readyAfter}
	l := &fakeTrack{url: "l", readyAfter: readyAfter}
	b := &fakeTrack{url: "b", readyAfter: readyAfter}
	return Tracks{Right: r, Left: l, Body: b}, r, l, b
}

func TestNewCoordinator_Validation(t *testing.T) {
	store := newStore(t)
	tracks, _, _, _ := newTracks(0)

	_, err := NewCoordinator(store, Tracks{Right: tracks.Right})
	assert.Error(t, err)

	empty, err := timeseries.New(map[string][]float32{timeseries.FrameDuration: {1}})
	require.NoError(t, err)
	_, err = NewCoordinator(empty, tracks)
	assert.True(t, errors.Is(err, timeseries.ErrUnknownChannel))
}

func TestLocalFrames_Rounding(t *testing.T) {
	c, err := NewCoordinator(newStore(t), func() Tracks { tr, _, _, _ := newTracks(0); return tr }())
	require.NoError(t, err)

	tests := []struct {
		master int
		want   LocalFrames
	}{
		{master: 0, want: LocalFrames{Right: 0, Left: 0, Body: 10}},
		{master: 1, want: LocalFrames{Right: 1, Left: 0, Body: 11}},
		{master: 2, want: LocalFrames{Right: 2, Left: 2, Body: 12}},
		{master: 3, want: LocalFrames{Right: 3, Left: 3, Body: 13}},
		{master: 4, want: LocalFrames{Right: 4, Left: 4, Body: 15}},
	}
	for _, tt := range tests {
		got, err := c.LocalFrames(tt.master)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "master %d", tt.master)
	}

	_, err = c.LocalFrames(5)
	assert.True(t, errors.Is(err, timeseries.ErrOutOfRange))
}

func TestSeekAndPrepare(t *testing.T) {
	tracks, r, l, b := newTracks(2)
	c, err := NewCoordinator(newStore(t), tracks)
	require.NoError(t, err)

	h, err := c.SeekAndPrepare(2)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, r.seeks)
	assert.Equal(t, []int{2}, l.seeks)
	assert.Equal(t, []int{12}, b.seeks)
	assert.Equal(t, 1, r.prepares)
	assert.Equal(t, 1, l.prepares)
	assert.Equal(t, 1, b.prepares)

	assert.False(t, c.IsReady(h))
	assert.False(t, c.IsReady(h))
	assert.True(t, c.IsReady(h), "all tracks ready after the third poll")
}

func TestIsReady_SupersededHandleNeverReady(t *testing.T) {
	tracks, _, _, _ := newTracks(0)
	c, err := NewCoordinator(newStore(t), tracks)
	require.NoError(t, err)

	old, err := c.SeekAndPrepare(1)
	require.NoError(t, err)
	latest, err := c.SeekAndPrepare(3)
	require.NoError(t, err)

	assert.True(t, c.Superseded(old))
	assert.False(t, c.IsReady(old))
	assert.True(t, c.IsReady(latest))
}

func TestSeekAndPrepare_OutOfRange(t *testing.T) {
	tracks, r, _, _ := newTracks(0)
	c, err := NewCoordinator(newStore(t), tracks)
	require.NoError(t, err)

	_, err = c.SeekAndPrepare(99)
	assert.True(t, errors.Is(err, timeseries.ErrOutOfRange))
	assert.Empty(t, r.seeks, "no track may move on a failed mapping")
}

func TestWait_Ready(t *testing.T) {
	tracks, _, _, _ := newTracks(3)
	c, err := NewCoordinator(newStore(t), tracks)
	require.NoError(t, err)

	h, err := c.SeekAndPrepare(0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx, h, timeutil.RealClock{}, time.Millisecond))
}

func TestWait_Cancelled(t *testing.T) {
	tracks, _, _, _ := newTracks(1 << 30)
	c, err := NewCoordinator(newStore(t), tracks)
	require.NoError(t, err)

	h, err := c.SeekAndPrepare(0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = c.Wait(ctx, h, timeutil.RealClock{}, time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWait_Superseded(t *testing.T) {
	tracks, _, _, _ := newTracks(1 << 30)
	c, err := NewCoordinator(newStore(t), tracks)
	require.NoError(t, err)

	h, err := c.SeekAndPrepare(0)
	require.NoError(t, err)
	_, err = c.SeekAndPrepare(1)
	require.NoError(t, err)

	err = c.Wait(context.Background(), h, timeutil.RealClock{}, time.Millisecond)
	assert.True(t, errors.Is(err, ErrSuperseded))
}

func TestPlayStopAndURLs(t *testing.T) {
	tracks, r, l, b := newTracks(0)
	c, err := NewCoordinator(newStore(t), tracks)
	require.NoError(t, err)

	c.Play()
	assert.True(t, r.playing && l.playing && b.playing)
	c.Stop()
	assert.False(t, r.playing || l.playing || b.playing)

	assert.Equal(t, map[TrackID]string{TrackRight: "r", TrackLeft: "l", TrackBody: "b"}, c.URLs())
	assert.Same(t, r, c.Reference())
}
