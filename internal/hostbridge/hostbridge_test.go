package hostbridge

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/goki/mat32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/trialviewer/internal/media"
	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/playback"
	"github.com/banshee-data/trialviewer/internal/trials"
)

func init() {
	monitoring.SetLogger(nil)
}

type fakeController struct {
	mu    sync.Mutex
	calls []string
	err   error
	snap  playback.Snapshot
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.err != nil {
		return f.err
	}
	switch call {
	case "play":
		f.snap.Playing = true
	case "stop":
		f.snap.Playing = false
	case "next":
		f.snap.TrialNo++
	case "prev":
		f.snap.TrialNo--
	}
	return nil
}

func (f *fakeController) Play(context.Context) error      { return f.record("play") }
func (f *fakeController) Stop(context.Context) error      { return f.record("stop") }
func (f *fakeController) NextTrial(context.Context) error { return f.record("next") }
func (f *fakeController) PrevTrial(context.Context) error { return f.record("prev") }

func (f *fakeController) GotoTrial(_ context.Context, n int) error {
	if err := f.record(fmt.Sprintf("goto %d", n)); err != nil {
		return err
	}
	f.mu.Lock()
	f.snap.TrialNo = n
	f.mu.Unlock()
	return nil
}

func (f *fakeController) Snapshot() playback.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) URLs() map[media.TrackID]string { return nil }

func (f *fakeController) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func startBridge(t *testing.T, ctrl playback.Controller, pub *Publisher) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(ctrl, pub).Register(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPublisher_FanOut(t *testing.T) {
	p := NewPublisher(4)
	a, cancelA := p.Subscribe()
	b, cancelB := p.Subscribe()
	defer cancelB()

	p.OnLoaded()
	p.OnTrialChanged(2)

	for _, ch := range []<-chan Event{a, b} {
		assert.Equal(t, Event{Seq: 1, Kind: KindLoaded}, <-ch)
		assert.Equal(t, Event{Seq: 2, Kind: KindTrialChanged, TrialNo: 2}, <-ch)
	}

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open, "cancel closes the channel")

	p.OnTimeUpdated(0.5)
	assert.Equal(t, Event{Seq: 3, Kind: KindTimeUpdated, Time: 0.5}, <-b)
	assert.Equal(t, 1, p.Stats().Clients)
}

func TestPublisher_DropsForSlowClient(t *testing.T) {
	p := NewPublisher(2)
	ch, cancel := p.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		p.OnTimeUpdated(float64(i))
	}
	stats := p.Stats()
	assert.Equal(t, uint64(5), stats.Events)
	assert.Equal(t, uint64(3), stats.Dropped)
	assert.Equal(t, 0.0, (<-ch).Time, "the oldest events are kept")
	assert.Equal(t, 1.0, (<-ch).Time)
}

func TestPublisher_NoClients(t *testing.T) {
	p := NewPublisher(0)
	p.OnLoaded()
	assert.Equal(t, PublisherStats{Events: 1}, p.Stats())
}

func TestServer_Commands(t *testing.T) {
	ctrl := &fakeController{snap: playback.Snapshot{Loaded: true, TrialCount: 10}}
	c := startBridge(t, ctrl, NewPublisher(0))
	ctx := context.Background()

	st, err := c.GetState(ctx)
	require.NoError(t, err)
	assert.True(t, st.GetFields()["loaded"].GetBoolValue())
	assert.Equal(t, 10.0, st.GetFields()["trial_count"].GetNumberValue())

	st, err = c.Play(ctx)
	require.NoError(t, err)
	assert.True(t, st.GetFields()["playing"].GetBoolValue())

	st, err = c.NextTrial(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.GetFields()["trial_no"].GetNumberValue())

	_, err = c.PrevTrial(ctx)
	require.NoError(t, err)

	st, err = c.GotoTrial(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, st.GetFields()["trial_no"].GetNumberValue())

	st, err = c.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, st.GetFields()["playing"].GetBoolValue())

	assert.Equal(t, []string{"play", "next", "prev", "goto 7", "stop"}, ctrl.calls)
}

func TestServer_GetStateUntrackedPaw(t *testing.T) {
	nan := float32(math.NaN())
	ctrl := &fakeController{snap: playback.Snapshot{
		Loaded:   true,
		WheelDeg: nan,
		Overlays: []playback.Overlay{{Name: "left_paw", Position: mat32.Vec2{X: nan, Y: nan}}},
	}}
	c := startBridge(t, ctrl, NewPublisher(0))

	st, err := c.GetState(context.Background())
	require.NoError(t, err)
	f := st.GetFields()
	assert.True(t, f["loaded"].GetBoolValue())
	_, isNull := f["wheel_deg"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)
	paw := f["overlays"].GetListValue().GetValues()[0].GetStructValue().GetFields()
	assert.Equal(t, "left_paw", paw["name"].GetStringValue())
	assert.False(t, paw["tracked"].GetBoolValue())
	_, isNull = paw["position"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)
}

func TestServer_ErrorCodes(t *testing.T) {
	ctrl := &fakeController{}
	c := startBridge(t, ctrl, NewPublisher(0))

	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("goto: %w", trials.ErrTrialOutOfRange), codes.OutOfRange},
		{fmt.Errorf("next: %w", playback.ErrNavigationBoundary), codes.FailedPrecondition},
		{playback.ErrNotLoaded, codes.FailedPrecondition},
		{playback.ErrRunnerStopped, codes.Unavailable},
		{fmt.Errorf("disk on fire"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			ctrl.setErr(tt.err)
			_, err := c.NextTrial(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestServer_Events(t *testing.T) {
	pub := NewPublisher(0)
	c := startBridge(t, &fakeController{}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := c.Events(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return pub.Stats().Clients == 1 }, 2*time.Second, 5*time.Millisecond)

	pub.OnLoaded()
	pub.OnTrialChanged(3)
	pub.OnTimeUpdated(1.5)

	var got []Event
	for i := 0; i < 3; i++ {
		msg, err := stream.Recv()
		require.NoError(t, err)
		got = append(got, EventFromStruct(msg))
	}
	assert.Equal(t, []Event{
		{Seq: 1, Kind: KindLoaded},
		{Seq: 2, Kind: KindTrialChanged, TrialNo: 3},
		{Seq: 3, Kind: KindTimeUpdated, Time: 1.5},
	}, got)

	cancel()
	require.Eventually(t, func() bool { return pub.Stats().Clients == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_ServeStopsWithOpenStream(t *testing.T) {
	pub := NewPublisher(0)
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- NewServer(&fakeController{}, pub).Serve(ctx, lis) }()

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	defer c.Close()

	stream, err := c.Events(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return pub.Stats().Clients == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve blocked on an open Events stream")
	}
	_, err = stream.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
