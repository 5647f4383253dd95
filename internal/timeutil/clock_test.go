package timeutil

import (
	"testing"
	"time"
)

func drained(c <-chan time.Time) bool {
	select {
	case <-c:
		return false
	default:
		return true
	}
}

func TestRealClock(t *testing.T) {
	var clock Clock = RealClock{}

	if d := clock.Since(clock.Now().Add(-time.Second)); d < time.Second {
		t.Errorf("Since = %v, want >= 1s", d)
	}

	ticker := clock.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("system ticker never fired")
	}
}

func TestMockClock_ReadsOnlyWhatItIsTold(t *testing.T) {
	start := time.Date(2019, 12, 3, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Fatalf("Now = %v, want %v", clock.Now(), start)
	}
	clock.Advance(1500 * time.Millisecond)
	clock.Step(100*time.Millisecond, 5)
	if got := clock.Since(start); got != 2*time.Second {
		t.Errorf("Since = %v, want 2s", got)
	}
}

func TestMockClock_TickerDeadlines(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	clock.Advance(30 * time.Millisecond)
	if !drained(ticker.C()) {
		t.Fatal("fired 30ms into a 50ms period")
	}
	clock.Advance(30 * time.Millisecond)
	if drained(ticker.C()) {
		t.Fatal("did not fire at 60ms")
	}
	// next deadline is 110ms, counted from the 60ms fire
	clock.Advance(40 * time.Millisecond)
	if !drained(ticker.C()) {
		t.Fatal("fired at 100ms")
	}
	clock.Advance(10 * time.Millisecond)
	if drained(ticker.C()) {
		t.Fatal("did not fire at 110ms")
	}
}

func TestMockClock_LargeJumpFiresOnce(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(time.Millisecond)
	defer ticker.Stop()

	clock.Advance(time.Minute)
	if drained(ticker.C()) {
		t.Fatal("no tick after a long jump")
	}
	if !drained(ticker.C()) {
		t.Error("a single Advance delivered more than one tick")
	}
}

func TestMockClock_StepKeepsReceiverFed(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	got := make(chan int)
	go func() {
		n := 0
		for range ticker.C() {
			n++
			if n == 3 {
				got <- n
				return
			}
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		clock.Step(10*time.Millisecond, 1)
		select {
		case n := <-got:
			if n != 3 {
				t.Errorf("received %d ticks, want 3", n)
			}
			return
		case <-deadline:
			t.Fatal("receiver never saw three ticks")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestMockClock_StopDetaches(t *testing.T) {
	clock := NewMockClock(time.Time{})
	a := clock.NewTicker(time.Millisecond)
	b := clock.NewTicker(time.Millisecond)
	if n := clock.Tickers(); n != 2 {
		t.Fatalf("Tickers = %d, want 2", n)
	}

	a.Stop()
	a.Stop()
	if n := clock.Tickers(); n != 1 {
		t.Fatalf("Tickers after Stop = %d, want 1", n)
	}

	clock.Advance(time.Second)
	if !drained(a.C()) {
		t.Error("stopped ticker fired")
	}
	if drained(b.C()) {
		t.Error("running ticker did not fire")
	}
	b.Stop()
}

func TestMockTicker_TriggerDropsWhenFull(t *testing.T) {
	clock := NewMockClock(time.Time{})
	ticker := clock.NewTicker(time.Hour).(*MockTicker)
	defer ticker.Stop()

	first := time.Unix(1, 0)
	ticker.Trigger(first)
	ticker.Trigger(time.Unix(2, 0))

	if got := <-ticker.C(); !got.Equal(first) {
		t.Errorf("tick = %v, want %v", got, first)
	}
	if !drained(ticker.C()) {
		t.Error("second trigger was not dropped")
	}
}

func TestMockClock_RejectsZeroPeriod(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewTicker(0) did not panic")
		}
	}()
	NewMockClock(time.Time{}).NewTicker(0)
}
