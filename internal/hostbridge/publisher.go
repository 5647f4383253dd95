// Package hostbridge exposes a playback runner to an embedding host over gRPC:
// navigation commands in, host notifications streamed out.
package hostbridge

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/playback"
)

var logf = monitoring.Tagged("hostbridge")

// Event kinds carried on the Events stream.
const (
	KindTimeUpdated  = "time_updated"
	KindTrialChanged = "trial_changed"
	KindLoaded       = "loaded"
)

// DefaultClientBuffer is the number of events queued per client before drops.
const DefaultClientBuffer = 64

// Event is one host notification.
type Event struct {
	Seq     uint64
	Kind    string
	Time    float64
	TrialNo int
}

// Publisher implements playback.HostObserver and fans every notification out
// to the subscribed clients. A slow client loses events rather than stalling
// the playback loop.
type Publisher struct {
	buffer int

	mu      sync.RWMutex
	clients map[uint64]chan Event
	nextID  uint64

	seq     atomic.Uint64
	dropped atomic.Uint64
}

var _ playback.HostObserver = (*Publisher)(nil)

// NewPublisher returns a publisher queueing up to buffer events per client.
func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Publisher{
		buffer:  buffer,
		clients: make(map[uint64]chan Event),
	}
}

// Subscribe registers a client. cancel unregisters it and closes the channel.
func (p *Publisher) Subscribe() (events <-chan Event, cancel func()) {
	ch := make(chan Event, p.buffer)

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.clients[id] = ch
	n := len(p.clients)
	p.mu.Unlock()
	logf("client %d subscribed (total: %d)", id, n)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.clients, id)
			n := len(p.clients)
			p.mu.Unlock()
			close(ch)
			logf("client %d unsubscribed (remaining: %d)", id, n)
		})
	}
}

func (p *Publisher) broadcast(ev Event) {
	ev.Seq = p.seq.Add(1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.clients {
		select {
		case ch <- ev:
		default:
			p.dropped.Add(1)
		}
	}
}

func (p *Publisher) OnTimeUpdated(time float64) {
	p.broadcast(Event{Kind: KindTimeUpdated, Time: time})
}

func (p *Publisher) OnTrialChanged(trialNo int) {
	p.broadcast(Event{Kind: KindTrialChanged, TrialNo: trialNo})
}

func (p *Publisher) OnLoaded() {
	p.broadcast(Event{Kind: KindLoaded})
}

// PublisherStats summarises the publisher.
type PublisherStats struct {
	Events  uint64
	Dropped uint64
	Clients int
}

func (s PublisherStats) String() string {
	return fmt.Sprintf("events=%d dropped=%d clients=%d", s.Events, s.Dropped, s.Clients)
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	p.mu.RLock()
	n := len(p.clients)
	p.mu.RUnlock()
	return PublisherStats{
		Events:  p.seq.Load(),
		Dropped: p.dropped.Load(),
		Clients: n,
	}
}
