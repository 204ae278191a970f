package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Bus fans a single logical event stream out to any number of registered
// Sinks. One Bus is created per run (or per thinker session) so Seq starts
// fresh at 1 for each.
type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
	seq   int64
}

// New creates an empty Bus. Sinks are added with AddSink before the first
// Publish call that should reach them.
func New() *Bus {
	return &Bus{}
}

// AddSink registers a sink to receive all future published events.
func (b *Bus) AddSink(s Sink) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// RemoveSink unregisters a previously added sink.
func (b *Bus) RemoveSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.sinks {
		if existing == s {
			b.sinks = append(b.sinks[:i], b.sinks[i+1:]...)
			return
		}
	}
}

// Publish assigns the next sequence number, then fans e out to every
// registered sink. A sink error is logged and does not stop delivery to the
// remaining sinks or propagate to the caller — publishing observability
// must never fail a run. Publish always returns nil so a Bus itself
// satisfies Sink, letting a Doer/Thinker run be handed one Bus that fans
// out to however many concrete sinks are registered on it.
func (b *Bus) Publish(e Event) error {
	e.Seq = atomic.AddInt64(&b.seq, 1)

	b.mu.RLock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Publish(e); err != nil {
			log.Warn().Err(err).Str("kind", string(e.Kind)).Msg("eventbus sink publish failed")
		}
	}
	return nil
}

// NopSink discards every event. Useful as the default when a caller passes
// no sink to run/thinker operations (§4.4, §4.5: the sink is optional).
type NopSink struct{}

// Publish implements Sink by doing nothing.
func (NopSink) Publish(Event) error { return nil }
