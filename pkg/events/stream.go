package events

import (
	"log/slog"
	"sync"
)

// streamBuffer bounds how many undelivered events a slow subscriber can
// accumulate before new events are dropped for it.
const streamBuffer = 256

// Emitter receives session progress events. Implemented by Stream; nodes
// depend on the interface so tests can record emissions.
type Emitter interface {
	Emit(Event)
}

// NopEmitter discards all events. Used by the synchronous invocation path,
// which returns only the final response.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}

// Stream fans session events out to SSE subscribers. Emit never blocks: a
// subscriber whose buffer is full misses the event (progress events are
// advisory; the final response carries the authoritative result).
type Stream struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

var _ Emitter = (*Stream)(nil)

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber channel. The returned cancel function
// removes the subscription and closes the channel.
func (s *Stream) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, streamBuffer)

	s.mu.Lock()
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// Emit delivers the event to every subscriber without blocking.
func (s *Stream) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for ch := range s.subs {
		select {
		case ch <- e:
		default:
			slog.Warn("Dropping event for slow subscriber", "type", e.Type)
		}
	}
}

// Close terminates the stream and closes all subscriber channels. Safe to
// call multiple times.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}
