package eventbus

import (
	"sync"

	"github.com/pflow-xyz/go-presale/presale"
)

// Recorder is a sink that retains every event it receives, in order.
// Useful as a bus subscriber or wired directly into the engine.
type Recorder struct {
	mu     sync.Mutex
	events []presale.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements presale.Sink.
func (r *Recorder) Emit(evt presale.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []presale.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]presale.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events matching one type, in order.
func (r *Recorder) OfType(eventType string) []presale.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []presale.Event
	for _, evt := range r.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

var _ presale.Sink = (*Recorder)(nil)
