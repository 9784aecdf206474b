// Package progress defines how the launcher core reports status text and
// fractional progress to whatever presents it.
//
// The core never assumes which goroutine a Sink runs on. Presentation
// layers that need thread affinity wrap their renderer with a Channel and
// drain it from their own goroutine with Forward.
package progress

import "sync"

// Sink receives status and progress notifications.
// Fractions are in [0,1].
type Sink interface {
	SetStatus(text string)
	SetProgress(fraction float64)
	AddProgress(delta float64)
}

// Clamp limits a fraction to [0,1]
func Clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Nop is a Sink that discards everything
type Nop struct{}

func (Nop) SetStatus(string)    {}
func (Nop) SetProgress(float64) {}
func (Nop) AddProgress(float64) {}

// Or returns s, or a Nop sink when s is nil
func Or(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// Kind identifies the Sink method an Event represents
type Kind int

const (
	// KindStatus carries a SetStatus call
	KindStatus Kind = iota
	// KindProgress carries a SetProgress call
	KindProgress
	// KindAdd carries an AddProgress call
	KindAdd
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindProgress:
		return "progress"
	case KindAdd:
		return "add"
	default:
		return "unknown"
	}
}

// Event is a single Sink call captured as a message
type Event struct {
	Kind   Kind
	Status string
	Value  float64
}

// Apply replays the event onto a sink
func (e Event) Apply(s Sink) {
	switch e.Kind {
	case KindStatus:
		s.SetStatus(e.Status)
	case KindProgress:
		s.SetProgress(e.Value)
	case KindAdd:
		s.AddProgress(e.Value)
	}
}

// Recorder is a Sink that keeps every event and the resulting state.
// It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	events   []Event
	status   string
	fraction float64
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SetStatus(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = text
	r.events = append(r.events, Event{Kind: KindStatus, Status: text})
}

func (r *Recorder) SetProgress(fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fraction = Clamp(fraction)
	r.events = append(r.events, Event{Kind: KindProgress, Value: fraction})
}

func (r *Recorder) AddProgress(delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fraction = Clamp(r.fraction + delta)
	r.events = append(r.events, Event{Kind: KindAdd, Value: delta})
}

// Status returns the most recent status text
func (r *Recorder) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Fraction returns the current progress fraction
func (r *Recorder) Fraction() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fraction
}

// Events returns a copy of every recorded event in order
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Statuses returns every status text in order
func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Kind == KindStatus {
			out = append(out, e.Status)
		}
	}
	return out
}
