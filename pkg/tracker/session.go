package tracker

import (
	"sync"
	"time"
)

// State of a page visit.
type State int

const (
	ActiveNoInteraction State = iota
	ActiveInteracted
	Ended
)

func (s State) String() string {
	switch s {
	case ActiveNoInteraction:
		return "active_no_interaction"
	case ActiveInteracted:
		return "active_interacted"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

const (
	// HiddenTimeout is how long a hidden page counts as still open.
	HiddenTimeout = 30 * time.Second
	// MinHiddenDwell is the shortest visit reported as a bounce on the hidden path.
	MinHiddenDwell = 3 * time.Second
)

// Submission is one event as sent to the ingest endpoint.
type Submission struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Emitter receives session outcome events.
type Emitter interface {
	Emit(Submission)
}

// Timer is the subset of *time.Timer the session needs.
type Timer interface {
	Stop() bool
}

// Session tracks one page visit and reports its outcome exactly once.
type Session struct {
	mu           sync.Mutex
	state        State
	startedAt    time.Time
	interactedAt time.Time
	hiddenAt     time.Time
	hidden       Timer
	hiddenGen    int
	emitter      Emitter
	base         map[string]interface{}

	now       func() time.Time
	afterFunc func(time.Duration, func()) Timer
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithAfterFunc replaces time.AfterFunc for the hidden-page timer.
func WithAfterFunc(f func(time.Duration, func()) Timer) SessionOption {
	return func(s *Session) { s.afterFunc = f }
}

// WithBaseData adds fields (visitor id, location, ...) to every emitted event.
func WithBaseData(data map[string]interface{}) SessionOption {
	return func(s *Session) { s.base = data }
}

// NewSession starts a visit now.
func NewSession(emitter Emitter, opts ...SessionOption) *Session {
	s := &Session{
		state:   ActiveNoInteraction,
		emitter: emitter,
		now:     time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interact records a link click or age warning. Only the first one sets
// the time to interaction.
func (s *Session) Interact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ActiveNoInteraction {
		return
	}
	s.state = ActiveInteracted
	s.interactedAt = s.now()
}

// Unload ends the visit because the page is going away.
func (s *Session) Unload() {
	s.end(false, 0)
}

// Hide starts the hidden-page timeout.
func (s *Session) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Ended || s.hidden != nil {
		return
	}
	s.hiddenGen++
	gen := s.hiddenGen
	s.hiddenAt = s.now()
	s.hidden = s.afterFunc(HiddenTimeout, func() { s.end(true, gen) })
}

// Show cancels a pending hidden-page timeout.
func (s *Session) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopHiddenLocked()
}

func (s *Session) stopHiddenLocked() {
	if s.hidden != nil {
		s.hidden.Stop()
		s.hidden = nil
	}
	s.hiddenGen++
}

// end moves to Ended. A hidden-path call whose timer generation was
// cancelled by Show is ignored; on that path time on page stops at the
// moment the page was hidden.
func (s *Session) end(viaHidden bool, gen int) {
	s.mu.Lock()
	if s.state == Ended || (viaHidden && (gen != s.hiddenGen || s.hidden == nil)) {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = Ended
	s.stopHiddenLocked()
	endedAt := s.now()
	if viaHidden {
		endedAt = s.hiddenAt
	}
	elapsed := endedAt.Sub(s.startedAt)
	interactedAt := s.interactedAt
	s.mu.Unlock()

	var sub Submission
	switch {
	case prev == ActiveInteracted:
		sub = s.submission("session_end", map[string]interface{}{
			"timeOnPage":        seconds(elapsed),
			"sessionDuration":   seconds(elapsed),
			"timeToInteraction": seconds(interactedAt.Sub(s.startedAt)),
		})
	case viaHidden && elapsed <= MinHiddenDwell:
		return
	default:
		sub = s.submission("bounce", map[string]interface{}{
			"timeOnPage": seconds(elapsed),
		})
	}
	s.emitter.Emit(sub)
}

func (s *Session) submission(eventType string, fields map[string]interface{}) Submission {
	data := make(map[string]interface{}, len(s.base)+len(fields))
	for k, v := range s.base {
		data[k] = v
	}
	for k, v := range fields {
		data[k] = v
	}
	return Submission{Type: eventType, Data: data}
}

func seconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
