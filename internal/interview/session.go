package interview

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the session lifecycle position.
type State string

const (
	StateAwaitingContext State = "awaiting_context"
	StateActive          State = "active"
	StateTerminated      State = "terminated"
)

// Session is the per-connection interview state. It is created on
// connection accept, mutated by exactly one goroutine (the session's
// message loop), and discarded when the connection closes. No locking is
// needed for its fields because of that single-loop invariant.
type Session struct {
	ID        string
	State     State
	StartedAt time.Time

	Context Context
	Voice   string // current synthesis voice, overridable by the client

	audio   []byte
	history History

	synth Synthesizer
}

// AppendAudio accumulates one inbound binary frame. Legal in any state.
func (s *Session) AppendAudio(chunk []byte) {
	s.audio = append(s.audio, chunk...)
}

// AudioBytes returns the audio accumulated for the turn being assembled.
func (s *Session) AudioBytes() []byte {
	return s.audio
}

// ClearAudio drains the buffer. Called unconditionally at the end of each
// turn pipeline so the next turn starts from empty.
func (s *Session) ClearAudio() {
	s.audio = s.audio[:0]
}

// Append records a turn. History is append-only during the session.
func (s *Session) Append(speaker Speaker, text string) {
	s.history = append(s.history, Turn{Speaker: speaker, Text: text})
}

// History returns the ordered turn record.
func (s *Session) History() History {
	return s.history
}

// Registry tracks live sessions for observability. Sessions themselves are
// never shared across goroutines; the registry only counts them.
type Registry struct {
	mu     sync.Mutex
	active map[string]time.Time
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]time.Time)}
}

func (r *Registry) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[id] = time.Now().UTC()
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}

func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func newSessionID() string {
	return uuid.NewString()
}
