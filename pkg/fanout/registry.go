package fanout

import (
	"sync"

	"github.com/google/uuid"
)

// Session is one live client connection (e.g. a websocket or SSE stream)
// registered with the local instance. Messages are delivered on a buffered
// channel; a full buffer drops the message for that session.
type Session struct {
	id     string
	userID string
	ch     chan Message
	closed bool
	mu     sync.RWMutex
}

// ID returns the unique session ID.
func (s *Session) ID() string { return s.id }

// UserID returns the user the session belongs to.
func (s *Session) UserID() string { return s.userID }

// Messages returns the channel delivering messages pushed to this session.
// The channel is closed when the session is disconnected.
func (s *Session) Messages() <-chan Message { return s.ch }

func (s *Session) send(msg Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

// Registry tracks which users have live sessions on this instance and routes
// messages received from the Bus to them. A user may hold several sessions
// (multiple tabs, devices). All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]map[string]*Session // userID -> sessionID -> session
	bufferSize int
}

// NewRegistry creates a session registry. The bufferSize parameter sets the
// per-session channel buffer; a minimum of 1 is enforced.
func NewRegistry(bufferSize int) *Registry {
	return &Registry{
		sessions:   make(map[string]map[string]*Session),
		bufferSize: max(bufferSize, 1),
	}
}

// Connect registers a new session for the user and returns it.
func (r *Registry) Connect(userID string) *Session {
	sess := &Session{
		id:     uuid.NewString(),
		userID: userID,
		ch:     make(chan Message, r.bufferSize),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.sessions[userID]
	if !ok {
		byID = make(map[string]*Session)
		r.sessions[userID] = byID
	}
	byID[sess.id] = sess

	return sess
}

// Disconnect removes the session and closes its message channel. Idempotent.
func (r *Registry) Disconnect(sess *Session) {
	if sess == nil {
		return
	}

	r.mu.Lock()
	if byID, ok := r.sessions[sess.userID]; ok {
		delete(byID, sess.id)
		if len(byID) == 0 {
			delete(r.sessions, sess.userID)
		}
	}
	r.mu.Unlock()

	sess.close()
}

// Push delivers a message to every local session of the user and returns
// the number of sessions that accepted it.
func (r *Registry) Push(userID string, msg Message) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, sess := range r.sessions[userID] {
		if sess.send(msg) {
			delivered++
		}
	}
	return delivered
}

// Broadcast delivers a message to every local session of every user and
// returns the number of sessions that accepted it.
func (r *Registry) Broadcast(msg Message) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, byID := range r.sessions {
		for _, sess := range byID {
			if sess.send(msg) {
				delivered++
			}
		}
	}
	return delivered
}

// IsOnline reports whether the user has at least one live session on this
// instance.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions[userID]) > 0
}

// SessionCount returns the total number of live sessions on this instance.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, byID := range r.sessions {
		n += len(byID)
	}
	return n
}

// Close disconnects every session. The registry remains usable afterwards;
// it simply becomes empty.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0)
	for _, byID := range r.sessions {
		for _, sess := range byID {
			sessions = append(sessions, sess)
		}
	}
	clear(r.sessions)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}
