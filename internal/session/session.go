// Package session implements the process-wide session store §4.5
// SessionHandler and §9 Design Notes ("Singleton session store") describe:
// a plain map, safe without locking because the single-threaded reactor
// is its only caller. Session IDs are opaque UUIDs via google/uuid, listed
// as an indirect dependency of the teacher's bolt module and promoted here
// to a direct one.
package session

import "github.com/google/uuid"

// Session is one session's server-side state. Views is the only counter
// the demo SessionHandler maintains.
type Session struct {
	ID    string
	Views int
}

// Store is the process-wide session map. Not safe for concurrent use from
// multiple goroutines; correct only because the event loop is the sole
// caller, per §9's Singleton session store note.
type Store struct {
	sessions map[string]*Session
}

// New returns an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get looks up a session by ID.
func (s *Store) Get(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// Create allocates a new session with a fresh opaque ID and Views=1.
func (s *Store) Create() *Session {
	sess := &Session{ID: uuid.NewString(), Views: 1}
	s.sessions[sess.ID] = sess
	return sess
}
