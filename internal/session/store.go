package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSessionLimit is returned by Create when the concurrent session limit
// is reached.
var ErrSessionLimit = errors.New("session: limit reached")

// Store is a concurrency-safe, in-memory registry of live sessions keyed by
// opaque ID. Sessions never share state; the store only manages lifecycle.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// maxSessions limits concurrent sessions. Zero means unlimited.
	maxSessions int

	cfg Config
}

// NewStore creates a store whose sessions are built from cfg.
func NewStore(cfg Config) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
	}
}

// SetMaxSessions configures the concurrent session limit. Zero means unlimited.
func (st *Store) SetMaxSessions(limit int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.maxSessions = limit
}

// Create registers a new session and returns it. It fails when the session
// limit is reached.
func (st *Store) Create() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.maxSessions > 0 && len(st.sessions) >= st.maxSessions {
		return nil, fmt.Errorf("%w (max %d)", ErrSessionLimit, st.maxSessions)
	}

	id, err := generateID()
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}

	sess := New(id, st.cfg)
	st.sessions[id] = sess
	return sess, nil
}

// Get returns the session for the given ID, or nil if none exists.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// Delete removes the session for the given ID and closes its watchers.
// No-op when absent.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	sess := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Range calls fn for each session until fn returns false.
func (st *Store) Range(fn func(*Session) bool) {
	st.mu.RLock()
	snapshot := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		snapshot = append(snapshot, sess)
	}
	st.mu.RUnlock()

	for _, sess := range snapshot {
		if !fn(sess) {
			return
		}
	}
}

// Prune removes sessions idle for longer than maxIdle and returns how many
// were dropped. Intended to run on a schedule. Idle times are evaluated on a
// snapshot, outside the store lock, so a slow agent call in one session never
// stalls Create or Get for the others.
func (st *Store) Prune(maxIdle time.Duration) int {
	st.mu.RLock()
	snapshot := make(map[string]*Session, len(st.sessions))
	for id, sess := range st.sessions {
		snapshot[id] = sess
	}
	st.mu.RUnlock()

	now := time.Now()
	var stale []string
	for id, sess := range snapshot {
		if now.Sub(sess.LastActive()) > maxIdle {
			stale = append(stale, id)
		}
	}

	pruned := 0
	st.mu.Lock()
	for _, id := range stale {
		if sess, ok := st.sessions[id]; ok {
			delete(st.sessions, id)
			sess.Close()
			pruned++
		}
	}
	st.mu.Unlock()
	return pruned
}

// generateID produces a 16-byte random hex session ID.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
