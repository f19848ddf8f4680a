package session

import (
	"sync"
	"time"

	"courier/internal/server/telegram"
)

// Mode is the interactive state a principal's next message is interpreted
// under. It is transient, in-memory state: it does not survive a restart and
// is never shared across principals.
type Mode int

const (
	// ModeNone: no flow active; files mint standalone tokens.
	ModeNone Mode = iota
	// ModeBatch: files are collected into the pending batch list.
	ModeBatch
	// ModeSecureAwaitFile: next file starts a secure link.
	ModeSecureAwaitFile
	// ModeSecureAwaitPIN: a file is held, waiting for its PIN.
	ModeSecureAwaitPIN
	// ModeAwaitPINVerify: a secure reference was opened, waiting for the
	// candidate PIN.
	ModeAwaitPINVerify
)

// PendingFile is re-hosted but not yet persisted metadata held between the
// file step and the PIN step of the secure flow. ChannelMessageID allows the
// re-hosted copy to be cleaned up if the flow never completes persistence.
type PendingFile struct {
	Attachment       telegram.Attachment
	ChannelMessageID int
}

// Session holds one principal's transient interactive state. Callers must
// hold the session lock across a whole update so a principal's events are
// processed one at a time.
type Session struct {
	mu sync.Mutex

	Mode        Mode
	BatchTokens []string
	Pending     *PendingFile
	SecureToken string
	PINAttempts int

	lastActive time.Time
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Reset clears all transient state and returns the session to no active
// mode. Safe to call on an already-clear session.
func (s *Session) Reset() {
	s.Mode = ModeNone
	s.BatchTokens = nil
	s.Pending = nil
	s.SecureToken = ""
	s.PINAttempts = 0
}

// BeginBatch starts collecting; any prior uncommitted list is discarded.
func (s *Session) BeginBatch() {
	s.Reset()
	s.Mode = ModeBatch
	s.BatchTokens = []string{}
}

// AppendToken adds a token to the pending batch in upload order.
func (s *Session) AppendToken(token string) {
	s.BatchTokens = append(s.BatchTokens, token)
}

// Tokens returns a copy of the pending batch list.
func (s *Session) Tokens() []string {
	return append([]string(nil), s.BatchTokens...)
}

// Manager owns all live sessions, keyed by principal id. Idle sessions are
// evicted in the background so abandoned flows do not accumulate.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	idle     time.Duration
	onEvict  func(*Session)
}

// NewManager creates a session manager that evicts sessions idle longer
// than the given duration. A non-nil onEvict runs for every evicted session
// while its lock is held, so abandoned state can be compensated.
func NewManager(idle time.Duration, onEvict func(*Session)) *Manager {
	m := &Manager{
		sessions: make(map[int64]*Session),
		idle:     idle,
		onEvict:  onEvict,
	}

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			m.evictStale(time.Now().Add(-m.idle))
		}
	}()

	return m
}

// Get returns the principal's session, creating one if needed, and marks
// it active.
func (m *Manager) Get(principalID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[principalID]
	if !exists {
		s = &Session{}
		m.sessions[principalID] = s
	}
	s.lastActive = time.Now()
	return s
}

func (m *Manager) evictStale(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if !s.lastActive.Before(cutoff) {
			continue
		}
		// A session mid-update keeps its lock; leave it for a later pass so
		// one principal's events never interleave across two sessions.
		if !s.mu.TryLock() {
			continue
		}
		delete(m.sessions, id)
		if m.onEvict != nil {
			m.onEvict(s)
		}
		s.mu.Unlock()
	}
}
