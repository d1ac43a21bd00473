// Package session holds per-user ephemeral conversational state: the
// active wizard step, the form buffer, and the ids of the interactive
// messages currently visible in the user's chat.
//
// State is in-memory only. A process restart discards every in-flight
// wizard; users restart from the beginning, which is safe because no
// wizard step has an irreversible side effect before its terminal step.
package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// StepID identifies one wizard step. Empty means idle (menu navigation only).
type StepID string

// Session is the mutable per-user record. All access goes through the
// owning Store; handlers must not retain a Session across events.
type Session struct {
	UserID     string
	ChatID     string
	Wizard     string
	Step       StepID
	Form       map[string]string
	TrackedIDs []int
	LastSeen   time.Time

	inflight bool
}

// Idle reports whether no wizard is active.
func (s *Session) Idle() bool {
	return s.Step == ""
}

// Set writes one form field.
func (s *Session) Set(key, value string) {
	if s.Form == nil {
		s.Form = map[string]string{}
	}
	s.Form[key] = value
}

// Get reads one form field, "" when absent.
func (s *Session) Get(key string) string {
	return s.Form[key]
}

// Append adds value to a comma-joined list field, skipping duplicates.
func (s *Session) Append(key, value string) {
	existing := s.Get(key)
	if existing == "" {
		s.Set(key, value)
		return
	}
	for _, item := range strings.Split(existing, ",") {
		if item == value {
			return
		}
	}
	s.Set(key, existing+","+value)
}

// List reads a comma-joined list field.
func (s *Session) List(key string) []string {
	raw := s.Get(key)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// Store owns every live Session, keyed by user id. Sessions are created
// lazily and evicted after IdleTTL without interaction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration
	onEvict  func(*Session)
	logger   *slog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a Store with the given idle eviction lifetime.
// A non-positive ttl disables eviction.
func NewStore(log *slog.Logger, idleTTL time.Duration) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		sessions: map[string]*Session{},
		idleTTL:  idleTTL,
		logger:   log.With(slog.String("service", "session")),
		stop:     make(chan struct{}),
	}
	if idleTTL > 0 {
		go s.janitor()
	}
	return s
}

// Get returns the session for userID, creating an idle one if needed.
// It never fails.
func (s *Store) Get(userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{UserID: userID, Form: map[string]string{}}
		s.sessions[userID] = sess
	}
	sess.LastSeen = time.Now()
	return sess
}

// SetOnEvict installs a callback that runs for every session the idle
// janitor drops, outside the store lock. Evicted sessions may still
// have a tracked menu message live in the chat; the callback is where
// that message gets cleaned up.
func (s *Store) SetOnEvict(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// Reset clears the wizard step and form buffer. Tracked message ids are
// left alone: message cleanup belongs to the menu renderer, not here.
func (s *Store) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return
	}
	sess.Wizard = ""
	sess.Step = ""
	sess.Form = map[string]string{}
}

// BeginHandling marks the user as having an event in flight. It returns
// false when another event for the same user is still being processed;
// the caller drops the re-entrant event, which gives strict per-user
// serialization.
func (s *Store) BeginHandling(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{UserID: userID, Form: map[string]string{}}
		s.sessions[userID] = sess
	}
	if sess.inflight {
		return false
	}
	sess.inflight = true
	sess.LastSeen = time.Now()
	return true
}

// EndHandling releases the in-flight marker.
func (s *Store) EndHandling(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.inflight = false
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the eviction janitor.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) janitor() {
	interval := s.idleTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictIdle(time.Now())
		}
	}
}

func (s *Store) evictIdle(now time.Time) {
	s.mu.Lock()
	var evicted []*Session
	for id, sess := range s.sessions {
		if sess.inflight {
			continue
		}
		if now.Sub(sess.LastSeen) > s.idleTTL {
			delete(s.sessions, id)
			evicted = append(evicted, sess)
		}
	}
	onEvict := s.onEvict
	s.mu.Unlock()
	if len(evicted) == 0 {
		return
	}
	if onEvict != nil {
		for _, sess := range evicted {
			onEvict(sess)
		}
	}
	s.logger.Debug("evicted idle sessions", slog.Int("count", len(evicted)))
}
