// Package conversation keeps per-session triage state.
package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/triage_assistant/internal/matcher"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// SessionContext is the mutable state of one session. It is only handed out
// under the session lock (Store.Update) or as a copy (Store.Get).
type SessionContext struct {
	SessionID   string
	Symptoms    map[string]struct{}
	LastMatches []matcher.MatchResult
	TurnCount   int
	CreatedAt   time.Time
	LastActive  time.Time

	order []string
}

func newSession(id string, now time.Time) *SessionContext {
	return &SessionContext{
		SessionID:  id,
		Symptoms:   make(map[string]struct{}),
		CreatedAt:  now,
		LastActive: now,
	}
}

// Merge adds symptoms to the accumulated set and returns the ones that were new.
// The set only ever grows.
func (s *SessionContext) Merge(symptoms []string) []string {
	var added []string
	for _, sym := range symptoms {
		if _, ok := s.Symptoms[sym]; ok || sym == "" {
			continue
		}
		s.Symptoms[sym] = struct{}{}
		s.order = append(s.order, sym)
		added = append(added, sym)
	}
	return added
}

// AccumulatedSymptoms lists the set in the order symptoms were first reported.
func (s *SessionContext) AccumulatedSymptoms() []string {
	return append([]string(nil), s.order...)
}

// IsNew reports whether no turn has been recorded yet.
func (s *SessionContext) IsNew() bool { return s.TurnCount == 0 }

func (s *SessionContext) clone() SessionContext {
	c := *s
	c.Symptoms = make(map[string]struct{}, len(s.Symptoms))
	for k := range s.Symptoms {
		c.Symptoms[k] = struct{}{}
	}
	c.order = append([]string(nil), s.order...)
	c.LastMatches = append([]matcher.MatchResult(nil), s.LastMatches...)
	return c
}

type entry struct {
	mu      sync.Mutex
	session *SessionContext
	// removed is set under mu when the entry leaves the map; holders must retry.
	removed bool
}

// Store maps session ids to contexts. Updates to one session are serialised;
// different sessions never contend beyond the map lookup.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
	log      logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used by the janitor.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		now:      time.Now,
		log:      logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs fn with exclusive access to the session, creating it first if it
// does not exist. The session's LastActive is refreshed before fn runs.
func (s *Store) Update(id string, fn func(*SessionContext) error) error {
	for {
		s.mu.Lock()
		e, ok := s.sessions[id]
		if !ok {
			e = &entry{session: newSession(id, s.now())}
			s.sessions[id] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.session.LastActive = s.now()
		err := fn(e.session)
		e.mu.Unlock()
		return err
	}
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (SessionContext, bool) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return SessionContext{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return SessionContext{}, false
	}
	return e.session.clone(), true
}

// Clear discards the session. It waits for an in-flight update on the same
// session to finish. Clearing an unknown id is a no-op.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
	return true
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// IDs lists live session ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Sweep evicts sessions idle for longer than maxIdle and returns how many went.
// Sessions busy in an update are skipped.
func (s *Store) Sweep(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.session.LastActive.Before(cutoff) {
			e.removed = true
			delete(s.sessions, id)
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}

// RunJanitor sweeps every interval until ctx is done. onSweep, if set, is
// called with the live session count after each pass.
func (s *Store) RunJanitor(ctx context.Context, interval, ttl time.Duration, onSweep func(active int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ttl); n > 0 {
				s.log.Info("evicted idle sessions", logger.IntField("evicted", n), logger.DurationField("ttl", ttl))
			}
			if onSweep != nil {
				onSweep(s.Len())
			}
		}
	}
}
