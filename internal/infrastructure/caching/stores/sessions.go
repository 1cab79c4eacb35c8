// Package stores provides the in-memory session registry for dialogue state.
package stores

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/metrics"
)

type sessionEntry struct {
	turn sync.Mutex // serializes turns for this session
	sess *session.Session
}

// SessionsStore is a bounded, keyed registry of dialogue sessions. The map
// lock only guards membership; each session has its own turn lock, so
// distinct sessions never wait on each other.
type SessionsStore struct {
	sessions    map[string]*sessionEntry
	mu          sync.RWMutex
	maxSessions int
	now         func() time.Time
	onEvict     func(session.Session)
	logger      *logging.ChanneledLogger
}

// NewSessionsStore creates a store holding at most maxSessions sessions.
// maxSessions <= 0 means unbounded.
func NewSessionsStore(maxSessions int, logger *logging.ChanneledLogger) *SessionsStore {
	if logger != nil {
		logger.Cache().Info("Initializing sessions store", "maxSessions", maxSessions)
	}
	return &SessionsStore{
		sessions:    make(map[string]*sessionEntry),
		maxSessions: maxSessions,
		now:         time.Now,
		logger:      logger,
	}
}

// SetClock replaces the time source.
func (ss *SessionsStore) SetClock(now func() time.Time) {
	ss.mu.Lock()
	ss.now = now
	ss.mu.Unlock()
}

// OnEvict registers a callback run, off the caller's goroutine, with a
// snapshot of any session dropped to make room for a new one.
func (ss *SessionsStore) OnEvict(fn func(session.Session)) {
	ss.mu.Lock()
	ss.onEvict = fn
	ss.mu.Unlock()
}

// =============================================================================
// Turn access
// =============================================================================

// Acquire returns the live session for id, creating it if absent, with its
// turn lock held. The caller must call release exactly once.
func (ss *SessionsStore) Acquire(id, tenantID string) (*session.Session, func()) {
	e := ss.entry(id, tenantID)
	e.turn.Lock()
	var once sync.Once
	return e.sess, func() { once.Do(e.turn.Unlock) }
}

// Get returns a snapshot of the session for id, creating it with defaults if
// absent. It waits for any in-flight turn on that session.
func (ss *SessionsStore) Get(id, tenantID string) session.Session {
	e := ss.entry(id, tenantID)
	e.turn.Lock()
	defer e.turn.Unlock()
	return e.sess.Snapshot()
}

// Peek returns a snapshot without creating the session.
func (ss *SessionsStore) Peek(id string) (session.Session, bool) {
	ss.mu.RLock()
	e, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if !ok {
		return session.Session{}, false
	}
	e.turn.Lock()
	defer e.turn.Unlock()
	return e.sess.Snapshot(), true
}

func (ss *SessionsStore) entry(id, tenantID string) *sessionEntry {
	start := time.Now()

	ss.mu.RLock()
	e, found := ss.sessions[id]
	ss.mu.RUnlock()

	if !found {
		var evicted *sessionEntry
		ss.mu.Lock()
		if e, found = ss.sessions[id]; !found {
			if ss.maxSessions > 0 && len(ss.sessions) >= ss.maxSessions {
				evicted = ss.evictOldestLocked()
			}
			e = &sessionEntry{sess: session.New(id, tenantID, ss.now())}
			ss.sessions[id] = e
			metrics.SessionsActive.Set(float64(len(ss.sessions)))
		}
		onEvict := ss.onEvict
		ss.mu.Unlock()

		if evicted != nil && onEvict != nil {
			go func() {
				evicted.turn.Lock()
				snap := evicted.sess.Snapshot()
				evicted.turn.Unlock()
				onEvict(snap)
			}()
		}
	}

	if ss.logger != nil {
		ss.logger.Cache().Debug("Cache operation",
			"operation", "get",
			"type", "session",
			"tenantId", tenantID,
			"sessionId", logging.SanitizeSessionID(id),
			"hit", found,
			"duration", time.Since(start))
	}
	return e
}

// evictOldestLocked drops the session with the earliest CreatedAt. Caller
// holds ss.mu for writing.
func (ss *SessionsStore) evictOldestLocked() *sessionEntry {
	var oldestID string
	var oldest *sessionEntry
	for id, e := range ss.sessions {
		if oldest == nil || e.sess.CreatedAt.Before(oldest.sess.CreatedAt) {
			oldestID, oldest = id, e
		}
	}
	if oldest != nil {
		delete(ss.sessions, oldestID)
		metrics.SessionsSweptTotal.Inc()
		if ss.logger != nil {
			ss.logger.Cache().Warn("Session store at capacity, evicted oldest session",
				"sessionId", logging.SanitizeSessionID(oldestID),
				"maxSessions", ss.maxSessions)
		}
	}
	return oldest
}

// =============================================================================
// Mutations outside a turn
// =============================================================================

// Update applies fn to the session under its turn lock. It returns false if
// the session does not exist. Must not be called while holding the same
// session's turn lock.
func (ss *SessionsStore) Update(id string, fn func(*session.Session)) bool {
	ss.mu.RLock()
	e, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if !ok {
		return false
	}
	e.turn.Lock()
	defer e.turn.Unlock()
	fn(e.sess)
	return true
}

// AppendMessage adds one message to the session's history.
func (ss *SessionsStore) AppendMessage(id string, role session.Role, text string) bool {
	return ss.Update(id, func(s *session.Session) {
		s.Append(role, text, ss.clock())
	})
}

// SetAwaitingFollowUp sets the follow-up flag.
func (ss *SessionsStore) SetAwaitingFollowUp(id string, awaiting bool) bool {
	return ss.Update(id, func(s *session.Session) {
		s.AwaitingFollowUp = awaiting
	})
}

// Delete removes the session and reports whether it existed.
func (ss *SessionsStore) Delete(id string) bool {
	_, ok := ss.remove(id)
	return ok
}

// Take removes the session and returns its final snapshot, waiting for any
// in-flight turn to finish first.
func (ss *SessionsStore) Take(id string) (session.Session, bool) {
	e, ok := ss.remove(id)
	if !ok {
		return session.Session{}, false
	}
	e.turn.Lock()
	defer e.turn.Unlock()
	return e.sess.Snapshot(), true
}

func (ss *SessionsStore) remove(id string) (*sessionEntry, bool) {
	ss.mu.Lock()
	e, ok := ss.sessions[id]
	if ok {
		delete(ss.sessions, id)
		metrics.SessionsActive.Set(float64(len(ss.sessions)))
	}
	ss.mu.Unlock()

	if ss.logger != nil {
		ss.logger.Cache().Debug("Cache operation",
			"operation", "delete",
			"type", "session",
			"sessionId", logging.SanitizeSessionID(id),
			"hit", ok)
	}
	return e, ok
}

// Sweep deletes every session created more than maxAge ago and returns their
// ids. beforeDelete, when non-nil, receives each expired session's snapshot
// after it has left the registry; it must not block.
func (ss *SessionsStore) Sweep(maxAge time.Duration, beforeDelete func(session.Session)) []string {
	start := time.Now()

	ss.mu.Lock()
	cutoff := ss.now().Add(-maxAge)
	var expired []*sessionEntry
	var ids []string
	for id, e := range ss.sessions {
		if e.sess.CreatedAt.Before(cutoff) {
			expired = append(expired, e)
			ids = append(ids, id)
			delete(ss.sessions, id)
		}
	}
	metrics.SessionsActive.Set(float64(len(ss.sessions)))
	remaining := len(ss.sessions)
	ss.mu.Unlock()

	for _, e := range expired {
		if beforeDelete == nil {
			break
		}
		if e.turn.TryLock() {
			snap := e.sess.Snapshot()
			e.turn.Unlock()
			beforeDelete(snap)
			continue
		}
		// An in-flight turn finishes against the orphaned entry; the
		// snapshot is taken once it releases.
		go func(e *sessionEntry) {
			e.turn.Lock()
			snap := e.sess.Snapshot()
			e.turn.Unlock()
			beforeDelete(snap)
		}(e)
	}
	metrics.SessionsSweptTotal.Add(float64(len(ids)))

	if ss.logger != nil && len(ids) > 0 {
		ss.logger.Cache().Info("Swept expired sessions",
			"deleted", len(ids),
			"remaining", remaining,
			"maxAge", maxAge,
			"duration", time.Since(start))
	}
	return ids
}

// Len returns the number of sessions held.
func (ss *SessionsStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

func (ss *SessionsStore) clock() time.Time {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.now()
}
