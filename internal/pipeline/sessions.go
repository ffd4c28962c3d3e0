package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgallion1/prosecheck/internal/cache"
)

// ErrSuperseded is returned to a caller whose cycle was cancelled by a newer
// check of the same document.
var ErrSuperseded = errors.New("check superseded by a newer revision")

// Session is the state kept for one document between edits.
type Session struct {
	mu sync.Mutex

	ID       string
	Filename string

	cache       *cache.Cache
	cancel      context.CancelFunc
	seq         uint64
	last        *Result
	contentHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionSnapshot is a read-only, JSON-safe copy of session state.
type SessionSnapshot struct {
	ID          string           `json:"doc_id"`
	Filename    string           `json:"filename"`
	Generation  cache.Generation `json:"generation"`
	CacheSize   int              `json:"cache_size"`
	InFlight    bool             `json:"in_flight"`
	ContentHash string           `json:"content_hash,omitempty"`
	LastStats   *Stats           `json:"last_stats,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the session state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SessionSnapshot{
		ID:          s.ID,
		Filename:    s.Filename,
		Generation:  s.cache.Current(),
		CacheSize:   s.cache.Len(),
		InFlight:    s.cancel != nil,
		ContentHash: s.contentHash,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.last != nil {
		st := s.last.Stats
		snap.LastStats = &st
	}
	return snap
}

// Sessions is a thread-safe in-memory session registry with TTL eviction.
// A new check of a document cancels the cycle still running for it.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	orch     *Orchestrator
	log      *slog.Logger
}

func NewSessions(orch *Orchestrator, ttl time.Duration, log *slog.Logger) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		orch:     orch,
		log:      log,
	}
}

func (s *Sessions) getOrCreate(id, filename string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		now := time.Now()
		sess = &Session{
			ID:        id,
			Filename:  filename,
			cache:     cache.New(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.sessions[id] = sess
	}
	return sess
}

// Check runs a cycle for document id. Resubmitting unchanged content
// returns the previous result without a new cycle.
func (s *Sessions) Check(ctx context.Context, id, filename string, content []byte) (*Result, error) {
	if id == "" {
		id = newSessionID()
	}
	sess := s.getOrCreate(id, filename)
	hash := ContentHashHex(content)

	sess.mu.Lock()
	if sess.cancel == nil && sess.last != nil && sess.contentHash == hash && sess.Filename == filename {
		res := sess.last
		sess.UpdatedAt = time.Now()
		sess.mu.Unlock()
		return res, nil
	}
	if sess.cancel != nil {
		sess.cancel()
	}
	cctx, cancel := context.WithCancel(ctx)
	sess.cancel = cancel
	sess.seq++
	seq := sess.seq
	sess.Filename = filename
	sess.mu.Unlock()
	defer cancel()

	res, err := s.orch.CheckSource(cctx, filename, content, sess.cache)

	if res != nil {
		res.DocID = id
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	superseded := seq != sess.seq
	if !superseded {
		sess.cancel = nil
		sess.UpdatedAt = time.Now()
		if err == nil {
			sess.last = res
			sess.contentHash = hash
		}
	}
	if superseded && err != nil && ctx.Err() == nil {
		s.log.Debug("check superseded", "doc", id, "seq", seq)
		return nil, ErrSuperseded
	}
	return res, err
}

// Get returns the session for id, or nil.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// List returns snapshots of every session, most recently used first.
func (s *Sessions) List() []SessionSnapshot {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.Unlock()

	out := make([]SessionSnapshot, 0, len(all))
	for _, sess := range all {
		out = append(out, sess.Snapshot())
	}
	slices.SortFunc(out, func(a, b SessionSnapshot) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out
}

// Delete forgets a document, cancelling any running cycle.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.mu.Lock()
	if sess.cancel != nil {
		sess.cancel()
	}
	sess.mu.Unlock()
	return true
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes idle sessions older than the TTL.
func (s *Sessions) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.cancel == nil && now.Sub(sess.UpdatedAt) > s.ttl
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run evicts expired sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				s.log.Info("evicted idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
