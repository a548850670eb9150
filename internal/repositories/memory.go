package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

// MemoryStore keeps credentials in process memory. Contents are lost on restart.
//
// With a positive ttl, sessions not saved within ttl are hidden from Get and List
// and dropped on the next Save.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty [MemoryStore]. A zero ttl keeps sessions for the life of the process.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) stale(sess models.Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}

// Get returns a copy of the stored credential.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || s.stale(sess, s.now()) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, sessionID)
	}
	cred := sess.Credential
	return &cred, nil
}

// Save stores a copy of cred, replacing any existing entry, then drops stale sessions.
func (s *MemoryStore) Save(ctx context.Context, sessionID string, cred *models.Credential) error {
	if sessionID == "" || cred == nil {
		return fmt.Errorf("%w: session id and credential are required", shared.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok || s.stale(sess, now) {
		sess = models.Session{ID: sessionID, CreatedAt: now}
	}
	sess.Credential = *cred
	sess.UpdatedAt = now
	s.sessions[sessionID] = sess

	if s.ttl > 0 {
		s.pruneLocked(now.Add(-s.ttl))
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Prune removes sessions last saved before the cutoff.
func (s *MemoryStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(before), nil
}

func (s *MemoryStore) pruneLocked(before time.Time) int64 {
	var n int64
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(before) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// List returns live sessions ordered by last update, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	sessions := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if !s.stale(sess, now) {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored sessions, stale ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
