package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
// Records are never purged unless Purge is called.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Session
	byToken map[string]string // token -> id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Session),
		byToken: make(map[string]string),
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[sess.Token]; ok {
		return ErrDuplicateToken
	}
	sess.IsActive = true
	sess.DeactivatedAt = nil
	sess.DeactivationReason = ""
	s.byID[sess.ID] = &sess
	s.byToken[sess.Token] = sess.ID
	return nil
}

// FindActive implements Store.
func (s *MemoryStore) FindActive(ctx context.Context, token, ownerID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	row := s.byID[id]
	if row == nil || !row.IsActive || row.OwnerID != ownerID {
		return Session{}, ErrNotFound
	}
	return copySession(row), nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.byID[id]
	if row == nil {
		return Session{}, ErrNotFound
	}
	return copySession(row), nil
}

// ListActive implements Store.
func (s *MemoryStore) ListActive(ctx context.Context, ownerID string) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Session, 0, 4)
	for _, row := range s.byID {
		if row.OwnerID == ownerID && row.IsActive {
			out = append(out, copySession(row))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].ID > out[j].ID
		}
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}

// Touch implements Store.
func (s *MemoryStore) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.byID[id]
	if row == nil || !row.IsActive {
		return false, nil
	}
	if at.After(row.LastActivity) {
		row.LastActivity = at
	}
	return true, nil
}

// Deactivate implements Store.
func (s *MemoryStore) Deactivate(ctx context.Context, id string, now time.Time, reason DeactivationReason) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if row := s.byID[id]; row != nil {
		deactivate(row, now, reason)
	}
	return nil
}

// DeactivateByToken implements Store.
func (s *MemoryStore) DeactivateByToken(ctx context.Context, token string, now time.Time, reason DeactivationReason) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byToken[token]; ok {
		if row := s.byID[id]; row != nil {
			deactivate(row, now, reason)
		}
	}
	return nil
}

// DeactivateAllExcept implements Store.
func (s *MemoryStore) DeactivateAllExcept(ctx context.Context, ownerID, keepToken string, now time.Time, reason DeactivationReason) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.byID {
		if row.OwnerID != ownerID || !row.IsActive || row.Token == keepToken {
			continue
		}
		deactivate(row, now, reason)
		n++
	}
	return n, nil
}

// DeactivateStale implements Store.
func (s *MemoryStore) DeactivateStale(ctx context.Context, now, idleCutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.byID {
		if !row.IsActive {
			continue
		}
		switch {
		case !now.Before(row.AbsoluteExpiry):
			deactivate(row, now, ReasonExpired)
		case !row.LastActivity.After(idleCutoff):
			deactivate(row, now, ReasonStale)
		default:
			continue
		}
		n++
	}
	return n, nil
}

// Purge implements Store.
func (s *MemoryStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, row := range s.byID {
		if row.AbsoluteExpiry.Before(before) {
			delete(s.byToken, row.Token)
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records, active or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// deactivate keeps the first deactivation's time and reason. Caller holds the lock.
func deactivate(row *Session, now time.Time, reason DeactivationReason) {
	row.IsActive = false
	if row.DeactivatedAt == nil {
		at := now
		row.DeactivatedAt = &at
	}
	if row.DeactivationReason == "" {
		row.DeactivationReason = reason
	}
}

func copySession(row *Session) Session {
	out := *row
	if row.DeactivatedAt != nil {
		at := *row.DeactivatedAt
		out.DeactivatedAt = &at
	}
	return out
}
