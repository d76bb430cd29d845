package attendance

import (
	"context"
	"sync"

	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
)

// Store persists accepted and review verdicts.
//
// Save appends the verdict and upserts the user's attendance status in one
// operation; verdicts are immutable once written.
type Store interface {
	Save(ctx context.Context, v *IntegrityVerdict) error
	Get(ctx context.Context, attendanceID id.AttendanceID) (*IntegrityVerdict, error)
	// Latest returns the most recent verdict for a user, or
	// sentinel.ErrNotFound.
	Latest(ctx context.Context, userID id.UserID) (*IntegrityVerdict, error)
}

// InMemoryStore keeps verdicts in mutex-guarded maps. Development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	verdicts map[id.AttendanceID]*IntegrityVerdict
	latest   map[id.UserID]id.AttendanceID
}

// NewInMemoryStore creates an empty in-memory attendance store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		verdicts: make(map[id.AttendanceID]*IntegrityVerdict),
		latest:   make(map[id.UserID]id.AttendanceID),
	}
}

func (s *InMemoryStore) Save(ctx context.Context, v *IntegrityVerdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *v
	s.verdicts[stored.ID] = &stored
	s.latest[stored.UserID] = stored.ID
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, attendanceID id.AttendanceID) (*IntegrityVerdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.verdicts[attendanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *v
	return &out, nil
}

func (s *InMemoryStore) Latest(ctx context.Context, userID id.UserID) (*IntegrityVerdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attendanceID, ok := s.latest[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.verdicts[attendanceID]
	return &out, nil
}
