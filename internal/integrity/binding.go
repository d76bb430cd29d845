package integrity

import (
	"bytes"
	"context"
	"sync"
	"time"

	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
)

// BindingStore persists device bindings.
//
// Validate compares the presented key against the stored binding and
// reports the status; it updates last_validated_at on a valid match.
// A mismatch is never auto-healed: the stored key stays authoritative
// until an operator intervenes.
type BindingStore interface {
	// Validate reports the binding status for (userID, deviceID) given the
	// key presented this time. presentedKey may be nil.
	Validate(ctx context.Context, userID id.UserID, deviceID id.DeviceID, presentedKey []byte) (BindingStatus, error)

	// Bind creates the binding. Returns sentinel.ErrConflict when a binding
	// already exists for the pair.
	Bind(ctx context.Context, rec *BindingRecord) error

	// Get returns the binding record, or sentinel.ErrNotFound.
	Get(ctx context.Context, userID id.UserID, deviceID id.DeviceID) (*BindingRecord, error)
}

type bindingKey struct {
	user   id.UserID
	device id.DeviceID
}

// InMemoryBindingStore keeps bindings in a mutex-guarded map. The mutex is
// the per-identity atomicity guarantee for concurrent validate/bind.
type InMemoryBindingStore struct {
	mu       sync.Mutex
	bindings map[bindingKey]*BindingRecord
}

// NewInMemoryBindingStore creates an empty in-memory binding store.
func NewInMemoryBindingStore() *InMemoryBindingStore {
	return &InMemoryBindingStore{bindings: make(map[bindingKey]*BindingRecord)}
}

func (s *InMemoryBindingStore) Validate(ctx context.Context, userID id.UserID, deviceID id.DeviceID, presentedKey []byte) (BindingStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.bindings[bindingKey{user: userID, device: deviceID}]
	if !ok {
		return BindingUnbound, nil
	}
	if len(presentedKey) == 0 {
		return BindingMissingPublicKey, nil
	}
	if !bytes.Equal(rec.DevicePublicKey, presentedKey) {
		return BindingMismatch, nil
	}
	rec.LastValidatedAt = time.Now()
	return BindingValid, nil
}

func (s *InMemoryBindingStore) Bind(ctx context.Context, rec *BindingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bindingKey{user: rec.UserID, device: rec.DeviceID}
	if _, exists := s.bindings[key]; exists {
		return sentinel.ErrConflict
	}

	stored := *rec
	if stored.BoundAt.IsZero() {
		stored.BoundAt = time.Now()
	}
	stored.LastValidatedAt = stored.BoundAt
	s.bindings[key] = &stored
	return nil
}

func (s *InMemoryBindingStore) Get(ctx context.Context, userID id.UserID, deviceID id.DeviceID) (*BindingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.bindings[bindingKey{user: userID, device: deviceID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *rec
	return &out, nil
}
