package policy

import (
	"context"
	"sort"
	"sync"
	"time"

	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
)

// Store persists policy documents and their version history.
//
// Versioning contract: Publish assigns the next version for the policy
// identity and atomically makes it the single current version. Published
// documents are never mutated in place.
type Store interface {
	// Publish validates and stores p as the next current version of p.ID,
	// assigning p.ID when nil. Returns the stored document.
	Publish(ctx context.Context, p *Policy) (*Policy, error)

	// GetCurrent returns the current version for a policy identity.
	GetCurrent(ctx context.Context, policyID id.PolicyID) (*Policy, error)

	// ResolveForOffice returns the current policy that governs the office:
	// the highest-priority current policy scoped to the office, falling
	// back to the highest-priority global policy. Office-scoped policies
	// beat global ones on priority ties.
	ResolveForOffice(ctx context.Context, officeID *id.OfficeID) (*Policy, error)

	// ListCurrent returns every current policy version.
	ListCurrent(ctx context.Context) ([]*Policy, error)
}

// InMemoryStore keeps policy versions in a mutex-guarded map. Development
// and tests; production uses the Postgres store.
type InMemoryStore struct {
	mu       sync.RWMutex
	versions map[id.PolicyID][]*Policy
}

// NewInMemoryStore creates an empty in-memory policy store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{versions: make(map[id.PolicyID][]*Policy)}
}

func (s *InMemoryStore) Publish(ctx context.Context, p *Policy) (*Policy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *p
	if stored.ID.IsNil() {
		stored.ID = id.NewPolicyID()
	}

	history := s.versions[stored.ID]
	stored.Version = len(history) + 1
	stored.Current = true
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.PublishedAt = time.Now()

	for _, prev := range history {
		prev.Current = false
	}
	s.versions[stored.ID] = append(history, &stored)

	out := stored
	return &out, nil
}

func (s *InMemoryStore) GetCurrent(ctx context.Context, policyID id.PolicyID) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[policyID]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Current {
			out := *history[i]
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ResolveForOffice(ctx context.Context, officeID *id.OfficeID) (*Policy, error) {
	current, err := s.ListCurrent(ctx)
	if err != nil {
		return nil, err
	}
	return resolveForOffice(current, officeID)
}

func (s *InMemoryStore) ListCurrent(ctx context.Context) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Policy
	for _, history := range s.versions {
		for _, p := range history {
			if p.Current {
				cp := *p
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

// resolveForOffice implements the shared resolution order so both stores
// behave identically: office scope beats global, then priority descending,
// then newest publish.
func resolveForOffice(current []*Policy, officeID *id.OfficeID) (*Policy, error) {
	var candidates []*Policy
	for _, p := range current {
		if p.OfficeID == nil {
			candidates = append(candidates, p)
			continue
		}
		if officeID != nil && *p.OfficeID == *officeID {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, sentinel.ErrNotFound
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aScoped, bScoped := a.OfficeID != nil, b.OfficeID != nil
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if aScoped != bScoped {
			return aScoped
		}
		return a.PublishedAt.After(b.PublishedAt)
	})
	return candidates[0], nil
}
