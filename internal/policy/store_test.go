package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
	"checkpoint/pkg/platform/sentinel"
	"checkpoint/pkg/testutil"
)

func validPolicy(name string) *Policy {
	return &Policy{
		Name: name,
		RequiredFactors: RequiredFactors{
			MinFactors: 1,
			Factors:    []FactorRequirement{{Mode: id.ModeGeofence}},
		},
	}
}

func TestInMemoryStore_PublishAssignsMonotonicVersions(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	v1, err := store.Publish(ctx, validPolicy("hq"))
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.True(t, v1.Current)
	assert.False(t, v1.ID.IsNil())

	next := validPolicy("hq")
	next.ID = v1.ID
	v2, err := store.Publish(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	current, err := store.GetCurrent(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)

	// Exactly one current version per identity.
	all, err := store.ListCurrent(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestInMemoryStore_PublishRejectsInvalidDocument(t *testing.T) {
	store := NewInMemoryStore()

	bad := validPolicy("bad")
	bad.RequiredFactors.MinFactors = 5

	_, err := store.Publish(context.Background(), bad)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestInMemoryStore_GetCurrentUnknown(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.GetCurrent(context.Background(), id.NewPolicyID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_ResolveForOffice(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	office := id.OfficeID(mustUUID("33333333-3333-3333-3333-333333333333"))
	otherOffice := id.OfficeID(mustUUID("44444444-4444-4444-4444-444444444444"))

	var global, scoped *Policy

	testutil.Given(t, "a global policy and a higher-priority office policy", func(t *testing.T) {
		g := validPolicy("global-default")
		g.Priority = 10
		var err error
		global, err = store.Publish(ctx, g)
		require.NoError(t, err)

		s := validPolicy("hq-strict")
		s.Priority = 20
		s.OfficeID = &office
		scoped, err = store.Publish(ctx, s)
		require.NoError(t, err)
	})

	testutil.Then(t, "the office resolves to its scoped policy", func(t *testing.T) {
		got, err := store.ResolveForOffice(ctx, &office)
		require.NoError(t, err)
		assert.Equal(t, scoped.ID, got.ID)
	})

	testutil.Then(t, "an unscoped attempt resolves to the global policy", func(t *testing.T) {
		got, err := store.ResolveForOffice(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, global.ID, got.ID)
	})

	testutil.Then(t, "an office without a scoped policy falls back to global", func(t *testing.T) {
		got, err := store.ResolveForOffice(ctx, &otherOffice)
		require.NoError(t, err)
		assert.Equal(t, global.ID, got.ID)
	})
}

func TestResolveForOffice_ScopedBeatsGlobalOnPriorityTie(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	office := id.OfficeID(mustUUID("33333333-3333-3333-3333-333333333333"))

	g := validPolicy("global")
	g.Priority = 10
	_, err := store.Publish(ctx, g)
	require.NoError(t, err)

	s := validPolicy("scoped")
	s.Priority = 10
	s.OfficeID = &office
	scoped, err := store.Publish(ctx, s)
	require.NoError(t, err)

	got, err := store.ResolveForOffice(ctx, &office)
	require.NoError(t, err)
	assert.Equal(t, scoped.ID, got.ID)
}

func TestResolveForOffice_NoPolicies(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.ResolveForOffice(context.Background(), nil)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
