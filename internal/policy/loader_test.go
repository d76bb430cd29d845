package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootstrapYAML = `policies:
  - name: global-default
    priority: 1
    required_factors:
      min_factors: 1
      factors:
        - mode: geofence
          weight: 1.0
  - name: hq-strict
    priority: 10
    office_id: "33333333-3333-3333-3333-333333333333"
    required_factors:
      min_factors: 2
      factors:
        - mode: geofence
          weight: 1.0
        - mode: wifi
          weight: 1.0
`

func writeBootstrapFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadBootstrap_SeedsPolicies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	path := writeBootstrapFile(t, bootstrapYAML)

	require.NoError(t, LoadBootstrap(ctx, store, path, nil))

	current, err := store.ListCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, current, 2)

	byName := make(map[string]*Policy, len(current))
	for _, p := range current {
		byName[p.Name] = p
	}
	assert.Equal(t, 1, byName["global-default"].Version)
	require.NotNil(t, byName["hq-strict"].OfficeID)
	assert.Equal(t, "33333333-3333-3333-3333-333333333333", byName["hq-strict"].OfficeID.String())
}

func TestLoadBootstrap_ReseedingVersionsSameIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	path := writeBootstrapFile(t, bootstrapYAML)

	require.NoError(t, LoadBootstrap(ctx, store, path, nil))
	first, err := store.ListCurrent(ctx)
	require.NoError(t, err)

	// A restart re-runs bootstrap against the same store. The same names
	// must version the same identities, not accumulate parallel policies.
	require.NoError(t, LoadBootstrap(ctx, store, path, nil))
	second, err := store.ListCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, second, len(first))

	firstIDs := make(map[string]string, len(first))
	for _, p := range first {
		firstIDs[p.Name] = p.ID.String()
	}
	for _, p := range second {
		assert.Equal(t, firstIDs[p.Name], p.ID.String(), "identity of %q", p.Name)
		assert.Equal(t, 2, p.Version, "version of %q", p.Name)
	}
}

func TestLoadBootstrap_RejectsDuplicateNames(t *testing.T) {
	path := writeBootstrapFile(t, `policies:
  - name: twice
    required_factors:
      min_factors: 0
  - name: twice
    required_factors:
      min_factors: 0
`)

	err := LoadBootstrap(context.Background(), NewInMemoryStore(), path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestLoadBootstrap_RejectsBadOfficeID(t *testing.T) {
	path := writeBootstrapFile(t, `policies:
  - name: broken
    office_id: "not-a-uuid"
    required_factors:
      min_factors: 0
`)

	err := LoadBootstrap(context.Background(), NewInMemoryStore(), path, nil)
	require.Error(t, err)
}
