package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/scenarioctl/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Config{
		ProjectDirectory: "/project",
		EphemeralRoot:    t.TempDir(),
		Scenario:         config.ScenarioConfig{Name: "default"},
	}
	s, err := NewStore(cfg, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

func TestUpdateAndReset(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Update(func(st *State) {
		st.Created = true
		st.Driver = "docker"
	}))
	require.NoError(t, s.Update(func(st *State) { st.Converged = true }))

	st, err := s.Load()
	require.NoError(t, err)
	assert.True(t, st.Created)
	assert.True(t, st.Converged)
	assert.False(t, st.Prepared)
	assert.Equal(t, "docker", st.Driver)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), st.UpdatedAt)

	require.NoError(t, s.Reset())
	st, err = s.Load()
	require.NoError(t, err)
	assert.False(t, st.Created)
	assert.Empty(t, st.Driver)
	assert.FileExists(t, s.Path())
}

func TestLoadCorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("created: [\n"), 0o644))

	_, err := s.Load()
	assert.Error(t, err)
}

func TestNewStoreRequiresConfig(t *testing.T) {
	_, err := NewStore(nil, nil)
	assert.Error(t, err)
}
