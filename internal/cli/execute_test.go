package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/scenarioctl/internal/provisioner"
)

const fakePlaybook = `#!/bin/sh
echo "$@" >> "$SCENARIOCTL_TEST_LOG"
echo "PLAY RECAP"
echo "instance-1                 : ok=1    changed=${FAKE_CHANGED:-0}    unreachable=0    failed=0"
`

// setupProject creates a project with one scenario and a stub ansible-playbook on PATH.
func setupProject(t *testing.T, scenarioYAML string) (project, cache, callLog string) {
	t.Helper()
	root := t.TempDir()
	project = filepath.Join(root, "role")
	scenarioDir := filepath.Join(project, "scenarios", "default")
	require.NoError(t, os.MkdirAll(scenarioDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarioDir, "scenario.yml"), []byte(scenarioYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(scenarioDir, "converge.yml"), []byte("- hosts: all\n"), 0o644))

	bin := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "ansible-playbook"), []byte(fakePlaybook), 0o755))

	cache = filepath.Join(root, "cache")
	callLog = filepath.Join(root, "calls.log")
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("SCENARIOCTL_EPHEMERAL_ROOT", cache)
	t.Setenv("SCENARIOCTL_DATA_DIR", filepath.Join(root, "share"))
	t.Setenv("SCENARIOCTL_TEST_LOG", callLog)
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(project))
	t.Setenv("PWD", project)
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	return project, cache, callLog
}

func TestExecuteConvergeCreatesAndConverges(t *testing.T) {
	_, cache, callLog := setupProject(t, "platforms:\n  - name: instance-1\n    groups: [web]\n")

	require.NoError(t, Execute([]string{"converge", "--log-level", "error"}, discardLogger()))

	ephemeral := filepath.Join(cache, "role", "default")
	raw, err := os.ReadFile(filepath.Join(ephemeral, "state.yml"))
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &st))
	assert.Equal(t, true, st["created"])
	assert.Equal(t, true, st["converged"])
	assert.Equal(t, "docker", st["driver"])

	assert.FileExists(t, filepath.Join(ephemeral, "ansible.cfg"))
	assert.FileExists(t, filepath.Join(ephemeral, "inventory", "ansible_inventory.yml"))

	calls, err := os.ReadFile(callLog)
	require.NoError(t, err)
	assert.Contains(t, string(calls), "--skip-tags=scenario-notest,notest")
	assert.Contains(t, string(calls), "converge.yml")
}

func TestExecuteIdempotenceDetectsChanges(t *testing.T) {
	setupProject(t, "platforms:\n  - name: instance-1\n")
	require.NoError(t, Execute([]string{"converge", "--log-level", "error"}, discardLogger()))

	require.NoError(t, Execute([]string{"idempotence", "--log-level", "error"}, discardLogger()))

	t.Setenv("FAKE_CHANGED", "2")
	err := Execute([]string{"idempotence", "--log-level", "error"}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance-1")
}

func TestExecuteWithoutPlatformsIsFatal(t *testing.T) {
	setupProject(t, "driver:\n  name: podman\n")

	err := Execute([]string{"syntax", "--log-level", "error"}, discardLogger())
	require.Error(t, err)
	assert.True(t, provisioner.IsFatal(err))
}

func TestExecuteDestroyResetsState(t *testing.T) {
	_, cache, _ := setupProject(t, "platforms:\n  - name: instance-1\n")
	require.NoError(t, Execute([]string{"create", "--log-level", "error"}, discardLogger()))
	require.NoError(t, Execute([]string{"destroy", "--log-level", "error"}, discardLogger()))

	raw, err := os.ReadFile(filepath.Join(cache, "role", "default", "state.yml"))
	require.NoError(t, err)
	var st map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &st))
	assert.Equal(t, false, st["created"])
}

func TestExecuteTestWritesGitHubOutputs(t *testing.T) {
	project, _, _ := setupProject(t, "platforms:\n  - name: instance-1\n")
	output := filepath.Join(filepath.Dir(project), "gh-output")
	t.Setenv("GITHUB_OUTPUT", output)

	require.NoError(t, Execute([]string{"test", "--log-level", "error"}, discardLogger()))

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "scenario=default\n")
	assert.Contains(t, string(raw), "status=passed\n")
}
