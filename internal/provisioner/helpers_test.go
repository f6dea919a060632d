package provisioner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/scenarioctl/internal/config"
	"github.com/codex-k8s/scenarioctl/internal/playbook"
)

type fakeRunner struct {
	path     string
	inv      playbook.Invocation
	args     map[string]any
	executed int
	out      []byte
	err      error
}

func (r *fakeRunner) AddCLIArg(name string, value any) {
	r.args[name] = value
}

func (r *fakeRunner) Execute(context.Context) ([]byte, error) {
	r.executed++
	return r.out, r.err
}

type fakeFactory struct {
	runners []*fakeRunner
	out     []byte
	err     error
}

func (f *fakeFactory) build(path string, inv playbook.Invocation) Runner {
	r := &fakeRunner{path: path, inv: inv, args: map[string]any{}, out: f.out, err: f.err}
	f.runners = append(f.runners, r)
	return r
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	project := filepath.Join(t.TempDir(), "project")
	scenarioDir := filepath.Join(project, config.ScenariosDirName, "default")
	require.NoError(t, os.MkdirAll(scenarioDir, 0o755))

	return &config.Config{
		Driver: config.DriverConfig{Name: "docker"},
		Platforms: []config.Platform{
			{Name: "instance-1", Groups: []string{"foo", "bar"}, Children: []string{"child1"}},
			{Name: "instance-2", Groups: []string{"foo", "baz"}, Children: []string{"child2"}},
		},
		Provisioner: config.ProvisionerConfig{
			Name:              config.ProvisionerName,
			ConnectionOptions: map[string]any{"foo": "bar"},
		},
		Scenario:         config.ScenarioConfig{Name: "default"},
		Action:           ActionConverge,
		File:             filepath.Join(scenarioDir, config.ScenarioFileName),
		ProjectDirectory: project,
		EphemeralRoot:    filepath.Join(t.TempDir(), "cache"),
		DataDirectory:    filepath.Join(t.TempDir(), "share"),
	}
}

func newTestAnsible(t *testing.T, cfg *config.Config) (*Ansible, *fakeFactory) {
	t.Helper()
	factory := &fakeFactory{}
	a, err := New(cfg,
		WithRunnerFactory(factory.build),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStdout(io.Discard),
	)
	require.NoError(t, err)
	return a, factory
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
