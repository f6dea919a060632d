package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/scenarioctl/internal/env"
)

func writeScenario(t *testing.T, project, name, content string) string {
	t.Helper()
	dir := filepath.Join(project, ScenariosDirName, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, ScenarioFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	project := t.TempDir()
	writeScenario(t, project, "default", "platforms:\n  - name: instance-1\n")

	cfg, err := Load(LoadOptions{ProjectDirectory: project, EphemeralRoot: t.TempDir(), Action: "converge"})
	require.NoError(t, err)

	assert.Equal(t, "docker", cfg.Driver.Name)
	assert.Equal(t, "ansible", cfg.Provisioner.Name)
	assert.Equal(t, "default", cfg.Scenario.Name)
	assert.Equal(t, "converge", cfg.Action)
	require.Len(t, cfg.Platforms, 1)
	assert.Equal(t, "instance-1", cfg.Platforms[0].Name)
	assert.Equal(t, filepath.Join(project, "scenarios", "default"), cfg.ScenarioDirectory())
}

func TestLoadDecodesProvisionerSection(t *testing.T) {
	project := t.TempDir()
	writeScenario(t, project, "full", `
driver:
  name: podman
platforms:
  - name: instance-1
    groups: [foo, bar]
    children: [child1]
    image: alpine
provisioner:
  name: ansible
  log: true
  config_options:
    defaults:
      foo: bar
  connection_options:
    foo: bar
  options:
    become: true
  env:
    FOO: bar
    NUM: 3
  inventory:
    hosts:
      all:
        hosts:
          extra-host-01: {}
    host_vars:
      instance-1:
        - foo: bar
        - foo: baz
          x: 1
      localhost:
        foo: qux
    group_vars:
      example_group1:
        - foo: bar
    links:
      hosts: ../hosts
  playbooks:
    side_effect: side.yml
`)

	cfg, err := Load(LoadOptions{ProjectDirectory: project, ScenarioName: "full", EphemeralRoot: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "podman", cfg.Driver.Name)
	assert.Equal(t, []string{"foo", "bar"}, cfg.Platforms[0].Groups)
	assert.Equal(t, []string{"child1"}, cfg.Platforms[0].Children)
	assert.Equal(t, "alpine", cfg.Platforms[0].Extra["image"])
	assert.True(t, cfg.Provisioner.Log)
	assert.Equal(t, map[string]any{"foo": "bar"}, cfg.Provisioner.ConfigOptions["defaults"])
	assert.Equal(t, true, cfg.Provisioner.Options["become"])
	assert.Equal(t, 3, cfg.Provisioner.Env["NUM"])
	assert.Equal(t, "side.yml", cfg.Provisioner.Playbooks.SideEffect)
	assert.Equal(t, map[string]string{"hosts": "../hosts"}, cfg.Provisioner.Inventory.Links)

	hv := cfg.Provisioner.Inventory.HostVars
	require.Len(t, hv["instance-1"], 2)
	assert.Equal(t, map[string]any{"foo": "baz", "x": 1}, hv["instance-1"].Flatten())
	assert.Equal(t, VarFragments{{"foo": "qux"}}, hv["localhost"])
	assert.Equal(t, VarFragments{{"foo": "bar"}}, cfg.Provisioner.Inventory.GroupVars["example_group1"])
}

func TestLoadMergesBaseConfig(t *testing.T) {
	project := t.TempDir()
	writeScenario(t, project, "default", "provisioner:\n  options:\n    diff: true\n")
	base := filepath.Join(project, "base.yml")
	require.NoError(t, os.WriteFile(base, []byte("driver:\n  name: delegated\nprovisioner:\n  options:\n    become: true\n"), 0o644))

	cfg, err := Load(LoadOptions{ProjectDirectory: project, BaseConfig: base, EphemeralRoot: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "delegated", cfg.Driver.Name)
	assert.Equal(t, map[string]any{"become": true, "diff": true}, cfg.Provisioner.Options)
	assert.Equal(t, base, cfg.BaseFile)
}

func TestLoadRendersTemplatesAndKeepsJinja(t *testing.T) {
	project := t.TempDir()
	dir := filepath.Dir(writeScenario(t, project, "default", ""))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("IMAGE=debian\n"), 0o644))
	writeScenario(t, project, "default", `envFiles: [.env]
platforms:
  - name: [[ envOr "HOST_NAME" "fallback" ]]
    image: "[[ envOr "IMAGE" "alpine" ]]"
provisioner:
  env:
    GREETING: "{{ lookup('env', 'HOME') }}"
`)

	cfg, err := Load(LoadOptions{
		ProjectDirectory: project,
		EphemeralRoot:    t.TempDir(),
		UserVars:         env.Vars{"HOST_NAME": "from-vars"},
	})
	require.NoError(t, err)

	assert.Equal(t, "from-vars", cfg.Platforms[0].Name)
	assert.Equal(t, "debian", cfg.Platforms[0].Extra["image"])
	assert.Equal(t, "{{ lookup('env', 'HOME') }}", cfg.Provisioner.Env["GREETING"])
}

func TestLoadMissingScenario(t *testing.T) {
	_, err := Load(LoadOptions{ProjectDirectory: t.TempDir(), ScenarioName: "nope"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Driver:      DriverConfig{Name: "vagrant"},
		Provisioner: ProvisionerConfig{Name: "chef"},
		Platforms:   []Platform{{Name: "a"}, {Name: "a"}, {Name: " "}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported provisioner "chef"`)
	assert.Contains(t, err.Error(), `unsupported driver "vagrant"`)
	assert.Contains(t, err.Error(), `duplicate name "a"`)
	assert.Contains(t, err.Error(), "platforms[2]: name is empty")
}

func TestVarFragmentsHookRejectsScalars(t *testing.T) {
	_, err := Decode(map[string]any{
		"provisioner": map[string]any{
			"inventory": map[string]any{
				"host_vars": map[string]any{"h1": []any{"oops"}},
			},
		},
	})
	assert.Error(t, err)
}

func TestPathsAndEnv(t *testing.T) {
	cfg := &Config{
		File:             "/project/scenarios/default/scenario.yml",
		ProjectDirectory: "/project",
		EphemeralRoot:    "/cache",
		Driver:           DriverConfig{Name: "docker"},
		Scenario:         ScenarioConfig{Name: "default"},
		Debug:            true,
	}

	assert.Equal(t, "/cache/project/default", cfg.EphemeralDirectory())
	assert.Equal(t, "/cache/project/default/inventory", cfg.InventoryDirectory())
	assert.Equal(t, "/cache/project/default/inventory/ansible_inventory.yml", cfg.InventoryFile())
	assert.Equal(t, "/cache/project/default/instance_config.yml", cfg.InstanceConfigFile())
	assert.Equal(t, "/cache/project/default/state.yml", cfg.StateFile())

	vars := cfg.Env()
	assert.Equal(t, "true", vars["SCENARIO_DEBUG"])
	assert.Equal(t, cfg.File, vars["SCENARIO_FILE"])
	assert.Equal(t, "/project/scenarios/default", vars["SCENARIO_DIRECTORY"])
	assert.Equal(t, "docker", vars["SCENARIO_DRIVER_NAME"])
	assert.Equal(t, "default", vars["SCENARIO_NAME"])
	assert.Contains(t, vars, "SCENARIO_INSTANCE_CONFIG")
}

func TestRenderTemplateFuncs(t *testing.T) {
	out, err := RenderTemplate("t", []byte(`[[ default "" "x" ]]-[[ toLower "AB" ]]-[[ ternary true "y" "n" ]]`), TemplateContext{})
	require.NoError(t, err)
	assert.Equal(t, "x-ab-y", string(out))
}
