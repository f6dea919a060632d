// Package config contains the loader and strongly typed model for scenario.yml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/scenarioctl/internal/driver"
	"github.com/codex-k8s/scenarioctl/internal/env"
	"github.com/codex-k8s/scenarioctl/internal/maputil"
)

const (
	// ScenariosDirName is the project sub-directory that holds one directory per scenario.
	ScenariosDirName = "scenarios"
	// ScenarioFileName is the declaration file inside a scenario directory.
	ScenarioFileName = "scenario.yml"
	// DefaultScenarioName is used when no scenario is selected.
	DefaultScenarioName = "default"
	// DefaultDriverName is the platform driver used when scenario.yml omits one.
	DefaultDriverName = "docker"
	// ProvisionerName is the only supported provisioner.
	ProvisionerName = "ansible"

	inventoryDirName       = "inventory"
	inventoryFileName      = "ansible_inventory.yml"
	instanceConfigFileName = "instance_config.yml"
	stateFileName          = "state.yml"
)

// Config is the resolved scenario declaration together with the run-time
// values (action, debug flag, directories) shared by every lifecycle action.
type Config struct {
	// Driver selects the platform driver that creates and destroys instances.
	Driver DriverConfig `yaml:"driver"`
	// Platforms lists the instances the scenario runs against.
	Platforms []Platform `yaml:"platforms"`
	// Provisioner configures the ansible provisioner.
	Provisioner ProvisionerConfig `yaml:"provisioner"`
	// Scenario holds scenario metadata.
	Scenario ScenarioConfig `yaml:"scenario"`
	// EnvFiles lists .env files loaded before rendering scenario.yml.
	EnvFiles []string `yaml:"envFiles"`

	// Action is the lifecycle action currently executing (create, converge, ...).
	Action string `yaml:"-"`
	// Debug enables verbose playbook output.
	Debug bool `yaml:"-"`
	// File is the absolute path of scenario.yml.
	File string `yaml:"-"`
	// BaseFile is the absolute path of the optional base config merged under scenario.yml.
	BaseFile string `yaml:"-"`
	// ProjectDirectory is the root of the project under test.
	ProjectDirectory string `yaml:"-"`
	// EphemeralRoot is the parent of every scenario's scratch directory.
	EphemeralRoot string `yaml:"-"`
	// DataDirectory holds built-in playbooks and plugins.
	DataDirectory string `yaml:"-"`
}

// DriverConfig names the platform driver.
type DriverConfig struct {
	Name string `yaml:"name"`
	// Options holds driver settings such as managed and ansible_connection_options.
	Options map[string]any `yaml:"options"`
}

// Platform describes one instance and the inventory groups it belongs to.
type Platform struct {
	// Name is the inventory hostname.
	Name string `yaml:"name"`
	// Groups lists inventory groups containing the host. Empty means ungrouped.
	Groups []string `yaml:"groups"`
	// Children lists child groups nested under each of Groups.
	Children []string `yaml:"children"`
	// Extra keeps driver-specific settings (image, command, ...).
	Extra map[string]any `yaml:",remain"`
}

// ScenarioConfig holds scenario metadata.
type ScenarioConfig struct {
	Name string `yaml:"name"`
}

// ProvisionerConfig is the provisioner section of scenario.yml.
type ProvisionerConfig struct {
	// Name must be "ansible".
	Name string `yaml:"name"`
	// Log disables no_log on scenario tasks when true.
	Log bool `yaml:"log"`
	// ConfigOptions are ansible.cfg sections merged over the built-in defaults.
	ConfigOptions map[string]any `yaml:"config_options"`
	// ConnectionOptions are merged into every inventory host entry.
	ConnectionOptions map[string]any `yaml:"connection_options"`
	// Options are ansible-playbook CLI options.
	Options map[string]any `yaml:"options"`
	// Env is merged into the playbook process environment.
	Env map[string]any `yaml:"env"`
	// Inventory holds static inventory fragments and links.
	Inventory InventoryConfig `yaml:"inventory"`
	// Playbooks overrides playbook paths per action.
	Playbooks PlaybooksConfig `yaml:"playbooks"`
}

// InventoryConfig holds user-declared inventory fragments.
type InventoryConfig struct {
	// Hosts is written verbatim to the inventory "hosts" file.
	Hosts map[string]any `yaml:"hosts"`
	// HostVars maps a hostname to its variable fragments.
	HostVars map[string]VarFragments `yaml:"host_vars"`
	// GroupVars maps a group name to its variable fragments.
	GroupVars map[string]VarFragments `yaml:"group_vars"`
	// Links maps hosts/host_vars/group_vars to externally managed paths.
	Links map[string]string `yaml:"links"`
}

// PlaybooksConfig overrides playbook paths, relative to the scenario directory.
type PlaybooksConfig struct {
	Create     string `yaml:"create"`
	Destroy    string `yaml:"destroy"`
	Prepare    string `yaml:"prepare"`
	Converge   string `yaml:"converge"`
	SideEffect string `yaml:"side_effect"`
	Verify     string `yaml:"verify"`
	Cleanup    string `yaml:"cleanup"`
}

// VarFragments is an ordered list of variable mappings. Later fragments
// override earlier ones when flattened.
type VarFragments []map[string]any

// Flatten merges the fragments in order into one mapping.
func (f VarFragments) Flatten() map[string]any {
	out := make(map[string]any)
	for _, fragment := range f {
		for k, v := range fragment {
			out[k] = v
		}
	}
	return out
}

// LoadOptions describes where the scenario lives and the run-time flags.
type LoadOptions struct {
	// ScenarioName selects scenarios/<name>/scenario.yml.
	ScenarioName string
	// ProjectDirectory defaults to the working directory.
	ProjectDirectory string
	// BaseConfig is an optional file merged under scenario.yml.
	BaseConfig string
	// Action is the lifecycle action being executed.
	Action string
	// Debug enables verbose playbook output.
	Debug bool
	// UserVars are inline variables for template rendering.
	UserVars env.Vars
	// VarFiles lists additional var-files to load.
	VarFiles []string
	// EphemeralRoot overrides the scratch root (defaults to the user cache dir).
	EphemeralRoot string
	// DataDirectory overrides the built-in data directory.
	DataDirectory string
}

// Load reads, renders, merges and decodes the scenario declaration.
func Load(opts LoadOptions) (*Config, error) {
	name := strings.TrimSpace(opts.ScenarioName)
	if name == "" {
		name = DefaultScenarioName
	}

	projectDir := opts.ProjectDirectory
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve project directory: %w", err)
		}
		projectDir = wd
	}
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	file := filepath.Join(projectDir, ScenariosDirName, name, ScenarioFileName)
	tctx := TemplateContext{
		ScenarioName:      name,
		ProjectDirectory:  projectDir,
		ScenarioDirectory: filepath.Dir(file),
		UserVars:          opts.UserVars,
	}

	merged := defaultDocument(name)

	var baseFile string
	if strings.TrimSpace(opts.BaseConfig) != "" {
		baseFile, err = filepath.Abs(opts.BaseConfig)
		if err != nil {
			return nil, fmt.Errorf("resolve base config path: %w", err)
		}
		baseDoc, err := loadDocument(baseFile, tctx, opts.VarFiles)
		if err != nil {
			return nil, err
		}
		merged = maputil.Merge(merged, baseDoc)
	}

	doc, err := loadDocument(file, tctx, opts.VarFiles)
	if err != nil {
		return nil, err
	}
	merged = maputil.Merge(merged, doc)

	cfg, err := Decode(merged)
	if err != nil {
		return nil, err
	}

	cfg.Action = opts.Action
	cfg.Debug = opts.Debug
	cfg.File = file
	cfg.BaseFile = baseFile
	cfg.ProjectDirectory = projectDir
	cfg.EphemeralRoot = opts.EphemeralRoot
	if cfg.EphemeralRoot == "" {
		cfg.EphemeralRoot = defaultEphemeralRoot()
	}
	cfg.DataDirectory = opts.DataDirectory
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = defaultDataDirectory()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode converts a merged scenario document into Config.
func Decode(doc map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       varFragmentsHook,
	})
	if err != nil {
		return nil, fmt.Errorf("build scenario decoder: %w", err)
	}
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode scenario config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects declarations the provisioner cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Provisioner.Name != ProvisionerName {
		errs = append(errs, fmt.Errorf("unsupported provisioner %q", c.Provisioner.Name))
	}
	if !slices.Contains(driver.Names(), c.Driver.Name) {
		errs = append(errs, fmt.Errorf("unsupported driver %q", c.Driver.Name))
	}
	seen := make(map[string]struct{}, len(c.Platforms))
	for i, p := range c.Platforms {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("platforms[%d]: name is empty", i))
			continue
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Errorf("platforms[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

// ScenarioDirectory is the directory holding scenario.yml and its playbooks.
func (c *Config) ScenarioDirectory() string {
	return filepath.Dir(c.File)
}

// EphemeralDirectory is the per-scenario scratch directory.
func (c *Config) EphemeralDirectory() string {
	return filepath.Join(c.EphemeralRoot, filepath.Base(c.ProjectDirectory), c.Scenario.Name)
}

// InventoryDirectory is the scratch inventory directory passed to ansible-playbook.
func (c *Config) InventoryDirectory() string {
	return filepath.Join(c.EphemeralDirectory(), inventoryDirName)
}

// InventoryFile is the generated inventory written inside InventoryDirectory.
func (c *Config) InventoryFile() string {
	return filepath.Join(c.InventoryDirectory(), inventoryFileName)
}

// InstanceConfigFile is written by create playbooks and read by the delegated driver.
func (c *Config) InstanceConfigFile() string {
	return filepath.Join(c.EphemeralDirectory(), instanceConfigFileName)
}

// StateFile stores lifecycle progress between invocations.
func (c *Config) StateFile() string {
	return filepath.Join(c.EphemeralDirectory(), stateFileName)
}

// Env returns the SCENARIO_* variables exported to every playbook run.
func (c *Config) Env() env.Vars {
	return env.Vars{
		"SCENARIO_DEBUG":               strconv.FormatBool(c.Debug),
		"SCENARIO_FILE":                c.File,
		"SCENARIO_BASE_FILE":           c.BaseFile,
		"SCENARIO_STATE_FILE":          c.StateFile(),
		"SCENARIO_INVENTORY_FILE":      c.InventoryFile(),
		"SCENARIO_EPHEMERAL_DIRECTORY": c.EphemeralDirectory(),
		"SCENARIO_DIRECTORY":           c.ScenarioDirectory(),
		"SCENARIO_PROJECT_DIRECTORY":   c.ProjectDirectory,
		"SCENARIO_INSTANCE_CONFIG":     c.InstanceConfigFile(),
		"SCENARIO_DRIVER_NAME":         c.Driver.Name,
		"SCENARIO_NAME":                c.Scenario.Name,
	}
}

func defaultDocument(scenario string) map[string]any {
	return map[string]any{
		"driver":    map[string]any{"name": DefaultDriverName},
		"platforms": []any{},
		"provisioner": map[string]any{
			"name":    ProvisionerName,
			"log":     false,
			"options": map[string]any{},
			"env":     map[string]any{},
		},
		"scenario": map[string]any{"name": scenario},
	}
}

// loadDocument renders one YAML file and decodes it into a plain map.
func loadDocument(path string, tctx TemplateContext, varFiles []string) (map[string]any, error) {
	rendered, err := LoadAndRender(path, tctx, varFiles)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(rendered, &doc); err != nil {
		return nil, fmt.Errorf("parse rendered %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func defaultEphemeralRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "scenarioctl")
	}
	return filepath.Join(os.TempDir(), "scenarioctl")
}

func defaultDataDirectory() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("/usr/share", "scenarioctl")
	}
	return filepath.Join(filepath.Dir(exe), "..", "share", "scenarioctl")
}
