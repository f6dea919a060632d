package provisioner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/ini.v1"

	"github.com/codex-k8s/scenarioctl/internal/maputil"
)

const (
	defaultSkipTags     = "scenario-notest,notest"
	idempotenceSkipTags = "scenario-idempotence-notest"
	configFileName      = "ansible.cfg"
)

var verbosityOption = regexp.MustCompile(`^v+$`)

// Options maps ansible-playbook option names to values.
type Options map[string]any

// DefaultOptions is the baseline every run receives.
func (a *Ansible) DefaultOptions() Options {
	skip := defaultSkipTags
	if a.cfg.Action == ActionIdempotence {
		skip += "," + idempotenceSkipTags
	}
	opts := Options{"skip-tags": skip}
	if a.cfg.Debug {
		opts["vvv"] = true
		opts["diff"] = true
	}
	return opts
}

// Options returns the CLI options for the current action. Create and destroy
// ignore user options; debug flags always win.
func (a *Ansible) Options() Options {
	defaults := a.DefaultOptions()
	if a.cfg.Action == ActionCreate || a.cfg.Action == ActionDestroy {
		return defaults
	}

	out := Options{}
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range a.cfg.Provisioner.Options {
		if a.cfg.Debug && verbosityOption.MatchString(k) {
			continue
		}
		out[k] = v
	}
	if a.cfg.Debug {
		out["vvv"] = true
		out["diff"] = true
	}
	return out
}

// DefaultConfigOptions are the built-in ansible.cfg sections.
func (a *Ansible) DefaultConfigOptions() map[string]any {
	return map[string]any{
		"defaults": map[string]any{
			"ansible_managed":     "Ansible managed: Do NOT edit this file manually!",
			"retry_files_enabled": false,
			"host_key_checking":   false,
			"nocows":              1,
		},
		"ssh_connection": map[string]any{
			"scp_if_ssh":   true,
			"control_path": "%(directory)s/%%h-%%p-%%r",
		},
	}
}

// ConfigOptions deep-merges provisioner.config_options over the defaults.
func (a *Ansible) ConfigOptions() map[string]any {
	return maputil.Merge(a.DefaultConfigOptions(), a.cfg.Provisioner.ConfigOptions)
}

// ConfigFile is the ansible.cfg exported through ANSIBLE_CONFIG.
func (a *Ansible) ConfigFile() string {
	return filepath.Join(a.cfg.EphemeralDirectory(), configFileName)
}

// WriteConfig renders ConfigOptions as INI into ConfigFile.
func (a *Ansible) WriteConfig() error {
	f := ini.Empty()
	opts := a.ConfigOptions()
	for _, name := range maputil.SortedKeys(opts) {
		values, ok := opts[name].(map[string]any)
		if !ok {
			return fmt.Errorf("config_options.%s: expected mapping, got %T", name, opts[name])
		}
		sec, err := f.NewSection(name)
		if err != nil {
			return fmt.Errorf("add section %q: %w", name, err)
		}
		for _, key := range maputil.SortedKeys(values) {
			if _, err := sec.NewKey(key, iniValue(values[key])); err != nil {
				return fmt.Errorf("add key %s.%s: %w", name, key, err)
			}
		}
	}

	path := a.ConfigFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %q: %w", filepath.Dir(path), err)
	}
	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// iniValue formats booleans the way ansible documents them.
func iniValue(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "True"
		}
		return "False"
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
