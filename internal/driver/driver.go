// Package driver resolves how ansible connects to the instances a scenario creates.
package driver

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/scenarioctl/internal/maputil"
)

// Driver supplies per-host connection options for the generated inventory.
type Driver interface {
	// Name is the driver identifier used in scenario.yml and built-in playbook paths.
	Name() string
	// ConnectionOptions returns the inventory variables ansible needs to reach host.
	ConnectionOptions(host string) (map[string]any, error)
}

// Options is the decoded driver.options section of scenario.yml.
type Options struct {
	// Managed is false when the instances exist outside the scenario and the
	// create playbook records no instance config. Defaults to true.
	Managed *bool `mapstructure:"managed"`
	// ConnectionOptions are merged over the connection options of every host.
	ConnectionOptions map[string]any `mapstructure:"ansible_connection_options"`
}

func (o Options) managed() bool { return o.Managed == nil || *o.Managed }

// DecodeOptions converts the raw driver.options mapping.
func DecodeOptions(raw map[string]any) (Options, error) {
	var out Options
	if len(raw) == 0 {
		return out, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(raw); err != nil {
		return out, fmt.Errorf("decode driver options: %w", err)
	}
	return out, nil
}

// New returns the driver registered under name. instanceConfig is the path of
// the instance config file written by create playbooks; raw holds driver.options.
func New(name, instanceConfig string, raw map[string]any) (Driver, error) {
	opts, err := DecodeOptions(raw)
	if err != nil {
		return nil, err
	}
	var d Driver
	switch name {
	case "docker", "podman":
		d = connectionDriver{name: name}
	case "delegated":
		d = &Delegated{instanceConfig: instanceConfig, unmanaged: !opts.managed()}
	default:
		return nil, fmt.Errorf("unknown driver %q (supported: %v)", name, Names())
	}
	if len(opts.ConnectionOptions) > 0 {
		d = overlay{Driver: d, extra: opts.ConnectionOptions}
	}
	return d, nil
}

// overlay merges driver.options.ansible_connection_options over a driver's own options.
type overlay struct {
	Driver
	extra map[string]any
}

func (o overlay) ConnectionOptions(host string) (map[string]any, error) {
	base, err := o.Driver.ConnectionOptions(host)
	if err != nil {
		return nil, err
	}
	return maputil.Merge(base, o.extra), nil
}

// Names lists the supported drivers.
func Names() []string {
	names := []string{"delegated", "docker", "podman"}
	sort.Strings(names)
	return names
}

// connectionDriver covers container drivers whose ansible connection plugin
// shares the driver name.
type connectionDriver struct {
	name string
}

func (d connectionDriver) Name() string { return d.name }

func (d connectionDriver) ConnectionOptions(string) (map[string]any, error) {
	return map[string]any{"ansible_connection": d.name}, nil
}

// InstanceConfig is one entry of the instance config file.
type InstanceConfig struct {
	Instance     string `yaml:"instance"`
	Address      string `yaml:"address,omitempty"`
	User         string `yaml:"user,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	IdentityFile string `yaml:"identity_file,omitempty"`
	Connection   string `yaml:"connection,omitempty"`
	BecomeMethod string `yaml:"become_method,omitempty"`
	BecomePass   string `yaml:"become_pass,omitempty"`
}

// Delegated reads connection details that the user's own create playbook
// recorded in the instance config file.
type Delegated struct {
	instanceConfig string
	unmanaged      bool
}

// Name implements Driver.
func (d *Delegated) Name() string { return "delegated" }

// ConnectionOptions implements Driver. Before create has run there is no
// instance config yet and the host gets no options. Unmanaged instances never
// read the instance config.
func (d *Delegated) ConnectionOptions(host string) (map[string]any, error) {
	if d.unmanaged {
		return map[string]any{}, nil
	}
	instances, err := LoadInstanceConfig(d.instanceConfig)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if inst.Instance != host {
			continue
		}
		return inst.connectionOptions(), nil
	}
	return map[string]any{}, nil
}

func (i InstanceConfig) connectionOptions() map[string]any {
	out := map[string]any{}
	if i.Address != "" {
		out["ansible_host"] = i.Address
	}
	if i.User != "" {
		out["ansible_user"] = i.User
	}
	if i.Port != 0 {
		out["ansible_port"] = i.Port
	}
	if i.IdentityFile != "" {
		out["ansible_private_key_file"] = i.IdentityFile
	}
	if i.Connection != "" {
		out["ansible_connection"] = i.Connection
	}
	if i.BecomeMethod != "" {
		out["ansible_become_method"] = i.BecomeMethod
	}
	if i.BecomePass != "" {
		out["ansible_become_pass"] = i.BecomePass
	}
	return out
}

// LoadInstanceConfig reads the instance config file. A missing file yields no instances.
func LoadInstanceConfig(path string) ([]InstanceConfig, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read instance config %q: %w", path, err)
	}
	var out []InstanceConfig
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse instance config %q: %w", path, err)
	}
	return out, nil
}
