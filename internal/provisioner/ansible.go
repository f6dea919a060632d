// Package provisioner prepares inventory, configuration and environment for
// ansible-playbook and sequences the scenario lifecycle actions.
package provisioner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/codex-k8s/scenarioctl/internal/config"
	"github.com/codex-k8s/scenarioctl/internal/driver"
	"github.com/codex-k8s/scenarioctl/internal/playbook"
)

// Runner executes one playbook.
type Runner interface {
	AddCLIArg(name string, value any)
	Execute(ctx context.Context) ([]byte, error)
}

// RunnerFactory builds a Runner for a playbook path.
type RunnerFactory func(path string, inv playbook.Invocation) Runner

// Ansible is the provisioner bound to one scenario configuration. It owns the
// scenario's scratch directory for the duration of a run.
type Ansible struct {
	cfg       *config.Config
	driver    driver.Driver
	logger    *slog.Logger
	stdout    io.Writer
	newRunner RunnerFactory
}

// Option customizes an Ansible provisioner.
type Option func(*Ansible)

// WithDriver overrides the driver resolved from the configuration.
func WithDriver(d driver.Driver) Option {
	return func(a *Ansible) { a.driver = d }
}

// WithRunnerFactory replaces the ansible-playbook runner.
func WithRunnerFactory(f RunnerFactory) Option {
	return func(a *Ansible) { a.newRunner = f }
}

// WithLogger sets the logger passed to runners.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Ansible) { a.logger = logger }
}

// WithStdout sets where playbook output is echoed.
func WithStdout(w io.Writer) Option {
	return func(a *Ansible) { a.stdout = w }
}

// New constructs the provisioner for cfg.
func New(cfg *config.Config, opts ...Option) (*Ansible, error) {
	if cfg == nil {
		return nil, fmt.Errorf("scenario config is nil")
	}
	a := &Ansible{
		cfg:    cfg,
		logger: slog.Default(),
		stdout: os.Stdout,
		newRunner: func(path string, inv playbook.Invocation) Runner {
			return playbook.New(path, inv)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.driver == nil {
		d, err := driver.New(cfg.Driver.Name, cfg.InstanceConfigFile(), cfg.Driver.Options)
		if err != nil {
			return nil, err
		}
		a.driver = d
	}
	return a, nil
}

// Name is the provisioner identifier.
func (a *Ansible) Name() string {
	return config.ProvisionerName
}

// Setup writes ansible.cfg and refreshes the inventory directory. It runs
// before every lifecycle action.
func (a *Ansible) Setup() error {
	if err := a.WriteConfig(); err != nil {
		return err
	}
	return a.ManageInventory()
}

// ManageInventory writes the generated inventory, then replaces the
// hosts/host_vars/group_vars artifacts from scratch.
func (a *Ansible) ManageInventory() error {
	dir := a.cfg.InventoryDirectory()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create inventory directory: %w", err)
	}
	if err := a.writeInventory(); err != nil {
		return err
	}
	if err := RemoveVars(dir); err != nil {
		return err
	}
	return Materialize(dir, a.MaterializationMode())
}

func (a *Ansible) writeInventory() error {
	if err := a.VerifyInventory(); err != nil {
		return err
	}
	inv, err := a.Inventory()
	if err != nil {
		return err
	}
	return writeYAML(a.cfg.InventoryFile(), inv)
}
