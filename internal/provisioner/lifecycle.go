package provisioner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/codex-k8s/scenarioctl/internal/env"
	"github.com/codex-k8s/scenarioctl/internal/playbook"
)

// Lifecycle actions.
const (
	ActionCreate      = "create"
	ActionDestroy     = "destroy"
	ActionPrepare     = "prepare"
	ActionConverge    = "converge"
	ActionSideEffect  = "side_effect"
	ActionVerify      = "verify"
	ActionCleanup     = "cleanup"
	ActionSyntax      = "syntax"
	ActionCheck       = "check"
	ActionIdempotence = "idempotence"
)

// Playbook resolves the playbook for action. A declared path wins, then
// <scenario>/<action>.yml; create and destroy fall back to the driver's
// built-in playbook. Cleanup resolves to "" when nothing is found.
func (a *Ansible) Playbook(action string) string {
	scenarioDir := a.cfg.ScenarioDirectory()
	if declared := a.declaredPlaybook(action); declared != "" {
		return env.AbsPath(declared, scenarioDir)
	}

	local := filepath.Join(scenarioDir, action+".yml")
	if fileExists(local) {
		return local
	}

	switch action {
	case ActionCreate, ActionDestroy:
		builtIn := filepath.Join(a.DataDirectory(), "playbooks", a.driver.Name(), action+".yml")
		if fileExists(builtIn) {
			return builtIn
		}
		return local
	case ActionCleanup:
		return ""
	default:
		return local
	}
}

// HasPlaybook reports whether the playbook for action exists on disk.
func (a *Ansible) HasPlaybook(action string) bool {
	path := a.Playbook(action)
	return path != "" && fileExists(path)
}

func (a *Ansible) declaredPlaybook(action string) string {
	p := a.cfg.Provisioner.Playbooks
	switch action {
	case ActionCreate:
		return p.Create
	case ActionDestroy:
		return p.Destroy
	case ActionPrepare:
		return p.Prepare
	case ActionConverge:
		return p.Converge
	case ActionSideEffect:
		return p.SideEffect
	case ActionVerify:
		return p.Verify
	case ActionCleanup:
		return p.Cleanup
	}
	return ""
}

// Create runs the create playbook.
func (a *Ansible) Create(ctx context.Context) ([]byte, error) {
	return a.run(ctx, a.Playbook(ActionCreate), nil)
}

// Destroy runs the destroy playbook.
func (a *Ansible) Destroy(ctx context.Context) ([]byte, error) {
	return a.run(ctx, a.Playbook(ActionDestroy), nil)
}

// Prepare runs the prepare playbook.
func (a *Ansible) Prepare(ctx context.Context) ([]byte, error) {
	return a.run(ctx, a.Playbook(ActionPrepare), nil)
}

// Converge runs path, or the scenario converge playbook when path is empty.
func (a *Ansible) Converge(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		path = a.Playbook(ActionConverge)
	}
	return a.run(ctx, path, nil)
}

// SideEffect runs the side-effect playbook.
func (a *Ansible) SideEffect(ctx context.Context) ([]byte, error) {
	return a.run(ctx, a.Playbook(ActionSideEffect), nil)
}

// Verify runs the verify playbook.
func (a *Ansible) Verify(ctx context.Context) ([]byte, error) {
	return a.run(ctx, a.Playbook(ActionVerify), nil)
}

// Cleanup runs the cleanup playbook. Without one it does nothing.
func (a *Ansible) Cleanup(ctx context.Context) ([]byte, error) {
	path := a.Playbook(ActionCleanup)
	if path == "" {
		return nil, nil
	}
	return a.run(ctx, path, nil)
}

// Check runs converge in check mode.
func (a *Ansible) Check(ctx context.Context) ([]byte, error) {
	return a.run(ctx, a.Playbook(ActionConverge), map[string]any{"check": true})
}

// Syntax runs a syntax check of the converge playbook.
func (a *Ansible) Syntax(ctx context.Context) ([]byte, error) {
	return a.run(ctx, a.Playbook(ActionConverge), map[string]any{"syntax-check": true})
}

// run builds exactly one runner and executes it once.
func (a *Ansible) run(ctx context.Context, path string, args map[string]any) ([]byte, error) {
	r := a.newRunner(path, a.invocation())
	for name, value := range args {
		r.AddCLIArg(name, value)
	}
	return r.Execute(ctx)
}

func (a *Ansible) invocation() playbook.Invocation {
	return playbook.Invocation{
		Env:       a.Env(),
		Options:   a.Options(),
		Inventory: a.cfg.InventoryDirectory(),
		Dir:       a.cfg.ScenarioDirectory(),
		Stdout:    a.stdout,
		Logger:    a.logger,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
