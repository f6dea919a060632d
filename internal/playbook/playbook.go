// Package playbook provides low-level integration with ansible-playbook.
package playbook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/codex-k8s/scenarioctl/internal/env"
	"github.com/codex-k8s/scenarioctl/internal/logging"
	"github.com/codex-k8s/scenarioctl/internal/maputil"
)

// Binary is the executable invoked by Runner.
const Binary = "ansible-playbook"

// Invocation carries everything a run needs besides the playbook path.
type Invocation struct {
	// Env is the complete process environment.
	Env env.Vars
	// Options are ansible-playbook CLI options (name -> value).
	Options map[string]any
	// Inventory is passed as --inventory when set.
	Inventory string
	// Dir is the working directory of the process.
	Dir string
	// Stdout receives a copy of playbook output. Defaults to os.Stdout.
	Stdout io.Writer
	// Logger receives stderr lines. Defaults to slog.Default().
	Logger *slog.Logger
}

// Runner wraps one ansible-playbook execution.
type Runner struct {
	playbook string
	inv      Invocation
	cliArgs  map[string]any
}

// New constructs a runner for the given playbook.
func New(path string, inv Invocation) *Runner {
	return &Runner{
		playbook: path,
		inv:      inv,
		cliArgs:  make(map[string]any),
	}
}

// Playbook returns the playbook path.
func (r *Runner) Playbook() string {
	return r.playbook
}

// AddCLIArg adds or replaces a CLI option, overriding Invocation.Options.
func (r *Runner) AddCLIArg(name string, value any) {
	r.cliArgs[name] = value
}

// Args returns the ansible-playbook argument list.
func (r *Runner) Args() []string {
	opts := make(map[string]any, len(r.inv.Options)+len(r.cliArgs))
	for k, v := range r.inv.Options {
		opts[k] = v
	}
	for k, v := range r.cliArgs {
		opts[k] = v
	}

	args := make([]string, 0, len(opts)+3)
	if r.inv.Inventory != "" {
		args = append(args, "--inventory="+r.inv.Inventory)
	}
	for _, name := range maputil.SortedKeys(opts) {
		args = append(args, formatOption(name, opts[name])...)
	}
	return append(args, r.playbook)
}

// formatOption renders one option. Booleans are flags, single letters use
// the short form (-vvv is written as key "vvv" with value true).
func formatOption(name string, value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		if !v {
			return nil
		}
		if len(name) == 1 || isVerbosity(name) {
			return []string{"-" + name}
		}
		return []string{"--" + name}
	}
	if len(name) == 1 {
		return []string{"-" + name, fmt.Sprint(value)}
	}
	return []string{fmt.Sprintf("--%s=%v", name, value)}
}

func isVerbosity(name string) bool {
	return name != "" && strings.Trim(name, "v") == ""
}

// Execute runs the playbook and returns its captured stdout.
func (r *Runner) Execute(ctx context.Context) ([]byte, error) {
	args := r.Args()
	cmd := exec.CommandContext(ctx, Binary, args...)
	cmd.Dir = r.inv.Dir
	if r.inv.Env != nil {
		cmd.Env = r.inv.Env.Environ()
	}

	stdout := r.inv.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	logger := r.inv.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var captured bytes.Buffer
	cmd.Stdout = io.MultiWriter(stdout, &captured)
	cmd.Stderr = logging.NewWriter(logger, Binary)

	logger.Debug("running playbook", "playbook", r.playbook, "args", args)
	if err := cmd.Run(); err != nil {
		return captured.Bytes(), fmt.Errorf("%s %s failed: %w", Binary, r.playbook, err)
	}
	return captured.Bytes(), nil
}
