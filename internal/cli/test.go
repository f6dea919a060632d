package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/scenarioctl/internal/ghoutput"
)

// Destroy strategies for the test command.
const (
	destroyAlways = "always"
	destroyNever  = "never"
)

// step is one named action of a sequence.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// stepError reports which step of a sequence failed.
type stepError struct {
	name  string
	index int
	err   error
}

func (e *stepError) Error() string { return e.name + ": " + e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

// runSequence executes steps in order and stops at the first failure.
func runSequence(ctx context.Context, logger *slog.Logger, steps []step) error {
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("sequence step", "action", st.name)
		if err := st.run(ctx); err != nil {
			return &stepError{name: st.name, index: i, err: err}
		}
	}
	return nil
}

// testSequence lists the full test matrix. Destroy steps are dropped for destroyNever.
func testSequence(a actions, destroy string) []step {
	destroyStep := step{"destroy", a.destroy}
	steps := make([]step, 0, 10)
	if destroy != destroyNever {
		steps = append(steps, destroyStep)
	}
	steps = append(steps,
		step{"syntax", a.syntax},
		step{"create", func(ctx context.Context) error { return a.create(ctx, false) }},
		step{"prepare", func(ctx context.Context) error { return a.prepare(ctx, false) }},
		step{"converge", func(ctx context.Context) error { return a.converge(ctx, "") }},
		step{"idempotence", a.idempotence},
		step{"side_effect", a.sideEffect},
		step{"verify", a.verify},
		step{"cleanup", a.cleanup},
	)
	if destroy != destroyNever {
		steps = append(steps, destroyStep)
	}
	return steps
}

// runTest runs the test matrix. With destroyAlways a failed run still destroys the instances.
func runTest(ctx context.Context, a actions, logger *slog.Logger, destroy string) error {
	if destroy != destroyAlways && destroy != destroyNever {
		return fmt.Errorf("unsupported destroy strategy %q (supported: %s, %s)", destroy, destroyAlways, destroyNever)
	}
	steps := testSequence(a, destroy)
	err := runSequence(ctx, logger, steps)
	if err == nil || destroy == destroyNever {
		return err
	}
	var serr *stepError
	if errors.As(err, &serr) && serr.index == len(steps)-1 {
		return err
	}
	logger.Warn("test sequence failed, destroying instances", "error", err)
	if derr := a.destroy(context.WithoutCancel(ctx)); derr != nil {
		logger.Error("destroy after failure failed", "error", derr)
	}
	return err
}

// newTestCommand creates the "test" subcommand that runs the full scenario lifecycle.
func newTestCommand(opts *Options) *cobra.Command {
	var destroy string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the full lifecycle: destroy, syntax, create, prepare, converge, idempotence, side effect, verify, cleanup, destroy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			envCfg := testEnv{}
			if err := parseEnv(&envCfg); err != nil {
				return err
			}
			if !cmd.Flags().Changed("destroy") && envPresent("SCENARIOCTL_DESTROY") {
				destroy = envCfg.Destroy
			}

			s, err := loadScenarioFromCmd(opts, cmd, "test")
			if err != nil {
				return err
			}
			runErr := runTest(cmd.Context(), s, s.logger, destroy)

			res := ghoutput.Result{
				Scenario:           s.cfg.Scenario.Name,
				Action:             "test",
				Status:             ghoutput.StatusPassed,
				EphemeralDirectory: s.cfg.EphemeralDirectory(),
			}
			if runErr != nil {
				res.Status = ghoutput.StatusFailed
				res.Error = runErr.Error()
			}
			if err := ghoutput.Write(envCfg.GitHubOutput, res.Values()); err != nil {
				s.logger.Warn("failed to write github outputs", "error", err)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&destroy, "destroy", destroyAlways, "Destroy strategy: always or never")
	return cmd
}
