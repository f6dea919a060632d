package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/scenarioctl/internal/provisioner"
)

// newActionCommand builds a subcommand that loads the scenario for action and runs fn.
func newActionCommand(opts *Options, use, short, action string, fn func(ctx context.Context, s *scenario) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadScenarioFromCmd(opts, cmd, action)
			if err != nil {
				return err
			}
			return fn(cmd.Context(), s)
		},
	}
}

// newCreateCommand creates the "create" subcommand.
func newCreateCommand(opts *Options) *cobra.Command {
	var force bool
	cmd := newActionCommand(opts, "create", "Create the scenario instances", provisioner.ActionCreate,
		func(ctx context.Context, s *scenario) error {
			return s.create(ctx, force)
		})
	cmd.Flags().BoolVar(&force, "force", false, "Run create even when instances already exist")
	return cmd
}

// newPrepareCommand creates the "prepare" subcommand.
func newPrepareCommand(opts *Options) *cobra.Command {
	var force bool
	cmd := newActionCommand(opts, "prepare", "Run the prepare playbook against created instances", provisioner.ActionPrepare,
		func(ctx context.Context, s *scenario) error {
			return s.prepare(ctx, force)
		})
	cmd.Flags().BoolVar(&force, "force", false, "Run prepare even when it already ran")
	return cmd
}

// newConvergeCommand creates the "converge" subcommand. Missing instances are
// created and prepared first.
func newConvergeCommand(opts *Options) *cobra.Command {
	var playbook string
	cmd := newActionCommand(opts, "converge", "Create, prepare and converge the scenario instances", provisioner.ActionConverge,
		func(ctx context.Context, s *scenario) error {
			return runSequence(ctx, s.logger, []step{
				{provisioner.ActionCreate, func(ctx context.Context) error { return s.create(ctx, false) }},
				{provisioner.ActionPrepare, func(ctx context.Context) error { return s.prepare(ctx, false) }},
				{provisioner.ActionConverge, func(ctx context.Context) error { return s.converge(ctx, playbook) }},
			})
		})
	cmd.Flags().StringVar(&playbook, "playbook", "", "Converge with this playbook instead of the scenario default")
	return cmd
}

// newSideEffectCommand creates the "side-effect" subcommand.
func newSideEffectCommand(opts *Options) *cobra.Command {
	return newActionCommand(opts, "side-effect", "Run the side effect playbook", provisioner.ActionSideEffect,
		func(ctx context.Context, s *scenario) error { return s.sideEffect(ctx) })
}

// newVerifyCommand creates the "verify" subcommand.
func newVerifyCommand(opts *Options) *cobra.Command {
	return newActionCommand(opts, "verify", "Run the verify playbook", provisioner.ActionVerify,
		func(ctx context.Context, s *scenario) error { return s.verify(ctx) })
}

// newCleanupCommand creates the "cleanup" subcommand.
func newCleanupCommand(opts *Options) *cobra.Command {
	return newActionCommand(opts, "cleanup", "Run the cleanup playbook when one exists", provisioner.ActionCleanup,
		func(ctx context.Context, s *scenario) error { return s.cleanup(ctx) })
}

// newDestroyCommand creates the "destroy" subcommand.
func newDestroyCommand(opts *Options) *cobra.Command {
	return newActionCommand(opts, "destroy", "Destroy the scenario instances", provisioner.ActionDestroy,
		func(ctx context.Context, s *scenario) error { return s.destroy(ctx) })
}

// newSyntaxCommand creates the "syntax" subcommand.
func newSyntaxCommand(opts *Options) *cobra.Command {
	return newActionCommand(opts, "syntax", "Check the converge playbook syntax", provisioner.ActionSyntax,
		func(ctx context.Context, s *scenario) error { return s.syntax(ctx) })
}

// newCheckCommand creates the "check" subcommand.
func newCheckCommand(opts *Options) *cobra.Command {
	return newActionCommand(opts, "check", "Run converge in check mode", provisioner.ActionCheck,
		func(ctx context.Context, s *scenario) error { return s.check(ctx) })
}
