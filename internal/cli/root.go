// Package cli defines the command-line interface for scenarioctl.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/scenarioctl/internal/logging"
)

// Options stores global CLI options shared between commands.
type Options struct {
	ScenarioName  string
	BaseConfig    string
	Debug         bool
	EphemeralRoot string
	DataDir       string
	LogLevel      logging.Level
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootOpts := &Options{
		LogLevel: logging.LevelInfo,
	}

	rootCmd := newRootCommand(rootOpts, logger)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scenarioctl",
		Short:         "scenarioctl tests ansible roles against disposable instances",
		Long:          "scenarioctl drives ansible-playbook through the create, converge, verify and destroy lifecycle of a test scenario declared in scenarios/<name>/scenario.yml.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyRootEnv(cmd, opts); err != nil {
				return err
			}
			logger = logging.NewLogger(os.Stderr, opts.LogLevel)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", opts.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ScenarioName, "scenario-name", "s", "", "Name of the scenario to target (default \"default\")")
	cmd.PersistentFlags().StringVar(&opts.BaseConfig, "base-config", "", "Path to a base config merged under scenario.yml")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Enable verbose ansible-playbook output")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error, critical)")
	cmd.PersistentFlags().String("vars", "", "Additional template variables in k=v,k2=v2 format")
	cmd.PersistentFlags().String("var-file", "", "Path to YAML/ENV file with additional template variables")

	cmd.AddCommand(
		newCreateCommand(opts),
		newPrepareCommand(opts),
		newConvergeCommand(opts),
		newSideEffectCommand(opts),
		newVerifyCommand(opts),
		newCleanupCommand(opts),
		newDestroyCommand(opts),
		newSyntaxCommand(opts),
		newCheckCommand(opts),
		newIdempotenceCommand(opts),
		newTestCommand(opts),
		newDoctorCommand(opts),
	)

	return cmd
}

// applyRootEnv fills options not set by flags from SCENARIOCTL_* variables.
func applyRootEnv(cmd *cobra.Command, opts *Options) error {
	envCfg := rootEnv{}
	if err := parseEnv(&envCfg); err != nil {
		return err
	}

	level := cmd.Flag("log-level").Value.String()
	if !cmd.Flags().Changed("log-level") && envPresent("SCENARIOCTL_LOG_LEVEL") {
		level = envCfg.LogLevel
	}
	opts.LogLevel = logging.ParseLevel(level)

	if !cmd.Flags().Changed("scenario-name") && envPresent("SCENARIOCTL_SCENARIO") {
		opts.ScenarioName = envCfg.Scenario
	}
	if !cmd.Flags().Changed("debug") && envPresent("SCENARIOCTL_DEBUG") {
		if v, ok := parseEnvBool(envCfg.Debug); ok {
			opts.Debug = v
		}
	}
	if !cmd.Flags().Changed("base-config") && envPresent("SCENARIOCTL_BASE_CONFIG") {
		opts.BaseConfig = envCfg.BaseConfig
	}
	opts.EphemeralRoot = envCfg.EphemeralRoot
	opts.DataDir = envCfg.DataDir
	return nil
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
