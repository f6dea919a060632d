package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/scenarioctl/internal/config"
	"github.com/codex-k8s/scenarioctl/internal/env"
	"github.com/codex-k8s/scenarioctl/internal/provisioner"
	"github.com/codex-k8s/scenarioctl/internal/state"
)

// parseInlineVarsAndFiles reads --vars/--var-file, falling back to SCENARIOCTL_VARS/SCENARIOCTL_VAR_FILE.
func parseInlineVarsAndFiles(cmd *cobra.Command) (env.Vars, []string, error) {
	envCfg := varsEnv{}
	if err := parseEnv(&envCfg); err != nil {
		return nil, nil, err
	}

	rawVars := cmd.Flag("vars").Value.String()
	if !cmd.Flags().Changed("vars") && envPresent("SCENARIOCTL_VARS") {
		rawVars = envCfg.Vars
	}
	inlineVars, err := env.ParseInlineVars(rawVars)
	if err != nil {
		return nil, nil, err
	}

	varFile := cmd.Flag("var-file").Value.String()
	if !cmd.Flags().Changed("var-file") && envPresent("SCENARIOCTL_VAR_FILE") {
		varFile = envCfg.VarFile
	}
	var varFiles []string
	if varFile != "" {
		varFiles = append(varFiles, varFile)
	}
	return inlineVars, varFiles, nil
}

// loadScenarioFromCmd loads scenario.yml for action and wires the provisioner and state store.
func loadScenarioFromCmd(opts *Options, cmd *cobra.Command, action string) (*scenario, error) {
	logger := LoggerFromContext(cmd.Context())

	inlineVars, varFiles, err := parseInlineVarsAndFiles(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.LoadOptions{
		ScenarioName:  opts.ScenarioName,
		BaseConfig:    opts.BaseConfig,
		Action:        action,
		Debug:         opts.Debug,
		UserVars:      inlineVars,
		VarFiles:      varFiles,
		EphemeralRoot: opts.EphemeralRoot,
		DataDirectory: opts.DataDir,
	})
	if err != nil {
		return nil, err
	}

	return newScenario(cfg, logger, cmd)
}

func newScenario(cfg *config.Config, logger *slog.Logger, cmd *cobra.Command) (*scenario, error) {
	prov, err := provisioner.New(cfg,
		provisioner.WithLogger(logger),
		provisioner.WithStdout(cmd.OutOrStdout()),
	)
	if err != nil {
		return nil, err
	}
	store, err := state.NewStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("scenario loaded",
		"scenario", cfg.Scenario.Name,
		"driver", cfg.Driver.Name,
		"ephemeral", cfg.EphemeralDirectory(),
	)
	return &scenario{cfg: cfg, prov: prov, state: store, logger: logger}, nil
}
