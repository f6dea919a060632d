package cli

import (
	"os"
	"strconv"
	"strings"

	envparse "github.com/caarlos0/env/v11"
)

// rootEnv defines root CLI defaults sourced from SCENARIOCTL_* env vars.
type rootEnv struct {
	// LogLevel is the logging level from SCENARIOCTL_LOG_LEVEL.
	LogLevel string `env:"SCENARIOCTL_LOG_LEVEL"`
	// Scenario is the scenario name from SCENARIOCTL_SCENARIO.
	Scenario string `env:"SCENARIOCTL_SCENARIO"`
	// BaseConfig is the base config path from SCENARIOCTL_BASE_CONFIG.
	BaseConfig string `env:"SCENARIOCTL_BASE_CONFIG"`
	// Debug toggles verbose playbooks from SCENARIOCTL_DEBUG.
	Debug string `env:"SCENARIOCTL_DEBUG"`
	// EphemeralRoot overrides the scratch root from SCENARIOCTL_EPHEMERAL_ROOT.
	EphemeralRoot string `env:"SCENARIOCTL_EPHEMERAL_ROOT"`
	// DataDir overrides the built-in data directory from SCENARIOCTL_DATA_DIR.
	DataDir string `env:"SCENARIOCTL_DATA_DIR"`
}

// varsEnv describes inline vars and var files passed via env.
type varsEnv struct {
	// Vars is a k=v,k2=v2 list from SCENARIOCTL_VARS.
	Vars string `env:"SCENARIOCTL_VARS"`
	// VarFile is a YAML/ENV path from SCENARIOCTL_VAR_FILE.
	VarFile string `env:"SCENARIOCTL_VAR_FILE"`
}

// testEnv captures inputs for the test command.
type testEnv struct {
	// Destroy is the destroy strategy from SCENARIOCTL_DESTROY.
	Destroy string `env:"SCENARIOCTL_DESTROY" envDefault:"always"`
	// GitHubOutput is the step output file set by GitHub Actions.
	GitHubOutput string `env:"GITHUB_OUTPUT"`
}

// parseEnv fills target from SCENARIOCTL_* env vars via caarlos0/env.
func parseEnv(target any) error {
	return envparse.Parse(target)
}

// envPresent reports whether a non-empty env var exists.
func envPresent(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	return strings.TrimSpace(val) != ""
}

// parseEnvBool parses a boolean string and reports if it was present and valid.
func parseEnvBool(value string) (bool, bool) {
	if strings.TrimSpace(value) == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, false
	}
	return parsed, true
}
