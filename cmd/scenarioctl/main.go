package main

import (
	"errors"
	"os"

	"github.com/codex-k8s/scenarioctl/internal/cli"
	"github.com/codex-k8s/scenarioctl/internal/logging"
	"github.com/codex-k8s/scenarioctl/internal/provisioner"
)

// main is the entry point for the scenarioctl CLI binary.
func main() {
	logger := logging.NewLogger(os.Stderr, logging.LevelInfo)
	if err := cli.Execute(os.Args[1:], logger); err != nil {
		var fatal *provisioner.FatalError
		if errors.As(err, &fatal) {
			logging.Critical(logger, fatal.Message)
			os.Exit(1)
		}
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
