package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/scenarioctl/internal/playbook"
)

// requiredBinaries must be on PATH for any lifecycle action.
var requiredBinaries = []string{playbook.Binary, "ansible"}

// newDoctorCommand creates the "doctor" subcommand that runs environment preflight checks.
func newDoctorCommand(_ *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run environment preflight checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if err := runDoctorChecks(ctx, logger, exec.LookPath, ansibleVersion); err != nil {
				return err
			}

			logger.Info("doctor checks completed successfully")
			return nil
		},
	}
}

// runDoctorChecks verifies required binaries and logs the ansible version.
func runDoctorChecks(
	ctx context.Context,
	logger *slog.Logger,
	lookPath func(string) (string, error),
	version func(ctx context.Context, bin string) (string, error),
) error {
	var errs []error
	for _, bin := range requiredBinaries {
		path, err := lookPath(bin)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s binary not found in PATH: %w", bin, err))
			continue
		}
		logger.Info("found binary", "name", bin, "path", path)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	v, err := version(ctx, playbook.Binary)
	if err != nil {
		return fmt.Errorf("%s --version failed: %w", playbook.Binary, err)
	}
	logger.Info("ansible version", "version", v)
	return nil
}

func ansibleVersion(ctx context.Context, bin string) (string, error) {
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(first), nil
}
