// Package ghoutput publishes scenario results as GitHub Actions step outputs.
package ghoutput

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/codex-k8s/scenarioctl/internal/maputil"
)

// Result statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Result summarizes one scenario run.
type Result struct {
	Scenario           string
	Action             string
	Status             string
	EphemeralDirectory string
	Error              string
}

// Values returns the outputs for r keyed by output name.
func (r Result) Values() map[string]string {
	values := map[string]string{
		"scenario":            r.Scenario,
		"action":              r.Action,
		"status":              r.Status,
		"ephemeral_directory": r.EphemeralDirectory,
	}
	if r.Error != "" {
		values["error"] = r.Error
	}
	return values
}

// Write appends values to the GITHUB_OUTPUT file at path. An empty path is a no-op.
func Write(path string, values map[string]string) error {
	path = strings.TrimSpace(path)
	if path == "" || len(values) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open github output %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return Encode(f, values)
}

// Encode writes values in GITHUB_OUTPUT syntax with sorted keys. Multi-line
// values use the heredoc form.
func Encode(w io.Writer, values map[string]string) error {
	for _, key := range maputil.SortedKeys(values) {
		if strings.TrimSpace(key) == "" {
			continue
		}
		value := values[key]
		var err error
		if strings.ContainsAny(value, "\r\n") {
			delim := delimiter(value)
			_, err = fmt.Fprintf(w, "%s<<%s\n%s\n%s\n", key, delim, value, delim)
		} else {
			_, err = fmt.Fprintf(w, "%s=%s\n", key, value)
		}
		if err != nil {
			return fmt.Errorf("write github output %q: %w", key, err)
		}
	}
	return nil
}

// delimiter picks a heredoc marker that does not occur in value.
func delimiter(value string) string {
	delim := "SCENARIOCTL_EOF"
	for i := 1; strings.Contains(value, delim); i++ {
		delim = fmt.Sprintf("SCENARIOCTL_EOF_%d", i)
	}
	return delim
}
