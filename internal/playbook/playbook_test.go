package playbook

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/scenarioctl/internal/env"
)

func TestArgsFormatting(t *testing.T) {
	r := New("/s/converge.yml", Invocation{
		Inventory: "/e/inventory",
		Options: map[string]any{
			"skip-tags": "scenario-notest,notest",
			"become":    true,
			"diff":      false,
			"vvv":       true,
			"e":         "x=1",
			"limit":     nil,
		},
	})
	r.AddCLIArg("check", true)

	assert.Equal(t, []string{
		"--inventory=/e/inventory",
		"--become",
		"--check",
		"-e", "x=1",
		"--skip-tags=scenario-notest,notest",
		"-vvv",
		"/s/converge.yml",
	}, r.Args())
	assert.Equal(t, "/s/converge.yml", r.Playbook())
}

func TestAddCLIArgOverridesOptions(t *testing.T) {
	r := New("p.yml", Invocation{Options: map[string]any{"syntax-check": false}})
	r.AddCLIArg("syntax-check", true)
	assert.Equal(t, []string{"--syntax-check", "p.yml"}, r.Args())
}

func TestExecuteMissingBinary(t *testing.T) {
	if _, err := exec.LookPath(Binary); err == nil {
		t.Skip("ansible-playbook is installed")
	}
	var out bytes.Buffer
	r := New("p.yml", Invocation{Env: env.Vars{"PATH": ""}, Stdout: &out})
	_, err := r.Execute(context.Background())
	assert.Error(t, err)
}

func TestExecuteRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New("p.yml", Invocation{Stdout: &bytes.Buffer{}})
	_, err := r.Execute(ctx)
	require.Error(t, err)
}
