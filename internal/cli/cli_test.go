package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingActions struct {
	calls  []string
	failOn string
	// passes lets the first N calls of failOn succeed.
	passes int
}

func (r *recordingActions) record(name string) error {
	r.calls = append(r.calls, name)
	if name != r.failOn {
		return nil
	}
	if r.passes > 0 {
		r.passes--
		return nil
	}
	return errors.New("boom")
}

func (r *recordingActions) create(context.Context, bool) error     { return r.record("create") }
func (r *recordingActions) prepare(context.Context, bool) error    { return r.record("prepare") }
func (r *recordingActions) converge(context.Context, string) error { return r.record("converge") }
func (r *recordingActions) idempotence(context.Context) error      { return r.record("idempotence") }
func (r *recordingActions) sideEffect(context.Context) error       { return r.record("side_effect") }
func (r *recordingActions) verify(context.Context) error           { return r.record("verify") }
func (r *recordingActions) cleanup(context.Context) error          { return r.record("cleanup") }
func (r *recordingActions) destroy(context.Context) error          { return r.record("destroy") }
func (r *recordingActions) syntax(context.Context) error           { return r.record("syntax") }
func (r *recordingActions) check(context.Context) error            { return r.record("check") }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunTestFullSequence(t *testing.T) {
	a := &recordingActions{}
	require.NoError(t, runTest(context.Background(), a, discardLogger(), destroyAlways))
	assert.Equal(t, []string{
		"destroy", "syntax", "create", "prepare", "converge",
		"idempotence", "side_effect", "verify", "cleanup", "destroy",
	}, a.calls)
}

func TestRunTestDestroyNever(t *testing.T) {
	a := &recordingActions{}
	require.NoError(t, runTest(context.Background(), a, discardLogger(), destroyNever))
	assert.NotContains(t, a.calls, "destroy")
	assert.Len(t, a.calls, 8)
}

func TestRunTestDestroysAfterFailure(t *testing.T) {
	a := &recordingActions{failOn: "converge"}
	err := runTest(context.Background(), a, discardLogger(), destroyAlways)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "converge: boom")
	assert.Equal(t, []string{"destroy", "syntax", "create", "prepare", "converge", "destroy"}, a.calls)
}

func TestRunTestDoesNotRetryFailedFinalDestroy(t *testing.T) {
	a := &recordingActions{failOn: "destroy", passes: 1}
	err := runTest(context.Background(), a, discardLogger(), destroyAlways)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destroy: boom")
	assert.Equal(t, []string{
		"destroy", "syntax", "create", "prepare", "converge",
		"idempotence", "side_effect", "verify", "cleanup", "destroy",
	}, a.calls)
}

func TestRunTestRetriesDestroyWhenInitialDestroyFails(t *testing.T) {
	a := &recordingActions{failOn: "destroy"}
	err := runTest(context.Background(), a, discardLogger(), destroyAlways)
	require.Error(t, err)
	assert.Equal(t, []string{"destroy", "destroy"}, a.calls)
}

func TestRunTestKeepsInstancesOnFailureWithNever(t *testing.T) {
	a := &recordingActions{failOn: "verify"}
	err := runTest(context.Background(), a, discardLogger(), destroyNever)
	require.Error(t, err)
	assert.Equal(t, "verify", a.calls[len(a.calls)-1])
}

func TestRunTestRejectsUnknownStrategy(t *testing.T) {
	a := &recordingActions{}
	assert.Error(t, runTest(context.Background(), a, discardLogger(), "sometimes"))
	assert.Empty(t, a.calls)
}

func TestRunSequenceStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := runSequence(ctx, discardLogger(), []step{{"x", func(context.Context) error { ran = true; return nil }}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestChangedHosts(t *testing.T) {
	out := []byte(`
PLAY RECAP *********************************************************************
instance-1                 : ok=3    changed=0    unreachable=0    failed=0    skipped=0
instance-2                 : ok=4    changed=2    unreachable=0    failed=0    skipped=1
localhost                  : ok=1    changed=1    unreachable=0    failed=0
`)
	assert.Equal(t, []string{"instance-2", "localhost"}, changedHosts(out))
	assert.Empty(t, changedHosts([]byte("instance-1 : ok=3 changed=0 unreachable=0 failed=0\n")))
	assert.Empty(t, changedHosts(nil))
}

func TestRunDoctorChecks(t *testing.T) {
	found := func(bin string) (string, error) { return "/usr/bin/" + bin, nil }
	version := func(context.Context, string) (string, error) { return "ansible-playbook [core 2.17.0]", nil }
	require.NoError(t, runDoctorChecks(context.Background(), discardLogger(), found, version))

	missing := func(bin string) (string, error) { return "", errors.New("not found") }
	err := runDoctorChecks(context.Background(), discardLogger(), missing, version)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ansible-playbook binary not found in PATH")
	assert.Contains(t, err.Error(), "ansible binary not found in PATH")
}

func TestParseEnvBool(t *testing.T) {
	v, ok := parseEnvBool(" true ")
	assert.True(t, v)
	assert.True(t, ok)

	_, ok = parseEnvBool("maybe")
	assert.False(t, ok)
	_, ok = parseEnvBool("")
	assert.False(t, ok)
}
