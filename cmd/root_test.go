package cmd_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/cmd"
	"github.com/xenwave/formpilot/internal/audit"
	"github.com/xenwave/formpilot/internal/config"
	"github.com/xenwave/formpilot/internal/observability"
)

// run executes a fresh root command in an isolated working directory so
// config discovery and log files never leak between tests.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	observability.ResetForTest()

	root := cmd.NewRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, cmd.Version)
}

func TestApplyRequiresExactlyOneQueueSource(t *testing.T) {
	_, err := run(t, "apply")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --jobs or --from-dir")

	_, err = run(t, "apply", "--jobs", "queue.json", "--from-dir", "companies")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --jobs or --from-dir")
}

func TestPendingListEmpty(t *testing.T) {
	out, err := run(t, "pending", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending questions.")
}

func TestPendingAnswerRejectsBadNumber(t *testing.T) {
	_, err := run(t, "pending", "answer", "7", "some answer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReportPrintsRecordedSession(t *testing.T) {
	dir := t.TempDir()
	auditor, err := audit.New(config.AuditConfig{Dir: dir, MaxSessions: 10}, zap.NewNop())
	require.NoError(t, err)
	auditor.BeginAttempt(schemas.JobTarget{ID: "j1", URL: "https://jobs.lever.co/acme/1"})
	auditor.FinishAttempt(schemas.StatusSucceeded, "")
	require.NoError(t, auditor.Close())

	out, err := run(t, "report", "--session", auditor.SessionDir())
	require.NoError(t, err)
	assert.Contains(t, out, "https://jobs.lever.co/acme/1")
	assert.Contains(t, out, "succeeded")
}

func TestReportNoSessions(t *testing.T) {
	_, err := run(t, "report")
	require.Error(t, err)
}
