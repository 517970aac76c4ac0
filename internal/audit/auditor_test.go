package audit_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/audit"
	"github.com/xenwave/formpilot/internal/config"
)

func newAuditor(t *testing.T, dir string, maxSessions int) *audit.Auditor {
	t.Helper()
	a, err := audit.New(config.AuditConfig{
		Dir:         dir,
		MaxSessions: maxSessions,
		Screenshots: true,
	}, zap.NewNop())
	require.NoError(t, err)
	return a
}

func TestAuditorWritesSessionRecord(t *testing.T) {
	dir := t.TempDir()
	a := newAuditor(t, dir, 10)

	job := schemas.JobTarget{ID: "1", URL: "https://jobs.lever.co/acme/1", Company: "Acme"}
	a.BeginAttempt(job)
	a.SetDetection(schemas.DetectionResult{Platform: schemas.PlatformLever, Confidence: 0.95})
	a.Event("DETECTING", "platform classified")
	a.SetResolved([]schemas.ResolvedValue{{
		Field:  schemas.FieldCandidate{Selector: "#email", Type: schemas.FieldEmail},
		Value:  "jane@example.com",
		Source: schemas.TierProfile,
	}})
	a.FinishAttempt(schemas.StatusSucceeded, "")
	require.NoError(t, a.Close())

	rec, err := audit.LoadRecord(a.SessionDir())
	require.NoError(t, err)
	assert.Equal(t, a.SessionID(), rec.SessionID)
	require.Len(t, rec.Attempts, 1)
	attempt := rec.Attempts[0]
	assert.Equal(t, schemas.StatusSucceeded, attempt.Status)
	assert.Equal(t, schemas.PlatformLever, attempt.Detection.Platform)
	require.Len(t, attempt.Events, 1)
	assert.Equal(t, "DETECTING", attempt.Events[0].State)
	require.Len(t, attempt.Resolved, 1)
	assert.Equal(t, "jane@example.com", attempt.Resolved[0].Value)
	assert.False(t, rec.FinishedAt.IsZero())
}

func TestAuditorScreenshots(t *testing.T) {
	dir := t.TempDir()
	a := newAuditor(t, dir, 10)

	a.BeginAttempt(schemas.JobTarget{ID: "1", URL: "https://example.com"})
	a.SaveScreenshot(schemas.ShotInitial, []byte("png-bytes"))
	a.SaveScreenshot(schemas.ShotPreSubmit, nil) // empty capture is skipped
	a.FinishAttempt(schemas.StatusSucceeded, "")

	rec := a.Record()
	require.Len(t, rec.Attempts, 1)
	require.Len(t, rec.Attempts[0].Screenshots, 1)
	ref := rec.Attempts[0].Screenshots[0]
	assert.Equal(t, schemas.ShotInitial, ref.Checkpoint)

	data, err := os.ReadFile(filepath.Join(a.SessionDir(), ref.Path))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestAuditorScreenshotsDisabled(t *testing.T) {
	dir := t.TempDir()
	a, err := audit.New(config.AuditConfig{Dir: dir, MaxSessions: 10, Screenshots: false}, zap.NewNop())
	require.NoError(t, err)

	a.BeginAttempt(schemas.JobTarget{ID: "1"})
	a.SaveScreenshot(schemas.ShotInitial, []byte("png-bytes"))
	assert.Empty(t, a.Record().Attempts[0].Screenshots)
}

func TestRetentionPrunesOldestFirst(t *testing.T) {
	dir := t.TempDir()

	// Seed nine old session dirs with ascending timestamps.
	for i := 0; i < 9; i++ {
		name := fmt.Sprintf("2024010%dT000000_old%04d", i+1, i)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0o755))
	}

	a := newAuditor(t, dir, 5)
	require.NoError(t, a.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	// The newest session (ours) must have survived.
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, filepath.Base(a.SessionDir()))
	// The oldest seeded dirs are gone.
	assert.NotContains(t, names, "20240101T000000_old0000")
	assert.NotContains(t, names, "20240102T000000_old0001")
}

func TestRetentionUnderCapKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "20240101T000000_old0000"), 0o755))

	a := newAuditor(t, dir, 10)
	require.NoError(t, a.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
