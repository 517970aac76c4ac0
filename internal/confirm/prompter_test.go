package confirm_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/confirm"
	"github.com/xenwave/formpilot/internal/workflow"
)

func sampleSummary() workflow.Summary {
	resolved := []schemas.ResolvedValue{
		{
			Field:  schemas.FieldCandidate{Selector: "#email", Label: "Email", Type: schemas.FieldEmail},
			Value:  "jane@example.com",
			Source: schemas.TierProfile,
			Risk:   schemas.RiskNormal,
		},
		{
			Field:  schemas.FieldCandidate{Selector: "#sp", Label: "Require sponsorship?", Type: schemas.FieldSponsorship},
			Value:  "No",
			Source: schemas.TierCustomAnswer,
			Risk:   schemas.RiskHigh,
		},
		{
			Field:  schemas.FieldCandidate{Selector: "#q", Label: "Why Acme?", Type: schemas.FieldCustomText},
			Source: schemas.TierUnresolved,
			Risk:   schemas.RiskNormal,
		},
	}
	s := workflow.Summary{
		Job:      schemas.JobTarget{URL: "https://jobs.lever.co/acme/1", Company: "Acme"},
		Resolved: resolved,
	}
	s.HighRisk = []schemas.ResolvedValue{resolved[1]}
	s.Unresolved = []schemas.ResolvedValue{resolved[2]}
	return s
}

func decide(t *testing.T, input string) (workflow.Decision, string) {
	t.Helper()
	var out bytes.Buffer
	p := confirm.NewPrompter(strings.NewReader(input), &out, zap.NewNop())
	d, err := p.Confirm(context.Background(), sampleSummary())
	require.NoError(t, err)
	return d, out.String()
}

func TestConfirmDecisions(t *testing.T) {
	d, out := decide(t, "y\n")
	assert.Equal(t, workflow.DecisionProceed, d)
	assert.Contains(t, out, "jane@example.com")
	assert.Contains(t, out, "Require sponsorship?")
	assert.Contains(t, out, "High-risk fields")
	assert.Contains(t, out, "Why Acme?")

	d, _ = decide(t, "skip\n")
	assert.Equal(t, workflow.DecisionSkip, d)

	d, _ = decide(t, "a\n")
	assert.Equal(t, workflow.DecisionAbort, d)
}

func TestConfirmRepromptsOnGarbage(t *testing.T) {
	d, out := decide(t, "maybe\ny\n")
	assert.Equal(t, workflow.DecisionProceed, d)
	assert.Contains(t, out, "Please answer")
}

func TestConfirmEOFAborts(t *testing.T) {
	var out bytes.Buffer
	p := confirm.NewPrompter(strings.NewReader(""), &out, zap.NewNop())
	d, err := p.Confirm(context.Background(), sampleSummary())
	require.NoError(t, err)
	assert.Equal(t, workflow.DecisionAbort, d)
}

// syncBuffer keeps the prompt goroutine and the watcher loop from racing
// over the output stream.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// shiftingWatcher reports the baseline URL once, then a new location.
type shiftingWatcher struct{ calls int }

func (w *shiftingWatcher) CurrentURL() (string, error) {
	w.calls++
	if w.calls == 1 {
		return "https://jobs.lever.co/acme/1", nil
	}
	return "https://jobs.lever.co/acme/thanks", nil
}

type steadyWatcher struct{}

func (steadyWatcher) CurrentURL() (string, error) { return "https://jobs.lever.co/acme/1", nil }

func TestConfirmPageTransitionIsManualSubmit(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out syncBuffer
	p := confirm.NewPrompter(pr, &out, zap.NewNop())
	p.WatchURL(&shiftingWatcher{}, 10*time.Millisecond)

	d, err := p.Confirm(context.Background(), sampleSummary())
	require.NoError(t, err)
	assert.Equal(t, workflow.DecisionSubmitted, d)
	assert.Contains(t, out.String(), "manual submission")
}

func TestConfirmPromptWinsOnStablePage(t *testing.T) {
	var out syncBuffer
	p := confirm.NewPrompter(strings.NewReader("y\n"), &out, zap.NewNop())
	p.WatchURL(steadyWatcher{}, 10*time.Millisecond)

	d, err := p.Confirm(context.Background(), sampleSummary())
	require.NoError(t, err)
	assert.Equal(t, workflow.DecisionProceed, d)
}
