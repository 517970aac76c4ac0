package workflow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/ats"
	"github.com/xenwave/formpilot/internal/config"
	"github.com/xenwave/formpilot/internal/extract"
	"github.com/xenwave/formpilot/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBrowser scripts a page's behavior for one attempt.
type fakeBrowser struct {
	navErrs      []error // consumed per Navigate call
	controls     []extract.RawControl
	rescanAdd    []extract.RawControl
	challenge    bool
	applyFound   bool
	submitFound  bool
	urlChanges   bool
	collectCalls int
	submitClicks int

	filled   map[string]string
	uploaded map[string][]string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		controls: []extract.RawControl{
			{Selector: "#email", Tag: "input", LabelText: "Email", Visible: true},
			{Selector: "#q1", Tag: "textarea", LabelText: "Why us?", Visible: true},
		},
		submitFound: true,
		urlChanges:  true,
		filled:      map[string]string{},
		uploaded:    map[string][]string{},
	}
}

func (f *fakeBrowser) Navigate(string) error {
	if len(f.navErrs) == 0 {
		return nil
	}
	err := f.navErrs[0]
	f.navErrs = f.navErrs[1:]
	return err
}

func (f *fakeBrowser) CurrentURL() (string, error) { return "https://jobs.lever.co/acme/1", nil }
func (f *fakeBrowser) OuterHTML() (string, error)  { return "<html></html>", nil }

func (f *fakeBrowser) CollectControls() ([]extract.RawControl, error) {
	f.collectCalls++
	if f.collectCalls > 1 && len(f.rescanAdd) > 0 {
		return append(append([]extract.RawControl{}, f.controls...), f.rescanAdd...), nil
	}
	return f.controls, nil
}

func (f *fakeBrowser) HasBlockingChallenge() (bool, error) { return f.challenge, nil }

func (f *fakeBrowser) SetValue(field schemas.FieldCandidate, value string) error {
	f.filled[field.Selector] = value
	return nil
}

func (f *fakeBrowser) SetFiles(field schemas.FieldCandidate, paths []string) error {
	f.uploaded[field.Selector] = paths
	return nil
}

func (f *fakeBrowser) ClickButton(role string) (bool, error) {
	if role == "submit" {
		f.submitClicks++
		return f.submitFound, nil
	}
	return f.applyFound, nil
}

func (f *fakeBrowser) WaitURLChange(string, time.Duration) (bool, error) { return f.urlChanges, nil }

func (f *fakeBrowser) Screenshot() ([]byte, error) { return []byte{1}, nil }

// fakeResolver answers every candidate from a canned table.
type fakeResolver struct {
	answers map[string]schemas.ResolvedValue // by selector
}

func (f *fakeResolver) ResolveAll(ctx context.Context, cands []schemas.FieldCandidate, _ schemas.JobTarget) ([]schemas.ResolvedValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]schemas.ResolvedValue, 0, len(cands))
	for _, c := range cands {
		if rv, ok := f.answers[c.Selector]; ok {
			rv.Field = c
			out = append(out, rv)
			continue
		}
		out = append(out, schemas.ResolvedValue{Field: c, Source: schemas.TierUnresolved, Risk: c.Risk()})
	}
	return out, nil
}

type fakeConfirmer struct {
	decision workflow.Decision
	called   bool
}

func (f *fakeConfirmer) Confirm(context.Context, workflow.Summary) (workflow.Decision, error) {
	f.called = true
	return f.decision, nil
}

// fakeRecorder captures audit calls for assertions.
type fakeRecorder struct {
	status      schemas.AttemptStatus
	reason      string
	events      []string
	screenshots []string
	resolved    []schemas.ResolvedValue
}

func (f *fakeRecorder) BeginAttempt(schemas.JobTarget) {}

func (f *fakeRecorder) SetDetection(schemas.DetectionResult) {}

func (f *fakeRecorder) SetResolved(resolved []schemas.ResolvedValue) { f.resolved = resolved }

func (f *fakeRecorder) Event(state, _ string) { f.events = append(f.events, state) }
func (f *fakeRecorder) SaveScreenshot(checkpoint string, _ []byte) {
	f.screenshots = append(f.screenshots, checkpoint)
}
func (f *fakeRecorder) FinishAttempt(s schemas.AttemptStatus, r string) {
	f.status = s
	f.reason = r
}

type harness struct {
	browser   *fakeBrowser
	resolver  *fakeResolver
	confirmer *fakeConfirmer
	recorder  *fakeRecorder
	attempt   *workflow.Attempt
}

func newHarness(cfg config.RunnerConfig, b *fakeBrowser, r *fakeResolver, c *fakeConfirmer) *harness {
	logger := zap.NewNop()
	rec := &fakeRecorder{}
	var confirmer workflow.Confirmer
	if c != nil {
		confirmer = c
	}
	return &harness{
		browser:   b,
		resolver:  r,
		confirmer: c,
		recorder:  rec,
		attempt: workflow.NewAttempt(cfg, b, ats.NewDetector(logger), extract.NewExtractor(logger),
			r, confirmer, rec, logger),
	}
}

var testJob = schemas.JobTarget{ID: "job-1", URL: "https://jobs.lever.co/acme/1", Company: "Acme"}

func standardAnswers() map[string]schemas.ResolvedValue {
	return map[string]schemas.ResolvedValue{
		"#email": {Value: "jane@example.com", Source: schemas.TierProfile, Risk: schemas.RiskNormal, Confidence: 1.0},
		"#q1":    {Value: "Because.", Source: schemas.TierLLM, Risk: schemas.RiskNormal, Confidence: 0.9},
	}
}

func TestAttemptHappyPath(t *testing.T) {
	h := newHarness(config.RunnerConfig{}, newFakeBrowser(),
		&fakeResolver{answers: standardAnswers()},
		&fakeConfirmer{decision: workflow.DecisionProceed})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSucceeded, state)
	assert.Equal(t, schemas.StatusSucceeded, h.recorder.status)
	assert.True(t, h.confirmer.called)
	assert.Equal(t, "jane@example.com", h.browser.filled["#email"])
	assert.Equal(t, "Because.", h.browser.filled["#q1"])
	assert.Contains(t, h.recorder.screenshots, schemas.ShotInitial)
	assert.Contains(t, h.recorder.screenshots, schemas.ShotAfterFill)
	assert.Contains(t, h.recorder.screenshots, schemas.ShotPreSubmit)
	assert.Contains(t, h.recorder.screenshots, schemas.ShotAfterSubmit)
}

func TestAttemptRetriesTransientNavigation(t *testing.T) {
	b := newFakeBrowser()
	b.navErrs = []error{fmt.Errorf("load: %w", schemas.ErrTransient)}
	h := newHarness(config.RunnerConfig{}, b,
		&fakeResolver{answers: standardAnswers()},
		&fakeConfirmer{decision: workflow.DecisionProceed})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSucceeded, state)
}

func TestAttemptTransientTwiceFails(t *testing.T) {
	b := newFakeBrowser()
	b.navErrs = []error{
		fmt.Errorf("load: %w", schemas.ErrTransient),
		fmt.Errorf("load: %w", schemas.ErrTransient),
	}
	h := newHarness(config.RunnerConfig{}, b, &fakeResolver{}, &fakeConfirmer{})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, state)
	assert.Contains(t, h.recorder.reason, "navigation_failed")
}

func TestAttemptBlockingChallengeAborts(t *testing.T) {
	b := newFakeBrowser()
	b.challenge = true
	h := newHarness(config.RunnerConfig{}, b, &fakeResolver{}, &fakeConfirmer{})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateAborted, state)
	assert.Equal(t, "blocking_challenge", h.recorder.reason)
	assert.False(t, h.confirmer.called, "challenge must never reach confirmation")
}

func TestAttemptNoFormFieldsAborts(t *testing.T) {
	b := newFakeBrowser()
	b.controls = nil
	h := newHarness(config.RunnerConfig{}, b, &fakeResolver{}, &fakeConfirmer{})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateAborted, state, "an empty page is a structural anomaly, not a page failure")
	assert.Equal(t, "no_form_fields", h.recorder.reason)
	assert.Equal(t, 2, b.collectCalls, "an empty first harvest earns one more pass")
	assert.False(t, h.confirmer.called)
}

func TestAttemptEmptyFirstHarvestRecovers(t *testing.T) {
	b := newFakeBrowser()
	b.rescanAdd = b.controls
	b.controls = nil
	h := newHarness(config.RunnerConfig{}, b,
		&fakeResolver{answers: standardAnswers()},
		&fakeConfirmer{decision: workflow.DecisionProceed})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSucceeded, state)
	assert.Equal(t, "jane@example.com", b.filled["#email"])
}

func TestAttemptDryRunStopsAfterResolving(t *testing.T) {
	b := newFakeBrowser()
	h := newHarness(config.RunnerConfig{DryRun: true}, b,
		&fakeResolver{answers: standardAnswers()},
		&fakeConfirmer{decision: workflow.DecisionProceed})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSkipped, state)
	assert.Equal(t, "dry_run", h.recorder.reason)
	assert.Empty(t, b.filled)
	assert.False(t, h.confirmer.called)
	assert.NotEmpty(t, h.recorder.resolved, "resolution outcome is still audited")
}

func TestAttemptAutoProceedGuardsHighRisk(t *testing.T) {
	b := newFakeBrowser()
	b.controls = append(b.controls, extract.RawControl{
		Selector: "#auth", Tag: "select",
		LabelText: "Are you authorized to work in the US?",
		Options:   []string{"Yes", "No"}, Visible: true,
	})
	// #auth deliberately missing from the answer table: unresolved high risk.
	h := newHarness(config.RunnerConfig{AutoProceed: true}, b,
		&fakeResolver{answers: standardAnswers()}, nil)

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, state)
	assert.Equal(t, "unreviewed_high_risk", h.recorder.reason)
}

func TestAttemptAutoProceedCleanSubmits(t *testing.T) {
	h := newHarness(config.RunnerConfig{AutoProceed: true}, newFakeBrowser(),
		&fakeResolver{answers: standardAnswers()}, nil)

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSucceeded, state)
}

func TestAttemptUserSkipAndAbort(t *testing.T) {
	h := newHarness(config.RunnerConfig{}, newFakeBrowser(),
		&fakeResolver{answers: standardAnswers()},
		&fakeConfirmer{decision: workflow.DecisionSkip})
	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSkipped, state)
	assert.Equal(t, "user_skipped", h.recorder.reason)

	h = newHarness(config.RunnerConfig{}, newFakeBrowser(),
		&fakeResolver{answers: standardAnswers()},
		&fakeConfirmer{decision: workflow.DecisionAbort})
	state, _, err = h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateAborted, state)
	assert.Equal(t, "user_aborted", h.recorder.reason)
}

func TestAttemptManualSubmitDuringPrompt(t *testing.T) {
	h := newHarness(config.RunnerConfig{}, newFakeBrowser(),
		&fakeResolver{answers: standardAnswers()},
		&fakeConfirmer{decision: workflow.DecisionSubmitted})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSucceeded, state)
	assert.Equal(t, "manual_submit", h.recorder.reason)
	assert.Zero(t, h.browser.submitClicks, "the page already moved, nothing left to click")
}

func TestAttemptNoSubmitButtonFails(t *testing.T) {
	b := newFakeBrowser()
	b.submitFound = false
	h := newHarness(config.RunnerConfig{}, b,
		&fakeResolver{answers: standardAnswers()},
		&fakeConfirmer{decision: workflow.DecisionProceed})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, state)
	assert.Equal(t, "no_submit_button", h.recorder.reason)
}

func TestAttemptSubmitUnconfirmedFails(t *testing.T) {
	b := newFakeBrowser()
	b.urlChanges = false
	h := newHarness(config.RunnerConfig{}, b,
		&fakeResolver{answers: standardAnswers()},
		&fakeConfirmer{decision: workflow.DecisionProceed})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateFailed, state)
	assert.Equal(t, "submit_unconfirmed", h.recorder.reason)
}

func TestAttemptRescanFillsNewFields(t *testing.T) {
	b := newFakeBrowser()
	b.rescanAdd = []extract.RawControl{
		{Selector: "#visa", Tag: "select", LabelText: "Visa status", Options: []string{"H-1B", "None"}, Visible: true},
	}
	answers := standardAnswers()
	answers["#visa"] = schemas.ResolvedValue{Value: "None", Source: schemas.TierCustomAnswer, Risk: schemas.RiskHigh, Confidence: 0.8}
	h := newHarness(config.RunnerConfig{}, b, &fakeResolver{answers: answers},
		&fakeConfirmer{decision: workflow.DecisionProceed})

	state, _, err := h.attempt.Run(context.Background(), testJob)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateSucceeded, state)
	assert.Equal(t, "None", b.filled["#visa"])
	// The confirmation summary covers the late field too.
	require.Len(t, h.recorder.resolved, 3)
}

func TestAttemptContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := newHarness(config.RunnerConfig{}, newFakeBrowser(),
		&fakeResolver{answers: standardAnswers()}, &fakeConfirmer{})

	state, reason, err := h.attempt.Run(ctx, testJob)
	assert.Error(t, err)
	assert.Equal(t, workflow.StateAborted, state)
	assert.Equal(t, "operator_abort", reason)
	// The audited record must close out rather than stay running.
	assert.Equal(t, schemas.StatusAborted, h.recorder.status)
	assert.Equal(t, "operator_abort", h.recorder.reason)
}
