package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/config"
	"github.com/xenwave/formpilot/internal/extract"
)

// Browser is the driving surface the attempt needs from a page session.
// *browser.Session satisfies it.
type Browser interface {
	Navigate(url string) error
	CurrentURL() (string, error)
	OuterHTML() (string, error)
	CollectControls() ([]extract.RawControl, error)
	HasBlockingChallenge() (bool, error)
	SetValue(field schemas.FieldCandidate, value string) error
	SetFiles(field schemas.FieldCandidate, paths []string) error
	ClickButton(role string) (bool, error)
	WaitURLChange(prev string, timeout time.Duration) (bool, error)
	Screenshot() ([]byte, error)
}

// Detector classifies job pages. *ats.Detector satisfies it.
type Detector interface {
	Detect(pageURL, html string) schemas.DetectionResult
}

// Extractor classifies harvested controls. *extract.Extractor satisfies it.
type Extractor interface {
	ClassifyAll(raws []extract.RawControl) []schemas.FieldCandidate
	MergeRescan(existing, fresh []schemas.FieldCandidate) (merged, added []schemas.FieldCandidate)
}

// FieldResolver runs candidates through the answer tiers. *resolve.Resolver
// satisfies it.
type FieldResolver interface {
	ResolveAll(ctx context.Context, cands []schemas.FieldCandidate, job schemas.JobTarget) ([]schemas.ResolvedValue, error)
}

// Decision is the user's verdict at the confirmation gate.
type Decision int

const (
	DecisionProceed Decision = iota
	DecisionSkip
	DecisionAbort
	// DecisionSubmitted reports that the user drove the page past the form
	// themselves while the prompt was open.
	DecisionSubmitted
)

// Abort reasons that mean the operator stopped the run, as opposed to the
// page failing on its own.
const (
	reasonUserAborted   = "user_aborted"
	reasonOperatorAbort = "operator_abort"
)

// Summary is what the confirmation gate shows the user before submission.
type Summary struct {
	Job        schemas.JobTarget
	Detection  schemas.DetectionResult
	Resolved   []schemas.ResolvedValue
	Unresolved []schemas.ResolvedValue
	HighRisk   []schemas.ResolvedValue
}

// Confirmer presents the summary and collects the user's decision.
type Confirmer interface {
	Confirm(ctx context.Context, s Summary) (Decision, error)
}

// Recorder is the slice of the session auditor the attempt writes through.
type Recorder interface {
	BeginAttempt(job schemas.JobTarget)
	SetDetection(d schemas.DetectionResult)
	SetResolved(resolved []schemas.ResolvedValue)
	Event(state, message string)
	FinishAttempt(status schemas.AttemptStatus, reason string)
	SaveScreenshot(checkpoint string, png []byte)
}

// Attempt drives one job through the state machine.
type Attempt struct {
	cfg       config.RunnerConfig
	browser   Browser
	detector  Detector
	extractor Extractor
	resolver  FieldResolver
	confirmer Confirmer
	recorder  Recorder
	logger    *zap.Logger

	// submitWait bounds how long we watch for the post-submit URL change.
	submitWait time.Duration
	// rescanWait is the pause before re-harvesting an apparently empty page.
	rescanWait time.Duration
}

// NewAttempt wires an attempt. confirmer may be nil only when
// cfg.AutoProceed is set.
func NewAttempt(cfg config.RunnerConfig, b Browser, d Detector, e Extractor, r FieldResolver, c Confirmer, rec Recorder, logger *zap.Logger) *Attempt {
	return &Attempt{
		cfg:        cfg,
		browser:    b,
		detector:   d,
		extractor:  e,
		resolver:   r,
		confirmer:  c,
		recorder:   rec,
		logger:     logger.Named("attempt"),
		submitWait: 15 * time.Second,
		rescanWait: 2 * time.Second,
	}
}

// Run executes the attempt and returns the terminal state and its reason.
// The returned error is non-nil only for context cancellation or machine
// bugs; page level failures land in the terminal state and the audit trail.
func (a *Attempt) Run(ctx context.Context, job schemas.JobTarget) (State, string, error) {
	m := NewMachine(a.logger)
	a.recorder.BeginAttempt(job)

	state, reason, err := a.drive(ctx, m, job)
	if err != nil {
		if ctx.Err() != nil {
			// An operator abort must not leave the record open as running.
			a.recorder.FinishAttempt(schemas.StatusAborted, reasonOperatorAbort)
			return StateAborted, reasonOperatorAbort, err
		}
		return state, reason, err
	}
	a.recorder.FinishAttempt(state.Status(), reason)
	a.logger.Info("Attempt finished",
		zap.String("url", job.URL),
		zap.String("state", string(state)),
		zap.String("reason", reason))
	return state, reason, nil
}

func (a *Attempt) drive(ctx context.Context, m *Machine, job schemas.JobTarget) (State, string, error) {
	// -- NAVIGATING --
	if err := a.withRetry(ctx, "navigate", func() error { return a.browser.Navigate(job.URL) }); err != nil {
		return a.finish(m, StateFailed, "navigation_failed: "+err.Error())
	}
	a.snap(schemas.ShotInitial)

	// -- DETECTING --
	if err := m.Transition(StateDetecting); err != nil {
		return StateFailed, "", err
	}
	if blocked := a.challengeBlocked(); blocked {
		return a.finish(m, StateAborted, "blocking_challenge")
	}
	html, err := a.browser.OuterHTML()
	if err != nil {
		return a.finish(m, StateFailed, "snapshot_failed: "+err.Error())
	}
	detection := a.detector.Detect(job.URL, html)
	a.recorder.SetDetection(detection)
	a.recorder.Event(string(StateDetecting), fmt.Sprintf("platform=%s confidence=%.2f", detection.Platform, detection.Confidence))

	// Posting pages often hide the form behind an apply button.
	if clicked, err := a.browser.ClickButton("apply"); err == nil && clicked {
		time.Sleep(1 * time.Second)
		a.snap(schemas.ShotAfterApplyClick)
	}

	// -- EXTRACTING --
	if err := m.Transition(StateExtracting); err != nil {
		return StateFailed, "", err
	}
	var candidates []schemas.FieldCandidate
	collect := func() error {
		raws, err := a.browser.CollectControls()
		if err != nil {
			return err
		}
		candidates = a.extractor.ClassifyAll(raws)
		return nil
	}
	if err := a.withRetry(ctx, "extract", collect); err != nil {
		return a.finish(m, StateFailed, "extraction_failed: "+err.Error())
	}
	if len(candidates) == 0 {
		// Slow-rendering forms get one more pass before the page is
		// declared empty.
		time.Sleep(a.rescanWait)
		if err := collect(); err != nil {
			return a.finish(m, StateFailed, "extraction_failed: "+err.Error())
		}
	}
	if len(candidates) == 0 {
		if a.challengeBlocked() {
			return a.finish(m, StateAborted, "blocking_challenge")
		}
		return a.finish(m, StateAborted, "no_form_fields")
	}
	a.recorder.Event(string(StateExtracting), fmt.Sprintf("candidates=%d", len(candidates)))

	// -- RESOLVING --
	if err := m.Transition(StateResolving); err != nil {
		return StateFailed, "", err
	}
	resolved, err := a.resolver.ResolveAll(ctx, candidates, job)
	if err != nil {
		return StateFailed, "", err
	}
	a.recorder.SetResolved(resolved)
	a.recorder.Event(string(StateResolving), fmt.Sprintf("resolved=%d unresolved=%d", countResolved(resolved), len(resolved)-countResolved(resolved)))

	if a.cfg.DryRun {
		return a.finish(m, StateSkipped, "dry_run")
	}

	// -- FILLING --
	if err := m.Transition(StateFilling); err != nil {
		return StateFailed, "", err
	}
	if err := a.fill(resolved); err != nil {
		return a.finish(m, StateFailed, "fill_failed: "+err.Error())
	}
	a.snap(schemas.ShotAfterFill)

	// -- RESCANNING --
	if err := m.Transition(StateRescanning); err != nil {
		return StateFailed, "", err
	}
	resolved, err = a.rescan(ctx, candidates, resolved, job)
	if err != nil {
		return a.finish(m, StateFailed, "rescan_failed: "+err.Error())
	}
	a.recorder.SetResolved(resolved)

	// -- AWAITING_CONFIRMATION --
	if err := m.Transition(StateAwaiting); err != nil {
		return StateFailed, "", err
	}
	a.snap(schemas.ShotPreSubmit)
	summary := buildSummary(job, resolved)
	summary.Detection = detection

	if a.cfg.AutoProceed {
		// Submitting over an unreviewed high-risk gap is the one thing
		// auto mode is never allowed to do.
		if hasUnresolvedHighRisk(resolved) {
			return a.finish(m, StateFailed, "unreviewed_high_risk")
		}
	} else {
		decision, err := a.confirmer.Confirm(ctx, summary)
		if err != nil {
			return StateFailed, "", err
		}
		switch decision {
		case DecisionSkip:
			return a.finish(m, StateSkipped, "user_skipped")
		case DecisionAbort:
			return a.finish(m, StateAborted, reasonUserAborted)
		case DecisionSubmitted:
			if err := m.Transition(StateSubmitting); err != nil {
				return StateFailed, "", err
			}
			a.snap(schemas.ShotAfterSubmit)
			return a.finish(m, StateSucceeded, "manual_submit")
		}
	}

	// -- SUBMITTING --
	if err := m.Transition(StateSubmitting); err != nil {
		return StateFailed, "", err
	}
	prevURL, err := a.browser.CurrentURL()
	if err != nil {
		return a.finish(m, StateFailed, "submit_failed: "+err.Error())
	}
	var clicked bool
	if err := a.withRetry(ctx, "submit", func() error {
		var cerr error
		clicked, cerr = a.browser.ClickButton("submit")
		return cerr
	}); err != nil {
		return a.finish(m, StateFailed, "submit_failed: "+err.Error())
	}
	if !clicked {
		return a.finish(m, StateFailed, "no_submit_button")
	}

	changed, err := a.browser.WaitURLChange(prevURL, a.submitWait)
	if err != nil {
		return a.finish(m, StateFailed, "submit_failed: "+err.Error())
	}
	a.snap(schemas.ShotAfterSubmit)
	if !changed {
		if a.challengeBlocked() {
			return a.finish(m, StateAborted, "blocking_challenge")
		}
		return a.finish(m, StateFailed, "submit_unconfirmed")
	}
	return a.finish(m, StateSucceeded, "")
}

// finish transitions into a terminal state, recording the event.
func (a *Attempt) finish(m *Machine, to State, reason string) (State, string, error) {
	if err := m.Transition(to); err != nil {
		return StateFailed, reason, err
	}
	a.recorder.Event(string(to), reason)
	return to, reason, nil
}

// withRetry runs a step, retrying exactly once when the failure is
// transient. Context cancellation stops everything.
func (a *Attempt) withRetry(ctx context.Context, step string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !schemas.Retryable(err) {
		return err
	}
	a.logger.Warn("Transient failure, retrying once", zap.String("step", step), zap.Error(err))
	if err := fn(); err != nil {
		return err
	}
	return nil
}

// fill applies resolved values in order, skipping unresolved fields. A
// single stale selector does not sink the attempt, but a page where nothing
// fills is a structural failure.
func (a *Attempt) fill(resolved []schemas.ResolvedValue) error {
	applied, failed := 0, 0
	for _, rv := range resolved {
		if !rv.Resolved() {
			continue
		}
		var err error
		if rv.Field.Control == schemas.ControlFile {
			err = a.browser.SetFiles(rv.Field, []string{rv.Value})
		} else {
			err = a.browser.SetValue(rv.Field, rv.Value)
		}
		if err != nil {
			failed++
			a.logger.Warn("Failed to fill field",
				zap.String("selector", rv.Field.Selector),
				zap.String("type", string(rv.Field.Type)),
				zap.Error(err))
			continue
		}
		applied++
	}
	a.recorder.Event(string(StateFilling), fmt.Sprintf("applied=%d failed=%d", applied, failed))
	if applied == 0 && failed > 0 {
		return fmt.Errorf("%w: no field accepted a value", schemas.ErrStructural)
	}
	return nil
}

// rescan re-harvests the form, resolves any fields that appeared after
// filling, fills them, and returns the combined resolution set.
func (a *Attempt) rescan(ctx context.Context, candidates []schemas.FieldCandidate, resolved []schemas.ResolvedValue, job schemas.JobTarget) ([]schemas.ResolvedValue, error) {
	raws, err := a.browser.CollectControls()
	if err != nil {
		return nil, err
	}
	fresh := a.extractor.ClassifyAll(raws)
	_, added := a.extractor.MergeRescan(candidates, fresh)
	if len(added) == 0 {
		return resolved, nil
	}

	a.recorder.Event(string(StateRescanning), fmt.Sprintf("new_fields=%d", len(added)))
	newResolved, err := a.resolver.ResolveAll(ctx, added, job)
	if err != nil {
		return nil, err
	}
	if err := a.fill(newResolved); err != nil {
		return nil, err
	}
	return append(resolved, newResolved...), nil
}

func (a *Attempt) challengeBlocked() bool {
	blocked, err := a.browser.HasBlockingChallenge()
	if err != nil {
		a.logger.Debug("Challenge probe failed", zap.Error(err))
		return false
	}
	return blocked
}

func (a *Attempt) snap(checkpoint string) {
	png, err := a.browser.Screenshot()
	if err != nil {
		a.logger.Debug("Screenshot failed", zap.String("checkpoint", checkpoint), zap.Error(err))
		return
	}
	a.recorder.SaveScreenshot(checkpoint, png)
}

func buildSummary(job schemas.JobTarget, resolved []schemas.ResolvedValue) Summary {
	s := Summary{Job: job, Resolved: resolved}
	for _, rv := range resolved {
		if !rv.Resolved() {
			s.Unresolved = append(s.Unresolved, rv)
		}
		if rv.Risk == schemas.RiskHigh {
			s.HighRisk = append(s.HighRisk, rv)
		}
	}
	return s
}

func hasUnresolvedHighRisk(resolved []schemas.ResolvedValue) bool {
	for _, rv := range resolved {
		if rv.Risk == schemas.RiskHigh && !rv.Resolved() {
			return true
		}
	}
	return false
}

func countResolved(resolved []schemas.ResolvedValue) int {
	n := 0
	for _, rv := range resolved {
		if rv.Resolved() {
			n++
		}
	}
	return n
}
