package workflow

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/config"
	"github.com/xenwave/formpilot/internal/jobs"
)

// ErrRunAborted reports that the operator stopped the run at the
// confirmation gate. Results gathered so far are still returned.
var ErrRunAborted = errors.New("run aborted by operator")

// Runner works a job queue sequentially with polite pacing between
// submissions. An operator abort stops the whole queue; a page that aborts
// on its own costs only that job.
type Runner struct {
	cfg          config.RunnerConfig
	attempt      *Attempt
	jobLimiter   *rate.Limiter
	companyLimit *rate.Limiter
	logger       *zap.Logger
}

// NewRunner creates a Runner around a wired Attempt.
func NewRunner(cfg config.RunnerConfig, attempt *Attempt, logger *zap.Logger) *Runner {
	jobEvery := rate.Inf
	if cfg.JobDelay > 0 {
		jobEvery = rate.Every(cfg.JobDelay)
	}
	companyEvery := rate.Inf
	if cfg.CompanyDelay > 0 {
		companyEvery = rate.Every(cfg.CompanyDelay)
	}
	return &Runner{
		cfg:          cfg,
		attempt:      attempt,
		jobLimiter:   rate.NewLimiter(jobEvery, 1),
		companyLimit: rate.NewLimiter(companyEvery, 1),
		logger:       logger.Named("runner"),
	}
}

// RunQueue applies to each job in order. It returns the terminal state per
// job by ID and stops early only on operator abort or context cancellation;
// a page-level abort moves on to the next job.
func (r *Runner) RunQueue(ctx context.Context, queue []schemas.JobTarget) (map[string]State, error) {
	results := make(map[string]State, len(queue))
	for i, job := range queue {
		if i > 0 {
			if err := r.jobLimiter.Wait(ctx); err != nil {
				return results, err
			}
		}

		state, reason, err := r.attempt.Run(ctx, job)
		if state != "" {
			results[job.ID] = state
		}
		if err != nil {
			return results, err
		}

		if state == StateAborted {
			if reason == reasonUserAborted {
				r.logger.Warn("Run aborted by operator",
					zap.String("url", job.URL),
					zap.Int("remaining", len(queue)-i-1))
				return results, ErrRunAborted
			}
			r.logger.Warn("Attempt aborted, moving on",
				zap.String("url", job.URL),
				zap.String("reason", reason))
		}
	}
	return results, nil
}

// RunCompanies works per-company batches with the longer company delay
// between batches on top of the per-job delay within them.
func (r *Runner) RunCompanies(ctx context.Context, batches []jobs.CompanyBatch) (map[string]State, error) {
	results := make(map[string]State)
	for i, batch := range batches {
		if i > 0 {
			if err := r.companyLimit.Wait(ctx); err != nil {
				return results, err
			}
		}
		r.logger.Info("Starting company batch",
			zap.String("company", batch.Company),
			zap.Int("jobs", len(batch.Jobs)))

		batchResults, err := r.RunQueue(ctx, batch.Jobs)
		for id, state := range batchResults {
			results[id] = state
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
