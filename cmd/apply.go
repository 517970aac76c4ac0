package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/ats"
	"github.com/xenwave/formpilot/internal/audit"
	"github.com/xenwave/formpilot/internal/browser"
	"github.com/xenwave/formpilot/internal/confirm"
	"github.com/xenwave/formpilot/internal/extract"
	"github.com/xenwave/formpilot/internal/jobs"
	"github.com/xenwave/formpilot/internal/llmclient"
	"github.com/xenwave/formpilot/internal/observability"
	"github.com/xenwave/formpilot/internal/profile"
	"github.com/xenwave/formpilot/internal/resolve"
	"github.com/xenwave/formpilot/internal/workflow"
)

// newApplyCmd creates and configures the `apply` command.
func newApplyCmd() *cobra.Command {
	var (
		jobsFile    string
		fromDir     string
		auto        bool
		dryRun      bool
		devtoolsURL string
	)

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Works a job queue: detect, fill, confirm, submit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if auto {
				cfg.SetRunnerAutoProceed(true)
			}
			if dryRun {
				cfg.SetRunnerDryRun(true)
			}
			if devtoolsURL != "" {
				cfg.SetBrowserDevToolsURL(devtoolsURL)
			}

			if (jobsFile == "") == (fromDir == "") {
				return errors.New("exactly one of --jobs or --from-dir is required")
			}

			// 1. Applicant data
			prof, err := profile.Load(cfg.Profile().Path)
			if err != nil {
				return fmt.Errorf("failed to load profile: %w", err)
			}
			answers, err := profile.LoadAnswers(cfg.Profile().CustomAnswersPath)
			if err != nil {
				return fmt.Errorf("failed to load custom answers: %w", err)
			}
			pending, err := profile.LoadPending(cfg.Profile().PendingPath)
			if err != nil {
				return fmt.Errorf("failed to load pending questions: %w", err)
			}

			// 2. Model fallback tier, optional
			var answerer resolve.Answerer
			if cfg.LLM().Enabled && cfg.LLM().APIKey != "" {
				client, err := llmclient.NewGeminiClient(cfg.LLM(), logger)
				if err != nil {
					return fmt.Errorf("failed to initialize model client: %w", err)
				}
				answerer = client
			} else {
				logger.Info("Model tier disabled, custom questions will queue for review")
			}

			resolver := resolve.New(cfg.Resolver(), prof, answers, pending, answerer, logger)

			// 3. Audit trail
			auditor, err := audit.New(cfg.Audit(), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize session audit: %w", err)
			}
			defer func() {
				if err := auditor.Close(); err != nil {
					logger.Warn("Failed to finalize session record", zap.Error(err))
				}
			}()

			// 4. Browser session
			session, err := browser.NewSession(ctx, cfg.Browser(), cfg.Network(), logger)
			if err != nil {
				return fmt.Errorf("failed to attach to browser: %w", err)
			}
			defer session.Close()

			// 5. Confirmation gate
			var confirmer workflow.Confirmer
			if !cfg.Runner().AutoProceed {
				prompter := confirm.NewPrompter(os.Stdin, os.Stdout, logger)
				prompter.WatchURL(session, 2*time.Second)
				confirmer = prompter
			}

			attempt := workflow.NewAttempt(cfg.Runner(), session,
				ats.NewDetector(logger), extract.NewExtractor(logger),
				resolver, confirmer, auditor, logger)
			runner := workflow.NewRunner(cfg.Runner(), attempt, logger)

			// 6. Run the queue
			var results map[string]workflow.State
			if fromDir != "" {
				batches, err := jobs.LoadDir(fromDir)
				if err != nil {
					return fmt.Errorf("failed to load job directory: %w", err)
				}
				results, err = runner.RunCompanies(ctx, batches)
				if err != nil && !errors.Is(err, workflow.ErrRunAborted) {
					return err
				}
			} else {
				queue, err := jobs.LoadFile(jobsFile)
				if err != nil {
					return fmt.Errorf("failed to load job file: %w", err)
				}
				results, err = runner.RunQueue(ctx, queue)
				if err != nil && !errors.Is(err, workflow.ErrRunAborted) {
					return err
				}
			}

			printSessionSummary(cmd.OutOrStdout(), auditor, len(results))
			return nil
		},
	}

	applyCmd.Flags().StringVar(&jobsFile, "jobs", "", "JSON file with job posting URLs")
	applyCmd.Flags().StringVar(&fromDir, "from-dir", "", "Directory of per-company job files")
	applyCmd.Flags().BoolVar(&auto, "auto", false, "Submit without the interactive confirmation prompt")
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and report without touching the page")
	applyCmd.Flags().StringVar(&devtoolsURL, "devtools-url", "", "DevTools websocket URL of a running browser (overrides config)")
	return applyCmd
}

func printSessionSummary(w io.Writer, auditor *audit.Auditor, attempted int) {
	record := auditor.Record()
	tally := record.Tally()

	fmt.Fprintf(w, "\nSession %s complete. Attempted %d job(s).\n", auditor.SessionID(), attempted)
	for _, status := range []schemas.AttemptStatus{
		schemas.StatusSucceeded, schemas.StatusSkipped, schemas.StatusFailed, schemas.StatusAborted,
	} {
		if n := tally[status]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", status, n)
		}
	}
	fmt.Fprintf(w, "Audit trail: %s\n", auditor.SessionDir())
}
