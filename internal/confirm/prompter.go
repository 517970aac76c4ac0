package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/workflow"
)

// URLWatcher reports the page's current location while the prompt waits.
// *browser.Session satisfies it.
type URLWatcher interface {
	CurrentURL() (string, error)
}

// Prompter is the interactive confirmation gate. It renders the resolution
// summary to the terminal and reads the user's verdict from stdin. With a
// URL watcher attached, a page transition while the prompt is open counts
// as the user submitting by hand.
type Prompter struct {
	in        *bufio.Reader
	out       io.Writer
	logger    *zap.Logger
	watcher   URLWatcher
	pollEvery time.Duration
}

// NewPrompter creates a Prompter over the given streams.
func NewPrompter(in io.Reader, out io.Writer, logger *zap.Logger) *Prompter {
	return &Prompter{
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger.Named("confirm"),
	}
}

// WatchURL attaches a page watcher polled at the given interval.
func (p *Prompter) WatchURL(w URLWatcher, every time.Duration) {
	p.watcher = w
	p.pollEvery = every
}

// Confirm prints the summary and blocks for a decision. High risk values
// are always surfaced, filled or not, so nothing legally weighty slips
// through unread. EOF on the input aborts the session.
func (p *Prompter) Confirm(ctx context.Context, s workflow.Summary) (workflow.Decision, error) {
	p.render(s)

	if p.watcher == nil {
		return p.promptLoop(ctx)
	}
	baseline, err := p.watcher.CurrentURL()
	if err != nil {
		p.logger.Debug("URL watch disabled for this prompt", zap.Error(err))
		return p.promptLoop(ctx)
	}

	type verdict struct {
		decision workflow.Decision
		err      error
	}
	verdicts := make(chan verdict, 1)
	go func() {
		d, err := p.promptLoop(ctx)
		verdicts <- verdict{d, err}
	}()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case v := <-verdicts:
			return v.decision, v.err
		case <-ticker.C:
			current, err := p.watcher.CurrentURL()
			if err != nil || current == baseline {
				continue
			}
			fmt.Fprintln(p.out, "\nPage moved on; treating that as a manual submission.")
			p.logger.Info("Page transition during prompt",
				zap.String("from", baseline),
				zap.String("to", current))
			return workflow.DecisionSubmitted, nil
		case <-ctx.Done():
			return workflow.DecisionAbort, ctx.Err()
		}
	}
}

func (p *Prompter) promptLoop(ctx context.Context) (workflow.Decision, error) {
	for {
		if err := ctx.Err(); err != nil {
			return workflow.DecisionAbort, err
		}
		fmt.Fprint(p.out, "Submit this application? [y]es / [s]kip / [a]bort: ")
		line, err := p.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				p.logger.Warn("Input closed, aborting session")
				return workflow.DecisionAbort, nil
			}
			return workflow.DecisionAbort, fmt.Errorf("read decision: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return workflow.DecisionProceed, nil
		case "s", "skip", "n", "no":
			return workflow.DecisionSkip, nil
		case "a", "abort", "q", "quit":
			return workflow.DecisionAbort, nil
		default:
			fmt.Fprintln(p.out, "Please answer y, s, or a.")
		}
	}
}

func (p *Prompter) render(s workflow.Summary) {
	fmt.Fprintf(p.out, "\n=== %s", s.Job.URL)
	if s.Job.Company != "" {
		fmt.Fprintf(p.out, " (%s)", s.Job.Company)
	}
	fmt.Fprintln(p.out, " ===")
	if s.Detection.Known() {
		fmt.Fprintf(p.out, "Platform: %s (%.0f%%)\n", s.Detection.Platform, s.Detection.Confidence*100)
	}

	fmt.Fprintln(p.out, "\nFilled fields:")
	for _, rv := range s.Resolved {
		if !rv.Resolved() {
			continue
		}
		marker := " "
		if rv.Risk == schemas.RiskHigh {
			marker = "!"
		}
		fmt.Fprintf(p.out, "  %s %-24s %-14s %s\n", marker, truncate(rv.Field.Label, 24), rv.Source, truncate(rv.Value, 60))
	}

	if len(s.HighRisk) > 0 {
		fmt.Fprintln(p.out, "\nHigh-risk fields (review carefully):")
		for _, rv := range s.HighRisk {
			value := rv.Value
			if !rv.Resolved() {
				value = "<unresolved>"
			}
			fmt.Fprintf(p.out, "  ! %-24s %s\n", truncate(rv.Field.Label, 24), value)
		}
	}

	if len(s.Unresolved) > 0 {
		fmt.Fprintln(p.out, "\nLeft blank (no answer found):")
		for _, rv := range s.Unresolved {
			fmt.Fprintf(p.out, "  - %s\n", rv.Field.Label)
		}
	}
	fmt.Fprintln(p.out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
