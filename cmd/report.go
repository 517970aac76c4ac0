package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/xenwave/formpilot/api/schemas"
	"github.com/xenwave/formpilot/internal/audit"
)

// newReportCmd creates the `report` command, which prints a saved session
// record without opening a browser.
func newReportCmd() *cobra.Command {
	var sessionDir string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print the outcome of a recorded session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			dir := sessionDir
			if dir == "" {
				dir, err = latestSessionDir(cfg.Audit().Dir)
				if err != nil {
					return err
				}
			}

			record, err := audit.LoadRecord(dir)
			if err != nil {
				return fmt.Errorf("failed to load session record: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s (%d attempt(s))\n\n", record.SessionID, len(record.Attempts))
			for _, attempt := range record.Attempts {
				fmt.Fprintf(out, "%-9s %s\n", attempt.Status, attempt.Job.URL)
				if attempt.Detection.Known() {
					fmt.Fprintf(out, "          platform: %s\n", attempt.Detection.Platform)
				}
				if attempt.Reason != "" {
					fmt.Fprintf(out, "          reason: %s\n", attempt.Reason)
				}
			}

			tally := record.Tally()
			fmt.Fprintln(out)
			for _, status := range []schemas.AttemptStatus{
				schemas.StatusSucceeded, schemas.StatusSkipped, schemas.StatusFailed, schemas.StatusAborted,
			} {
				if n := tally[status]; n > 0 {
					fmt.Fprintf(out, "  %-10s %d\n", status, n)
				}
			}
			return nil
		},
	}

	reportCmd.Flags().StringVar(&sessionDir, "session", "", "Session directory to report on (default is the most recent)")
	return reportCmd
}

// latestSessionDir picks the newest session under the audit root. Directory
// names start with a timestamp, so lexical order is chronological.
func latestSessionDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("failed to read audit directory %s: %w", root, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("no recorded sessions under %s", root)
	}
	sort.Strings(dirs)
	return filepath.Join(root, dirs[len(dirs)-1]), nil
}
