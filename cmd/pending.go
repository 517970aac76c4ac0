package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xenwave/formpilot/internal/profile"
)

// newPendingCmd manages the queue of unanswered screening questions.
func newPendingCmd() *cobra.Command {
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "Review screening questions no tier could answer",
	}
	pendingCmd.AddCommand(newPendingListCmd())
	pendingCmd.AddCommand(newPendingAnswerCmd())
	return pendingCmd
}

func newPendingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			pending, err := profile.LoadPending(cfg.Profile().PendingPath)
			if err != nil {
				return err
			}

			questions := pending.All()
			if len(questions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending questions.")
				return nil
			}
			for i, q := range questions {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d. %s\n", i+1, q.Question)
				if len(q.Options) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "     options: %s\n", strings.Join(q.Options, " | "))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "     first seen at %s\n", q.JobURL)
			}
			return nil
		},
	}
}

func newPendingAnswerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer <number> <answer>",
		Short: "Answer a queued question and add it to the answer bank",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			pending, err := profile.LoadPending(cfg.Profile().PendingPath)
			if err != nil {
				return err
			}
			answers, err := profile.LoadAnswers(cfg.Profile().CustomAnswersPath)
			if err != nil {
				return err
			}

			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("first argument must be a question number from 'pending list': %w", err)
			}
			questions := pending.All()
			if n < 1 || n > len(questions) {
				return fmt.Errorf("question number %d out of range, %d queued", n, len(questions))
			}

			question := questions[n-1].Question
			answer := strings.Join(args[1:], " ")
			if err := pending.Promote(question, answer, answers); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved. Future forms asking %q answer with %q.\n", question, answer)
			return nil
		},
	}
}
