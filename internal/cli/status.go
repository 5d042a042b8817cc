package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/remotetask/pkg/model"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <attempt_id>",
		Short: "Check the status of a task attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getAttempt(args[0])
			if err != nil {
				return err
			}
			printAttempt(cmd.OutOrStdout(), a)
			return nil
		},
	}
}

func printAttempt(w io.Writer, a *model.Attempt) {
	fmt.Fprintf(w, "Task attempt: %s\n", a.ID)
	fmt.Fprintf(w, "  Job:      %s (%s)\n", a.JobName, a.Service)
	fmt.Fprintf(w, "  State:    %s\n", a.State)
	if a.Handle != "" {
		fmt.Fprintf(w, "  Handle:   %s\n", a.Handle)
	}
	if a.LastStatus != "" {
		fmt.Fprintf(w, "  Status:   %s\n", a.LastStatus)
	}
	if a.Outcome != model.OutcomeNone {
		exit := "-"
		if a.ExitCode != nil {
			exit = fmt.Sprint(*a.ExitCode)
		}
		fmt.Fprintf(w, "  Outcome:  %s (exit %s)\n", a.Outcome, exit)
	}
	if a.Error != "" {
		fmt.Fprintf(w, "  Error:    %s: %s\n", a.ErrorKind, a.Error)
	}
	fmt.Fprintf(w, "  Created:  %s\n", humanize.Time(a.CreatedAt))
	if a.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed: %s (took %s)\n", humanize.Time(*a.CompletedAt),
			a.CompletedAt.Sub(a.CreatedAt).Round(time.Second))
	}
}
