package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/remotetask/pkg/model"
)

func newSubmitCmd() *cobra.Command {
	var paramsFile string
	var wait bool
	var pollEvery time.Duration

	cmd := &cobra.Command{
		Use:   "submit -f <params.json>",
		Short: "Start a task attempt on a remotetask server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := readBlob(cmd.InOrStdin(), paramsFile)
			if err != nil {
				return err
			}

			resp, err := client.PostRaw("/api/v1/tasks/", blob)
			if err != nil {
				return fmt.Errorf("start task: %w", err)
			}
			var attempt model.Attempt
			if err := json.Unmarshal(resp.Data, &attempt); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Task attempt started: %s\n", attempt.ID)
			if !wait {
				return nil
			}

			for !attempt.State.IsTerminal() {
				time.Sleep(pollEvery)
				a, err := getAttempt(attempt.ID)
				if err != nil {
					return err
				}
				if a.State != attempt.State || a.LastStatus != attempt.LastStatus {
					fmt.Fprintf(w, "  %s %s\n", a.State, a.LastStatus)
				}
				attempt = *a
			}

			printAttempt(w, &attempt)
			if attempt.ExitCode != nil && *attempt.ExitCode != 0 {
				return &ExitError{Code: *attempt.ExitCode}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&paramsFile, "file", "f", "", "Parameter blob (JSON), or - for stdin")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the attempt to finish; exit with its exit code")
	cmd.Flags().DurationVar(&pollEvery, "poll", 5*time.Second, "Status poll interval when waiting")
	cmd.MarkFlagRequired("file")
	return cmd
}

func getAttempt(id string) (*model.Attempt, error) {
	resp, err := client.Get("/api/v1/tasks/" + id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	var a model.Attempt
	if err := json.Unmarshal(resp.Data, &a); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &a, nil
}
