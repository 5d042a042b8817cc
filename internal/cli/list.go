package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/remotetask/pkg/model"
)

func newListCmd() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task attempts on a remotetask server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/tasks/"
			if state != "" {
				path += "?state=" + state
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			var data struct {
				Summary  model.AttemptSummary `json:"summary"`
				Attempts []model.Attempt      `json:"attempts"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(data.Attempts) == 0 {
				fmt.Fprintln(w, "No task attempts found.")
				return nil
			}

			fmt.Fprintf(w, "%-36s  %-11s  %-24s  %-12s  %s\n", "ID", "STATE", "JOB", "STATUS", "CREATED")
			fmt.Fprintf(w, "%-36s  %-11s  %-24s  %-12s  %s\n", "--", "-----", "---", "------", "-------")
			for _, a := range data.Attempts {
				fmt.Fprintf(w, "%-36s  %-11s  %-24s  %-12s  %s\n",
					a.ID, a.State, a.JobName, a.LastStatus, humanize.Time(a.CreatedAt))
			}
			s := data.Summary
			fmt.Fprintf(w, "\n%d total: %d active, %d succeeded, %d failed, %d killed\n",
				s.Total, s.Active, s.Succeeded, s.Failed, s.Killed)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Only show attempts in this state (e.g. POLLING, FAILED)")
	return cmd
}
