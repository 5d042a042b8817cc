package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <attempt_id>",
		Short: "Cancel a running task attempt",
		Long:  `Cancels a task attempt on a remotetask server. The attempt stops its remote execution and finishes as KILLED.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, err := client.Put("/api/v1/tasks/" + id + "/cancel"); err != nil {
				return fmt.Errorf("cancel task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task attempt %s: cancel requested\n", id)
			return nil
		},
	}
}
