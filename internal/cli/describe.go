package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/remotetask/internal/connection"
	"github.com/me/remotetask/pkg/model"
)

func newDescribeCmd() *cobra.Command {
	var connName string

	cmd := &cobra.Command{
		Use:   "describe <handle>",
		Short: "Show the status of a remote execution",
		Long: `Inspects an execution by its handle (for SageMaker the pipeline
execution ARN). Hosts use this to resume tracking after a restart.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, conn, err := openGateway(cmd.Context(), connName)
			if err != nil {
				return err
			}
			st, err := gw.Inspect(cmd.Context(), model.ExecutionHandle(args[0]))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Execution: %s\n", args[0])
			fmt.Fprintf(w, "  Connection: %s\n", connection.Describe(conn))
			fmt.Fprintf(w, "  Status:     %s (%s)\n", st.Raw, st.Class)
			if st.Reason != "" {
				fmt.Fprintf(w, "  Reason:     %s\n", st.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&connName, "connection", "", "Stored connection name")
	cmd.MarkFlagRequired("connection")
	return cmd
}

func newStopCmd() *cobra.Command {
	var connName string

	cmd := &cobra.Command{
		Use:   "stop <handle>",
		Short: "Stop a remote execution",
		Long:  `Stops an execution by its handle. Stopping a finished execution succeeds without effect.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, _, err := openGateway(cmd.Context(), connName)
			if err != nil {
				return err
			}
			if err := gw.Stop(cmd.Context(), model.ExecutionHandle(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&connName, "connection", "", "Stored connection name")
	cmd.MarkFlagRequired("connection")
	return cmd
}
