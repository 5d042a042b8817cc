package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/remotetask/internal/connection"
	"github.com/me/remotetask/internal/gateway"
	"github.com/me/remotetask/pkg/model"
)

func newConnectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connection",
		Aliases: []string{"conn"},
		Short:   "Manage stored connections",
	}
	cmd.AddCommand(
		newConnectionAddCmd(),
		newConnectionListCmd(),
		newConnectionRmCmd(),
		newConnectionTestCmd(),
	)
	return cmd
}

func newConnectionAddCmd() *cobra.Command {
	var conn model.Connection
	var service string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace a stored connection",
		Long: `Stores the credentials a task needs to reach a remote service.
For sagemaker the principal is the access key id and the secret the secret
access key; for appservice the secret is the auth token. The secret may also
be given in REMOTETASK_SECRET.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn.Name = args[0]
			conn.Service = model.ServiceType(service)
			if conn.Secret == "" {
				conn.Secret = os.Getenv("REMOTETASK_SECRET")
			}

			// Resolving the connection inline applies the same rules a task does.
			ref := model.ConnectionRef{
				Principal: conn.Principal,
				Secret:    conn.Secret,
				Region:    conn.Region,
				Endpoint:  conn.Endpoint,
				Service:   conn.Service,
			}
			if conn.Service != model.ServiceSageMaker && conn.Service != model.ServiceAppService {
				return fmt.Errorf("unsupported service %q", service)
			}
			if _, err := connection.NewStoreResolver(nil, logger).Resolve(cmd.Context(), ref); err != nil {
				return err
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.PutConnection(cmd.Context(), &conn); err != nil {
				return fmt.Errorf("save connection: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connection %s saved.\n", connection.Describe(conn))
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", string(model.ServiceSageMaker), "Service type: sagemaker or appservice")
	cmd.Flags().StringVar(&conn.Principal, "principal", "", "Access key id (sagemaker) or user name (appservice)")
	cmd.Flags().StringVar(&conn.Secret, "secret", "", "Secret access key or token (or REMOTETASK_SECRET env)")
	cmd.Flags().StringVar(&conn.Region, "region", "", "AWS region (sagemaker)")
	cmd.Flags().StringVar(&conn.Endpoint, "endpoint", "", "Service endpoint URL (required for appservice)")
	return cmd
}

func newConnectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			conns, err := st.ListConnections(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(conns) == 0 {
				fmt.Fprintln(w, "No connections found.")
				return nil
			}

			fmt.Fprintf(w, "%-20s  %-10s  %-22s  %-30s  %s\n", "NAME", "SERVICE", "PRINCIPAL", "REGION/ENDPOINT", "UPDATED")
			fmt.Fprintf(w, "%-20s  %-10s  %-22s  %-30s  %s\n", "----", "-------", "---------", "---------------", "-------")
			for _, c := range conns {
				where := c.Region
				if c.Endpoint != "" {
					where = strings.TrimSpace(where + " " + c.Endpoint)
				}
				fmt.Fprintf(w, "%-20s  %-10s  %-22s  %-30s  %s\n",
					c.Name, c.Service, c.Principal, where, humanize.Time(c.UpdatedAt))
			}
			return nil
		},
	}
}

func newConnectionRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a stored connection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			deleted, err := st.DeleteConnection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("connection %q does not exist", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connection %s removed.\n", args[0])
			return nil
		},
	}
}

func newConnectionTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Check that a stored connection's credentials are accepted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			stored, err := st.GetConnection(ctx, args[0])
			if err != nil {
				return err
			}
			if stored == nil {
				return fmt.Errorf("connection %q does not exist", args[0])
			}
			conn, err := connection.NewStoreResolver(st, logger).Resolve(ctx,
				model.ConnectionRef{Name: stored.Name, Service: stored.Service})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch conn.Service {
			case model.ServiceSageMaker:
				client, err := connection.NewSTSClient(ctx, conn)
				if err != nil {
					return err
				}
				arn, err := connection.Verify(ctx, client)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Connection %s OK: authenticated as %s\n", conn.Name, arn)
			case model.ServiceAppService:
				n, err := gateway.NewAppServiceFromConnection(conn, logger).Ping(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Connection %s OK: %s apps available\n", conn.Name, humanize.Comma(int64(n)))
			}
			return nil
		},
	}
}
