package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/me/remotetask/internal/runner"
	"github.com/me/remotetask/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task attempt and connection API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			rn := runner.New(taskDeps(ctx, st), logger).WithRetention(cfg.Server.RetainFinished)
			srv := server.New(cfg.Server, rn, st, logger)

			serveErr := srv.ListenAndServe(ctx)

			// Running attempts are cancelled, which stops their remote executions.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := rn.Shutdown(shutdownCtx); err != nil {
				logger.Error("runner shutdown", "error", err)
			}
			return serveErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8090", "Listen address")
	return cmd
}
