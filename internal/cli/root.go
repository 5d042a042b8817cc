package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/remotetask/internal/config"
	"github.com/me/remotetask/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagConfig    string
	flagDB        string

	cfg    config.Config
	logger *slog.Logger
	client *Client
)

// ExitError carries a process exit code out of a command. It is returned by
// commands whose result is an outcome rather than an error.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the process exit code for a command error: the carried
// code for an ExitError, 1 for anything else, 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// defaultServer returns the default server URL, checking REMOTETASK_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("REMOTETASK_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8090"
}

// NewRootCmd creates the root cobra command for the remotetask CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "remotetask",
		Short: "remotetask runs job definitions on remote execution services",
		Long: `remotetask submits a job definition to a remote execution service
(SageMaker pipelines or a JSON-RPC AppService), polls it to completion and
reports a single outcome. Cancelling a run stops the remote execution.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = flagDB
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "remotetask server URL (or REMOTETASK_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "Connection store path (default ~/.remotetask/remotetask.db)")

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newConnectionCmd(),
		newDescribeCmd(),
		newStopCmd(),
		newSubmitCmd(),
		newStatusCmd(),
		newListCmd(),
		newCancelCmd(),
	)

	return root
}
