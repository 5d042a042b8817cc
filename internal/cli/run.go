package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/remotetask/internal/lifecycle"
	"github.com/me/remotetask/internal/store"
	"github.com/me/remotetask/internal/task"
	"github.com/me/remotetask/pkg/model"
)

func newRunCmd() *cobra.Command {
	var (
		paramsFile string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "run -f <params.json>",
		Short: "Run one task attempt in the foreground",
		Long: `Runs one task attempt from a parameter blob: resolves the connection,
builds the submission request, submits it and polls until the remote job
finishes. SIGINT or SIGTERM stops the remote execution.

The process exit code is the attempt's outcome: 0 success, 1 failure,
137 killed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := readBlob(cmd.InOrStdin(), paramsFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var st store.Store
			if s, err := openStore(ctx); err != nil {
				logger.Warn("connection store unavailable, only inline connections resolve", "error", err)
			} else {
				defer s.Close()
				st = s
			}

			deps := taskDeps(ctx, st)
			if !quiet {
				deps.Emitter = lifecycle.Multi{deps.Emitter, progressEmitter(cmd.OutOrStdout())}
			}

			start := time.Now()
			res := task.New(blob, deps).Handle(ctx)
			printResult(cmd.OutOrStdout(), res, time.Since(start))

			if res.ExitCode != 0 {
				return &ExitError{Code: res.ExitCode}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&paramsFile, "file", "f", "", "Parameter blob (JSON), or - for stdin")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the final outcome")
	cmd.MarkFlagRequired("file")
	return cmd
}

func readBlob(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	return data, nil
}

// progressEmitter prints one line per controller transition.
func progressEmitter(w io.Writer) lifecycle.Emitter {
	return lifecycle.EmitterFunc(func(t lifecycle.Transition) {
		line := fmt.Sprintf("%s  %-10s", t.At.Format("15:04:05"), t.To)
		if t.Status.Raw != "" {
			line += "  " + t.Status.Raw
		}
		if t.From == model.ControllerStateSubmitting && t.Handle != "" {
			line += "  " + t.Handle.String()
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	})
}

func printResult(w io.Writer, res task.Result, elapsed time.Duration) {
	fmt.Fprintf(w, "Outcome:  %s (exit %d)\n", res.Outcome, res.ExitCode)
	if res.Handle != "" {
		fmt.Fprintf(w, "  Handle: %s\n", res.Handle)
	}
	if res.LastStatus.Raw != "" {
		status := res.LastStatus.Raw
		if res.LastStatus.Reason != "" {
			status += " (" + res.LastStatus.Reason + ")"
		}
		fmt.Fprintf(w, "  Status: %s\n", status)
	}
	if res.Retries > 0 {
		fmt.Fprintf(w, "  Inspect retries: %s\n", humanize.Comma(int64(res.Retries)))
	}
	if res.Err != nil {
		kind := res.ErrorKind
		if kind == "" {
			kind = model.ErrorKind("error")
		}
		fmt.Fprintf(w, "  %s: %v\n", kind, res.Err)
	}
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Second))
}
