package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rl1809/goods-issue/internal/app"
	"github.com/rl1809/goods-issue/internal/config"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // reconciliation ran but reported failures
	ExitCommandError = 2 // bad flags, unreadable input, unreachable store
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that are not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Goods-issue reconciliation operator tool",
		Long: "Runs stock reconciliation for production orders against the configured store.\n" +
			"Store, Redis and notifier settings are read from the environment (and .env).",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewForwardCommand(opts))
	cmd.AddCommand(NewReverseCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewAdjustCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))

	return cmd
}

// openApp wires the application from the environment. Logs go to stderr so
// stdout only carries command output.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.Verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "build logger", err)
	}
	logger.SetOutput(cmd.ErrOrStderr())

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open application", err)
	}
	return a, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
