package cli

import (
	"context"
	"fmt"
	"io"
	"taskreward-backend/config"
	"taskreward-backend/pkg/logger"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags and the state shared by every command.
type RootOptions struct {
	Format string // "json" | "text"

	// Config is set once Bootstrap has run.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for balancectl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balancectl",
		Short: "Inspect and reconcile user balances",
		Long: `balancectl derives user balances from deposits, task rewards, withdrawals
and admin adjustments, and keeps the cached balance in sync with them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return Bootstrap(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewComputeCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewAdjustCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// Execute runs balancectl with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	start := time.Now()
	executed, err := cmd.ExecuteContextC(ctx)
	code := GetExitCode(err)
	logCommand(executed, code, err, time.Since(start))
	logger.Sync()
	if err == nil {
		return ExitSuccess
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: stdout, ErrWriter: stderr}
	if formatter.Format == "json" {
		_ = formatter.Error(errorCode(code), err.Error(), nil)
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// logCommand records one invocation. Logging is only configured once
// Bootstrap has run, so failures before that go to the no-op logger.
func logCommand(cmd *cobra.Command, code int, err error, latency time.Duration) {
	fields := []zap.Field{
		zap.String("run_id", uuid.New().String()),
		zap.Int("exit_code", code),
		zap.Duration("latency", latency),
	}
	if cmd != nil {
		fields = append(fields, zap.String("command", cmd.CommandPath()))
	}

	if err != nil {
		logger.L().Error("command failed", append(fields, zap.Error(err))...)
		return
	}
	logger.L().Info("command finished", fields...)
}
