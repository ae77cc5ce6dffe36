package cli

import (
	"fmt"
	"os"
	"strings"
	"taskreward-backend/internal/services"

	"github.com/spf13/cobra"
)

type auditOutput struct {
	*services.AuditReport
}

func (o auditOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "audit %s: %d checked, %d drifted, %d failed",
		o.RunID, o.Checked, len(o.Drifted), len(o.Failed))
	for _, d := range o.Drifted {
		status := "not fixed"
		if d.Fixed {
			status = "fixed"
		}
		fmt.Fprintf(&b, "\n  user %d (%s): cached %s, derived %s, %s",
			d.UserID, d.Username, d.Cached.StringFixed(2), d.Derived.StringFixed(2), status)
		if d.Error != "" {
			fmt.Fprintf(&b, ": %s", d.Error)
		}
	}
	for _, d := range o.Failed {
		fmt.Fprintf(&b, "\n  user %d (%s): %s", d.UserID, d.Username, d.Error)
	}
	return b.String()
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		fix      bool
		workers  int
		csvPath  string
		operator string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare every cached balance with its derived value",
		Long: `Audit derives the balance of every user and reports the users whose
cached balance differs. With --fix drifted users are reconciled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers <= 0 && rootOpts.Config != nil {
				workers = rootOpts.Config.ReconcileWorkers
			}

			report, err := services.AuditBalances(cmd.Context(), services.AuditOptions{
				Fix:      fix,
				Workers:  workers,
				Operator: operator,
			})
			if err != nil {
				return err
			}

			if csvPath != "" {
				data, err := services.GenerateAuditCSV(report)
				if err != nil {
					return err
				}
				if err := os.WriteFile(csvPath, data, 0o644); err != nil {
					return fmt.Errorf("write audit report: %w", err)
				}
			}

			if err := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(auditOutput{report}); err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d users could not be audited", len(report.Failed)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "reconcile drifted users")
	cmd.Flags().IntVar(&workers, "workers", 0, "users audited in parallel (default RECONCILE_WORKERS)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write the drift report as CSV to this path")
	cmd.Flags().StringVar(&operator, "operator", "balancectl", "operator recorded on fix ledger entries")
	return cmd
}
