package cli

import (
	"fmt"
	"strings"
	"taskreward-backend/internal/balance"
	"taskreward-backend/internal/services"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type computeOutput struct {
	UserID    uint               `json:"user_id"`
	Balance   decimal.Decimal    `json:"balance"`
	Breakdown *balance.Breakdown `json:"breakdown,omitempty"`
}

func (o computeOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "user %d balance %s", o.UserID, o.Balance.StringFixed(2))
	if o.Breakdown != nil {
		writeBreakdown(&b, o.Breakdown)
	}
	return b.String()
}

func writeBreakdown(b *strings.Builder, bd *balance.Breakdown) {
	fmt.Fprintf(b, "\n  deposits after fee   %s", bd.DepositContribution.StringFixed(2))
	fmt.Fprintf(b, "\n  task rewards         %s", bd.TaskRewards.StringFixed(2))
	fmt.Fprintf(b, "\n  withdrawn            %s", bd.Withdrawn.StringFixed(2))
	fmt.Fprintf(b, "\n  unlock fee remaining %s", bd.UnlockFeeRemaining.StringFixed(2))
	if bd.Checkpoint != nil {
		fmt.Fprintf(b, "\n  checkpoint           %s at %s (adjustment #%d)",
			bd.Checkpoint.Balance.StringFixed(2), bd.Checkpoint.At.UTC().Format("2006-01-02T15:04:05Z"), bd.Checkpoint.AdjustmentID)
	} else {
		fmt.Fprintf(b, "\n  base balance         %s", bd.BaseBalance.StringFixed(2))
	}
	for _, s := range bd.Skipped {
		fmt.Fprintf(b, "\n  skipped %s #%d: %s", s.Kind, s.ID, s.Reason)
	}
}

// NewComputeCommand creates the compute command.
func NewComputeCommand(rootOpts *RootOptions) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "compute <user-id>",
		Short: "Derive a user's balance without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}

			out := computeOutput{UserID: userID}
			if explain {
				bd, err := services.ExplainUserBalance(cmd.Context(), userID)
				if err != nil {
					return err
				}
				out.Balance = bd.Balance
				out.Breakdown = bd
			} else {
				out.Balance, err = services.ComputeUserBalance(cmd.Context(), userID)
				if err != nil {
					return err
				}
			}
			return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(out)
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "show how the balance was derived")
	return cmd
}

type reconcileOutput struct {
	*services.ReconcileResult
}

func (o reconcileOutput) String() string {
	if !o.Changed {
		return fmt.Sprintf("user %d balance %s (unchanged)", o.UserID, o.After.StringFixed(2))
	}
	return fmt.Sprintf("user %d balance %s -> %s", o.UserID, o.Before.StringFixed(2), o.After.StringFixed(2))
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	var operator string

	cmd := &cobra.Command{
		Use:   "reconcile <user-id>",
		Short: "Recompute a user's balance and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			result, err := services.ReconcileUserBalance(cmd.Context(), userID, operator)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(reconcileOutput{result})
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "balancectl", "operator recorded on the ledger entry")
	return cmd
}
