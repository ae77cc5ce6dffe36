package cli

import (
	"context"
	"taskreward-backend/internal/services"

	"github.com/spf13/cobra"
)

type adjustFunc func(ctx context.Context, req services.AdjustBalanceRequest) (*services.ReconcileResult, error)

// NewAdjustCommand creates the adjust command with its set and add subcommands.
func NewAdjustCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Administrator balance overrides",
	}

	cmd.AddCommand(newAdjustSubcommand(rootOpts, "set <user-id> <amount>", "Set a user's balance; later activity applies on top", services.SetBalance))
	cmd.AddCommand(newAdjustSubcommand(rootOpts, "add <user-id> <amount>", "Credit or debit a user's balance", services.AddBalance))
	return cmd
}

func newAdjustSubcommand(rootOpts *RootOptions, use, short string, apply adjustFunc) *cobra.Command {
	var (
		reason     string
		operator   string
		operatorID uint
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			result, err := apply(cmd.Context(), services.AdjustBalanceRequest{
				UserID:     userID,
				Amount:     amount,
				Reason:     reason,
				Operator:   operator,
				OperatorID: operatorID,
			})
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(reconcileOutput{result})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded with the adjustment")
	cmd.Flags().StringVar(&operator, "operator", "", "name of the administrator")
	cmd.Flags().UintVar(&operatorID, "operator-id", 0, "user id of the administrator")
	_ = cmd.MarkFlagRequired("reason")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
