package cli

import (
	"fmt"
	"os"
	"strings"
	"taskreward-backend/internal/models"
	"taskreward-backend/internal/services"
	"time"

	"github.com/spf13/cobra"
)

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Balance ledger tools",
	}

	cmd.AddCommand(newLedgerExportCommand(rootOpts))
	cmd.AddCommand(newLedgerVerifyCommand(rootOpts))
	return cmd
}

type exportOutput struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
}

func (o exportOutput) String() string {
	return fmt.Sprintf("exported %d ledger entries to %s", o.Entries, o.Path)
}

func newLedgerExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		userID uint
		txType string
		since  string
		until  string
		limit  int
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export ledger entries as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := services.TransactionFilter{Limit: limit}
			if userID != 0 {
				filter.UserID = &userID
			}
			if txType != "" {
				t := models.TransactionType(txType)
				filter.Type = &t
			}
			if since != "" {
				ts, err := parseTime("since", since)
				if err != nil {
					return err
				}
				filter.StartTime = &ts
			}
			if until != "" {
				ts, err := parseTime("until", until)
				if err != nil {
					return err
				}
				filter.EndTime = &ts
			}

			transactions, err := services.FindTransactions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			data, err := services.GenerateTransactionCSV(transactions)
			if err != nil {
				return err
			}

			// "-" streams the CSV itself to stdout, so no summary follows.
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write ledger export: %w", err)
			}
			return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(exportOutput{Path: out, Entries: len(transactions)})
		},
	}

	cmd.Flags().UintVar(&userID, "user", 0, "only entries of this user")
	cmd.Flags().StringVar(&txType, "type", "", "only entries of this type")
	cmd.Flags().StringVar(&since, "since", "", "only entries at or after this RFC3339 time")
	cmd.Flags().StringVar(&until, "until", "", "only entries at or before this RFC3339 time")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

type verifyOutput struct {
	UserID uint                   `json:"user_id"`
	Issues []services.LedgerIssue `json:"issues"`
}

func (o verifyOutput) String() string {
	if len(o.Issues) == 0 {
		return fmt.Sprintf("ledger of user %d verified", o.UserID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ledger of user %d has %d issues", o.UserID, len(o.Issues))
	for _, issue := range o.Issues {
		fmt.Fprintf(&b, "\n  transaction #%d: %s", issue.TransactionID, issue.Problem)
	}
	return b.String()
}

func newLedgerVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <user-id>",
		Short: "Check ledger hashes and balance continuity for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			issues, err := services.VerifyLedger(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if err := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(verifyOutput{UserID: userID, Issues: issues}); err != nil {
				return err
			}
			if len(issues) > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("ledger of user %d failed verification", userID))
			}
			return nil
		},
	}
}

func parseTime(flag, s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --%s must be an RFC3339 time", services.ErrInvalidInput, flag)
	}
	return ts, nil
}
