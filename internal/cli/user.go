package cli

import (
	"fmt"
	"taskreward-backend/internal/models"
	"taskreward-backend/internal/services"

	"github.com/spf13/cobra"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(newUserCreateCommand(rootOpts))
	cmd.AddCommand(newUserShowCommand(rootOpts))
	return cmd
}

type userOutput struct {
	models.User
}

func (o userOutput) String() string {
	return fmt.Sprintf("user %d %s (%s) balance %s version %d",
		o.ID, o.Username, o.Role, o.Balance.StringFixed(2), o.Version)
}

func newUserCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user with a zero balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := services.CreateUser(args[0], role)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(userOutput{*user})
		},
	}

	cmd.Flags().StringVar(&role, "role", "user", "user role")
	return cmd
}

func newUserShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user and its cached balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			user, err := services.FindUserByID(userID)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(userOutput{user})
		},
	}
}
