package cmd

import (
	"fmt"

	"github.com/bnema/accmux/internal/application"
	"github.com/bnema/accmux/internal/domain"
	"github.com/spf13/cobra"
)

func newNextCmd(app *app) *cobra.Command {
	var exclude []string

	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Pick the account a new or rotating session should use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			excluded := make([]domain.AccountID, 0, len(exclude))
			for _, id := range exclude {
				excluded = append(excluded, domain.AccountID(id))
			}

			account, err := app.registry.SelectNextAccount(cmd.Context(), application.SelectOptions{
				Exclude: excluded,
				Usage:   app.usage,
			})
			if err != nil {
				return err
			}
			if account == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No eligible account.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s <%s>\n", account.ID, account.Name, account.Email)
			return nil
		},
	}

	nextCmd.Flags().StringArrayVar(&exclude, "exclude", nil, "account id to skip (repeatable)")

	return nextCmd
}
