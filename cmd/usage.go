package cmd

import (
	"fmt"
	"time"

	"github.com/bnema/accmux/internal/domain"
	"github.com/spf13/cobra"
)

func newUsageCmd(app *app) *cobra.Command {
	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Record and inspect per-account token usage",
	}

	usageCmd.AddCommand(
		newUsageRecordCmd(app),
		newUsageShowCmd(app),
	)

	return usageCmd
}

func newUsageRecordCmd(app *app) *cobra.Command {
	var (
		accountID     string
		inputTokens   int64
		outputTokens  int64
		cacheRead     int64
		cacheCreation int64
	)

	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Append a token usage event for an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := domain.AccountID(accountID)

			account, err := app.registry.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if account == nil {
				return fmt.Errorf("no account with id %s", accountID)
			}

			err = app.ledger.Record(cmd.Context(), id, domain.WindowUsage{
				InputTokens:         inputTokens,
				OutputTokens:        outputTokens,
				CacheReadTokens:     cacheRead,
				CacheCreationTokens: cacheCreation,
			}, time.Time{})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded usage for %s <%s>\n", account.Name, account.Email)
			return nil
		},
	}

	recordCmd.Flags().StringVar(&accountID, "account", "", "account the usage belongs to")
	recordCmd.Flags().Int64Var(&inputTokens, "input", 0, "input tokens consumed")
	recordCmd.Flags().Int64Var(&outputTokens, "output", 0, "output tokens produced")
	recordCmd.Flags().Int64Var(&cacheRead, "cache-read", 0, "cache read tokens")
	recordCmd.Flags().Int64Var(&cacheCreation, "cache-creation", 0, "cache creation tokens")
	_ = recordCmd.MarkFlagRequired("account")

	return recordCmd
}

func newUsageShowCmd(app *app) *cobra.Command {
	var accountID string

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show an account's usage in its current window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := domain.AccountID(accountID)

			account, err := app.registry.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if account == nil {
				return fmt.Errorf("no account with id %s", accountID)
			}

			usage, err := app.ledger.AccountUsageInWindow(cmd.Context(), id, account.TokenWindow)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", account.Name, account.Email)
			fmt.Fprintf(out, "  input:          %d\n", usage.InputTokens)
			fmt.Fprintf(out, "  output:         %d\n", usage.OutputTokens)
			fmt.Fprintf(out, "  cache read:     %d\n", usage.CacheReadTokens)
			fmt.Fprintf(out, "  cache creation: %d\n", usage.CacheCreationTokens)
			if !account.Unlimited() {
				fmt.Fprintf(out, "  limit:          %d input tokens per window\n", account.TokenLimitPerWindow)
			}

			return nil
		},
	}

	showCmd.Flags().StringVar(&accountID, "account", "", "account to inspect")
	_ = showCmd.MarkFlagRequired("account")

	return showCmd
}
