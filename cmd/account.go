package cmd

import (
	"context"
	"fmt"
	"time"

	accountsrender "github.com/bnema/accmux/internal/adapters/render/accounts"
	"github.com/bnema/accmux/internal/application"
	"github.com/bnema/accmux/internal/domain"
	"github.com/spf13/cobra"
)

func newAccountCmd(app *app) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Manage registered account profiles",
	}

	accountCmd.AddCommand(
		newAccountAddCmd(app),
		newAccountListCmd(app),
		newAccountStatusCmd(app),
		newAccountRemoveCmd(app),
		newAccountUpdateCmd(app),
		newAccountSetDefaultCmd(app),
		newAccountSetStatusCmd(app),
	)

	return accountCmd
}

func newAccountAddCmd(app *app) *cobra.Command {
	var (
		name        string
		email       string
		configDir   string
		agentType   string
		authMethod  string
		tokenLimit  int64
		tokenWindow time.Duration
	)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new account profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := app.registry.Add(cmd.Context(), application.AddAccountParams{
				Name:                name,
				Email:               email,
				ConfigDir:           configDir,
				AgentType:           domain.AgentType(agentType),
				AuthMethod:          domain.AuthMethod(authMethod),
				TokenLimitPerWindow: tokenLimit,
				TokenWindow:         tokenWindow,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added account %s <%s> (%s)\n", account.Name, account.Email, account.ID)
			if account.IsDefault {
				fmt.Fprintln(cmd.OutOrStdout(), "This account is now the default.")
			}

			return nil
		},
	}

	addCmd.Flags().StringVar(&name, "name", "", "display name for the account")
	addCmd.Flags().StringVar(&email, "email", "", "account email, unique across the registry")
	addCmd.Flags().StringVar(&configDir, "config-dir", "", "isolated agent config directory for this account")
	addCmd.Flags().StringVar(&agentType, "agent", "claude", "agent CLI this account belongs to")
	addCmd.Flags().StringVar(&authMethod, "auth", string(domain.AuthMethodOAuth), "auth method (oauth or api_key)")
	addCmd.Flags().Int64Var(&tokenLimit, "token-limit", 0, "input token limit per window, 0 for unlimited")
	addCmd.Flags().DurationVar(&tokenWindow, "token-window", 0, "usage window size, e.g. 5h (default 24h)")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("email")
	_ = addCmd.MarkFlagRequired("config-dir")

	return addCmd
}

func newAccountListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := app.registry.GetAll(cmd.Context())
			if err != nil {
				return err
			}

			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts registered. Add one with: accmux account add")
				return nil
			}

			for _, account := range accounts {
				marker := " "
				if account.IsDefault {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s <%s>  %s\n",
					marker, account.ID, account.Name, account.Email, account.Status)
			}

			return nil
		},
	}
}

func newAccountStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show account health, sessions and window usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := collectStatusRows(cmd.Context(), app)
			if err != nil {
				return err
			}

			out, err := app.renderer(rows, accountsrender.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render status: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func collectStatusRows(ctx context.Context, app *app) ([]accountsrender.Row, error) {
	accounts, err := app.registry.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	assignments, err := app.registry.GetAllAssignments(ctx)
	if err != nil {
		return nil, err
	}

	sessionsPerAccount := make(map[domain.AccountID]int, len(accounts))
	for _, assignment := range assignments {
		sessionsPerAccount[assignment.AccountID]++
	}

	rows := make([]accountsrender.Row, 0, len(accounts))
	for _, account := range accounts {
		row := accountsrender.Row{
			Account:  account,
			Sessions: sessionsPerAccount[account.ID],
		}

		if !account.Unlimited() && app.usage.Ready() {
			usage, err := app.usage.AccountUsageInWindow(ctx, account.ID, account.TokenWindow)
			if err == nil {
				row.Usage = &usage
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Remove an account and its session assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := app.registry.Remove(cmd.Context(), domain.AccountID(args[0]))
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "No account with id %s\n", args[0])
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed account %s\n", args[0])
			return nil
		},
	}
}

func newAccountUpdateCmd(app *app) *cobra.Command {
	var (
		name        string
		email       string
		configDir   string
		tokenLimit  int64
		tokenWindow time.Duration
		autoSwitch  bool
	)

	updateCmd := &cobra.Command{
		Use:   "update <account-id>",
		Short: "Update fields on an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := application.UpdateAccountParams{}
			if cmd.Flags().Changed("name") {
				params.Name = &name
			}
			if cmd.Flags().Changed("email") {
				params.Email = &email
			}
			if cmd.Flags().Changed("config-dir") {
				params.ConfigDir = &configDir
			}
			if cmd.Flags().Changed("token-limit") {
				params.TokenLimitPerWindow = &tokenLimit
			}
			if cmd.Flags().Changed("token-window") {
				params.TokenWindow = &tokenWindow
			}
			if cmd.Flags().Changed("auto-switch") {
				params.AutoSwitch = &autoSwitch
			}

			account, err := app.registry.Update(cmd.Context(), domain.AccountID(args[0]), params)
			if err != nil {
				return err
			}
			if account == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No account with id %s\n", args[0])
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated account %s <%s>\n", account.Name, account.Email)
			return nil
		},
	}

	updateCmd.Flags().StringVar(&name, "name", "", "new display name")
	updateCmd.Flags().StringVar(&email, "email", "", "new email")
	updateCmd.Flags().StringVar(&configDir, "config-dir", "", "new config directory")
	updateCmd.Flags().Int64Var(&tokenLimit, "token-limit", 0, "new input token limit per window, 0 for unlimited")
	updateCmd.Flags().DurationVar(&tokenWindow, "token-window", 0, "new usage window size")
	updateCmd.Flags().BoolVar(&autoSwitch, "auto-switch", true, "whether automatic switching may pick this account")

	return updateCmd
}

func newAccountSetDefaultCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <account-id>",
		Short: "Make an account the default for new sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			isDefault := true
			account, err := app.registry.Update(cmd.Context(), domain.AccountID(args[0]), application.UpdateAccountParams{
				IsDefault: &isDefault,
			})
			if err != nil {
				return err
			}
			if account == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No account with id %s\n", args[0])
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> is now the default account\n", account.Name, account.Email)
			return nil
		},
	}
}

func newAccountSetStatusCmd(app *app) *cobra.Command {
	setStatusCmd := &cobra.Command{
		Use:   "set-status <account-id> <status>",
		Short: "Set an account's status (active, throttled, disabled, expired)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := domain.AccountStatus(args[1])
			switch status {
			case domain.StatusActive, domain.StatusThrottled, domain.StatusDisabled, domain.StatusExpired:
			default:
				return fmt.Errorf("unknown status %q", args[1])
			}

			if err := app.registry.SetStatus(cmd.Context(), domain.AccountID(args[0]), status); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Account %s status set to %s\n", args[0], status)
			return nil
		},
	}

	return setStatusCmd
}
