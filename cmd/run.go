package cmd

import (
	"fmt"

	"github.com/bnema/accmux/internal/application"
	"github.com/bnema/accmux/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRunCmd(app *app) *cobra.Command {
	var sessionID string

	runCmd := &cobra.Command{
		Use:   "run -- <agent command> [args...]",
		Short: "Launch the agent CLI under a managed account",
		Long:  "Resolves an account for the session (existing assignment, then selection, then default), binds the session to it and runs the agent command with the account's config directory. A switch respawns the process under the new account's directory.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			session := domain.SessionID(sessionID)

			account, err := resolveRunAccount(cmd, app, session)
			if err != nil {
				return err
			}
			if account == nil {
				return fmt.Errorf("no active account available; add one with: accmux account add")
			}

			if _, err := app.registry.AssignToSession(ctx, session, account.ID); err != nil {
				return err
			}

			// A switch kills the old process first, so respawning here cannot
			// race with the one being replaced.
			app.bus.Subscribe(application.ChannelSwitchRespawn, func(payload any) {
				p, ok := payload.(application.SwitchRespawnPayload)
				if !ok || p.SessionID != session {
					return
				}
				if _, err := app.supervisor.Start(ctx, session, p.ConfigDir, args); err != nil {
					app.logger.Error("respawn agent process failed",
						"session", session, "account", p.AccountID, "error", err)
				}
			})

			fmt.Fprintf(cmd.OutOrStdout(), "Session %s running as %s <%s>\n", session, account.Name, account.Email)

			if _, err := app.supervisor.Start(ctx, session, account.ConfigDir, args); err != nil {
				return err
			}

			defer func() {
				app.switcher.CleanupSession(session)
				if _, err := app.registry.RemoveAssignment(ctx, session); err != nil {
					app.logger.Warn("remove assignment on exit failed", "session", session, "error", err)
				}
			}()

			return app.supervisor.Wait(session)
		},
	}

	runCmd.Flags().StringVar(&sessionID, "session", "", "session id to run under (generated when empty)")

	return runCmd
}

func resolveRunAccount(cmd *cobra.Command, app *app, session domain.SessionID) (*domain.Account, error) {
	ctx := cmd.Context()

	assignment, err := app.registry.GetAssignment(ctx, session)
	if err != nil {
		return nil, err
	}
	if assignment != nil {
		account, err := app.registry.Get(ctx, assignment.AccountID)
		if err != nil {
			return nil, err
		}
		if account != nil && account.Status == domain.StatusActive {
			return account, nil
		}
	}

	account, err := app.registry.SelectNextAccount(ctx, application.SelectOptions{Usage: app.usage})
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	return app.registry.DefaultAccount(ctx)
}
