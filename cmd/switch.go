package cmd

import (
	"fmt"

	"github.com/bnema/accmux/internal/application"
	"github.com/bnema/accmux/internal/domain"
	"github.com/spf13/cobra"
)

func newSwitchCmd(app *app) *cobra.Command {
	var (
		sessionID string
		toID      string
		reason    string
		automatic bool
	)

	switchCmd := &cobra.Command{
		Use:   "switch",
		Short: "Switch a running session to another account",
		Long:  "Kills the session's agent process, waits for it to settle, reassigns the session to the target account and emits a respawn event carrying the new config directory.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			app.bus.Subscribe(application.ChannelSwitchStarted, func(payload any) {
				if p, ok := payload.(application.SwitchStartedPayload); ok {
					fmt.Fprintf(out, "Switching session %s to %s...\n", p.SessionID, p.ToAccountName)
				}
			})
			app.bus.Subscribe(application.ChannelSwitchFailed, func(payload any) {
				if p, ok := payload.(application.SwitchFailedPayload); ok {
					fmt.Fprintf(out, "Switch failed for session %s: %s\n", p.SessionID, p.Error)
				}
			})

			session := domain.SessionID(sessionID)

			var fromID domain.AccountID
			if assignment, err := app.registry.GetAssignment(cmd.Context(), session); err != nil {
				return err
			} else if assignment != nil {
				fromID = assignment.AccountID
			}

			result, err := app.switcher.ExecuteSwitch(cmd.Context(), application.SwitchRequest{
				SessionID:     session,
				FromAccountID: fromID,
				ToAccountID:   domain.AccountID(toID),
				Reason:        reason,
				Automatic:     automatic,
			})
			if err != nil {
				return err
			}
			if result == nil {
				return fmt.Errorf("no account with id %s", toID)
			}

			fmt.Fprintf(out, "Session %s switched to account %s\n", result.SessionID, result.ToAccountID)
			return nil
		},
	}

	switchCmd.Flags().StringVar(&sessionID, "session", "", "session to switch")
	switchCmd.Flags().StringVar(&toID, "to", "", "target account id")
	switchCmd.Flags().StringVar(&reason, "reason", "manual", "why the switch happened")
	switchCmd.Flags().BoolVar(&automatic, "auto", false, "mark the switch as automatic")
	_ = switchCmd.MarkFlagRequired("session")
	_ = switchCmd.MarkFlagRequired("to")

	return switchCmd
}
