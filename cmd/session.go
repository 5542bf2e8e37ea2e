package cmd

import (
	"fmt"

	"github.com/bnema/accmux/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage session-to-account assignments",
	}

	sessionCmd.AddCommand(
		newSessionAssignCmd(app),
		newSessionUnassignCmd(app),
		newSessionListCmd(app),
		newSessionReconcileCmd(app),
	)

	return sessionCmd
}

func newSessionAssignCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <session-id> <account-id>",
		Short: "Assign an account to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := domain.SessionID(args[0])
			accountID := domain.AccountID(args[1])

			account, err := app.registry.Get(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			if account == nil {
				return fmt.Errorf("no account with id %s", accountID)
			}

			if _, err := app.registry.AssignToSession(cmd.Context(), sessionID, accountID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Session %s now uses %s <%s>\n", sessionID, account.Name, account.Email)
			return nil
		},
	}
}

func newSessionUnassignCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <session-id>",
		Short: "Remove a session's account assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := app.registry.RemoveAssignment(cmd.Context(), domain.SessionID(args[0]))
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s had no assignment\n", args[0])
				return nil
			}

			app.switcher.CleanupSession(domain.SessionID(args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "Unassigned session %s\n", args[0])
			return nil
		},
	}
}

func newSessionListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active session assignments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			assignments, err := app.registry.GetAllAssignments(cmd.Context())
			if err != nil {
				return err
			}

			if len(assignments) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions assigned.")
				return nil
			}

			for _, assignment := range assignments {
				label := string(assignment.AccountID)
				if account, err := app.registry.Get(cmd.Context(), assignment.AccountID); err == nil && account != nil {
					label = fmt.Sprintf("%s <%s>", account.Name, account.Email)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (since %s)\n",
					assignment.SessionID, label, assignment.AssignedAt.Format("2006-01-02 15:04:05"))
			}

			return nil
		},
	}
}

func newSessionReconcileCmd(app *app) *cobra.Command {
	var active []string

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Drop assignments for sessions that are no longer alive",
		Long:  "Removes every stored assignment whose session id is not passed via --active. Run it after restoring or pruning the session list so stale assignments do not pin accounts.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			activeSet := make(map[domain.SessionID]struct{}, len(active))
			for _, id := range active {
				activeSet[domain.SessionID(id)] = struct{}{}
			}

			removed, err := app.registry.ReconcileAssignments(cmd.Context(), activeSet)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale assignment(s)\n", removed)
			return nil
		},
	}

	reconcileCmd.Flags().StringArrayVar(&active, "active", nil, "session id that is still alive (repeatable)")

	return reconcileCmd
}
