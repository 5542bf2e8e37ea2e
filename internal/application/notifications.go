package application

import "github.com/bnema/accmux/internal/domain"

// Notification channels published during a switch.
const (
	ChannelSwitchStarted   = "account:switch-started"
	ChannelSwitchRespawn   = "account:switch-respawn"
	ChannelSwitchCompleted = "account:switch-completed"
	ChannelSwitchFailed    = "account:switch-failed"
)

type SwitchStartedPayload struct {
	SessionID     domain.SessionID
	FromAccountID domain.AccountID
	ToAccountID   domain.AccountID
	ToAccountName string
}

// SwitchRespawnPayload is the signal a respawn collaborator uses to relaunch
// the agent process under the new identity. LastPrompt is nil when no prompt
// was ever recorded for the session.
type SwitchRespawnPayload struct {
	SessionID  domain.SessionID
	AccountID  domain.AccountID
	ConfigDir  string
	LastPrompt *string
	Reason     string
}

type SwitchCompletedPayload struct {
	SessionID       domain.SessionID
	FromAccountID   domain.AccountID
	ToAccountID     domain.AccountID
	FromAccountName string
	ToAccountName   string
	Automatic       bool
}

type SwitchFailedPayload struct {
	SessionID     domain.SessionID
	FromAccountID domain.AccountID
	ToAccountID   domain.AccountID
	Error         string
}
