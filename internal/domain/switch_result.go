package domain

import "time"

// SwitchResult records one completed account switch. It is returned to the
// caller and mirrored into notifications; it is never persisted.
type SwitchResult struct {
	SessionID     SessionID
	FromAccountID AccountID
	ToAccountID   AccountID
	Reason        string
	Automatic     bool
	CompletedAt   time.Time
}
