package domain

import "time"

// Assignment binds a work session to the account it is currently using.
// A session has at most one assignment.
type Assignment struct {
	SessionID  SessionID
	AccountID  AccountID
	AssignedAt time.Time
}
