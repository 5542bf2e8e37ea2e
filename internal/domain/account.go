package domain

import (
	"fmt"
	"strings"
	"time"
)

type AccountID string
type SessionID string
type AgentType string
type AuthMethod string
type AccountStatus string

const (
	AuthMethodAPIKey AuthMethod = "api_key"
	AuthMethodOAuth  AuthMethod = "oauth"

	StatusActive    AccountStatus = "active"
	StatusThrottled AccountStatus = "throttled"
	StatusDisabled  AccountStatus = "disabled"
	StatusExpired   AccountStatus = "expired"
)

// Account is one credential/config identity the external agent CLI can run
// under. ConfigDir is the directory the CLI is launched with to assume the
// identity.
type Account struct {
	ID                  AccountID
	Name                string
	Email               string
	ConfigDir           string
	AgentType           AgentType
	AuthMethod          AuthMethod
	Status              AccountStatus
	IsDefault           bool
	AutoSwitch          bool
	LastUsedAt          time.Time
	LastThrottledAt     time.Time
	TokenLimitPerWindow int64
	TokenWindow         time.Duration
	AddedAt             time.Time
}

func (a Account) Validate() error {
	if strings.TrimSpace(string(a.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !strings.Contains(a.Email, "@") {
		return fmt.Errorf("email %q is invalid", a.Email)
	}
	if strings.TrimSpace(a.ConfigDir) == "" {
		return fmt.Errorf("config dir is required")
	}

	return nil
}

// Unlimited reports whether the account has no configured token limit.
func (a Account) Unlimited() bool {
	return a.TokenLimitPerWindow <= 0
}

// ThrottledWithin reports whether the account was throttled inside the given
// horizon ending at now.
func (a Account) ThrottledWithin(now time.Time, horizon time.Duration) bool {
	if a.LastThrottledAt.IsZero() || horizon <= 0 {
		return false
	}

	return now.Sub(a.LastThrottledAt) <= horizon
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
