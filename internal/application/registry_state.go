package application

import (
	"fmt"
	"time"

	"github.com/bnema/accmux/internal/domain"
)

const currentStateVersion = 1

type accountsFile struct {
	Version  int             `toml:"version"`
	Accounts []accountRecord `toml:"accounts"`
}

type accountRecord struct {
	ID                  string `toml:"id"`
	Name                string `toml:"name"`
	Email               string `toml:"email"`
	ConfigDir           string `toml:"config_dir"`
	AgentType           string `toml:"agent_type,omitempty"`
	AuthMethod          string `toml:"auth_method,omitempty"`
	Status              string `toml:"status"`
	IsDefault           bool   `toml:"is_default"`
	AutoSwitch          bool   `toml:"auto_switch"`
	LastUsedAt          string `toml:"last_used_at,omitempty"`
	LastThrottledAt     string `toml:"last_throttled_at,omitempty"`
	TokenLimitPerWindow int64  `toml:"token_limit_per_window"`
	TokenWindowMs       int64  `toml:"token_window_ms"`
	AddedAt             string `toml:"added_at"`
}

type assignmentsFile struct {
	Version     int                `toml:"version"`
	Assignments []assignmentRecord `toml:"assignments"`
}

type assignmentRecord struct {
	SessionID  string `toml:"session_id"`
	AccountID  string `toml:"account_id"`
	AssignedAt string `toml:"assigned_at"`
}

type switchConfigFile struct {
	Version              int    `toml:"version"`
	Enabled              bool   `toml:"enabled"`
	WarnThresholdPercent int    `toml:"warn_threshold_percent"`
	PromptBeforeSwitch   bool   `toml:"prompt_before_switch"`
	Strategy             string `toml:"strategy"`
	ThrottleRecencyMs    int64  `toml:"throttle_recency_ms"`
	ThrottlePenalty      float64 `toml:"throttle_penalty"`
}

type rotationOrderFile struct {
	Version int      `toml:"version"`
	Order   []string `toml:"order"`
}

type rotationIndexFile struct {
	Version int `toml:"version"`
	Cursor  int `toml:"cursor"`
}

func validateStateVersion(version int) error {
	if version > currentStateVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", version, currentStateVersion)
	}

	return nil
}

func toAccountRecord(account domain.Account) accountRecord {
	return accountRecord{
		ID:                  string(account.ID),
		Name:                account.Name,
		Email:               account.Email,
		ConfigDir:           account.ConfigDir,
		AgentType:           string(account.AgentType),
		AuthMethod:          string(account.AuthMethod),
		Status:              string(account.Status),
		IsDefault:           account.IsDefault,
		AutoSwitch:          account.AutoSwitch,
		LastUsedAt:          formatTime(account.LastUsedAt),
		LastThrottledAt:     formatTime(account.LastThrottledAt),
		TokenLimitPerWindow: account.TokenLimitPerWindow,
		TokenWindowMs:       account.TokenWindow.Milliseconds(),
		AddedAt:             formatTime(account.AddedAt),
	}
}

func fromAccountRecord(record accountRecord) domain.Account {
	return domain.Account{
		ID:                  domain.AccountID(record.ID),
		Name:                record.Name,
		Email:               record.Email,
		ConfigDir:           record.ConfigDir,
		AgentType:           domain.AgentType(record.AgentType),
		AuthMethod:          domain.AuthMethod(record.AuthMethod),
		Status:              domain.AccountStatus(record.Status),
		IsDefault:           record.IsDefault,
		AutoSwitch:          record.AutoSwitch,
		LastUsedAt:          parseTime(record.LastUsedAt),
		LastThrottledAt:     parseTime(record.LastThrottledAt),
		TokenLimitPerWindow: record.TokenLimitPerWindow,
		TokenWindow:         time.Duration(record.TokenWindowMs) * time.Millisecond,
		AddedAt:             parseTime(record.AddedAt),
	}
}

func toAssignmentRecord(assignment domain.Assignment) assignmentRecord {
	return assignmentRecord{
		SessionID:  string(assignment.SessionID),
		AccountID:  string(assignment.AccountID),
		AssignedAt: formatTime(assignment.AssignedAt),
	}
}

func fromAssignmentRecord(record assignmentRecord) domain.Assignment {
	return domain.Assignment{
		SessionID:  domain.SessionID(record.SessionID),
		AccountID:  domain.AccountID(record.AccountID),
		AssignedAt: parseTime(record.AssignedAt),
	}
}

func toSwitchConfigFile(cfg domain.SwitchConfig) switchConfigFile {
	return switchConfigFile{
		Version:              currentStateVersion,
		Enabled:              cfg.Enabled,
		WarnThresholdPercent: cfg.WarnThresholdPercent,
		PromptBeforeSwitch:   cfg.PromptBeforeSwitch,
		Strategy:             string(cfg.Strategy),
		ThrottleRecencyMs:    cfg.ThrottleRecency.Milliseconds(),
		ThrottlePenalty:      cfg.ThrottlePenalty,
	}
}

func fromSwitchConfigFile(file switchConfigFile) domain.SwitchConfig {
	cfg := domain.SwitchConfig{
		Enabled:              file.Enabled,
		WarnThresholdPercent: file.WarnThresholdPercent,
		PromptBeforeSwitch:   file.PromptBeforeSwitch,
		Strategy:             domain.SelectionStrategy(file.Strategy),
		ThrottleRecency:      time.Duration(file.ThrottleRecencyMs) * time.Millisecond,
		ThrottlePenalty:      file.ThrottlePenalty,
	}
	cfg.ApplyDefaults()

	return cfg
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
