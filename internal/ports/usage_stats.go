package ports

import (
	"context"
	"time"

	"github.com/bnema/accmux/internal/domain"
)

// UsageStatsProvider reports per-account token consumption over the account's
// configured usage window. Only input tokens feed account selection.
type UsageStatsProvider interface {
	Ready() bool
	AccountUsageInWindow(ctx context.Context, id domain.AccountID, window time.Duration) (domain.WindowUsage, error)
}

// NoopUsageStats never reports ready, so selection degrades to
// least-recently-used without special-casing callers.
type NoopUsageStats struct{}

func (NoopUsageStats) Ready() bool {
	return false
}

func (NoopUsageStats) AccountUsageInWindow(context.Context, domain.AccountID, time.Duration) (domain.WindowUsage, error) {
	return domain.WindowUsage{}, nil
}
