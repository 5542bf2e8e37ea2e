package application

import (
	"context"

	"github.com/bnema/accmux/internal/domain"
	"github.com/bnema/accmux/internal/ports"
)

type SelectOptions struct {
	Exclude []domain.AccountID
	// Usage supplies per-account consumption for capacity-aware selection.
	// A nil or not-ready provider degrades selection to least-recently-used.
	Usage ports.UsageStatsProvider
}

// SelectNextAccount picks the best account for a new or rotating session
// under the configured strategy, or nil when no active account remains
// outside the exclusion list.
//
// Round-robin walks the persisted rotation cursor and never consults usage.
// Least-used ranks limited accounts by remaining window capacity (input
// tokens only), penalizing recently throttled ones; unlimited accounts are a
// fallback behind any limited candidate, ranked by least-recent use.
func (r *RegistryService) SelectNextAccount(ctx context.Context, opts SelectOptions) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}

	excluded := make(map[domain.AccountID]struct{}, len(opts.Exclude))
	for _, id := range opts.Exclude {
		excluded[id] = struct{}{}
	}

	candidates := make([]domain.Account, 0, len(accounts))
	for _, account := range accounts {
		if account.Status != domain.StatusActive {
			continue
		}
		if _, ok := excluded[account.ID]; ok {
			continue
		}
		candidates = append(candidates, account)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	cfg, err := r.loadSwitchConfig(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Strategy == domain.StrategyRoundRobin {
		picked, err := r.selectRoundRobin(ctx, candidates)
		if err != nil {
			return nil, err
		}
		if picked != nil {
			return picked, nil
		}
		// Rotation order empty or stale; fall through to LRU.
	} else if picked := r.selectByCapacity(ctx, candidates, cfg, opts.Usage); picked != nil {
		return picked, nil
	}

	return selectLeastRecentlyUsed(candidates), nil
}

// selectRoundRobin advances the persisted cursor past ineligible entries and
// returns the next candidate, cycling through all of them before repeating.
func (r *RegistryService) selectRoundRobin(ctx context.Context, candidates []domain.Account) (*domain.Account, error) {
	rotation, err := r.loadRotation(ctx)
	if err != nil {
		return nil, err
	}
	if len(rotation.Order) == 0 {
		return nil, nil
	}

	byID := make(map[domain.AccountID]domain.Account, len(candidates))
	for _, candidate := range candidates {
		byID[candidate.ID] = candidate
	}

	for step := 1; step <= len(rotation.Order); step++ {
		idx := (rotation.Cursor + step) % len(rotation.Order)
		candidate, ok := byID[rotation.Order[idx]]
		if !ok {
			continue
		}

		rotation.Cursor = idx
		if err := r.saveRotation(ctx, rotation); err != nil {
			return nil, err
		}

		picked := candidate
		return &picked, nil
	}

	return nil, nil
}

// selectByCapacity ranks limited candidates by remaining window capacity and
// returns the best, or nil when no candidate has a finite remaining value.
func (r *RegistryService) selectByCapacity(ctx context.Context, candidates []domain.Account, cfg domain.SwitchConfig, provider ports.UsageStatsProvider) *domain.Account {
	if provider == nil || !provider.Ready() {
		return nil
	}

	now := r.clock.Now()
	var best *domain.Account
	var bestRemaining float64

	for _, candidate := range candidates {
		if candidate.Unlimited() {
			continue
		}

		usage, err := provider.AccountUsageInWindow(ctx, candidate.ID, candidate.TokenWindow)
		if err != nil {
			continue
		}

		remaining := float64(candidate.TokenLimitPerWindow - usage.InputTokens)
		if candidate.ThrottledWithin(now, cfg.ThrottleRecency) {
			remaining *= cfg.ThrottlePenalty
		}

		if best == nil || remaining > bestRemaining ||
			(remaining == bestRemaining && candidate.LastUsedAt.Before(best.LastUsedAt)) {
			picked := candidate
			best = &picked
			bestRemaining = remaining
		}
	}

	return best
}

func selectLeastRecentlyUsed(candidates []domain.Account) *domain.Account {
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.LastUsedAt.Before(best.LastUsedAt) {
			best = candidate
		}
	}

	return &best
}
