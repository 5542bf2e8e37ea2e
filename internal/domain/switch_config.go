package domain

import "time"

type SelectionStrategy string

const (
	StrategyLeastUsed  SelectionStrategy = "least_used"
	StrategyRoundRobin SelectionStrategy = "round_robin"
)

// SwitchConfig is the process-wide auto-switch policy. It is a singleton
// within the registry's persisted state.
type SwitchConfig struct {
	Enabled              bool
	WarnThresholdPercent int
	PromptBeforeSwitch   bool
	Strategy             SelectionStrategy
	// ThrottleRecency is the horizon inside which a past throttle still
	// penalizes an account during selection. ThrottlePenalty is the factor
	// applied to its remaining capacity.
	ThrottleRecency time.Duration
	ThrottlePenalty float64
}

func DefaultSwitchConfig() SwitchConfig {
	return SwitchConfig{
		Enabled:              true,
		WarnThresholdPercent: 80,
		PromptBeforeSwitch:   false,
		Strategy:             StrategyLeastUsed,
		ThrottleRecency:      5 * time.Minute,
		ThrottlePenalty:      0.5,
	}
}

func (c *SwitchConfig) ApplyDefaults() {
	defaults := DefaultSwitchConfig()
	if c.Strategy == "" {
		c.Strategy = defaults.Strategy
	}
	if c.WarnThresholdPercent <= 0 {
		c.WarnThresholdPercent = defaults.WarnThresholdPercent
	}
	if c.ThrottleRecency <= 0 {
		c.ThrottleRecency = defaults.ThrottleRecency
	}
	if c.ThrottlePenalty <= 0 || c.ThrottlePenalty > 1 {
		c.ThrottlePenalty = defaults.ThrottlePenalty
	}
}
