package cmd

import (
	"fmt"
	"time"

	"github.com/bnema/accmux/internal/application"
	"github.com/bnema/accmux/internal/domain"
	"github.com/spf13/cobra"
)

func newConfigCmd(app *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and tune automatic switching",
	}

	configCmd.AddCommand(
		newConfigShowCmd(app),
		newConfigSetCmd(app),
	)

	return configCmd
}

func newConfigShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current switch configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.registry.SwitchConfig(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "enabled:              %t\n", cfg.Enabled)
			fmt.Fprintf(out, "strategy:             %s\n", cfg.Strategy)
			fmt.Fprintf(out, "warn threshold:       %d%%\n", cfg.WarnThresholdPercent)
			fmt.Fprintf(out, "prompt before switch: %t\n", cfg.PromptBeforeSwitch)
			fmt.Fprintf(out, "throttle recency:     %s\n", cfg.ThrottleRecency)
			fmt.Fprintf(out, "throttle penalty:     %.2f\n", cfg.ThrottlePenalty)

			return nil
		},
	}
}

func newConfigSetCmd(app *app) *cobra.Command {
	var (
		enabled         bool
		warnThreshold   int
		promptBefore    bool
		strategy        string
		throttleRecency time.Duration
		throttlePenalty float64
	)

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change switch configuration fields",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := application.UpdateSwitchConfigParams{}

			if cmd.Flags().Changed("enabled") {
				params.Enabled = &enabled
			}
			if cmd.Flags().Changed("warn-threshold") {
				if warnThreshold < 1 || warnThreshold > 100 {
					return fmt.Errorf("warn threshold must be between 1 and 100, got %d", warnThreshold)
				}
				params.WarnThresholdPercent = &warnThreshold
			}
			if cmd.Flags().Changed("prompt-before-switch") {
				params.PromptBeforeSwitch = &promptBefore
			}
			if cmd.Flags().Changed("strategy") {
				s := domain.SelectionStrategy(strategy)
				if s != domain.StrategyLeastUsed && s != domain.StrategyRoundRobin {
					return fmt.Errorf("unknown strategy %q", strategy)
				}
				params.Strategy = &s
			}
			if cmd.Flags().Changed("throttle-recency") {
				params.ThrottleRecency = &throttleRecency
			}
			if cmd.Flags().Changed("throttle-penalty") {
				if throttlePenalty <= 0 || throttlePenalty > 1 {
					return fmt.Errorf("throttle penalty must be in (0, 1], got %g", throttlePenalty)
				}
				params.ThrottlePenalty = &throttlePenalty
			}

			cfg, err := app.registry.UpdateSwitchConfig(cmd.Context(), params)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Switch configuration updated (strategy: %s, enabled: %t)\n",
				cfg.Strategy, cfg.Enabled)
			return nil
		},
	}

	setCmd.Flags().BoolVar(&enabled, "enabled", true, "enable automatic switching")
	setCmd.Flags().IntVar(&warnThreshold, "warn-threshold", 80, "usage percent at which to warn")
	setCmd.Flags().BoolVar(&promptBefore, "prompt-before-switch", false, "ask before an automatic switch")
	setCmd.Flags().StringVar(&strategy, "strategy", string(domain.StrategyLeastUsed), "selection strategy (least_used or round_robin)")
	setCmd.Flags().DurationVar(&throttleRecency, "throttle-recency", 5*time.Minute, "how recent a throttle must be to penalize an account")
	setCmd.Flags().Float64Var(&throttlePenalty, "throttle-penalty", 0.5, "capacity multiplier for recently throttled accounts")

	return setCmd
}
