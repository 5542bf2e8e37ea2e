package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bus "github.com/bnema/accmux/internal/adapters/notify/bus"
	local "github.com/bnema/accmux/internal/adapters/proc/local"
	accountsrender "github.com/bnema/accmux/internal/adapters/render/accounts"
	tomlstore "github.com/bnema/accmux/internal/adapters/store/toml"
	usageledger "github.com/bnema/accmux/internal/adapters/usage/ledger"
	"github.com/bnema/accmux/internal/application"
	"github.com/bnema/accmux/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	registry   *application.RegistryService
	switcher   *application.SwitchService
	supervisor *local.Supervisor
	bus        *bus.Bus
	usage      ports.UsageStatsProvider
	ledger     *usageledger.Ledger
	renderer   func([]accountsrender.Row, accountsrender.RenderOptions) (string, error)
	logger     *slog.Logger
	now        func() time.Time
}

func wireApp() (*app, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	cfg := viper.New()
	store, err := tomlstore.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire state store: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetDefault("usage.ledger_path", filepath.Join(homeDir, ".accmux", "usage.toml"))
	cfg.SetDefault("switch.settle_delay_ms", 1000)

	ledger, err := usageledger.NewLedger(cfg.GetString("usage.ledger_path"), ports.SystemClock{})
	if err != nil {
		return nil, fmt.Errorf("wire usage ledger: %w", err)
	}

	registry := application.NewRegistryService(store, ports.SystemClock{})
	supervisor := local.NewSupervisor(logger)
	notifyBus := bus.New()

	settleDelay := time.Duration(cfg.GetInt64("switch.settle_delay_ms")) * time.Millisecond
	switcher := application.NewSwitchService(registry, supervisor, notifyBus, ports.SystemClock{}, logger, settleDelay)

	return &app{
		registry:   registry,
		switcher:   switcher,
		supervisor: supervisor,
		bus:        notifyBus,
		usage:      ledger,
		ledger:     ledger,
		renderer:   accountsrender.Render,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func logLevel() slog.Level {
	if os.Getenv("ACCMUX_DEBUG") != "" {
		return slog.LevelDebug
	}

	return slog.LevelWarn
}
