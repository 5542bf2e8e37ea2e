// Package ledger is a file-backed usage-stats provider. Token events are
// appended to a TOML ledger and summed per account over the midnight-aligned
// window containing now.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/accmux/internal/domain"
	"github.com/bnema/accmux/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	ledgerFileMode = 0o600
	ledgerDirMode  = 0o700
)

type Ledger struct {
	path  string
	clock ports.Clock
	mu    sync.RWMutex
}

var _ ports.UsageStatsProvider = (*Ledger)(nil)

func NewLedger(path string, clock ports.Clock) (*Ledger, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger path: %w", err)
	}

	return &Ledger{path: filepath.Clean(absPath), clock: clock}, nil
}

type ledgerFile struct {
	Version int           `toml:"version"`
	Events  []eventRecord `toml:"events"`
}

type eventRecord struct {
	AccountID           string `toml:"account_id"`
	At                  string `toml:"at"`
	InputTokens         int64  `toml:"input_tokens"`
	OutputTokens        int64  `toml:"output_tokens"`
	CacheReadTokens     int64  `toml:"cache_read_tokens,omitempty"`
	CacheCreationTokens int64  `toml:"cache_creation_tokens,omitempty"`
}

// Record appends one usage event for the account.
func (l *Ledger) Record(ctx context.Context, id domain.AccountID, usage domain.WindowUsage, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := l.read()
	if err != nil {
		return err
	}

	if at.IsZero() {
		at = l.clock.Now()
	}

	file.Events = append(file.Events, eventRecord{
		AccountID:           string(id),
		At:                  at.Format(time.RFC3339),
		InputTokens:         usage.InputTokens,
		OutputTokens:        usage.OutputTokens,
		CacheReadTokens:     usage.CacheReadTokens,
		CacheCreationTokens: usage.CacheCreationTokens,
	})

	return l.write(file)
}

func (l *Ledger) Ready() bool {
	return true
}

// AccountUsageInWindow sums the account's events inside the current
// midnight-aligned window of the given size.
func (l *Ledger) AccountUsageInWindow(ctx context.Context, id domain.AccountID, window time.Duration) (domain.WindowUsage, error) {
	if err := ctx.Err(); err != nil {
		return domain.WindowUsage{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	file, err := l.read()
	if err != nil {
		return domain.WindowUsage{}, err
	}

	start, end := domain.WindowBounds(l.clock.Now(), window)

	var total domain.WindowUsage
	for _, event := range file.Events {
		if event.AccountID != string(id) {
			continue
		}
		at, err := time.Parse(time.RFC3339, event.At)
		if err != nil {
			continue
		}
		if at.Before(start) || !at.Before(end) {
			continue
		}
		total = total.Add(domain.WindowUsage{
			InputTokens:         event.InputTokens,
			OutputTokens:        event.OutputTokens,
			CacheReadTokens:     event.CacheReadTokens,
			CacheCreationTokens: event.CacheCreationTokens,
		})
	}

	return total, nil
}

func (l *Ledger) read() (ledgerFile, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ledgerFile{Version: 1}, nil
		}
		return ledgerFile{}, fmt.Errorf("read usage ledger: %w", err)
	}

	var file ledgerFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return ledgerFile{}, fmt.Errorf("decode usage ledger: %w", err)
	}
	if file.Version == 0 {
		file.Version = 1
	}

	return file, nil
}

func (l *Ledger) write(file ledgerFile) error {
	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode usage ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), ledgerDirMode); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(l.path), ".usage-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tempFile.Chmod(ledgerFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp ledger file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp ledger file: %w", err)
	}

	if err := os.Rename(tempName, l.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}

	cleanup = false
	return nil
}
