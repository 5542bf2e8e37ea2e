package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/accmux/internal/domain"
	"github.com/bnema/accmux/internal/ports"
)

// DefaultSettleDelay is how long a switch waits after killing the old process
// before the session is reassigned, so the terminated process can release its
// resources.
const DefaultSettleDelay = time.Second

// SwitchService orchestrates a live account switch for a running session:
// halt the current process, wait for quiescence, reassign, signal respawn,
// notify. It keeps no state between switches except the per-session
// last-prompt cache.
type SwitchService struct {
	registry    *RegistryService
	proc        ports.ProcessController
	notifier    ports.Notifier
	clock       ports.Clock
	logger      *slog.Logger
	settleDelay time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	prompts map[domain.SessionID]string
}

func NewSwitchService(registry *RegistryService, proc ports.ProcessController, notifier ports.Notifier, clock ports.Clock, logger *slog.Logger, settleDelay time.Duration) *SwitchService {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}

	return &SwitchService{
		registry:    registry,
		proc:        proc,
		notifier:    notifier,
		clock:       clock,
		logger:      logger,
		settleDelay: settleDelay,
		sleep:       sleepContext,
		prompts:     map[domain.SessionID]string{},
	}
}

type SwitchRequest struct {
	SessionID     domain.SessionID
	FromAccountID domain.AccountID
	ToAccountID   domain.AccountID
	Reason        string
	Automatic     bool
}

// ExecuteSwitch runs one switch to completion. It returns (nil, nil) when the
// target account cannot be resolved; nothing is killed and no notification is
// sent in that case. A kill failure is logged and the switch continues. Any
// failure after resolution emits exactly one switch-failed notification and
// returns a nil result; the session keeps its previous assignment. The
// service does not retry, and callers must serialize switches per session.
func (s *SwitchService) ExecuteSwitch(ctx context.Context, req SwitchRequest) (*domain.SwitchResult, error) {
	to, err := s.registry.Get(ctx, req.ToAccountID)
	if err != nil {
		return nil, fmt.Errorf("resolve target account: %w", err)
	}
	if to == nil {
		s.logger.Debug("switch target not found, skipping",
			"session", req.SessionID, "account", req.ToAccountID)
		return nil, nil
	}

	s.notifier.Send(ChannelSwitchStarted, SwitchStartedPayload{
		SessionID:     req.SessionID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   to.ID,
		ToAccountName: to.Name,
	})

	// Best effort: a stuck or already-gone process must not block recovery.
	if killed, err := s.proc.Kill(ctx, req.SessionID); err != nil {
		s.logger.Warn("kill session process failed, continuing switch",
			"session", req.SessionID, "error", err)
	} else if !killed {
		s.logger.Debug("no process to kill for session", "session", req.SessionID)
	}

	if err := s.sleep(ctx, s.settleDelay); err != nil {
		return nil, s.fail(req, to.ID, fmt.Errorf("settle delay: %w", err))
	}

	if _, err := s.registry.AssignToSession(ctx, req.SessionID, to.ID); err != nil {
		return nil, s.fail(req, to.ID, fmt.Errorf("reassign session: %w", err))
	}

	s.notifier.Send(ChannelSwitchRespawn, SwitchRespawnPayload{
		SessionID:  req.SessionID,
		AccountID:  to.ID,
		ConfigDir:  to.ConfigDir,
		LastPrompt: s.lastPrompt(req.SessionID),
		Reason:     req.Reason,
	})

	fromName := string(req.FromAccountID)
	if from, err := s.registry.Get(ctx, req.FromAccountID); err == nil && from != nil {
		fromName = from.Name
	}

	s.notifier.Send(ChannelSwitchCompleted, SwitchCompletedPayload{
		SessionID:       req.SessionID,
		FromAccountID:   req.FromAccountID,
		ToAccountID:     to.ID,
		FromAccountName: fromName,
		ToAccountName:   to.Name,
		Automatic:       req.Automatic,
	})

	return &domain.SwitchResult{
		SessionID:     req.SessionID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   to.ID,
		Reason:        req.Reason,
		Automatic:     req.Automatic,
		CompletedAt:   s.clock.Now(),
	}, nil
}

func (s *SwitchService) fail(req SwitchRequest, toID domain.AccountID, err error) error {
	s.logger.Error("account switch failed",
		"session", req.SessionID, "from", req.FromAccountID, "to", toID, "error", err)

	s.notifier.Send(ChannelSwitchFailed, SwitchFailedPayload{
		SessionID:     req.SessionID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   toID,
		Error:         err.Error(),
	})

	return err
}

// RecordLastPrompt caches the most recent user prompt for a session so a
// respawned process can pick up where it left off.
func (s *SwitchService) RecordLastPrompt(sessionID domain.SessionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts[sessionID] = text
}

// CleanupSession drops the session's cached prompt. Must be called when a
// session ends; calling it again is a no-op.
func (s *SwitchService) CleanupSession(sessionID domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.prompts, sessionID)
}

func (s *SwitchService) lastPrompt(sessionID domain.SessionID) *string {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt, ok := s.prompts[sessionID]
	if !ok {
		return nil
	}

	return &prompt
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
