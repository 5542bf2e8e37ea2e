// Package local tracks agent processes spawned by this CLI, keyed by session
// id, and offers best-effort termination for switches.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/bnema/accmux/internal/domain"
	"github.com/bnema/accmux/internal/ports"
)

type Supervisor struct {
	logger *slog.Logger

	mu    sync.Mutex
	procs map[domain.SessionID]*exec.Cmd
}

var _ ports.ProcessController = (*Supervisor)(nil)

func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		logger: logger,
		procs:  map[domain.SessionID]*exec.Cmd{},
	}
}

// Start launches the agent command for the session under the account's config
// directory. A previous process for the same session is replaced in the table
// but not killed; callers switch via the SwitchService, which kills first.
func (s *Supervisor) Start(ctx context.Context, sessionID domain.SessionID, configDir string, argv []string) (*exec.Cmd, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("start session %s: empty command", sessionID)
	}

	child := exec.CommandContext(ctx, argv[0], argv[1:]...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Stdin = os.Stdin
	child.Env = append(os.Environ(),
		"ACCMUX_SESSION_ID="+string(sessionID),
		"ACCMUX_CONFIG_DIR="+configDir,
	)

	if err := child.Start(); err != nil {
		return nil, fmt.Errorf("start agent process: %w", err)
	}

	s.mu.Lock()
	s.procs[sessionID] = child
	s.mu.Unlock()

	s.logger.Debug("agent process started",
		"session", sessionID, "pid", child.Process.Pid, "config_dir", configDir)

	return child, nil
}

// Kill terminates the session's tracked process. Returns false when no
// process is tracked for the session.
func (s *Supervisor) Kill(_ context.Context, sessionID domain.SessionID) (bool, error) {
	s.mu.Lock()
	child, ok := s.procs[sessionID]
	delete(s.procs, sessionID)
	s.mu.Unlock()

	if !ok || child.Process == nil {
		return false, nil
	}

	if err := child.Process.Kill(); err != nil {
		return false, fmt.Errorf("kill session %s: %w", sessionID, err)
	}

	// Reap the child so it does not linger as a zombie.
	go func() { _ = child.Wait() }()

	s.logger.Debug("agent process killed", "session", sessionID, "pid", child.Process.Pid)

	return true, nil
}

// Wait blocks until the session's process exits. Used by the run command to
// tie the CLI's lifetime to the spawned agent.
func (s *Supervisor) Wait(sessionID domain.SessionID) error {
	s.mu.Lock()
	child, ok := s.procs[sessionID]
	s.mu.Unlock()

	if !ok {
		return nil
	}

	if err := child.Wait(); err != nil {
		return fmt.Errorf("wait for session %s: %w", sessionID, err)
	}

	return nil
}
