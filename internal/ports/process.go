package ports

import (
	"context"

	"github.com/bnema/accmux/internal/domain"
)

// ProcessController terminates the agent process behind a session. Kill is
// best-effort: it reports whether a process was terminated and may fail
// without blocking a switch.
type ProcessController interface {
	Kill(ctx context.Context, sessionID domain.SessionID) (bool, error)
}
