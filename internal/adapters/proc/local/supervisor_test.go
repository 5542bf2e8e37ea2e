package local

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKillUntrackedSessionReturnsFalse(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(quietLogger())

	killed, err := s.Kill(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, killed)
}

func TestStartRequiresCommand(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(quietLogger())

	_, err := s.Start(context.Background(), "sess-1", "/tmp", nil)
	require.Error(t, err)
}

func TestStartThenKill(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(quietLogger())

	_, err := s.Start(context.Background(), "sess-1", t.TempDir(), []string{"sleep", "30"})
	require.NoError(t, err)

	killed, err := s.Kill(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, killed)

	// A second kill finds nothing.
	killed, err = s.Kill(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, killed)
}
