package application

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/accmux/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func addAccount(t *testing.T, registry *RegistryService, name, email string) domain.Account {
	t.Helper()

	account, err := registry.Add(context.Background(), AddAccountParams{
		Name:      name,
		Email:     email,
		ConfigDir: "/home/u/.agent/" + name,
	})
	require.NoError(t, err)

	return account
}

func TestAddFirstAccountBecomesDefault(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())

	first := addAccount(t, registry, "primary", "primary@example.com")
	second := addAccount(t, registry, "backup", "backup@example.com")

	assert.True(t, first.IsDefault)
	assert.False(t, second.IsDefault)
	assert.Equal(t, domain.StatusActive, first.Status)
	assert.True(t, first.AutoSwitch)
	assert.NotEmpty(t, first.ID)
}

func TestAddDuplicateEmailFailsAndLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())
	addAccount(t, registry, "primary", "primary@example.com")

	_, err := registry.Add(context.Background(), AddAccountParams{
		Name:      "dupe",
		Email:     "Primary@Example.com",
		ConfigDir: "/home/u/.agent/dupe",
	})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)

	all, err := registry.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetReturnsNilForUnknownID(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())

	account, err := registry.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestFindByEmailAndConfigDir(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())
	added := addAccount(t, registry, "primary", "primary@example.com")

	byEmail, err := registry.FindByEmail(context.Background(), " PRIMARY@example.com ")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, added.ID, byEmail.ID)

	byDir, err := registry.FindByConfigDir(context.Background(), "/home/u/.agent/primary")
	require.NoError(t, err)
	require.NotNil(t, byDir)
	assert.Equal(t, added.ID, byDir.ID)

	missing, err := registry.FindByEmail(context.Background(), "other@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateSetDefaultClearsOthers(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())
	first := addAccount(t, registry, "primary", "primary@example.com")
	second := addAccount(t, registry, "backup", "backup@example.com")

	isDefault := true
	updated, err := registry.Update(context.Background(), second.ID, UpdateAccountParams{IsDefault: &isDefault})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.IsDefault)

	all, err := registry.GetAll(context.Background())
	require.NoError(t, err)
	defaults := 0
	for _, account := range all {
		if account.IsDefault {
			defaults++
			assert.Equal(t, second.ID, account.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	reloaded, err := registry.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)
}

func TestUpdateUnknownIDReturnsNil(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())

	name := "renamed"
	updated, err := registry.Update(context.Background(), "nope", UpdateAccountParams{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestUpdateEmailToExistingOneFails(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())
	addAccount(t, registry, "primary", "primary@example.com")
	second := addAccount(t, registry, "backup", "backup@example.com")

	email := "primary@example.com"
	_, err := registry.Update(context.Background(), second.ID, UpdateAccountParams{Email: &email})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestRemoveCascadesAssignmentsAndRotation(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())
	first := addAccount(t, registry, "primary", "primary@example.com")
	second := addAccount(t, registry, "backup", "backup@example.com")

	_, err := registry.AssignToSession(context.Background(), "sess-1", first.ID)
	require.NoError(t, err)
	_, err = registry.AssignToSession(context.Background(), "sess-2", second.ID)
	require.NoError(t, err)

	removed, err := registry.Remove(context.Background(), first.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	assignment, err := registry.GetAssignment(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Nil(t, assignment)

	remaining, err := registry.GetAssignment(context.Background(), "sess-2")
	require.NoError(t, err)
	require.NotNil(t, remaining)
	assert.Equal(t, second.ID, remaining.AccountID)

	rotation, err := registry.loadRotation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.AccountID{second.ID}, rotation.Order)

	removedAgain, err := registry.Remove(context.Background(), first.ID)
	require.NoError(t, err)
	assert.False(t, removedAgain)
}

func TestSetStatusThrottledStampsTimestamp(t *testing.T) {
	t.Parallel()

	clock := testClock()
	registry := newTestRegistry(newMemStore(), clock)
	account := addAccount(t, registry, "primary", "primary@example.com")

	clock.Advance(10 * time.Minute)
	require.NoError(t, registry.SetStatus(context.Background(), account.ID, domain.StatusThrottled))

	reloaded, err := registry.Get(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusThrottled, reloaded.Status)
	assert.Equal(t, clock.Now(), reloaded.LastThrottledAt)

	// Unknown id is a no-op, not an error.
	require.NoError(t, registry.SetStatus(context.Background(), "nope", domain.StatusDisabled))
}

func TestTouchLastUsed(t *testing.T) {
	t.Parallel()

	clock := testClock()
	registry := newTestRegistry(newMemStore(), clock)
	account := addAccount(t, registry, "primary", "primary@example.com")

	clock.Advance(time.Hour)
	require.NoError(t, registry.TouchLastUsed(context.Background(), account.ID))

	reloaded, err := registry.Get(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), reloaded.LastUsedAt)
}

func TestAssignToSessionOverwritesAndTouchesAccount(t *testing.T) {
	t.Parallel()

	clock := testClock()
	registry := newTestRegistry(newMemStore(), clock)
	first := addAccount(t, registry, "primary", "primary@example.com")
	second := addAccount(t, registry, "backup", "backup@example.com")

	_, err := registry.AssignToSession(context.Background(), "sess-1", first.ID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	assignment, err := registry.AssignToSession(context.Background(), "sess-1", second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, assignment.AccountID)

	all, err := registry.GetAllAssignments(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	touched, err := registry.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), touched.LastUsedAt)
}

func TestRemoveAssignment(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())
	account := addAccount(t, registry, "primary", "primary@example.com")

	_, err := registry.AssignToSession(context.Background(), "sess-1", account.ID)
	require.NoError(t, err)

	removed, err := registry.RemoveAssignment(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removedAgain, err := registry.RemoveAssignment(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, removedAgain)
}

func TestReconcileAssignmentsRemovesExactlyTheStale(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())
	account := addAccount(t, registry, "primary", "primary@example.com")

	for _, session := range []domain.SessionID{"sess-1", "sess-2", "sess-3"} {
		_, err := registry.AssignToSession(context.Background(), session, account.ID)
		require.NoError(t, err)
	}

	active := map[domain.SessionID]struct{}{"sess-2": {}}
	removed, err := registry.ReconcileAssignments(context.Background(), active)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	remaining, err := registry.GetAllAssignments(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, domain.SessionID("sess-2"), remaining[0].SessionID)

	removedAgain, err := registry.ReconcileAssignments(context.Background(), active)
	require.NoError(t, err)
	assert.Zero(t, removedAgain)
}

func TestDefaultAccountFallsBackToFirstActive(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())
	first := addAccount(t, registry, "primary", "primary@example.com")
	second := addAccount(t, registry, "backup", "backup@example.com")

	account, err := registry.DefaultAccount(context.Background())
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, first.ID, account.ID)

	require.NoError(t, registry.SetStatus(context.Background(), first.ID, domain.StatusThrottled))

	fallback, err := registry.DefaultAccount(context.Background())
	require.NoError(t, err)
	require.NotNil(t, fallback)
	assert.Equal(t, second.ID, fallback.ID)

	require.NoError(t, registry.SetStatus(context.Background(), second.ID, domain.StatusDisabled))

	none, err := registry.DefaultAccount(context.Background())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpdateSwitchConfigPartial(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(newMemStore(), testClock())

	cfg, err := registry.SwitchConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyLeastUsed, cfg.Strategy)
	assert.True(t, cfg.Enabled)

	strategy := domain.StrategyRoundRobin
	threshold := 70
	updated, err := registry.UpdateSwitchConfig(context.Background(), UpdateSwitchConfigParams{
		Strategy:             &strategy,
		WarnThresholdPercent: &threshold,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyRoundRobin, updated.Strategy)
	assert.Equal(t, 70, updated.WarnThresholdPercent)
	assert.True(t, updated.Enabled)

	reloaded, err := registry.SwitchConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, updated, reloaded)
}
