package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/accmux/internal/domain"
	"github.com/bnema/accmux/internal/ports"
	"github.com/google/uuid"
)

// RegistryService owns all durable account, assignment, rotation and
// switch-config state. Every method performs its read-modify-write against
// the injected store under one mutex, so multi-field transactions (clearing
// the previous default, remove cascades) stay atomic from the caller's point
// of view. Not-found is reported as a nil/false return, never as an error.
type RegistryService struct {
	store ports.StateStore
	clock ports.Clock
	newID func() string

	mu sync.Mutex
}

func NewRegistryService(store ports.StateStore, clock ports.Clock) *RegistryService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &RegistryService{
		store: store,
		clock: clock,
		newID: uuid.NewString,
	}
}

type AddAccountParams struct {
	Name                string
	Email               string
	ConfigDir           string
	AgentType           domain.AgentType
	AuthMethod          domain.AuthMethod
	TokenLimitPerWindow int64
	TokenWindow         time.Duration
}

// Add registers a new account profile. The first account ever added becomes
// the default. Fails with domain.ErrDuplicateEmail when the email is taken.
func (r *RegistryService) Add(ctx context.Context, params AddAccountParams) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return domain.Account{}, err
	}

	email := domain.NormalizeEmail(params.Email)
	for _, existing := range accounts {
		if domain.NormalizeEmail(existing.Email) == email {
			return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrDuplicateEmail, email)
		}
	}

	now := r.clock.Now()
	account := domain.Account{
		ID:                  domain.AccountID(r.newID()),
		Name:                params.Name,
		Email:               params.Email,
		ConfigDir:           params.ConfigDir,
		AgentType:           params.AgentType,
		AuthMethod:          params.AuthMethod,
		Status:              domain.StatusActive,
		IsDefault:           len(accounts) == 0,
		AutoSwitch:          true,
		TokenLimitPerWindow: params.TokenLimitPerWindow,
		TokenWindow:         params.TokenWindow,
		AddedAt:             now,
	}

	if err := account.Validate(); err != nil {
		return domain.Account{}, err
	}

	accounts = append(accounts, account)
	if err := r.saveAccounts(ctx, accounts); err != nil {
		return domain.Account{}, err
	}

	rotation, err := r.loadRotation(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	rotation.Append(account.ID)
	if err := r.saveRotation(ctx, rotation); err != nil {
		return domain.Account{}, err
	}

	return account, nil
}

// Get returns the account with the given id, or nil when unknown.
func (r *RegistryService) Get(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}

	return findAccount(accounts, func(a domain.Account) bool { return a.ID == id }), nil
}

func (r *RegistryService) GetAll(ctx context.Context) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loadAccounts(ctx)
}

func (r *RegistryService) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}

	normalized := domain.NormalizeEmail(email)
	return findAccount(accounts, func(a domain.Account) bool {
		return domain.NormalizeEmail(a.Email) == normalized
	}), nil
}

func (r *RegistryService) FindByConfigDir(ctx context.Context, dir string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}

	return findAccount(accounts, func(a domain.Account) bool { return a.ConfigDir == dir }), nil
}

type UpdateAccountParams struct {
	Name                *string
	Email               *string
	ConfigDir           *string
	AgentType           *domain.AgentType
	AuthMethod          *domain.AuthMethod
	Status              *domain.AccountStatus
	IsDefault           *bool
	AutoSwitch          *bool
	TokenLimitPerWindow *int64
	TokenWindow         *time.Duration
}

// Update applies the non-nil fields to the account and returns the updated
// profile, or nil when the id is unknown. Promoting an account to default
// clears the flag from every other profile in the same write.
func (r *RegistryService) Update(ctx context.Context, id domain.AccountID, params UpdateAccountParams) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOfAccount(accounts, id)
	if idx < 0 {
		return nil, nil
	}

	if params.Email != nil {
		normalized := domain.NormalizeEmail(*params.Email)
		for _, existing := range accounts {
			if existing.ID != id && domain.NormalizeEmail(existing.Email) == normalized {
				return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateEmail, normalized)
			}
		}
		accounts[idx].Email = *params.Email
	}
	if params.Name != nil {
		accounts[idx].Name = *params.Name
	}
	if params.ConfigDir != nil {
		accounts[idx].ConfigDir = *params.ConfigDir
	}
	if params.AgentType != nil {
		accounts[idx].AgentType = *params.AgentType
	}
	if params.AuthMethod != nil {
		accounts[idx].AuthMethod = *params.AuthMethod
	}
	if params.Status != nil {
		accounts[idx].Status = *params.Status
	}
	if params.AutoSwitch != nil {
		accounts[idx].AutoSwitch = *params.AutoSwitch
	}
	if params.TokenLimitPerWindow != nil {
		accounts[idx].TokenLimitPerWindow = *params.TokenLimitPerWindow
	}
	if params.TokenWindow != nil {
		accounts[idx].TokenWindow = *params.TokenWindow
	}
	if params.IsDefault != nil {
		accounts[idx].IsDefault = *params.IsDefault
		if *params.IsDefault {
			for i := range accounts {
				if accounts[i].ID != id {
					accounts[i].IsDefault = false
				}
			}
		}
	}

	if err := r.saveAccounts(ctx, accounts); err != nil {
		return nil, err
	}

	updated := accounts[idx]
	return &updated, nil
}

// Remove deletes the account, its rotation entry and any assignment that
// referenced it. Reports whether an account was removed.
func (r *RegistryService) Remove(ctx context.Context, id domain.AccountID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return false, err
	}

	idx := indexOfAccount(accounts, id)
	if idx < 0 {
		return false, nil
	}

	accounts = append(accounts[:idx], accounts[idx+1:]...)
	if err := r.saveAccounts(ctx, accounts); err != nil {
		return false, err
	}

	rotation, err := r.loadRotation(ctx)
	if err != nil {
		return false, err
	}
	rotation.Delete(id)
	if err := r.saveRotation(ctx, rotation); err != nil {
		return false, err
	}

	assignments, err := r.loadAssignments(ctx)
	if err != nil {
		return false, err
	}
	kept := assignments[:0]
	for _, assignment := range assignments {
		if assignment.AccountID == id {
			continue
		}
		kept = append(kept, assignment)
	}
	if err := r.saveAssignments(ctx, kept); err != nil {
		return false, err
	}

	return true, nil
}

// SetStatus updates the account status; an unknown id is a no-op. Moving to
// throttled stamps LastThrottledAt.
func (r *RegistryService) SetStatus(ctx context.Context, id domain.AccountID, status domain.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return err
	}

	idx := indexOfAccount(accounts, id)
	if idx < 0 {
		return nil
	}

	accounts[idx].Status = status
	if status == domain.StatusThrottled {
		accounts[idx].LastThrottledAt = r.clock.Now()
	}

	return r.saveAccounts(ctx, accounts)
}

func (r *RegistryService) TouchLastUsed(ctx context.Context, id domain.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return err
	}

	idx := indexOfAccount(accounts, id)
	if idx < 0 {
		return nil
	}

	accounts[idx].LastUsedAt = r.clock.Now()
	return r.saveAccounts(ctx, accounts)
}

// AssignToSession binds the session to the account, replacing any previous
// assignment, and touches the account's LastUsedAt.
func (r *RegistryService) AssignToSession(ctx context.Context, sessionID domain.SessionID, accountID domain.AccountID) (domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	assignment := domain.Assignment{
		SessionID:  sessionID,
		AccountID:  accountID,
		AssignedAt: now,
	}

	assignments, err := r.loadAssignments(ctx)
	if err != nil {
		return domain.Assignment{}, err
	}

	replaced := false
	for i := range assignments {
		if assignments[i].SessionID == sessionID {
			assignments[i] = assignment
			replaced = true
			break
		}
	}
	if !replaced {
		assignments = append(assignments, assignment)
	}

	if err := r.saveAssignments(ctx, assignments); err != nil {
		return domain.Assignment{}, err
	}

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return domain.Assignment{}, err
	}
	if idx := indexOfAccount(accounts, accountID); idx >= 0 {
		accounts[idx].LastUsedAt = now
		if err := r.saveAccounts(ctx, accounts); err != nil {
			return domain.Assignment{}, err
		}
	}

	return assignment, nil
}

func (r *RegistryService) GetAssignment(ctx context.Context, sessionID domain.SessionID) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	assignments, err := r.loadAssignments(ctx)
	if err != nil {
		return nil, err
	}

	for _, assignment := range assignments {
		if assignment.SessionID == sessionID {
			found := assignment
			return &found, nil
		}
	}

	return nil, nil
}

func (r *RegistryService) RemoveAssignment(ctx context.Context, sessionID domain.SessionID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	assignments, err := r.loadAssignments(ctx)
	if err != nil {
		return false, err
	}

	kept := assignments[:0]
	removed := false
	for _, assignment := range assignments {
		if assignment.SessionID == sessionID {
			removed = true
			continue
		}
		kept = append(kept, assignment)
	}

	if !removed {
		return false, nil
	}

	return true, r.saveAssignments(ctx, kept)
}

func (r *RegistryService) GetAllAssignments(ctx context.Context) ([]domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loadAssignments(ctx)
}

// ReconcileAssignments deletes every assignment whose session is not in the
// active set and returns how many were removed. Callers run it when the live
// session list is reloaded, so out-of-band session closes cannot leak
// assignments.
func (r *RegistryService) ReconcileAssignments(ctx context.Context, activeSessionIDs map[domain.SessionID]struct{}) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	assignments, err := r.loadAssignments(ctx)
	if err != nil {
		return 0, err
	}

	kept := assignments[:0]
	removed := 0
	for _, assignment := range assignments {
		if _, ok := activeSessionIDs[assignment.SessionID]; !ok {
			removed++
			continue
		}
		kept = append(kept, assignment)
	}

	if removed == 0 {
		return 0, nil
	}

	return removed, r.saveAssignments(ctx, kept)
}

// DefaultAccount returns the default account when it is active, otherwise the
// first active account, otherwise nil.
func (r *RegistryService) DefaultAccount(ctx context.Context) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}

	if account := findAccount(accounts, func(a domain.Account) bool {
		return a.IsDefault && a.Status == domain.StatusActive
	}); account != nil {
		return account, nil
	}

	return findAccount(accounts, func(a domain.Account) bool {
		return a.Status == domain.StatusActive
	}), nil
}

func (r *RegistryService) SwitchConfig(ctx context.Context) (domain.SwitchConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loadSwitchConfig(ctx)
}

type UpdateSwitchConfigParams struct {
	Enabled              *bool
	WarnThresholdPercent *int
	PromptBeforeSwitch   *bool
	Strategy             *domain.SelectionStrategy
	ThrottleRecency      *time.Duration
	ThrottlePenalty      *float64
}

func (r *RegistryService) UpdateSwitchConfig(ctx context.Context, params UpdateSwitchConfigParams) (domain.SwitchConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := r.loadSwitchConfig(ctx)
	if err != nil {
		return domain.SwitchConfig{}, err
	}

	if params.Enabled != nil {
		cfg.Enabled = *params.Enabled
	}
	if params.WarnThresholdPercent != nil {
		cfg.WarnThresholdPercent = *params.WarnThresholdPercent
	}
	if params.PromptBeforeSwitch != nil {
		cfg.PromptBeforeSwitch = *params.PromptBeforeSwitch
	}
	if params.Strategy != nil {
		cfg.Strategy = *params.Strategy
	}
	if params.ThrottleRecency != nil {
		cfg.ThrottleRecency = *params.ThrottleRecency
	}
	if params.ThrottlePenalty != nil {
		cfg.ThrottlePenalty = *params.ThrottlePenalty
	}
	cfg.ApplyDefaults()

	if err := r.saveSwitchConfig(ctx, cfg); err != nil {
		return domain.SwitchConfig{}, err
	}

	return cfg, nil
}

func (r *RegistryService) loadAccounts(ctx context.Context) ([]domain.Account, error) {
	var file accountsFile
	found, err := r.store.Get(ctx, ports.StateKeyAccounts, &file)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if !found {
		return nil, nil
	}
	if err := validateStateVersion(file.Version); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(file.Accounts))
	for _, record := range file.Accounts {
		accounts = append(accounts, fromAccountRecord(record))
	}

	return accounts, nil
}

func (r *RegistryService) saveAccounts(ctx context.Context, accounts []domain.Account) error {
	file := accountsFile{Version: currentStateVersion, Accounts: make([]accountRecord, 0, len(accounts))}
	for _, account := range accounts {
		file.Accounts = append(file.Accounts, toAccountRecord(account))
	}

	if err := r.store.Set(ctx, ports.StateKeyAccounts, file); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}

	return nil
}

func (r *RegistryService) loadAssignments(ctx context.Context) ([]domain.Assignment, error) {
	var file assignmentsFile
	found, err := r.store.Get(ctx, ports.StateKeyAssignments, &file)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	if !found {
		return nil, nil
	}
	if err := validateStateVersion(file.Version); err != nil {
		return nil, err
	}

	assignments := make([]domain.Assignment, 0, len(file.Assignments))
	for _, record := range file.Assignments {
		assignments = append(assignments, fromAssignmentRecord(record))
	}

	return assignments, nil
}

func (r *RegistryService) saveAssignments(ctx context.Context, assignments []domain.Assignment) error {
	file := assignmentsFile{Version: currentStateVersion, Assignments: make([]assignmentRecord, 0, len(assignments))}
	for _, assignment := range assignments {
		file.Assignments = append(file.Assignments, toAssignmentRecord(assignment))
	}

	if err := r.store.Set(ctx, ports.StateKeyAssignments, file); err != nil {
		return fmt.Errorf("save assignments: %w", err)
	}

	return nil
}

func (r *RegistryService) loadSwitchConfig(ctx context.Context) (domain.SwitchConfig, error) {
	var file switchConfigFile
	found, err := r.store.Get(ctx, ports.StateKeySwitchConfig, &file)
	if err != nil {
		return domain.SwitchConfig{}, fmt.Errorf("load switch config: %w", err)
	}
	if !found {
		return domain.DefaultSwitchConfig(), nil
	}
	if err := validateStateVersion(file.Version); err != nil {
		return domain.SwitchConfig{}, err
	}

	return fromSwitchConfigFile(file), nil
}

func (r *RegistryService) saveSwitchConfig(ctx context.Context, cfg domain.SwitchConfig) error {
	if err := r.store.Set(ctx, ports.StateKeySwitchConfig, toSwitchConfigFile(cfg)); err != nil {
		return fmt.Errorf("save switch config: %w", err)
	}

	return nil
}

func (r *RegistryService) loadRotation(ctx context.Context) (domain.RotationState, error) {
	var orderFile rotationOrderFile
	if _, err := r.store.Get(ctx, ports.StateKeyRotationOrder, &orderFile); err != nil {
		return domain.RotationState{}, fmt.Errorf("load rotation order: %w", err)
	}

	var indexFile rotationIndexFile
	if _, err := r.store.Get(ctx, ports.StateKeyRotationIndex, &indexFile); err != nil {
		return domain.RotationState{}, fmt.Errorf("load rotation index: %w", err)
	}

	order := make([]domain.AccountID, 0, len(orderFile.Order))
	for _, id := range orderFile.Order {
		order = append(order, domain.AccountID(id))
	}

	rotation := domain.RotationState{Order: order, Cursor: indexFile.Cursor}
	rotation.Clamp()

	return rotation, nil
}

func (r *RegistryService) saveRotation(ctx context.Context, rotation domain.RotationState) error {
	order := make([]string, 0, len(rotation.Order))
	for _, id := range rotation.Order {
		order = append(order, string(id))
	}

	if err := r.store.Set(ctx, ports.StateKeyRotationOrder, rotationOrderFile{Version: currentStateVersion, Order: order}); err != nil {
		return fmt.Errorf("save rotation order: %w", err)
	}
	if err := r.store.Set(ctx, ports.StateKeyRotationIndex, rotationIndexFile{Version: currentStateVersion, Cursor: rotation.Cursor}); err != nil {
		return fmt.Errorf("save rotation index: %w", err)
	}

	return nil
}

func findAccount(accounts []domain.Account, match func(domain.Account) bool) *domain.Account {
	for _, account := range accounts {
		if match(account) {
			found := account
			return &found
		}
	}

	return nil
}

func indexOfAccount(accounts []domain.Account, id domain.AccountID) int {
	for i := range accounts {
		if accounts[i].ID == id {
			return i
		}
	}

	return -1
}
