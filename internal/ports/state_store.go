package ports

import "context"

// State keys the registry persists under.
const (
	StateKeyAccounts      = "accounts"
	StateKeyAssignments   = "assignments"
	StateKeySwitchConfig  = "switch_config"
	StateKeyRotationOrder = "rotation_order"
	StateKeyRotationIndex = "rotation_index"
)

// StateStore is the durable key-value store the registry materializes its
// state from. Get decodes the value stored under key into out and reports
// whether the key existed; Set replaces it.
type StateStore interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}
