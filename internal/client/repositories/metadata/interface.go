package metadata

import (
	"context"
)

// Well-known metadata keys.
const (
	KeyDeviceID   = "device_id"
	KeyLastSyncAt = "last_sync_at"
	KeyStaffToken = "staff_token"
)

// Repository is a small durable key-value store for per-installation state:
// the device identity, the last successful sync time, and the staff token.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
