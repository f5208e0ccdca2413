// Package models holds the client-side view of the check-in data model:
// locally cached roster snapshots, the offline action queue, and conflicts
// awaiting staff resolution.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatherhall/doorsync/internal/api"
)

// PendingAction is one staff action recorded while possibly offline. It is
// immutable from enqueue until the server resolves it: removed on
// applied/duplicate, promoted to SyncConflict on conflict.
type PendingAction struct {
	api.Action

	// SyncAttempts counts sync cycles this action has been submitted in.
	SyncAttempts int

	// Seq is the local enqueue sequence, assigned by the queue repository.
	// Actions are always submitted oldest-Seq first.
	Seq int64
}

// SyncConflict is an action the server refused to auto-apply. ServerState is
// the authoritative record at conflict time; ClientState is the action that
// triggered it. Only an explicit staff decision resolves a conflict.
type SyncConflict struct {
	LocalID     string             `json:"local_id"`
	EventID     string             `json:"event_id"`
	AttendeeID  string             `json:"attendee_id,omitempty"`
	Reason      api.ConflictReason `json:"reason"`
	ServerState *api.Attendee      `json:"server_state,omitempty"`
	ClientState api.Action         `json:"client_state"`
	DetectedAt  time.Time          `json:"detected_at"`
}

// Resolution is a staff decision on a conflict.
type Resolution string

const (
	// ResolutionAcceptServer keeps the authoritative record and drops the
	// local action.
	ResolutionAcceptServer Resolution = "accept-server"
	// ResolutionForceApply re-queues the action flagged so the server skips
	// state and capacity checks.
	ResolutionForceApply Resolution = "force-apply"
	// ResolutionDiscard drops the conflict without further effect.
	ResolutionDiscard Resolution = "discard"
)

// AttendeeSnapshot is the locally cached view of one registrant. Replaced
// wholesale on every successful sync; flipped optimistically when an action
// is queued, pending server confirmation.
type AttendeeSnapshot struct {
	api.Attendee
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// DeviceIdentity is the stable per-installation identifier attributing
// queued actions to this device.
type DeviceIdentity struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDeviceID generates a fresh device identifier.
func NewDeviceID() string {
	return "dev-" + uuid.NewString()
}

// NewLocalID generates an action id unique within the device's lifetime.
// The uuid carries the uniqueness; the timestamp makes ids sortable and
// readable in logs. A collision here is a correctness bug.
func NewLocalID(deviceID string) string {
	return fmt.Sprintf("%s-%d-%s", deviceID, time.Now().UnixNano(), uuid.NewString())
}
