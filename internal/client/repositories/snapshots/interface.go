package snapshots

import (
	"context"
	"time"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/client/models"
)

// DefaultTTL is how long a cached roster snapshot stays readable without a
// refresh from the server.
const DefaultTTL = 24 * time.Hour

// Repository is the local roster cache. Entries carry TTL metadata: a
// snapshot older than the TTL is treated as absent on read, even when
// EvictExpired was never called. Snapshots are replaced wholesale, never
// patched, so a partial sync can't leave mixed state.
type Repository interface {
	// Set replaces the snapshot for an event and stamps it with the current
	// time.
	Set(ctx context.Context, eventID string, attendees []models.AttendeeSnapshot, capacity api.Capacity) error

	// Get returns the cached snapshot. common.ErrNotFound when absent,
	// common.ErrSnapshotExpired when past the TTL.
	Get(ctx context.Context, eventID string) ([]models.AttendeeSnapshot, *api.Capacity, error)

	// ApplyOptimistic flips one attendee's status for immediate UI feedback.
	// Advisory only: the next successful sync overwrites it, even if the
	// server rejected the action.
	ApplyOptimistic(ctx context.Context, eventID, attendeeID string, status api.ParticipationStatus) error

	// EvictExpired removes snapshots past the TTL. Callable proactively
	// under storage pressure.
	EvictExpired(ctx context.Context) error
}
