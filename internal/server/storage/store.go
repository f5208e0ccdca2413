// Package storage defines the server's authoritative store behind a
// transactional seam. The reconciliation engine runs one transaction per
// action; the Tx interface exposes the row-locking reads that serialize
// racing devices on the same attendee or event.
package storage

import (
	"context"
	"time"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/server/models"
)

// Tx is the set of operations available inside one transaction. The
// ForUpdate variants take a row lock (or the in-memory equivalent) so that
// state and capacity checks and the mutation they guard are serialized per
// attendee / per event.
type Tx interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	GetEventForUpdate(ctx context.Context, eventID string) (*models.Event, error)
	InsertEvent(ctx context.Context, event *models.Event) error

	GetAttendee(ctx context.Context, eventID, attendeeID string) (*models.Attendee, error)
	GetAttendeeForUpdate(ctx context.Context, eventID, attendeeID string) (*models.Attendee, error)
	ListAttendees(ctx context.Context, eventID string, filters models.RosterFilters) ([]models.Attendee, error)
	InsertAttendee(ctx context.Context, attendee *models.Attendee) error
	UpdateAttendeeStatus(ctx context.Context, attendeeID string, status api.ParticipationStatus, checkInTime *time.Time) error

	// CountByEvent returns the live registered count (registered plus
	// checked-in, excluding cancelled and waitlisted) and the checked-in
	// count.
	CountByEvent(ctx context.Context, eventID string) (registered, checkedIn int, err error)

	// LedgerSeen reports whether the (deviceID, localID) pair was already
	// applied.
	LedgerSeen(ctx context.Context, deviceID, localID string) (bool, error)
	LedgerRecord(ctx context.Context, action *models.AppliedAction) error
	RecentActivity(ctx context.Context, eventID string, limit int) ([]api.Activity, error)

	UpsertDeviceStatus(ctx context.Context, status *models.DeviceStatus) error
	PendingCountForStaff(ctx context.Context, staffID string) (pending, devices int, err error)
}

// Store opens transactions against the authoritative database.
type Store interface {
	// InTx runs fn in one transaction, committing on nil and rolling back
	// on error.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	RunMigrations(ctx context.Context) error
	Close() error
}
