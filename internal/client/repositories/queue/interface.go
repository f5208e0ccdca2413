package queue

import (
	"context"

	"github.com/gatherhall/doorsync/internal/client/models"
)

// Repository is the durable offline action queue plus the staged-conflict
// list. Losing a queued action before a successful sync is data loss, so
// Enqueue must persist before returning and any storage failure is returned
// synchronously to the caller.
type Repository interface {
	// Enqueue persists a new pending action. The action's Seq is assigned by
	// the store.
	Enqueue(ctx context.Context, action *models.PendingAction) error

	// ListPending returns pending actions oldest-first. eventID narrows to
	// one event; empty returns all. Order survives process restarts.
	ListPending(ctx context.Context, eventID string) ([]models.PendingAction, error)

	// Remove drops resolved actions (applied or duplicate) from the queue.
	Remove(ctx context.Context, localIDs []string) error

	// IncrementAttempts bumps the sync-attempt counter for the given
	// actions.
	IncrementAttempts(ctx context.Context, localIDs []string) error

	// CountPending returns the number of queued actions across all events.
	CountPending(ctx context.Context) (int, error)

	// AddConflict stages a conflict for staff review.
	AddConflict(ctx context.Context, conflict *models.SyncConflict) error

	// ListConflicts returns staged conflicts, oldest detection first.
	ListConflicts(ctx context.Context) ([]models.SyncConflict, error)

	// GetConflict returns one staged conflict by local id.
	GetConflict(ctx context.Context, localID string) (*models.SyncConflict, error)

	// RemoveConflicts drops resolved conflicts.
	RemoveConflicts(ctx context.Context, localIDs []string) error
}
