// Package client provides the device-side API client for the check-in
// server and the local database wiring.
package client

import (
	"context"

	"github.com/gatherhall/doorsync/internal/api"
)

// Client is the transport the sync service talks through. Implementations
// must map outright transport failures and 5xx responses to
// common.ErrRetryable so the caller knows the queue was left untouched.
type Client interface {
	// SubmitBatch ships queued actions for one event and returns per-action
	// outcomes in submission order plus the fresh roster.
	SubmitBatch(ctx context.Context, eventID string, req *api.BatchRequest) (*api.BatchResponse, error)

	// GetRoster fetches the authoritative attendee list and capacity.
	GetRoster(ctx context.Context, eventID string) (*api.RosterResponse, error)

	// ReportPending reports this device's locally queued action count.
	ReportPending(ctx context.Context, deviceID string, pending int) error

	// Ping probes server reachability.
	Ping(ctx context.Context) error

	// SetToken installs the staff access token attached to every request.
	SetToken(token string)

	Close() error
}
