// Package roster serves read-side views of an event roster: attendee
// listings, live capacity counts and the organizer dashboard.
package roster

import (
	"context"
	"fmt"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/server/models"
	"github.com/gatherhall/doorsync/internal/server/storage"
)

// DefaultActivityLimit caps the dashboard's recent check-in feed.
const DefaultActivityLimit = 20

type Service struct {
	store         storage.Store
	activityLimit int
}

func NewService(store storage.Store) *Service {
	return &Service{store: store, activityLimit: DefaultActivityLimit}
}

// SetActivityLimit overrides the dashboard activity feed length.
func (s *Service) SetActivityLimit(n int) {
	if n > 0 {
		s.activityLimit = n
	}
}

// GetAttendees returns the event roster, optionally narrowed by status and
// registration type.
func (s *Service) GetAttendees(ctx context.Context, eventID string, filters models.RosterFilters) ([]api.Attendee, error) {
	var out []api.Attendee
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return fmt.Errorf("event %s: %w", eventID, err)
		}
		attendees, err := tx.ListAttendees(ctx, eventID, filters)
		if err != nil {
			return err
		}
		out = make([]api.Attendee, 0, len(attendees))
		for i := range attendees {
			out = append(out, *attendees[i].Wire())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetCapacity recomputes the capacity snapshot from live counts. Cached
// client copies are advisory only, so this never reads anything stored.
func (s *Service) GetCapacity(ctx context.Context, eventID string) (*api.Capacity, error) {
	var snapshot *api.Capacity
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		snapshot, err = capacitySnapshot(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Dashboard assembles the organizer view: live capacity plus the most
// recent check-in activity.
func (s *Service) Dashboard(ctx context.Context, eventID string) (*api.DashboardResponse, error) {
	var resp *api.DashboardResponse
	err := s.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		snapshot, err := capacitySnapshot(ctx, tx, eventID)
		if err != nil {
			return err
		}
		activity, err := tx.RecentActivity(ctx, eventID, s.activityLimit)
		if err != nil {
			return err
		}
		resp = &api.DashboardResponse{
			Capacity: *snapshot,
			Recent:   activity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func capacitySnapshot(ctx context.Context, tx storage.Tx, eventID string) (*api.Capacity, error) {
	event, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	registered, checkedIn, err := tx.CountByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &api.Capacity{
		EventID:    event.ID,
		Capacity:   event.Capacity,
		Registered: registered,
		CheckedIn:  checkedIn,
	}, nil
}
