// Package services implements the device-side application logic: queueing
// check-ins while offline, syncing the queue to the server, and staging
// conflicts for staff resolution.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/client/models"
	"github.com/gatherhall/doorsync/internal/client/repositories/metadata"
	"github.com/gatherhall/doorsync/internal/client/repositories/queue"
	"github.com/gatherhall/doorsync/internal/client/repositories/snapshots"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/logging"
)

// CheckInService records staff actions at the door. Every action is
// persisted to the queue before the call returns; a persistence failure is
// fatal for that action and surfaces synchronously so staff see it.
type CheckInService struct {
	queueRepo queue.Repository
	snapRepo  snapshots.Repository
	metaRepo  metadata.Repository
	logger    logging.Logger
}

func NewCheckInService(q queue.Repository, s snapshots.Repository, m metadata.Repository, l logging.Logger) *CheckInService {
	return &CheckInService{
		queueRepo: q,
		snapRepo:  s,
		metaRepo:  m,
		logger:    l.With("module", "checkin"),
	}
}

// DeviceID returns this installation's stable device identity, creating and
// persisting one on first use.
func (s *CheckInService) DeviceID(ctx context.Context) (string, error) {
	value, err := s.metaRepo.Get(ctx, metadata.KeyDeviceID)
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	if len(value) > 0 {
		return string(value), nil
	}

	id := models.NewDeviceID()
	if err := s.metaRepo.Set(ctx, metadata.KeyDeviceID, []byte(id)); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}
	s.logger.Info(ctx, "device identity created", "device_id", id)
	return id, nil
}

// CheckIn queues a check-in for a known registrant and optimistically flips
// the cached status for immediate UI feedback.
func (s *CheckInService) CheckIn(ctx context.Context, eventID, attendeeID, notes string) (*models.PendingAction, error) {
	deviceID, err := s.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	action := &models.PendingAction{
		Action: api.Action{
			LocalID:    models.NewLocalID(deviceID),
			DeviceID:   deviceID,
			EventID:    eventID,
			AttendeeID: attendeeID,
			Type:       api.ActionCheckIn,
			Notes:      notes,
			CreatedAt:  time.Now().UTC(),
		},
	}
	return s.enqueue(ctx, action)
}

// ManualEntry queues a walk-in registration created at the door.
func (s *CheckInService) ManualEntry(ctx context.Context, eventID, displayName, notes string) (*models.PendingAction, error) {
	deviceID, err := s.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	action := &models.PendingAction{
		Action: api.Action{
			LocalID:          models.NewLocalID(deviceID),
			DeviceID:         deviceID,
			EventID:          eventID,
			Type:             api.ActionManualEntry,
			DisplayName:      displayName,
			RegistrationType: api.RegistrationWalkIn,
			Notes:            notes,
			CreatedAt:        time.Now().UTC(),
		},
	}
	return s.enqueue(ctx, action)
}

func (s *CheckInService) enqueue(ctx context.Context, action *models.PendingAction) (*models.PendingAction, error) {
	if err := action.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	if err := s.queueRepo.Enqueue(ctx, action); err != nil {
		// Never swallow this: an unpersisted action is lost the moment the
		// app closes.
		s.logger.Error(ctx, "enqueue failed", "local_id", action.LocalID, "error", err)
		return nil, err
	}

	if action.AttendeeID != "" {
		if err := s.snapRepo.ApplyOptimistic(ctx, action.EventID, action.AttendeeID, api.StatusCheckedIn); err != nil {
			// The snapshot may be absent or expired; the queued action is
			// safe either way.
			if !errors.Is(err, common.ErrNotFound) && !errors.Is(err, common.ErrSnapshotExpired) {
				s.logger.Warn(ctx, "optimistic update failed", "local_id", action.LocalID, "error", err)
			}
		}
	}

	s.logger.Info(ctx, "action queued",
		"local_id", action.LocalID, "type", action.Type, "event_id", action.EventID)
	return action, nil
}

// PendingCount reports the number of queued, unconfirmed actions.
func (s *CheckInService) PendingCount(ctx context.Context) (int, error) {
	return s.queueRepo.CountPending(ctx)
}

// Roster returns the cached roster for an event, if present and unexpired.
func (s *CheckInService) Roster(ctx context.Context, eventID string) ([]models.AttendeeSnapshot, *api.Capacity, error) {
	return s.snapRepo.Get(ctx, eventID)
}
