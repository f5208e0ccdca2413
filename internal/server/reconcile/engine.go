// Package reconcile applies batches of possibly-stale, possibly-duplicate
// offline client actions against the authoritative roster.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/logging"
	"github.com/gatherhall/doorsync/internal/server/models"
	"github.com/gatherhall/doorsync/internal/server/storage"
)

// DefaultActionTimeout bounds each action's transaction. Timing out fails
// the batch as retryable rather than leaving an attendee half-transitioned.
const DefaultActionTimeout = 5 * time.Second

// Engine processes one batch of client actions at a time. Each action runs
// in its own transaction: one action's conflict never blocks independent
// actions, and a batch mixing valid and stale actions is the normal case,
// not an error.
//
// Races between devices are settled by the store: the idempotency-ledger
// lookup and the eventual mutation share one transaction, and the state and
// capacity checks read through row locks, so two devices racing on the same
// attendee produce exactly one applied and one conflict.
type Engine struct {
	store         storage.Store
	logger        logging.Logger
	actionTimeout time.Duration

	// now is overridable in tests.
	now func() time.Time
}

func NewEngine(store storage.Store, logger logging.Logger) *Engine {
	return &Engine{
		store:         store,
		logger:        logger.With("module", "reconcile"),
		actionTimeout: DefaultActionTimeout,
		now:           time.Now,
	}
}

// SetActionTimeout overrides the per-action transaction deadline.
func (e *Engine) SetActionTimeout(d time.Duration) {
	if d > 0 {
		e.actionTimeout = d
	}
}

// Reconcile applies the batch in submission order and returns one outcome
// per action, same order. Conflicts are data; only infrastructure failures
// (store unavailable, per-action timeout) return an error, in which case the
// whole batch must be reported retryable and the client keeps its queue.
func (e *Engine) Reconcile(ctx context.Context, deviceID string, batch []api.Action) ([]api.Outcome, error) {
	outcomes := make([]api.Outcome, 0, len(batch))

	for i := range batch {
		action := batch[i]
		action.DeviceID = deviceID

		outcome, err := e.applyOne(ctx, action)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", action.LocalID, err)
		}

		if outcome.Status == api.OutcomeConflict {
			e.logger.Info(ctx, "action conflicted",
				"local_id", action.LocalID, "device_id", deviceID, "reason", outcome.Reason)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (e *Engine) applyOne(ctx context.Context, action api.Action) (api.Outcome, error) {
	if err := action.Validate(); err != nil {
		return api.Outcome{}, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()

	outcome := api.Outcome{LocalID: action.LocalID}
	err := e.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		// Idempotent replay detection. Must share the transaction with the
		// mutation below: a window between them is the double-check-in
		// race.
		seen, err := tx.LedgerSeen(ctx, action.DeviceID, action.LocalID)
		if err != nil {
			return err
		}
		if seen {
			outcome.Status = api.OutcomeDuplicate
			return nil
		}

		switch action.Type {
		case api.ActionCheckIn:
			return e.applyCheckIn(ctx, tx, action, &outcome)
		case api.ActionManualEntry:
			return e.applyManualEntry(ctx, tx, action, &outcome)
		default:
			return fmt.Errorf("%w: unknown action type %q", common.ErrValidation, action.Type)
		}
	})
	if err != nil {
		return api.Outcome{}, err
	}
	return outcome, nil
}

func (e *Engine) applyCheckIn(ctx context.Context, tx storage.Tx, action api.Action, outcome *api.Outcome) error {
	attendee, err := tx.GetAttendeeForUpdate(ctx, action.EventID, action.AttendeeID)
	if errors.Is(err, common.ErrNotFound) {
		outcome.Status = api.OutcomeConflict
		outcome.Reason = api.ReasonAttendeeNotFound
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case attendee.Status == api.StatusCancelled && !action.Force:
		outcome.Status = api.OutcomeConflict
		outcome.Reason = api.ReasonAttendeeCancelled
		outcome.Attendee = attendee.Wire()
		return nil

	case attendee.Status == api.StatusCheckedIn && !action.Force:
		// Also covers the same device replaying with a fresh localId
		// (offline double-tap): intent is not assumed, a human confirms.
		outcome.Status = api.OutcomeConflict
		outcome.Reason = api.ReasonAlreadyCheckedIn
		outcome.Attendee = attendee.Wire()
		return nil

	case attendee.Status == api.StatusWaitlisted && !action.Force:
		// Admitting a waitlisted registrant consumes a capacity slot, so it
		// gets the same live-count check as a walk-in.
		event, err := tx.GetEventForUpdate(ctx, action.EventID)
		if err != nil {
			return err
		}
		registered, _, err := tx.CountByEvent(ctx, action.EventID)
		if err != nil {
			return err
		}
		if registered >= event.Capacity {
			outcome.Status = api.OutcomeConflict
			outcome.Reason = api.ReasonCapacityExceeded
			outcome.Attendee = attendee.Wire()
			return nil
		}
	}

	now := e.now().UTC()
	if err := tx.UpdateAttendeeStatus(ctx, attendee.ID, api.StatusCheckedIn, &now); err != nil {
		return err
	}
	if err := tx.LedgerRecord(ctx, &models.AppliedAction{
		DeviceID:   action.DeviceID,
		LocalID:    action.LocalID,
		EventID:    action.EventID,
		AttendeeID: attendee.ID,
		AppliedAt:  now,
	}); err != nil {
		return err
	}

	attendee.Status = api.StatusCheckedIn
	attendee.CheckInTime = &now
	outcome.Status = api.OutcomeApplied
	outcome.Attendee = attendee.Wire()
	return nil
}

func (e *Engine) applyManualEntry(ctx context.Context, tx storage.Tx, action api.Action, outcome *api.Outcome) error {
	// Lock the event row so concurrent walk-ins serialize on the capacity
	// check. The client's cached capacity is advisory; only the live count
	// decides.
	event, err := tx.GetEventForUpdate(ctx, action.EventID)
	if err != nil {
		return fmt.Errorf("event %s: %w", action.EventID, err)
	}
	registered, _, err := tx.CountByEvent(ctx, action.EventID)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	status := api.StatusCheckedIn
	checkInTime := &now

	if registered >= event.Capacity && !action.Force {
		if !event.AllowWaitlist {
			outcome.Status = api.OutcomeConflict
			outcome.Reason = api.ReasonCapacityExceeded
			return nil
		}
		status = api.StatusWaitlisted
		checkInTime = nil
	}

	regType := action.RegistrationType
	if regType == "" {
		regType = api.RegistrationWalkIn
	}

	attendee := &models.Attendee{
		ID:               uuid.NewString(),
		EventID:          action.EventID,
		DisplayName:      action.DisplayName,
		RegistrationType: regType,
		Status:           status,
		CheckInTime:      checkInTime,
		Notes:            action.Notes,
	}
	if err := tx.InsertAttendee(ctx, attendee); err != nil {
		return err
	}
	if err := tx.LedgerRecord(ctx, &models.AppliedAction{
		DeviceID:   action.DeviceID,
		LocalID:    action.LocalID,
		EventID:    action.EventID,
		AttendeeID: attendee.ID,
		AppliedAt:  now,
	}); err != nil {
		return err
	}

	outcome.Status = api.OutcomeApplied
	outcome.Attendee = attendee.Wire()
	return nil
}
