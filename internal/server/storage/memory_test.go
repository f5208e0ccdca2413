package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/server/models"
)

func seedEvent(t *testing.T, s *MemoryStore, eventID string, capacity int) {
	t.Helper()
	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertEvent(ctx, &models.Event{ID: eventID, Name: "Test Event", Capacity: capacity})
	})
	require.NoError(t, err)
}

func seedAttendee(t *testing.T, s *MemoryStore, eventID, id, name string, status api.ParticipationStatus) {
	t.Helper()
	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertAttendee(ctx, &models.Attendee{
			ID: id, EventID: eventID, DisplayName: name,
			RegistrationType: api.RegistrationRSVP, Status: status,
		})
	})
	require.NoError(t, err)
}

func TestMemoryStore_RollbackOnError(t *testing.T) {
	s := NewMemoryStore()
	seedEvent(t, s, "ev1", 10)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertAttendee(ctx, &models.Attendee{
			ID: "a1", EventID: "ev1", DisplayName: "Kim", Status: api.StatusRegistered,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// staged insert was discarded
	err = s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.GetAttendee(ctx, "ev1", "a1")
		assert.ErrorIs(t, err, common.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_CountByEvent(t *testing.T) {
	s := NewMemoryStore()
	seedEvent(t, s, "ev1", 10)
	seedAttendee(t, s, "ev1", "a1", "Kim", api.StatusRegistered)
	seedAttendee(t, s, "ev1", "a2", "Lee", api.StatusCheckedIn)
	seedAttendee(t, s, "ev1", "a3", "Max", api.StatusCancelled)
	seedAttendee(t, s, "ev1", "a4", "Noa", api.StatusWaitlisted)
	seedAttendee(t, s, "ev2", "b1", "Kai", api.StatusRegistered)

	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		registered, checkedIn, err := tx.CountByEvent(ctx, "ev1")
		require.NoError(t, err)
		// cancelled and waitlisted don't count against capacity
		assert.Equal(t, 2, registered)
		assert.Equal(t, 1, checkedIn)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_ListAttendeesFilters(t *testing.T) {
	s := NewMemoryStore()
	seedEvent(t, s, "ev1", 10)
	seedAttendee(t, s, "ev1", "a1", "Kim", api.StatusRegistered)
	seedAttendee(t, s, "ev1", "a2", "Lee", api.StatusCheckedIn)

	err := s.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		all, err := tx.ListAttendees(ctx, "ev1", models.RosterFilters{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		// sorted by name
		assert.Equal(t, "Kim", all[0].DisplayName)

		checkedIn, err := tx.ListAttendees(ctx, "ev1", models.RosterFilters{Status: api.StatusCheckedIn})
		require.NoError(t, err)
		require.Len(t, checkedIn, 1)
		assert.Equal(t, "a2", checkedIn[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_LedgerAndActivity(t *testing.T) {
	s := NewMemoryStore()
	seedEvent(t, s, "ev1", 10)
	seedAttendee(t, s, "ev1", "a1", "Kim", api.StatusCheckedIn)

	ctx := context.Background()
	now := time.Now().UTC()

	err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		seen, err := tx.LedgerSeen(ctx, "dev-1", "l1")
		require.NoError(t, err)
		assert.False(t, seen)

		require.NoError(t, tx.LedgerRecord(ctx, &models.AppliedAction{
			DeviceID: "dev-1", LocalID: "l1", EventID: "ev1", AttendeeID: "a1", AppliedAt: now,
		}))

		seen, err = tx.LedgerSeen(ctx, "dev-1", "l1")
		require.NoError(t, err)
		assert.True(t, seen)

		activity, err := tx.RecentActivity(ctx, "ev1", 10)
		require.NoError(t, err)
		require.Len(t, activity, 1)
		assert.Equal(t, "Kim", activity[0].DisplayName)
		assert.Equal(t, "dev-1", activity[0].DeviceID)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_PendingCountForStaff(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.UpsertDeviceStatus(ctx, &models.DeviceStatus{
			DeviceID: "dev-1", StaffID: "staff-1", PendingCount: 3, ReportedAt: now,
		}))
		require.NoError(t, tx.UpsertDeviceStatus(ctx, &models.DeviceStatus{
			DeviceID: "dev-2", StaffID: "staff-1", PendingCount: 2, ReportedAt: now,
		}))
		require.NoError(t, tx.UpsertDeviceStatus(ctx, &models.DeviceStatus{
			DeviceID: "dev-3", StaffID: "staff-2", PendingCount: 9, ReportedAt: now,
		}))

		pending, devices, err := tx.PendingCountForStaff(ctx, "staff-1")
		require.NoError(t, err)
		assert.Equal(t, 5, pending)
		assert.Equal(t, 2, devices)
		return nil
	})
	require.NoError(t, err)
}
