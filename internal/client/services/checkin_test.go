package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/client/models"
	"github.com/gatherhall/doorsync/internal/common"
)

func TestDeviceID_StableAcrossCalls(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	cs := NewCheckInService(r.queue, r.snap, r.meta, testLogger())

	first, err := cs.DeviceID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := cs.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCheckIn_QueuesAndFlipsOptimistically(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	cs := NewCheckInService(r.queue, r.snap, r.meta, testLogger())

	seed := []models.AttendeeSnapshot{
		{Attendee: api.Attendee{ID: "a1", EventID: "ev1", Status: api.StatusRegistered}},
	}
	require.NoError(t, r.snap.Set(ctx, "ev1", seed, api.Capacity{EventID: "ev1", Capacity: 5, Registered: 1}))

	action, err := cs.CheckIn(ctx, "ev1", "a1", "vip lane")
	require.NoError(t, err)
	assert.Equal(t, api.ActionCheckIn, action.Type)
	assert.NotEmpty(t, action.LocalID)
	assert.NotEmpty(t, action.DeviceID)

	pending, err := r.queue.ListPending(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "vip lane", pending[0].Notes)

	cached, _, err := r.snap.Get(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, api.StatusCheckedIn, cached[0].Status)
}

func TestCheckIn_QueuesEvenWithoutSnapshot(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	cs := NewCheckInService(r.queue, r.snap, r.meta, testLogger())

	// no snapshot loaded for ev9; queuing must still succeed
	_, err := cs.CheckIn(ctx, "ev9", "a1", "")
	require.NoError(t, err)

	n, err := cs.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestManualEntry_WalkInDefaults(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	cs := NewCheckInService(r.queue, r.snap, r.meta, testLogger())

	action, err := cs.ManualEntry(ctx, "ev1", "Door Guest", "paid cash")
	require.NoError(t, err)
	assert.Equal(t, api.ActionManualEntry, action.Type)
	assert.Equal(t, api.RegistrationWalkIn, action.RegistrationType)
	assert.Empty(t, action.AttendeeID)
}

func TestManualEntry_ValidationRejectedBeforeQueueing(t *testing.T) {
	ctx := context.Background()
	r := setupRepos(t)
	cs := NewCheckInService(r.queue, r.snap, r.meta, testLogger())

	_, err := cs.ManualEntry(ctx, "ev1", "", "")
	require.ErrorIs(t, err, common.ErrValidation)

	// the invalid action was never queued
	n, err := cs.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
