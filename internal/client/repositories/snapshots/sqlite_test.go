package snapshots

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/client/models"
	"github.com/gatherhall/doorsync/internal/common"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE snapshots (
  event_id  TEXT PRIMARY KEY,
  attendees TEXT NOT NULL,
  capacity  TEXT NOT NULL,
  stored_at INTEGER NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func sampleRoster(eventID string) ([]models.AttendeeSnapshot, api.Capacity) {
	attendees := []models.AttendeeSnapshot{
		{Attendee: api.Attendee{ID: "a1", EventID: eventID, DisplayName: "Kim",
			RegistrationType: api.RegistrationRSVP, Status: api.StatusRegistered}},
		{Attendee: api.Attendee{ID: "a2", EventID: eventID, DisplayName: "Lee",
			RegistrationType: api.RegistrationTicket, Status: api.StatusRegistered}},
	}
	capacity := api.Capacity{EventID: eventID, Capacity: 50, Registered: 2, CheckedIn: 0}
	return attendees, capacity
}

func TestSetGet_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, 0)
	ctx := context.Background()

	attendees, capacity := sampleRoster("ev1")
	require.NoError(t, r.Set(ctx, "ev1", attendees, capacity))

	got, cap2, err := r.Get(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Kim", got[0].DisplayName)
	assert.Equal(t, 50, cap2.Capacity)

	_, _, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSet_ReplacesWholesale(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, 0)
	ctx := context.Background()

	attendees, capacity := sampleRoster("ev1")
	require.NoError(t, r.Set(ctx, "ev1", attendees, capacity))

	// second sync brings a different roster; old rows must be gone
	replacement := []models.AttendeeSnapshot{
		{Attendee: api.Attendee{ID: "a3", EventID: "ev1", DisplayName: "Max",
			Status: api.StatusCheckedIn}},
	}
	capacity.CheckedIn = 1
	require.NoError(t, r.Set(ctx, "ev1", replacement, capacity))

	got, cap2, err := r.Get(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a3", got[0].ID)
	assert.Equal(t, 1, cap2.CheckedIn)
}

func TestGet_ExpiresAfterTTL(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, 24*time.Hour)
	ctx := context.Background()

	attendees, capacity := sampleRoster("ev1")

	base := time.Now()
	r.now = func() time.Time { return base }
	require.NoError(t, r.Set(ctx, "ev1", attendees, capacity))

	// still readable just inside the window
	r.now = func() time.Time { return base.Add(24*time.Hour - time.Minute) }
	_, _, err := r.Get(ctx, "ev1")
	require.NoError(t, err)

	// unreadable past it, with no eviction call
	r.now = func() time.Time { return base.Add(24*time.Hour + time.Minute) }
	_, _, err = r.Get(ctx, "ev1")
	assert.ErrorIs(t, err, common.ErrSnapshotExpired)
}

func TestApplyOptimistic(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, 0)
	ctx := context.Background()

	attendees, capacity := sampleRoster("ev1")
	require.NoError(t, r.Set(ctx, "ev1", attendees, capacity))

	require.NoError(t, r.ApplyOptimistic(ctx, "ev1", "a1", api.StatusCheckedIn))

	got, _, err := r.Get(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, api.StatusCheckedIn, got[0].Status)
	assert.NotNil(t, got[0].CheckInTime)
	assert.Equal(t, api.StatusRegistered, got[1].Status)

	assert.ErrorIs(t, r.ApplyOptimistic(ctx, "ev1", "missing", api.StatusCheckedIn), common.ErrNotFound)
}

func TestEvictExpired(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, time.Hour)
	ctx := context.Background()

	base := time.Now()

	r.now = func() time.Time { return base.Add(-2 * time.Hour) }
	attendees, capacity := sampleRoster("old")
	require.NoError(t, r.Set(ctx, "old", attendees, capacity))

	r.now = func() time.Time { return base }
	attendees, capacity = sampleRoster("fresh")
	require.NoError(t, r.Set(ctx, "fresh", attendees, capacity))

	require.NoError(t, r.EvictExpired(ctx))

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM snapshots`).Scan(&n))
	assert.Equal(t, 1, n)

	_, _, err := r.Get(ctx, "fresh")
	assert.NoError(t, err)
}
