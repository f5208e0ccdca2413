package queue

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
CREATE TABLE queue (
  seq           INTEGER PRIMARY KEY AUTOINCREMENT,
  local_id      TEXT NOT NULL UNIQUE,
  event_id      TEXT NOT NULL,
  payload       TEXT NOT NULL,
  sync_attempts INTEGER NOT NULL DEFAULT 0,
  created_at    TEXT NOT NULL
);
CREATE TABLE conflicts (
  local_id    TEXT PRIMARY KEY,
  event_id    TEXT NOT NULL,
  payload     TEXT NOT NULL,
  detected_at TEXT NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func newAction(localID, eventID, attendeeID string) *models.PendingAction {
	return &models.PendingAction{
		Action: api.Action{
			LocalID:    localID,
			DeviceID:   "dev-1",
			EventID:    eventID,
			AttendeeID: attendeeID,
			Type:       api.ActionCheckIn,
			CreatedAt:  time.Now().UTC(),
		},
	}
}

func TestEnqueue_ListPending_OldestFirst(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, newAction("l1", "ev1", "a1")))
	require.NoError(t, r.Enqueue(ctx, newAction("l2", "ev2", "a2")))
	require.NoError(t, r.Enqueue(ctx, newAction("l3", "ev1", "a3")))

	all, err := r.ListPending(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "l1", all[0].LocalID)
	assert.Equal(t, "l2", all[1].LocalID)
	assert.Equal(t, "l3", all[2].LocalID)

	ev1, err := r.ListPending(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, ev1, 2)
	assert.Equal(t, "l1", ev1[0].LocalID)
	assert.Equal(t, "l3", ev1[1].LocalID)

	// payload round-trips intact
	assert.Equal(t, "a1", ev1[0].AttendeeID)
	assert.Equal(t, api.ActionCheckIn, ev1[0].Type)
}

func TestEnqueue_DuplicateLocalIDRejected(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, newAction("l1", "ev1", "a1")))
	assert.Error(t, r.Enqueue(ctx, newAction("l1", "ev1", "a1")))
}

func TestRemove_AndCount(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, newAction("l1", "ev1", "a1")))
	require.NoError(t, r.Enqueue(ctx, newAction("l2", "ev1", "a2")))
	require.NoError(t, r.Enqueue(ctx, newAction("l3", "ev1", "a3")))

	n, err := r.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, r.Remove(ctx, []string{"l1", "l3"}))

	n, err = r.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := r.ListPending(ctx, "")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "l2", left[0].LocalID)

	// no-op on empty list
	require.NoError(t, r.Remove(ctx, nil))
}

func TestIncrementAttempts(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, newAction("l1", "ev1", "a1")))
	require.NoError(t, r.Enqueue(ctx, newAction("l2", "ev1", "a2")))

	require.NoError(t, r.IncrementAttempts(ctx, []string{"l1"}))
	require.NoError(t, r.IncrementAttempts(ctx, []string{"l1"}))

	all, err := r.ListPending(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, all[0].SyncAttempts)
	assert.Equal(t, 0, all[1].SyncAttempts)
}

func TestQueue_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dsn := "file:" + dir + "/queue.db"

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE queue (
	  seq INTEGER PRIMARY KEY AUTOINCREMENT,
	  local_id TEXT NOT NULL UNIQUE,
	  event_id TEXT NOT NULL,
	  payload TEXT NOT NULL,
	  sync_attempts INTEGER NOT NULL DEFAULT 0,
	  created_at TEXT NOT NULL)`)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, NewSQLiteRepository(db).Enqueue(ctx, newAction("l1", "ev1", "a1")))
	require.NoError(t, db.Close())

	// simulate app restart after crash before sync
	db2, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Close() })

	pending, err := NewSQLiteRepository(db2).ListPending(ctx, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "l1", pending[0].LocalID)
}

func TestConflicts_RoundTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	checkedIn := time.Now().UTC().Truncate(time.Second)
	c := &models.SyncConflict{
		LocalID:    "l9",
		EventID:    "ev1",
		AttendeeID: "a9",
		Reason:     api.ReasonAlreadyCheckedIn,
		ServerState: &api.Attendee{
			ID: "a9", EventID: "ev1", DisplayName: "Sam",
			Status: api.StatusCheckedIn, CheckInTime: &checkedIn,
		},
		ClientState: newAction("l9", "ev1", "a9").Action,
		DetectedAt:  time.Now().UTC(),
	}
	require.NoError(t, r.AddConflict(ctx, c))

	got, err := r.GetConflict(ctx, "l9")
	require.NoError(t, err)
	assert.Equal(t, api.ReasonAlreadyCheckedIn, got.Reason)
	require.NotNil(t, got.ServerState)
	assert.Equal(t, api.StatusCheckedIn, got.ServerState.Status)

	list, err := r.ListConflicts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, r.RemoveConflicts(ctx, []string{"l9"}))

	_, err = r.GetConflict(ctx, "l9")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
