package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/client/models"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/dbx"
)

// SQLiteRepository stores one JSON snapshot row per event with a stored-at
// timestamp for TTL checks.
type SQLiteRepository struct {
	db  dbx.DBTX
	ttl time.Duration

	// now is overridable in tests.
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX, ttl time.Duration) *SQLiteRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SQLiteRepository{db: db, ttl: ttl, now: time.Now}
}

func (r *SQLiteRepository) Set(ctx context.Context, eventID string, attendees []models.AttendeeSnapshot, capacity api.Capacity) error {
	attendeesJSON, err := json.Marshal(attendees)
	if err != nil {
		return fmt.Errorf("failed to encode attendees: %w", err)
	}
	capacityJSON, err := json.Marshal(capacity)
	if err != nil {
		return fmt.Errorf("failed to encode capacity: %w", err)
	}

	query := `INSERT INTO snapshots (event_id, attendees, capacity, stored_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET attendees = excluded.attendees,
			capacity = excluded.capacity,
			stored_at = excluded.stored_at`
	_, err = r.db.ExecContext(ctx, query, eventID, attendeesJSON, capacityJSON, r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store snapshot for %s: %w", eventID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, eventID string) ([]models.AttendeeSnapshot, *api.Capacity, error) {
	var (
		attendeesJSON []byte
		capacityJSON  []byte
		storedAt      int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT attendees, capacity, stored_at FROM snapshots WHERE event_id = ?`, eventID).
		Scan(&attendeesJSON, &capacityJSON, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, common.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot for %s: %w", eventID, err)
	}

	if r.now().Sub(time.Unix(storedAt, 0)) > r.ttl {
		return nil, nil, common.ErrSnapshotExpired
	}

	var attendees []models.AttendeeSnapshot
	if err := json.Unmarshal(attendeesJSON, &attendees); err != nil {
		return nil, nil, fmt.Errorf("failed to decode attendees: %w", err)
	}
	capacity := &api.Capacity{}
	if err := json.Unmarshal(capacityJSON, capacity); err != nil {
		return nil, nil, fmt.Errorf("failed to decode capacity: %w", err)
	}
	return attendees, capacity, nil
}

func (r *SQLiteRepository) ApplyOptimistic(ctx context.Context, eventID, attendeeID string, status api.ParticipationStatus) error {
	attendees, capacity, err := r.Get(ctx, eventID)
	if err != nil {
		return err
	}

	found := false
	now := r.now().UTC()
	for i := range attendees {
		if attendees[i].ID != attendeeID {
			continue
		}
		attendees[i].Status = status
		if status == api.StatusCheckedIn {
			attendees[i].CheckInTime = &now
		}
		found = true
		break
	}
	if !found {
		return common.ErrNotFound
	}

	attendeesJSON, err := json.Marshal(attendees)
	if err != nil {
		return fmt.Errorf("failed to encode attendees: %w", err)
	}
	_ = capacity // optimistic flips never touch the cached capacity

	_, err = r.db.ExecContext(ctx,
		`UPDATE snapshots SET attendees = ? WHERE event_id = ?`, attendeesJSON, eventID)
	if err != nil {
		return fmt.Errorf("failed to apply optimistic update: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) EvictExpired(ctx context.Context) error {
	cutoff := r.now().Add(-r.ttl).Unix()
	_, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE stored_at <= ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to evict expired snapshots: %w", err)
	}
	return nil
}
