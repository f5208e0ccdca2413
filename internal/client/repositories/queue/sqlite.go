package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/client/models"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/dbx"
)

// SQLiteRepository implements Repository on the local SQLite database.
// Action payloads are stored as JSON documents; ordering comes from the
// autoincrement seq column.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, action *models.PendingAction) error {
	payload, err := json.Marshal(action.Action)
	if err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}

	query := `INSERT INTO queue (local_id, event_id, payload, sync_attempts, created_at)
		VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		action.LocalID, action.EventID, payload, action.SyncAttempts,
		action.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isStorageFull(err) {
			return fmt.Errorf("enqueue %s: %w", action.LocalID, common.ErrQueueFull)
		}
		return fmt.Errorf("failed to enqueue action %s: %w", action.LocalID, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read enqueue seq: %w", err)
	}
	action.Seq = seq
	return nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, eventID string) ([]models.PendingAction, error) {
	query := `SELECT seq, payload, sync_attempts FROM queue`
	args := []any{}
	if eventID != "" {
		query += ` WHERE event_id = ?`
		args = append(args, eventID)
	}
	query += ` ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending actions: %w", err)
	}
	defer rows.Close()

	var result []models.PendingAction
	for rows.Next() {
		var (
			seq      int64
			payload  []byte
			attempts int
		)
		if err := rows.Scan(&seq, &payload, &attempts); err != nil {
			return nil, err
		}
		var a api.Action
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("failed to decode action payload: %w", err)
		}
		result = append(result, models.PendingAction{Action: a, Seq: seq, SyncAttempts: attempts})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, localIDs []string) error {
	if len(localIDs) == 0 {
		return nil
	}
	query := `DELETE FROM queue WHERE local_id IN (` + placeholders(len(localIDs)) + `)`
	if _, err := r.db.ExecContext(ctx, query, toArgs(localIDs)...); err != nil {
		return fmt.Errorf("failed to remove actions: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementAttempts(ctx context.Context, localIDs []string) error {
	if len(localIDs) == 0 {
		return nil
	}
	query := `UPDATE queue SET sync_attempts = sync_attempts + 1
		WHERE local_id IN (` + placeholders(len(localIDs)) + `)`
	if _, err := r.db.ExecContext(ctx, query, toArgs(localIDs)...); err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM queue`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) AddConflict(ctx context.Context, conflict *models.SyncConflict) error {
	payload, err := json.Marshal(conflict)
	if err != nil {
		return fmt.Errorf("failed to encode conflict: %w", err)
	}

	query := `INSERT INTO conflicts (local_id, event_id, payload, detected_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET payload = excluded.payload`
	_, err = r.db.ExecContext(ctx, query,
		conflict.LocalID, conflict.EventID, payload,
		conflict.DetectedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store conflict %s: %w", conflict.LocalID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListConflicts(ctx context.Context) ([]models.SyncConflict, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM conflicts ORDER BY detected_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to select conflicts: %w", err)
	}
	defer rows.Close()

	var result []models.SyncConflict
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var c models.SyncConflict
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("failed to decode conflict payload: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetConflict(ctx context.Context, localID string) (*models.SyncConflict, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM conflicts WHERE local_id = ?`, localID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict %s: %w", localID, err)
	}

	c := &models.SyncConflict{}
	if err := json.Unmarshal(payload, c); err != nil {
		return nil, fmt.Errorf("failed to decode conflict payload: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) RemoveConflicts(ctx context.Context, localIDs []string) error {
	if len(localIDs) == 0 {
		return nil
	}
	query := `DELETE FROM conflicts WHERE local_id IN (` + placeholders(len(localIDs)) + `)`
	if _, err := r.db.ExecContext(ctx, query, toArgs(localIDs)...); err != nil {
		return fmt.Errorf("failed to remove conflicts: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// isStorageFull detects SQLite disk-full conditions so callers can tell
// staff to sync immediately or free space.
func isStorageFull(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database or disk is full") ||
		strings.Contains(msg, "disk I/O error")
}
