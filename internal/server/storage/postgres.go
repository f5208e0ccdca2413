package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/dbx"
	"github.com/gatherhall/doorsync/internal/server/migrations"
	"github.com/gatherhall/doorsync/internal/server/models"
)

// PostgresStore implements Store on PostgreSQL. Row serialization relies on
// SELECT ... FOR UPDATE inside the per-action transactions.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &pgTx{db: tx})
	})
}

func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type pgTx struct {
	db dbx.DBTX
}

const eventColumns = `id, name, capacity, allow_waitlist, created_at`

func (t *pgTx) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return t.scanEvent(t.db.QueryRowContext(ctx, query, eventID))
}

func (t *pgTx) GetEventForUpdate(ctx context.Context, eventID string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return t.scanEvent(t.db.QueryRowContext(ctx, query, eventID))
}

func (t *pgTx) scanEvent(row *sql.Row) (*models.Event, error) {
	e := &models.Event{}
	err := row.Scan(&e.ID, &e.Name, &e.Capacity, &e.AllowWaitlist, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (t *pgTx) InsertEvent(ctx context.Context, event *models.Event) error {
	query := `INSERT INTO events (id, name, capacity, allow_waitlist) VALUES ($1, $2, $3, $4)`
	_, err := t.db.ExecContext(ctx, query, event.ID, event.Name, event.Capacity, event.AllowWaitlist)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const attendeeColumns = `id, event_id, display_name, registration_type, status, check_in_time, notes, created_at, updated_at`

func (t *pgTx) GetAttendee(ctx context.Context, eventID, attendeeID string) (*models.Attendee, error) {
	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE event_id = $1 AND id = $2`
	return t.scanAttendee(t.db.QueryRowContext(ctx, query, eventID, attendeeID))
}

func (t *pgTx) GetAttendeeForUpdate(ctx context.Context, eventID, attendeeID string) (*models.Attendee, error) {
	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE event_id = $1 AND id = $2 FOR UPDATE`
	return t.scanAttendee(t.db.QueryRowContext(ctx, query, eventID, attendeeID))
}

func (t *pgTx) scanAttendee(row *sql.Row) (*models.Attendee, error) {
	a := &models.Attendee{}
	err := row.Scan(&a.ID, &a.EventID, &a.DisplayName, &a.RegistrationType,
		&a.Status, &a.CheckInTime, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (t *pgTx) ListAttendees(ctx context.Context, eventID string, filters models.RosterFilters) ([]models.Attendee, error) {
	query := `SELECT ` + attendeeColumns + ` FROM attendees WHERE event_id = $1`
	args := []any{eventID}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filters.RegistrationType != "" {
		args = append(args, filters.RegistrationType)
		query += fmt.Sprintf(` AND registration_type = $%d`, len(args))
	}
	query += ` ORDER BY display_name, id`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Attendee
	for rows.Next() {
		a := models.Attendee{}
		if err := rows.Scan(&a.ID, &a.EventID, &a.DisplayName, &a.RegistrationType,
			&a.Status, &a.CheckInTime, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (t *pgTx) InsertAttendee(ctx context.Context, attendee *models.Attendee) error {
	query := `INSERT INTO attendees
		(id, event_id, display_name, registration_type, status, check_in_time, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := t.db.ExecContext(ctx, query,
		attendee.ID, attendee.EventID, attendee.DisplayName, attendee.RegistrationType,
		attendee.Status, attendee.CheckInTime, attendee.Notes)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateAttendeeStatus(ctx context.Context, attendeeID string, status api.ParticipationStatus, checkInTime *time.Time) error {
	query := `UPDATE attendees SET status = $1, check_in_time = $2, updated_at = now() WHERE id = $3`
	res, err := t.db.ExecContext(ctx, query, status, checkInTime, attendeeID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("update attendee %s: wrong rows affected count: %d", attendeeID, ra)
	}
	return nil
}

func (t *pgTx) CountByEvent(ctx context.Context, eventID string) (int, int, error) {
	query := `SELECT
			count(*) FILTER (WHERE status IN ($2, $3)),
			count(*) FILTER (WHERE status = $3)
		FROM attendees WHERE event_id = $1`

	var registered, checkedIn int
	err := t.db.QueryRowContext(ctx, query, eventID, api.StatusRegistered, api.StatusCheckedIn).
		Scan(&registered, &checkedIn)
	if err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return registered, checkedIn, nil
}

func (t *pgTx) LedgerSeen(ctx context.Context, deviceID, localID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM applied_actions WHERE device_id = $1 AND local_id = $2)`
	var seen bool
	if err := t.db.QueryRowContext(ctx, query, deviceID, localID).Scan(&seen); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return seen, nil
}

func (t *pgTx) LedgerRecord(ctx context.Context, action *models.AppliedAction) error {
	query := `INSERT INTO applied_actions (device_id, local_id, event_id, attendee_id, applied_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := t.db.ExecContext(ctx, query,
		action.DeviceID, action.LocalID, action.EventID, action.AttendeeID, action.AppliedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (t *pgTx) RecentActivity(ctx context.Context, eventID string, limit int) ([]api.Activity, error) {
	query := `SELECT l.attendee_id, a.display_name, l.device_id, l.applied_at
		FROM applied_actions l
		JOIN attendees a ON a.id = l.attendee_id
		WHERE l.event_id = $1
		ORDER BY l.applied_at DESC
		LIMIT $2`

	rows, err := t.db.QueryContext(ctx, query, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []api.Activity
	for rows.Next() {
		var item api.Activity
		if err := rows.Scan(&item.AttendeeID, &item.DisplayName, &item.DeviceID, &item.CheckInTime); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (t *pgTx) UpsertDeviceStatus(ctx context.Context, status *models.DeviceStatus) error {
	query := `INSERT INTO device_status (device_id, staff_id, pending_count, reported_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id) DO UPDATE SET
			staff_id = excluded.staff_id,
			pending_count = excluded.pending_count,
			reported_at = excluded.reported_at`
	_, err := t.db.ExecContext(ctx, query,
		status.DeviceID, status.StaffID, status.PendingCount, status.ReportedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (t *pgTx) PendingCountForStaff(ctx context.Context, staffID string) (int, int, error) {
	query := `SELECT coalesce(sum(pending_count), 0), count(*)
		FROM device_status WHERE staff_id = $1`
	var pending, devices int
	if err := t.db.QueryRowContext(ctx, query, staffID).Scan(&pending, &devices); err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return pending, devices, nil
}
