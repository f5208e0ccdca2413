package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/server/models"
)

// MemoryStore implements Store on in-process maps, for tests and local
// development. One mutex held for the duration of each transaction gives the
// same serialization the PostgreSQL store gets from row locks. Mutations go
// to a staged copy and replace the live maps only on commit.
type MemoryStore struct {
	mu        sync.Mutex
	events    map[string]models.Event
	attendees map[string]models.Attendee
	ledger    map[ledgerKey]models.AppliedAction
	devices   map[string]models.DeviceStatus
}

type ledgerKey struct {
	deviceID string
	localID  string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string]models.Event),
		attendees: make(map[string]models.Attendee),
		ledger:    make(map[ledgerKey]models.AppliedAction),
		devices:   make(map[string]models.DeviceStatus),
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		events:    cloneMap(s.events),
		attendees: cloneMap(s.attendees),
		ledger:    cloneMap(s.ledger),
		devices:   cloneMap(s.devices),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.events = tx.events
	s.attendees = tx.attendees
	s.ledger = tx.ledger
	s.devices = tx.devices
	return nil
}

func (s *MemoryStore) RunMigrations(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                            { return nil }

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memTx struct {
	events    map[string]models.Event
	attendees map[string]models.Attendee
	ledger    map[ledgerKey]models.AppliedAction
	devices   map[string]models.DeviceStatus
}

func (t *memTx) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	e, ok := t.events[eventID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &e, nil
}

func (t *memTx) GetEventForUpdate(ctx context.Context, eventID string) (*models.Event, error) {
	return t.GetEvent(ctx, eventID)
}

func (t *memTx) InsertEvent(ctx context.Context, event *models.Event) error {
	e := *event
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	t.events[e.ID] = e
	return nil
}

func (t *memTx) GetAttendee(ctx context.Context, eventID, attendeeID string) (*models.Attendee, error) {
	a, ok := t.attendees[attendeeID]
	if !ok || a.EventID != eventID {
		return nil, common.ErrNotFound
	}
	return &a, nil
}

func (t *memTx) GetAttendeeForUpdate(ctx context.Context, eventID, attendeeID string) (*models.Attendee, error) {
	return t.GetAttendee(ctx, eventID, attendeeID)
}

func (t *memTx) ListAttendees(ctx context.Context, eventID string, filters models.RosterFilters) ([]models.Attendee, error) {
	var result []models.Attendee
	for _, a := range t.attendees {
		if a.EventID != eventID {
			continue
		}
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		if filters.RegistrationType != "" && a.RegistrationType != filters.RegistrationType {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayName != result[j].DisplayName {
			return result[i].DisplayName < result[j].DisplayName
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (t *memTx) InsertAttendee(ctx context.Context, attendee *models.Attendee) error {
	a := *attendee
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	t.attendees[a.ID] = a
	return nil
}

func (t *memTx) UpdateAttendeeStatus(ctx context.Context, attendeeID string, status api.ParticipationStatus, checkInTime *time.Time) error {
	a, ok := t.attendees[attendeeID]
	if !ok {
		return common.ErrNotFound
	}
	a.Status = status
	a.CheckInTime = checkInTime
	a.UpdatedAt = time.Now().UTC()
	t.attendees[attendeeID] = a
	return nil
}

func (t *memTx) CountByEvent(ctx context.Context, eventID string) (int, int, error) {
	var registered, checkedIn int
	for _, a := range t.attendees {
		if a.EventID != eventID {
			continue
		}
		switch a.Status {
		case api.StatusRegistered:
			registered++
		case api.StatusCheckedIn:
			registered++
			checkedIn++
		}
	}
	return registered, checkedIn, nil
}

func (t *memTx) LedgerSeen(ctx context.Context, deviceID, localID string) (bool, error) {
	_, seen := t.ledger[ledgerKey{deviceID, localID}]
	return seen, nil
}

func (t *memTx) LedgerRecord(ctx context.Context, action *models.AppliedAction) error {
	t.ledger[ledgerKey{action.DeviceID, action.LocalID}] = *action
	return nil
}

func (t *memTx) RecentActivity(ctx context.Context, eventID string, limit int) ([]api.Activity, error) {
	var entries []models.AppliedAction
	for _, l := range t.ledger {
		if l.EventID == eventID {
			entries = append(entries, l)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AppliedAt.After(entries[j].AppliedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	result := make([]api.Activity, 0, len(entries))
	for _, l := range entries {
		name := ""
		if a, ok := t.attendees[l.AttendeeID]; ok {
			name = a.DisplayName
		}
		result = append(result, api.Activity{
			AttendeeID:  l.AttendeeID,
			DisplayName: name,
			DeviceID:    l.DeviceID,
			CheckInTime: l.AppliedAt,
		})
	}
	return result, nil
}

func (t *memTx) UpsertDeviceStatus(ctx context.Context, status *models.DeviceStatus) error {
	t.devices[status.DeviceID] = *status
	return nil
}

func (t *memTx) PendingCountForStaff(ctx context.Context, staffID string) (int, int, error) {
	var pending, devices int
	for _, d := range t.devices {
		if d.StaffID != staffID {
			continue
		}
		pending += d.PendingCount
		devices++
	}
	return pending, devices, nil
}
