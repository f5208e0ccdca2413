package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/client/client"
	"github.com/gatherhall/doorsync/internal/client/models"
	"github.com/gatherhall/doorsync/internal/client/repositories/metadata"
	"github.com/gatherhall/doorsync/internal/client/repositories/queue"
	"github.com/gatherhall/doorsync/internal/client/repositories/snapshots"
	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/logging"
)

// SyncResult summarizes one sync cycle for one event.
type SyncResult struct {
	Applied    int
	Duplicates int
	Conflicts  []models.SyncConflict
}

// SyncService ships the offline queue to the server and reconciles the
// responses back into local state. Sync runs in the background relative to
// the check-in UI: the queue keeps accepting actions while a sync is in
// flight, and an action enqueued mid-sync simply rides the next cycle.
type SyncService struct {
	apiClient client.Client
	queueRepo queue.Repository
	snapRepo  snapshots.Repository
	metaRepo  metadata.Repository
	logger    logging.Logger

	inFlight atomic.Bool
}

func NewSyncService(c client.Client, q queue.Repository, s snapshots.Repository, m metadata.Repository, l logging.Logger) *SyncService {
	return &SyncService{
		apiClient: c,
		queueRepo: q,
		snapRepo:  s,
		metaRepo:  m,
		logger:    l.With("module", "sync"),
	}
}

// Sync submits the pending actions for one event as a single batch and
// applies the per-action outcomes: applied and duplicate actions leave the
// queue, conflicts move to the conflict list, and the local snapshot is
// replaced with the authoritative roster from the response.
//
// On a transport failure the queue is left untouched and the returned error
// matches common.ErrRetryable; the caller owns retry cadence.
func (s *SyncService) Sync(ctx context.Context, eventID string) (*SyncResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("sync already in flight")
	}
	defer s.inFlight.Store(false)

	return s.syncLocked(ctx, eventID)
}

func (s *SyncService) syncLocked(ctx context.Context, eventID string) (*SyncResult, error) {
	deviceID, err := s.deviceID(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := s.queueRepo.ListPending(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}

	totalPending, err := s.queueRepo.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue: %w", err)
	}

	req := &api.BatchRequest{
		DeviceID:     deviceID,
		PendingCount: totalPending,
		Actions:      make([]api.Action, 0, len(pending)),
	}
	byLocalID := make(map[string]models.PendingAction, len(pending))
	for _, p := range pending {
		req.Actions = append(req.Actions, p.Action)
		byLocalID[p.LocalID] = p
	}

	resp, err := s.apiClient.SubmitBatch(ctx, eventID, req)
	if err != nil {
		// Queue stays intact; attempts are only counted for cycles that
		// reached the server.
		return nil, err
	}

	if ids := localIDs(pending); len(ids) > 0 {
		if err := s.queueRepo.IncrementAttempts(ctx, ids); err != nil {
			s.logger.Warn(ctx, "failed to record sync attempts", "error", err)
		}
	}

	result := &SyncResult{}
	var remove []string
	for _, outcome := range resp.Outcomes {
		action, ok := byLocalID[outcome.LocalID]
		if !ok {
			s.logger.Warn(ctx, "outcome for unknown action", "local_id", outcome.LocalID)
			continue
		}

		switch outcome.Status {
		case api.OutcomeApplied:
			result.Applied++
			remove = append(remove, outcome.LocalID)
		case api.OutcomeDuplicate:
			// Idempotent replay after a dropped response. Expected, silent.
			result.Duplicates++
			remove = append(remove, outcome.LocalID)
		case api.OutcomeConflict:
			conflict := models.SyncConflict{
				LocalID:     outcome.LocalID,
				EventID:     action.EventID,
				AttendeeID:  action.AttendeeID,
				Reason:      outcome.Reason,
				ServerState: outcome.Attendee,
				ClientState: action.Action,
				DetectedAt:  time.Now().UTC(),
			}
			if err := s.queueRepo.AddConflict(ctx, &conflict); err != nil {
				return nil, fmt.Errorf("failed to stage conflict %s: %w", outcome.LocalID, err)
			}
			remove = append(remove, outcome.LocalID)
			result.Conflicts = append(result.Conflicts, conflict)
		default:
			s.logger.Warn(ctx, "unknown outcome status",
				"local_id", outcome.LocalID, "status", outcome.Status)
		}
	}

	if err := s.queueRepo.Remove(ctx, remove); err != nil {
		return nil, fmt.Errorf("failed to clear resolved actions: %w", err)
	}

	// Server wins: the fresh roster overwrites every optimistic flip,
	// including ones the server just rejected.
	now := time.Now().UTC()
	attendees := make([]models.AttendeeSnapshot, 0, len(resp.Attendees))
	for _, a := range resp.Attendees {
		attendees = append(attendees, models.AttendeeSnapshot{Attendee: a, LastSyncedAt: now})
	}
	if err := s.snapRepo.Set(ctx, eventID, attendees, resp.Capacity); err != nil {
		return nil, fmt.Errorf("failed to refresh snapshot: %w", err)
	}

	// The batch call succeeded, so this counts as a successful sync even if
	// individual outcomes were conflicts.
	if err := s.metaRepo.Set(ctx, metadata.KeyLastSyncAt, []byte(now.Format(time.RFC3339Nano))); err != nil {
		s.logger.Warn(ctx, "failed to record last sync time", "error", err)
	}

	s.logger.Info(ctx, "sync complete", "event_id", eventID,
		"applied", result.Applied, "duplicates", result.Duplicates,
		"conflicts", len(result.Conflicts))
	return result, nil
}

// SyncAll runs one sync cycle for every event with queued actions and then
// reports the remaining pending count. Used by the background scheduler.
func (s *SyncService) SyncAll(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug(ctx, "sync already running, skipping cycle")
		return nil
	}
	defer s.inFlight.Store(false)

	pending, err := s.queueRepo.ListPending(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}

	seen := make(map[string]struct{})
	for _, p := range pending {
		if _, ok := seen[p.EventID]; ok {
			continue
		}
		seen[p.EventID] = struct{}{}
		if _, err := s.syncLocked(ctx, p.EventID); err != nil {
			return err
		}
	}

	return s.reportPending(ctx)
}

// ListConflicts returns conflicts awaiting staff resolution.
func (s *SyncService) ListConflicts(ctx context.Context) ([]models.SyncConflict, error) {
	return s.queueRepo.ListConflicts(ctx)
}

// ResolveConflict applies an explicit staff decision to a staged conflict.
// accept-server and discard drop it; force-apply re-queues the original
// action (same localId) flagged so the server skips state and capacity
// checks on the next sync.
func (s *SyncService) ResolveConflict(ctx context.Context, localID string, resolution models.Resolution) error {
	conflict, err := s.queueRepo.GetConflict(ctx, localID)
	if err != nil {
		return err
	}

	switch resolution {
	case models.ResolutionAcceptServer, models.ResolutionDiscard:
		// Nothing to push; the authoritative state arrives with the next
		// roster refresh.
	case models.ResolutionForceApply:
		forced := &models.PendingAction{Action: conflict.ClientState}
		forced.Force = true
		if err := s.queueRepo.Enqueue(ctx, forced); err != nil {
			return fmt.Errorf("failed to re-queue forced action: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown resolution %q", common.ErrValidation, resolution)
	}

	if err := s.queueRepo.RemoveConflicts(ctx, []string{localID}); err != nil {
		return fmt.Errorf("failed to drop conflict: %w", err)
	}
	s.logger.Info(ctx, "conflict resolved", "local_id", localID, "resolution", resolution)
	return nil
}

// LastSyncAt returns the recorded time of the last successful sync, zero if
// never synced.
func (s *SyncService) LastSyncAt(ctx context.Context) (time.Time, error) {
	value, err := s.metaRepo.Get(ctx, metadata.KeyLastSyncAt)
	if err != nil || len(value) == 0 {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, string(value))
}

func (s *SyncService) reportPending(ctx context.Context) error {
	deviceID, err := s.deviceID(ctx)
	if err != nil {
		return err
	}
	count, err := s.queueRepo.CountPending(ctx)
	if err != nil {
		return err
	}
	if err := s.apiClient.ReportPending(ctx, deviceID, count); err != nil {
		// Heartbeat is best-effort; a miss just leaves the dashboard stale.
		s.logger.Debug(ctx, "pending-count report failed", "error", err)
	}
	return nil
}

func (s *SyncService) deviceID(ctx context.Context) (string, error) {
	value, err := s.metaRepo.Get(ctx, metadata.KeyDeviceID)
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	if len(value) == 0 {
		return "", fmt.Errorf("device identity not initialized")
	}
	return string(value), nil
}

func localIDs(actions []models.PendingAction) []string {
	ids := make([]string, len(actions))
	for i, a := range actions {
		ids[i] = a.LocalID
	}
	return ids
}
