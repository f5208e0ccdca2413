package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/gatherhall/doorsync/internal/client/models"
	"github.com/gatherhall/doorsync/internal/common"
)

// Sync drains the queue for the active event and reports outcomes.
func (a *App) Sync(ctx context.Context) error {
	if a.eventID == "" {
		log.Println("No event loaded, use 'load' first")
		return nil
	}

	result, err := a.syncSvc.Sync(ctx, a.eventID)
	if err != nil {
		if errors.Is(err, common.ErrRetryable) {
			log.Println("Server unreachable, queued actions are safe and will sync later")
			a.setMode(ModeOffline)
			return nil
		}
		return err
	}

	a.setMode(ModeOnline)
	fmt.Printf("Sync done: %d applied, %d duplicates, %d conflicts\n",
		result.Applied, result.Duplicates, len(result.Conflicts))
	if len(result.Conflicts) > 0 {
		fmt.Println("Run 'conflicts' to review them")
	}
	return nil
}

// Conflicts lists actions the server rejected, awaiting a staff decision.
func (a *App) Conflicts(ctx context.Context) error {
	conflicts, err := a.syncSvc.ListConflicts(ctx)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Println("No conflicts")
		return nil
	}

	for _, c := range conflicts {
		fmt.Printf("%s  %s  attendee=%s", c.LocalID, c.Reason, c.AttendeeID)
		if c.ServerState != nil {
			fmt.Printf("  server: %s is %s", c.ServerState.DisplayName, c.ServerState.Status)
		}
		fmt.Println()
	}
	return nil
}

// Resolve applies a staff decision to one staged conflict.
func (a *App) Resolve(ctx context.Context) error {
	localID, err := getSimpleText(a.reader, "Enter conflict local id", os.Stdout)
	if err != nil {
		return err
	}

	choice, err := getSimpleText(a.reader, "Resolution (accept-server | force-apply | discard)", os.Stdout)
	if err != nil {
		return err
	}

	if err := a.syncSvc.ResolveConflict(ctx, localID, models.Resolution(choice)); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Println("No such conflict")
			return nil
		}
		if errors.Is(err, common.ErrValidation) {
			log.Println("Unknown resolution, use accept-server, force-apply or discard")
			return nil
		}
		return err
	}

	fmt.Println("Resolved")
	if models.Resolution(choice) == models.ResolutionForceApply {
		fmt.Println("Forced action re-queued, it applies on the next sync")
	}
	return nil
}

// Status summarizes the device state: mode, active event, queue depth and
// last successful sync.
func (a *App) Status(ctx context.Context) error {
	pending, err := a.checkin.PendingCount(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Mode:     %s\n", a.Mode)
	if a.eventID != "" {
		fmt.Printf("Event:    %s\n", a.eventID)
	} else {
		fmt.Println("Event:    (none loaded)")
	}
	fmt.Printf("Pending:  %d queued actions\n", pending)

	lastSync, err := a.syncSvc.LastSyncAt(ctx)
	if err == nil && !lastSync.IsZero() {
		fmt.Printf("Last sync: %s\n", lastSync.Local().Format("15:04:05"))
	} else {
		fmt.Println("Last sync: never")
	}

	conflicts, err := a.syncSvc.ListConflicts(ctx)
	if err == nil && len(conflicts) > 0 {
		fmt.Printf("Conflicts: %d awaiting review\n", len(conflicts))
	}
	return nil
}
