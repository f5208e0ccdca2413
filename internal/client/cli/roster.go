package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gatherhall/doorsync/internal/client/models"
	"github.com/gatherhall/doorsync/internal/common"
)

var getSimpleText = GetSimpleText

// Load fetches the authoritative roster for an event and caches it locally,
// making the event the active one for subsequent commands. This is how a
// device preloads before going through a venue's dead zone.
func (a *App) Load(ctx context.Context) error {
	eventID, err := getSimpleText(a.reader, "Enter event id", os.Stdout)
	if err != nil {
		return err
	}
	if eventID == "" {
		log.Println("No event id entered")
		return nil
	}

	resp, err := a.apiClient.GetRoster(ctx, eventID)
	if err != nil {
		log.Printf("Could not load roster: %s", err.Error())
		// A cached copy still makes the event usable offline.
		if _, _, cacheErr := a.checkin.Roster(ctx, eventID); cacheErr == nil {
			a.eventID = eventID
			log.Println("Using cached roster")
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	attendees := make([]models.AttendeeSnapshot, 0, len(resp.Attendees))
	for _, att := range resp.Attendees {
		attendees = append(attendees, models.AttendeeSnapshot{Attendee: att, LastSyncedAt: now})
	}
	if err := a.repos.Snapshots.Set(ctx, eventID, attendees, resp.Capacity); err != nil {
		return err
	}

	a.eventID = eventID
	fmt.Printf("Loaded %d attendees for event %s (capacity %d/%d checked in)\n",
		len(attendees), eventID, resp.Capacity.CheckedIn, resp.Capacity.Capacity)
	return nil
}

// List prints the cached roster for the active event.
func (a *App) List(ctx context.Context) error {
	if a.eventID == "" {
		log.Println("No event loaded, use 'load' first")
		return nil
	}

	attendees, capacity, err := a.checkin.Roster(ctx, a.eventID)
	if err != nil {
		if errors.Is(err, common.ErrSnapshotExpired) {
			log.Println("Cached roster is stale, run 'sync' or 'load' while online")
			return nil
		}
		if errors.Is(err, common.ErrNotFound) {
			log.Println("No cached roster, use 'load' first")
			return nil
		}
		return err
	}

	for _, att := range attendees {
		checked := " "
		if att.CheckInTime != nil {
			checked = "✓"
		}
		fmt.Printf("[%s] %-30s %-10s %-12s %s\n",
			checked, att.DisplayName, att.Status, att.RegistrationType, att.ID)
	}
	fmt.Printf("%d/%d checked in, capacity %d\n",
		capacity.CheckedIn, capacity.Registered, capacity.Capacity)
	return nil
}
