package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/gatherhall/doorsync/internal/common"
)

// CheckIn queues a check-in for a registered attendee. The action is
// durable the moment this returns; the server sees it on the next sync.
func (a *App) CheckIn(ctx context.Context) error {
	if a.eventID == "" {
		log.Println("No event loaded, use 'load' first")
		return nil
	}

	attendeeID, err := getSimpleText(a.reader, "Enter attendee id", os.Stdout)
	if err != nil {
		return err
	}
	if attendeeID == "" {
		log.Println("No attendee id entered")
		return nil
	}

	action, err := a.checkin.CheckIn(ctx, a.eventID, attendeeID, "")
	if err != nil {
		if errors.Is(err, common.ErrQueueFull) {
			log.Println("Local queue is full, sync before queueing more actions")
			return nil
		}
		return err
	}

	fmt.Printf("Queued check-in %s\n", action.LocalID)
	return nil
}

// WalkIn queues a manual entry for someone without a registration.
func (a *App) WalkIn(ctx context.Context) error {
	if a.eventID == "" {
		log.Println("No event loaded, use 'load' first")
		return nil
	}

	name, err := getSimpleText(a.reader, "Enter attendee name", os.Stdout)
	if err != nil {
		return err
	}
	if name == "" {
		log.Println("No name entered")
		return nil
	}

	notes, err := getSimpleText(a.reader, "Notes (optional)", os.Stdout)
	if err != nil {
		return err
	}

	action, err := a.checkin.ManualEntry(ctx, a.eventID, name, notes)
	if err != nil {
		if errors.Is(err, common.ErrQueueFull) {
			log.Println("Local queue is full, sync before queueing more actions")
			return nil
		}
		return err
	}

	fmt.Printf("Queued walk-in %s for %q\n", action.LocalID, name)
	return nil
}
