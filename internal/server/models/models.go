// Package models holds the server-side, authoritative data model for events
// and their attendee rosters.
package models

import (
	"time"

	"github.com/gatherhall/doorsync/internal/api"
)

// Event is one capacity-constrained event.
type Event struct {
	ID            string
	Name          string
	Capacity      int
	AllowWaitlist bool
	CreatedAt     time.Time
}

// Attendee is the authoritative participation record of one registrant.
type Attendee struct {
	ID               string
	EventID          string
	DisplayName      string
	RegistrationType api.RegistrationType
	Status           api.ParticipationStatus
	CheckInTime      *time.Time
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Wire converts the record to its API representation.
func (a *Attendee) Wire() *api.Attendee {
	return &api.Attendee{
		ID:               a.ID,
		EventID:          a.EventID,
		DisplayName:      a.DisplayName,
		RegistrationType: a.RegistrationType,
		Status:           a.Status,
		CheckInTime:      a.CheckInTime,
	}
}

// AppliedAction is one row in the applied-actions ledger. The (DeviceID,
// LocalID) pair is the idempotency key: a batch replayed after a dropped
// response matches here and never double-applies.
type AppliedAction struct {
	DeviceID   string
	LocalID    string
	EventID    string
	AttendeeID string
	AppliedAt  time.Time
}

// RosterFilters narrows attendee listings.
type RosterFilters struct {
	Status           api.ParticipationStatus
	RegistrationType api.RegistrationType
}

// DeviceStatus is the last pending-count report from one staff device.
type DeviceStatus struct {
	DeviceID     string
	StaffID      string
	PendingCount int
	ReportedAt   time.Time
}
