// Package api defines the JSON wire types exchanged between the staff
// device client and the check-in server. Both sides marshal exactly these
// structs, so the package carries the enum values and validation rules for
// the protocol.
package api

import (
	"fmt"
	"time"
)

type ActionType string

const (
	ActionCheckIn     ActionType = "check_in"
	ActionManualEntry ActionType = "manual_entry"
)

type RegistrationType string

const (
	RegistrationRSVP   RegistrationType = "rsvp"
	RegistrationTicket RegistrationType = "ticket"
	RegistrationWalkIn RegistrationType = "walk_in"
)

type ParticipationStatus string

const (
	StatusRegistered ParticipationStatus = "registered"
	StatusCheckedIn  ParticipationStatus = "checked_in"
	StatusCancelled  ParticipationStatus = "cancelled"
	StatusWaitlisted ParticipationStatus = "waitlisted"
)

type ConflictReason string

const (
	ReasonAlreadyCheckedIn ConflictReason = "already_checked_in"
	ReasonCapacityExceeded ConflictReason = "capacity_exceeded"
	ReasonAttendeeNotFound ConflictReason = "attendee_not_found"
	ReasonAttendeeCancelled ConflictReason = "attendee_cancelled"
)

type OutcomeStatus string

const (
	OutcomeApplied   OutcomeStatus = "applied"
	OutcomeDuplicate OutcomeStatus = "duplicate"
	OutcomeConflict  OutcomeStatus = "conflict"
)

// Action is one queued staff action as transmitted in a sync batch.
// AttendeeID is empty for a manual (walk-in) entry; DisplayName and
// RegistrationType are set only for manual entries. Force marks an action
// re-submitted after an explicit staff conflict resolution.
type Action struct {
	LocalID          string           `json:"local_id"`
	DeviceID         string           `json:"device_id"`
	EventID          string           `json:"event_id"`
	AttendeeID       string           `json:"attendee_id,omitempty"`
	Type             ActionType       `json:"type"`
	DisplayName      string           `json:"display_name,omitempty"`
	RegistrationType RegistrationType `json:"registration_type,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	Force            bool             `json:"force,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Validate checks the structural rules an action must satisfy before it may
// be queued or reconciled. Violations are client bugs, not conflicts.
func (a *Action) Validate() error {
	if a.LocalID == "" {
		return fmt.Errorf("action: missing local_id")
	}
	if a.EventID == "" {
		return fmt.Errorf("action %s: missing event_id", a.LocalID)
	}
	switch a.Type {
	case ActionCheckIn:
		if a.AttendeeID == "" {
			return fmt.Errorf("action %s: check_in requires attendee_id", a.LocalID)
		}
	case ActionManualEntry:
		if a.DisplayName == "" {
			return fmt.Errorf("action %s: manual_entry requires display_name", a.LocalID)
		}
	default:
		return fmt.Errorf("action %s: unknown type %q", a.LocalID, a.Type)
	}
	return nil
}

// Attendee is the wire snapshot of one registrant for one event.
type Attendee struct {
	ID               string              `json:"id"`
	EventID          string              `json:"event_id"`
	DisplayName      string              `json:"display_name"`
	RegistrationType RegistrationType    `json:"registration_type"`
	Status           ParticipationStatus `json:"status"`
	CheckInTime      *time.Time          `json:"check_in_time,omitempty"`
}

// Capacity is the wire form of an event capacity snapshot.
type Capacity struct {
	EventID    string `json:"event_id"`
	Capacity   int    `json:"capacity"`
	Registered int    `json:"registered_count"`
	CheckedIn  int    `json:"checked_in_count"`
}

// Outcome is the server's verdict on a single submitted action. Attendee
// carries the authoritative server record at decision time; for conflicts it
// is the state staff must review against.
type Outcome struct {
	LocalID  string         `json:"local_id"`
	Status   OutcomeStatus  `json:"status"`
	Reason   ConflictReason `json:"reason,omitempty"`
	Attendee *Attendee      `json:"attendee,omitempty"`
}

// BatchRequest submits pending actions for one event. PendingCount is the
// client-reported total of locally queued actions (across events) at submit
// time and feeds the pending-count endpoint.
type BatchRequest struct {
	DeviceID     string   `json:"device_id"`
	PendingCount int      `json:"pending_count"`
	Actions      []Action `json:"actions"`
}

// BatchResponse returns one outcome per submitted action, in submission
// order, plus the fresh authoritative roster so the client can replace its
// local snapshot in the same round trip.
type BatchResponse struct {
	Outcomes   []Outcome  `json:"outcomes"`
	Attendees  []Attendee `json:"attendees"`
	Capacity   Capacity   `json:"capacity"`
	ServerTime time.Time  `json:"server_time"`
}

// RosterResponse is the full attendee list plus capacity for an event.
type RosterResponse struct {
	Attendees  []Attendee `json:"attendees"`
	Capacity   Capacity   `json:"capacity"`
	ServerTime time.Time  `json:"server_time"`
}

// Activity is one recent check-in for the dashboard feed.
type Activity struct {
	AttendeeID  string    `json:"attendee_id"`
	DisplayName string    `json:"display_name"`
	DeviceID    string    `json:"device_id"`
	CheckInTime time.Time `json:"check_in_time"`
}

// DashboardResponse is the read-only staff dashboard projection.
type DashboardResponse struct {
	Capacity Capacity   `json:"capacity"`
	Recent   []Activity `json:"recent_checkins"`
}

// HeartbeatRequest reports a device's locally queued, unconfirmed action
// count. The server only stores what devices report; it cannot see a queue
// it has not received.
type HeartbeatRequest struct {
	DeviceID     string `json:"device_id"`
	PendingCount int    `json:"pending_count"`
}

// PendingCountResponse sums the reported queue sizes over the caller's
// devices.
type PendingCountResponse struct {
	Pending int `json:"pending"`
	Devices int `json:"devices"`
}

// ErrorResponse is the JSON error envelope for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
