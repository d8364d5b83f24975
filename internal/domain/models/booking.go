// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// BookingStatus is the outcome of one booking unit.
type BookingStatus string

const (
	// BookingStatusBooked means the event was created and the partner's
	// weight was incremented.
	BookingStatusBooked BookingStatus = "booked"
	// BookingStatusNoPartner means the selector found no eligible candidate.
	BookingStatusNoPartner BookingStatus = "no_partner"
	// BookingStatusNoSlot means the resolver exhausted its lookahead without
	// a mutual opening.
	BookingStatusNoSlot BookingStatus = "no_slot"
	// BookingStatusCalendarError means event creation failed after retries.
	BookingStatusCalendarError BookingStatus = "calendar_error"
	// BookingStatusStoreError means a roster store operation failed for this
	// unit.
	BookingStatusStoreError BookingStatus = "store_error"
	// BookingStatusConflict means the weight update lost its optimistic
	// concurrency race past the retry budget. The calendar event may exist,
	// so this is surfaced distinctly for manual reconciliation.
	BookingStatusConflict BookingStatus = "conflict"
)

// BookingRequest drives one booking run.
type BookingRequest struct {
	MeetingType          MeetingType
	RequesterEmails      []string
	StartDate            time.Time
	MeetingsPerRequester int
}

// Validate checks the request invariants before a run starts.
func (r *BookingRequest) Validate() error {
	if _, err := ParseMeetingType(string(r.MeetingType)); err != nil {
		return err
	}
	if len(r.RequesterEmails) == 0 {
		return fmt.Errorf("at least one requester email is required")
	}
	for _, email := range r.RequesterEmails {
		if NormalizeEmail(email) == "" {
			return fmt.Errorf("empty requester email")
		}
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("start date is required")
	}
	if r.MeetingsPerRequester < 1 {
		return fmt.Errorf("meetings per requester must be at least 1, got %d", r.MeetingsPerRequester)
	}
	return nil
}

// BookingResult is the outcome of one unit: one requester/partner pairing
// attempt. Every unit produces exactly one result regardless of outcome.
type BookingResult struct {
	RequesterEmail string        `json:"requester_email" msgpack:"requester_email"`
	PartnerEmail   string        `json:"partner_email,omitempty" msgpack:"partner_email,omitempty"`
	ScheduledTime  *time.Time    `json:"scheduled_time,omitempty" msgpack:"scheduled_time,omitempty"`
	Status         BookingStatus `json:"status" msgpack:"status"`
	Detail         string        `json:"detail,omitempty" msgpack:"detail,omitempty"`
}

// RunReport aggregates the unit results of one booking run.
type RunReport struct {
	Type      MeetingType     `json:"type"`
	Results   []BookingResult `json:"results"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

// NewRunReport creates an empty report for a run.
func NewRunReport(meetingType MeetingType) *RunReport {
	return &RunReport{Type: meetingType}
}

// Record appends a unit result and updates the success/failure tallies.
func (r *RunReport) Record(result BookingResult) {
	r.Results = append(r.Results, result)
	if result.Status == BookingStatusBooked {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// RosterSyncResult reports the effect of one roster synchronization.
type RosterSyncResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}
