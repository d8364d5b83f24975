// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"
)

// BusyInterval is one busy period on a calendar.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the interval overlaps [start, end).
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}

// CreateEventRequest describes one calendar event to create.
type CreateEventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	Duration    time.Duration
	Attendees   []string
}

// CalendarProvider is the external calendar collaborator. FreeBusy batches
// all calendars of a candidate pair into one query so the slot search costs
// one round trip per candidate day instead of one per member.
type CalendarProvider interface {
	// FreeBusy returns the union of busy intervals across the given
	// calendars within [windowStart, windowEnd).
	FreeBusy(ctx context.Context, calendarIDs []string, windowStart, windowEnd time.Time) ([]BusyInterval, error)

	// CreateEvent creates an event on the booking calendar and invites the
	// attendees. Returns the provider's event ID.
	CreateEvent(ctx context.Context, event CreateEventRequest) (string, error)

	// BookingCalendarID is the calendar events are created on. It is
	// included in free/busy queries so slots already taken by other intro
	// bookings are not reused.
	BookingCalendarID() string
}
