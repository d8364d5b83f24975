// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects handled by the intro booking service.
const (
	// IntroBookingQueue is the queue group the service subscribes with, so
	// that only one instance handles a given request.
	IntroBookingQueue = "intro-booking-api-queue"

	// BookIntrosSubject triggers one booking run. The request payload is a
	// JSON [BookIntrosPayload]; the reply is a JSON [RunReport].
	BookIntrosSubject = "itx.intro-booking-api.book"

	// RosterSyncSubject triggers a roster synchronization for one meeting
	// type. The request payload is a JSON [RosterSyncPayload]; the reply is
	// a JSON [RosterSyncResult].
	RosterSyncSubject = "itx.intro-booking-api.roster_sync"
)

// NATS subjects the service publishes to.
const (
	// BookingProgressSubject carries one msgpack [BookingProgressMessage]
	// per closed unit, in commit order, so the front end can stream status.
	BookingProgressSubject = "itx.intro-booking.progress"

	// RosterSyncedSubject carries one msgpack [RosterSyncedMessage] per
	// completed synchronization.
	RosterSyncedSubject = "itx.intro-booking.roster_synced"
)

// BookIntrosPayload is the wire form of a booking request. StartDate is a
// civil date in ISO 8601 form (YYYY-MM-DD).
type BookIntrosPayload struct {
	MeetingType          string   `json:"meeting_type"`
	RequesterEmails      []string `json:"requester_emails"`
	StartDate            string   `json:"start_date"`
	MeetingsPerRequester int      `json:"meetings_per_requester"`
}

// RosterSyncPayload is the wire form of a roster synchronization request.
type RosterSyncPayload struct {
	MeetingType string `json:"meeting_type"`
}

// BookingProgressMessage is emitted after each unit closes.
type BookingProgressMessage struct {
	RunID       string        `msgpack:"run_id"`
	MeetingType MeetingType   `msgpack:"meeting_type"`
	Unit        int           `msgpack:"unit"`
	TotalUnits  int           `msgpack:"total_units"`
	Result      BookingResult `msgpack:"result"`
	ClosedAt    time.Time     `msgpack:"closed_at"`
}

// RosterSyncedMessage is emitted after a roster synchronization completes.
type RosterSyncedMessage struct {
	MeetingType MeetingType `msgpack:"meeting_type"`
	Added       []string    `msgpack:"added"`
	Removed     []string    `msgpack:"removed"`
	SyncedAt    time.Time   `msgpack:"synced_at"`
}
