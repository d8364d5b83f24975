// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/introchat/intro-booking-service/internal/domain/models"
)

// RosterRepository defines the interface for roster storage operations,
// scoped by meeting type. This interface can be implemented by different
// storage backends (NATS KV, DynamoDB, etc.)
type RosterRepository interface {
	// GetAll returns every member of a meeting type's roster, ordered by
	// email so that selection over an unchanged roster is reproducible.
	GetAll(ctx context.Context, meetingType models.MeetingType) ([]*models.Member, error)

	// Get returns a single member, or a not-found error.
	Get(ctx context.Context, email string, meetingType models.MeetingType) (*models.Member, error)

	// Upsert creates or replaces a member record.
	Upsert(ctx context.Context, member *models.Member) error

	// Delete removes a member record.
	Delete(ctx context.Context, email string, meetingType models.MeetingType) error

	// IncrementWeight atomically increments a member's weight by one and
	// records the booked date. Implementations must not lose updates under
	// concurrent callers: a conditional update that loses its race is
	// retried with a freshly re-read record, bounded by a small retry
	// count, and surfaces a conflict error past the budget.
	IncrementWeight(ctx context.Context, email string, meetingType models.MeetingType, bookedDate time.Time) (int, error)

	// TouchLastBooked updates a member's last booked date without changing
	// the weight. Used for the requester side of a pairing when the
	// requester is also a roster member.
	TouchLastBooked(ctx context.Context, email string, meetingType models.MeetingType, bookedDate time.Time) error
}

// RosterLease serializes roster mutation per meeting type: a sync either
// fully precedes or fully follows a booking run.
type RosterLease interface {
	// Acquire takes the per-meeting-type lease, returning a conflict error
	// if another holder has it and the lease is not stale.
	Acquire(ctx context.Context, meetingType models.MeetingType, holder string) error

	// Release gives the lease back. Releasing a lease held by someone else
	// is an error.
	Release(ctx context.Context, meetingType models.MeetingType, holder string) error
}
