// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/introchat/intro-booking-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// MessageBuilder publishes service events. Publishing is fire-and-forget for
// the booking run's correctness: a failed publish is logged, not surfaced as
// a unit failure.
type MessageBuilder interface {
	SendBookingProgress(ctx context.Context, message models.BookingProgressMessage) error
	SendRosterSynced(ctx context.Context, message models.RosterSyncedMessage) error
}
