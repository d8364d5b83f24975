// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

// Package messaging contains the NATS message builder and message wrapper.
package messaging

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/domain/models"
	"github.com/introchat/intro-booking-service/internal/logging"
)

// INatsConn is a NATS connection interface needed for the [MessageBuilder].
type INatsConn interface {
	IsConnected() bool
	Publish(subj string, data []byte) error
}

// MessageBuilder is the builder for the message and sends it to the NATS server.
type MessageBuilder struct {
	NatsConn INatsConn
}

// Ensure that MessageBuilder implements domain.MessageBuilder
var _ domain.MessageBuilder = (*MessageBuilder)(nil)

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{
		NatsConn: natsConn,
	}
}

// sendMessage sends the message to the NATS server.
func (m *MessageBuilder) sendMessage(ctx context.Context, subject string, data []byte) error {
	err := m.NatsConn.Publish(subject, data)
	if err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return err
	}
	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

// SendBookingProgress publishes one unit result of an in-flight booking run.
func (m *MessageBuilder) SendBookingProgress(ctx context.Context, message models.BookingProgressMessage) error {
	messageBytes, err := msgpack.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling booking progress message", logging.ErrKey, err)
		return err
	}

	return m.sendMessage(ctx, models.BookingProgressSubject, messageBytes)
}

// SendRosterSynced publishes the outcome of a roster synchronization.
func (m *MessageBuilder) SendRosterSynced(ctx context.Context, message models.RosterSyncedMessage) error {
	messageBytes, err := msgpack.Marshal(message)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling roster synced message", logging.ErrKey, err)
		return err
	}

	return m.sendMessage(ctx, models.RosterSyncedSubject, messageBytes)
}

// NatsMessage wraps a *nats.Msg as a [domain.Message].
type NatsMessage struct {
	msg *nats.Msg
}

// Ensure that NatsMessage implements domain.Message
var _ domain.Message = (*NatsMessage)(nil)

// NewNatsMessage creates a new NatsMessage.
func NewNatsMessage(msg *nats.Msg) *NatsMessage {
	return &NatsMessage{msg: msg}
}

// Subject returns the subject of the message.
func (n *NatsMessage) Subject() string {
	return n.msg.Subject
}

// Data returns the payload of the message.
func (n *NatsMessage) Data() []byte {
	return n.msg.Data
}

// Respond replies to the message if the sender requested a reply.
func (n *NatsMessage) Respond(data []byte) error {
	return n.msg.Respond(data)
}

// HasReply reports whether the sender requested a reply.
func (n *NatsMessage) HasReply() bool {
	return n.msg.Reply != ""
}
