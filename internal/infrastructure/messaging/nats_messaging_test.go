// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/introchat/intro-booking-service/internal/domain/models"
)

type fakeNatsConn struct {
	connected bool
	published map[string][][]byte
	err       error
}

func newFakeNatsConn() *fakeNatsConn {
	return &fakeNatsConn{connected: true, published: make(map[string][][]byte)}
}

func (f *fakeNatsConn) IsConnected() bool { return f.connected }

func (f *fakeNatsConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published[subj] = append(f.published[subj], data)
	return nil
}

func TestSendBookingProgress(t *testing.T) {
	conn := newFakeNatsConn()
	builder := NewMessageBuilder(conn)

	scheduled := time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC)
	message := models.BookingProgressMessage{
		RunID:       "run-1",
		MeetingType: models.MeetingTypeCoffee,
		Unit:        1,
		TotalUnits:  3,
		Result: models.BookingResult{
			RequesterEmail: "amy@corp.example",
			PartnerEmail:   "bob@corp.example",
			ScheduledTime:  &scheduled,
			Status:         models.BookingStatusBooked,
		},
	}

	err := builder.SendBookingProgress(context.Background(), message)
	require.NoError(t, err)
	require.Len(t, conn.published[models.BookingProgressSubject], 1)

	var decoded models.BookingProgressMessage
	require.NoError(t, msgpack.Unmarshal(conn.published[models.BookingProgressSubject][0], &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, models.BookingStatusBooked, decoded.Result.Status)
	assert.Equal(t, "bob@corp.example", decoded.Result.PartnerEmail)
}

func TestSendRosterSynced(t *testing.T) {
	conn := newFakeNatsConn()
	builder := NewMessageBuilder(conn)

	err := builder.SendRosterSynced(context.Background(), models.RosterSyncedMessage{
		MeetingType: models.MeetingTypeBuddy,
		Added:       []string{"carol@corp.example"},
		Removed:     []string{"dave@corp.example"},
	})
	require.NoError(t, err)

	var decoded models.RosterSyncedMessage
	require.NoError(t, msgpack.Unmarshal(conn.published[models.RosterSyncedSubject][0], &decoded))
	assert.Equal(t, models.MeetingTypeBuddy, decoded.MeetingType)
	assert.Equal(t, []string{"carol@corp.example"}, decoded.Added)
}

func TestSendBookingProgressPublishError(t *testing.T) {
	conn := newFakeNatsConn()
	conn.err = errors.New("connection closed")
	builder := NewMessageBuilder(conn)

	err := builder.SendBookingProgress(context.Background(), models.BookingProgressMessage{RunID: "run-1"})
	assert.Error(t, err)
}

func TestNatsMessage(t *testing.T) {
	msg := NewNatsMessage(&nats.Msg{
		Subject: models.BookIntrosSubject,
		Reply:   "_INBOX.abc",
		Data:    []byte(`{}`),
	})

	assert.Equal(t, models.BookIntrosSubject, msg.Subject())
	assert.Equal(t, []byte(`{}`), msg.Data())
	assert.True(t, msg.HasReply())

	noReply := NewNatsMessage(&nats.Msg{Subject: models.RosterSyncSubject})
	assert.False(t, noReply.HasReply())
}
