// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/domain/models"
	"github.com/introchat/intro-booking-service/internal/logging"
)

// HandlerReady implements the domain.MessageHandler interface.
func (s *BookingService) HandlerReady() bool {
	return s.ServiceReady()
}

// HandleMessage implements the domain.MessageHandler interface.
func (s *BookingService) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		models.BookIntrosSubject: s.HandleBookIntros,
		models.RosterSyncSubject: s.HandleRosterSync,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		if err := msg.Respond(nil); err != nil {
			slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		}
		return
	}

	response, err := handler(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "error handling message",
			logging.ErrKey, err,
			"subject", subject,
		)
		if err := msg.Respond(nil); err != nil {
			slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		}
		return
	}

	if err := msg.Respond(response); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}

	slog.DebugContext(ctx, "responded to NATS message")
}

// HandleBookIntros is the message handler for the book subject. The reply is
// the JSON run report.
func (s *BookingService) HandleBookIntros(ctx context.Context, msg domain.Message) ([]byte, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service dependencies not initialized")
		return nil, fmt.Errorf("service dependencies not initialized")
	}

	var payload models.BookIntrosPayload
	if err := json.Unmarshal(msg.Data(), &payload); err != nil {
		slog.ErrorContext(ctx, "error unmarshalling booking payload", logging.ErrKey, err)
		return nil, domain.NewValidationError("invalid booking payload", err)
	}

	meetingType, err := models.ParseMeetingType(payload.MeetingType)
	if err != nil {
		return nil, domain.NewValidationError("invalid meeting type", err)
	}

	startDate, err := time.ParseInLocation("2006-01-02", payload.StartDate, s.config.Location)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid start date %q, expected YYYY-MM-DD", payload.StartDate), err)
	}

	report, err := s.BookIntros(ctx, &models.BookingRequest{
		MeetingType:          meetingType,
		RequesterEmails:      payload.RequesterEmails,
		StartDate:            startDate,
		MeetingsPerRequester: payload.MeetingsPerRequester,
	})
	if err != nil {
		return nil, err
	}

	return json.Marshal(report)
}

// HandleRosterSync is the message handler for the roster sync subject. The
// reply is the JSON sync result.
func (s *BookingService) HandleRosterSync(ctx context.Context, msg domain.Message) ([]byte, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service dependencies not initialized")
		return nil, fmt.Errorf("service dependencies not initialized")
	}

	var payload models.RosterSyncPayload
	if err := json.Unmarshal(msg.Data(), &payload); err != nil {
		slog.ErrorContext(ctx, "error unmarshalling roster sync payload", logging.ErrKey, err)
		return nil, domain.NewValidationError("invalid roster sync payload", err)
	}

	meetingType, err := models.ParseMeetingType(payload.MeetingType)
	if err != nil {
		return nil, domain.NewValidationError("invalid meeting type", err)
	}

	result, err := s.SyncRoster(ctx, meetingType)
	if err != nil {
		return nil, err
	}

	return json.Marshal(result)
}
