// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/domain/models"
	"github.com/introchat/intro-booking-service/internal/logging"
	"github.com/introchat/intro-booking-service/pkg/utils"
)

// leaseReleaseTimeout bounds the lease release after the run context is done.
const leaseReleaseTimeout = 10 * time.Second

// BookingService orchestrates booking runs. One run serializes against
// roster syncs of the same meeting type via the store lease, then walks
// requester by requester, unit by unit: select a partner, resolve a slot,
// commit the calendar event, record the rotation state. Every unit closes
// with exactly one result regardless of outcome.
type BookingService struct {
	config           ServiceConfig
	rosterRepository domain.RosterRepository
	rosterLease      domain.RosterLease
	calendar         domain.CalendarProvider
	messageBuilder   domain.MessageBuilder
	rosterSync       *RosterSyncService
	availability     *AvailabilityService
	selector         *PartnerSelector

	unitCounter metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	config ServiceConfig,
	rosterRepository domain.RosterRepository,
	rosterLease domain.RosterLease,
	calendar domain.CalendarProvider,
	messageBuilder domain.MessageBuilder,
	rosterSync *RosterSyncService,
) *BookingService {
	s := &BookingService{
		config:           config,
		rosterRepository: rosterRepository,
		rosterLease:      rosterLease,
		calendar:         calendar,
		messageBuilder:   messageBuilder,
		rosterSync:       rosterSync,
		availability:     NewAvailabilityService(calendar, config),
		selector:         NewPartnerSelector(config.CadenceBusinessDays, config.AllowRepeatPartners),
	}

	meter := otel.Meter("github.com/introchat/intro-booking-service/internal/service")
	var err error
	s.unitCounter, err = meter.Int64Counter("intro_booking.units",
		metric.WithDescription("Booking units closed, by status"))
	if err != nil {
		slog.Warn("failed to create booking unit counter", logging.ErrKey, err)
	}
	s.runDuration, err = meter.Float64Histogram("intro_booking.run.duration",
		metric.WithDescription("Booking run duration"), metric.WithUnit("s"))
	if err != nil {
		slog.Warn("failed to create booking run duration histogram", logging.ErrKey, err)
	}

	return s
}

// ServiceReady checks if the service is ready to run bookings.
func (s *BookingService) ServiceReady() bool {
	return s.rosterRepository != nil &&
		s.rosterLease != nil &&
		s.calendar != nil &&
		s.messageBuilder != nil &&
		s.rosterSync != nil
}

// BookIntros executes one booking run and returns the per-unit report. The
// run holds the meeting type's lease end to end; when the run timeout
// expires, no new units are started and the partial report is returned.
func (s *BookingService) BookIntros(ctx context.Context, request *models.BookingRequest) (*models.RunReport, error) {
	if err := request.Validate(); err != nil {
		return nil, domain.NewValidationError("invalid booking request", err)
	}

	runID := uuid.New().String()
	ctx = logging.AppendCtx(ctx,
		slog.String("run_id", runID),
		slog.String("meeting_type", string(request.MeetingType)),
	)
	started := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	if err := s.rosterLease.Acquire(runCtx, request.MeetingType, runID); err != nil {
		slog.ErrorContext(ctx, "failed to acquire roster lease", logging.ErrKey, err)
		return nil, err
	}
	defer func() {
		// Release must proceed even when the run context has expired.
		releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), leaseReleaseTimeout)
		defer releaseCancel()
		if err := s.rosterLease.Release(releaseCtx, request.MeetingType, runID); err != nil {
			slog.ErrorContext(ctx, "failed to release roster lease", logging.ErrKey, err)
		}
	}()

	// A directory outage must not block booking: the run proceeds on the
	// stored roster when the refresh fails.
	if _, err := s.rosterSync.Sync(runCtx, request.MeetingType); err != nil {
		slog.WarnContext(ctx, "roster refresh failed, booking with stored roster", logging.ErrKey, err)
	}

	roster, requesters, err := s.loadParticipants(runCtx, request)
	if err != nil {
		return nil, err
	}

	report := models.NewRunReport(request.MeetingType)
	used := make(map[string]bool)
	var bookedSlots []domain.BusyInterval

	startDate := utils.StartOfDay(request.StartDate.In(s.config.Location), s.config.Location)
	totalUnits := len(requesters) * request.MeetingsPerRequester
	unit := 0

runLoop:
	for _, requester := range requesters {
		notBefore := startDate
		for i := 0; i < request.MeetingsPerRequester; i++ {
			if runCtx.Err() != nil {
				slog.WarnContext(ctx, "run timed out, returning partial report",
					"closed_units", unit,
					"total_units", totalUnits,
				)
				break runLoop
			}

			unit++
			result := s.bookUnit(runCtx, request.MeetingType, requester, roster, used, &bookedSlots, notBefore)
			report.Record(result)
			s.recordUnit(ctx, request.MeetingType, result.Status)
			s.publishProgress(ctx, runID, request.MeetingType, unit, totalUnits, result)

			if result.Status == models.BookingStatusBooked && result.ScheduledTime != nil {
				slotDay := utils.StartOfDay(*result.ScheduledTime, s.config.Location)
				notBefore = utils.AddBusinessDays(slotDay, s.config.CadenceBusinessDays)
			}
		}
	}

	if s.runDuration != nil {
		s.runDuration.Record(ctx, time.Since(started).Seconds(),
			metric.WithAttributes(attribute.String("meeting_type", string(request.MeetingType))))
	}

	slog.InfoContext(ctx, "booking run finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration", time.Since(started).String(),
	)
	return report, nil
}

// loadParticipants ensures every requester has a roster record, then takes
// the roster snapshot the whole run selects from and maps requesters onto it.
// Requesters never enter the candidate pool: a run booking several new
// starters pairs each of them with existing members, not with one another.
func (s *BookingService) loadParticipants(ctx context.Context, request *models.BookingRequest) ([]*models.Member, []*models.Member, error) {
	requesterSet := make(map[string]bool, len(request.RequesterEmails))
	for _, email := range request.RequesterEmails {
		requesterSet[models.NormalizeEmail(email)] = true
	}

	for _, email := range request.RequesterEmails {
		email = models.NormalizeEmail(email)
		_, err := s.rosterRepository.Get(ctx, email, request.MeetingType)
		if err == nil {
			continue
		}
		if domain.GetErrorType(err) != domain.ErrorTypeNotFound {
			return nil, nil, err
		}
		newcomer := &models.Member{
			Email:       email,
			DisplayName: models.DisplayNameFromEmail(email),
			MeetingType: request.MeetingType,
			Weight:      0,
		}
		if err := s.rosterRepository.Upsert(ctx, newcomer); err != nil {
			return nil, nil, err
		}
	}

	roster, err := s.rosterRepository.GetAll(ctx, request.MeetingType)
	if err != nil {
		return nil, nil, err
	}

	byEmail := make(map[string]*models.Member, len(roster))
	candidates := make([]*models.Member, 0, len(roster))
	for _, member := range roster {
		email := models.NormalizeEmail(member.Email)
		byEmail[email] = member
		if !requesterSet[email] {
			candidates = append(candidates, member)
		}
	}

	requesters := make([]*models.Member, 0, len(request.RequesterEmails))
	for _, email := range request.RequesterEmails {
		member, ok := byEmail[models.NormalizeEmail(email)]
		if !ok {
			return nil, nil, domain.NewInternalError(fmt.Sprintf("requester %q missing from roster snapshot", email))
		}
		requesters = append(requesters, member)
	}

	return candidates, requesters, nil
}

// bookUnit closes one unit: SELECT, RESOLVE, COMMIT, RECORD. Once the event
// is created the partner and slot are consumed for the rest of the run even
// when recording the rotation state fails afterwards.
func (s *BookingService) bookUnit(
	ctx context.Context,
	meetingType models.MeetingType,
	requester *models.Member,
	roster []*models.Member,
	used map[string]bool,
	bookedSlots *[]domain.BusyInterval,
	notBefore time.Time,
) models.BookingResult {
	result := models.BookingResult{RequesterEmail: models.NormalizeEmail(requester.Email)}
	ctx = logging.AppendCtx(ctx, slog.String("requester", result.RequesterEmail))

	partner, ok := s.selector.Select(requester.Email, roster, used, notBefore)
	if !ok {
		result.Status = models.BookingStatusNoPartner
		result.Detail = "no eligible partner in roster"
		return result
	}
	result.PartnerEmail = models.NormalizeEmail(partner.Email)

	slot, ok, err := s.availability.FindSlot(ctx, []string{result.RequesterEmail, result.PartnerEmail}, notBefore, *bookedSlots)
	if err != nil {
		slog.ErrorContext(ctx, "slot search failed", logging.ErrKey, err, "partner", result.PartnerEmail)
		result.Status = models.BookingStatusCalendarError
		result.Detail = err.Error()
		return result
	}
	if !ok {
		result.Status = models.BookingStatusNoSlot
		result.Detail = fmt.Sprintf("no mutual opening within %d business days", s.config.MaxLookaheadDays)
		return result
	}
	result.ScheduledTime = utils.TimePtr(slot)

	templates := s.config.TemplatesFor(meetingType)
	tc := models.TemplateContext{Requester: *requester, Partner: *partner}
	eventID, err := s.calendar.CreateEvent(ctx, domain.CreateEventRequest{
		Summary:     templates.RenderTitle(tc),
		Description: templates.RenderDescription(tc),
		Start:       slot,
		Duration:    s.config.SlotDuration,
		Attendees:   []string{result.RequesterEmail, result.PartnerEmail},
	})
	if err != nil {
		slog.ErrorContext(ctx, "event creation failed", logging.ErrKey, err, "partner", result.PartnerEmail)
		result.ScheduledTime = nil
		result.Status = models.BookingStatusCalendarError
		result.Detail = err.Error()
		return result
	}

	used[result.PartnerEmail] = true
	*bookedSlots = append(*bookedSlots, domain.BusyInterval{Start: slot, End: slot.Add(s.config.SlotDuration)})

	newWeight, err := s.rosterRepository.IncrementWeight(ctx, partner.Email, meetingType, slot)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record partner booking", logging.ErrKey, err,
			"partner", result.PartnerEmail,
			"event_id", eventID,
		)
		if domain.GetErrorType(err) == domain.ErrorTypeConflict {
			result.Status = models.BookingStatusConflict
			result.Detail = "weight update lost its concurrency race; event created, needs reconciliation"
		} else {
			result.Status = models.BookingStatusStoreError
			result.Detail = err.Error()
		}
		return result
	}
	partner.Weight = newWeight
	partner.LastBookedDate = utils.TimePtr(slot)

	if err := s.rosterRepository.TouchLastBooked(ctx, requester.Email, meetingType, slot); err != nil {
		slog.WarnContext(ctx, "failed to record requester booking date", logging.ErrKey, err)
	} else {
		requester.LastBookedDate = utils.TimePtr(slot)
	}

	slog.InfoContext(ctx, "booked intro",
		"partner", result.PartnerEmail,
		"slot", slot.Format(time.RFC3339),
		"event_id", eventID,
	)
	result.Status = models.BookingStatusBooked
	return result
}

func (s *BookingService) recordUnit(ctx context.Context, meetingType models.MeetingType, status models.BookingStatus) {
	if s.unitCounter == nil {
		return
	}
	s.unitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("meeting_type", string(meetingType)),
		attribute.String("status", string(status)),
	))
}

func (s *BookingService) publishProgress(ctx context.Context, runID string, meetingType models.MeetingType, unit, totalUnits int, result models.BookingResult) {
	err := s.messageBuilder.SendBookingProgress(ctx, models.BookingProgressMessage{
		RunID:       runID,
		MeetingType: meetingType,
		Unit:        unit,
		TotalUnits:  totalUnits,
		Result:      result,
		ClosedAt:    time.Now().UTC(),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish booking progress", logging.ErrKey, err, "unit", unit)
	}
}

// SyncRoster runs a standalone roster synchronization under the meeting
// type's lease, serialized against booking runs.
func (s *BookingService) SyncRoster(ctx context.Context, meetingType models.MeetingType) (*models.RosterSyncResult, error) {
	holder := uuid.New().String()
	if err := s.rosterLease.Acquire(ctx, meetingType, holder); err != nil {
		return nil, err
	}
	defer func() {
		releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), leaseReleaseTimeout)
		defer releaseCancel()
		if err := s.rosterLease.Release(releaseCtx, meetingType, holder); err != nil {
			slog.ErrorContext(ctx, "failed to release roster lease", logging.ErrKey, err)
		}
	}()

	return s.rosterSync.Sync(ctx, meetingType)
}
