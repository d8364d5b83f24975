// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/logging"
	"github.com/introchat/intro-booking-service/pkg/utils"
)

// AvailabilityService finds the earliest mutual opening for a candidate pair.
type AvailabilityService struct {
	calendar domain.CalendarProvider
	config   ServiceConfig
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(calendar domain.CalendarProvider, config ServiceConfig) *AvailabilityService {
	return &AvailabilityService{
		calendar: calendar,
		config:   config,
	}
}

// ServiceReady checks if the service is ready to resolve availability.
func (s *AvailabilityService) ServiceReady() bool {
	return s.calendar != nil && s.config.Location != nil
}

// FindSlot walks business days from notBefore up to the configured lookahead
// and returns the first slot within the daily window that is free for all
// attendees and the booking calendar. The excluded intervals are slots
// committed earlier in the same run; they are treated as busy because the
// provider may not reflect just-created events yet. A failed free/busy query
// fails the search: a provider outage must surface as a calendar error, not
// masquerade as a fully booked lookahead.
func (s *AvailabilityService) FindSlot(ctx context.Context, attendees []string, notBefore time.Time, excluded []domain.BusyInterval) (time.Time, bool, error) {
	loc := s.config.Location
	notBefore = notBefore.In(loc)

	startDay := utils.StartOfDay(notBefore, loc)
	if !utils.IsBusinessDay(startDay) {
		startDay = utils.NextBusinessDay(startDay)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Byweekday: []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR},
		Dtstart:   startDay,
		Count:     s.config.MaxLookaheadDays,
	})
	if err != nil {
		return time.Time{}, false, domain.NewInternalError("failed to build business day recurrence", err)
	}

	calendars := append(slices.Clone(attendees), s.calendar.BookingCalendarID())

	for _, day := range rule.All() {
		windowStart := utils.At(day, s.config.WindowStartHour, s.config.WindowStartMinute)
		windowEnd := utils.At(day, s.config.WindowEndHour, s.config.WindowEndMinute)

		busy, err := s.calendar.FreeBusy(ctx, calendars, windowStart, windowEnd)
		if err != nil {
			slog.ErrorContext(ctx, "free/busy lookup failed",
				logging.ErrKey, err,
				"day", day.Format("2006-01-02"),
			)
			return time.Time{}, false, err
		}
		busy = append(busy, excluded...)

		if slot, ok := s.scanWindow(windowStart, windowEnd, notBefore, busy); ok {
			return slot, true, nil
		}
	}

	slog.DebugContext(ctx, "no mutual opening within lookahead",
		"attendees", len(attendees),
		"not_before", notBefore.Format(time.RFC3339),
	)
	return time.Time{}, false, nil
}

// scanWindow steps through one day's window at the configured granularity
// and returns the first slot that overlaps no busy interval.
func (s *AvailabilityService) scanWindow(windowStart, windowEnd, notBefore time.Time, busy []domain.BusyInterval) (time.Time, bool) {
	for slot := windowStart; !slot.Add(s.config.SlotDuration).After(windowEnd); slot = slot.Add(s.config.SlotGranularity) {
		if slot.Before(notBefore) {
			continue
		}
		if slotFree(busy, slot, slot.Add(s.config.SlotDuration)) {
			return slot, true
		}
	}
	return time.Time{}, false
}

func slotFree(busy []domain.BusyInterval, start, end time.Time) bool {
	for _, interval := range busy {
		if interval.Overlaps(start, end) {
			return false
		}
	}
	return true
}
