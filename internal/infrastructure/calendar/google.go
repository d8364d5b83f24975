// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

// Package calendar contains the Google Calendar provider used for free/busy
// lookups and event creation.
package calendar

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/logging"
)

// Config holds the configuration for the Google Calendar client.
type Config struct {
	// CredentialsJSON is the service account key.
	CredentialsJSON []byte
	// DelegatedUser is the workspace user the service account impersonates.
	// Events are created and invitations sent as this user.
	DelegatedUser string
	// BookingCalendarID is the calendar events are created on.
	BookingCalendarID string
	// TimeZone is the IANA zone name sent with event and free/busy payloads.
	TimeZone string
}

// GoogleClient is a Google Calendar API client using domain-wide delegation.
type GoogleClient struct {
	service *gcal.Service
	config  Config
}

// Ensure that GoogleClient implements domain.CalendarProvider
var _ domain.CalendarProvider = (*GoogleClient)(nil)

// NewGoogleClient creates a calendar client from a service account key,
// delegated to the configured user.
func NewGoogleClient(ctx context.Context, config Config) (*GoogleClient, error) {
	jwtConfig, err := google.JWTConfigFromJSON(config.CredentialsJSON, gcal.CalendarScope)
	if err != nil {
		return nil, domain.NewValidationError("invalid calendar service account key", err)
	}
	jwtConfig.Subject = config.DelegatedUser

	service, err := gcal.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, domain.NewInternalError("failed to create calendar service", err)
	}

	return &GoogleClient{service: service, config: config}, nil
}

// BookingCalendarID returns the calendar events are created on.
func (c *GoogleClient) BookingCalendarID() string {
	return c.config.BookingCalendarID
}

// FreeBusy queries busy intervals for all given calendars in one call and
// returns their union. Calendars the API reports errors for (e.g. no
// free/busy access) are skipped with a warning rather than failing the query.
func (c *GoogleClient) FreeBusy(ctx context.Context, calendarIDs []string, windowStart, windowEnd time.Time) ([]domain.BusyInterval, error) {
	ctx = logging.AppendCtx(ctx, slog.String("calendar_operation", "freebusy"))

	items := make([]*gcal.FreeBusyRequestItem, 0, len(calendarIDs))
	for _, id := range calendarIDs {
		items = append(items, &gcal.FreeBusyRequestItem{Id: id})
	}

	resp, err := c.service.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:  windowStart.Format(time.RFC3339),
		TimeMax:  windowEnd.Format(time.RFC3339),
		TimeZone: c.config.TimeZone,
		Items:    items,
	}).Context(ctx).Do()
	if err != nil {
		slog.ErrorContext(ctx, "free/busy query failed", logging.ErrKey, err)
		return nil, domain.NewUnavailableError("calendar free/busy query failed", err)
	}

	return busyUnion(ctx, resp), nil
}

// busyUnion flattens a free/busy response into one list of busy intervals
// across all queried calendars.
func busyUnion(ctx context.Context, resp *gcal.FreeBusyResponse) []domain.BusyInterval {
	var intervals []domain.BusyInterval
	for calendarID, info := range resp.Calendars {
		if len(info.Errors) > 0 {
			slog.WarnContext(ctx, "free/busy unavailable for calendar, skipping",
				"calendar_id", calendarID,
				"reason", info.Errors[0].Reason,
			)
			continue
		}
		for _, busy := range info.Busy {
			start, err := time.Parse(time.RFC3339, busy.Start)
			if err != nil {
				slog.WarnContext(ctx, "skipping unparseable busy period start", logging.ErrKey, err)
				continue
			}
			end, err := time.Parse(time.RFC3339, busy.End)
			if err != nil {
				slog.WarnContext(ctx, "skipping unparseable busy period end", logging.ErrKey, err)
				continue
			}
			intervals = append(intervals, domain.BusyInterval{Start: start, End: end})
		}
	}
	return intervals
}

// CreateEvent creates an event on the booking calendar and emails invitations
// to all attendees.
func (c *GoogleClient) CreateEvent(ctx context.Context, event domain.CreateEventRequest) (string, error) {
	ctx = logging.AppendCtx(ctx, slog.String("calendar_operation", "create_event"))

	attendees := make([]*gcal.EventAttendee, 0, len(event.Attendees))
	for _, email := range event.Attendees {
		attendees = append(attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := c.service.Events.Insert(c.config.BookingCalendarID, &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start: &gcal.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: c.config.TimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: event.Start.Add(event.Duration).Format(time.RFC3339),
			TimeZone: c.config.TimeZone,
		},
		Attendees: attendees,
	}).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		slog.ErrorContext(ctx, "failed to create calendar event", logging.ErrKey, err)
		return "", domain.NewUnavailableError("calendar event creation failed", err)
	}

	slog.InfoContext(ctx, "created calendar event",
		"event_id", created.Id,
		"start", event.Start.Format(time.RFC3339),
	)
	return created.Id, nil
}
