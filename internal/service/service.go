// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

// Package service contains the booking orchestration, partner selection,
// availability resolution and roster synchronization logic.
package service

import (
	"time"

	"github.com/introchat/intro-booking-service/internal/domain/models"
)

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the booking services.
type ServiceConfig struct {
	// WindowStartHour/WindowStartMinute and WindowEndHour/WindowEndMinute
	// bound the daily search window in the configured location.
	WindowStartHour   int
	WindowStartMinute int
	WindowEndHour     int
	WindowEndMinute   int

	// SlotDuration is the length of a booked meeting.
	SlotDuration time.Duration
	// SlotGranularity is the step between candidate slot starts.
	SlotGranularity time.Duration

	// MaxLookaheadDays is how many business days the slot search walks
	// before giving up.
	MaxLookaheadDays int

	// CadenceBusinessDays is the minimum business-day gap between two
	// bookings of the same partner, and the gap a requester's search date
	// advances past each booked slot.
	CadenceBusinessDays int

	// AllowRepeatPartners permits pairing the same partner twice in one run
	// once every other member has been used.
	AllowRepeatPartners bool

	// Location is the timezone the search window is anchored in.
	Location *time.Location

	// RunTimeout bounds one booking run. When it expires, no new units are
	// started and the partial report is returned.
	RunTimeout time.Duration

	// Templates are the per-meeting-type event templates. Types without an
	// entry use the built-in defaults.
	Templates map[models.MeetingType]models.EventTemplates
}

// DefaultServiceConfig returns the production defaults.
func DefaultServiceConfig() ServiceConfig {
	loc, err := time.LoadLocation("Europe/Dublin")
	if err != nil {
		loc = time.UTC
	}
	return ServiceConfig{
		WindowStartHour:     11,
		WindowEndHour:       15,
		SlotDuration:        15 * time.Minute,
		SlotGranularity:     15 * time.Minute,
		MaxLookaheadDays:    7,
		CadenceBusinessDays: 2,
		AllowRepeatPartners: true,
		Location:            loc,
		RunTimeout:          10 * time.Minute,
	}
}

// TemplatesFor returns the event templates for a meeting type, falling back
// to the defaults.
func (c ServiceConfig) TemplatesFor(meetingType models.MeetingType) models.EventTemplates {
	if t, ok := c.Templates[meetingType]; ok {
		return t
	}
	return models.DefaultEventTemplates()
}
