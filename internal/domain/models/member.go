// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

// Package models contains the domain models for the intro booking service.
package models

import (
	"fmt"
	"strings"
	"time"
)

// MeetingType identifies one intro programme. Each type has its own roster
// partition, directory group binding and event templates.
type MeetingType string

const (
	// MeetingTypeCoffee is the coffee-intro rotation for new starters.
	MeetingTypeCoffee MeetingType = "coffee"
	// MeetingTypeBuddy is the buddy programme rotation.
	MeetingTypeBuddy MeetingType = "buddy"
)

// MeetingTypes lists all supported meeting types.
func MeetingTypes() []MeetingType {
	return []MeetingType{MeetingTypeCoffee, MeetingTypeBuddy}
}

// ParseMeetingType validates and normalizes a raw meeting type value.
func ParseMeetingType(value string) (MeetingType, error) {
	switch MeetingType(strings.ToLower(strings.TrimSpace(value))) {
	case MeetingTypeCoffee:
		return MeetingTypeCoffee, nil
	case MeetingTypeBuddy:
		return MeetingTypeBuddy, nil
	default:
		return "", fmt.Errorf("unknown meeting type %q", value)
	}
}

// Member is the key-value store representation of one eligible intro partner.
// Weight counts completed meetings within one meeting type; cadence state is
// scoped per meeting type, so the same person can have independent coffee and
// buddy histories.
type Member struct {
	Email          string      `json:"email"`
	DisplayName    string      `json:"display_name,omitempty"`
	MeetingType    MeetingType `json:"meeting_type"`
	Weight         int         `json:"weight"`
	LastBookedDate *time.Time  `json:"last_booked_date,omitempty"`
	CreatedAt      *time.Time  `json:"created_at,omitempty"`
	UpdatedAt      *time.Time  `json:"updated_at,omitempty"`
}

// NormalizeEmail lowercases and trims an email so it can be used as a store
// key. Directory sources are inconsistent about casing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayNameOrDefault returns the member's display name, deriving one from
// the email local part when the directory did not provide a name.
func (m *Member) DisplayNameOrDefault() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return DisplayNameFromEmail(m.Email)
}

// DisplayNameFromEmail derives a human-readable name from an email local
// part, e.g. "jane.doe@corp.example" becomes "Jane Doe".
func DisplayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(NormalizeEmail(email), "@")
	if local == "" {
		return email
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, part := range parts {
		parts[i] = capitalize(part)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
