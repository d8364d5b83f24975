// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

// Package store contains the NATS JetStream key-value backed roster store.
package store

import (
	"fmt"
	"strings"

	"github.com/akamensky/base58"

	"github.com/introchat/intro-booking-service/internal/domain/models"
)

// NATS Key-Value store bucket names, one roster partition per meeting type.
const (
	KVStoreNameRosterCoffee = "intro-roster-coffee"
	KVStoreNameRosterBuddy  = "intro-roster-buddy"
)

// Key prefixes within a roster bucket.
const (
	// KeyPrefixMember prefixes member records.
	KeyPrefixMember = "member"
	// KeySyncLease is the per-meeting-type mutual exclusion token that
	// serializes roster syncs and booking runs.
	KeySyncLease = "lease.sync"
)

// KVStoreNameForMeetingType maps a meeting type to its roster bucket.
func KVStoreNameForMeetingType(meetingType models.MeetingType) (string, error) {
	switch meetingType {
	case models.MeetingTypeCoffee:
		return KVStoreNameRosterCoffee, nil
	case models.MeetingTypeBuddy:
		return KVStoreNameRosterBuddy, nil
	default:
		return "", fmt.Errorf("no roster bucket for meeting type %q", meetingType)
	}
}

// KeyBuilder builds consistent NATS KV keys for roster entries. Emails are
// base58-encoded because NATS KV keys reject characters like '@' that appear
// in raw emails.
type KeyBuilder struct{}

// NewKeyBuilder creates a new key builder.
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{}
}

// MemberKey builds the key for a member record, e.g. "member.<base58(email)>".
func (kb *KeyBuilder) MemberKey(email string) string {
	encoded := base58.Encode([]byte(models.NormalizeEmail(email)))
	return KeyPrefixMember + "." + encoded
}

// IsMemberKey reports whether a key holds a member record.
func (kb *KeyBuilder) IsMemberKey(key string) bool {
	return strings.HasPrefix(key, KeyPrefixMember+".")
}

// DecodeMemberKey extracts the email from a member key.
func (kb *KeyBuilder) DecodeMemberKey(key string) (string, error) {
	encoded, ok := strings.CutPrefix(key, KeyPrefixMember+".")
	if !ok {
		return "", fmt.Errorf("key %q is not a member key", key)
	}
	email, err := base58.Decode(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode member key %q: %w", key, err)
	}
	return string(email), nil
}
