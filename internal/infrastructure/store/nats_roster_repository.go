// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/domain/models"
	"github.com/introchat/intro-booking-service/internal/logging"
)

// tracerName is the instrumentation name for the store package.
const tracerName = "github.com/introchat/intro-booking-service/internal/infrastructure/store"

const (
	// defaultCASRetries bounds the optimistic-concurrency retry loop in
	// IncrementWeight and TouchLastBooked.
	defaultCASRetries = 3
	// defaultLeaseTTL is the age past which a sync lease is considered
	// abandoned and may be taken over.
	defaultLeaseTTL = 15 * time.Minute
)

// INatsKeyValue is the NATS KV interface needed by the roster repository.
// It matches jetstream.KeyValue and allows for mocking in tests.
type INatsKeyValue interface {
	ListKeys(context.Context, ...jetstream.WatchOpt) (jetstream.KeyLister, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
	Create(context.Context, string, []byte, ...jetstream.KVCreateOpt) (uint64, error)
	Update(context.Context, string, []byte, uint64) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
}

var _ INatsKeyValue = (jetstream.KeyValue)(nil)

// leaseRecord is the stored form of the per-meeting-type sync lease.
type leaseRecord struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// NatsRosterRepository is the NATS KV store repository for rosters, one
// bucket per meeting type. It implements both domain.RosterRepository and
// domain.RosterLease.
type NatsRosterRepository struct {
	kvStores   map[models.MeetingType]INatsKeyValue
	keyBuilder *KeyBuilder
	casRetries int
	leaseTTL   time.Duration
}

// NewNatsRosterRepository creates a roster repository over per-meeting-type
// KV buckets.
func NewNatsRosterRepository(kvStores map[models.MeetingType]INatsKeyValue) *NatsRosterRepository {
	return &NatsRosterRepository{
		kvStores:   kvStores,
		keyBuilder: NewKeyBuilder(),
		casRetries: defaultCASRetries,
		leaseTTL:   defaultLeaseTTL,
	}
}

// IsReady checks if the repository has a bucket for every meeting type.
func (r *NatsRosterRepository) IsReady() bool {
	for _, meetingType := range models.MeetingTypes() {
		if r.kvStores[meetingType] == nil {
			return false
		}
	}
	return len(r.kvStores) > 0
}

func (r *NatsRosterRepository) kvStore(meetingType models.MeetingType) (INatsKeyValue, error) {
	kv, ok := r.kvStores[meetingType]
	if !ok || kv == nil {
		return nil, domain.NewUnavailableError(fmt.Sprintf("roster store for meeting type %q is not available", meetingType))
	}
	return kv, nil
}

func (r *NatsRosterRepository) startSpan(ctx context.Context, operation, key string, meetingType models.MeetingType) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "nats"),
			attribute.String("db.operation", operation),
			attribute.String("db.nats.key", key),
			attribute.String("db.nats.meeting_type", string(meetingType)),
		),
	)
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// getWithRevision retrieves a member and its KV revision.
func (r *NatsRosterRepository) getWithRevision(ctx context.Context, email string, meetingType models.MeetingType) (*models.Member, uint64, error) {
	key := r.keyBuilder.MemberKey(email)
	ctx, span := r.startSpan(ctx, "get", key, meetingType)
	defer span.End()

	kv, err := r.kvStore(meetingType)
	if err != nil {
		return nil, 0, spanError(span, err)
	}

	entry, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, spanError(span, domain.NewNotFoundError(
				fmt.Sprintf("member %q not found in %s roster", models.NormalizeEmail(email), meetingType), err))
		}
		slog.ErrorContext(ctx, "error getting member from NATS KV", logging.ErrKey, err, "key", key)
		return nil, 0, spanError(span, domain.NewUnavailableError("failed to retrieve member from roster store", err))
	}

	var member models.Member
	if err := json.Unmarshal(entry.Value(), &member); err != nil {
		slog.ErrorContext(ctx, "error unmarshaling member", logging.ErrKey, err, "key", key)
		return nil, 0, spanError(span, domain.NewInternalError("failed to unmarshal member data", err))
	}

	span.SetStatus(codes.Ok, "")
	return &member, entry.Revision(), nil
}

// Get retrieves a single roster member.
func (r *NatsRosterRepository) Get(ctx context.Context, email string, meetingType models.MeetingType) (*models.Member, error) {
	member, _, err := r.getWithRevision(ctx, email, meetingType)
	return member, err
}

// GetAll returns the whole roster for a meeting type, ordered by email.
func (r *NatsRosterRepository) GetAll(ctx context.Context, meetingType models.MeetingType) ([]*models.Member, error) {
	ctx, span := r.startSpan(ctx, "list", KeyPrefixMember, meetingType)
	defer span.End()

	kv, err := r.kvStore(meetingType)
	if err != nil {
		return nil, spanError(span, err)
	}

	lister, err := kv.ListKeys(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error listing roster keys from NATS KV", logging.ErrKey, err)
		return nil, spanError(span, domain.NewUnavailableError("failed to list roster keys", err))
	}

	var members []*models.Member
	for key := range lister.Keys() {
		if !r.keyBuilder.IsMemberKey(key) {
			continue
		}
		entry, err := kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				// Deleted between listing and fetch.
				continue
			}
			slog.ErrorContext(ctx, "error getting member from NATS KV", logging.ErrKey, err, "key", key)
			return nil, spanError(span, domain.NewUnavailableError("failed to retrieve member from roster store", err))
		}
		var member models.Member
		if err := json.Unmarshal(entry.Value(), &member); err != nil {
			slog.WarnContext(ctx, "skipping member with invalid record", logging.ErrKey, err, "key", key)
			continue
		}
		members = append(members, &member)
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].Email < members[j].Email
	})

	span.SetAttributes(attribute.Int("db.nats.keys_count", len(members)))
	span.SetStatus(codes.Ok, "")
	return members, nil
}

// Upsert creates or replaces a member record.
func (r *NatsRosterRepository) Upsert(ctx context.Context, member *models.Member) error {
	key := r.keyBuilder.MemberKey(member.Email)
	ctx, span := r.startSpan(ctx, "put", key, member.MeetingType)
	defer span.End()

	kv, err := r.kvStore(member.MeetingType)
	if err != nil {
		return spanError(span, err)
	}

	member.Email = models.NormalizeEmail(member.Email)
	now := time.Now().UTC()
	if member.CreatedAt == nil {
		member.CreatedAt = &now
	}
	member.UpdatedAt = &now

	data, err := json.Marshal(member)
	if err != nil {
		return spanError(span, domain.NewInternalError("failed to marshal member", err))
	}

	if _, err := kv.Put(ctx, key, data); err != nil {
		slog.ErrorContext(ctx, "error putting member in NATS KV", logging.ErrKey, err, "key", key)
		return spanError(span, domain.NewUnavailableError("failed to store member", err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Delete removes a member record.
func (r *NatsRosterRepository) Delete(ctx context.Context, email string, meetingType models.MeetingType) error {
	key := r.keyBuilder.MemberKey(email)
	ctx, span := r.startSpan(ctx, "delete", key, meetingType)
	defer span.End()

	kv, err := r.kvStore(meetingType)
	if err != nil {
		return spanError(span, err)
	}

	if err := kv.Delete(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return spanError(span, domain.NewNotFoundError(
				fmt.Sprintf("member %q not found in %s roster", models.NormalizeEmail(email), meetingType), err))
		}
		slog.ErrorContext(ctx, "error deleting member from NATS KV", logging.ErrKey, err, "key", key)
		return spanError(span, domain.NewUnavailableError("failed to delete member", err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// IncrementWeight atomically increments a member's weight and records the
// booked date. The update is a compare-and-swap on the KV revision read with
// the member; a lost race is retried with a freshly re-read record, bounded
// by the retry budget.
func (r *NatsRosterRepository) IncrementWeight(ctx context.Context, email string, meetingType models.MeetingType, bookedDate time.Time) (int, error) {
	newWeight, err := r.updateWithRetry(ctx, email, meetingType, func(member *models.Member) {
		member.Weight++
		booked := bookedDate
		member.LastBookedDate = &booked
	})
	if err != nil {
		return 0, err
	}
	return newWeight, nil
}

// TouchLastBooked updates a member's last booked date without changing the
// weight.
func (r *NatsRosterRepository) TouchLastBooked(ctx context.Context, email string, meetingType models.MeetingType, bookedDate time.Time) error {
	_, err := r.updateWithRetry(ctx, email, meetingType, func(member *models.Member) {
		booked := bookedDate
		member.LastBookedDate = &booked
	})
	return err
}

func (r *NatsRosterRepository) updateWithRetry(ctx context.Context, email string, meetingType models.MeetingType, mutate func(*models.Member)) (int, error) {
	key := r.keyBuilder.MemberKey(email)
	ctx, span := r.startSpan(ctx, "update", key, meetingType)
	defer span.End()

	kv, err := r.kvStore(meetingType)
	if err != nil {
		return 0, spanError(span, err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.casRetries; attempt++ {
		member, revision, err := r.getWithRevision(ctx, email, meetingType)
		if err != nil {
			return 0, spanError(span, err)
		}

		mutate(member)
		now := time.Now().UTC()
		member.UpdatedAt = &now

		data, err := json.Marshal(member)
		if err != nil {
			return 0, spanError(span, domain.NewInternalError("failed to marshal member", err))
		}

		_, err = kv.Update(ctx, key, data, revision)
		if err == nil {
			span.SetAttributes(attribute.Int("db.nats.cas_attempts", attempt+1))
			span.SetStatus(codes.Ok, "")
			return member.Weight, nil
		}
		if !isWrongLastSequence(err) {
			slog.ErrorContext(ctx, "error updating member in NATS KV", logging.ErrKey, err, "key", key, "revision", revision)
			return 0, spanError(span, domain.NewUnavailableError("failed to update member", err))
		}

		lastErr = err
		slog.DebugContext(ctx, "member update lost concurrency race, retrying",
			"key", key, "attempt", attempt+1)
	}

	return 0, spanError(span, domain.NewConflictError(
		fmt.Sprintf("member %q was concurrently modified past the retry budget", models.NormalizeEmail(email)), lastErr))
}

func isWrongLastSequence(err error) bool {
	return err != nil && strings.Contains(err.Error(), "wrong last sequence")
}

// Acquire takes the per-meeting-type sync lease. A lease older than the TTL
// is considered abandoned and taken over.
func (r *NatsRosterRepository) Acquire(ctx context.Context, meetingType models.MeetingType, holder string) error {
	ctx, span := r.startSpan(ctx, "create", KeySyncLease, meetingType)
	defer span.End()

	kv, err := r.kvStore(meetingType)
	if err != nil {
		return spanError(span, err)
	}

	record := leaseRecord{Holder: holder, AcquiredAt: time.Now().UTC()}
	data, err := json.Marshal(record)
	if err != nil {
		return spanError(span, domain.NewInternalError("failed to marshal lease", err))
	}

	_, err = kv.Create(ctx, KeySyncLease, data)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		slog.ErrorContext(ctx, "error creating sync lease", logging.ErrKey, err, "meeting_type", meetingType)
		return spanError(span, domain.NewUnavailableError("failed to acquire roster lease", err))
	}

	// Lease exists. Take it over only if the current one is stale.
	entry, err := kv.Get(ctx, KeySyncLease)
	if err != nil {
		return spanError(span, domain.NewUnavailableError("failed to inspect roster lease", err))
	}
	var current leaseRecord
	if unmarshalErr := json.Unmarshal(entry.Value(), &current); unmarshalErr == nil {
		if time.Since(current.AcquiredAt) < r.leaseTTL {
			return spanError(span, domain.NewConflictError(
				fmt.Sprintf("%s roster is locked by %q", meetingType, current.Holder)))
		}
	}

	slog.WarnContext(ctx, "taking over stale roster lease",
		"meeting_type", meetingType, "previous_holder", current.Holder)
	if _, err := kv.Update(ctx, KeySyncLease, data, entry.Revision()); err != nil {
		return spanError(span, domain.NewConflictError("lost race taking over stale roster lease", err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Release gives the sync lease back. Only the current holder may release it.
func (r *NatsRosterRepository) Release(ctx context.Context, meetingType models.MeetingType, holder string) error {
	ctx, span := r.startSpan(ctx, "delete", KeySyncLease, meetingType)
	defer span.End()

	kv, err := r.kvStore(meetingType)
	if err != nil {
		return spanError(span, err)
	}

	entry, err := kv.Get(ctx, KeySyncLease)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return spanError(span, domain.NewNotFoundError("roster lease is not held", err))
		}
		return spanError(span, domain.NewUnavailableError("failed to inspect roster lease", err))
	}

	var current leaseRecord
	if err := json.Unmarshal(entry.Value(), &current); err == nil && current.Holder != holder {
		return spanError(span, domain.NewConflictError(
			fmt.Sprintf("roster lease is held by %q, not %q", current.Holder, holder)))
	}

	if err := kv.Delete(ctx, KeySyncLease, jetstream.LastRevision(entry.Revision())); err != nil {
		slog.ErrorContext(ctx, "error releasing sync lease", logging.ErrKey, err, "meeting_type", meetingType)
		return spanError(span, domain.NewUnavailableError("failed to release roster lease", err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
