// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/domain/models"
	"github.com/introchat/intro-booking-service/internal/logging"
	"github.com/introchat/intro-booking-service/pkg/concurrent"
)

// RosterSyncService mirrors a directory group into the roster store for one
// meeting type. Newcomers start at weight zero; members who left the group
// are deleted; existing members keep their weight and cadence history.
type RosterSyncService struct {
	rosterRepository domain.RosterRepository
	directory        domain.DirectoryProvider
	messageBuilder   domain.MessageBuilder
	groupIDs         map[models.MeetingType]string
	pool             *concurrent.WorkerPool
}

// NewRosterSyncService creates a new RosterSyncService.
func NewRosterSyncService(
	rosterRepository domain.RosterRepository,
	directory domain.DirectoryProvider,
	messageBuilder domain.MessageBuilder,
	groupIDs map[models.MeetingType]string,
) *RosterSyncService {
	return &RosterSyncService{
		rosterRepository: rosterRepository,
		directory:        directory,
		messageBuilder:   messageBuilder,
		groupIDs:         groupIDs,
		pool:             concurrent.NewWorkerPool(10),
	}
}

// ServiceReady checks if the service is ready to synchronize rosters.
func (s *RosterSyncService) ServiceReady() bool {
	return s.rosterRepository != nil && s.directory != nil && len(s.groupIDs) > 0
}

// Sync fetches the complete directory group, diffs it against the stored
// roster and applies the difference. The full fetch completes before any
// store mutation, so a pagination failure leaves the roster untouched. An
// empty group is a valid degenerate roster and clears the store.
func (s *RosterSyncService) Sync(ctx context.Context, meetingType models.MeetingType) (*models.RosterSyncResult, error) {
	ctx = logging.AppendCtx(ctx, slog.String("meeting_type", string(meetingType)))

	groupID, ok := s.groupIDs[meetingType]
	if !ok || groupID == "" {
		return nil, domain.NewValidationError(fmt.Sprintf("no directory group bound for meeting type %q", meetingType))
	}

	groupMembers, err := s.fetchGroup(ctx, groupID)
	if err != nil {
		slog.ErrorContext(ctx, "directory fetch failed, roster left untouched", logging.ErrKey, err)
		return nil, err
	}

	stored, err := s.rosterRepository.GetAll(ctx, meetingType)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read roster snapshot", logging.ErrKey, err)
		return nil, err
	}

	result, err := s.applyDiff(ctx, meetingType, groupMembers, stored)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "roster synchronized",
		"group_size", len(groupMembers),
		"added", len(result.Added),
		"removed", len(result.Removed),
	)

	if err := s.messageBuilder.SendRosterSynced(ctx, models.RosterSyncedMessage{
		MeetingType: meetingType,
		Added:       result.Added,
		Removed:     result.Removed,
		SyncedAt:    time.Now().UTC(),
	}); err != nil {
		slog.WarnContext(ctx, "failed to publish roster synced message", logging.ErrKey, err)
	}

	return result, nil
}

// fetchGroup pages through the whole directory group before returning.
// Duplicate directory entries for the same email collapse to the first.
func (s *RosterSyncService) fetchGroup(ctx context.Context, groupID string) (map[string]domain.GroupMember, error) {
	members := make(map[string]domain.GroupMember)

	cursor := ""
	for {
		page, err := s.directory.ListGroupMembers(ctx, groupID, cursor)
		if err != nil {
			return nil, err
		}
		for _, member := range page.Members {
			email := models.NormalizeEmail(member.Email)
			if _, exists := members[email]; !exists {
				members[email] = member
			}
		}
		if page.NextCursor == "" {
			return members, nil
		}
		cursor = page.NextCursor
	}
}

func (s *RosterSyncService) applyDiff(ctx context.Context, meetingType models.MeetingType, groupMembers map[string]domain.GroupMember, stored []*models.Member) (*models.RosterSyncResult, error) {
	storedByEmail := make(map[string]*models.Member, len(stored))
	for _, member := range stored {
		storedByEmail[models.NormalizeEmail(member.Email)] = member
	}

	result := &models.RosterSyncResult{Added: []string{}, Removed: []string{}}
	var ops []func() error

	for email, groupMember := range groupMembers {
		existing, known := storedByEmail[email]
		if !known {
			result.Added = append(result.Added, email)
			newcomer := &models.Member{
				Email:       email,
				DisplayName: groupMember.DisplayName,
				MeetingType: meetingType,
				Weight:      0,
			}
			ops = append(ops, func() error {
				return s.rosterRepository.Upsert(ctx, newcomer)
			})
			continue
		}
		// Refresh the display name without touching rotation state.
		if groupMember.DisplayName != "" && groupMember.DisplayName != existing.DisplayName {
			refreshed := *existing
			refreshed.DisplayName = groupMember.DisplayName
			ops = append(ops, func() error {
				return s.rosterRepository.Upsert(ctx, &refreshed)
			})
		}
	}

	for email := range storedByEmail {
		if _, inGroup := groupMembers[email]; !inGroup {
			result.Removed = append(result.Removed, email)
			departed := email
			ops = append(ops, func() error {
				return s.rosterRepository.Delete(ctx, departed, meetingType)
			})
		}
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)

	if errs := s.pool.RunAll(ctx, ops...); len(errs) > 0 {
		for _, err := range errs {
			slog.ErrorContext(ctx, "roster mutation failed", logging.ErrKey, err)
		}
		return nil, domain.NewInternalError(fmt.Sprintf("roster sync encountered %d error(s)", len(errs)), errs[0])
	}

	return result, nil
}
