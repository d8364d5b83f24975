// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/domain/models"
)

func setupRosterSyncForTesting() (*RosterSyncService, *domain.MockRosterRepository, *domain.MockDirectoryProvider, *domain.MockMessageBuilder) {
	repo := &domain.MockRosterRepository{}
	directory := &domain.MockDirectoryProvider{}
	builder := &domain.MockMessageBuilder{}
	svc := NewRosterSyncService(repo, directory, builder, map[models.MeetingType]string{
		models.MeetingTypeCoffee: "group-coffee",
		models.MeetingTypeBuddy:  "group-buddy",
	})
	return svc, repo, directory, builder
}

func TestRosterSyncAddsAndRemoves(t *testing.T) {
	svc, repo, directory, builder := setupRosterSyncForTesting()
	ctx := context.Background()

	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "").Return(&domain.GroupMemberPage{
		Members: []domain.GroupMember{
			{Email: "amy@corp.example", DisplayName: "Amy Adams"},
			{Email: "bob@corp.example", DisplayName: "Bob Brown"},
		},
	}, nil)
	repo.On("GetAll", mock.Anything, models.MeetingTypeCoffee).Return([]*models.Member{
		{Email: "bob@corp.example", DisplayName: "Bob Brown", MeetingType: models.MeetingTypeCoffee, Weight: 4},
		{Email: "dave@corp.example", MeetingType: models.MeetingTypeCoffee, Weight: 1},
	}, nil)
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(m *models.Member) bool {
		return m.Email == "amy@corp.example" && m.Weight == 0
	})).Return(nil)
	repo.On("Delete", mock.Anything, "dave@corp.example", models.MeetingTypeCoffee).Return(nil)
	builder.On("SendRosterSynced", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Sync(ctx, models.MeetingTypeCoffee)
	require.NoError(t, err)
	assert.Equal(t, []string{"amy@corp.example"}, result.Added)
	assert.Equal(t, []string{"dave@corp.example"}, result.Removed)

	repo.AssertExpectations(t)
	builder.AssertExpectations(t)
}

func TestRosterSyncPaginatesWholeGroup(t *testing.T) {
	svc, repo, directory, builder := setupRosterSyncForTesting()

	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "").Return(&domain.GroupMemberPage{
		Members:    []domain.GroupMember{{Email: "amy@corp.example"}},
		NextCursor: "cursor-2",
	}, nil)
	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "cursor-2").Return(&domain.GroupMemberPage{
		Members:    []domain.GroupMember{{Email: "bob@corp.example"}},
		NextCursor: "cursor-3",
	}, nil)
	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "cursor-3").Return(&domain.GroupMemberPage{
		Members: []domain.GroupMember{{Email: "carol@corp.example"}},
	}, nil)
	repo.On("GetAll", mock.Anything, models.MeetingTypeCoffee).Return([]*models.Member{}, nil)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	builder.On("SendRosterSynced", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Sync(context.Background(), models.MeetingTypeCoffee)
	require.NoError(t, err)
	assert.Equal(t, []string{"amy@corp.example", "bob@corp.example", "carol@corp.example"}, result.Added,
		"membership is the union of every page")
	repo.AssertNumberOfCalls(t, "Upsert", 3)
}

func TestRosterSyncFetchErrorLeavesStoreUntouched(t *testing.T) {
	svc, repo, directory, _ := setupRosterSyncForTesting()

	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "").Return(&domain.GroupMemberPage{
		Members:    []domain.GroupMember{{Email: "amy@corp.example"}},
		NextCursor: "cursor-2",
	}, nil)
	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "cursor-2").
		Return(nil, domain.NewUnavailableError("directory group membership fetch failed"))

	_, err := svc.Sync(context.Background(), models.MeetingTypeCoffee)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))

	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "GetAll", mock.Anything, mock.Anything)
}

func TestRosterSyncIsIdempotent(t *testing.T) {
	svc, repo, directory, builder := setupRosterSyncForTesting()

	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "").Return(&domain.GroupMemberPage{
		Members: []domain.GroupMember{{Email: "amy@corp.example", DisplayName: "Amy Adams"}},
	}, nil)
	repo.On("GetAll", mock.Anything, models.MeetingTypeCoffee).Return([]*models.Member{
		{Email: "amy@corp.example", DisplayName: "Amy Adams", MeetingType: models.MeetingTypeCoffee, Weight: 7},
	}, nil)
	builder.On("SendRosterSynced", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Sync(context.Background(), models.MeetingTypeCoffee)
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Empty(t, result.Removed)

	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestRosterSyncEmptyGroupClearsRoster(t *testing.T) {
	svc, repo, directory, builder := setupRosterSyncForTesting()

	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "").Return(&domain.GroupMemberPage{}, nil)
	repo.On("GetAll", mock.Anything, models.MeetingTypeCoffee).Return([]*models.Member{
		{Email: "amy@corp.example", MeetingType: models.MeetingTypeCoffee},
		{Email: "bob@corp.example", MeetingType: models.MeetingTypeCoffee},
	}, nil)
	repo.On("Delete", mock.Anything, "amy@corp.example", models.MeetingTypeCoffee).Return(nil)
	repo.On("Delete", mock.Anything, "bob@corp.example", models.MeetingTypeCoffee).Return(nil)
	builder.On("SendRosterSynced", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Sync(context.Background(), models.MeetingTypeCoffee)
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Equal(t, []string{"amy@corp.example", "bob@corp.example"}, result.Removed)
	repo.AssertExpectations(t)
}

func TestRosterSyncRefreshesDisplayName(t *testing.T) {
	svc, repo, directory, builder := setupRosterSyncForTesting()

	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "").Return(&domain.GroupMemberPage{
		Members: []domain.GroupMember{{Email: "amy@corp.example", DisplayName: "Amy Adams-Kelly"}},
	}, nil)
	repo.On("GetAll", mock.Anything, models.MeetingTypeCoffee).Return([]*models.Member{
		{Email: "amy@corp.example", DisplayName: "Amy Adams", MeetingType: models.MeetingTypeCoffee, Weight: 7},
	}, nil)
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(m *models.Member) bool {
		return m.Email == "amy@corp.example" && m.DisplayName == "Amy Adams-Kelly" && m.Weight == 7
	})).Return(nil)
	builder.On("SendRosterSynced", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Sync(context.Background(), models.MeetingTypeCoffee)
	require.NoError(t, err)
	assert.Empty(t, result.Added, "a renamed member is refreshed, not re-added")
	repo.AssertExpectations(t)
}

func TestRosterSyncUnboundMeetingType(t *testing.T) {
	svc, _, _, _ := setupRosterSyncForTesting()
	svc.groupIDs = map[models.MeetingType]string{models.MeetingTypeCoffee: "group-coffee"}

	_, err := svc.Sync(context.Background(), models.MeetingTypeBuddy)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestRosterSyncNormalizesCasing(t *testing.T) {
	svc, repo, directory, builder := setupRosterSyncForTesting()

	directory.On("ListGroupMembers", mock.Anything, "group-coffee", "").Return(&domain.GroupMemberPage{
		Members: []domain.GroupMember{
			{Email: "Amy@Corp.Example", DisplayName: "Amy Adams"},
			{Email: "amy@corp.example", DisplayName: "Amy A."},
		},
	}, nil)
	repo.On("GetAll", mock.Anything, models.MeetingTypeCoffee).Return([]*models.Member{}, nil)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	builder.On("SendRosterSynced", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Sync(context.Background(), models.MeetingTypeCoffee)
	require.NoError(t, err)
	assert.Equal(t, []string{"amy@corp.example"}, result.Added, "casing duplicates collapse to one member")
	repo.AssertNumberOfCalls(t, "Upsert", 1)
}
