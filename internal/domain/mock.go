// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/introchat/intro-booking-service/internal/domain/models"
)

// MockRosterRepository implements RosterRepository for testing
type MockRosterRepository struct {
	mock.Mock
}

func (m *MockRosterRepository) GetAll(ctx context.Context, meetingType models.MeetingType) ([]*models.Member, error) {
	args := m.Called(ctx, meetingType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}

func (m *MockRosterRepository) Get(ctx context.Context, email string, meetingType models.MeetingType) (*models.Member, error) {
	args := m.Called(ctx, email, meetingType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockRosterRepository) Upsert(ctx context.Context, member *models.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockRosterRepository) Delete(ctx context.Context, email string, meetingType models.MeetingType) error {
	args := m.Called(ctx, email, meetingType)
	return args.Error(0)
}

func (m *MockRosterRepository) IncrementWeight(ctx context.Context, email string, meetingType models.MeetingType, bookedDate time.Time) (int, error) {
	args := m.Called(ctx, email, meetingType, bookedDate)
	return args.Int(0), args.Error(1)
}

func (m *MockRosterRepository) TouchLastBooked(ctx context.Context, email string, meetingType models.MeetingType, bookedDate time.Time) error {
	args := m.Called(ctx, email, meetingType, bookedDate)
	return args.Error(0)
}

// MockRosterLease implements RosterLease for testing
type MockRosterLease struct {
	mock.Mock
}

func (m *MockRosterLease) Acquire(ctx context.Context, meetingType models.MeetingType, holder string) error {
	args := m.Called(ctx, meetingType, holder)
	return args.Error(0)
}

func (m *MockRosterLease) Release(ctx context.Context, meetingType models.MeetingType, holder string) error {
	args := m.Called(ctx, meetingType, holder)
	return args.Error(0)
}

// MockDirectoryProvider implements DirectoryProvider for testing
type MockDirectoryProvider struct {
	mock.Mock
}

func (m *MockDirectoryProvider) ListGroupMembers(ctx context.Context, groupID string, cursor string) (*GroupMemberPage, error) {
	args := m.Called(ctx, groupID, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GroupMemberPage), args.Error(1)
}

// MockCalendarProvider implements CalendarProvider for testing
type MockCalendarProvider struct {
	mock.Mock
}

func (m *MockCalendarProvider) FreeBusy(ctx context.Context, calendarIDs []string, windowStart, windowEnd time.Time) ([]BusyInterval, error) {
	args := m.Called(ctx, calendarIDs, windowStart, windowEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]BusyInterval), args.Error(1)
}

func (m *MockCalendarProvider) CreateEvent(ctx context.Context, event CreateEventRequest) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

func (m *MockCalendarProvider) BookingCalendarID() string {
	args := m.Called()
	return args.String(0)
}

// MockMessageBuilder implements MessageBuilder for testing
type MockMessageBuilder struct {
	mock.Mock
}

func (m *MockMessageBuilder) SendBookingProgress(ctx context.Context, message models.BookingProgressMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageBuilder) SendRosterSynced(ctx context.Context, message models.RosterSyncedMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// MockMessage implements Message for testing
type MockMessage struct {
	mock.Mock
}

func (m *MockMessage) Subject() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockMessage) Data() []byte {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]byte)
}

func (m *MockMessage) Respond(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockMessage) HasReply() bool {
	args := m.Called()
	return args.Bool(0)
}
