// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introchat/intro-booking-service/internal/domain"
	"github.com/introchat/intro-booking-service/internal/domain/models"
)

func setupRosterRepoForTesting() (*NatsRosterRepository, *mockNatsKeyValue, *mockNatsKeyValue) {
	coffeeKV := newMockNatsKeyValue()
	buddyKV := newMockNatsKeyValue()
	repo := NewNatsRosterRepository(map[models.MeetingType]INatsKeyValue{
		models.MeetingTypeCoffee: coffeeKV,
		models.MeetingTypeBuddy:  buddyKV,
	})
	return repo, coffeeKV, buddyKV
}

func putMember(t *testing.T, kv *mockNatsKeyValue, member *models.Member) {
	t.Helper()
	data, err := json.Marshal(member)
	require.NoError(t, err)
	_, err = kv.Put(context.Background(), NewKeyBuilder().MemberKey(member.Email), data)
	require.NoError(t, err)
}

func TestNatsRosterRepository_IsReady(t *testing.T) {
	repo, _, _ := setupRosterRepoForTesting()
	assert.True(t, repo.IsReady())

	partial := NewNatsRosterRepository(map[models.MeetingType]INatsKeyValue{
		models.MeetingTypeCoffee: newMockNatsKeyValue(),
	})
	assert.False(t, partial.IsReady())

	empty := NewNatsRosterRepository(nil)
	assert.False(t, empty.IsReady())
}

func TestNatsRosterRepository_GetAll(t *testing.T) {
	ctx := context.Background()
	repo, coffeeKV, buddyKV := setupRosterRepoForTesting()

	putMember(t, coffeeKV, &models.Member{Email: "zoe@corp.example", MeetingType: models.MeetingTypeCoffee, Weight: 2})
	putMember(t, coffeeKV, &models.Member{Email: "amy@corp.example", MeetingType: models.MeetingTypeCoffee})
	putMember(t, buddyKV, &models.Member{Email: "bob@corp.example", MeetingType: models.MeetingTypeBuddy})

	// The lease key lives in the same bucket and must not surface as a member.
	_, err := coffeeKV.Create(ctx, KeySyncLease, []byte(`{"holder":"x"}`))
	require.NoError(t, err)

	members, err := repo.GetAll(ctx, models.MeetingTypeCoffee)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "amy@corp.example", members[0].Email)
	assert.Equal(t, "zoe@corp.example", members[1].Email)
}

func TestNatsRosterRepository_GetNotFound(t *testing.T) {
	repo, _, _ := setupRosterRepoForTesting()

	member, err := repo.Get(context.Background(), "ghost@corp.example", models.MeetingTypeCoffee)
	assert.Nil(t, member)
	assert.Error(t, err)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestNatsRosterRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupRosterRepoForTesting()

	err := repo.Upsert(ctx, &models.Member{
		Email:       "Jane.Doe@Corp.Example",
		DisplayName: "Jane Doe",
		MeetingType: models.MeetingTypeCoffee,
	})
	require.NoError(t, err)

	member, err := repo.Get(ctx, "jane.doe@corp.example", models.MeetingTypeCoffee)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@corp.example", member.Email)
	assert.Equal(t, "Jane Doe", member.DisplayName)
	assert.Equal(t, 0, member.Weight)
	assert.NotNil(t, member.CreatedAt)
	assert.NotNil(t, member.UpdatedAt)
}

func TestNatsRosterRepository_IncrementWeight(t *testing.T) {
	ctx := context.Background()
	bookedDate := time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC)

	t.Run("increments and records booked date", func(t *testing.T) {
		repo, coffeeKV, _ := setupRosterRepoForTesting()
		putMember(t, coffeeKV, &models.Member{Email: "amy@corp.example", MeetingType: models.MeetingTypeCoffee, Weight: 3})

		weight, err := repo.IncrementWeight(ctx, "amy@corp.example", models.MeetingTypeCoffee, bookedDate)
		require.NoError(t, err)
		assert.Equal(t, 4, weight)

		member, err := repo.Get(ctx, "amy@corp.example", models.MeetingTypeCoffee)
		require.NoError(t, err)
		assert.Equal(t, 4, member.Weight)
		require.NotNil(t, member.LastBookedDate)
		assert.True(t, member.LastBookedDate.Equal(bookedDate))
	})

	t.Run("retries lost races within budget", func(t *testing.T) {
		repo, coffeeKV, _ := setupRosterRepoForTesting()
		putMember(t, coffeeKV, &models.Member{Email: "amy@corp.example", MeetingType: models.MeetingTypeCoffee, Weight: 1})
		coffeeKV.updateConflicts = 2

		weight, err := repo.IncrementWeight(ctx, "amy@corp.example", models.MeetingTypeCoffee, bookedDate)
		require.NoError(t, err)
		assert.Equal(t, 2, weight)
	})

	t.Run("conflict error past retry budget", func(t *testing.T) {
		repo, coffeeKV, _ := setupRosterRepoForTesting()
		putMember(t, coffeeKV, &models.Member{Email: "amy@corp.example", MeetingType: models.MeetingTypeCoffee, Weight: 1})
		coffeeKV.updateConflicts = 10

		_, err := repo.IncrementWeight(ctx, "amy@corp.example", models.MeetingTypeCoffee, bookedDate)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
	})

	t.Run("missing member", func(t *testing.T) {
		repo, _, _ := setupRosterRepoForTesting()

		_, err := repo.IncrementWeight(ctx, "ghost@corp.example", models.MeetingTypeCoffee, bookedDate)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})
}

func TestNatsRosterRepository_TouchLastBooked(t *testing.T) {
	ctx := context.Background()
	repo, coffeeKV, _ := setupRosterRepoForTesting()
	putMember(t, coffeeKV, &models.Member{Email: "amy@corp.example", MeetingType: models.MeetingTypeCoffee, Weight: 5})

	bookedDate := time.Date(2026, 1, 16, 11, 0, 0, 0, time.UTC)
	err := repo.TouchLastBooked(ctx, "amy@corp.example", models.MeetingTypeCoffee, bookedDate)
	require.NoError(t, err)

	member, err := repo.Get(ctx, "amy@corp.example", models.MeetingTypeCoffee)
	require.NoError(t, err)
	assert.Equal(t, 5, member.Weight, "weight must not change")
	require.NotNil(t, member.LastBookedDate)
	assert.True(t, member.LastBookedDate.Equal(bookedDate))
}

func TestNatsRosterRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, coffeeKV, _ := setupRosterRepoForTesting()
	putMember(t, coffeeKV, &models.Member{Email: "amy@corp.example", MeetingType: models.MeetingTypeCoffee})

	err := repo.Delete(ctx, "amy@corp.example", models.MeetingTypeCoffee)
	require.NoError(t, err)

	err = repo.Delete(ctx, "amy@corp.example", models.MeetingTypeCoffee)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestNatsRosterRepository_Lease(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		repo, _, _ := setupRosterRepoForTesting()

		require.NoError(t, repo.Acquire(ctx, models.MeetingTypeCoffee, "run-1"))
		require.NoError(t, repo.Release(ctx, models.MeetingTypeCoffee, "run-1"))

		// Released lease can be acquired again.
		require.NoError(t, repo.Acquire(ctx, models.MeetingTypeCoffee, "run-2"))
	})

	t.Run("held lease conflicts", func(t *testing.T) {
		repo, _, _ := setupRosterRepoForTesting()

		require.NoError(t, repo.Acquire(ctx, models.MeetingTypeCoffee, "run-1"))
		err := repo.Acquire(ctx, models.MeetingTypeCoffee, "run-2")
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
	})

	t.Run("lease is per meeting type", func(t *testing.T) {
		repo, _, _ := setupRosterRepoForTesting()

		require.NoError(t, repo.Acquire(ctx, models.MeetingTypeCoffee, "run-1"))
		require.NoError(t, repo.Acquire(ctx, models.MeetingTypeBuddy, "run-1"))
	})

	t.Run("stale lease is taken over", func(t *testing.T) {
		repo, coffeeKV, _ := setupRosterRepoForTesting()
		repo.leaseTTL = time.Millisecond

		stale, err := json.Marshal(leaseRecord{Holder: "crashed-run", AcquiredAt: time.Now().UTC().Add(-time.Hour)})
		require.NoError(t, err)
		_, err = coffeeKV.Create(ctx, KeySyncLease, stale)
		require.NoError(t, err)

		require.NoError(t, repo.Acquire(ctx, models.MeetingTypeCoffee, "run-2"))
	})

	t.Run("release by non-holder conflicts", func(t *testing.T) {
		repo, _, _ := setupRosterRepoForTesting()

		require.NoError(t, repo.Acquire(ctx, models.MeetingTypeCoffee, "run-1"))
		err := repo.Release(ctx, models.MeetingTypeCoffee, "run-2")
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
	})
}
