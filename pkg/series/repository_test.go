package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kalenda/kalenda/internal/test_utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepository(t *testing.T) *RepositoryImpl {
	t.Helper()
	db := test_utils.SetupTestDB(t)
	return NewRepository(db)
}

func date(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func sampleSeries() Series {
	until := date(2025, time.June, 30, 9, 0)
	return Series{
		Title:           "Weekly sync",
		Start:           date(2025, time.January, 20, 9, 0),
		DurationMinutes: 30,
		Frequency:       FrequencyWeekly,
		Weekdays:        []Weekday{Monday, Thursday},
		Interval:        1,
		Until:           &until,
		Link:            "https://example.com/sync",
		Notes:           "Bring updates",
		Location:        "Room 2",
		Host:            "Alex",
		Category:        "Meeting",
		CreatedAt:       date(2025, time.January, 1, 12, 0),
	}
}

func storeSeries(t *testing.T, repo *RepositoryImpl, s Series) Series {
	t.Helper()
	uid, err := repo.StoreSeries(context.Background(), s)
	require.NoError(t, err)
	s.UID = uuid.NullUUID{UUID: uid, Valid: true}
	return s
}

func TestRepository_StoreAndGetSeries(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	stored := storeSeries(t, repo, sampleSeries())

	got, err := repo.GetSeries(ctx, stored.UID.UUID)
	require.NoError(t, err)
	assert.Equal(t, stored, *got)
}

func TestRepository_GetSeries_NotFound(t *testing.T) {
	repo := setupTestRepository(t)

	_, err := repo.GetSeries(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestRepository_GetSeries_SoftDeletedIsHidden(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	stored := storeSeries(t, repo, sampleSeries())

	require.NoError(t, repo.SoftDeleteSeries(ctx, stored.UID.UUID))

	_, err := repo.GetSeries(ctx, stored.UID.UUID)
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestRepository_NullableFieldsRoundTrip(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	s := sampleSeries()
	s.Until = nil
	s.Weekdays = nil
	stored := storeSeries(t, repo, s)

	got, err := repo.GetSeries(ctx, stored.UID.UUID)
	require.NoError(t, err)
	assert.Nil(t, got.Until)
	assert.Nil(t, got.Weekdays)
}

func TestRepository_ListActiveSeries(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	later := sampleSeries()
	later.Title = "Later"
	later.Start = date(2025, time.March, 1, 9, 0)
	storedLater := storeSeries(t, repo, later)

	earlier := sampleSeries()
	earlier.Title = "Earlier"
	storedEarlier := storeSeries(t, repo, earlier)

	deleted := storeSeries(t, repo, sampleSeries())
	require.NoError(t, repo.SoftDeleteSeries(ctx, deleted.UID.UUID))

	got, err := repo.ListActiveSeries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by start time
	assert.Equal(t, storedEarlier.UID, got[0].UID)
	assert.Equal(t, storedLater.UID, got[1].UID)
}

func TestRepository_UpdateSeries(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	stored := storeSeries(t, repo, sampleSeries())

	stored.Title = "Renamed"
	stored.Frequency = FrequencyFortnightly
	stored.Interval = 2
	newUntil := date(2025, time.February, 28, 9, 0)
	stored.Until = &newUntil
	require.NoError(t, repo.UpdateSeries(ctx, stored))

	got, err := repo.GetSeries(ctx, stored.UID.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, FrequencyFortnightly, got.Frequency)
	assert.Equal(t, 2, got.Interval)
	require.NotNil(t, got.Until)
	assert.Equal(t, newUntil, *got.Until)
}

func TestRepository_UpdateSeries_NotFound(t *testing.T) {
	repo := setupTestRepository(t)

	missing := sampleSeries()
	missing.UID = uuid.NullUUID{UUID: uuid.New(), Valid: true}
	err := repo.UpdateSeries(context.Background(), missing)

	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestRepository_SoftDeleteSeries_NotFound(t *testing.T) {
	repo := setupTestRepository(t)

	err := repo.SoftDeleteSeries(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestRepository_UpsertException_InsertAndGet(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	stored := storeSeries(t, repo, sampleSeries())

	overrideStart := date(2025, time.January, 27, 10, 0)
	overrideDuration := 45
	ex := Exception{
		SeriesUID:       stored.UID.UUID,
		OccurrenceStart: date(2025, time.January, 27, 9, 0),
		Override: Override{
			Start:           &overrideStart,
			DurationMinutes: &overrideDuration,
			Title:           "Moved",
		},
		CreatedAt: date(2025, time.January, 25, 8, 0),
	}
	require.NoError(t, repo.UpsertException(ctx, ex))

	got, err := repo.GetException(ctx, stored.UID.UUID, ex.OccurrenceStart)
	require.NoError(t, err)
	assert.Equal(t, ex, *got)
}

func TestRepository_UpsertException_ReplacesExisting(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	stored := storeSeries(t, repo, sampleSeries())
	occurrenceStart := date(2025, time.January, 27, 9, 0)

	require.NoError(t, repo.UpsertException(ctx, Exception{
		SeriesUID:       stored.UID.UUID,
		OccurrenceStart: occurrenceStart,
		Deleted:         true,
		CreatedAt:       date(2025, time.January, 25, 8, 0),
	}))
	require.NoError(t, repo.UpsertException(ctx, Exception{
		SeriesUID:       stored.UID.UUID,
		OccurrenceStart: occurrenceStart,
		Override:        Override{Title: "Resurrected"},
		CreatedAt:       date(2025, time.January, 26, 8, 0),
	}))

	got, err := repo.GetException(ctx, stored.UID.UUID, occurrenceStart)
	require.NoError(t, err)
	assert.False(t, got.Deleted)
	assert.Equal(t, "Resurrected", got.Override.Title)

	exceptions, err := repo.ListExceptions(ctx, stored.UID.UUID)
	require.NoError(t, err)
	assert.Len(t, exceptions, 1)
}

func TestRepository_GetException_NotFound(t *testing.T) {
	repo := setupTestRepository(t)
	stored := storeSeries(t, repo, sampleSeries())

	_, err := repo.GetException(context.Background(), stored.UID.UUID, date(2025, time.January, 27, 9, 0))

	assert.ErrorIs(t, err, ErrExceptionNotFound)
}

func TestRepository_FindExceptionByOverrideStart(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	stored := storeSeries(t, repo, sampleSeries())

	movedTo := date(2025, time.January, 28, 9, 0)
	ex := Exception{
		SeriesUID:       stored.UID.UUID,
		OccurrenceStart: date(2025, time.January, 27, 9, 0),
		Override:        Override{Start: &movedTo},
		CreatedAt:       date(2025, time.January, 25, 8, 0),
	}
	require.NoError(t, repo.UpsertException(ctx, ex))

	got, err := repo.FindExceptionByOverrideStart(ctx, stored.UID.UUID, movedTo)
	require.NoError(t, err)
	assert.Equal(t, ex.OccurrenceStart, got.OccurrenceStart)

	_, err = repo.FindExceptionByOverrideStart(ctx, stored.UID.UUID, date(2025, time.January, 29, 9, 0))
	assert.ErrorIs(t, err, ErrExceptionNotFound)
}

func TestRepository_MarkExceptionDeleted(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	stored := storeSeries(t, repo, sampleSeries())
	occurrenceStart := date(2025, time.January, 27, 9, 0)

	require.NoError(t, repo.UpsertException(ctx, Exception{
		SeriesUID:       stored.UID.UUID,
		OccurrenceStart: occurrenceStart,
		Override:        Override{Title: "Moved"},
		CreatedAt:       date(2025, time.January, 25, 8, 0),
	}))

	require.NoError(t, repo.MarkExceptionDeleted(ctx, stored.UID.UUID, occurrenceStart))

	got, err := repo.GetException(ctx, stored.UID.UUID, occurrenceStart)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
}

func TestRepository_MarkExceptionDeleted_NotFound(t *testing.T) {
	repo := setupTestRepository(t)
	stored := storeSeries(t, repo, sampleSeries())

	err := repo.MarkExceptionDeleted(context.Background(), stored.UID.UUID, date(2025, time.January, 27, 9, 0))

	assert.ErrorIs(t, err, ErrExceptionNotFound)
}

func TestRepository_ListExceptions_OrderedByOccurrence(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	stored := storeSeries(t, repo, sampleSeries())

	second := date(2025, time.February, 3, 9, 0)
	first := date(2025, time.January, 27, 9, 0)
	for _, occ := range []time.Time{second, first} {
		require.NoError(t, repo.UpsertException(ctx, Exception{
			SeriesUID:       stored.UID.UUID,
			OccurrenceStart: occ,
			Deleted:         true,
			CreatedAt:       date(2025, time.January, 25, 8, 0),
		}))
	}

	got, err := repo.ListExceptions(ctx, stored.UID.UUID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0].OccurrenceStart)
	assert.Equal(t, second, got[1].OccurrenceStart)
}

func TestRepository_MoveExceptions_FromInstantInclusive(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()
	source := storeSeries(t, repo, sampleSeries())
	target := storeSeries(t, repo, sampleSeries())

	splitAt := date(2025, time.February, 3, 9, 0)
	before := splitAt.Add(-time.Second)
	after := splitAt.Add(time.Hour)
	for _, occ := range []time.Time{before, splitAt, after} {
		require.NoError(t, repo.UpsertException(ctx, Exception{
			SeriesUID:       source.UID.UUID,
			OccurrenceStart: occ,
			Deleted:         true,
			CreatedAt:       date(2025, time.January, 25, 8, 0),
		}))
	}

	require.NoError(t, repo.MoveExceptions(ctx, source.UID.UUID, target.UID.UUID, splitAt))

	remaining, err := repo.ListExceptions(ctx, source.UID.UUID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, before, remaining[0].OccurrenceStart)

	moved, err := repo.ListExceptions(ctx, target.UID.UUID)
	require.NoError(t, err)
	require.Len(t, moved, 2)
	assert.Equal(t, splitAt, moved[0].OccurrenceStart)
	assert.Equal(t, after, moved[1].OccurrenceStart)
}

func TestRepository_WithTransaction_RollsBackOnError(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(txRepo Repository) error {
		if _, err := txRepo.StoreSeries(ctx, sampleSeries()); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := repo.ListActiveSeries(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepository_WithTransaction_Commits(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(txRepo Repository) error {
		_, err := txRepo.StoreSeries(ctx, sampleSeries())
		return err
	})
	require.NoError(t, err)

	got, err := repo.ListActiveSeries(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
