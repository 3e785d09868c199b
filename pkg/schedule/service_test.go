package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kalenda/kalenda/pkg/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ExpandSeries(t *testing.T) {
	provider := NewStubSeriesProvider()
	s := weeklyMondaySeries()
	provider.Add(s, series.Exception{
		SeriesUID:       s.UID.UUID,
		OccurrenceStart: date(2025, time.January, 27, 9, 0),
		Deleted:         true,
	})
	service := NewService(provider)

	got, err := service.ExpandSeries(context.Background(), s.UID.UUID,
		date(2025, time.January, 19, 0, 0), date(2025, time.February, 9, 0, 0))

	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2025, time.January, 20, 9, 0),
		date(2025, time.February, 3, 9, 0),
	}, starts(got))
}

func TestService_ExpandSeries_UnknownSeries(t *testing.T) {
	service := NewService(NewStubSeriesProvider())

	_, err := service.ExpandSeries(context.Background(), uuid.New(),
		date(2025, time.January, 19, 0, 0), date(2025, time.February, 9, 0, 0))

	assert.ErrorIs(t, err, series.ErrSeriesNotFound)
}

func TestService_ExpandAll(t *testing.T) {
	provider := NewStubSeriesProvider()
	monday := weeklyMondaySeries()
	provider.Add(monday)
	single := series.Series{
		UID:             uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Title:           "One-off",
		Start:           date(2025, time.January, 21, 12, 0),
		DurationMinutes: 45,
		Frequency:       series.FrequencyNever,
	}
	provider.Add(single)
	service := NewService(provider)

	got, err := service.ExpandAll(context.Background(),
		date(2025, time.January, 19, 0, 0), date(2025, time.January, 26, 0, 0))

	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2025, time.January, 20, 9, 0),
		date(2025, time.January, 21, 12, 0),
	}, starts(got))
}

func TestService_ExpandAll_ProviderFailure(t *testing.T) {
	provider := NewStubSeriesProvider()
	provider.Err = errors.New("connection refused")
	service := NewService(provider)

	_, err := service.ExpandAll(context.Background(),
		date(2025, time.January, 19, 0, 0), date(2025, time.February, 9, 0, 0))

	assert.Error(t, err)
}
