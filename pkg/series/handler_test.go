package series

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/kalenda/kalenda/internal/event_bus"
	"github.com/kalenda/kalenda/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test setup helper wiring the handler behind the production routes.
func setupHandlerTest(t *testing.T) *mux.Router {
	t.Helper()
	repo := setupTestRepository(t)
	clock := &utils.MockClock{FixedNow: date(2025, time.January, 15, 12, 0)}
	handler := NewHandler(NewService(repo, event_bus.NewEventBus(), clock))

	router := mux.NewRouter()
	router.HandleFunc("/api/series", handler.ListSeries).Methods("GET")
	router.HandleFunc("/api/series", handler.CreateSeries).Methods("POST")
	router.HandleFunc("/api/series/{seriesUid}", handler.GetSeries).Methods("GET")
	router.HandleFunc("/api/series/{seriesUid}", handler.UpdateSeries).Methods("PUT")
	router.HandleFunc("/api/series/{seriesUid}", handler.DeleteSeries).Methods("DELETE")
	router.HandleFunc("/api/series/{seriesUid}/occurrence", handler.UpsertOccurrence).Methods("POST")
	router.HandleFunc("/api/series/{seriesUid}/occurrence", handler.DeleteOccurrence).Methods("DELETE")
	router.HandleFunc("/api/series/{seriesUid}/split", handler.Split).Methods("POST")
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(payload)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createTestSeries(t *testing.T, router *mux.Router) SeriesDTO {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/series", SeriesDTO{
		Title:           "Weekly sync",
		Start:           date(2025, time.January, 20, 9, 0),
		DurationMinutes: 30,
		Frequency:       string(FrequencyWeekly),
		Weekdays:        []string{"MO"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created SeriesDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.NotEmpty(t, created.UID)
	return created
}

func TestCreateSeries(t *testing.T) {
	router := setupHandlerTest(t)

	created := createTestSeries(t, router)

	assert.Equal(t, "Weekly sync", created.Title)
	assert.Equal(t, "WEEKLY", created.Frequency)
	assert.Equal(t, 1, created.Interval)
	assert.Equal(t, "Event", created.Category)
	assert.Equal(t, date(2025, time.January, 15, 12, 0), created.CreatedAt)
}

func TestCreateSeries_ValidationFailure(t *testing.T) {
	router := setupHandlerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/series", SeriesDTO{
		Title:           "Broken",
		Start:           date(2025, time.January, 20, 9, 0),
		DurationMinutes: 0,
		Frequency:       string(FrequencyWeekly),
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSeries_MalformedBody(t *testing.T) {
	router := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/series", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSeries(t *testing.T) {
	router := setupHandlerTest(t)
	created := createTestSeries(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/series/"+created.UID, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got SeriesDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, created.UID, got.UID)
	assert.Equal(t, []string{"MO"}, got.Weekdays)
}

func TestGetSeries_InvalidUid(t *testing.T) {
	router := setupHandlerTest(t)

	w := doJSON(t, router, http.MethodGet, "/api/series/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSeries_NotFound(t *testing.T) {
	router := setupHandlerTest(t)

	w := doJSON(t, router, http.MethodGet, "/api/series/0b2f7b3e-6f43-4f6e-9d36-000000000000", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSeries(t *testing.T) {
	router := setupHandlerTest(t)
	createTestSeries(t, router)

	w := doJSON(t, router, http.MethodGet, "/api/series", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got []SeriesDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Len(t, got, 1)
}

func TestUpdateSeries(t *testing.T) {
	router := setupHandlerTest(t)
	created := createTestSeries(t, router)

	created.Title = "Renamed"
	w := doJSON(t, router, http.MethodPut, "/api/series/"+created.UID, created)

	require.Equal(t, http.StatusOK, w.Code)
	var updated SeriesDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, "Renamed", updated.Title)
}

func TestDeleteSeries(t *testing.T) {
	router := setupHandlerTest(t)
	created := createTestSeries(t, router)

	w := doJSON(t, router, http.MethodDelete, "/api/series/"+created.UID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/series/"+created.UID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpsertOccurrence(t *testing.T) {
	router := setupHandlerTest(t)
	created := createTestSeries(t, router)

	overrideStart := date(2025, time.January, 27, 10, 0)
	w := doJSON(t, router, http.MethodPost, "/api/series/"+created.UID+"/occurrence", ExceptionDTO{
		OccurrenceStart: date(2025, time.January, 27, 9, 0),
		OverrideStart:   &overrideStart,
		OverrideTitle:   "Moved",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var got ExceptionDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, created.UID, got.SeriesUID)
	assert.False(t, got.Deleted)
	assert.Equal(t, "Moved", got.OverrideTitle)
	require.NotNil(t, got.OverrideStart)
	assert.Equal(t, overrideStart, got.OverrideStart.UTC())
}

func TestUpsertOccurrence_MissingOccurrenceStart(t *testing.T) {
	router := setupHandlerTest(t)
	created := createTestSeries(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/series/"+created.UID+"/occurrence", ExceptionDTO{
		OverrideTitle: "Moved",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteOccurrence(t *testing.T) {
	router := setupHandlerTest(t)
	created := createTestSeries(t, router)

	w := doJSON(t, router, http.MethodDelete,
		"/api/series/"+created.UID+"/occurrence?occurrenceStart=2025-01-27T09:00:00Z", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteOccurrence_InvalidTime(t *testing.T) {
	router := setupHandlerTest(t)
	created := createTestSeries(t, router)

	w := doJSON(t, router, http.MethodDelete,
		"/api/series/"+created.UID+"/occurrence?occurrenceStart=tomorrow", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSplit(t *testing.T) {
	router := setupHandlerTest(t)
	created := createTestSeries(t, router)

	newTitle := "All-hands sync"
	w := doJSON(t, router, http.MethodPost, "/api/series/"+created.UID+"/split", SplitRequestDTO{
		OccurrenceStart: date(2025, time.February, 3, 9, 0),
		Updates:         &SplitUpdateDTO{Title: &newTitle},
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var got SplitResponseDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, created.UID, got.OriginalSeries.UID)
	require.NotNil(t, got.OriginalSeries.Until)
	assert.Equal(t, date(2025, time.February, 3, 9, 0).Add(-time.Second), got.OriginalSeries.Until.UTC())
	assert.NotEmpty(t, got.NewSeries.UID)
	assert.NotEqual(t, created.UID, got.NewSeries.UID)
	assert.Equal(t, "All-hands sync", got.NewSeries.Title)
	assert.Equal(t, date(2025, time.February, 3, 9, 0), got.NewSeries.Start.UTC())
}

func TestSplit_MissingOccurrenceStart(t *testing.T) {
	router := setupHandlerTest(t)
	created := createTestSeries(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/series/"+created.UID+"/split", SplitRequestDTO{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
