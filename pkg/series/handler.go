package series

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kalenda/kalenda/internal/rest"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	series *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{s}
}

type SeriesDTO struct {
	UID             string     `json:"uid,omitempty"`
	Title           string     `json:"title"`
	Start           time.Time  `json:"start"`
	DurationMinutes int        `json:"durationMinutes"`
	Frequency       string     `json:"frequency"`
	Weekdays        []string   `json:"weekdays,omitempty"`
	Interval        int        `json:"interval,omitempty"`
	Until           *time.Time `json:"until,omitempty"`
	Link            string     `json:"link,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Location        string     `json:"location,omitempty"`
	Host            string     `json:"host,omitempty"`
	Category        string     `json:"category,omitempty"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
}

type ExceptionDTO struct {
	SeriesUID               string     `json:"seriesUid,omitempty"`
	OccurrenceStart         time.Time  `json:"occurrenceStart"`
	Deleted                 bool       `json:"deleted"`
	OverrideStart           *time.Time `json:"overrideStart,omitempty"`
	OverrideDurationMinutes *int       `json:"overrideDurationMinutes,omitempty"`
	OverrideTitle           string     `json:"overrideTitle,omitempty"`
	OverrideLink            string     `json:"overrideLink,omitempty"`
	OverrideNotes           string     `json:"overrideNotes,omitempty"`
	OverrideLocation        string     `json:"overrideLocation,omitempty"`
	OverrideHost            string     `json:"overrideHost,omitempty"`
	OverrideCategory        string     `json:"overrideCategory,omitempty"`
}

type SplitUpdateDTO struct {
	Title           *string `json:"title,omitempty"`
	DurationMinutes *int    `json:"durationMinutes,omitempty"`
	Link            *string `json:"link,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Location        *string `json:"location,omitempty"`
	Host            *string `json:"host,omitempty"`
	Category        *string `json:"category,omitempty"`
}

type SplitRequestDTO struct {
	OccurrenceStart time.Time       `json:"occurrenceStart"`
	Updates         *SplitUpdateDTO `json:"updates,omitempty"`
}

type SplitResponseDTO struct {
	OriginalSeries SeriesDTO `json:"originalSeries"`
	NewSeries      SeriesDTO `json:"newSeries"`
}

func (h *Handler) ListSeries(w http.ResponseWriter, r *http.Request) {
	all, err := h.series.ListSeries(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]SeriesDTO, 0, len(all))
	for _, s := range all {
		dtos = append(dtos, seriesToDTO(s))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	var dto SeriesDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.series.CreateSeries(r.Context(), dtoToSeries(dto))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(seriesToDTO(*created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	uid, ok := seriesUidVar(w, r)
	if !ok {
		return
	}

	s, err := h.series.GetSeries(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(seriesToDTO(*s)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) UpdateSeries(w http.ResponseWriter, r *http.Request) {
	uid, ok := seriesUidVar(w, r)
	if !ok {
		return
	}
	var dto SeriesDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s := dtoToSeries(dto)
	s.UID = uuid.NullUUID{UUID: uid, Valid: true}

	updated, err := h.series.UpdateSeries(r.Context(), s)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(seriesToDTO(*updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) DeleteSeries(w http.ResponseWriter, r *http.Request) {
	uid, ok := seriesUidVar(w, r)
	if !ok {
		return
	}

	if err := h.series.DeleteSeries(r.Context(), uid); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertOccurrence creates or updates the per-occurrence override identified
// by the original occurrence start time.
func (h *Handler) UpsertOccurrence(w http.ResponseWriter, r *http.Request) {
	uid, ok := seriesUidVar(w, r)
	if !ok {
		return
	}
	var dto ExceptionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dto.OccurrenceStart.IsZero() {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "occurrenceStart is required",
			Details: "'occurrenceStart' must be an RFC3339 datetime",
		})
		return
	}

	override := Override{
		Start:           dto.OverrideStart,
		DurationMinutes: dto.OverrideDurationMinutes,
		Title:           dto.OverrideTitle,
		Link:            dto.OverrideLink,
		Notes:           dto.OverrideNotes,
		Location:        dto.OverrideLocation,
		Host:            dto.OverrideHost,
		Category:        dto.OverrideCategory,
	}
	ex, err := h.series.UpsertException(r.Context(), uid, dto.OccurrenceStart, override)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(exceptionToDTO(*ex)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// DeleteOccurrence suppresses a single occurrence, identified by the
// occurrenceStart query parameter.
func (h *Handler) DeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	uid, ok := seriesUidVar(w, r)
	if !ok {
		return
	}
	startString := r.URL.Query().Get("occurrenceStart")
	occurrenceStart, err := time.Parse(time.RFC3339, startString)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid occurrenceStart format",
			Details: "'occurrenceStart' must be in RFC3339 format",
		})
		return
	}

	if err := h.series.DeleteOccurrence(r.Context(), uid, occurrenceStart); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Split cuts the series in two at the given occurrence ("edit all future").
func (h *Handler) Split(w http.ResponseWriter, r *http.Request) {
	uid, ok := seriesUidVar(w, r)
	if !ok {
		return
	}
	var dto SplitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if dto.OccurrenceStart.IsZero() {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "occurrenceStart is required",
			Details: "'occurrenceStart' must be an RFC3339 datetime",
		})
		return
	}

	var update SplitUpdate
	if dto.Updates != nil {
		update = SplitUpdate{
			Title:           dto.Updates.Title,
			DurationMinutes: dto.Updates.DurationMinutes,
			Link:            dto.Updates.Link,
			Notes:           dto.Updates.Notes,
			Location:        dto.Updates.Location,
			Host:            dto.Updates.Host,
			Category:        dto.Updates.Category,
		}
	}

	result, err := h.series.Split(r.Context(), uid, dto.OccurrenceStart, update)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	response := SplitResponseDTO{
		OriginalSeries: seriesToDTO(result.Original),
		NewSeries:      seriesToDTO(result.New),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func seriesUidVar(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	vars := mux.Vars(r)
	uid, err := uuid.Parse(vars["seriesUid"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid series uid",
			Details: "'seriesUid' must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return uid, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSeriesNotFound), errors.Is(err, ErrExceptionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrInvalidFrequency),
		errors.Is(err, ErrInvalidInterval),
		errors.Is(err, ErrInvalidWeekday):
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: err.Error()})
	default:
		log.Errorf("series request failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func seriesToDTO(s Series) SeriesDTO {
	weekdays := make([]string, 0, len(s.Weekdays))
	for _, wd := range s.Weekdays {
		weekdays = append(weekdays, string(wd))
	}
	uid := ""
	if s.UID.Valid {
		uid = s.UID.UUID.String()
	}
	return SeriesDTO{
		UID:             uid,
		Title:           s.Title,
		Start:           s.Start,
		DurationMinutes: s.DurationMinutes,
		Frequency:       string(s.Frequency),
		Weekdays:        weekdays,
		Interval:        s.Interval,
		Until:           s.Until,
		Link:            s.Link,
		Notes:           s.Notes,
		Location:        s.Location,
		Host:            s.Host,
		Category:        s.Category,
		CreatedAt:       s.CreatedAt,
	}
}

func dtoToSeries(dto SeriesDTO) Series {
	weekdays := make([]Weekday, 0, len(dto.Weekdays))
	for _, wd := range dto.Weekdays {
		weekdays = append(weekdays, Weekday(wd))
	}
	return Series{
		Title:           dto.Title,
		Start:           dto.Start,
		DurationMinutes: dto.DurationMinutes,
		Frequency:       Frequency(dto.Frequency),
		Weekdays:        weekdays,
		Interval:        dto.Interval,
		Until:           dto.Until,
		Link:            dto.Link,
		Notes:           dto.Notes,
		Location:        dto.Location,
		Host:            dto.Host,
		Category:        dto.Category,
	}
}

func exceptionToDTO(ex Exception) ExceptionDTO {
	return ExceptionDTO{
		SeriesUID:               ex.SeriesUID.String(),
		OccurrenceStart:         ex.OccurrenceStart,
		Deleted:                 ex.Deleted,
		OverrideStart:           ex.Override.Start,
		OverrideDurationMinutes: ex.Override.DurationMinutes,
		OverrideTitle:           ex.Override.Title,
		OverrideLink:            ex.Override.Link,
		OverrideNotes:           ex.Override.Notes,
		OverrideLocation:        ex.Override.Location,
		OverrideHost:            ex.Override.Host,
		OverrideCategory:        ex.Override.Category,
	}
}
