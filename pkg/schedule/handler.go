package schedule

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kalenda/kalenda/internal/rest"
	"github.com/kalenda/kalenda/pkg/series"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	schedule *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{s}
}

type OccurrenceDTO struct {
	SeriesUID       string    `json:"seriesUid"`
	Start           time.Time `json:"start"`
	OriginalStart   time.Time `json:"originalStart"`
	LocalStart      string    `json:"localStart,omitempty"`
	DurationMinutes int       `json:"durationMinutes"`
	Title           string    `json:"title"`
	Link            string    `json:"link,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Location        string    `json:"location,omitempty"`
	Host            string    `json:"host,omitempty"`
	Category        string    `json:"category,omitempty"`
	Frequency       string    `json:"frequency"`
	Overridden      bool      `json:"overridden"`
}

type occurrencesResponse struct {
	Occurrences []OccurrenceDTO `json:"occurrences"`
}

// GetOccurrences returns all occurrences of all active series within the
// requested window. With a tz parameter each occurrence also carries its
// local-time rendering; the stored instants stay UTC.
func (h *Handler) GetOccurrences(w http.ResponseWriter, r *http.Request) {
	windowStart, windowEnd, loc, ok := parseWindow(w, r)
	if !ok {
		return
	}

	occurrences, err := h.schedule.ExpandAll(r.Context(), windowStart, windowEnd)
	if err != nil {
		log.Errorf("failed to expand occurrences: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeOccurrences(w, occurrences, loc)
}

// GetSeriesOccurrences returns the occurrences of a single series.
func (h *Handler) GetSeriesOccurrences(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	seriesUid, err := uuid.Parse(vars["seriesUid"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid series uid",
			Details: "'seriesUid' must be a valid UUID",
		})
		return
	}
	windowStart, windowEnd, loc, ok := parseWindow(w, r)
	if !ok {
		return
	}

	occurrences, err := h.schedule.ExpandSeries(r.Context(), seriesUid, windowStart, windowEnd)
	if err != nil {
		if errors.Is(err, series.ErrSeriesNotFound) {
			http.Error(w, "series not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to expand series %s: %v", seriesUid, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeOccurrences(w, occurrences, loc)
}

// parseWindow reads start, end and the optional tz query parameters. On
// failure it writes the error response itself and returns ok=false.
func parseWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, *time.Location, bool) {
	startString := r.URL.Query().Get("start")
	endString := r.URL.Query().Get("end")

	windowStart, err := time.Parse(time.RFC3339, startString)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid start (date) format",
			Details: "'start' must be in RFC3339 format",
		})
		return time.Time{}, time.Time{}, nil, false
	}
	windowEnd, err := time.Parse(time.RFC3339, endString)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid end (date) format",
			Details: "'end' must be in RFC3339 format",
		})
		return time.Time{}, time.Time{}, nil, false
	}

	var loc *time.Location
	if tzName := r.URL.Query().Get("tz"); tzName != "" {
		loc, err = time.LoadLocation(tzName)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(rest.ErrorResponse{
				Error:   "Invalid timezone",
				Details: "'tz' must be a valid IANA timezone name",
			})
			return time.Time{}, time.Time{}, nil, false
		}
	}
	return windowStart, windowEnd, loc, true
}

func writeOccurrences(w http.ResponseWriter, occurrences []Occurrence, loc *time.Location) {
	dtos := make([]OccurrenceDTO, 0, len(occurrences))
	for _, occ := range occurrences {
		dtos = append(dtos, occurrenceToDTO(occ, loc))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(occurrencesResponse{Occurrences: dtos}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func occurrenceToDTO(occ Occurrence, loc *time.Location) OccurrenceDTO {
	dto := OccurrenceDTO{
		SeriesUID:       occ.SeriesUID.String(),
		Start:           occ.Start,
		OriginalStart:   occ.OriginalStart,
		DurationMinutes: occ.DurationMinutes,
		Title:           occ.Title,
		Link:            occ.Link,
		Notes:           occ.Notes,
		Location:        occ.Location,
		Host:            occ.Host,
		Category:        occ.Category,
		Frequency:       string(occ.Frequency),
		Overridden:      occ.Overridden,
	}
	if loc != nil {
		dto.LocalStart = occ.Start.In(loc).Format(time.RFC3339)
	}
	return dto
}
