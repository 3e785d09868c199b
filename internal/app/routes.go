package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Series
	r.HandleFunc("/api/series", deps.SeriesHandler.ListSeries).Methods("GET")
	r.HandleFunc("/api/series", deps.SeriesHandler.CreateSeries).Methods("POST")
	r.HandleFunc("/api/series/{seriesUid}", deps.SeriesHandler.GetSeries).Methods("GET")
	r.HandleFunc("/api/series/{seriesUid}", deps.SeriesHandler.UpdateSeries).Methods("PUT")
	r.HandleFunc("/api/series/{seriesUid}", deps.SeriesHandler.DeleteSeries).Methods("DELETE")

	// Per-occurrence operations
	r.HandleFunc("/api/series/{seriesUid}/occurrence", deps.SeriesHandler.UpsertOccurrence).Methods("POST")
	r.HandleFunc("/api/series/{seriesUid}/occurrence", deps.SeriesHandler.DeleteOccurrence).Methods("DELETE")
	r.HandleFunc("/api/series/{seriesUid}/split", deps.SeriesHandler.Split).Methods("POST")

	// Expanded occurrences
	r.HandleFunc("/api/series/{seriesUid}/occurrences", deps.ScheduleHandler.GetSeriesOccurrences).
		Queries("start", "{start}", "end", "{end}").Methods("GET")
	r.HandleFunc("/api/occurrences", deps.ScheduleHandler.GetOccurrences).
		Queries("start", "{start}", "end", "{end}").Methods("GET")
}
