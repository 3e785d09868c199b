package app

import (
	"database/sql"

	"github.com/kalenda/kalenda/internal/event_bus"
	"github.com/kalenda/kalenda/internal/utils"
	"github.com/kalenda/kalenda/pkg/schedule"
	"github.com/kalenda/kalenda/pkg/series"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus

	SeriesRepository *series.RepositoryImpl
	SeriesService    *series.Service
	SeriesHandler    *series.Handler

	ScheduleService *schedule.Service
	ScheduleHandler *schedule.Handler

	Clock utils.Clock
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *sql.DB) *Dependencies {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	deps.Clock = &utils.SystemClock{}

	deps.SeriesRepository = series.NewRepository(db)
	deps.SeriesService = series.NewService(deps.SeriesRepository, deps.EventBus, deps.Clock)
	deps.SeriesHandler = series.NewHandler(deps.SeriesService)

	deps.ScheduleService = schedule.NewService(deps.SeriesRepository)
	deps.ScheduleHandler = schedule.NewHandler(deps.ScheduleService)

	subscribeAuditLog(deps.EventBus)

	return deps
}

// subscribeAuditLog attaches debug-level listeners for every series mutation
// published on the bus.
func subscribeAuditLog(bus *event_bus.EventBus) {
	for _, eventType := range []event_bus.EventType{"series.created", "series.updated", "series.deleted"} {
		event_bus.SubscribeTyped[event_bus.SeriesChanged](bus, eventType,
			func(e event_bus.EventT[event_bus.SeriesChanged]) error {
				log.Debugf("%s: %s (%s)", e.Type, e.Data.UID, e.Data.Title)
				return nil
			})
	}
	event_bus.SubscribeTyped[event_bus.SeriesSplit](bus, "series.split",
		func(e event_bus.EventT[event_bus.SeriesSplit]) error {
			log.Debugf("series.split: %s -> %s at %s", e.Data.OriginalUID, e.Data.NewUID, e.Data.SplitAt)
			return nil
		})
	event_bus.SubscribeTyped[event_bus.SeriesExceptionChanged](bus, "series.exception.updated",
		func(e event_bus.EventT[event_bus.SeriesExceptionChanged]) error {
			log.Debugf("series.exception.updated: %s at %s (deleted=%t)",
				e.Data.SeriesUID, e.Data.OccurrenceStart, e.Data.Deleted)
			return nil
		})
}
