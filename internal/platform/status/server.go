// Package status serves the operational endpoints of serve mode: a database
// health check and a snapshot of the latest sync run.
package status

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicsync/clinicsync/internal/domain/sync"
	"github.com/clinicsync/clinicsync/internal/platform/db"
	"github.com/clinicsync/clinicsync/internal/platform/middleware"
)

// RunReporter exposes the scheduler's view of sync runs.
type RunReporter interface {
	Running() bool
	LastRun() *sync.Stats
}

// Server is the serve-mode HTTP server.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger
}

// NewServer wires the status endpoints.
func NewServer(pool *pgxpool.Pool, runs RunReporter, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "status").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))

	e.GET("/healthz", db.HealthHandler(pool))
	e.GET("/status", runHandler(runs))

	return &Server{echo: e, logger: logger}
}

// Start blocks serving HTTP on the given port.
func (s *Server) Start(port string) error {
	s.logger.Info().Str("port", port).Msg("status server listening")
	return s.echo.Start(":" + port)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type countersView struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Errored   int `json:"errored"`
}

type runView struct {
	RunID            string       `json:"run_id"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
	Patients         countersView `json:"patients"`
	Appointments     countersView `json:"appointments"`
	EventsDeleted    int          `json:"events_deleted"`
	ContactsPushed   int          `json:"contacts_pushed"`
	ContactsDeferred int          `json:"contacts_deferred"`
	EventsPushed     int          `json:"events_pushed"`
	EventsSkipped    int          `json:"events_skipped"`
	EventsFailed     int          `json:"events_failed"`
}

func runHandler(runs RunReporter) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := map[string]interface{}{
			"running": runs.Running(),
		}
		if last := runs.LastRun(); last != nil {
			resp["last_run"] = toView(last)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func toView(s *sync.Stats) runView {
	counters := func(c sync.Counters) countersView {
		return countersView{
			Processed: c.Processed,
			Created:   c.Created,
			Updated:   c.Updated,
			Unchanged: c.Unchanged,
			Errored:   c.Errored,
		}
	}
	return runView{
		RunID:            s.RunID.String(),
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
		Patients:         counters(s.Patients),
		Appointments:     counters(s.Appointments),
		EventsDeleted:    s.EventsDeleted,
		ContactsPushed:   s.ContactsPushed,
		ContactsDeferred: s.ContactsDeferred,
		EventsPushed:     s.Events.Pushed,
		EventsSkipped:    s.Events.Skipped,
		EventsFailed:     s.Events.Failed,
	}
}
