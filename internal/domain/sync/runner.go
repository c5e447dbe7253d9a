// Package sync sequences a reconciliation run: ingest patients, ingest
// appointments over the sync window, sweep cancelled events, push contacts,
// push appointment events. Each pass defers failures to the next run instead
// of aborting, except when the context is cancelled.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicsync/clinicsync/internal/domain/appointment"
	"github.com/clinicsync/clinicsync/internal/domain/patient"
	"github.com/clinicsync/clinicsync/internal/platform/alfadocs"
)

// The sync window: slightly into the past to catch late edits and far enough
// forward to cover every booked appointment.
const (
	WindowBackDays    = 4
	WindowForwardDays = 4 * 365
)

// Upstream read pacing, on top of the CRM rate limiter: a pause after every
// listing chunk and a shorter one per upsertPauseEvery processed records.
const (
	chunkPause       = 500 * time.Millisecond
	upsertPause      = 300 * time.Millisecond
	upsertPauseEvery = 5
)

// Source is the slice of the upstream client the runner needs.
type Source interface {
	ListPatients(ctx context.Context, fn func(page, totalPages int, patients []alfadocs.Patient) error) error
	ListAppointmentsRange(ctx context.Context, start, end time.Time, fn func(chunkStart, chunkEnd time.Time, appts []alfadocs.Appointment) error) error
}

// PatientReconciler ingests patients and lists the ones awaiting a contact.
type PatientReconciler interface {
	Upsert(ctx context.Context, up *alfadocs.Patient) (patient.Outcome, error)
	ListWithoutRemoteID(ctx context.Context) ([]*patient.Patient, error)
}

// AppointmentReconciler ingests, sweeps and pushes appointments.
type AppointmentReconciler interface {
	Upsert(ctx context.Context, up *alfadocs.Appointment) (appointment.Outcome, error)
	SweepCancellations(ctx context.Context) (int, error)
	Push(ctx context.Context) (appointment.PushStats, error)
}

// ContactResolver creates missing CRM contacts.
type ContactResolver interface {
	Resolve(ctx context.Context, p *patient.Patient) (string, bool)
}

// Counters tallies one ingest pass.
type Counters struct {
	Processed int
	Created   int
	Updated   int
	Unchanged int
	Errored   int
}

func (c *Counters) record(created, updated bool, err error) {
	c.Processed++
	switch {
	case err != nil:
		c.Errored++
	case created:
		c.Created++
	case updated:
		c.Updated++
	default:
		c.Unchanged++
	}
}

// Stats summarizes one sync run.
type Stats struct {
	RunID            uuid.UUID
	StartedAt        time.Time
	FinishedAt       time.Time
	Patients         Counters
	Appointments     Counters
	EventsDeleted    int
	ContactsPushed   int
	ContactsDeferred int
	Events           appointment.PushStats
}

// Params collects the runner dependencies.
type Params struct {
	Source       Source
	Patients     PatientReconciler
	Appointments AppointmentReconciler
	Contacts     ContactResolver
	Logger       zerolog.Logger
}

// Runner drives full and partial sync runs.
type Runner struct {
	source       Source
	patients     PatientReconciler
	appointments AppointmentReconciler
	contacts     ContactResolver
	logger       zerolog.Logger
	now          func() time.Time
	sleep        func(time.Duration)
}

// NewRunner builds a sync runner.
func NewRunner(p Params) *Runner {
	return &Runner{
		source:       p.Source,
		patients:     p.Patients,
		appointments: p.Appointments,
		contacts:     p.Contacts,
		logger:       p.Logger.With().Str("component", "sync").Logger(),
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Run performs a full run: ingest, sweep, then push. Record-level failures
// are counted and deferred; only a cancelled context or a broken listing
// aborts the run.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	stats := r.newStats()
	log := r.runLogger(stats)
	log.Info().Msg("sync run started")

	if err := r.ingest(ctx, log, stats); err != nil {
		return stats, err
	}
	if err := r.push(ctx, log, stats); err != nil {
		return stats, err
	}

	r.finish(log, stats)
	return stats, nil
}

// Ingest performs the pull half of a run only: patients, then appointments.
func (r *Runner) Ingest(ctx context.Context) (*Stats, error) {
	stats := r.newStats()
	log := r.runLogger(stats)
	log.Info().Msg("ingest run started")

	if err := r.ingest(ctx, log, stats); err != nil {
		return stats, err
	}
	r.finish(log, stats)
	return stats, nil
}

// Push performs the push half of a run only: sweep cancellations, create
// missing contacts, mirror flagged appointments.
func (r *Runner) Push(ctx context.Context) (*Stats, error) {
	stats := r.newStats()
	log := r.runLogger(stats)
	log.Info().Msg("push run started")

	if err := r.push(ctx, log, stats); err != nil {
		return stats, err
	}
	r.finish(log, stats)
	return stats, nil
}

func (r *Runner) newStats() *Stats {
	return &Stats{RunID: uuid.New(), StartedAt: r.now()}
}

func (r *Runner) runLogger(stats *Stats) zerolog.Logger {
	return r.logger.With().Str("run_id", stats.RunID.String()).Logger()
}

func (r *Runner) finish(log zerolog.Logger, stats *Stats) {
	stats.FinishedAt = r.now()
	log.Info().
		Int("patients_processed", stats.Patients.Processed).
		Int("patients_errored", stats.Patients.Errored).
		Int("appointments_processed", stats.Appointments.Processed).
		Int("appointments_errored", stats.Appointments.Errored).
		Int("events_deleted", stats.EventsDeleted).
		Int("contacts_pushed", stats.ContactsPushed).
		Int("events_pushed", stats.Events.Pushed).
		Int("events_failed", stats.Events.Failed).
		Dur("elapsed", stats.FinishedAt.Sub(stats.StartedAt)).
		Msg("run finished")
}

func (r *Runner) ingest(ctx context.Context, log zerolog.Logger, stats *Stats) error {
	if err := r.ingestPatients(ctx, log, stats); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.ingestAppointments(ctx, log, stats)
}

func (r *Runner) push(ctx context.Context, log zerolog.Logger, stats *Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deleted, err := r.appointments.SweepCancellations(ctx)
	stats.EventsDeleted = deleted
	if err != nil {
		return fmt.Errorf("sweep cancellations: %w", err)
	}

	if err := r.pushContacts(ctx, log, stats); err != nil {
		return err
	}

	events, err := r.appointments.Push(ctx)
	stats.Events = events
	if err != nil {
		return fmt.Errorf("push events: %w", err)
	}
	return nil
}

func (r *Runner) ingestPatients(ctx context.Context, log zerolog.Logger, stats *Stats) error {
	err := r.source.ListPatients(ctx, func(page, totalPages int, patients []alfadocs.Patient) error {
		log.Info().Int("page", page).Int("pages", totalPages).Int("count", len(patients)).Msg("patient page")
		for i := range patients {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := r.patients.Upsert(ctx, &patients[i])
			if err != nil {
				log.Error().Err(err).Int64("patient_id", patients[i].ID).Msg("patient ingest failed")
			}
			stats.Patients.record(out == patient.OutcomeCreated, out == patient.OutcomeUpdated, err)
			r.pace(stats.Patients.Processed)
		}
		r.sleep(chunkPause)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingest patients: %w", err)
	}
	return nil
}

func (r *Runner) ingestAppointments(ctx context.Context, log zerolog.Logger, stats *Stats) error {
	start, end := r.window()
	err := r.source.ListAppointmentsRange(ctx, start, end, func(chunkStart, chunkEnd time.Time, appts []alfadocs.Appointment) error {
		log.Info().
			Str("from", chunkStart.Format("2006-01-02")).
			Str("to", chunkEnd.Format("2006-01-02")).
			Int("count", len(appts)).Msg("appointment chunk")
		for i := range appts {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := r.appointments.Upsert(ctx, &appts[i])
			if err != nil {
				log.Error().Err(err).Int64("appointment_id", appts[i].ID).Msg("appointment ingest failed")
			}
			stats.Appointments.record(out == appointment.OutcomeCreated, out == appointment.OutcomeUpdated, err)
			r.pace(stats.Appointments.Processed)
		}
		r.sleep(chunkPause)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingest appointments: %w", err)
	}
	return nil
}

func (r *Runner) pushContacts(ctx context.Context, log zerolog.Logger, stats *Stats) error {
	pending, err := r.patients.ListWithoutRemoteID(ctx)
	if err != nil {
		return fmt.Errorf("list patients without contact: %w", err)
	}
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := r.contacts.Resolve(ctx, p); ok {
			stats.ContactsPushed++
		} else {
			stats.ContactsDeferred++
		}
	}
	log.Info().Int("pushed", stats.ContactsPushed).Int("deferred", stats.ContactsDeferred).Msg("contact backfill")
	return nil
}

// window returns the appointment sync range around now.
func (r *Runner) window() (time.Time, time.Time) {
	now := r.now()
	return now.AddDate(0, 0, -WindowBackDays), now.AddDate(0, 0, WindowForwardDays)
}

// pace sleeps briefly every few records to keep bulk ingestion polite.
func (r *Runner) pace(processed int) {
	if processed%upsertPauseEvery == 0 {
		r.sleep(upsertPause)
	}
}
