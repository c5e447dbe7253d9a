// Package appointment reconciles upstream appointments into the local store,
// mirrors flagged ones to the CRM calendar and deletes cancelled events.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicsync/clinicsync/internal/domain/patient"
	"github.com/clinicsync/clinicsync/internal/domain/syncstate"
	"github.com/clinicsync/clinicsync/internal/platform/alfadocs"
	"github.com/clinicsync/clinicsync/internal/platform/fingerprint"
	"github.com/clinicsync/clinicsync/internal/platform/ghl"
	"github.com/clinicsync/clinicsync/internal/platform/routing"
)

// clinicTimezone is the wall-clock zone of upstream timestamps that carry no
// offset. Event times are converted to UTC before they reach the CRM.
const clinicTimezone = "Europe/Amsterdam"

// Upstream is the slice of the clinical-records API the reconciler needs.
type Upstream interface {
	GetCarePlan(ctx context.Context, id int64) (*alfadocs.CarePlan, error)
}

// PatientDirectory guarantees and serves patient rows.
type PatientDirectory interface {
	EnsureExists(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*patient.Patient, error)
}

// IdentityResolver yields the CRM contact id for a patient.
type IdentityResolver interface {
	Resolve(ctx context.Context, p *patient.Patient) (string, bool)
}

// EventWriter is the slice of the CRM client the push and sweep passes need.
type EventWriter interface {
	CreateEvent(ctx context.Context, event ghl.Event) (string, error)
	UpdateEvent(ctx context.Context, remoteID string, event ghl.Event) (string, error)
	DeleteEvent(ctx context.Context, remoteID string) error
	LocationID() string
}

// Outcome classifies what an upsert did.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

// Params collects the service dependencies.
type Params struct {
	Repo              Repository
	Patients          PatientDirectory
	Upstream          Upstream
	Identities        IdentityResolver
	CRM               EventWriter
	Calendars         *routing.Ruleset
	Operators         routing.Operators
	BlockedOperatorID int64
	StaleFlagAge      time.Duration
	Logger            zerolog.Logger
}

// Service is the appointment reconciler.
type Service struct {
	repo              Repository
	patients          PatientDirectory
	upstream          Upstream
	identities        IdentityResolver
	crm               EventWriter
	calendars         *routing.Ruleset
	operators         routing.Operators
	blockedOperatorID int64
	staleFlagAge      time.Duration
	logger            zerolog.Logger
	loc               *time.Location
	now               func() time.Time
}

// NewService builds an appointment reconciler.
func NewService(p Params) *Service {
	loc, err := time.LoadLocation(clinicTimezone)
	if err != nil {
		loc = time.UTC
	}
	return &Service{
		repo:              p.Repo,
		patients:          p.Patients,
		upstream:          p.Upstream,
		identities:        p.Identities,
		crm:               p.CRM,
		calendars:         p.Calendars,
		operators:         p.Operators,
		blockedOperatorID: p.BlockedOperatorID,
		staleFlagAge:      p.StaleFlagAge,
		logger:            p.Logger.With().Str("component", "appointment").Logger(),
		loc:               loc,
		now:               time.Now,
	}
}

// Upsert reconciles one upstream appointment record. The referenced patient
// is guaranteed to exist first; when that fails the appointment is not
// written, so no row ever references a missing patient. An unchanged
// fingerprint writes nothing. should_sync_to_ghl is raised only when the
// date, operator or state changed, or the row is new, and once raised it
// survives every later upsert until a push succeeds.
func (s *Service) Upsert(ctx context.Context, up *alfadocs.Appointment) (Outcome, error) {
	hash, err := fingerprint.Compute(up)
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("fingerprint appointment %d: %w", up.ID, err)
	}

	if up.PatientID != nil {
		if err := s.patients.EnsureExists(ctx, *up.PatientID); err != nil {
			return OutcomeUnchanged, fmt.Errorf("appointment %d: %w", up.ID, err)
		}
	}

	existing, err := s.repo.GetByID(ctx, up.ID)
	if err != nil && err != ErrNotFound {
		return OutcomeUnchanged, fmt.Errorf("load appointment %d: %w", up.ID, err)
	}

	if existing != nil && existing.Fingerprint == hash {
		return OutcomeUnchanged, nil
	}

	a, err := s.fromUpstream(up, hash)
	if err != nil {
		return OutcomeUnchanged, err
	}

	outcome := OutcomeCreated
	if existing != nil {
		outcome = OutcomeUpdated
		a.RemoteID = existing.RemoteID
		a.CarePlanCode = existing.CarePlanCode
		changed := !existing.Date.Equal(a.Date) ||
			!equalID(existing.OperatorID, a.OperatorID) ||
			existing.State != a.State
		a.ShouldSync = syncstate.Merge(existing.ShouldSync, changed)
	}
	if a.CarePlanCode == nil && a.CarePlanID != nil {
		a.CarePlanCode = s.resolveCarePlanCode(ctx, up.ID, *a.CarePlanID)
	}

	if err := s.repo.Upsert(ctx, a); err != nil {
		return OutcomeUnchanged, fmt.Errorf("upsert appointment %d: %w", a.ID, err)
	}
	s.logger.Info().Int64("appointment_id", a.ID).Str("hash", hash).
		Bool("should_sync", a.ShouldSync).Msg("appointment reconciled")
	return outcome, nil
}

// SweepCancellations deletes the CRM events of cancelled appointments. The
// remote id is nulled only after the remote delete succeeded, so a failed
// delete is retried on the next run and never deleted twice after success.
func (s *Service) SweepCancellations(ctx context.Context) (int, error) {
	cancelled, err := s.repo.ListCancelledWithRemoteID(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cancelled appointments: %w", err)
	}

	deleted := 0
	for _, a := range cancelled {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := s.crm.DeleteEvent(ctx, *a.RemoteID); err != nil {
			s.logger.Error().Err(err).Int64("appointment_id", a.ID).
				Str("event_id", *a.RemoteID).Msg("remote event delete failed")
			continue
		}
		if err := s.repo.ClearRemoteID(ctx, a.ID); err != nil {
			s.logger.Error().Err(err).Int64("appointment_id", a.ID).Msg("clear remote event id failed")
			continue
		}
		deleted++
		s.logger.Info().Int64("appointment_id", a.ID).Msg("cancelled event removed from calendar")
	}
	return deleted, nil
}

// PushStats summarizes one push pass.
type PushStats struct {
	Pushed  int
	Skipped int
	Failed  int
}

// Push mirrors every flagged appointment to the CRM calendar. Appointments
// the routing or identity layers cannot place are skipped with the flag left
// raised so a later run retries them; a remote failure likewise re-raises the
// flag and the pass continues with the next record.
func (s *Service) Push(ctx context.Context) (PushStats, error) {
	var stats PushStats

	eligible, err := s.repo.ListEligibleForPush(ctx, s.blockedOperatorID)
	if err != nil {
		return stats, fmt.Errorf("list appointments for push: %w", err)
	}

	for _, a := range eligible {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		switch s.pushOne(ctx, a) {
		case pushDone:
			stats.Pushed++
		case pushSkipped:
			stats.Skipped++
		case pushFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

type pushResult int

const (
	pushDone pushResult = iota
	pushSkipped
	pushFailed
)

func (s *Service) pushOne(ctx context.Context, a *Appointment) pushResult {
	log := s.logger.With().Int64("appointment_id", a.ID).Logger()

	if s.staleFlagAge > 0 && syncstate.Stale(a.UpdatedAt, s.now(), s.staleFlagAge) {
		log.Warn().Time("flagged_since", a.UpdatedAt).Msg("sync flag stale, push keeps failing or skipping")
	}

	status := TranslateStatus(a.State)
	if status == StatusInvalid {
		log.Warn().Str("state", a.State).Msg("unmapped appointment state, skipping")
		return pushSkipped
	}

	if a.OperatorID == nil {
		log.Warn().Msg("appointment has no operator, skipping")
		return pushSkipped
	}
	assignee, ok := s.operators.Assignee(*a.OperatorID)
	if !ok {
		log.Warn().Int64("operator_id", *a.OperatorID).Msg("operator not mapped to a CRM user, skipping")
		return pushSkipped
	}

	p, err := s.patients.Get(ctx, *a.PatientID)
	if err != nil {
		log.Error().Err(err).Int64("patient_id", *a.PatientID).Msg("load patient failed, skipping")
		return pushSkipped
	}

	contactID, ok := s.identities.Resolve(ctx, p)
	if !ok {
		log.Info().Int64("patient_id", p.ID).Msg("no CRM identity for patient yet, skipping")
		return pushSkipped
	}

	calendarID := s.calendars.Resolve(a.Code(), p.AgeAt(s.now()))
	if calendarID == "" {
		log.Warn().Str("care_plan_code", a.Code()).Msg("no destination calendar, skipping")
		return pushSkipped
	}

	start, end := a.EventWindow()
	event := ghl.Event{
		CalendarID:               calendarID,
		ContactID:                contactID,
		LocationID:               s.crm.LocationID(),
		StartTime:                start.Format(time.RFC3339),
		EndTime:                  end.Format(time.RFC3339),
		Title:                    a.EventTitle(),
		AppointmentStatus:        status,
		AssignedUserID:           assignee,
		IgnoreDateRange:          true,
		ToNotify:                 false,
		IgnoreFreeSlotValidation: true,
	}

	var remoteID string
	if a.RemoteID != nil && *a.RemoteID != "" {
		remoteID, err = s.crm.UpdateEvent(ctx, *a.RemoteID, event)
	} else {
		remoteID, err = s.crm.CreateEvent(ctx, event)
	}
	if err != nil {
		log.Error().Err(err).Msg("event push failed, flagged for retry")
		if err := s.repo.MarkShouldSync(ctx, a.ID); err != nil {
			log.Error().Err(err).Msg("re-raise sync flag failed")
		}
		return pushFailed
	}

	if err := s.repo.SetRemoteID(ctx, a.ID, remoteID); err != nil {
		log.Error().Err(err).Str("event_id", remoteID).Msg("persist remote event id failed")
		return pushFailed
	}
	log.Info().Str("event_id", remoteID).Str("calendar_id", calendarID).Msg("event pushed")
	return pushDone
}

// resolveCarePlanCode fetches the care plan and extracts its first scheme
// code. Plans that are missing or not accessible upstream are a data
// condition, not an error: the appointment keeps no code and routes to the
// default calendar.
func (s *Service) resolveCarePlanCode(ctx context.Context, appointmentID, carePlanID int64) *string {
	cp, err := s.upstream.GetCarePlan(ctx, carePlanID)
	if err != nil {
		ev := s.logger.Warn()
		if errors.Is(err, alfadocs.ErrNotFound) || errors.Is(err, alfadocs.ErrNotAccessible) {
			ev = s.logger.Debug()
		}
		ev.Err(err).Int64("appointment_id", appointmentID).
			Int64("care_plan_id", carePlanID).Msg("care plan not resolved")
		return nil
	}
	code, ok := cp.SchemeCodes.FirstCode()
	if !ok {
		return nil
	}
	return &code
}

// appointmentLayouts are the accepted upstream timestamp shapes. Offset-free
// values are wall-clock times in the clinic timezone.
var appointmentLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (s *Service) parseDate(raw string) (time.Time, error) {
	for i, layout := range appointmentLayouts {
		var t time.Time
		var err error
		if i == 0 {
			t, err = time.Parse(layout, raw)
		} else {
			t, err = time.ParseInLocation(layout, raw, s.loc)
		}
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse appointment date %q", raw)
}

func (s *Service) fromUpstream(up *alfadocs.Appointment, hash string) (*Appointment, error) {
	date, err := s.parseDate(up.Date)
	if err != nil {
		return nil, fmt.Errorf("appointment %d: %w", up.ID, err)
	}
	return &Appointment{
		ID:                    up.ID,
		PatientID:             up.PatientID,
		OperatorID:            up.OperatorID,
		CarePlanID:            up.CarePlanID,
		Date:                  date,
		Duration:              up.Duration,
		State:                 up.State,
		Description:           up.Description,
		Type:                  up.Type,
		EmailReminder:         up.EmailReminder,
		SMSReminder:           up.SMSReminder,
		AllDay:                up.AllDay,
		ColorID:               up.ColorID,
		Frequency:             up.Frequency,
		RecurrenceCount:       up.RecurrenceCount,
		ChairID:               up.ChairID,
		CreatedThroughBooking: up.CreatedThroughBooking,
		CreatedThroughAPI:     up.CreatedThroughAPI,
		FirstVisit:            up.FirstVisit,
		Fingerprint:           hash,
		ShouldSync:            true,
	}, nil
}

func equalID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
