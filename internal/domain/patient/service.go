// Package patient reconciles upstream patient records into the local store
// and tracks which of them still need a CRM push.
package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicsync/clinicsync/internal/domain/syncstate"
	"github.com/clinicsync/clinicsync/internal/platform/alfadocs"
	"github.com/clinicsync/clinicsync/internal/platform/fingerprint"
)

// Upstream is the slice of the clinical-records API the reconciler needs.
type Upstream interface {
	GetPatient(ctx context.Context, id int64) (*alfadocs.Patient, error)
}

// Outcome classifies what an upsert did.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

// Service is the patient reconciler.
type Service struct {
	repo     Repository
	upstream Upstream
	logger   zerolog.Logger
}

// NewService builds a patient reconciler.
func NewService(repo Repository, upstream Upstream, logger zerolog.Logger) *Service {
	return &Service{repo: repo, upstream: upstream, logger: logger.With().Str("component", "patient").Logger()}
}

// Upsert reconciles one upstream patient record. When the fingerprint of the
// sanitized payload matches the stored one, nothing is written and no flag
// changes. Otherwise the full field set is written, any existing remote id
// is preserved, and needs_sync is raised: patients are pushed on any change
// because the CRM record mirrors all displayed fields.
func (s *Service) Upsert(ctx context.Context, up *alfadocs.Patient) (Outcome, error) {
	hash, err := fingerprint.Compute(up)
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("fingerprint patient %d: %w", up.ID, err)
	}

	existing, err := s.repo.GetByID(ctx, up.ID)
	if err != nil && err != ErrNotFound {
		return OutcomeUnchanged, fmt.Errorf("load patient %d: %w", up.ID, err)
	}

	if existing != nil && existing.Fingerprint == hash {
		return OutcomeUnchanged, nil
	}

	p := fromUpstream(up, hash)
	outcome := OutcomeCreated
	if existing != nil {
		outcome = OutcomeUpdated
		p.RemoteID = existing.RemoteID
		p.NeedsSync = syncstate.Merge(existing.NeedsSync, true)
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		return OutcomeUnchanged, fmt.Errorf("upsert patient %d: %w", p.ID, err)
	}
	s.logger.Info().Int64("patient_id", p.ID).Str("hash", hash).Bool("needs_sync", p.NeedsSync).Msg("patient reconciled")
	return outcome, nil
}

// EnsureExists guarantees a patient row exists for id, fetching and
// inserting it from upstream when absent. Used by the appointment
// reconciler so no appointment row ever references a missing patient.
func (s *Service) EnsureExists(ctx context.Context, id int64) error {
	_, err := s.repo.GetByID(ctx, id)
	if err == nil {
		return nil
	}
	if err != ErrNotFound {
		return fmt.Errorf("check patient %d: %w", id, err)
	}

	up, err := s.upstream.GetPatient(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch patient %d: %w", id, err)
	}
	if _, err := s.Upsert(ctx, up); err != nil {
		return err
	}
	return nil
}

// Get loads a patient row.
func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// ListWithoutRemoteID returns patients that have never been pushed.
func (s *Service) ListWithoutRemoteID(ctx context.Context) ([]*Patient, error) {
	return s.repo.ListWithoutRemoteID(ctx)
}

// fromUpstream maps and sanitizes the upstream payload. Birth dates with a
// leading minus and placeholder fiscal codes are stored as absent.
func fromUpstream(up *alfadocs.Patient, hash string) *Patient {
	p := &Patient{
		ID:                             up.ID,
		FirstName:                      up.FirstName,
		LastName:                       up.LastName,
		Email:                          up.Email,
		EmailEnabled:                   up.EmailEnabled,
		EmailValid:                     up.EmailValid,
		PrimaryPhone:                   up.PrimaryPhone(),
		SecondaryPhone:                 up.SecondaryPhone(),
		Gender:                         up.Gender,
		Street:                         up.Street,
		City:                           up.City,
		Postcode:                       up.Postcode,
		Province:                       up.Province,
		PlaceOfBirth:                   up.PlaceOfBirth,
		Job:                            up.Job,
		YearlyNumberingYear:            up.YearlyNumberingYear,
		YearlyNumberingNumber:          up.YearlyNumberingNumber,
		DefaultDiscount:                up.DefaultDiscount,
		SourceID:                       up.SourceID,
		PriceListID:                    up.PriceListID,
		EmailReminderPossible:          up.EmailReminderPossible,
		SMSReminderPossible:            up.SMSReminderPossible,
		DocumentSignatureEmailPossible: up.DocumentSignatureEmailPossible,
		Fingerprint:                    hash,
		NeedsSync:                      true,
	}

	if up.DateBirth != "" && !strings.HasPrefix(up.DateBirth, "-") {
		if bd, err := time.Parse("2006-01-02", up.DateBirth); err == nil {
			p.DateBirth = &bd
		}
	}
	if fc := strings.TrimSpace(up.ItalianFiscalCode); fc != "" && fc != "NON DISPONIBILE" {
		p.FiscalCode = &fc
	}
	if ts, err := time.Parse(time.RFC3339, up.CreatedAt); err == nil {
		p.SourceCreatedAt = &ts
	}
	if ts, err := time.Parse(time.RFC3339, up.LastModifiedAt); err == nil {
		p.SourceModifiedAt = &ts
	}
	return p
}
