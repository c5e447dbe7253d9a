// Package identity maps local patients to CRM contacts. It guarantees an
// entity is created remotely at most once: repeated runs reuse the stored
// remote id instead of creating duplicate contacts.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicsync/clinicsync/internal/domain/patient"
	"github.com/clinicsync/clinicsync/internal/platform/ghl"
)

// placeholderName fills required CRM name fields when upstream data is blank.
const placeholderName = "Non specificato"

// ContactCreator is the slice of the CRM client the resolver needs.
type ContactCreator interface {
	CreateContact(ctx context.Context, contact ghl.Contact) (string, error)
	LocationID() string
}

// Resolver resolves a patient's CRM contact id, creating the contact on
// first need.
type Resolver struct {
	patients patient.Repository
	crm      ContactCreator
	logger   zerolog.Logger
	now      func() time.Time
}

// NewResolver builds an identity resolver.
func NewResolver(patients patient.Repository, crm ContactCreator, logger zerolog.Logger) *Resolver {
	return &Resolver{
		patients: patients,
		crm:      crm,
		logger:   logger.With().Str("component", "identity").Logger(),
		now:      time.Now,
	}
}

// Resolve returns the CRM contact id for a patient. The stored remote id is
// returned without any remote call when present. Otherwise the contact is
// created from cleaned fields; a required field that was present upstream
// but fails cleaning aborts the creation, raises needs_sync and returns no
// identity. Any remote failure likewise raises needs_sync and returns no
// identity — callers skip the patient's dependent work for this run.
func (r *Resolver) Resolve(ctx context.Context, p *patient.Patient) (string, bool) {
	if p.RemoteID != nil && *p.RemoteID != "" {
		return *p.RemoteID, true
	}

	email := CleanEmail(p.Email)
	if p.Email != "" && email == "" {
		r.deferPatient(ctx, p.ID, "invalid email")
		return "", false
	}

	contact := r.buildContact(p, email)
	remoteID, err := r.crm.CreateContact(ctx, contact)
	if err != nil {
		r.logger.Error().Err(err).Int64("patient_id", p.ID).Msg("contact creation failed")
		r.deferPatient(ctx, p.ID, "remote error")
		return "", false
	}

	if err := r.patients.SetRemoteID(ctx, p.ID, remoteID); err != nil {
		r.logger.Error().Err(err).Int64("patient_id", p.ID).Msg("persist remote contact id failed")
		return "", false
	}
	p.RemoteID = &remoteID
	p.NeedsSync = false
	r.logger.Info().Int64("patient_id", p.ID).Str("contact_id", remoteID).Msg("contact created")
	return remoteID, true
}

func (r *Resolver) deferPatient(ctx context.Context, id int64, reason string) {
	if err := r.patients.MarkNeedsSync(ctx, id); err != nil {
		r.logger.Error().Err(err).Int64("patient_id", id).Msg("mark needs_sync failed")
		return
	}
	r.logger.Info().Int64("patient_id", id).Str("reason", reason).Msg("patient deferred for retry")
}

func (r *Resolver) buildContact(p *patient.Patient, email string) ghl.Contact {
	first := FormatName(p.FirstName)
	if first == "" {
		first = placeholderName
	}
	last := FormatName(p.LastName)
	if last == "" {
		last = placeholderName
	}

	contact := ghl.Contact{
		LocationID:  r.crm.LocationID(),
		FirstName:   first,
		LastName:    last,
		Email:       email,
		Phone:       CleanPhone(p.PrimaryPhone),
		DateOfBirth: p.BirthDateString(),
		Address1:    p.Street,
		City:        p.City,
		PostalCode:  p.Postcode,
		State:       p.Province,
	}

	fields := []ghl.CustomField{
		{ID: "luogo_di_nascita", Value: p.PlaceOfBirth},
		{ID: "codice_fiscale", Value: fiscal(p)},
		{ID: "genere", Value: p.GenderLabel()},
		{ID: "telefono_secondario", Value: CleanPhone(p.SecondaryPhone)},
		{ID: "et_anni", Value: ageValue(p, r.now())},
	}
	for _, f := range fields {
		if f.Value != "" {
			contact.CustomFields = append(contact.CustomFields, f)
		}
	}
	return contact
}

func fiscal(p *patient.Patient) string {
	if p.FiscalCode == nil {
		return ""
	}
	return *p.FiscalCode
}

func ageValue(p *patient.Patient, now time.Time) string {
	age := p.AgeAt(now)
	if age == nil {
		return ""
	}
	return fmt.Sprintf("%d", *age)
}
