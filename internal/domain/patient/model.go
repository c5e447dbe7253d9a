package patient

import (
	"strings"
	"time"
)

// Patient maps to the patients table. The id is the upstream primary key and
// is never regenerated locally. RemoteID is the CRM contact id, owned by the
// identity resolver once set.
type Patient struct {
	ID                             int64      `db:"id"`
	FirstName                      string     `db:"first_name"`
	LastName                       string     `db:"last_name"`
	Email                          string     `db:"email"`
	EmailEnabled                   bool       `db:"email_enabled"`
	EmailValid                     bool       `db:"email_valid"`
	PrimaryPhone                   string     `db:"primary_phone"`
	SecondaryPhone                 string     `db:"secondary_phone"`
	Gender                         string     `db:"gender"`
	Street                         string     `db:"street"`
	City                           string     `db:"city"`
	Postcode                       string     `db:"postcode"`
	Province                       string     `db:"province"`
	DateBirth                      *time.Time `db:"date_birth"`
	PlaceOfBirth                   string     `db:"place_of_birth"`
	FiscalCode                     *string    `db:"fiscal_code"`
	Job                            string     `db:"job"`
	YearlyNumberingYear            *int       `db:"yearly_numbering_year"`
	YearlyNumberingNumber          *int       `db:"yearly_numbering_number"`
	DefaultDiscount                float64    `db:"default_discount"`
	SourceID                       *int64     `db:"source_id"`
	PriceListID                    *int64     `db:"price_list_id"`
	EmailReminderPossible          bool       `db:"email_reminder_possible"`
	SMSReminderPossible            bool       `db:"sms_reminder_possible"`
	DocumentSignatureEmailPossible bool       `db:"document_signature_email_possible"`
	SourceCreatedAt                *time.Time `db:"source_created_at"`
	SourceModifiedAt               *time.Time `db:"source_modified_at"`
	Fingerprint                    string     `db:"hash_value"`
	RemoteID                       *string    `db:"ghl_contact_id"`
	NeedsSync                      bool       `db:"needs_sync"`
	LastSyncedAt                   *time.Time `db:"last_synced_at"`
	UpdatedAt                      time.Time  `db:"updated_at"`
}

// AgeAt returns the patient's age in whole years at the given instant, with
// the month/day tie-break against whether the birthday has occurred yet that
// year. Nil when the birth date is unknown.
func (p *Patient) AgeAt(now time.Time) *int {
	if p.DateBirth == nil {
		return nil
	}
	bd := *p.DateBirth
	age := now.Year() - bd.Year()
	if now.Month() < bd.Month() || (now.Month() == bd.Month() && now.Day() < bd.Day()) {
		age--
	}
	return &age
}

// BirthDateString renders the birth date in the YYYY-MM-DD form the CRM
// expects, or "" when unknown.
func (p *Patient) BirthDateString() string {
	if p.DateBirth == nil {
		return ""
	}
	return p.DateBirth.Format("2006-01-02")
}

// GenderLabel renders the upstream single-letter gender as the CRM custom
// field label.
func (p *Patient) GenderLabel() string {
	if strings.EqualFold(p.Gender, "m") {
		return "Maschio"
	}
	return "Femmina"
}
