package appointment

import (
	"strings"
	"time"
)

// defaultDurationMinutes applies when the upstream record carries no duration.
const defaultDurationMinutes = 30

// Appointment maps to the appointments table. The id is the upstream primary
// key. CarePlanCode is resolved once from the upstream care plan and kept for
// the row's lifetime; RemoteID is the CRM event id, owned by the push pass.
type Appointment struct {
	ID                    int64      `db:"id"`
	PatientID             *int64     `db:"patient_id"`
	OperatorID            *int64     `db:"operator_id"`
	CarePlanID            *int64     `db:"care_plan_id"`
	CarePlanCode          *string    `db:"care_plan_code"`
	Date                  time.Time  `db:"appointment_date"`
	Duration              *int       `db:"duration"`
	State                 string     `db:"state"`
	Description           string     `db:"description"`
	Type                  string     `db:"appointment_type"`
	EmailReminder         bool       `db:"email_reminder"`
	SMSReminder           bool       `db:"sms_reminder"`
	AllDay                bool       `db:"all_day"`
	ColorID               *int64     `db:"color_id"`
	Frequency             string     `db:"frequency"`
	RecurrenceCount       *int       `db:"recurrence_count"`
	ChairID               *int64     `db:"chair_id"`
	CreatedThroughBooking bool       `db:"created_through_booking"`
	CreatedThroughAPI     bool       `db:"created_through_api"`
	FirstVisit            bool       `db:"first_visit"`
	Fingerprint           string     `db:"hash_value"`
	RemoteID              *string    `db:"ghl_appointment_id"`
	ShouldSync            bool       `db:"should_sync_to_ghl"`
	LastSyncedAt          *time.Time `db:"last_synced_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// EventWindow returns the UTC start and end of the CRM calendar event. The
// end is derived from the duration; records without one get the default slot.
func (a *Appointment) EventWindow() (time.Time, time.Time) {
	minutes := defaultDurationMinutes
	if a.Duration != nil && *a.Duration > 0 {
		minutes = *a.Duration
	}
	start := a.Date.UTC()
	return start, start.Add(time.Duration(minutes) * time.Minute)
}

// EventTitle renders the CRM event title from the description. Newlines are
// collapsed so the title stays single-line.
func (a *Appointment) EventTitle() string {
	t := strings.ReplaceAll(a.Description, "\r\n", "\n")
	t = strings.TrimSpace(strings.ReplaceAll(t, "\n", " | "))
	if t == "" {
		return "Appuntamento"
	}
	return t
}

// Code returns the stored care-plan code, or "" when none was resolved.
func (a *Appointment) Code() string {
	if a.CarePlanCode == nil {
		return ""
	}
	return *a.CarePlanCode
}
