package alfadocs

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Patient is the upstream patient record. Field names follow the upstream
// camelCase wire format.
type Patient struct {
	ID                             int64         `json:"id"`
	FirstName                      string        `json:"firstName"`
	LastName                       string        `json:"lastName"`
	Email                          string        `json:"email"`
	EmailEnabled                   bool          `json:"emailEnabled"`
	EmailValid                     bool          `json:"emailValid"`
	PhoneNumbers                   []PhoneNumber `json:"phoneNumbers"`
	Gender                         string        `json:"gender"`
	Street                         string        `json:"street"`
	City                           string        `json:"city"`
	Postcode                       string        `json:"postcode"`
	Province                       string        `json:"province"`
	DateBirth                      string        `json:"dateBirth"`
	PlaceOfBirth                   string        `json:"placeOfBirth"`
	ItalianFiscalCode              string        `json:"italianFiscalCode"`
	Job                            string        `json:"job"`
	YearlyNumberingYear            *int          `json:"yearlyNumberingYear"`
	YearlyNumberingNumber          *int          `json:"yearlyNumberingNumber"`
	DefaultDiscount                float64       `json:"defaultDiscount"`
	SourceID                       *int64        `json:"sourceId"`
	PriceListID                    *int64        `json:"priceListId"`
	EmailReminderPossible          bool          `json:"emailReminderPossible"`
	SMSReminderPossible            bool          `json:"smsReminderPossible"`
	CreatedAt                      string        `json:"createdAt"`
	DocumentSignatureEmailPossible bool          `json:"documentSignatureEmailPossible"`
	LastModifiedAt                 string        `json:"lastModifiedAt"`
}

// PhoneNumber is an upstream phone entry; the dialable form is prefix+number.
type PhoneNumber struct {
	Prefix string `json:"prefix"`
	Number string `json:"number"`
}

func (p PhoneNumber) String() string { return p.Prefix + p.Number }

// PrimaryPhone returns the first phone number, or "".
func (p *Patient) PrimaryPhone() string {
	if len(p.PhoneNumbers) > 0 {
		return p.PhoneNumbers[0].String()
	}
	return ""
}

// SecondaryPhone returns the second phone number, or "".
func (p *Patient) SecondaryPhone() string {
	if len(p.PhoneNumbers) > 1 {
		return p.PhoneNumbers[1].String()
	}
	return ""
}

// Appointment is the upstream appointment record.
type Appointment struct {
	ID                    int64  `json:"id"`
	PatientID             *int64 `json:"patientId"`
	OperatorID            *int64 `json:"operatorId"`
	CarePlanID            *int64 `json:"carePlanId"`
	Date                  string `json:"date"`
	EmailReminder         bool   `json:"emailReminder"`
	SMSReminder           bool   `json:"smsReminder"`
	Description           string `json:"description"`
	AllDay                bool   `json:"allDay"`
	Type                  string `json:"type"`
	State                 string `json:"state"`
	Duration              *int   `json:"duration"`
	ColorID               *int64 `json:"colorId"`
	Frequency             string `json:"frequency"`
	RecurrenceCount       *int   `json:"recurrenceCount"`
	ChairID               *int64 `json:"chairId"`
	CreatedThroughBooking bool   `json:"createdThroughBooking"`
	CreatedThroughAPI     bool   `json:"createdThroughApi"`
	FirstVisit            bool   `json:"firstVisit"`
}

// ParsedDate parses the appointment timestamp (RFC 3339).
func (a *Appointment) ParsedDate() (time.Time, error) {
	return time.Parse(time.RFC3339, a.Date)
}

// CarePlan is the upstream care-plan record. Only the fields this system
// consumes are decoded.
type CarePlan struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	SchemeCodes SchemeCodes `json:"schemeCodes"`
}

// SignatureStatus is the signature state of a care plan.
type SignatureStatus struct {
	Signed   bool   `json:"signed"`
	SignedAt string `json:"signedAt"`
	Method   string `json:"method"`
}

// SchemeCode is one code entry inside schemeCodes. The upstream emits either
// a structured object or a plain string; both decode into this type.
type SchemeCode struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (c *SchemeCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Code = s
		return nil
	}
	type structured SchemeCode
	var v structured
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = SchemeCode(v)
	return nil
}

// Value returns the display code for this entry, preferring the code field
// over the name. Empty when neither is set.
func (c SchemeCode) Value() string {
	if v := strings.TrimSpace(c.Code); v != "" {
		return v
	}
	return strings.TrimSpace(c.Name)
}

// SchemeCodes is the tagged-variant schemeCodes payload: upstream sends
// either a flat list of codes or buckets of lists keyed by scheme name.
type SchemeCodes struct {
	List    []SchemeCode
	Buckets map[string][]SchemeCode
}

func (sc *SchemeCodes) UnmarshalJSON(data []byte) error {
	sc.List = nil
	sc.Buckets = nil

	var list []SchemeCode
	if err := json.Unmarshal(data, &list); err == nil {
		sc.List = list
		return nil
	}
	var buckets map[string][]SchemeCode
	if err := json.Unmarshal(data, &buckets); err == nil {
		sc.Buckets = buckets
		return nil
	}
	// Anything else (null, unexpected scalar) means no codes.
	return nil
}

// FirstCode returns the first available code. For the list form this is the
// leading element; for the bucket form the "general" bucket wins when it is
// non-empty, otherwise the lexicographically smallest bucket key is used so
// resolution is deterministic. The boolean is false when no code exists.
func (sc SchemeCodes) FirstCode() (string, bool) {
	pick := func(codes []SchemeCode) (string, bool) {
		if len(codes) == 0 {
			return "", false
		}
		v := codes[0].Value()
		return v, v != ""
	}

	if sc.List != nil {
		return pick(sc.List)
	}
	if len(sc.Buckets) == 0 {
		return "", false
	}
	if general, ok := sc.Buckets["general"]; ok && len(general) > 0 {
		return pick(general)
	}
	keys := make([]string, 0, len(sc.Buckets))
	for k := range sc.Buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return pick(sc.Buckets[keys[0]])
}
