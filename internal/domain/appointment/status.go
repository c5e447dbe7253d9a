package appointment

// StateCancelled is the upstream state that triggers the remote deletion
// sweep instead of a push.
const StateCancelled = "cancelled"

// StatusInvalid marks an upstream state with no CRM equivalent. Appointments
// translating to it are never pushed.
const StatusInvalid = "invalid"

// statusByState is the fixed upstream-state to CRM-status table. The empty
// state is a real upstream value meaning a regular booked appointment.
var statusByState = map[string]string{
	"waiting":   "new",
	"":          "confirmed",
	"confirmed": "confirmed",
	"cancelled": "cancelled",
	"in_care":   "confirmed",
	"done":      "showed",
	"absent":    "noshow",
}

// TranslateStatus maps an upstream appointment state to the CRM appointment
// status. Unknown states yield StatusInvalid.
func TranslateStatus(state string) string {
	if s, ok := statusByState[state]; ok {
		return s
	}
	return StatusInvalid
}
