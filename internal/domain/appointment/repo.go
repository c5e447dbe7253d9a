package appointment

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no appointment row matches.
var ErrNotFound = errors.New("appointment not found")

// Repository is the appointment store contract.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	// Upsert writes the full row. The remote event id is never touched and
	// an already resolved care-plan code is never overwritten with absence.
	Upsert(ctx context.Context, a *Appointment) error
	// SetRemoteID stores the CRM event id and clears should_sync_to_ghl.
	SetRemoteID(ctx context.Context, id int64, remoteID string) error
	// ClearRemoteID nulls the CRM event id after a confirmed remote delete.
	ClearRemoteID(ctx context.Context, id int64) error
	MarkShouldSync(ctx context.Context, id int64) error
	// ListEligibleForPush returns flagged, non-cancelled appointments with a
	// patient, excluding the given operator, ordered by appointment date.
	ListEligibleForPush(ctx context.Context, excludeOperatorID int64) ([]*Appointment, error)
	// ListCancelledWithRemoteID returns cancelled appointments whose CRM
	// event still exists and must be deleted.
	ListCancelledWithRemoteID(ctx context.Context) ([]*Appointment, error)
}
