package patient

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no patient row exists for an id.
var ErrNotFound = errors.New("patient not found")

// Repository is the persistence surface for patients.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Patient, error)
	// Upsert writes the full field set. It never touches ghl_contact_id on
	// an existing row; the remote id is owned by the identity resolver.
	Upsert(ctx context.Context, p *Patient) error
	// SetRemoteID records the CRM contact id after a confirmed successful
	// push and clears the needs_sync flag.
	SetRemoteID(ctx context.Context, id int64, remoteID string) error
	// MarkNeedsSync raises the sticky sync flag for later retry.
	MarkNeedsSync(ctx context.Context, id int64) error
	// ListWithoutRemoteID returns patients that have never been pushed to
	// the CRM, ordered by id.
	ListWithoutRemoteID(ctx context.Context) ([]*Patient, error)
}
