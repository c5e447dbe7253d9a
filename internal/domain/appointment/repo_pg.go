package appointment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Repository backed by PostgreSQL.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn() queryable { return r.pool }

const cols = `id, patient_id, operator_id, care_plan_id, care_plan_code,
	appointment_date, duration, state, description, appointment_type,
	email_reminder, sms_reminder, all_day, color_id, frequency,
	recurrence_count, chair_id, created_through_booking, created_through_api,
	first_visit, hash_value, ghl_appointment_id, should_sync_to_ghl,
	last_synced_at, updated_at`

func scan(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.OperatorID, &a.CarePlanID, &a.CarePlanCode,
		&a.Date, &a.Duration, &a.State, &a.Description, &a.Type,
		&a.EmailReminder, &a.SMSReminder, &a.AllDay, &a.ColorID, &a.Frequency,
		&a.RecurrenceCount, &a.ChairID, &a.CreatedThroughBooking, &a.CreatedThroughAPI,
		&a.FirstVisit, &a.Fingerprint, &a.RemoteID, &a.ShouldSync,
		&a.LastSyncedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	return scan(r.conn().QueryRow(ctx, `SELECT `+cols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Upsert(ctx context.Context, a *Appointment) error {
	_, err := r.conn().Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, operator_id, care_plan_id, care_plan_code,
			appointment_date, duration, state, description, appointment_type,
			email_reminder, sms_reminder, all_day, color_id, frequency,
			recurrence_count, chair_id, created_through_booking, created_through_api,
			first_visit, hash_value, ghl_appointment_id, should_sync_to_ghl,
			last_synced_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
			$18,$19,$20,$21,$22,$23,NOW(),NOW())
		ON CONFLICT (id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			operator_id = EXCLUDED.operator_id,
			care_plan_id = EXCLUDED.care_plan_id,
			care_plan_code = COALESCE(EXCLUDED.care_plan_code, appointments.care_plan_code),
			appointment_date = EXCLUDED.appointment_date,
			duration = EXCLUDED.duration,
			state = EXCLUDED.state,
			description = EXCLUDED.description,
			appointment_type = EXCLUDED.appointment_type,
			email_reminder = EXCLUDED.email_reminder,
			sms_reminder = EXCLUDED.sms_reminder,
			all_day = EXCLUDED.all_day,
			color_id = EXCLUDED.color_id,
			frequency = EXCLUDED.frequency,
			recurrence_count = EXCLUDED.recurrence_count,
			chair_id = EXCLUDED.chair_id,
			created_through_booking = EXCLUDED.created_through_booking,
			created_through_api = EXCLUDED.created_through_api,
			first_visit = EXCLUDED.first_visit,
			hash_value = EXCLUDED.hash_value,
			should_sync_to_ghl = EXCLUDED.should_sync_to_ghl,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()`,
		a.ID, a.PatientID, a.OperatorID, a.CarePlanID, a.CarePlanCode,
		a.Date, a.Duration, a.State, a.Description, a.Type,
		a.EmailReminder, a.SMSReminder, a.AllDay, a.ColorID, a.Frequency,
		a.RecurrenceCount, a.ChairID, a.CreatedThroughBooking, a.CreatedThroughAPI,
		a.FirstVisit, a.Fingerprint, a.RemoteID, a.ShouldSync)
	return err
}

func (r *repoPG) SetRemoteID(ctx context.Context, id int64, remoteID string) error {
	_, err := r.conn().Exec(ctx,
		`UPDATE appointments SET ghl_appointment_id = $2, should_sync_to_ghl = false, last_synced_at = NOW(), updated_at = NOW() WHERE id = $1`,
		id, remoteID)
	return err
}

func (r *repoPG) ClearRemoteID(ctx context.Context, id int64) error {
	_, err := r.conn().Exec(ctx,
		`UPDATE appointments SET ghl_appointment_id = NULL, should_sync_to_ghl = false, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) MarkShouldSync(ctx context.Context, id int64) error {
	_, err := r.conn().Exec(ctx,
		`UPDATE appointments SET should_sync_to_ghl = true, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListEligibleForPush(ctx context.Context, excludeOperatorID int64) ([]*Appointment, error) {
	rows, err := r.conn().Query(ctx, `
		SELECT `+cols+` FROM appointments
		WHERE should_sync_to_ghl = true
		  AND state <> 'cancelled'
		  AND patient_id IS NOT NULL
		  AND (operator_id IS NULL OR operator_id <> $1)
		ORDER BY appointment_date`, excludeOperatorID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) ListCancelledWithRemoteID(ctx context.Context) ([]*Appointment, error) {
	rows, err := r.conn().Query(ctx, `
		SELECT `+cols+` FROM appointments
		WHERE state = 'cancelled' AND ghl_appointment_id IS NOT NULL
		ORDER BY appointment_date`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
