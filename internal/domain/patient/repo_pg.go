package patient

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

const cols = `id, first_name, last_name, email, email_enabled, email_valid,
	primary_phone, secondary_phone, gender, street, city, postcode, province,
	date_birth, place_of_birth, fiscal_code, job,
	yearly_numbering_year, yearly_numbering_number, default_discount,
	source_id, price_list_id, email_reminder_possible, sms_reminder_possible,
	document_signature_email_possible, source_created_at, source_modified_at,
	hash_value, ghl_contact_id, needs_sync, last_synced_at, updated_at`

func scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.EmailEnabled, &p.EmailValid,
		&p.PrimaryPhone, &p.SecondaryPhone, &p.Gender, &p.Street, &p.City, &p.Postcode, &p.Province,
		&p.DateBirth, &p.PlaceOfBirth, &p.FiscalCode, &p.Job,
		&p.YearlyNumberingYear, &p.YearlyNumberingNumber, &p.DefaultDiscount,
		&p.SourceID, &p.PriceListID, &p.EmailReminderPossible, &p.SMSReminderPossible,
		&p.DocumentSignatureEmailPossible, &p.SourceCreatedAt, &p.SourceModifiedAt,
		&p.Fingerprint, &p.RemoteID, &p.NeedsSync, &p.LastSyncedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	return scan(r.conn().QueryRow(ctx, `SELECT `+cols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Upsert(ctx context.Context, p *Patient) error {
	_, err := r.conn().Exec(ctx, `
		INSERT INTO patients (
			id, first_name, last_name, email, email_enabled, email_valid,
			primary_phone, secondary_phone, gender, street, city, postcode, province,
			date_birth, place_of_birth, fiscal_code, job,
			yearly_numbering_year, yearly_numbering_number, default_discount,
			source_id, price_list_id, email_reminder_possible, sms_reminder_possible,
			document_signature_email_possible, source_created_at, source_modified_at,
			hash_value, ghl_contact_id, needs_sync, last_synced_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
			$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,NOW(),NOW())
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			email_enabled = EXCLUDED.email_enabled,
			email_valid = EXCLUDED.email_valid,
			primary_phone = EXCLUDED.primary_phone,
			secondary_phone = EXCLUDED.secondary_phone,
			gender = EXCLUDED.gender,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			postcode = EXCLUDED.postcode,
			province = EXCLUDED.province,
			date_birth = EXCLUDED.date_birth,
			place_of_birth = EXCLUDED.place_of_birth,
			fiscal_code = EXCLUDED.fiscal_code,
			job = EXCLUDED.job,
			yearly_numbering_year = EXCLUDED.yearly_numbering_year,
			yearly_numbering_number = EXCLUDED.yearly_numbering_number,
			default_discount = EXCLUDED.default_discount,
			source_id = EXCLUDED.source_id,
			price_list_id = EXCLUDED.price_list_id,
			email_reminder_possible = EXCLUDED.email_reminder_possible,
			sms_reminder_possible = EXCLUDED.sms_reminder_possible,
			document_signature_email_possible = EXCLUDED.document_signature_email_possible,
			source_created_at = EXCLUDED.source_created_at,
			source_modified_at = EXCLUDED.source_modified_at,
			hash_value = EXCLUDED.hash_value,
			needs_sync = EXCLUDED.needs_sync,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()`,
		p.ID, p.FirstName, p.LastName, p.Email, p.EmailEnabled, p.EmailValid,
		p.PrimaryPhone, p.SecondaryPhone, p.Gender, p.Street, p.City, p.Postcode, p.Province,
		p.DateBirth, p.PlaceOfBirth, p.FiscalCode, p.Job,
		p.YearlyNumberingYear, p.YearlyNumberingNumber, p.DefaultDiscount,
		p.SourceID, p.PriceListID, p.EmailReminderPossible, p.SMSReminderPossible,
		p.DocumentSignatureEmailPossible, p.SourceCreatedAt, p.SourceModifiedAt,
		p.Fingerprint, p.RemoteID, p.NeedsSync)
	return err
}

func (r *repoPG) SetRemoteID(ctx context.Context, id int64, remoteID string) error {
	_, err := r.conn().Exec(ctx,
		`UPDATE patients SET ghl_contact_id = $2, needs_sync = false, last_synced_at = NOW(), updated_at = NOW() WHERE id = $1`,
		id, remoteID)
	return err
}

func (r *repoPG) MarkNeedsSync(ctx context.Context, id int64) error {
	_, err := r.conn().Exec(ctx,
		`UPDATE patients SET needs_sync = true, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListWithoutRemoteID(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn().Query(ctx, `SELECT `+cols+` FROM patients WHERE ghl_contact_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
