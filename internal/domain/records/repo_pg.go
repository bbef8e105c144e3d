package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicbook/clinicbook/internal/platform/db"
)

type repoPG struct{ pool db.Querier }

func NewRepoPG(pool db.Querier) Repository { return &repoPG{pool: pool} }

const recordCols = `r.record_id, r.appointment_id, r.diagnosis, r.treatment, r.created_at, r.updated_at,
	a.appointment_date::text, a.appointment_time::text, a.patient_id, a.doctor_id,
	d.full_name, d.specialty`

const recordFrom = ` FROM medical_records r
	JOIN appointments a ON a.appointment_id = r.appointment_id
	LEFT JOIN doctors d ON d.doctor_id = a.doctor_id`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var r MedicalRecord
	err := row.Scan(&r.ID, &r.AppointmentID, &r.Diagnosis, &r.Treatment, &r.CreatedAt, &r.UpdatedAt,
		&r.AppointmentDate, &r.AppointmentTime, &r.PatientID, &r.DoctorID, &r.DoctorName, &r.Specialty)
	return &r, err
}

func (p *repoPG) Upsert(ctx context.Context, r *MedicalRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO medical_records (record_id, appointment_id, diagnosis, treatment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (appointment_id)
		DO UPDATE SET diagnosis = EXCLUDED.diagnosis, treatment = EXCLUDED.treatment, updated_at = NOW()
		RETURNING record_id, created_at, updated_at`,
		r.ID, r.AppointmentID, r.Diagnosis, r.Treatment).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert medical record: %w", err)
	}
	return nil
}

func (p *repoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	r, err := scanRecord(db.Conn(ctx, p.pool).QueryRow(ctx,
		`SELECT `+recordCols+recordFrom+` WHERE r.appointment_id = $1`, appointmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get medical record: %w", err)
	}
	return r, nil
}

func (p *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*MedicalRecord, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx,
		`SELECT `+recordCols+recordFrom+` WHERE a.patient_id = $1 ORDER BY r.created_at DESC LIMIT $2`,
		patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medical record: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
