package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicbook/clinicbook/internal/platform/db"
)

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool db.Querier }

func NewAppointmentRepoPG(pool db.Querier) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `a.appointment_id, a.patient_id, a.doctor_id, a.appointment_date::text,
	a.appointment_time::text, a.status, a.note, a.created_at,
	d.full_name, d.specialty, p.full_name`

const apptFrom = ` FROM appointments a
	LEFT JOIN doctors d ON d.doctor_id = a.doctor_id
	LEFT JOIN patients p ON p.patient_id = a.patient_id`

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time, &a.Status, &a.Note,
		&a.CreatedAt, &a.DoctorName, &a.Specialty, &a.PatientName)
	return &a, err
}

func (r *appointmentRepoPG) CountActiveAt(ctx context.Context, doctorID uuid.UUID, date, tm string) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND appointment_time = $3
			AND status = ANY($4)`,
		doctorID, date, tm, activeStatuses).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return n, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (appointment_id, patient_id, doctor_id, appointment_date,
			appointment_time, status, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Status, a.Note).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppt(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE a.appointment_id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE appointments SET status = $2 WHERE appointment_id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND a.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		where += fmt.Sprintf(` AND a.doctor_id = $%d`, idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.From != "" {
		where += fmt.Sprintf(` AND a.appointment_date >= $%d`, idx)
		args = append(args, f.From)
		idx++
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + apptCols + apptFrom + where +
		fmt.Sprintf(` ORDER BY a.appointment_date, a.appointment_time LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// =========== Override Repository ===========

type overrideRepoPG struct{ pool db.Querier }

func NewOverrideRepoPG(pool db.Querier) OverrideRepository { return &overrideRepoPG{pool: pool} }

const overrideCols = `availability_id, doctor_id, date::text, time_slot::text, is_available, reason`

func scanOverride(row pgx.Row) (*AvailabilityOverride, error) {
	var o AvailabilityOverride
	err := row.Scan(&o.ID, &o.DoctorID, &o.Date, &o.TimeSlot, &o.IsAvailable, &o.Reason)
	return &o, err
}

func (r *overrideRepoPG) Get(ctx context.Context, doctorID uuid.UUID, date, slot string) (*AvailabilityOverride, error) {
	o, err := scanOverride(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+overrideCols+` FROM doctor_availability
		WHERE doctor_id = $1 AND date = $2 AND time_slot = $3`,
		doctorID, date, slot))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get availability override: %w", err)
	}
	return o, nil
}

func (r *overrideRepoPG) Upsert(ctx context.Context, o *AvailabilityOverride) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctor_availability (availability_id, doctor_id, date, time_slot, is_available, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doctor_id, date, time_slot)
		DO UPDATE SET is_available = EXCLUDED.is_available, reason = EXCLUDED.reason
		RETURNING availability_id`,
		o.ID, o.DoctorID, o.Date, o.TimeSlot, o.IsAvailable, o.Reason).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("upsert availability override: %w", err)
	}
	return nil
}

func (r *overrideRepoPG) ListRange(ctx context.Context, doctorIDs []uuid.UUID, from, to string) ([]*AvailabilityOverride, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+overrideCols+` FROM doctor_availability
		WHERE doctor_id = ANY($1) AND date BETWEEN $2 AND $3
		ORDER BY date, time_slot`,
		doctorIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list availability overrides: %w", err)
	}
	defer rows.Close()
	var items []*AvailabilityOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability override: %w", err)
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// =========== Conflict Repository ===========

type conflictRepoPG struct{ pool db.Querier }

func NewConflictRepoPG(pool db.Querier) ConflictRepository { return &conflictRepoPG{pool: pool} }

func (r *conflictRepoPG) Create(ctx context.Context, c *AppointmentConflict) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment_conflicts (conflict_id, patient_id, requested_doctor_id,
			requested_date, requested_time, specialty, branch_id, alternative_suggested)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.PatientID, c.RequestedDoctorID, c.RequestedDate, c.RequestedTime,
		c.Specialty, c.BranchID, c.AlternativeSuggested)
	if err != nil {
		return fmt.Errorf("insert appointment conflict: %w", err)
	}
	return nil
}
