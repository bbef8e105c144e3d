package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicbook/clinicbook/internal/platform/db"
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== Branch Repository ===========

type branchRepoPG struct{ pool db.Querier }

func NewBranchRepoPG(pool db.Querier) BranchRepository { return &branchRepoPG{pool: pool} }

const branchCols = `branch_id, branch_name, address, city, district, phone, latitude, longitude, is_active`

func scanBranch(row pgx.Row) (*Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.Name, &b.Address, &b.City, &b.District, &b.Phone,
		&b.Latitude, &b.Longitude, &b.IsActive)
	return &b, err
}

func (r *branchRepoPG) ListActive(ctx context.Context) ([]*Branch, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+branchCols+` FROM branches WHERE is_active ORDER BY city, branch_name`)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var items []*Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *branchRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Branch, error) {
	b, err := scanBranch(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+branchCols+` FROM branches WHERE branch_id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool db.Querier }

func NewDoctorRepoPG(pool db.Querier) DoctorRepository { return &doctorRepoPG{pool: pool} }

const doctorCols = `d.doctor_id, d.user_id, d.full_name, d.specialty, d.phone, d.description,
	COALESCE(d.years_of_experience, 0), COALESCE(d.rating, 0)::float8, COALESCE(d.total_reviews, 0), d.branch_id,
	b.branch_name, b.address, b.city, b.district, b.phone, b.latitude, b.longitude, b.is_active`

const doctorFrom = ` FROM doctors d LEFT JOIN branches b ON b.branch_id = d.branch_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var (
		branchName, city      *string
		address, district, ph *string
		lat, lng              *float64
		active                *bool
	)
	err := row.Scan(&d.ID, &d.UserID, &d.FullName, &d.Specialty, &d.Phone, &d.Description,
		&d.YearsOfExperience, &d.Rating, &d.TotalReviews, &d.BranchID,
		&branchName, &address, &city, &district, &ph, &lat, &lng, &active)
	if err != nil {
		return nil, err
	}
	if d.BranchID != nil && branchName != nil {
		d.Branch = &Branch{
			ID:        *d.BranchID,
			Name:      *branchName,
			Address:   address,
			District:  district,
			Phone:     ph,
			Latitude:  lat,
			Longitude: lng,
		}
		if city != nil {
			d.Branch.City = *city
		}
		if active != nil {
			d.Branch.IsActive = *active
		}
	}
	return &d, nil
}

func (r *doctorRepoPG) List(ctx context.Context, f DoctorFilter) ([]*Doctor, error) {
	query := `SELECT ` + doctorCols + doctorFrom + ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Specialty != "" {
		query += fmt.Sprintf(` AND d.specialty = $%d`, idx)
		args = append(args, f.Specialty)
		idx++
	}
	if f.BranchID != nil {
		query += fmt.Sprintf(` AND d.branch_id = $%d`, idx)
		args = append(args, *f.BranchID)
	}
	query += ` ORDER BY d.full_name`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+doctorFrom+` WHERE d.doctor_id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (r *doctorRepoPG) UpdateProfile(ctx context.Context, id uuid.UUID, upd DoctorProfileUpdate) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE doctors SET
			phone = COALESCE($2, phone),
			description = COALESCE($3, description),
			years_of_experience = COALESCE($4, years_of_experience)
		WHERE doctor_id = $1`,
		id, upd.Phone, upd.Description, upd.YearsOfExperience)
	if err != nil {
		return fmt.Errorf("update doctor profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool db.Querier }

func NewPatientRepoPG(pool db.Querier) PatientRepository { return &patientRepoPG{pool: pool} }

const patientCols = `patient_id, user_id, full_name, date_of_birth::text, gender, phone, address`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.DateOfBirth, &p.Gender, &p.Phone, &p.Address)
	return &p, err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE patient_id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}
