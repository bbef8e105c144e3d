package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/clinicbook/clinicbook/internal/platform/supa"
)

var ascending = &postgrest.OrderOpts{Ascending: true}

func supaNotFound(err error) error {
	if errors.Is(err, supa.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// doctorRow mirrors the PostgREST representation of a doctor with its
// embedded branch. Numeric columns may come back null.
type doctorRow struct {
	ID                uuid.UUID  `json:"doctor_id"`
	UserID            *uuid.UUID `json:"user_id"`
	FullName          string     `json:"full_name"`
	Specialty         string     `json:"specialty"`
	Phone             *string    `json:"phone"`
	Description       *string    `json:"description"`
	YearsOfExperience *int       `json:"years_of_experience"`
	Rating            *float64   `json:"rating"`
	TotalReviews      *int       `json:"total_reviews"`
	BranchID          *uuid.UUID `json:"branch_id"`
	Branch            *Branch    `json:"branches"`
}

func (r doctorRow) toDoctor() *Doctor {
	d := &Doctor{
		ID:          r.ID,
		UserID:      r.UserID,
		FullName:    r.FullName,
		Specialty:   r.Specialty,
		Phone:       r.Phone,
		Description: r.Description,
		BranchID:    r.BranchID,
		Branch:      r.Branch,
	}
	if r.YearsOfExperience != nil {
		d.YearsOfExperience = *r.YearsOfExperience
	}
	if r.Rating != nil {
		d.Rating = *r.Rating
	}
	if r.TotalReviews != nil {
		d.TotalReviews = *r.TotalReviews
	}
	return d
}

// =========== Branch Repository ===========

type branchRepoSupabase struct{ client supa.Client }

func NewBranchRepoSupabase(client supa.Client) BranchRepository {
	return &branchRepoSupabase{client: client}
}

func (r *branchRepoSupabase) ListActive(ctx context.Context) ([]*Branch, error) {
	var items []*Branch
	q := r.client.From("branches").Select("*", "", false).
		Eq("is_active", "true").
		Order("city", ascending).
		Order("branch_name", ascending)
	if err := supa.Decode(ctx, q, &items); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return items, nil
}

func (r *branchRepoSupabase) GetByID(ctx context.Context, id uuid.UUID) (*Branch, error) {
	b, err := supa.First[*Branch](ctx, r.client.From("branches").Select("*", "", false).
		Eq("branch_id", id.String()).Limit(1, ""))
	if err != nil {
		return nil, supaNotFound(err)
	}
	return b, nil
}

// =========== Doctor Repository ===========

type doctorRepoSupabase struct{ client supa.Client }

func NewDoctorRepoSupabase(client supa.Client) DoctorRepository {
	return &doctorRepoSupabase{client: client}
}

func (r *doctorRepoSupabase) List(ctx context.Context, f DoctorFilter) ([]*Doctor, error) {
	q := r.client.From("doctors").Select("*,branches(*)", "", false)
	if f.Specialty != "" {
		q = q.Eq("specialty", f.Specialty)
	}
	if f.BranchID != nil {
		q = q.Eq("branch_id", f.BranchID.String())
	}
	var rows []doctorRow
	if err := supa.Decode(ctx, q.Order("full_name", ascending), &rows); err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	items := make([]*Doctor, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDoctor())
	}
	return items, nil
}

func (r *doctorRepoSupabase) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row, err := supa.First[doctorRow](ctx, r.client.From("doctors").Select("*,branches(*)", "", false).
		Eq("doctor_id", id.String()).Limit(1, ""))
	if err != nil {
		return nil, supaNotFound(err)
	}
	return row.toDoctor(), nil
}

func (r *doctorRepoSupabase) UpdateProfile(ctx context.Context, id uuid.UUID, upd DoctorProfileUpdate) error {
	values := map[string]interface{}{}
	if upd.Phone != nil {
		values["phone"] = *upd.Phone
	}
	if upd.Description != nil {
		values["description"] = *upd.Description
	}
	if upd.YearsOfExperience != nil {
		values["years_of_experience"] = *upd.YearsOfExperience
	}
	if len(values) == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	var rows []doctorRow
	q := r.client.From("doctors").Update(values, "representation", "").Eq("doctor_id", id.String())
	if err := supa.Decode(ctx, q, &rows); err != nil {
		return fmt.Errorf("update doctor profile: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Patient Repository ===========

type patientRepoSupabase struct{ client supa.Client }

func NewPatientRepoSupabase(client supa.Client) PatientRepository {
	return &patientRepoSupabase{client: client}
}

func (r *patientRepoSupabase) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.first(ctx, "patient_id", id)
}

func (r *patientRepoSupabase) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return r.first(ctx, "user_id", userID)
}

func (r *patientRepoSupabase) first(ctx context.Context, col string, id uuid.UUID) (*Patient, error) {
	p, err := supa.First[*Patient](ctx, r.client.From("patients").Select("*", "", false).
		Eq(col, id.String()).Limit(1, ""))
	if err != nil {
		return nil, supaNotFound(err)
	}
	return p, nil
}
