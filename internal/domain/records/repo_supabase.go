package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/clinicbook/clinicbook/internal/platform/supa"
)

type repoSupabase struct{ client supa.Client }

func NewRepoSupabase(client supa.Client) Repository { return &repoSupabase{client: client} }

// appointments!inner lets the patient filter apply to the embedded table.
const recordSelect = `*,appointments!inner(appointment_date,appointment_time,patient_id,doctor_id,doctors(full_name,specialty))`

type recordRow struct {
	ID            uuid.UUID `json:"record_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Diagnosis     string    `json:"diagnosis"`
	Treatment     string    `json:"treatment"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Appointment   *struct {
		Date      string    `json:"appointment_date"`
		Time      string    `json:"appointment_time"`
		PatientID uuid.UUID `json:"patient_id"`
		DoctorID  uuid.UUID `json:"doctor_id"`
		Doctor    *struct {
			FullName  string `json:"full_name"`
			Specialty string `json:"specialty"`
		} `json:"doctors"`
	} `json:"appointments"`
}

func (row recordRow) toRecord() *MedicalRecord {
	r := &MedicalRecord{
		ID: row.ID, AppointmentID: row.AppointmentID,
		Diagnosis: row.Diagnosis, Treatment: row.Treatment,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	if a := row.Appointment; a != nil {
		r.AppointmentDate = &a.Date
		r.AppointmentTime = &a.Time
		r.PatientID = &a.PatientID
		r.DoctorID = &a.DoctorID
		if a.Doctor != nil {
			r.DoctorName = &a.Doctor.FullName
			r.Specialty = &a.Doctor.Specialty
		}
	}
	return r
}

func (p *repoSupabase) Upsert(ctx context.Context, r *MedicalRecord) error {
	values := map[string]interface{}{
		"appointment_id": r.AppointmentID,
		"diagnosis":      r.Diagnosis,
		"treatment":      r.Treatment,
		"updated_at":     time.Now().UTC(),
	}
	var rows []recordRow
	q := p.client.From("medical_records").Upsert(values, "appointment_id", "representation", "")
	if err := supa.Decode(ctx, q, &rows); err != nil {
		return fmt.Errorf("upsert medical record: %w", err)
	}
	if len(rows) > 0 {
		r.ID = rows[0].ID
		r.CreatedAt = rows[0].CreatedAt
		r.UpdatedAt = rows[0].UpdatedAt
	}
	return nil
}

func (p *repoSupabase) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	row, err := supa.First[recordRow](ctx, p.client.From("medical_records").Select(recordSelect, "", false).
		Eq("appointment_id", appointmentID.String()).Limit(1, ""))
	if err != nil {
		if errors.Is(err, supa.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get medical record: %w", err)
	}
	return row.toRecord(), nil
}

func (p *repoSupabase) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*MedicalRecord, error) {
	var rows []recordRow
	q := p.client.From("medical_records").Select(recordSelect, "", false).
		Eq("appointments.patient_id", patientID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "")
	if err := supa.Decode(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("list medical records for %s: %w", patientID, err)
	}
	items := make([]*MedicalRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toRecord())
	}
	return items, nil
}
