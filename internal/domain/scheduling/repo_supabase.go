package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/clinicbook/clinicbook/internal/platform/supa"
)

var ascending = &postgrest.OrderOpts{Ascending: true}

// =========== Appointment Repository ===========

type appointmentRepoSupabase struct{ client supa.Client }

func NewAppointmentRepoSupabase(client supa.Client) AppointmentRepository {
	return &appointmentRepoSupabase{client: client}
}

const apptSelect = `*,doctors(full_name,specialty),patients(full_name)`

type apptRow struct {
	ID        uuid.UUID `json:"appointment_id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"appointment_date"`
	Time      string    `json:"appointment_time"`
	Status    string    `json:"status"`
	Note      *string   `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	Doctor    *struct {
		FullName  string `json:"full_name"`
		Specialty string `json:"specialty"`
	} `json:"doctors"`
	Patient *struct {
		FullName string `json:"full_name"`
	} `json:"patients"`
}

func (r apptRow) toAppointment() *Appointment {
	a := &Appointment{
		ID: r.ID, PatientID: r.PatientID, DoctorID: r.DoctorID,
		Date: r.Date, Time: r.Time, Status: r.Status, Note: r.Note, CreatedAt: r.CreatedAt,
	}
	if r.Doctor != nil {
		a.DoctorName = &r.Doctor.FullName
		a.Specialty = &r.Doctor.Specialty
	}
	if r.Patient != nil {
		a.PatientName = &r.Patient.FullName
	}
	return a
}

func (r *appointmentRepoSupabase) CountActiveAt(ctx context.Context, doctorID uuid.UUID, date, tm string) (int, error) {
	var rows []struct {
		ID uuid.UUID `json:"appointment_id"`
	}
	q := r.client.From("appointments").Select("appointment_id", "", false).
		Eq("doctor_id", doctorID.String()).
		Eq("appointment_date", date).
		Eq("appointment_time", tm).
		In("status", activeStatuses)
	if err := supa.Decode(ctx, q, &rows); err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return len(rows), nil
}

func (r *appointmentRepoSupabase) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	values := map[string]interface{}{
		"appointment_id":   a.ID,
		"patient_id":       a.PatientID,
		"doctor_id":        a.DoctorID,
		"appointment_date": a.Date,
		"appointment_time": a.Time,
		"status":           a.Status,
		"note":             a.Note,
	}
	var rows []apptRow
	if err := supa.Decode(ctx, r.client.From("appointments").Insert(values, false, "", "representation", ""), &rows); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	if len(rows) > 0 {
		a.CreatedAt = rows[0].CreatedAt
	}
	return nil
}

func (r *appointmentRepoSupabase) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row, err := supa.First[apptRow](ctx, r.client.From("appointments").Select(apptSelect, "", false).
		Eq("appointment_id", id.String()).Limit(1, ""))
	if err != nil {
		if errors.Is(err, supa.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toAppointment(), nil
}

func (r *appointmentRepoSupabase) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	var rows []apptRow
	q := r.client.From("appointments").Update(map[string]interface{}{"status": status}, "representation", "").
		Eq("appointment_id", id.String())
	if err := supa.Decode(ctx, q, &rows); err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoSupabase) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	q := r.client.From("appointments").Select(apptSelect, "exact", false)
	if f.PatientID != nil {
		q = q.Eq("patient_id", f.PatientID.String())
	}
	if f.DoctorID != nil {
		q = q.Eq("doctor_id", f.DoctorID.String())
	}
	if f.Status != "" {
		q = q.Eq("status", f.Status)
	}
	if f.From != "" {
		q = q.Gte("appointment_date", f.From)
	}
	q = q.Order("appointment_date", ascending).
		Order("appointment_time", ascending).
		Range(offset, offset+limit-1, "")

	data, count, err := supa.Execute(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	var rows []apptRow
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, 0, fmt.Errorf("decode appointments: %w", err)
		}
	}
	items := make([]*Appointment, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toAppointment())
	}
	return items, int(count), nil
}

// =========== Override Repository ===========

type overrideRepoSupabase struct{ client supa.Client }

func NewOverrideRepoSupabase(client supa.Client) OverrideRepository {
	return &overrideRepoSupabase{client: client}
}

func (r *overrideRepoSupabase) Get(ctx context.Context, doctorID uuid.UUID, date, slot string) (*AvailabilityOverride, error) {
	o, err := supa.First[*AvailabilityOverride](ctx, r.client.From("doctor_availability").Select("*", "", false).
		Eq("doctor_id", doctorID.String()).
		Eq("date", date).
		Eq("time_slot", slot).
		Limit(1, ""))
	if err != nil {
		if errors.Is(err, supa.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get availability override: %w", err)
	}
	return o, nil
}

func (r *overrideRepoSupabase) Upsert(ctx context.Context, o *AvailabilityOverride) error {
	values := map[string]interface{}{
		"doctor_id":    o.DoctorID,
		"date":         o.Date,
		"time_slot":    o.TimeSlot,
		"is_available": o.IsAvailable,
		"reason":       o.Reason,
	}
	var rows []*AvailabilityOverride
	q := r.client.From("doctor_availability").Upsert(values, "doctor_id,date,time_slot", "representation", "")
	if err := supa.Decode(ctx, q, &rows); err != nil {
		return fmt.Errorf("upsert availability override: %w", err)
	}
	if len(rows) > 0 {
		o.ID = rows[0].ID
	}
	return nil
}

func (r *overrideRepoSupabase) ListRange(ctx context.Context, doctorIDs []uuid.UUID, from, to string) ([]*AvailabilityOverride, error) {
	ids := make([]string, len(doctorIDs))
	for i, id := range doctorIDs {
		ids[i] = id.String()
	}
	var items []*AvailabilityOverride
	q := r.client.From("doctor_availability").Select("*", "", false).
		In("doctor_id", ids).
		// params are keyed by column, so both bounds go through one and=() filter
		And(fmt.Sprintf("date.gte.%s,date.lte.%s", from, to), "").
		Order("date", ascending).
		Order("time_slot", ascending)
	if err := supa.Decode(ctx, q, &items); err != nil {
		return nil, fmt.Errorf("list availability overrides (%s): %w", strings.Join(ids, ","), err)
	}
	return items, nil
}

// =========== Conflict Repository ===========

type conflictRepoSupabase struct{ client supa.Client }

func NewConflictRepoSupabase(client supa.Client) ConflictRepository {
	return &conflictRepoSupabase{client: client}
}

func (r *conflictRepoSupabase) Create(ctx context.Context, c *AppointmentConflict) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	values := map[string]interface{}{
		"conflict_id":           c.ID,
		"patient_id":            c.PatientID,
		"requested_doctor_id":   c.RequestedDoctorID,
		"requested_date":        c.RequestedDate,
		"requested_time":        c.RequestedTime,
		"specialty":             c.Specialty,
		"branch_id":             c.BranchID,
		"alternative_suggested": c.AlternativeSuggested,
	}
	_, _, err := supa.Execute(ctx, r.client.From("appointment_conflicts").Insert(values, false, "", "minimal", ""))
	if err != nil {
		return fmt.Errorf("insert appointment conflict: %w", err)
	}
	return nil
}
