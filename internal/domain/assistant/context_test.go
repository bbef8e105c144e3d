package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinicbook/internal/domain/clinic"
	"github.com/clinicbook/clinicbook/internal/domain/records"
	"github.com/clinicbook/clinicbook/internal/domain/scheduling"
)

type stubPatients struct {
	p   *clinic.Patient
	err error
}

func (s stubPatients) GetByID(context.Context, uuid.UUID) (*clinic.Patient, error) { return s.p, s.err }

type stubDoctors struct {
	items []*clinic.Doctor
	err   error
}

func (s stubDoctors) List(context.Context, clinic.DoctorFilter) ([]*clinic.Doctor, error) {
	return s.items, s.err
}

type stubRecords struct {
	items []*records.MedicalRecord
	err   error
	limit int
}

func (s *stubRecords) ListByPatient(_ context.Context, _ uuid.UUID, limit int) ([]*records.MedicalRecord, error) {
	s.limit = limit
	return s.items, s.err
}

type stubAppointments struct {
	items []*scheduling.Appointment
	err   error
	got   scheduling.AppointmentFilter
}

func (s *stubAppointments) List(_ context.Context, f scheduling.AppointmentFilter, _, _ int) ([]*scheduling.Appointment, int, error) {
	s.got = f
	return s.items, len(s.items), s.err
}

func strPtr(s string) *string { return &s }

func TestStoreLoader_Load(t *testing.T) {
	patientID := uuid.New()
	patient := &clinic.Patient{ID: patientID, FullName: "Le Binh", DateOfBirth: strPtr("1990-06-15"), Gender: strPtr("Nam")}
	recs := &stubRecords{items: []*records.MedicalRecord{
		{Diagnosis: "Viêm họng", Treatment: "Kháng sinh", AppointmentDate: strPtr("2024-03-01")},
		{Diagnosis: "Cảm cúm", CreatedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
	}}
	appts := &stubAppointments{items: []*scheduling.Appointment{
		{Date: "2024-05-02", Time: "09:00:00", Status: scheduling.StatusConfirmed, DoctorName: strPtr("Dr. An"), Specialty: strPtr("Tim mạch")},
		{Date: "2024-05-03", Time: "10:00:00", Status: scheduling.StatusCancelled},
	}}
	doctors := stubDoctors{items: []*clinic.Doctor{{FullName: "Dr. An", Specialty: "Tim mạch", Description: strPtr("Giỏi")}}}

	l := NewStoreLoader(stubPatients{p: patient}, doctors, recs, appts, zerolog.Nop())
	l.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	cc, err := l.Load(context.Background(), patientID)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cc.UserName != "Le Binh" || cc.UserAge != 33 || cc.UserGender != "Nam" {
		t.Errorf("unexpected profile %+v", cc)
	}
	if len(cc.Doctors) != 1 || cc.Doctors[0].Description != "Giỏi" {
		t.Errorf("unexpected doctors %+v", cc.Doctors)
	}
	if len(cc.MedicalHistory) != 2 || cc.MedicalHistory[0].Date != "2024-03-01" || cc.MedicalHistory[1].Date != "2024-01-05" {
		t.Errorf("unexpected history %+v", cc.MedicalHistory)
	}
	if recs.limit != historyEntries {
		t.Errorf("expected history limit %d, got %d", historyEntries, recs.limit)
	}
	if len(cc.UpcomingAppointments) != 1 || cc.UpcomingAppointments[0].DoctorName != "Dr. An" {
		t.Errorf("expected only active upcoming appointments, got %+v", cc.UpcomingAppointments)
	}
	if appts.got.From != "2024-05-01" || appts.got.PatientID == nil || *appts.got.PatientID != patientID {
		t.Errorf("unexpected appointment filter %+v", appts.got)
	}
}

func TestStoreLoader_OptionalSectionsDegrade(t *testing.T) {
	boom := errors.New("db down")
	l := NewStoreLoader(
		stubPatients{p: &clinic.Patient{FullName: "Chi"}},
		stubDoctors{err: boom},
		&stubRecords{err: boom},
		&stubAppointments{err: boom},
		zerolog.Nop(),
	)
	cc, err := l.Load(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cc.UserName != "Chi" || cc.Doctors != nil || cc.MedicalHistory != nil || cc.UpcomingAppointments != nil {
		t.Errorf("expected profile only, got %+v", cc)
	}
}

func TestStoreLoader_PatientRequired(t *testing.T) {
	l := NewStoreLoader(stubPatients{err: clinic.ErrNotFound}, stubDoctors{}, &stubRecords{}, &stubAppointments{}, zerolog.Nop())
	if _, err := l.Load(context.Background(), uuid.New()); !errors.Is(err, clinic.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
