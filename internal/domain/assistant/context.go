package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/clinicbook/clinicbook/internal/domain/clinic"
	"github.com/clinicbook/clinicbook/internal/domain/records"
	"github.com/clinicbook/clinicbook/internal/domain/scheduling"
)

const (
	historyEntries   = 5
	upcomingEntries  = 5
	upcomingLookback = 20
)

// ContextLoader builds a ChatContext for a patient from stored data.
type ContextLoader interface {
	Load(ctx context.Context, patientID uuid.UUID) (*ChatContext, error)
}

type PatientGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*clinic.Patient, error)
}

type DoctorLister interface {
	List(ctx context.Context, f clinic.DoctorFilter) ([]*clinic.Doctor, error)
}

type RecordLister interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*records.MedicalRecord, error)
}

type AppointmentLister interface {
	List(ctx context.Context, f scheduling.AppointmentFilter, limit, offset int) ([]*scheduling.Appointment, int, error)
}

// StoreLoader reads the patient profile, recent records, upcoming
// appointments and the doctor list concurrently. Only the profile is
// required; the other sections are dropped with a warning when they fail.
type StoreLoader struct {
	patients PatientGetter
	doctors  DoctorLister
	records  RecordLister
	appts    AppointmentLister
	logger   zerolog.Logger
	now      func() time.Time
}

func NewStoreLoader(patients PatientGetter, doctors DoctorLister, recs RecordLister,
	appts AppointmentLister, logger zerolog.Logger) *StoreLoader {
	return &StoreLoader{
		patients: patients, doctors: doctors, records: recs, appts: appts,
		logger: logger, now: time.Now,
	}
}

func (l *StoreLoader) Load(ctx context.Context, patientID uuid.UUID) (*ChatContext, error) {
	now := l.now()
	var (
		patient  *clinic.Patient
		doctors  []*clinic.Doctor
		history  []*records.MedicalRecord
		upcoming []*scheduling.Appointment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := l.patients.GetByID(gctx, patientID)
		if err != nil {
			return fmt.Errorf("load patient %s: %w", patientID, err)
		}
		patient = p
		return nil
	})
	g.Go(func() error {
		d, err := l.doctors.List(gctx, clinic.DoctorFilter{})
		if err != nil {
			l.logger.Warn().Err(err).Msg("assistant context: doctors unavailable")
			return nil
		}
		doctors = d
		return nil
	})
	g.Go(func() error {
		h, err := l.records.ListByPatient(gctx, patientID, historyEntries)
		if err != nil {
			l.logger.Warn().Err(err).Msg("assistant context: medical history unavailable")
			return nil
		}
		history = h
		return nil
	})
	g.Go(func() error {
		items, _, err := l.appts.List(gctx, scheduling.AppointmentFilter{
			PatientID: &patientID,
			From:      now.Format("2006-01-02"),
		}, upcomingLookback, 0)
		if err != nil {
			l.logger.Warn().Err(err).Msg("assistant context: appointments unavailable")
			return nil
		}
		upcoming = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cc := &ChatContext{UserName: patient.FullName, UserAge: patient.Age(now)}
	if patient.Gender != nil {
		cc.UserGender = *patient.Gender
	}
	for _, d := range doctors {
		info := DoctorInfo{FullName: d.FullName, Specialty: d.Specialty}
		if d.Description != nil {
			info.Description = *d.Description
		}
		cc.Doctors = append(cc.Doctors, info)
	}
	for _, r := range history {
		entry := HistoryEntry{Date: r.CreatedAt.Format("2006-01-02"), Diagnosis: r.Diagnosis, Treatment: r.Treatment}
		if r.AppointmentDate != nil {
			entry.Date = *r.AppointmentDate
		}
		cc.MedicalHistory = append(cc.MedicalHistory, entry)
	}
	for _, a := range upcoming {
		if a.Status != scheduling.StatusPending && a.Status != scheduling.StatusConfirmed {
			continue
		}
		if len(cc.UpcomingAppointments) == upcomingEntries {
			break
		}
		ua := UpcomingAppointment{Date: a.Date, Time: a.Time}
		if a.DoctorName != nil {
			ua.DoctorName = *a.DoctorName
		}
		if a.Specialty != nil {
			ua.Specialty = *a.Specialty
		}
		cc.UpcomingAppointments = append(cc.UpcomingAppointments, ua)
	}
	return cc, nil
}
