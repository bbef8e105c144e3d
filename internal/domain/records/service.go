package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinicbook/internal/domain/scheduling"
	"github.com/clinicbook/clinicbook/internal/platform/db"
	"github.com/clinicbook/clinicbook/internal/platform/websocket"
)

const (
	maxFieldLength     = 1000
	defaultHistorySize = 50
)

type Service struct {
	records Repository
	appts   AppointmentStore
	tx      db.TxRunner
	events  websocket.EventPublisher
	logger  zerolog.Logger
}

func NewService(records Repository, appts AppointmentStore, tx db.TxRunner,
	events websocket.EventPublisher, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{records: records, appts: appts, tx: tx, events: events, logger: logger}
}

// Appointment loads the appointment a record belongs to, for access checks.
func (s *Service) Appointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if errors.Is(err, scheduling.ErrNotFound) {
		return nil, ErrNotFound
	}
	return a, err
}

// SaveForAppointment writes the record and marks the appointment completed.
func (s *Service) SaveForAppointment(ctx context.Context, appointmentID uuid.UUID, req SaveRequest) (*MedicalRecord, error) {
	diagnosis := strings.TrimSpace(req.Diagnosis)
	treatment := strings.TrimSpace(req.Treatment)
	if diagnosis == "" || treatment == "" {
		return nil, fmt.Errorf("%w: diagnosis and treatment are required", ErrInvalid)
	}
	if len([]rune(diagnosis)) > maxFieldLength || len([]rune(treatment)) > maxFieldLength {
		return nil, fmt.Errorf("%w: diagnosis and treatment must be at most %d characters", ErrInvalid, maxFieldLength)
	}

	rec := &MedicalRecord{AppointmentID: appointmentID, Diagnosis: diagnosis, Treatment: treatment}
	var appt *scheduling.Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.Appointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status == scheduling.StatusCancelled {
			return fmt.Errorf("%w: appointment is cancelled", ErrInvalid)
		}
		if err := s.records.Upsert(ctx, rec); err != nil {
			return err
		}
		if appt.Status == scheduling.StatusCompleted {
			return nil
		}
		return s.appts.UpdateStatus(ctx, appointmentID, scheduling.StatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	date, tm := appt.Date, appt.Time
	rec.AppointmentDate, rec.AppointmentTime = &date, &tm
	rec.PatientID, rec.DoctorID = &appt.PatientID, &appt.DoctorID
	rec.DoctorName, rec.Specialty = appt.DoctorName, appt.Specialty

	if s.events != nil && appt.Status != scheduling.StatusCompleted {
		err := s.events.Publish(ctx, websocket.Event{
			Type:          websocket.EventStatusChanged,
			DoctorID:      appt.DoctorID.String(),
			AppointmentID: appt.ID.String(),
			Date:          appt.Date,
			Time:          appt.Time,
			Status:        scheduling.StatusCompleted,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("publish completion event")
		}
	}
	return rec, nil
}

func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	return s.records.GetByAppointment(ctx, appointmentID)
}

// ListByPatient returns up to limit records, newest first. A non-positive
// limit uses the default history size.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*MedicalRecord, error) {
	if limit <= 0 {
		limit = defaultHistorySize
	}
	return s.records.ListByPatient(ctx, patientID, limit)
}
