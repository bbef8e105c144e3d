package records

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/domain/scheduling"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

type Repository interface {
	// Upsert inserts or replaces the record of r.AppointmentID and fills
	// r.ID and the timestamps.
	Upsert(ctx context.Context, r *MedicalRecord) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error)
	// ListByPatient returns the newest records first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*MedicalRecord, error)
}

// AppointmentStore is the part of the appointment repository records need.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}
