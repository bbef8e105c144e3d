package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/domain/clinic"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalid         = errors.New("invalid input")
	ErrSlotUnavailable = errors.New("slot unavailable")
)

type AppointmentRepository interface {
	// CountActiveAt counts pending or confirmed appointments for the doctor at
	// the exact date and time.
	CountActiveAt(ctx context.Context, doctorID uuid.UUID, date, tm string) (int, error)
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
}

type OverrideRepository interface {
	// Get returns nil, nil when no override exists.
	Get(ctx context.Context, doctorID uuid.UUID, date, slot string) (*AvailabilityOverride, error)
	Upsert(ctx context.Context, o *AvailabilityOverride) error
	ListRange(ctx context.Context, doctorIDs []uuid.UUID, from, to string) ([]*AvailabilityOverride, error)
}

type ConflictRepository interface {
	Create(ctx context.Context, c *AppointmentConflict) error
}

// DoctorLister is satisfied by clinic.DoctorRepository.
type DoctorLister interface {
	List(ctx context.Context, f clinic.DoctorFilter) ([]*clinic.Doctor, error)
}

// BranchGetter is satisfied by clinic.BranchRepository.
type BranchGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*clinic.Branch, error)
}
