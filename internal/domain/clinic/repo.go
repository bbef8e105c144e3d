package clinic

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

type BranchRepository interface {
	ListActive(ctx context.Context) ([]*Branch, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Branch, error)
}

type DoctorRepository interface {
	List(ctx context.Context, f DoctorFilter) ([]*Doctor, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd DoctorProfileUpdate) error
}

type PatientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
}
