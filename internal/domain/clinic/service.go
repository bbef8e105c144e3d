package clinic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const (
	maxDescriptionLength = 2000
	maxPhoneLength       = 20
	maxYearsExperience   = 70
)

type Service struct {
	branches BranchRepository
	doctors  DoctorRepository
	patients PatientRepository
}

func NewService(branches BranchRepository, doctors DoctorRepository, patients PatientRepository) *Service {
	return &Service{branches: branches, doctors: doctors, patients: patients}
}

// -- Branch --

func (s *Service) ListBranches(ctx context.Context) ([]*Branch, error) {
	return s.branches.ListActive(ctx)
}

func (s *Service) GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	return s.branches.GetByID(ctx, id)
}

// -- Doctor --

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter) ([]*Doctor, error) {
	return s.doctors.List(ctx, f)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctorProfile(ctx context.Context, id uuid.UUID, upd DoctorProfileUpdate) (*Doctor, error) {
	if upd.Phone != nil && len(*upd.Phone) > maxPhoneLength {
		return nil, fmt.Errorf("%w: phone must be at most %d characters", ErrInvalid, maxPhoneLength)
	}
	if upd.Description != nil && len([]rune(*upd.Description)) > maxDescriptionLength {
		return nil, fmt.Errorf("%w: description must be at most %d characters", ErrInvalid, maxDescriptionLength)
	}
	if upd.YearsOfExperience != nil && (*upd.YearsOfExperience < 0 || *upd.YearsOfExperience > maxYearsExperience) {
		return nil, fmt.Errorf("%w: years_of_experience must be between 0 and %d", ErrInvalid, maxYearsExperience)
	}
	if err := s.doctors.UpdateProfile(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.doctors.GetByID(ctx, id)
}

// -- Patient --

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetPatientByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return s.patients.GetByUserID(ctx, userID)
}

// Specialties returns a copy of the specialty catalogue.
func (s *Service) Specialties() []string {
	out := make([]string, len(Specialties))
	copy(out, Specialties)
	return out
}

// IsKnownSpecialty reports whether name is in the catalogue.
func IsKnownSpecialty(name string) bool {
	for _, sp := range Specialties {
		if sp == name {
			return true
		}
	}
	return false
}
