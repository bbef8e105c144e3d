package clinic

import (
	"time"

	"github.com/google/uuid"
)

// Branch maps to the branches table.
type Branch struct {
	ID        uuid.UUID `db:"branch_id" json:"branch_id"`
	Name      string    `db:"branch_name" json:"branch_name"`
	Address   *string   `db:"address" json:"address,omitempty"`
	City      string    `db:"city" json:"city"`
	District  *string   `db:"district" json:"district,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Latitude  *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64  `db:"longitude" json:"longitude,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
}

// Doctor maps to the doctors table joined with its branch. Rating,
// experience and review count are never null here: missing values read as 0.
type Doctor struct {
	ID                uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	UserID            *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	FullName          string     `db:"full_name" json:"full_name"`
	Specialty         string     `db:"specialty" json:"specialty"`
	Phone             *string    `db:"phone" json:"phone,omitempty"`
	Description       *string    `db:"description" json:"description,omitempty"`
	YearsOfExperience int        `db:"years_of_experience" json:"years_of_experience"`
	Rating            float64    `db:"rating" json:"rating"`
	TotalReviews      int        `db:"total_reviews" json:"total_reviews"`
	BranchID          *uuid.UUID `db:"branch_id" json:"branch_id,omitempty"`
	Branch            *Branch    `json:"branches,omitempty"`
}

// InBranch reports whether the doctor belongs to branch id.
func (d *Doctor) InBranch(id uuid.UUID) bool {
	return d.BranchID != nil && *d.BranchID == id
}

// City returns the city of the doctor's branch, or "" when unknown.
func (d *Doctor) City() string {
	if d.Branch == nil {
		return ""
	}
	return d.Branch.City
}

type Patient struct {
	ID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	UserID      *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	FullName    string     `db:"full_name" json:"full_name"`
	DateOfBirth *string    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      *string    `db:"gender" json:"gender,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
}

// Age returns the patient's age in whole years at now, or 0 when the birth
// date is unknown or malformed.
func (p *Patient) Age(now time.Time) int {
	if p.DateOfBirth == nil {
		return 0
	}
	dob, err := time.Parse("2006-01-02", *p.DateOfBirth)
	if err != nil {
		return 0
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

type DoctorFilter struct {
	Specialty string
	BranchID  *uuid.UUID
}

// DoctorProfileUpdate carries the fields a doctor may edit on their profile.
type DoctorProfileUpdate struct {
	Phone             *string `json:"phone"`
	Description       *string `json:"description"`
	YearsOfExperience *int    `json:"years_of_experience"`
}

// Specialties is the fixed catalogue of specialties offered by the clinic
// network. Doctor records store one of these names verbatim.
var Specialties = []string{
	"Nội khoa",
	"Ngoại khoa",
	"Nhi khoa",
	"Phụ sản",
	"Tim mạch",
	"Thần kinh",
	"Tai mũi họng",
	"Mắt",
	"Răng hàm mặt",
	"Da liễu",
	"Chấn thương chỉnh hình",
}
