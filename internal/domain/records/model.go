package records

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord is the diagnosis and treatment a doctor writes for one
// appointment. The appointment fields are filled on reads only.
type MedicalRecord struct {
	ID            uuid.UUID `json:"record_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Diagnosis     string    `json:"diagnosis"`
	Treatment     string    `json:"treatment"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	AppointmentDate *string    `json:"appointment_date,omitempty"`
	AppointmentTime *string    `json:"appointment_time,omitempty"`
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	DoctorID        *uuid.UUID `json:"doctor_id,omitempty"`
	DoctorName      *string    `json:"doctor_name,omitempty"`
	Specialty       *string    `json:"specialty,omitempty"`
}

// SaveRequest is the body of a record upsert.
type SaveRequest struct {
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
}
