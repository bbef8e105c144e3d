package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

var validAppointmentStatuses = map[string]bool{
	StatusPending: true, StatusConfirmed: true,
	StatusCancelled: true, StatusCompleted: true,
}

// activeStatuses are the statuses that occupy a doctor's slot.
var activeStatuses = []string{StatusPending, StatusConfirmed}

func IsValidStatus(s string) bool { return validAppointmentStatuses[s] }

// Appointment maps to the appointments table. Date is YYYY-MM-DD and Time is
// HH:MM:SS. The doctor and patient name fields are filled by list queries.
type Appointment struct {
	ID          uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date        string    `db:"appointment_date" json:"appointment_date"`
	Time        string    `db:"appointment_time" json:"appointment_time"`
	Status      string    `db:"status" json:"status"`
	Note        *string   `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	DoctorName  *string   `json:"doctor_name,omitempty"`
	Specialty   *string   `json:"specialty,omitempty"`
	PatientName *string   `json:"patient_name,omitempty"`
}

// AvailabilityOverride maps to doctor_availability: a manual open/blocked flag
// for one (doctor, date, time_slot).
type AvailabilityOverride struct {
	ID          uuid.UUID `db:"availability_id" json:"availability_id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date        string    `db:"date" json:"date"`
	TimeSlot    string    `db:"time_slot" json:"time_slot"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	Reason      *string   `db:"reason" json:"reason,omitempty"`
}

// AppointmentConflict is an append-only record of a requested slot that was
// found busy.
type AppointmentConflict struct {
	ID                   uuid.UUID  `db:"conflict_id" json:"conflict_id"`
	PatientID            *uuid.UUID `db:"patient_id" json:"patient_id"`
	RequestedDoctorID    uuid.UUID  `db:"requested_doctor_id" json:"requested_doctor_id"`
	RequestedDate        string     `db:"requested_date" json:"requested_date"`
	RequestedTime        string     `db:"requested_time" json:"requested_time"`
	Specialty            string     `db:"specialty" json:"specialty"`
	BranchID             *uuid.UUID `db:"branch_id" json:"branch_id"`
	AlternativeSuggested bool       `db:"alternative_suggested" json:"alternative_suggested"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}

type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    string
	From      string
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// NormalizeDate returns d unchanged if it is a valid YYYY-MM-DD date.
func NormalizeDate(d string) (string, bool) {
	t, err := time.Parse(dateLayout, d)
	if err != nil {
		return "", false
	}
	return t.Format(dateLayout), true
}

// NormalizeTime accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func NormalizeTime(s string) (string, bool) {
	for _, layout := range []string{timeLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(timeLayout), true
		}
	}
	return "", false
}
