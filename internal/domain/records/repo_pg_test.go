package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinicbook/internal/domain/scheduling"
	"github.com/clinicbook/clinicbook/internal/platform/db"
)

var recordColumns = []string{"record_id", "appointment_id", "diagnosis", "treatment", "created_at", "updated_at",
	"appointment_date", "appointment_time", "patient_id", "doctor_id", "full_name", "specialty"}

func TestRepoPG_GetByAppointmentNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`FROM medical_records r`).WithArgs(id).WillReturnError(pgx.ErrNoRows)

	if _, err := NewRepoPG(mock).GetByAppointment(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepoPG_ListByPatient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	patient, doctor := uuid.New(), uuid.New()
	date, tm, name, specialty := "2024-06-01", "09:00:00", "Dr. An", "Tim mạch"
	now := time.Now()
	rows := pgxmock.NewRows(recordColumns).
		AddRow(uuid.New(), uuid.New(), "Cảm cúm", "Nghỉ ngơi", now, now, &date, &tm, &patient, &doctor, &name, &specialty)
	mock.ExpectQuery(`WHERE a.patient_id = \$1 ORDER BY r.created_at DESC LIMIT \$2`).
		WithArgs(patient, 10).
		WillReturnRows(rows)

	items, err := NewRepoPG(mock).ListByPatient(context.Background(), patient, 10)
	if err != nil {
		t.Fatalf("ListByPatient() error: %v", err)
	}
	if len(items) != 1 || *items[0].DoctorName != "Dr. An" || *items[0].AppointmentDate != date {
		t.Fatalf("unexpected records %+v", items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestServicePG_SaveRunsInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	apptID, patient, doctor := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM appointments a`).WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id", "patient_id", "doctor_id", "appointment_date",
			"appointment_time", "status", "note", "created_at", "doctor_name", "specialty", "patient_name"}).
			AddRow(apptID, patient, doctor, "2024-06-01", "09:00:00", scheduling.StatusConfirmed, nil, now, nil, nil, nil))
	mock.ExpectQuery(`INSERT INTO medical_records`).
		WithArgs(pgxmock.AnyArg(), apptID, "Cảm cúm", "Nghỉ ngơi").
		WillReturnRows(pgxmock.NewRows([]string{"record_id", "created_at", "updated_at"}).AddRow(uuid.New(), now, now))
	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs(apptID, scheduling.StatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	svc := NewService(NewRepoPG(mock), scheduling.NewAppointmentRepoPG(mock), db.NewTxRunner(mock), nil, zerolog.Nop())
	rec, err := svc.SaveForAppointment(context.Background(), apptID, SaveRequest{Diagnosis: "Cảm cúm", Treatment: "Nghỉ ngơi"})
	if err != nil {
		t.Fatalf("SaveForAppointment() error: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("expected record id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
