package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinicbook/internal/platform/db"
	"github.com/clinicbook/clinicbook/internal/platform/websocket"
)

const maxNoteLength = 500

type BookingRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Note      *string   `json:"note"`
}

// BookingService creates appointments and keeps the override table in step
// with them.
type BookingService struct {
	appts     AppointmentRepository
	overrides OverrideRepository
	checker   *Checker
	tx        db.TxRunner
	events    websocket.EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewBookingService(appts AppointmentRepository, overrides OverrideRepository, checker *Checker,
	tx db.TxRunner, events websocket.EventPublisher, logger zerolog.Logger) *BookingService {
	if tx == nil {
		tx = db.NoTx{}
	}
	return &BookingService{
		appts:     appts,
		overrides: overrides,
		checker:   checker,
		tx:        tx,
		events:    events,
		logger:    logger.With().Str("component", "booking").Logger(),
		now:       time.Now,
	}
}

// Book validates the request, re-checks the slot and inserts a pending
// appointment together with a blocking override. A busy or blocked slot
// yields ErrSlotUnavailable.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrInvalid)
	}
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalid)
	}
	date, ok := NormalizeDate(req.Date)
	if !ok {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	tm, ok := NormalizeTime(req.Time)
	if !ok {
		return nil, fmt.Errorf("%w: time must be HH:MM", ErrInvalid)
	}
	if date < s.now().Format(dateLayout) {
		return nil, fmt.Errorf("%w: date is in the past", ErrInvalid)
	}
	if req.Note != nil && len([]rune(*req.Note)) > maxNoteLength {
		return nil, fmt.Errorf("%w: note must be at most %d characters", ErrInvalid, maxNoteLength)
	}

	a := &Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Time:      tm,
		Status:    StatusPending,
		Note:      req.Note,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		avail, err := s.checker.Check(ctx, req.DoctorID, date, tm)
		if err != nil {
			return err
		}
		if !avail.IsAvailable {
			return ErrSlotUnavailable
		}
		if err := s.appts.Create(ctx, a); err != nil {
			return err
		}
		reason := "booked"
		return s.overrides.Upsert(ctx, &AvailabilityOverride{
			DoctorID:    req.DoctorID,
			Date:        date,
			TimeSlot:    tm,
			IsAvailable: false,
			Reason:      &reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, websocket.EventSlotBooked, a)
	return a, nil
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appts.GetByID(ctx, id)
}

func (s *BookingService) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !IsValidStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: invalid status %q", ErrInvalid, f.Status)
	}
	return s.appts.List(ctx, f, limit, offset)
}

// UpdateStatus sets any valid status; transitions are not restricted.
// Cancelling reopens the slot.
func (s *BookingService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	if !IsValidStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrInvalid, status)
	}

	var a *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.appts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.appts.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		a.Status = status
		if status != StatusCancelled {
			return nil
		}
		reason := "cancelled"
		return s.overrides.Upsert(ctx, &AvailabilityOverride{
			DoctorID:    a.DoctorID,
			Date:        a.Date,
			TimeSlot:    a.Time,
			IsAvailable: true,
			Reason:      &reason,
		})
	})
	if err != nil {
		return nil, err
	}

	if status == StatusCancelled {
		s.publish(ctx, websocket.EventSlotReleased, a)
	} else {
		s.publish(ctx, websocket.EventStatusChanged, a)
	}
	return a, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, a *Appointment) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, websocket.Event{
		Type:          eventType,
		DoctorID:      a.DoctorID.String(),
		AppointmentID: a.ID.String(),
		Date:          a.Date,
		Time:          a.Time,
		Status:        a.Status,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish appointment event")
	}
}
