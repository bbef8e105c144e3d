package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicbook/clinicbook/internal/platform/telemetry"
)

// Availability is the result of checking one doctor at one slot.
type Availability struct {
	IsBusy           bool                  `json:"is_busy"`
	IsAvailable      bool                  `json:"is_available"`
	AppointmentCount int                   `json:"appointments_count"`
	Override         *AvailabilityOverride `json:"availability_record"`
	// Degraded is set when storage could not be read. IsAvailable is then
	// false and the accompanying error explains why.
	Degraded bool `json:"degraded,omitempty"`
}

// Checker decides whether a doctor can take an appointment at a slot. A slot
// is busy when it holds a pending or confirmed appointment. An override row
// can block a free slot but never opens a busy one.
type Checker struct {
	appts     AppointmentRepository
	overrides OverrideRepository
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
}

func NewChecker(appts AppointmentRepository, overrides OverrideRepository, metrics *telemetry.Metrics) *Checker {
	return &Checker{
		appts:     appts,
		overrides: overrides,
		metrics:   metrics,
		tracer:    telemetry.Tracer("scheduling"),
	}
}

// Check never writes. Malformed date or time input matches nothing and
// reports the slot open without touching storage.
func (c *Checker) Check(ctx context.Context, doctorID uuid.UUID, date, tm string) (Availability, error) {
	ctx, span := c.tracer.Start(ctx, "availability.check")
	defer span.End()
	span.SetAttributes(attribute.String("doctor_id", doctorID.String()))

	d, okDate := NormalizeDate(date)
	t, okTime := NormalizeTime(tm)
	if !okDate || !okTime {
		c.metrics.ObserveAvailability("malformed")
		return Availability{IsAvailable: true}, nil
	}

	degraded := Availability{Degraded: true}

	count, err := c.appts.CountActiveAt(ctx, doctorID, d, t)
	if err != nil {
		span.RecordError(err)
		c.metrics.ObserveAvailability("error")
		return degraded, fmt.Errorf("check appointments for %s: %w", doctorID, err)
	}

	override, err := c.overrides.Get(ctx, doctorID, d, t)
	if err != nil {
		span.RecordError(err)
		c.metrics.ObserveAvailability("error")
		return degraded, fmt.Errorf("check override for %s: %w", doctorID, err)
	}

	res := Availability{
		IsBusy:           count > 0,
		AppointmentCount: count,
		Override:         override,
	}
	res.IsAvailable = !res.IsBusy && (override == nil || override.IsAvailable)

	switch {
	case res.IsBusy:
		c.metrics.ObserveAvailability("busy")
	case !res.IsAvailable:
		c.metrics.ObserveAvailability("blocked")
	default:
		c.metrics.ObserveAvailability("available")
	}
	return res, nil
}
