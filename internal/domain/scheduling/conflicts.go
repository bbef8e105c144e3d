package scheduling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicbook/clinicbook/internal/platform/telemetry"
)

// ConflictSink persists a conflict event.
type ConflictSink interface {
	Write(ctx context.Context, c *AppointmentConflict) error
}

// ConflictPublisher accepts conflict events without blocking. Emit reports
// whether the event was queued.
type ConflictPublisher interface {
	Emit(c AppointmentConflict) bool
}

// RepoSink writes conflicts to the appointment_conflicts table.
type RepoSink struct {
	repo ConflictRepository
}

func NewRepoSink(repo ConflictRepository) *RepoSink { return &RepoSink{repo: repo} }

func (s *RepoSink) Write(ctx context.Context, c *AppointmentConflict) error {
	return s.repo.Create(ctx, c)
}

// FanOutSink writes every event to all sinks. A failing sink does not stop
// the others; their errors are joined.
type FanOutSink []ConflictSink

func (f FanOutSink) Write(ctx context.Context, c *AppointmentConflict) error {
	var errs []error
	for _, s := range f {
		if err := s.Write(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const conflictWriteTimeout = 5 * time.Second

// ConflictEmitter queues conflict events in a bounded buffer drained by one
// background worker. Events may be lost: a full buffer drops the event and a
// sink failure is logged, never returned to the caller.
type ConflictEmitter struct {
	sink    ConflictSink
	events  chan AppointmentConflict
	logger  zerolog.Logger
	metrics *telemetry.Metrics

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewConflictEmitter(sink ConflictSink, buffer int, logger zerolog.Logger, metrics *telemetry.Metrics) *ConflictEmitter {
	if buffer <= 0 {
		buffer = 256
	}
	e := &ConflictEmitter{
		sink:    sink,
		events:  make(chan AppointmentConflict, buffer),
		logger:  logger.With().Str("component", "conflict_emitter").Logger(),
		metrics: metrics,
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *ConflictEmitter) Emit(c AppointmentConflict) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(c, "emitter closed")
		return false
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	select {
	case e.events <- c:
		e.metrics.ObserveConflict("queued")
		return true
	default:
		e.drop(c, "buffer full")
		return false
	}
}

func (e *ConflictEmitter) drop(c AppointmentConflict, reason string) {
	e.metrics.ObserveConflict("dropped")
	e.logger.Warn().
		Str("reason", reason).
		Str("doctor_id", c.RequestedDoctorID.String()).
		Str("date", c.RequestedDate).
		Str("time", c.RequestedTime).
		Msg("conflict event dropped")
}

func (e *ConflictEmitter) run() {
	defer close(e.done)
	for c := range e.events {
		c := c
		ctx, cancel := context.WithTimeout(context.Background(), conflictWriteTimeout)
		err := e.sink.Write(ctx, &c)
		cancel()
		if err != nil {
			e.metrics.ObserveConflict("failed")
			e.logger.Warn().Err(err).
				Str("doctor_id", c.RequestedDoctorID.String()).
				Msg("conflict event not written")
			continue
		}
		e.metrics.ObserveConflict("written")
	}
}

// Close stops accepting events and waits for the buffer to drain or ctx to
// end, whichever comes first.
func (e *ConflictEmitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
