package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultConflictStream = "clinicbook:appointment_conflicts"
	conflictStreamMaxLen  = 10000
)

// RedisStreamSink mirrors conflict events onto a capped Redis stream so
// other services can consume them.
type RedisStreamSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisStreamSink(client redis.Cmdable, stream string) *RedisStreamSink {
	if stream == "" {
		stream = DefaultConflictStream
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: conflictStreamMaxLen}
}

func (s *RedisStreamSink) Write(ctx context.Context, c *AppointmentConflict) error {
	values := map[string]interface{}{
		"conflict_id":           c.ID.String(),
		"requested_doctor_id":   c.RequestedDoctorID.String(),
		"requested_date":        c.RequestedDate,
		"requested_time":        c.RequestedTime,
		"specialty":             c.Specialty,
		"alternative_suggested": c.AlternativeSuggested,
		"created_at":            c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.BranchID != nil {
		values["branch_id"] = c.BranchID.String()
	}
	if c.PatientID != nil {
		values["patient_id"] = c.PatientID.String()
	}
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
