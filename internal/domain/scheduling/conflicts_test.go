package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type blockingSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	written int
}

func newBlockingSink() *blockingSink {
	return &blockingSink{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSink) Write(ctx context.Context, _ *AppointmentConflict) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	s.mu.Lock()
	s.written++
	s.mu.Unlock()
	return nil
}

type failingSink struct{ err error }

func (s failingSink) Write(context.Context, *AppointmentConflict) error { return s.err }

func sampleConflict() AppointmentConflict {
	branch := uuid.New()
	return AppointmentConflict{
		RequestedDoctorID:    uuid.New(),
		RequestedDate:        "2024-06-01",
		RequestedTime:        "09:00",
		Specialty:            "Tim mạch",
		BranchID:             &branch,
		AlternativeSuggested: true,
	}
}

func TestConflictEmitter_WritesToRepo(t *testing.T) {
	repo := &mockConflictRepo{}
	e := NewConflictEmitter(NewRepoSink(repo), 4, zerolog.Nop(), nil)

	if !e.Emit(sampleConflict()) {
		t.Fatal("expected event to be queued")
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if repo.count() != 1 {
		t.Fatalf("expected 1 conflict row, got %d", repo.count())
	}
	if repo.items[0].ID == uuid.Nil || repo.items[0].CreatedAt.IsZero() {
		t.Errorf("expected id and timestamp to be assigned, got %+v", repo.items[0])
	}
}

func TestConflictEmitter_FullBufferDrops(t *testing.T) {
	sink := newBlockingSink()
	e := NewConflictEmitter(sink, 1, zerolog.Nop(), nil)

	if !e.Emit(sampleConflict()) {
		t.Fatal("first event should be queued")
	}
	<-sink.started

	if !e.Emit(sampleConflict()) {
		t.Fatal("second event should fill the buffer")
	}

	done := make(chan bool)
	go func() { done <- e.Emit(sampleConflict()) }()
	select {
	case queued := <-done:
		if queued {
			t.Error("third event should be dropped")
		}
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}

	close(sink.release)
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if sink.written != 2 {
		t.Errorf("expected 2 events written, got %d", sink.written)
	}
}

func TestConflictEmitter_EmitAfterClose(t *testing.T) {
	e := NewConflictEmitter(NewRepoSink(&mockConflictRepo{}), 4, zerolog.Nop(), nil)
	_ = e.Close(context.Background())
	_ = e.Close(context.Background())
	if e.Emit(sampleConflict()) {
		t.Error("expected Emit after Close to drop")
	}
}

func TestConflictEmitter_SinkFailureSwallowed(t *testing.T) {
	e := NewConflictEmitter(failingSink{err: errors.New("insert failed")}, 4, zerolog.Nop(), nil)
	if !e.Emit(sampleConflict()) {
		t.Fatal("expected event to be queued")
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func TestConflictEmitter_CloseHonoursContext(t *testing.T) {
	sink := newBlockingSink()
	e := NewConflictEmitter(sink, 2, zerolog.Nop(), nil)
	e.Emit(sampleConflict())
	<-sink.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(sink.release)
}

func TestFanOutSink_ContinuesPastFailure(t *testing.T) {
	repo := &mockConflictRepo{}
	sink := FanOutSink{failingSink{err: errors.New("redis down")}, NewRepoSink(repo)}

	c := sampleConflict()
	err := sink.Write(context.Background(), &c)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if repo.count() != 1 {
		t.Error("expected repo sink to be written despite earlier failure")
	}
}

func TestRedisStreamSink_XAdd(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewRedisStreamSink(client, "")
	c := sampleConflict()
	c.ID = uuid.New()
	c.CreatedAt = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	if err := sink.Write(context.Background(), &c); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	msgs, err := client.XRange(context.Background(), DefaultConflictStream, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange() error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(msgs))
	}
	v := msgs[0].Values
	if v["requested_doctor_id"] != c.RequestedDoctorID.String() {
		t.Errorf("unexpected doctor id %v", v["requested_doctor_id"])
	}
	if v["branch_id"] != c.BranchID.String() {
		t.Errorf("unexpected branch id %v", v["branch_id"])
	}
	if v["alternative_suggested"] != "1" {
		t.Errorf("expected alternative_suggested=1, got %v", v["alternative_suggested"])
	}
	if _, ok := v["patient_id"]; ok {
		t.Error("patient_id should be omitted when unknown")
	}
}

func TestRedisStreamSink_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	c := sampleConflict()
	if err := NewRedisStreamSink(client, "test:conflicts").Write(context.Background(), &c); err == nil {
		t.Fatal("expected error from closed redis")
	}
}
