package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestGrid_GroupsByDoctorAndDate(t *testing.T) {
	overrides := newMockOverrideRepo()
	a, b, idle := uuid.New(), uuid.New(), uuid.New()
	overrides.set(a, "2024-06-01", "09:00:00", false)
	overrides.set(a, "2024-06-01", "10:00:00", true)
	overrides.set(a, "2024-06-03", "09:00:00", false)
	overrides.set(b, "2024-06-02", "14:00:00", false)
	overrides.set(b, "2024-07-01", "14:00:00", false)

	grid, err := NewGrid(overrides).Build(context.Background(), []uuid.UUID{a, b, idle}, "2024-06-01", "2024-06-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grid[a]["2024-06-01"]) != 2 || len(grid[a]["2024-06-03"]) != 1 {
		t.Errorf("unexpected grid for a: %+v", grid[a])
	}
	if len(grid[b]) != 1 {
		t.Errorf("expected out-of-range row excluded for b, got %+v", grid[b])
	}
	if day, ok := grid[idle]; !ok || len(day) != 0 {
		t.Errorf("expected empty entry for idle doctor, got %+v", day)
	}
}

func TestGrid_Validation(t *testing.T) {
	g := NewGrid(newMockOverrideRepo())
	many := make([]uuid.UUID, maxGridDoctors+1)
	for i := range many {
		many[i] = uuid.New()
	}
	one := []uuid.UUID{uuid.New()}
	tests := []struct {
		name     string
		ids      []uuid.UUID
		from, to string
	}{
		{"no doctors", nil, "2024-06-01", "2024-06-02"},
		{"too many doctors", many, "2024-06-01", "2024-06-02"},
		{"bad date", one, "June 1", "2024-06-02"},
		{"reversed", one, "2024-06-02", "2024-06-01"},
		{"too long", one, "2024-01-01", "2024-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Build(context.Background(), tt.ids, tt.from, tt.to); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
