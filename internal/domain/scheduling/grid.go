package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	maxGridDoctors = 50
	maxGridDays    = 62
)

// GridDay maps a date to the override rows of that day.
type GridDay map[string][]*AvailabilityOverride

type Grid struct {
	overrides OverrideRepository
}

func NewGrid(overrides OverrideRepository) *Grid { return &Grid{overrides: overrides} }

// Build returns the override rows for doctorIDs between from and to
// inclusive, grouped by doctor and then by date. Doctors without rows are
// present with an empty day map.
func (g *Grid) Build(ctx context.Context, doctorIDs []uuid.UUID, from, to string) (map[uuid.UUID]GridDay, error) {
	if len(doctorIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one doctor id is required", ErrInvalid)
	}
	if len(doctorIDs) > maxGridDoctors {
		return nil, fmt.Errorf("%w: at most %d doctors per request", ErrInvalid, maxGridDoctors)
	}
	f, okFrom := NormalizeDate(from)
	t, okTo := NormalizeDate(to)
	if !okFrom || !okTo {
		return nil, fmt.Errorf("%w: from and to must be YYYY-MM-DD", ErrInvalid)
	}
	start, _ := time.Parse(dateLayout, f)
	end, _ := time.Parse(dateLayout, t)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: to is before from", ErrInvalid)
	}
	if end.Sub(start) > maxGridDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range is limited to %d days", ErrInvalid, maxGridDays)
	}

	rows, err := g.overrides.ListRange(ctx, doctorIDs, f, t)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]GridDay, len(doctorIDs))
	for _, id := range doctorIDs {
		out[id] = GridDay{}
	}
	for _, o := range rows {
		day, ok := out[o.DoctorID]
		if !ok {
			day = GridDay{}
			out[o.DoctorID] = day
		}
		day[o.Date] = append(day[o.Date], o)
	}
	return out, nil
}
