package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/clinicbook/clinicbook/internal/domain/clinic"
	"github.com/clinicbook/clinicbook/internal/platform/telemetry"
)

// Distance priorities, lower ranks first.
const (
	PrioritySameBranch = 0
	PrioritySameCity   = 1
	PriorityOther      = 2
)

var priorityLabels = map[int]string{
	PrioritySameBranch: "Cùng chi nhánh",
	PrioritySameCity:   "Cùng thành phố",
	PriorityOther:      "Chi nhánh khác",
}

// MaxAlternatives caps the recommendations returned by one resolve.
const MaxAlternatives = 10

type ResolverConfig struct {
	MaxConcurrency   int
	CandidateTimeout time.Duration
	RequestTimeout   time.Duration
	Limit            int
}

func (c ResolverConfig) withDefaults() ResolverConfig {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 8
	}
	if c.CandidateTimeout <= 0 {
		c.CandidateTimeout = 3 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.Limit <= 0 || c.Limit > MaxAlternatives {
		c.Limit = MaxAlternatives
	}
	return c
}

type AlternativesQuery struct {
	Specialty          string
	Date               string
	Time               string
	RequestingBranchID *uuid.UUID
	ExcludeDoctorID    *uuid.UUID
}

// RankedDoctor is an available candidate with its ranking data.
type RankedDoctor struct {
	clinic.Doctor
	DistancePriority  int    `json:"distance_priority"`
	PriorityLabel     string `json:"priority_label"`
	IsAvailable       bool   `json:"is_available"`
	IsBusy            bool   `json:"is_busy"`
	AppointmentsCount int    `json:"appointments_count"`
}

// UnevaluatedDoctor is a candidate whose availability could not be read.
type UnevaluatedDoctor struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	FullName string    `json:"full_name"`
	Error    string    `json:"error"`
}

type Stats struct {
	SameBranch int `json:"same_branch"`
	SameCity   int `json:"same_city"`
	OtherCity  int `json:"other_cities"`
}

type AlternativesResult struct {
	OriginalBusy bool
	// Alternatives holds at most the configured limit; Total and Stats
	// cover every available candidate.
	Alternatives []RankedDoctor
	Total        int
	Stats        Stats
	Unevaluated  []UnevaluatedDoctor
	// Degraded is set when the original doctor could not be checked.
	Degraded bool
}

// Resolver finds available doctors of the same specialty when a requested
// slot is taken, ranked by locality, rating and experience.
type Resolver struct {
	checker  *Checker
	doctors  DoctorLister
	branches BranchGetter
	conflict ConflictPublisher
	cfg      ResolverConfig
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
}

func NewResolver(checker *Checker, doctors DoctorLister, branches BranchGetter, conflict ConflictPublisher,
	cfg ResolverConfig, logger zerolog.Logger, metrics *telemetry.Metrics) *Resolver {
	return &Resolver{
		checker:  checker,
		doctors:  doctors,
		branches: branches,
		conflict: conflict,
		cfg:      cfg.withDefaults(),
		logger:   logger.With().Str("component", "resolver").Logger(),
		metrics:  metrics,
		tracer:   telemetry.Tracer("scheduling"),
	}
}

type evaluation struct {
	doctor *clinic.Doctor
	avail  Availability
	err    error
}

func (r *Resolver) FindAlternatives(ctx context.Context, q AlternativesQuery) (res *AlternativesResult, err error) {
	if q.Specialty == "" || q.Date == "" || q.Time == "" {
		return nil, fmt.Errorf("%w: specialty, date and time are required", ErrInvalid)
	}

	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "alternatives.find")
	defer span.End()
	span.SetAttributes(
		attribute.String("specialty", q.Specialty),
		attribute.String("date", q.Date),
		attribute.String("time", q.Time),
	)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
		} else if res.Degraded || len(res.Unevaluated) > 0 {
			outcome = "degraded"
		}
		r.metrics.ObserveResolve(outcome, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	res = &AlternativesResult{}

	if q.ExcludeDoctorID != nil {
		avail, err := r.checker.Check(ctx, *q.ExcludeDoctorID, q.Date, q.Time)
		if err != nil {
			res.Degraded = true
			r.logger.Warn().Err(err).Str("doctor_id", q.ExcludeDoctorID.String()).
				Msg("original doctor check failed, treating as not busy")
		} else {
			res.OriginalBusy = avail.IsBusy
		}
	}

	doctors, err := r.doctors.List(ctx, clinic.DoctorFilter{Specialty: q.Specialty})
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}

	evals := r.evaluate(ctx, doctors, q)

	requestingCity := r.requestingCity(ctx, q.RequestingBranchID, doctors)

	ranked := make([]RankedDoctor, 0, len(evals))
	for _, ev := range evals {
		if ev.err != nil {
			r.metrics.ObserveCandidate("failed")
			res.Unevaluated = append(res.Unevaluated, UnevaluatedDoctor{
				DoctorID: ev.doctor.ID,
				FullName: ev.doctor.FullName,
				Error:    ev.err.Error(),
			})
			continue
		}
		if !ev.avail.IsAvailable {
			r.metrics.ObserveCandidate("unavailable")
			continue
		}
		r.metrics.ObserveCandidate("available")
		p := distancePriority(ev.doctor, q.RequestingBranchID, requestingCity)
		ranked = append(ranked, RankedDoctor{
			Doctor:            *ev.doctor,
			DistancePriority:  p,
			PriorityLabel:     priorityLabels[p],
			IsAvailable:       true,
			IsBusy:            ev.avail.IsBusy,
			AppointmentsCount: ev.avail.AppointmentCount,
		})
	}

	SortRanked(ranked)

	for _, d := range ranked {
		switch d.DistancePriority {
		case PrioritySameBranch:
			res.Stats.SameBranch++
		case PrioritySameCity:
			res.Stats.SameCity++
		default:
			res.Stats.OtherCity++
		}
	}
	res.Total = len(ranked)

	if res.OriginalBusy && r.conflict != nil {
		r.conflict.Emit(AppointmentConflict{
			RequestedDoctorID:    *q.ExcludeDoctorID,
			RequestedDate:        q.Date,
			RequestedTime:        q.Time,
			Specialty:            q.Specialty,
			BranchID:             q.RequestingBranchID,
			AlternativeSuggested: len(ranked) > 0,
		})
	}

	if len(ranked) > r.cfg.Limit {
		ranked = ranked[:r.cfg.Limit]
	}
	res.Alternatives = ranked
	return res, nil
}

// evaluate checks every candidate except the excluded doctor with bounded
// concurrency. It returns once all checks have finished.
func (r *Resolver) evaluate(ctx context.Context, doctors []*clinic.Doctor, q AlternativesQuery) []evaluation {
	evals := make([]evaluation, 0, len(doctors))
	for _, d := range doctors {
		if q.ExcludeDoctorID != nil && d.ID == *q.ExcludeDoctorID {
			continue
		}
		evals = append(evals, evaluation{doctor: d})
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrency)
	for i := range evals {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				evals[i].err = fmt.Errorf("not evaluated: %w", err)
				return nil
			}
			cctx, cancel := context.WithTimeout(ctx, r.cfg.CandidateTimeout)
			defer cancel()
			evals[i].avail, evals[i].err = r.checker.Check(cctx, evals[i].doctor.ID, q.Date, q.Time)
			if evals[i].err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
				evals[i].err = fmt.Errorf("timed out: %w", evals[i].err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return evals
}

// requestingCity resolves the city of the requesting branch. The branch is
// looked up directly; if that fails, any candidate in the branch supplies it.
func (r *Resolver) requestingCity(ctx context.Context, branchID *uuid.UUID, doctors []*clinic.Doctor) string {
	if branchID == nil {
		return ""
	}
	var lookupErr error
	if r.branches != nil {
		b, err := r.branches.GetByID(ctx, *branchID)
		if err == nil {
			return b.City
		}
		lookupErr = err
	}
	for _, d := range doctors {
		if d.InBranch(*branchID) && d.City() != "" {
			r.logger.Info().AnErr("lookup_error", lookupErr).Str("branch_id", branchID.String()).
				Msg("requesting branch city inferred from candidates")
			return d.City()
		}
	}
	r.logger.Warn().AnErr("lookup_error", lookupErr).Str("branch_id", branchID.String()).
		Msg("requesting branch city unknown, skipping same-city ranking")
	return ""
}

func distancePriority(d *clinic.Doctor, branchID *uuid.UUID, city string) int {
	if branchID == nil {
		return PriorityOther
	}
	if d.InBranch(*branchID) {
		return PrioritySameBranch
	}
	if city != "" && d.City() == city {
		return PrioritySameCity
	}
	return PriorityOther
}

// SortRanked orders by distance priority, then rating and experience, both
// descending. Remaining ties keep their input order.
func SortRanked(items []RankedDoctor) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.DistancePriority != b.DistancePriority {
			return a.DistancePriority < b.DistancePriority
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.YearsOfExperience > b.YearsOfExperience
	})
}
