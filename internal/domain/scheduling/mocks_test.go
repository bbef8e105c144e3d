package scheduling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/domain/clinic"
	"github.com/clinicbook/clinicbook/internal/platform/websocket"
)

// -- Appointments --

type mockAppointmentRepo struct {
	mu      sync.Mutex
	store   map[uuid.UUID]*Appointment
	failFor map[uuid.UUID]error
	blockOn map[uuid.UUID]bool
	calls   int
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{
		store:   make(map[uuid.UUID]*Appointment),
		failFor: make(map[uuid.UUID]error),
		blockOn: make(map[uuid.UUID]bool),
	}
}

func (m *mockAppointmentRepo) add(doctorID uuid.UUID, date, tm, status string) *Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &Appointment{ID: uuid.New(), PatientID: uuid.New(), DoctorID: doctorID, Date: date, Time: tm, Status: status}
	m.store[a.ID] = a
	return a
}

func (m *mockAppointmentRepo) CountActiveAt(ctx context.Context, doctorID uuid.UUID, date, tm string) (int, error) {
	m.mu.Lock()
	m.calls++
	block := m.blockOn[doctorID]
	err := m.failFor[doctorID]
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.store {
		if a.DoctorID == doctorID && a.Date == date && a.Time == tm &&
			(a.Status == StatusPending || a.Status == StatusConfirmed) {
			n++
		}
	}
	return n, nil
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.store[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.store {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

// -- Overrides --

type mockOverrideRepo struct {
	mu    sync.Mutex
	store map[string]*AvailabilityOverride
	err   error
	gets  int
}

func newMockOverrideRepo() *mockOverrideRepo {
	return &mockOverrideRepo{store: make(map[string]*AvailabilityOverride)}
}

func overrideKey(doctorID uuid.UUID, date, slot string) string {
	return doctorID.String() + "|" + date + "|" + slot
}

func (m *mockOverrideRepo) set(doctorID uuid.UUID, date, slot string, available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[overrideKey(doctorID, date, slot)] = &AvailabilityOverride{
		ID: uuid.New(), DoctorID: doctorID, Date: date, TimeSlot: slot, IsAvailable: available,
	}
}

func (m *mockOverrideRepo) get(doctorID uuid.UUID, date, slot string) *AvailabilityOverride {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[overrideKey(doctorID, date, slot)]
}

func (m *mockOverrideRepo) Get(_ context.Context, doctorID uuid.UUID, date, slot string) (*AvailabilityOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	return m.store[overrideKey(doctorID, date, slot)], nil
}

func (m *mockOverrideRepo) Upsert(_ context.Context, o *AvailabilityOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	cp := *o
	m.store[overrideKey(o.DoctorID, o.Date, o.TimeSlot)] = &cp
	return nil
}

func (m *mockOverrideRepo) ListRange(_ context.Context, doctorIDs []uuid.UUID, from, to string) ([]*AvailabilityOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	wanted := make(map[uuid.UUID]bool, len(doctorIDs))
	for _, id := range doctorIDs {
		wanted[id] = true
	}
	var out []*AvailabilityOverride
	for _, o := range m.store {
		if wanted[o.DoctorID] && o.Date >= from && o.Date <= to {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSlot < out[j].TimeSlot })
	return out, nil
}

// -- Conflicts --

type mockConflictRepo struct {
	mu    sync.Mutex
	items []*AppointmentConflict
	err   error
}

func (m *mockConflictRepo) Create(_ context.Context, c *AppointmentConflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, c)
	return nil
}

func (m *mockConflictRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []AppointmentConflict
}

func (p *recordingPublisher) Emit(c AppointmentConflict) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, c)
	return true
}

// -- Clinic --

type mockDoctors struct {
	items []*clinic.Doctor
	err   error
}

func (m *mockDoctors) List(_ context.Context, f clinic.DoctorFilter) ([]*clinic.Doctor, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*clinic.Doctor
	for _, d := range m.items {
		if d.Specialty == f.Specialty {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockBranches struct {
	store map[uuid.UUID]*clinic.Branch
}

func (m *mockBranches) GetByID(_ context.Context, id uuid.UUID) (*clinic.Branch, error) {
	b, ok := m.store[id]
	if !ok {
		return nil, errors.New("branch not found")
	}
	return b, nil
}

// -- Events --

type recordingHub struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (h *recordingHub) Publish(_ context.Context, e websocket.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

// -- Fixtures --

func newBranch(name, city string) *clinic.Branch {
	return &clinic.Branch{ID: uuid.New(), Name: name, City: city, IsActive: true}
}

func newDoctor(name, specialty string, b *clinic.Branch, rating float64, years int) *clinic.Doctor {
	d := &clinic.Doctor{ID: uuid.New(), FullName: name, Specialty: specialty, Rating: rating, YearsOfExperience: years}
	if b != nil {
		d.BranchID = &b.ID
		d.Branch = b
	}
	return d
}
