package scheduling

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicbook/clinicbook/internal/platform/auth"
	"github.com/clinicbook/clinicbook/pkg/pagination"
)

type Handler struct {
	checker  *Checker
	resolver *Resolver
	booking  *BookingService
	grid     *Grid
	now      func() time.Time
}

func NewHandler(checker *Checker, resolver *Resolver, booking *BookingService, grid *Grid) *Handler {
	return &Handler{checker: checker, resolver: resolver, booking: booking, grid: grid, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	read.POST("/alternatives", h.FindAlternatives)
	read.GET("/availability", h.CheckAvailability)
	read.GET("/availability/grid", h.AvailabilityGrid)
	read.GET("/appointments", h.ListAppointments)
	read.GET("/appointments/:id", h.GetAppointment)
	read.PATCH("/appointments/:id/status", h.UpdateStatus)

	book := api.Group("", auth.RequireRole(auth.RolePatient))
	book.POST("/appointments", h.Book)
}

// -- Alternatives --

type alternativesRequest struct {
	Specialty       string `json:"specialty"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	CurrentBranchID string `json:"currentBranchId"`
	CurrentDoctorID string `json:"currentDoctorId"`
}

type alternativesResponse struct {
	Success            bool                `json:"success"`
	OriginalDoctorBusy bool                `json:"original_doctor_busy"`
	TotalAlternatives  int                 `json:"total_alternatives"`
	Statistics         Stats               `json:"statistics"`
	Recommendations    []RankedDoctor      `json:"recommendations"`
	Timestamp          time.Time           `json:"timestamp"`
	Degraded           bool                `json:"degraded"`
	Unevaluated        []UnevaluatedDoctor `json:"unevaluated"`
}

func (h *Handler) FindAlternatives(c echo.Context) error {
	var req alternativesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Specialty == "" || req.Date == "" || req.Time == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields: specialty, date, time")
	}

	q := AlternativesQuery{Specialty: req.Specialty, Date: req.Date, Time: req.Time}
	var err error
	if q.RequestingBranchID, err = optionalUUID(req.CurrentBranchID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid currentBranchId")
	}
	if q.ExcludeDoctorID, err = optionalUUID(req.CurrentDoctorID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid currentDoctorId")
	}

	res, err := h.resolver.FindAlternatives(c.Request().Context(), q)
	if err != nil {
		return mapError(err)
	}

	resp := alternativesResponse{
		Success:            true,
		OriginalDoctorBusy: res.OriginalBusy,
		TotalAlternatives:  res.Total,
		Statistics:         res.Stats,
		Recommendations:    res.Alternatives,
		Timestamp:          h.now().UTC(),
		Degraded:           res.Degraded,
		Unevaluated:        res.Unevaluated,
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []RankedDoctor{}
	}
	if resp.Unevaluated == nil {
		resp.Unevaluated = []UnevaluatedDoctor{}
	}
	return c.JSON(http.StatusOK, resp)
}

// -- Availability --

type availabilityResponse struct {
	Success bool   `json:"success"`
	Doctor  string `json:"doctor_id"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Availability
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	doctorID := c.QueryParam("doctorId")
	if doctorID == "" {
		doctorID = c.QueryParam("doctor_id")
	}
	date, tm := c.QueryParam("date"), c.QueryParam("time")
	if doctorID == "" || date == "" || tm == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required parameters: doctorId, date, time")
	}
	id, err := uuid.Parse(doctorID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctorId")
	}

	avail, err := h.checker.Check(c.Request().Context(), id, date, tm)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, availabilityResponse{
		Success:      true,
		Doctor:       doctorID,
		Date:         date,
		Time:         tm,
		Availability: avail,
	})
}

func (h *Handler) AvailabilityGrid(c echo.Context) error {
	var ids []uuid.UUID
	for _, raw := range strings.Split(c.QueryParam("doctor_ids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id: "+raw)
		}
		ids = append(ids, id)
	}
	grid, err := h.grid.Build(c.Request().Context(), ids, c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, grid)
}

// -- Appointments --

func (h *Handler) Book(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, _ := auth.SessionFromContext(c.Request().Context())
	if s.IsPatient() {
		pid, err := uuid.Parse(s.PatientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "session has no patient profile")
		}
		req.PatientID = pid
	}

	a, err := h.booking.Book(c.Request().Context(), req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	s, _ := auth.SessionFromContext(c.Request().Context())
	f := AppointmentFilter{Status: c.QueryParam("status"), From: c.QueryParam("from")}

	switch {
	case s.IsPatient():
		id, err := uuid.Parse(s.PatientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "session has no patient profile")
		}
		f.PatientID = &id
	case s.IsDoctor():
		id, err := uuid.Parse(s.DoctorID)
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "session has no doctor profile")
		}
		f.DoctorID = &id
	default:
		var err error
		if f.PatientID, err = optionalUUID(c.QueryParam("patient_id")); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		if f.DoctorID, err = optionalUUID(c.QueryParam("doctor_id")); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
	}

	p := pagination.FromContext(c)
	items, total, err := h.booking.List(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return mapError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus lets doctors and admins set any status. Patients may only
// cancel their own appointments.
func (h *Handler) UpdateStatus(c echo.Context) error {
	a, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, _ := auth.SessionFromContext(c.Request().Context())
	if s.IsPatient() && req.Status != StatusCancelled {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only cancel appointments")
	}

	updated, err := h.booking.UpdateStatus(c.Request().Context(), a.ID, req.Status)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// loadOwned fetches the :id appointment and checks that the session is a
// participant or an admin.
func (h *Handler) loadOwned(c echo.Context) (*Appointment, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.booking.Get(c.Request().Context(), id)
	if err != nil {
		return nil, mapError(err)
	}
	s, _ := auth.SessionFromContext(c.Request().Context())
	if !CanAccess(s, a) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not a participant of this appointment")
	}
	return a, nil
}

// CanAccess reports whether the session may read or change a.
func CanAccess(s auth.Session, a *Appointment) bool {
	switch {
	case s.IsAdmin():
		return true
	case s.IsPatient():
		return s.PatientID == a.PatientID.String()
	case s.IsDoctor():
		return s.DoctorID == a.DoctorID.String()
	}
	return false
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrSlotUnavailable):
		return echo.NewHTTPError(http.StatusConflict,
			"the selected slot is no longer available; use /api/v1/alternatives to find another doctor")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
