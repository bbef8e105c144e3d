package records

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicbook/clinicbook/internal/domain/scheduling"
	"github.com/clinicbook/clinicbook/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	read.GET("/appointments/:id/medical-record", h.GetForAppointment)
	read.GET("/patients/:id/medical-records", h.ListForPatient)

	write := api.Group("", auth.RequireRole(auth.RoleDoctor))
	write.PUT("/appointments/:id/medical-record", h.SaveForAppointment)
}

// SaveForAppointment is limited to the doctor who owns the appointment.
func (h *Handler) SaveForAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.authorize(c, id); err != nil {
		return err
	}

	var req SaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.SaveForAppointment(c.Request().Context(), id, req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetForAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.authorize(c, id); err != nil {
		return err
	}
	rec, err := h.svc.GetByAppointment(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ListForPatient serves a patient's own history. Doctors and admins may read
// any patient's history.
func (h *Handler) ListForPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, _ := auth.SessionFromContext(c.Request().Context())
	if s.IsPatient() && s.PatientID != id.String() {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only read their own records")
	}

	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
	}
	items, err := h.svc.ListByPatient(c.Request().Context(), id, limit)
	if err != nil {
		return mapError(err)
	}
	if items == nil {
		items = []*MedicalRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) authorize(c echo.Context, appointmentID uuid.UUID) error {
	a, err := h.svc.Appointment(c.Request().Context(), appointmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s, _ := auth.SessionFromContext(c.Request().Context())
	if !scheduling.CanAccess(s, a) {
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	}
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "medical record not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
