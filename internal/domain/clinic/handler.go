package clinic

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	read.GET("/branches", h.ListBranches)
	read.GET("/doctors", h.ListDoctors)
	read.GET("/doctors/:id", h.GetDoctor)
	read.GET("/specialties", h.ListSpecialties)

	write := api.Group("", auth.RequireRole(auth.RoleDoctor))
	write.PUT("/doctors/:id", h.UpdateDoctorProfile)
}

func (h *Handler) ListBranches(c echo.Context) error {
	items, err := h.svc.ListBranches(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Branch{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	f := DoctorFilter{Specialty: c.QueryParam("specialty")}
	if v := c.QueryParam("branch_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid branch_id")
		}
		f.BranchID = &id
	}
	items, err := h.svc.ListDoctors(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return lookupError(err, "doctor not found")
	}
	return c.JSON(http.StatusOK, d)
}

// UpdateDoctorProfile lets a doctor edit their own profile. Admins may edit any.
func (h *Handler) UpdateDoctorProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, _ := auth.SessionFromContext(c.Request().Context())
	if !s.IsAdmin() && s.DoctorID != id.String() {
		return echo.NewHTTPError(http.StatusForbidden, "doctors may only edit their own profile")
	}

	var upd DoctorProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.UpdateDoctorProfile(c.Request().Context(), id, upd)
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return lookupError(err, "doctor not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListSpecialties(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Specialties())
}

func lookupError(err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, msg)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
