package assistant

import (
	"errors"
	"net/http"

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
	g := api.Group("/assistant", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	g.POST("/chat", h.Chat)
	g.GET("/chat", h.Health)
}

func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.Chat(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		var ce *ChatError
		if errors.As(err, &ce) {
			return echo.NewHTTPError(http.StatusInternalServerError, ce.Message).SetInternal(ce.Err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Health())
}
