package auth

import (
	"context"

	"github.com/labstack/echo/v4"
)

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

type contextKey string

const sessionKey contextKey = "session"

// Session identifies the caller of a request. It is built from the bearer
// token on every request and travels in the request context only.
type Session struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	PatientID string `json:"patient_id,omitempty"`
	DoctorID  string `json:"doctor_id,omitempty"`
}

func (s Session) IsPatient() bool { return s.Role == RolePatient }
func (s Session) IsDoctor() bool  { return s.Role == RoleDoctor }
func (s Session) IsAdmin() bool   { return s.Role == RoleAdmin }

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session attached by the auth middleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

func UserIDFromContext(ctx context.Context) string {
	s, _ := SessionFromContext(ctx)
	return s.UserID
}

// setSession stores the session on both the request context and the echo
// context so middleware that only sees echo.Context can read it.
func setSession(c echo.Context, s Session) {
	c.Set(string(sessionKey), s)
	c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), s)))
}
