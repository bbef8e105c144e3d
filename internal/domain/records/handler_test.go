package records

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicbook/clinicbook/internal/domain/scheduling"
	"github.com/clinicbook/clinicbook/internal/platform/auth"
)

func newTestHandler() (*Handler, *serviceFixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc), f, echo.New()
}

func newRequest(e *echo.Echo, method, target, body string, s auth.Session) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(auth.WithSession(req.Context(), s))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func doctorSession(a *scheduling.Appointment) auth.Session {
	return auth.Session{UserID: uuid.NewString(), Role: auth.RoleDoctor, DoctorID: a.DoctorID.String()}
}

func TestHandler_SaveForAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.appts.add(scheduling.StatusConfirmed)

	c, rec := newRequest(e, http.MethodPut, "/", `{"diagnosis":"Cảm cúm","treatment":"Paracetamol"}`, doctorSession(a))
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.SaveForAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out MedicalRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Diagnosis != "Cảm cúm" || out.ID == uuid.Nil {
		t.Errorf("unexpected record %+v", out)
	}
}

func TestHandler_SaveForAppointment_OtherDoctorForbidden(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.appts.add(scheduling.StatusConfirmed)

	other := auth.Session{UserID: uuid.NewString(), Role: auth.RoleDoctor, DoctorID: uuid.NewString()}
	c, _ := newRequest(e, http.MethodPut, "/", `{"diagnosis":"A","treatment":"B"}`, other)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := httpCode(t, h.SaveForAppointment(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_SaveForAppointment_TooLong(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.appts.add(scheduling.StatusConfirmed)

	body := `{"diagnosis":"` + strings.Repeat("a", maxFieldLength+1) + `","treatment":"B"}`
	c, _ := newRequest(e, http.MethodPut, "/", body, doctorSession(a))
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := httpCode(t, h.SaveForAppointment(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_GetForAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.appts.add(scheduling.StatusConfirmed)
	patient := auth.Session{UserID: uuid.NewString(), Role: auth.RolePatient, PatientID: a.PatientID.String()}

	c, _ := newRequest(e, http.MethodGet, "/", "", patient)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := httpCode(t, h.GetForAppointment(c)); code != http.StatusNotFound {
		t.Fatalf("expected 404 before a record exists, got %d", code)
	}

	if _, err := f.svc.SaveForAppointment(c.Request().Context(), a.ID, SaveRequest{Diagnosis: "A", Treatment: "B"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	c, rec := newRequest(e, http.MethodGet, "/", "", patient)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.GetForAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	stranger := auth.Session{UserID: uuid.NewString(), Role: auth.RolePatient, PatientID: uuid.NewString()}
	c, _ = newRequest(e, http.MethodGet, "/", "", stranger)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := httpCode(t, h.GetForAppointment(c)); code != http.StatusForbidden {
		t.Errorf("expected 403 for another patient, got %d", code)
	}
}

func TestHandler_ListForPatient(t *testing.T) {
	h, _, e := newTestHandler()
	self := uuid.New()
	s := auth.Session{UserID: uuid.NewString(), Role: auth.RolePatient, PatientID: self.String()}

	c, rec := newRequest(e, http.MethodGet, "/", "", s)
	c.SetParamNames("id")
	c.SetParamValues(self.String())
	if err := h.ListForPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}

	c, _ = newRequest(e, http.MethodGet, "/", "", s)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	if code := httpCode(t, h.ListForPatient(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}

	c, _ = newRequest(e, http.MethodGet, "/?limit=abc", "", s)
	c.SetParamNames("id")
	c.SetParamValues(self.String())
	if code := httpCode(t, h.ListForPatient(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", code)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		http.MethodPut + " /api/v1/appointments/:id/medical-record": false,
		http.MethodGet + " /api/v1/appointments/:id/medical-record": false,
		http.MethodGet + " /api/v1/patients/:id/medical-records":    false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for k, ok := range want {
		if !ok {
			t.Errorf("route %s not registered", k)
		}
	}
}
