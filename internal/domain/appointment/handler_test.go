package appointment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo, *mockDentists) {
	svc, _, dents := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e, dents
}

func TestHandler_Book(t *testing.T) {
	h, e, dents := newTestHandler()
	did := addDentist(dents)

	body := `{"patient_id":"` + uuid.New().String() + `","dentist_id":"` + did.String() +
		`","type":"checkup","scheduled_at":"` + at(monday, 10, 0).Format(time.RFC3339) +
		`","duration_minutes":30}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Book(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Book_Conflict(t *testing.T) {
	h, e, dents := newTestHandler()
	did := addDentist(dents)

	body := `{"patient_id":"` + uuid.New().String() + `","dentist_id":"` + did.String() +
		`","type":"checkup","scheduled_at":"` + at(monday, 10, 0).Format(time.RFC3339) +
		`","duration_minutes":30}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.Book(c)
		if i == 0 {
			if err != nil {
				t.Fatalf("first booking failed: %v", err)
			}
			continue
		}
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusConflict {
			t.Errorf("expected 409 on double booking, got %v", err)
		}
	}
}

func TestHandler_AvailableSlots(t *testing.T) {
	h, e, dents := newTestHandler()
	did := addDentist(dents)

	req := httptest.NewRequest(http.MethodGet,
		"/?date=2026-01-05&dentist_id="+did.String()+"&duration=60&granularity=60", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.AvailableSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Date  string      `json:"date"`
		Slots []time.Time `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	// Monday 9-5 with a 60-minute grid: starts 9:00 through 16:00.
	if len(payload.Slots) != 8 {
		t.Errorf("expected 8 slots, got %d: %v", len(payload.Slots), payload.Slots)
	}
}

func TestHandler_AvailableSlots_BadDate(t *testing.T) {
	h, e, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?date=tomorrow", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.AvailableSlots(c); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestHandler_Cancel_NotFound(t *testing.T) {
	h, e, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Cancel(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
