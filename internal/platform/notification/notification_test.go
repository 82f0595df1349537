package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestTemplateEngine_Render(t *testing.T) {
	e := NewTemplateEngine()

	subject, body, err := e.Render("appointment-reminder", map[string]string{
		"patient_name":     "John Smith",
		"appointment_type": "checkup",
		"date":             "Monday, January 5",
		"time":             "10:00 AM",
		"provider":         "Dr. Sarah Johnson",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Appointment Reminder for John Smith" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "Dr. Sarah Johnson") || !strings.Contains(body, "10:00 AM") {
		t.Errorf("body missing substitutions: %q", body)
	}
}

func TestTemplateEngine_MissingKeysLeftAlone(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render("payment-due", map[string]string{"patient_name": "Jane"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body, "{{balance}}") {
		t.Errorf("unfilled placeholder should survive, body = %q", body)
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func newTestManager() (*Manager, *MockEmailSender, *MockSMSSender) {
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	return NewManager(email, sms, NewTemplateEngine()), email, sms
}

func TestManager_SendEmail(t *testing.T) {
	m, email, _ := newTestManager()

	n := &Notification{Type: TypeEmail, Recipient: "p@example.com", Subject: "Hi", Body: "Hello"}
	if err := m.Send(context.Background(), n); err != nil {
		t.Fatalf("send: %v", err)
	}
	if n.Status != "sent" || n.SentAt == nil {
		t.Errorf("notification not marked sent: %+v", n)
	}
	if len(email.Calls()) != 1 {
		t.Errorf("expected 1 email call, got %d", len(email.Calls()))
	}
}

func TestManager_SendFromTemplate_SMS(t *testing.T) {
	m, _, sms := newTestManager()

	n, err := m.SendFromTemplate(context.Background(), "appointment-reminder-sms", map[string]string{
		"appointment_type": "cleaning", "date": "Jan 5", "time": "9:00 AM", "provider": "Dr. Lee",
	}, "+15551234567")
	if err != nil {
		t.Fatalf("send from template: %v", err)
	}
	if n.Type != TypeSMS {
		t.Errorf("type = %s, want sms", n.Type)
	}
	calls := sms.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Body, "cleaning") {
		t.Errorf("sms calls = %+v", calls)
	}
}

func TestManager_RetryFailedSend(t *testing.T) {
	m, email, _ := newTestManager()
	email.ShouldFail = true
	email.FailError = "smtp down"

	n := &Notification{Type: TypeEmail, Recipient: "p@example.com", Body: "Hello"}
	if err := m.Send(context.Background(), n); err == nil {
		t.Fatal("expected send failure")
	}
	if n.Status != "failed" {
		t.Fatalf("status = %s, want failed", n.Status)
	}

	email.ShouldFail = false
	if err := m.Retry(context.Background(), n.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ := m.Get(context.Background(), n.ID)
	if got.Status != "sent" || got.Error != "" {
		t.Errorf("after retry: %+v", got)
	}

	// A sent notification cannot be retried again.
	if err := m.Retry(context.Background(), n.ID); err == nil {
		t.Error("expected error retrying a sent notification")
	}
}

func TestManager_Stats(t *testing.T) {
	m, email, _ := newTestManager()
	m.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "a@x.com", Body: "1"})
	email.ShouldFail = true
	email.FailError = "boom"
	m.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "b@x.com", Body: "2"})

	stats := m.Stats(context.Background())
	if stats["sent"] != 1 || stats["failed"] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestHandler_SendTemplate(t *testing.T) {
	m, _, _ := newTestManager()
	h := NewHandler(m)
	e := echo.New()

	body := `{"template_id":"welcome-patient","recipient":"new@example.com","data":{"patient_name":"Ann","practice_name":"Bright Smile Dental Care","phone":"(555) 123-4567"}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandleSendTemplate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var n Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if n.Status != "sent" || !strings.Contains(n.Subject, "Bright Smile Dental Care") {
		t.Errorf("notification = %+v", n)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	m, _, _ := newTestManager()
	h := NewHandler(m)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.HandleGet(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
