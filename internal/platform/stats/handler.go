package stats

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/brightsmile/clinic/internal/domain/appointment"
	"github.com/brightsmile/clinic/internal/domain/billing"
	"github.com/brightsmile/clinic/internal/domain/patient"
	"github.com/brightsmile/clinic/internal/platform/auth"
)

// Sources are the record loaders the dashboard reads from. Each matches a
// repository method so the handler can be wired straight to the stores.
type Sources struct {
	Patients     func(ctx context.Context) ([]*patient.Patient, error)
	Appointments func(ctx context.Context) ([]*appointment.Appointment, error)
	Invoices     func(ctx context.Context) ([]*billing.Invoice, error)
}

type Handler struct {
	src Sources
	now func() time.Time
}

func NewHandler(src Sources) *Handler {
	return &Handler{src: src, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireRole("admin", "dentist"))
	g.GET("", h.Overview)
	g.GET("/appointments", h.Appointments)
	g.GET("/billing", h.Billing)
	g.GET("/patients", h.Patients)
}

// window parses optional from/to query bounds as YYYY-MM-DD dates. The to
// bound is exclusive at midnight of the named day plus one.
func window(c echo.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
		to = t.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (h *Handler) Appointments(c echo.Context) error {
	from, to, err := window(c)
	if err != nil {
		return err
	}
	appts, err := h.src.Appointments(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, Appointments(appts, from, to, h.now()))
}

func (h *Handler) Billing(c echo.Context) error {
	invoices, err := h.src.Invoices(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, Billing(invoices))
}

func (h *Handler) Patients(c echo.Context) error {
	patients, err := h.src.Patients(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, Patients(patients, h.now()))
}

func (h *Handler) Overview(c echo.Context) error {
	ctx := c.Request().Context()
	from, to, err := window(c)
	if err != nil {
		return err
	}

	appts, err := h.src.Appointments(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	invoices, err := h.src.Invoices(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	patients, err := h.src.Patients(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, Overview{
		GeneratedAt:  h.now(),
		Appointments: Appointments(appts, from, to, h.now()),
		Billing:      Billing(invoices),
		Patients:     Patients(patients, h.now()),
	})
}
