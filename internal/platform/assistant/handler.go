package assistant

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts the assistant and practice-info endpoints. These are
// patient facing and deliberately unauthenticated.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/assistant/message", h.Message)

	p := api.Group("/practice")
	p.GET("", h.Practice)
	p.GET("/hours", h.Hours)
	p.GET("/services", h.Services)
	p.GET("/insurance", h.Insurance)
}

// envelope mirrors the response shape the phone-assistant clients expect.
func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{"success": true, "data": data}
}

func (h *Handler) Message(c echo.Context) error {
	var body struct {
		Message string    `json:"message"`
		History []Message `json:"history"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(body.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	result := h.engine.Process(c.Request().Context(), body.Message, body.History)
	return c.JSON(http.StatusOK, envelope(result))
}

func (h *Handler) Practice(c echo.Context) error {
	info := h.engine.Info()
	return c.JSON(http.StatusOK, envelope(map[string]interface{}{
		"name":              info.Name,
		"address":           info.Address,
		"phone":             info.Phone,
		"after_hours_phone": info.AfterHoursPhone,
		"hours":             info.HoursByDay(),
		"services":          info.ServiceNames(),
		"insurance":         info.Insurance,
	}))
}

func (h *Handler) Hours(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope(h.engine.Info().HoursByDay()))
}

func (h *Handler) Services(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope(h.engine.Info().Services))
}

func (h *Handler) Insurance(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope(h.engine.Info().Insurance))
}
