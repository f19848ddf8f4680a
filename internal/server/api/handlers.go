package api

import (
	"fmt"
	"net/http"

	"courier/internal/server/bot"
	"courier/internal/server/database"
	"courier/internal/server/service"
	"courier/internal/server/telegram"

	"github.com/labstack/echo/v4"
)

// webhookSecretHeader is the header the platform echoes back when a webhook
// was registered with a secret token.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Handler contains the HTTP handlers for the courier server.
type Handler struct {
	dispatcher    *bot.Dispatcher
	registry      *service.Registry
	db            *database.DB
	webhookSecret string
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(dispatcher *bot.Dispatcher, registry *service.Registry, db *database.DB, webhookSecret string) *Handler {
	return &Handler{
		dispatcher:    dispatcher,
		registry:      registry,
		db:            db,
		webhookSecret: webhookSecret,
	}
}

// HandleWebhook handles POST /webhook.
// Receives one platform update per request. Updates are always acknowledged
// with 200 once accepted; the dispatcher owns per-update error handling, and
// a non-200 here would only make the platform redeliver.
func (h *Handler) HandleWebhook(c echo.Context) error {
	if h.webhookSecret != "" && c.Request().Header.Get(webhookSecretHeader) != h.webhookSecret {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid webhook secret"})
	}

	var upd telegram.Update
	if err := c.Bind(&upd); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed update"})
	}

	h.dispatcher.HandleUpdate(c.Request().Context(), &upd)

	return c.NoContent(http.StatusOK)
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.db.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
// Returns aggregate registry statistics.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.registry.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"files":        stats.Files,
		"batches":      stats.Batches,
		"secure_links": stats.SecureLinks,
		"principals":   stats.Principals,
	})
}
