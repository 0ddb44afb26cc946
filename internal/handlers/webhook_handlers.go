package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kainan_app_echo/internal/models"
	"kainan_app_echo/internal/services"
)

// SignatureHeader carries the HMAC-SHA256 hex signature of the raw body
const SignatureHeader = "X-Callback-Signature"

type WebhookHandler struct {
	db             *gorm.DB
	webhookService *services.WebhookService
}

func NewWebhookHandler(db *gorm.DB, webhookService *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{db: db, webhookService: webhookService}
}

// HandleXenditCallback ingests a provider callback. It acknowledges with 200
// in every case except a bad signature, so the provider never retry-storms
// payloads this system cannot process anyway.
func (h *WebhookHandler) HandleXenditCallback(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	signature := c.Request().Header.Get(SignatureHeader)

	if err := h.webhookService.Ingest(c.Request().Context(), body, signature); err != nil {
		if errors.Is(err, services.ErrUnauthorizedWebhook) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid webhook signature")
		}
		// Ingest absorbs processing failures; anything else is unexpected
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
}

// ListFailedCallbacks returns unresolved callbacks for replay tooling
func (h *WebhookHandler) ListFailedCallbacks(c echo.Context) error {
	var failed []models.FailedWebhook
	if err := h.db.Where("resolved = ?", false).Order("created_at desc").Find(&failed).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch failed callbacks")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": true,
		"data":   failed,
	})
}

// ReplayFailedCallback re-runs ingestion on a stored callback payload
func (h *WebhookHandler) ReplayFailedCallback(c echo.Context) error {
	var failed models.FailedWebhook
	if err := h.db.First(&failed, c.Param("id")).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Failed callback not found")
	}

	if actor := getStringFromContext(c, "userEmail"); actor != "" {
		c.Logger().Infof("callback %d replay requested by %s", failed.ID, actor)
	}

	if err := h.webhookService.ReplayFailed(c.Request().Context(), failed.ID); err != nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  false,
			"message": "Replay failed: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  true,
		"message": "Callback replayed successfully",
	})
}
