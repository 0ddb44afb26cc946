package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kainan_app_echo/internal/models"
)

type TransactionHandler struct {
	db *gorm.DB
}

func NewTransactionHandler(db *gorm.DB) *TransactionHandler {
	return &TransactionHandler{db: db}
}

// ListTransactions returns ledger rows, newest first. Supports restaurant_id,
// status, source and week_ending (RFC3339) query filters.
func (h *TransactionHandler) ListTransactions(c echo.Context) error {
	query := h.db.Model(&models.Transaction{})

	if raw := c.QueryParam("restaurant_id"); raw != "" {
		restaurantID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid restaurant_id")
		}
		query = query.Where("restaurant_id = ?", restaurantID)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := c.QueryParam("source"); source != "" {
		query = query.Where("source = ?", source)
	}
	if raw := c.QueryParam("week_ending"); raw != "" {
		weekEnding, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid week_ending, expected RFC3339")
		}
		query = query.Where("week_ending = ?", weekEnding)
	}

	var transactions []models.Transaction
	if err := query.Order("created_at desc").Limit(200).Find(&transactions).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch transactions")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": true,
		"data":   transactions,
	})
}

// GetTransaction returns one ledger row by provider invoice id
func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	var transaction models.Transaction
	err := h.db.Where("xendit_invoice_id = ?", c.Param("invoiceId")).First(&transaction).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Transaction not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": true,
		"data":   transaction,
	})
}

// ListRemittances returns commission remittance history for a restaurant
func (h *TransactionHandler) ListRemittances(c echo.Context) error {
	restaurantID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid restaurant id")
	}

	var remittances []models.CommissionRemittance
	if err := h.db.Where("restaurant_id = ?", restaurantID).Order("week_ending desc").Find(&remittances).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch remittances")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": true,
		"data":   remittances,
	})
}
