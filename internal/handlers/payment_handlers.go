package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kainan_app_echo/internal/services"
)

type PaymentHandler struct {
	db             *gorm.DB
	paymentService *services.PaymentService
}

func NewPaymentHandler(db *gorm.DB, paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{db: db, paymentService: paymentService}
}

type createIntentRequest struct {
	CorrelationKey string          `json:"correlationKey"`
	RestaurantID   uint            `json:"restaurantId"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
}

// CreateIntent creates a hosted payment invoice for a cart that does not
// exist as an order yet
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req createIntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.RestaurantID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "restaurantId is required")
	}
	if !req.Amount.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "amount must be positive")
	}

	result, err := h.paymentService.CreatePaymentIntent(c.Request().Context(), req.RestaurantID, req.Amount, req.CorrelationKey, req.Description)
	if err != nil {
		if errors.Is(err, services.ErrProviderNotRegistered) {
			return echo.NewHTTPError(http.StatusBadRequest, "Provider not registered with Xendit")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Restaurant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create payment intent: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         true,
		"correlationKey": result.CorrelationKey,
		"invoiceId":      result.InvoiceID,
		"invoiceUrl":     result.InvoiceURL,
	})
}

// CheckIntentStatus reports whether the intent is paid. It reads the intent
// store only and returns immediately; clients poll rather than wait.
func (h *PaymentHandler) CheckIntentStatus(c echo.Context) error {
	correlationKey := c.Param("correlationKey")
	if correlationKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid correlation key")
	}

	isPaid, channel, err := h.paymentService.CheckIntentStatus(c.Request().Context(), correlationKey)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check status: "+err.Error())
	}

	resp := map[string]interface{}{"isPaid": isPaid}
	if channel != "" {
		resp["channel"] = channel
	}
	return c.JSON(http.StatusOK, resp)
}

type promoteOrderRequest struct {
	InvoiceID      string               `json:"invoiceId"`
	CorrelationKey string               `json:"correlationKey"`
	Cart           services.CartPayload `json:"cart"`
}

// PromoteOrder turns a paid intent into a durable order and transaction.
// Duplicate calls return the same identifiers.
func (h *PaymentHandler) PromoteOrder(c echo.Context) error {
	var req promoteOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.InvoiceID == "" || req.CorrelationKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invoiceId and correlationKey are required")
	}

	result, err := h.paymentService.PromoteOrder(c.Request().Context(), req.InvoiceID, req.CorrelationKey, req.Cart)
	if err != nil {
		var cartErr *services.CartValidationError
		if errors.As(err, &cartErr) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"status":  false,
				"code":    "INVALID_CART_PAYLOAD",
				"message": cartErr.Error(),
				"field":   cartErr.Field,
			})
		}
		if errors.Is(err, services.ErrPaymentNotConfirmed) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"status":  false,
				"code":    "PAYMENT_NOT_CONFIRMED",
				"message": "Payment has not been confirmed for this intent",
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to promote order: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        true,
		"orderId":       result.OrderID,
		"transactionId": result.TransactionID,
	})
}

// CreateCashOrder places a cash-on-delivery order directly
func (h *PaymentHandler) CreateCashOrder(c echo.Context) error {
	var cart services.CartPayload
	if err := c.Bind(&cart); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	result, err := h.paymentService.CreateCashOrder(c.Request().Context(), cart)
	if err != nil {
		var cartErr *services.CartValidationError
		if errors.As(err, &cartErr) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"status":  false,
				"code":    "INVALID_CART_PAYLOAD",
				"message": cartErr.Error(),
				"field":   cartErr.Field,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create order: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        true,
		"orderId":       result.OrderID,
		"transactionId": result.TransactionID,
	})
}

// MarkCashCollected records that the driver collected a cash payment
func (h *PaymentHandler) MarkCashCollected(c echo.Context) error {
	orderUUID := c.Param("uuid")
	if orderUUID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid order UUID")
	}

	if err := h.paymentService.MarkCashCollected(c.Request().Context(), orderUUID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Order not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
