package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kainan_app_echo/internal/models"
	"kainan_app_echo/internal/services"
)

type ProviderHandler struct {
	db       *gorm.DB
	provider services.PaymentProvider
}

func NewProviderHandler(db *gorm.DB, provider services.PaymentProvider) *ProviderHandler {
	return &ProviderHandler{db: db, provider: provider}
}

type registerProviderRequest struct {
	RestaurantID      uint   `json:"restaurantId"`
	PayoutMethod      string `json:"payoutMethod"`
	BankCode          string `json:"bankCode"`
	AccountNumber     string `json:"accountNumber"`
	AccountHolderName string `json:"accountHolderName"`
	EwalletType       string `json:"ewalletType"`
	EwalletNumber     string `json:"ewalletNumber"`
}

// RegisterProvider creates a Xendit sub-account for a restaurant and stores
// its payout routing. Registration is required before the restaurant can be
// charged for.
func (h *ProviderHandler) RegisterProvider(c echo.Context) error {
	var req registerProviderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	var restaurant models.Restaurant
	if err := h.db.First(&restaurant, req.RestaurantID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Restaurant not found")
	}

	subAccountID, err := h.provider.CreateSubAccount(c.Request().Context(), services.SubAccountProfile{
		BusinessName: restaurant.Title,
		Email:        restaurant.Email,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to create Xendit sub-account: "+err.Error())
	}

	restaurant.XenditSubAccountID = subAccountID
	restaurant.XenditAccountStatus = "active"
	restaurant.PayoutMethod = models.PayoutMethodType(req.PayoutMethod)
	if restaurant.PayoutMethod == models.PayoutMethodBankAccount {
		restaurant.BankCode = req.BankCode
		restaurant.AccountNumber = req.AccountNumber
	}
	if restaurant.PayoutMethod == models.PayoutMethodEwallet {
		restaurant.EwalletType = req.EwalletType
		restaurant.EwalletNumber = req.EwalletNumber
	}
	restaurant.AccountHolderName = req.AccountHolderName

	if err := h.db.Save(&restaurant).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save restaurant")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       true,
		"message":      "Provider registered successfully",
		"subAccountId": subAccountID,
	})
}

// GetProviderStatus returns the registration and remittance state
func (h *ProviderHandler) GetProviderStatus(c echo.Context) error {
	var restaurant models.Restaurant
	if err := h.db.First(&restaurant, c.Param("id")).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Provider not found")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": true,
		"data": map[string]interface{}{
			"xenditSubAccountId":  restaurant.XenditSubAccountID,
			"xenditAccountStatus": restaurant.XenditAccountStatus,
			"payoutMethod":        restaurant.PayoutMethod,
			"pendingRemit": map[string]interface{}{
				"amount":     restaurant.PendingRemitAmount,
				"invoiceUrl": restaurant.PendingRemitInvoiceURL,
				"dueDate":    restaurant.PendingRemitDueDate,
			},
		},
	})
}

// UpdatePayoutMethod changes where a registered restaurant receives payouts
func (h *ProviderHandler) UpdatePayoutMethod(c echo.Context) error {
	var req registerProviderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	var restaurant models.Restaurant
	if err := h.db.First(&restaurant, c.Param("id")).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Provider not found")
	}

	restaurant.PayoutMethod = models.PayoutMethodType(req.PayoutMethod)
	restaurant.BankCode = req.BankCode
	restaurant.AccountNumber = req.AccountNumber
	restaurant.AccountHolderName = req.AccountHolderName
	restaurant.EwalletType = req.EwalletType
	restaurant.EwalletNumber = req.EwalletNumber

	if err := h.db.Save(&restaurant).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update payout method")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  true,
		"message": "Payout method updated successfully",
	})
}
