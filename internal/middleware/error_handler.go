package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON envelope every error leaves the API in
type ErrorResponse struct {
	Status  bool   `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// CustomErrorHandler creates a custom error handler for Echo
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	errorMessage := ""
	errorCode := ""

	// Check if it's an Echo HTTPError
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code

		// Try to extract message from HTTPError
		if msg, ok := he.Message.(string); ok && msg != "" {
			errorMessage = msg
		}

		switch code {
		case http.StatusNotFound:
			errorCode = "NOT_FOUND"
			if errorMessage == "" {
				errorMessage = "The requested resource doesn't exist."
			}
		case http.StatusForbidden:
			errorCode = "FORBIDDEN"
			if errorMessage == "" {
				errorMessage = "You don't have permission to access this resource."
			}
		case http.StatusUnauthorized:
			errorCode = "UNAUTHORIZED"
			if errorMessage == "" {
				errorMessage = "Authentication is required."
			}
		case http.StatusBadRequest:
			errorCode = "BAD_REQUEST"
			if errorMessage == "" {
				errorMessage = "The request could not be processed."
			}
		default:
			if errorMessage == "" {
				errorMessage = "Something went wrong. Please try again later."
			}
		}
	} else {
		// Non-HTTPError, use default
		errorMessage = "Something went wrong. Please try again later."
	}

	// Log the error
	c.Logger().Error(err)

	if jsonErr := c.JSON(code, ErrorResponse{
		Status:  false,
		Code:    errorCode,
		Message: errorMessage,
	}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
