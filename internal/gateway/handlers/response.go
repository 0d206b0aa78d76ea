package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookletku/internal/catalog"
	"bookletku/internal/gateway"
	"bookletku/internal/gateway/middleware"
	"bookletku/internal/platform"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

// respond writes body after handing any renewed tokens back to the client.
func respond(c *gin.Context, status int, body APIResponse) {
	if call := middleware.Call(c); call != nil {
		if renewed, ok := call.Renewed(); ok {
			c.Header(middleware.HeaderAccessToken, renewed.AccessToken)
			c.Header(middleware.HeaderRefreshToken, renewed.RefreshToken)
		}
		if call.SignedOut() {
			c.Header(middleware.HeaderSessionExpired, "true")
		}
	}
	c.JSON(status, body)
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Store service error"
	}
	respond(c, status, errorResponse(message))
}

func statusFor(err error) int {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, gateway.ErrNotPermutation),
		errors.Is(err, catalog.ErrWhatsAppNotSet):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrAuthExpired),
		platform.IsAuthError(err),
		errors.Is(err, platform.ErrInvalidCredentials),
		errors.Is(err, platform.ErrInvalidRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, platform.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, platform.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, platform.ErrEmailTaken),
		errors.Is(err, platform.ErrObjectExists):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
