package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ridgelock-io/authcore"
)

// Envelope is the uniform response body for every endpoint.
type Envelope struct {
	Status    string      `json:"status"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Stable response codes. Clients branch on these, never on messages.
const (
	codeOK                = "OK"
	codeBadRequest        = "BAD_REQUEST"
	codeNotFound          = "NOT_FOUND"
	codeInvalidCredential = "INVALID_CREDENTIAL"
	codeRateLimited       = "RATE_LIMITED"
	codeAccountLocked     = "ACCOUNT_LOCKED"
	codeConflict          = "CONFLICT"
	codeUnauthorized      = "UNAUTHORIZED"
	codeForbidden         = "FORBIDDEN"
	codeMFANotEnrolled    = "MFA_NOT_ENROLLED"
	codeOTPExpired        = "OTP_EXPIRED"
	codeQRSessionExpired  = "QR_SESSION_EXPIRED"
	codeStoreUnavailable  = "STORE_UNAVAILABLE"
	codeDeliveryFailed    = "DELIVERY_FAILED"
	codeInternal          = "INTERNAL_ERROR"
)

func respond(c *gin.Context, httpStatus int, code, message string, data interface{}) {
	status := statusSuccess
	if httpStatus >= http.StatusBadRequest {
		status = statusError
	}
	c.JSON(httpStatus, Envelope{
		Status:    status,
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func respondOK(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, codeOK, "ok", data)
}

func respondBadRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, codeBadRequest, message, nil)
}

// respondError maps engine errors onto the HTTP status and stable code. The
// raw error text never reaches the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authcore.ErrRateLimited):
		respond(c, http.StatusTooManyRequests, codeRateLimited, "too many attempts, retry later", nil)
	case errors.Is(err, authcore.ErrAccountLocked):
		respond(c, http.StatusLocked, codeAccountLocked, "account temporarily locked", nil)
	case errors.Is(err, authcore.ErrOTPExpired):
		respond(c, http.StatusUnauthorized, codeOTPExpired, "code expired or not issued", nil)
	case errors.Is(err, authcore.ErrQRSessionExpired):
		respond(c, http.StatusGone, codeQRSessionExpired, "qr session expired", nil)
	case errors.Is(err, authcore.ErrMFANotEnrolled):
		respond(c, http.StatusConflict, codeMFANotEnrolled, "mfa not enrolled", nil)
	case errors.Is(err, authcore.ErrInvalidCredential):
		respond(c, http.StatusUnauthorized, codeInvalidCredential, "invalid credentials", nil)
	case errors.Is(err, authcore.ErrUnauthorized):
		respond(c, http.StatusUnauthorized, codeUnauthorized, "authentication required", nil)
	case errors.Is(err, authcore.ErrForbidden):
		respond(c, http.StatusForbidden, codeForbidden, "operation not permitted", nil)
	case errors.Is(err, authcore.ErrConflict):
		respond(c, http.StatusConflict, codeConflict, "conflicting state", nil)
	case errors.Is(err, authcore.ErrNotFound):
		respond(c, http.StatusNotFound, codeNotFound, "resource not found", nil)
	case errors.Is(err, authcore.ErrStoreUnavailable):
		respond(c, http.StatusServiceUnavailable, codeStoreUnavailable, "service temporarily degraded", nil)
	case errors.Is(err, authcore.ErrDeliveryFailed):
		respond(c, http.StatusBadGateway, codeDeliveryFailed, "code delivery failed", nil)
	default:
		respond(c, http.StatusInternalServerError, codeInternal, "internal error", nil)
	}
}
