package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "handlers").Logger()

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

// respondError maps a domain error to its status. Internal causes are logged,
// never returned.
func respondError(c *gin.Context, err error) {
	ae := apperr.As(err)
	status := statusFor(ae.Kind)
	if ae.Kind == apperr.KindInternal {
		logger.Error().Err(ae.Err).
			Str("request_id", requestID(c)).
			Str("path", c.FullPath()).
			Msg(ae.Message)
	}
	body := envelope{Success: false, Message: ae.Message}
	if ae.Stock != nil {
		body.Data = ae.Stock
	}
	c.AbortWithStatusJSON(status, body)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation, apperr.KindEmptyCart:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientStock:
		return http.StatusConflict
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// encode renders an envelope once so the same bytes can be stored and sent.
func encode(message string, data any) ([]byte, error) {
	return json.Marshal(envelope{Success: true, Message: message, Data: data})
}
