package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/services"
)

// statusFor maps business errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case services.IsNotFound(err), errors.Is(err, services.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidOrderRequest),
		errors.Is(err, services.ErrInvalidDisputeRequest),
		errors.Is(err, services.ErrInvalidWebhook):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrOrderNotCancellable),
		errors.Is(err, services.ErrDisputeExists),
		errors.Is(err, services.ErrDisputeClosed),
		errors.Is(err, services.ErrScanInProgress),
		errors.Is(err, services.ErrJobRunning),
		errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// queryInt reads a non-negative integer query parameter
func queryInt(c *gin.Context, key string, defaultValue int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return defaultValue
	}
	return v
}
