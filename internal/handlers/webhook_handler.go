package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/services"
)

// WebhookHandler handles supplier webhook endpoints
type WebhookHandler struct {
	service    *services.WebhookService
	ackTimeout time.Duration
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service *services.WebhookService, ackTimeout time.Duration) *WebhookHandler {
	if ackTimeout <= 0 {
		ackTimeout = 3 * time.Second
	}
	return &WebhookHandler{service: service, ackTimeout: ackTimeout}
}

// HandleSupplierWebhook accepts a notification and acknowledges it
// before any processing happens
func (h *WebhookHandler) HandleSupplierWebhook(c *gin.Context) {
	var env models.WebhookEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// bounds the idempotency lookup so the supplier gets its ack in time
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.ackTimeout)
	defer cancel()

	accepted, err := h.service.Accept(ctx, &env)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": !accepted})
}

// ListEvents returns recently processed webhooks and the counters
func (h *WebhookHandler) ListEvents(c *gin.Context) {
	events := h.service.RecentEvents(queryInt(c, "limit", 50))
	c.JSON(http.StatusOK, gin.H{
		"data":  events,
		"total": len(events),
		"stats": h.service.Stats(),
	})
}
