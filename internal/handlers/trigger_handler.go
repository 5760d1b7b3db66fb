package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supplier-engine-service/internal/clients/supplier"
	"supplier-engine-service/internal/services"
)

// ClientStats exposes the supplier client's request counters
type ClientStats interface {
	Stats() supplier.Stats
}

// TriggerHandler runs scheduled jobs on demand
type TriggerHandler struct {
	scheduler *services.Scheduler
	client    ClientStats
}

// NewTriggerHandler creates a new trigger handler
func NewTriggerHandler(scheduler *services.Scheduler, client ClientStats) *TriggerHandler {
	return &TriggerHandler{scheduler: scheduler, client: client}
}

// Trigger starts the named job in the background
func (h *TriggerHandler) Trigger(c *gin.Context) {
	job := c.Param("job")
	if err := h.scheduler.Trigger(job); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "job started", "job": job})
}

// Status returns scheduler state and supplier client counters
func (h *TriggerHandler) Status(c *gin.Context) {
	resp := gin.H{"jobs": h.scheduler.Status()}
	if h.client != nil {
		resp["client"] = h.client.Stats()
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
