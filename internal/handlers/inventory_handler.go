package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supplier-engine-service/internal/services"
)

// InventoryHandler handles stock monitor endpoints
type InventoryHandler struct {
	monitor *services.InventoryMonitor
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(monitor *services.InventoryMonitor) *InventoryHandler {
	return &InventoryHandler{monitor: monitor}
}

// GetStats returns the result of the last stock check
func (h *InventoryHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.monitor.GetInventoryStats()})
}

// ListAlerts returns recent inventory alerts
func (h *InventoryHandler) ListAlerts(c *gin.Context) {
	alerts := h.monitor.GetAlerts(queryInt(c, "limit", 50))
	c.JSON(http.StatusOK, gin.H{"data": alerts, "total": len(alerts)})
}

// GetRecord returns the last stock reading for a product
func (h *InventoryHandler) GetRecord(c *gin.Context) {
	record, err := h.monitor.GetRecord(c.Param("pid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}
