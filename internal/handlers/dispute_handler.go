package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/services"
)

// DisputeHandler handles dispute endpoints
type DisputeHandler struct {
	disputes *services.DisputeManager
}

// NewDisputeHandler creates a new dispute handler
func NewDisputeHandler(disputes *services.DisputeManager) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// ListDisputes lists disputes, newest first
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
	filter := services.DisputeFilter{
		Status:  models.DisputeStatus(c.Query("status")),
		Type:    models.DisputeType(c.Query("type")),
		OrderID: c.Query("orderId"),
		Limit:   queryInt(c, "limit", 50),
		Offset:  queryInt(c, "offset", 0),
	}
	disputes, total := h.disputes.GetDisputes(filter)
	c.JSON(http.StatusOK, gin.H{
		"data":   disputes,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetDispute returns a single dispute
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	dispute, err := h.disputes.GetDispute(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dispute})
}

// GetStats returns dispute counters
func (h *DisputeHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.disputes.GetStats()})
}

// OpenDispute opens a dispute on request
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	var req services.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dispute, err := h.disputes.OpenDispute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": dispute})
}

// CancelDispute withdraws an active dispute
func (h *DisputeHandler) CancelDispute(c *gin.Context) {
	dispute, err := h.disputes.CancelDispute(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dispute})
}
