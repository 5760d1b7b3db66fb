package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/services"
)

// OrderHandler handles order endpoints
type OrderHandler struct {
	orders *services.OrderManager
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *services.OrderManager) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder records a storefront purchase and submits it to the supplier
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

// ListOrders lists orders, newest first
func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter := services.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		Query:  c.Query("q"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	orders, total := h.orders.ListOrders(filter)
	c.JSON(http.StatusOK, gin.H{
		"data":   orders,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetOrder returns a single order
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// GetStats returns order book statistics
func (h *OrderHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.orders.GetOrderStats()})
}

// GetHistory returns recent status changes
func (h *OrderHandler) GetHistory(c *gin.Context) {
	history := h.orders.GetHistory(queryInt(c, "limit", 100))
	c.JSON(http.StatusOK, gin.H{"data": history, "total": len(history)})
}

// CancelOrder cancels an order that has not shipped
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}
