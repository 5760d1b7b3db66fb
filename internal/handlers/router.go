package handlers

import (
	"github.com/gin-gonic/gin"

	"supplier-engine-service/internal/middleware"
)

// Handlers groups the control plane handlers
type Handlers struct {
	Health    *HealthHandler
	Catalog   *CatalogHandler
	Orders    *OrderHandler
	Inventory *InventoryHandler
	Disputes  *DisputeHandler
	Triggers  *TriggerHandler
	Webhooks  *WebhookHandler
}

// Register mounts every route on the router
func (h *Handlers) Register(router *gin.Engine, webhookSecret string) {
	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)

	v1 := router.Group("/api/v1")
	{
		catalog := v1.Group("/catalog")
		{
			catalog.GET("", h.Catalog.ListItems)
			catalog.GET("/stats", h.Catalog.GetStats)
			catalog.GET("/runs", h.Catalog.GetRuns)
			catalog.GET("/:pid", h.Catalog.GetItem)
			catalog.POST("/:pid/disable", h.Catalog.DisableItem)
			catalog.POST("/:pid/enable", h.Catalog.EnableItem)
		}

		orders := v1.Group("/orders")
		{
			orders.POST("", h.Orders.CreateOrder)
			orders.GET("", h.Orders.ListOrders)
			orders.GET("/stats", h.Orders.GetStats)
			orders.GET("/history", h.Orders.GetHistory)
			orders.GET("/:id", h.Orders.GetOrder)
			orders.POST("/:id/cancel", h.Orders.CancelOrder)
		}

		inventory := v1.Group("/inventory")
		{
			inventory.GET("/stats", h.Inventory.GetStats)
			inventory.GET("/alerts", h.Inventory.ListAlerts)
			inventory.GET("/:pid", h.Inventory.GetRecord)
		}

		disputes := v1.Group("/disputes")
		{
			disputes.GET("", h.Disputes.ListDisputes)
			disputes.POST("", h.Disputes.OpenDispute)
			disputes.GET("/stats", h.Disputes.GetStats)
			disputes.GET("/:id", h.Disputes.GetDispute)
			disputes.POST("/:id/cancel", h.Disputes.CancelDispute)
		}

		triggers := v1.Group("/triggers")
		{
			triggers.GET("/status", h.Triggers.Status)
			triggers.POST("/:job", h.Triggers.Trigger)
		}

		v1.GET("/webhooks/events", h.Webhooks.ListEvents)
	}

	// Supplier callbacks, guarded by the shared secret when one is configured
	webhooks := router.Group("/api/v1/webhooks")
	webhooks.Use(middleware.WebhookSecret(webhookSecret))
	{
		webhooks.POST("/supplier", h.Webhooks.HandleSupplierWebhook)
	}
}
