package models

import "time"

// InventoryRecord is the last known stock snapshot for a product
type InventoryRecord struct {
	PID         string    `json:"pid"`
	VID         string    `json:"vid,omitempty"`
	Quantity    int       `json:"quantity"`
	InStock     bool      `json:"inStock"`
	LastCost    float64   `json:"lastCost,omitempty"`
	LastChecked time.Time `json:"lastChecked"`
}

// AlertType classifies inventory alerts
type AlertType string

const (
	AlertLowStock    AlertType = "low_stock"
	AlertOutOfStock  AlertType = "out_of_stock"
	AlertBackInStock AlertType = "back_in_stock"
	AlertPriceChange AlertType = "price_change"
)

// InventoryAlert is an alert-only signal raised by the stock monitor
type InventoryAlert struct {
	PID       string    `json:"pid"`
	Name      string    `json:"name,omitempty"`
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Quantity  int       `json:"quantity"`
	OldCost   float64   `json:"oldCost,omitempty"`
	NewCost   float64   `json:"newCost,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// InventoryStats summarizes the last stock check
type InventoryStats struct {
	Tracked            int           `json:"tracked"`
	InStock            int           `json:"inStock"`
	OutOfStock         int           `json:"outOfStock"`
	LowStock           int           `json:"lowStock"`
	DisabledOutOfStock int           `json:"disabledOutOfStock"`
	Reenabled          int           `json:"reenabled"`
	PriceChanges       int           `json:"priceChanges"`
	Errors             int           `json:"errors"`
	LastRun            *time.Time    `json:"lastRun,omitempty"`
	LastDuration       time.Duration `json:"lastDuration"`
}
