package models

import (
	"encoding/json"
	"time"
)

// WebhookType is the supplier's notification topic
type WebhookType string

const (
	WebhookProduct        WebhookType = "PRODUCT"
	WebhookVariant        WebhookType = "VARIANT"
	WebhookStock          WebhookType = "STOCK"
	WebhookOrder          WebhookType = "ORDER"
	WebhookOrderSplit     WebhookType = "ORDERSPLIT"
	WebhookLogistic       WebhookType = "LOGISTIC"
	WebhookSourcingCreate WebhookType = "SOURCINGCREATE"
)

// IsKnown reports whether the type is one the router accepts
func (t WebhookType) IsKnown() bool {
	switch t {
	case WebhookProduct, WebhookVariant, WebhookStock, WebhookOrder,
		WebhookOrderSplit, WebhookLogistic, WebhookSourcingCreate:
		return true
	}
	return false
}

// WebhookEnvelope is the inbound notification body
type WebhookEnvelope struct {
	MessageID   string          `json:"messageId" binding:"required"`
	Type        WebhookType     `json:"type" binding:"required"`
	MessageType string          `json:"messageType"`
	Params      json.RawMessage `json:"params"`
}

// WebhookParams holds the identifiers the router looks for inside params
type WebhookParams struct {
	PID            string `json:"pid"`
	VID            string `json:"vid"`
	OrderID        string `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	TrackingNumber string `json:"trackingNumber"`
}

// ParseParams decodes the known identifiers, tolerating absent or odd params
func (e *WebhookEnvelope) ParseParams() WebhookParams {
	var p WebhookParams
	if len(e.Params) > 0 {
		_ = json.Unmarshal(e.Params, &p)
	}
	return p
}

// WebhookEventRecord is the processing log kept for recent events
type WebhookEventRecord struct {
	MessageID   string      `json:"messageId"`
	Type        WebhookType `json:"type"`
	MessageType string      `json:"messageType,omitempty"`
	Action      string      `json:"action"`
	Error       string      `json:"error,omitempty"`
	ReceivedAt  time.Time   `json:"receivedAt"`
	ProcessedAt *time.Time  `json:"processedAt,omitempty"`
}

// WebhookStats counts inbound events
type WebhookStats struct {
	Received   int64 `json:"received"`
	Duplicates int64 `json:"duplicates"`
	Dropped    int64 `json:"dropped"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Queued     int   `json:"queued"`
}
