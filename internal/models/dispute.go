package models

import "time"

// DisputeType classifies why a dispute was opened
type DisputeType string

const (
	DisputeNotShipped      DisputeType = "NOT_SHIPPED"
	DisputeTrackingStale   DisputeType = "TRACKING_STALE"
	DisputeDeliveryTimeout DisputeType = "DELIVERY_TIMEOUT"
	DisputeManual          DisputeType = "MANUAL"
)

// DisputeStatus is the lifecycle state of a dispute
type DisputeStatus string

const (
	DisputeStatusPending   DisputeStatus = "pending"
	DisputeStatusOpen      DisputeStatus = "open"
	DisputeStatusResolved  DisputeStatus = "resolved"
	DisputeStatusCancelled DisputeStatus = "cancelled"
)

// DisputeHistoryEntry is an append-only log line
type DisputeHistoryEntry struct {
	At     time.Time `json:"at"`
	Action string    `json:"action"`
	Note   string    `json:"note,omitempty"`
}

// Dispute is a claim opened against a problematic order
type Dispute struct {
	ID          string                `json:"id"`
	OrderID     string                `json:"orderId"`
	CJOrderID   string                `json:"cjOrderId,omitempty"`
	CJDisputeID string                `json:"cjDisputeId,omitempty"`
	Type        DisputeType           `json:"type"`
	Reason      string                `json:"reason"`
	Status      DisputeStatus         `json:"status"`
	Resolution  string                `json:"resolution,omitempty"`
	AutoCreated bool                  `json:"autoCreated"`
	History     []DisputeHistoryEntry `json:"history"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// IsActive reports whether the dispute still blocks a new one for the same order
func (d *Dispute) IsActive() bool {
	return d.Status == DisputeStatusPending || d.Status == DisputeStatusOpen
}

// Log appends a history entry
func (d *Dispute) Log(action, note string, at time.Time) {
	d.History = append(d.History, DisputeHistoryEntry{At: at, Action: action, Note: note})
	d.UpdatedAt = at
}

// DisputeStats holds aggregate dispute counters
type DisputeStats struct {
	Total       int                 `json:"total"`
	Open        int                 `json:"open"`
	Pending     int                 `json:"pending"`
	Resolved    int                 `json:"resolved"`
	Cancelled   int                 `json:"cancelled"`
	AutoCreated int                 `json:"autoCreated"`
	ByType      map[DisputeType]int `json:"byType"`
	LastRun     *time.Time          `json:"lastRun,omitempty"`
}
