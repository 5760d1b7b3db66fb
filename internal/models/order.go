package models

import "time"

// OrderStatus represents the fulfillment state of a supplier order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusCreated    OrderStatus = "created"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusInTransit  OrderStatus = "in_transit"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusDisputed   OrderStatus = "disputed"
)

// Customer holds the shipping and contact fields of an order
type Customer struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	Zip         string `json:"zip"`
	CountryCode string `json:"countryCode,omitempty"`
}

// OrderItem is a single purchased line
type OrderItem struct {
	PID         string  `json:"pid"`
	VID         string  `json:"vid"`
	Name        string  `json:"name,omitempty"`
	Quantity    int     `json:"quantity"`
	RetailPrice float64 `json:"retailPrice"`
}

// TrackingEvent is one entry in a shipment's tracking history
type TrackingEvent struct {
	Date     string `json:"date"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status"`
}

// Order is a purchase fulfilled by the supplier
type Order struct {
	ID              string          `json:"id"`
	CJOrderID       string          `json:"cjOrderId,omitempty"`
	Status          OrderStatus     `json:"status"`
	Customer        Customer        `json:"customer"`
	ShippingCountry string          `json:"shippingCountry"`
	Items           []OrderItem     `json:"items"`
	RetailTotal     float64         `json:"retailTotal"`
	SupplierCost    float64         `json:"supplierCost"`
	LogisticName    string          `json:"logisticName,omitempty"`
	TrackingNumber  string          `json:"trackingNumber,omitempty"`
	TrackingURL     string          `json:"trackingUrl,omitempty"`
	TrackingHistory []TrackingEvent `json:"trackingHistory,omitempty"`
	Error           string          `json:"error,omitempty"`
	RetryCount      int             `json:"retryCount"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	ShippedAt       *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
}

// OrderHistoryEntry records a single status change
type OrderHistoryEntry struct {
	OrderID string      `json:"orderId"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
	Note    string      `json:"note,omitempty"`
	At      time.Time   `json:"at"`
}

// SetSupplierID records the supplier order id. It is set once and never replaced.
func (o *Order) SetSupplierID(id string) bool {
	if o.CJOrderID != "" || id == "" {
		return false
	}
	o.CJOrderID = id
	return true
}

// TransitionTo moves the order to the given status, rejecting edges
// that are not in ValidOrderTransitions.
func (o *Order) TransitionTo(to OrderStatus, note string, at time.Time) (*OrderHistoryEntry, error) {
	if err := ValidateOrderStatusTransition(o.Status, to); err != nil {
		return nil, err
	}
	entry := &OrderHistoryEntry{OrderID: o.ID, From: o.Status, To: to, Note: note, At: at}
	o.Status = to
	o.UpdatedAt = at
	switch to {
	case OrderStatusPaid:
		o.PaidAt = &at
	case OrderStatusShipped:
		if o.ShippedAt == nil {
			o.ShippedAt = &at
		}
	case OrderStatusDelivered:
		o.DeliveredAt = &at
	}
	return entry, nil
}

// Cancellable reports whether the order may be cancelled locally. A parcel
// that carries tracking or a ship date has left the supplier whatever the
// current status says.
func (o *Order) Cancellable() bool {
	if o.TrackingNumber != "" || o.ShippedAt != nil {
		return false
	}
	return IsCancellable(o.Status)
}

// LatestTrackingTime returns the time of the most recent tracking event,
// or false when no event carries a parseable date.
func (o *Order) LatestTrackingTime() (time.Time, bool) {
	var latest time.Time
	for _, ev := range o.TrackingHistory {
		t, ok := ParseTrackingDate(ev.Date)
		if ok && t.After(latest) {
			latest = t
		}
	}
	return latest, !latest.IsZero()
}

// ParseTrackingDate accepts the date layouts the supplier uses for tracking events
func ParseTrackingDate(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// OrderStats aggregates the order book
type OrderStats struct {
	Total        int                 `json:"total"`
	ByStatus     map[OrderStatus]int `json:"byStatus"`
	Revenue      float64             `json:"revenue"`
	SupplierCost float64             `json:"supplierCost"`
	Profit       float64             `json:"profit"`
	Balance      *float64            `json:"balance,omitempty"`
	LastCycle    *time.Time          `json:"lastCycle,omitempty"`
}
