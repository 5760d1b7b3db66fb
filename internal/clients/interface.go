package clients

import (
	"context"
	"time"
)

// SupplierAPI defines the operations the engine performs against the
// wholesale supplier. A single implementation is constructed at startup
// and shared by every job.
type SupplierAPI interface {
	// Catalog
	SearchProducts(ctx context.Context, opts *SearchOptions) (*ProductsResult, error)
	GetProduct(ctx context.Context, pid string) (*ProductDetail, error)
	GetVariants(ctx context.Context, pid string) ([]Variant, error)
	QuoteFreight(ctx context.Context, req *FreightRequest) ([]FreightOption, error)

	// Inventory
	GetStock(ctx context.Context, pid, vid string) ([]StockEntry, error)

	// Orders
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error)
	ConfirmOrder(ctx context.Context, orderID string) error
	GetBalance(ctx context.Context) (float64, error)
	PayOrder(ctx context.Context, orderID string) error
	GetOrderDetail(ctx context.Context, orderID string) (*OrderDetail, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetTracking(ctx context.Context, trackingNumber string) (*TrackingInfo, error)

	// Disputes
	CreateDispute(ctx context.Context, req *CreateDisputeRequest) (*RemoteDispute, error)
	ListDisputes(ctx context.Context) ([]RemoteDispute, error)
	CancelDispute(ctx context.Context, disputeID string) error
}

// SearchOptions contains catalog search filters and pagination
type SearchOptions struct {
	Keyword  string
	Page     int
	PageSize int
}

// ProductsResult contains paginated search results
type ProductsResult struct {
	Products []ExternalProduct
	Page     int
	PageSize int
	Total    int
}

// ExternalProduct is a search hit from the supplier catalog
type ExternalProduct struct {
	PID          string   `json:"pid"`
	NameEn       string   `json:"nameEn"`
	SKU          string   `json:"sku,omitempty"`
	SellPrice    float64  `json:"sellPrice"` // USD, lowest variant price
	Image        string   `json:"image"`
	Gallery      []string `json:"gallery,omitempty"`
	CategoryName string   `json:"categoryName,omitempty"`
}

// ProductDetail is the full product record
type ProductDetail struct {
	ExternalProduct
	Description string    `json:"description,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
}

// Variant represents a purchasable product variant
type Variant struct {
	VID       string  `json:"vid"`
	PID       string  `json:"pid"`
	NameEn    string  `json:"nameEn"`
	SKU       string  `json:"sku,omitempty"`
	SellPrice float64 `json:"sellPrice"`
	Image     string  `json:"image,omitempty"`
}

// FreightRequest asks for shipping quotes for a variant
type FreightRequest struct {
	StartCountryCode string
	EndCountryCode   string
	VID              string
	Quantity         int
}

// FreightOption is one shipping method quote
type FreightOption struct {
	LogisticName string  `json:"logisticName"`
	Price        float64 `json:"logisticPrice"` // USD
	Aging        string  `json:"logisticAging"`
}

// StockEntry is the stock held by one warehouse
type StockEntry struct {
	VID         string `json:"vid"`
	AreaID      string `json:"areaId"`
	Area        string `json:"areaEn"`
	CountryCode string `json:"countryCode"`
	Quantity    int    `json:"storageNum"`
}

// OrderProduct is a line of a supplier order
type OrderProduct struct {
	VID      string `json:"vid"`
	Quantity int    `json:"quantity"`
}

// CreateOrderRequest submits an order to the supplier. OrderNumber is the
// local order id and doubles as the idempotency key on the supplier side.
type CreateOrderRequest struct {
	OrderNumber         string         `json:"orderNumber"`
	ShippingCountryCode string         `json:"shippingCountryCode"`
	ShippingProvince    string         `json:"shippingProvince,omitempty"`
	ShippingCity        string         `json:"shippingCity"`
	ShippingAddress     string         `json:"shippingAddress"`
	ShippingAddress2    string         `json:"shippingAddress2,omitempty"`
	ShippingCustomer    string         `json:"shippingCustomerName"`
	ShippingZip         string         `json:"shippingZip"`
	ShippingPhone       string         `json:"shippingPhone"`
	Email               string         `json:"email,omitempty"`
	LogisticName        string         `json:"logisticName"`
	FromCountryCode     string         `json:"fromCountryCode"`
	Products            []OrderProduct `json:"products"`
}

// CreateOrderResult is returned by a successful submission
type CreateOrderResult struct {
	OrderID     string  `json:"orderId"`
	OrderAmount float64 `json:"orderAmount"` // USD
}

// OrderDetail is the supplier's view of an order
type OrderDetail struct {
	OrderID        string  `json:"orderId"`
	OrderNumber    string  `json:"orderNumber"`
	Status         string  `json:"orderStatus"`
	TrackingNumber string  `json:"trackNumber"`
	TrackingURL    string  `json:"trackingUrl,omitempty"`
	LogisticName   string  `json:"logisticName"`
	OrderAmount    float64 `json:"orderAmount"`
}

// TrackingEvent is one carrier scan
type TrackingEvent struct {
	Date     string `json:"date"`
	Location string `json:"location"`
	Status   string `json:"status"`
}

// TrackingInfo is the tracking trail of a parcel
type TrackingInfo struct {
	TrackingNumber string          `json:"trackingNumber"`
	Status         string          `json:"trackingStatus"`
	LogisticName   string          `json:"logisticName"`
	Events         []TrackingEvent `json:"events"`
}

// CreateDisputeRequest opens a dispute with the supplier
type CreateDisputeRequest struct {
	OrderID           string `json:"orderId"`
	BusinessDisputeID string `json:"businessDisputeId"`
	Reason            string `json:"disputeReason"`
	ExpectType        int    `json:"expectType"` // 1 refund, 2 reissue
	Message           string `json:"messageText"`
}

// RemoteDispute is the supplier's view of a dispute
type RemoteDispute struct {
	ID                string `json:"id"`
	OrderID           string `json:"orderId"`
	BusinessDisputeID string `json:"businessDisputeId"`
	Status            string `json:"status"`
	Resolution        string `json:"resolution,omitempty"`
}

// TokenResult contains the result of an authentication or refresh call
type TokenResult struct {
	AccessToken      string
	ExpiresAt        time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
