package models

import "time"

// DisabledReason explains why a catalog item is not sellable
type DisabledReason string

const (
	DisabledOutOfStock DisabledReason = "out_of_stock"
	DisabledManual     DisabledReason = "manual"
)

// Pricing is the computed price block of a catalog item.
// Costs are in USD, retail and margin in the storefront currency (EUR).
type Pricing struct {
	WholesaleCost    float64 `json:"wholesaleCost"`
	ShippingCost     float64 `json:"shippingCost"`
	LandedCost       float64 `json:"landedCost"`
	RetailPrice      float64 `json:"retailPrice"`
	Margin           float64 `json:"margin"`
	MarginPercent    float64 `json:"marginPercent"`
	OpportunityScore float64 `json:"opportunityScore"`
	FreeShipping     bool    `json:"freeShipping"`
}

// ShippingInfo is the cheapest qualifying shipping option for an item
type ShippingInfo struct {
	Method   string  `json:"method"`
	Cost     float64 `json:"cost"`
	LeadTime string  `json:"leadTime"`
}

// CatalogItem is a supplier product admitted into the sellable catalog
type CatalogItem struct {
	PID         string   `json:"pid"`
	VID         string   `json:"vid,omitempty"`
	NameEn      string   `json:"nameEn"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tag         string   `json:"tag"`
	AccentColor string   `json:"accentColor"`
	Image       string   `json:"image"`
	Gallery     []string `json:"gallery,omitempty"`
	Keyword     string   `json:"keyword,omitempty"`

	Pricing  Pricing      `json:"pricing"`
	Shipping ShippingInfo `json:"shipping"`

	Fingerprint string `json:"fingerprint"`

	Disabled       bool           `json:"disabled"`
	DisabledReason DisabledReason `json:"disabledReason,omitempty"`
	DisabledAt     *time.Time     `json:"disabledAt,omitempty"`

	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Score returns the opportunity score used for ranking and eviction
func (i *CatalogItem) Score() float64 {
	return i.Pricing.OpportunityScore
}

// Disable marks the item unsellable for the given reason
func (i *CatalogItem) Disable(reason DisabledReason, at time.Time) {
	i.Disabled = true
	i.DisabledReason = reason
	i.DisabledAt = &at
	i.UpdatedAt = at
}

// Enable clears the disabled state
func (i *CatalogItem) Enable(at time.Time) {
	i.Disabled = false
	i.DisabledReason = ""
	i.DisabledAt = nil
	i.UpdatedAt = at
}

// CatalogStats aggregates the current catalog
type CatalogStats struct {
	Count      int            `json:"count"`
	Enabled    int            `json:"enabled"`
	AvgScore   float64        `json:"avgScore"`
	AvgMargin  float64        `json:"avgMargin"`
	MinPrice   float64        `json:"minPrice"`
	MaxPrice   float64        `json:"maxPrice"`
	Categories map[string]int `json:"categories"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// ScanRun records the outcome of one catalog sweep
type ScanRun struct {
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Trigger    string         `json:"trigger"`
	Keywords   int            `json:"keywords"`
	Searched   int            `json:"searched"`
	Analyzed   int            `json:"analyzed"`
	Admitted   int            `json:"admitted"`
	Upgraded   int            `json:"upgraded"`
	Discarded  int            `json:"discarded"`
	Rejected   map[string]int `json:"rejected,omitempty"`
	Errors     int            `json:"errors"`
	Evicted    int            `json:"evicted"`
	Total      int            `json:"total"`
}
