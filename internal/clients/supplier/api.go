package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"supplier-engine-service/internal/clients"
)

const (
	defaultPageSize = 20
	maxDisputePages = 20
)

// Ensure Client implements the supplier API interface
var _ clients.SupplierAPI = (*Client)(nil)

// flexPrice decodes supplier prices sent either as numbers or as strings.
// Range strings like "1.20 -- 3.40" resolve to their first number.
type flexPrice float64

var priceNumber = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*p = 0
		return nil
	}
	if data[0] != '"' {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*p = flexPrice(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	m := priceNumber.FindString(s)
	if m == "" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", s, err)
	}
	*p = flexPrice(f)
	return nil
}

// flexImages decodes an image field that may be a bare URL, a JSON array
// encoded as a string, or a real array.
type flexImages []string

func (f *flexImages) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = nil
		return nil
	}
	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*f = cleanImages(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			*f = cleanImages(list)
			return nil
		}
	}
	*f = cleanImages([]string{s})
	return nil
}

func cleanImages(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (f flexImages) first() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// Wire shapes of the supplier payloads

type productWire struct {
	PID             string        `json:"pid"`
	ProductNameEn   string        `json:"productNameEn"`
	ProductSKU      string        `json:"productSku"`
	SellPrice       flexPrice     `json:"sellPrice"`
	ProductImage    flexImages    `json:"productImage"`
	ProductImageSet flexImages    `json:"productImageSet"`
	CategoryName    string        `json:"categoryName"`
	Description     string        `json:"description"`
	Variants        []variantWire `json:"variants"`
}

func (w *productWire) toExternal() clients.ExternalProduct {
	gallery := []string(w.ProductImageSet)
	if len(gallery) == 0 {
		gallery = []string(w.ProductImage)
	}
	image := w.ProductImage.first()
	if image == "" && len(gallery) > 0 {
		image = gallery[0]
	}
	return clients.ExternalProduct{
		PID:          w.PID,
		NameEn:       w.ProductNameEn,
		SKU:          w.ProductSKU,
		SellPrice:    float64(w.SellPrice),
		Image:        image,
		Gallery:      gallery,
		CategoryName: w.CategoryName,
	}
}

type variantWire struct {
	VID              string     `json:"vid"`
	PID              string     `json:"pid"`
	VariantNameEn    string     `json:"variantNameEn"`
	VariantSKU       string     `json:"variantSku"`
	VariantSellPrice flexPrice  `json:"variantSellPrice"`
	VariantImage     flexImages `json:"variantImage"`
}

func (w *variantWire) toVariant() clients.Variant {
	return clients.Variant{
		VID:       w.VID,
		PID:       w.PID,
		NameEn:    w.VariantNameEn,
		SKU:       w.VariantSKU,
		SellPrice: float64(w.VariantSellPrice),
		Image:     w.VariantImage.first(),
	}
}

type productPage struct {
	PageNum  int           `json:"pageNum"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
	List     []productWire `json:"list"`
}

type freightWire struct {
	LogisticName  string    `json:"logisticName"`
	LogisticPrice flexPrice `json:"logisticPrice"`
	LogisticAging string    `json:"logisticAging"`
}

type orderDetailWire struct {
	OrderID      string    `json:"orderId"`
	OrderNum     string    `json:"orderNum"`
	OrderNumber  string    `json:"orderNumber"`
	OrderStatus  string    `json:"orderStatus"`
	TrackNumber  string    `json:"trackNumber"`
	TrackingURL  string    `json:"trackingUrl"`
	LogisticName string    `json:"logisticName"`
	OrderAmount  flexPrice `json:"orderAmount"`
}

type routeWire struct {
	AcceptTime    string `json:"acceptTime"`
	AcceptAddress string `json:"acceptAddress"`
	Remark        string `json:"remark"`
}

type trackWire struct {
	TrackingNumber string      `json:"trackingNumber"`
	LogisticName   string      `json:"logisticName"`
	TrackingStatus string      `json:"trackingStatus"`
	Routes         []routeWire `json:"routes"`
}

type disputeWire struct {
	ID                string `json:"id"`
	DisputeID         string `json:"disputeId"`
	OrderID           string `json:"orderId"`
	BusinessDisputeID string `json:"businessDisputeId"`
	Status            string `json:"status"`
	Resolution        string `json:"resolution"`
}

func (w *disputeWire) toRemote() clients.RemoteDispute {
	id := w.ID
	if id == "" {
		id = w.DisputeID
	}
	return clients.RemoteDispute{
		ID:                id,
		OrderID:           w.OrderID,
		BusinessDisputeID: w.BusinessDisputeID,
		Status:            w.Status,
		Resolution:        w.Resolution,
	}
}

type disputePage struct {
	PageNum int           `json:"pageNum"`
	Total   int           `json:"total"`
	List    []disputeWire `json:"list"`
}

// SearchProducts lists catalog products matching a keyword
func (c *Client) SearchProducts(ctx context.Context, opts *clients.SearchOptions) (*clients.ProductsResult, error) {
	page, size := 1, defaultPageSize
	q := url.Values{}
	if opts != nil {
		if opts.Page > 0 {
			page = opts.Page
		}
		if opts.PageSize > 0 {
			size = opts.PageSize
		}
		if opts.Keyword != "" {
			q.Set("productNameEn", opts.Keyword)
		}
	}
	q.Set("pageNum", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(size))

	var data productPage
	if err := c.Call(ctx, http.MethodGet, "/product/list", q, nil, &data); err != nil {
		return nil, err
	}

	result := &clients.ProductsResult{
		Products: make([]clients.ExternalProduct, 0, len(data.List)),
		Page:     page,
		PageSize: size,
		Total:    data.Total,
	}
	for i := range data.List {
		result.Products = append(result.Products, data.List[i].toExternal())
	}
	return result, nil
}

// GetProduct fetches the full product record
func (c *Client) GetProduct(ctx context.Context, pid string) (*clients.ProductDetail, error) {
	var data productWire
	if err := c.Call(ctx, http.MethodGet, "/product/query", url.Values{"pid": {pid}}, nil, &data); err != nil {
		return nil, err
	}
	detail := &clients.ProductDetail{
		ExternalProduct: data.toExternal(),
		Description:     data.Description,
	}
	if detail.PID == "" {
		detail.PID = pid
	}
	for i := range data.Variants {
		detail.Variants = append(detail.Variants, data.Variants[i].toVariant())
	}
	return detail, nil
}

// GetVariants lists the variants of a product
func (c *Client) GetVariants(ctx context.Context, pid string) ([]clients.Variant, error) {
	var data []variantWire
	if err := c.Call(ctx, http.MethodGet, "/product/variant/query", url.Values{"pid": {pid}}, nil, &data); err != nil {
		return nil, err
	}
	variants := make([]clients.Variant, 0, len(data))
	for i := range data {
		variants = append(variants, data[i].toVariant())
	}
	return variants, nil
}

// QuoteFreight returns the shipping options for one variant
func (c *Client) QuoteFreight(ctx context.Context, req *clients.FreightRequest) ([]clients.FreightOption, error) {
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	body := map[string]interface{}{
		"startCountryCode": req.StartCountryCode,
		"endCountryCode":   req.EndCountryCode,
		"products": []map[string]interface{}{
			{"vid": req.VID, "quantity": qty},
		},
	}

	var data []freightWire
	if err := c.Call(ctx, http.MethodPost, "/logistic/freightCalculate", nil, body, &data); err != nil {
		return nil, err
	}
	options := make([]clients.FreightOption, 0, len(data))
	for _, w := range data {
		options = append(options, clients.FreightOption{
			LogisticName: w.LogisticName,
			Price:        float64(w.LogisticPrice),
			Aging:        w.LogisticAging,
		})
	}
	return options, nil
}

// GetStock returns per-warehouse stock, by variant when vid is set
func (c *Client) GetStock(ctx context.Context, pid, vid string) ([]clients.StockEntry, error) {
	path, q := "/product/stock/queryByPid", url.Values{"pid": {pid}}
	if vid != "" {
		path, q = "/product/stock/queryByVid", url.Values{"vid": {vid}}
	}

	var data []clients.StockEntry
	if err := c.Call(ctx, http.MethodGet, path, q, nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// CreateOrder submits an order. The local order id travels as orderNumber
// so a resubmission after a lost response is recognised by the supplier.
func (c *Client) CreateOrder(ctx context.Context, req *clients.CreateOrderRequest) (*clients.CreateOrderResult, error) {
	var data struct {
		OrderID     string    `json:"orderId"`
		OrderAmount flexPrice `json:"orderAmount"`
	}
	if err := c.Call(ctx, http.MethodPost, "/shopping/order/createOrderV2", nil, req, &data); err != nil {
		return nil, err
	}
	if data.OrderID == "" {
		return nil, fmt.Errorf("supplier accepted order %s without an order id", req.OrderNumber)
	}
	return &clients.CreateOrderResult{
		OrderID:     data.OrderID,
		OrderAmount: float64(data.OrderAmount),
	}, nil
}

// ConfirmOrder confirms a created order so it can be paid
func (c *Client) ConfirmOrder(ctx context.Context, orderID string) error {
	return c.Call(ctx, http.MethodPatch, "/shopping/order/confirmOrder", nil,
		map[string]string{"orderId": orderID}, nil)
}

// GetBalance returns the prepaid account balance in USD
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	var data struct {
		Amount flexPrice `json:"amount"`
	}
	if err := c.Call(ctx, http.MethodGet, "/shopping/pay/getBalance", nil, nil, &data); err != nil {
		return 0, err
	}
	return float64(data.Amount), nil
}

// PayOrder pays a confirmed order from the account balance
func (c *Client) PayOrder(ctx context.Context, orderID string) error {
	return c.Call(ctx, http.MethodPost, "/shopping/pay/payBalance", nil,
		map[string]string{"orderId": orderID}, nil)
}

// GetOrderDetail returns the supplier's view of an order
func (c *Client) GetOrderDetail(ctx context.Context, orderID string) (*clients.OrderDetail, error) {
	var data orderDetailWire
	if err := c.Call(ctx, http.MethodGet, "/shopping/order/getOrderDetail", url.Values{"orderId": {orderID}}, nil, &data); err != nil {
		return nil, err
	}
	number := data.OrderNumber
	if number == "" {
		number = data.OrderNum
	}
	id := data.OrderID
	if id == "" {
		id = orderID
	}
	return &clients.OrderDetail{
		OrderID:        id,
		OrderNumber:    number,
		Status:         strings.ToUpper(strings.TrimSpace(data.OrderStatus)),
		TrackingNumber: strings.TrimSpace(data.TrackNumber),
		TrackingURL:    data.TrackingURL,
		LogisticName:   data.LogisticName,
		OrderAmount:    float64(data.OrderAmount),
	}, nil
}

// CancelOrder deletes an order that has not been paid
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.Call(ctx, http.MethodDelete, "/shopping/order/deleteOrder", url.Values{"orderId": {orderID}}, nil, nil)
}

// GetTracking returns the carrier trail of a parcel
func (c *Client) GetTracking(ctx context.Context, trackingNumber string) (*clients.TrackingInfo, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, http.MethodGet, "/logistic/trackInfo", url.Values{"trackNumber": {trackingNumber}}, nil, &raw); err != nil {
		return nil, err
	}

	// The endpoint answers with either a single record or a list of them
	var wire trackWire
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []trackWire
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("failed to parse tracking response: %w", err)
		}
		if len(list) > 0 {
			wire = list[0]
		}
	} else if len(raw) > 0 {
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, fmt.Errorf("failed to parse tracking response: %w", err)
		}
	}

	info := &clients.TrackingInfo{
		TrackingNumber: wire.TrackingNumber,
		Status:         wire.TrackingStatus,
		LogisticName:   wire.LogisticName,
		Events:         make([]clients.TrackingEvent, 0, len(wire.Routes)),
	}
	if info.TrackingNumber == "" {
		info.TrackingNumber = trackingNumber
	}
	for _, r := range wire.Routes {
		info.Events = append(info.Events, clients.TrackingEvent{
			Date:     r.AcceptTime,
			Location: r.AcceptAddress,
			Status:   r.Remark,
		})
	}
	return info, nil
}

// CreateDispute opens a dispute for a supplier order
func (c *Client) CreateDispute(ctx context.Context, req *clients.CreateDisputeRequest) (*clients.RemoteDispute, error) {
	var data disputeWire
	if err := c.Call(ctx, http.MethodPost, "/disputes/create", nil, req, &data); err != nil {
		return nil, err
	}
	remote := data.toRemote()
	if remote.OrderID == "" {
		remote.OrderID = req.OrderID
	}
	if remote.BusinessDisputeID == "" {
		remote.BusinessDisputeID = req.BusinessDisputeID
	}
	return &remote, nil
}

// ListDisputes pages through every dispute known to the supplier
func (c *Client) ListDisputes(ctx context.Context) ([]clients.RemoteDispute, error) {
	var all []clients.RemoteDispute
	for page := 1; page <= maxDisputePages; page++ {
		q := url.Values{
			"pageNum":  {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(defaultPageSize)},
		}
		var data disputePage
		if err := c.Call(ctx, http.MethodGet, "/disputes/getDisputeList", q, nil, &data); err != nil {
			return nil, err
		}
		for i := range data.List {
			all = append(all, data.List[i].toRemote())
		}
		if len(data.List) < defaultPageSize || (data.Total > 0 && len(all) >= data.Total) {
			break
		}
	}
	return all, nil
}

// CancelDispute withdraws a dispute on the supplier side
func (c *Client) CancelDispute(ctx context.Context, disputeID string) error {
	return c.Call(ctx, http.MethodPost, "/disputes/cancel", nil,
		map[string]string{"disputeId": disputeID}, nil)
}
