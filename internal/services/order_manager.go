package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"supplier-engine-service/internal/clients"
	"supplier-engine-service/internal/events"
	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/pii"
	"supplier-engine-service/internal/repository"
)

// remoteOrderStatus maps supplier order status text to local status.
// Unknown values leave the order unchanged.
var remoteOrderStatus = map[string]models.OrderStatus{
	"CREATED":   models.OrderStatusCreated,
	"IN_CART":   models.OrderStatusCreated,
	"UNPAID":    models.OrderStatusConfirmed,
	"UNSHIPPED": models.OrderStatusProcessing,
	"SHIPPED":   models.OrderStatusShipped,
	"DELIVERED": models.OrderStatusDelivered,
	"CANCELLED": models.OrderStatusCancelled,
}

var deliveredPattern = regexp.MustCompile(`(?i)\bdelivered\b|\bsigned\b|picked[ -]?up|\bcollected\b`)

// OrderManagerConfig controls the order cycle
type OrderManagerConfig struct {
	MaxRetries          int
	LowBalanceThreshold float64
	DefaultLogistic     string
	OriginCountry       string
	DefaultCountry      string
}

// CreateOrderRequest is the storefront's purchase submission
type CreateOrderRequest struct {
	ID              string             `json:"id,omitempty"`
	Customer        models.Customer    `json:"customer"`
	ShippingCountry string             `json:"shippingCountry"`
	Items           []models.OrderItem `json:"items"`
	RetailTotal     float64            `json:"retailTotal"`
	LogisticName    string             `json:"logisticName,omitempty"`
}

// Validate reports the first missing or malformed field
func (r *CreateOrderRequest) Validate() error {
	switch {
	case len(r.Items) == 0:
		return fmt.Errorf("%w: at least one item is required", ErrInvalidOrderRequest)
	case strings.TrimSpace(r.Customer.Name) == "":
		return fmt.Errorf("%w: customer name is required", ErrInvalidOrderRequest)
	case strings.TrimSpace(r.Customer.Address) == "":
		return fmt.Errorf("%w: customer address is required", ErrInvalidOrderRequest)
	case strings.TrimSpace(r.Customer.City) == "":
		return fmt.Errorf("%w: customer city is required", ErrInvalidOrderRequest)
	case strings.TrimSpace(r.Customer.Zip) == "":
		return fmt.Errorf("%w: customer zip is required", ErrInvalidOrderRequest)
	}
	for i, item := range r.Items {
		if item.VID == "" {
			return fmt.Errorf("%w: item %d has no vid", ErrInvalidOrderRequest, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has no quantity", ErrInvalidOrderRequest, i)
		}
	}
	return nil
}

// OrderFilter narrows ListOrders results
type OrderFilter struct {
	Status models.OrderStatus
	Query  string
	Limit  int
	Offset int
}

// CycleSummary counts the work done by one order cycle
type CycleSummary struct {
	Retried           int      `json:"retried"`
	Submitted         int      `json:"submitted"`
	FailedPermanently int      `json:"failedPermanently"`
	Confirmed         int      `json:"confirmed"`
	Paid              int      `json:"paid"`
	SkippedBalance    int      `json:"skippedBalance"`
	Synced            int      `json:"synced"`
	Shipped           int      `json:"shipped"`
	Delivered         int      `json:"delivered"`
	Errors            int      `json:"errors"`
	Balance           *float64 `json:"balance,omitempty"`
}

func (c *CycleSummary) fields() logrus.Fields {
	return logrus.Fields{
		"retried":            c.Retried,
		"submitted":          c.Submitted,
		"failed_permanently": c.FailedPermanently,
		"confirmed":          c.Confirmed,
		"paid":               c.Paid,
		"skipped_balance":    c.SkippedBalance,
		"synced":             c.Synced,
		"shipped":            c.Shipped,
		"delivered":          c.Delivered,
		"errors":             c.Errors,
	}
}

// OrderManager drives purchased orders through supplier fulfillment
type OrderManager struct {
	api       clients.SupplierAPI
	repo      *repository.OrderRepository
	config    OrderManagerConfig
	publisher events.Publisher
	logger    *logrus.Entry
	now       func() time.Time

	// orders currently being submitted, so a cycle never races CreateOrder
	inflight sync.Map
}

// NewOrderManager creates a new order manager
func NewOrderManager(
	api clients.SupplierAPI,
	repo *repository.OrderRepository,
	cfg OrderManagerConfig,
	publisher events.Publisher,
	logger *logrus.Logger,
) *OrderManager {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.OriginCountry == "" {
		cfg.OriginCountry = "CN"
	}
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = "FR"
	}
	return &OrderManager{
		api:       api,
		repo:      repo,
		config:    cfg,
		publisher: publisher,
		logger:    logger.WithField("component", "orders.manager"),
		now:       time.Now,
	}
}

// CreateOrder records the order as pending and submits it to the supplier
// immediately. A failed submission leaves the order pending for the next
// cycle; the error is stored on the order, not returned.
func (m *OrderManager) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	} else if existing, ok := m.repo.Get(id); ok {
		// resubmission of a known id is idempotent
		return &existing, nil
	}

	country := strings.ToUpper(strings.TrimSpace(req.ShippingCountry))
	if country == "" {
		country = strings.ToUpper(req.Customer.CountryCode)
	}
	if country == "" {
		country = m.config.DefaultCountry
	}
	total := req.RetailTotal
	if total <= 0 {
		for _, item := range req.Items {
			total += item.RetailPrice * float64(item.Quantity)
		}
		total = math.Round(total*100) / 100
	}

	now := m.now()
	order := &models.Order{
		ID:              id,
		Status:          models.OrderStatusPending,
		Customer:        req.Customer,
		ShippingCountry: country,
		Items:           append([]models.OrderItem(nil), req.Items...),
		RetailTotal:     total,
		LogisticName:    req.LogisticName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.LogisticName == "" {
		order.LogisticName = m.config.DefaultLogistic
	}

	err := m.repo.Update(ctx, func(s *repository.OrderState) error {
		if _, exists := s.Orders[id]; exists {
			return fmt.Errorf("%w: order %s already exists", ErrInvalidOrderRequest, id)
		}
		s.Orders[id] = order
		s.AppendHistory(models.OrderHistoryEntry{OrderID: id, To: models.OrderStatusPending, Note: "order received", At: now})
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.WithFields(pii.CustomerFields(order.Customer)).
		WithFields(logrus.Fields{"order_id": id, "items": len(order.Items)}).
		Info("Order received")

	_, changes := m.submit(ctx, id)
	m.persist(ctx)
	m.publishChanges(ctx, changes)
	if err := m.publisher.Publish(ctx, events.OrderCreated, map[string]string{"orderId": id}); err != nil {
		m.logger.WithError(err).Warn("Failed to publish order event")
	}

	out, _ := m.repo.Get(id)
	return &out, nil
}

// submit sends a pending order to the supplier. It returns whether the
// supplier accepted it.
func (m *OrderManager) submit(ctx context.Context, id string) (bool, []models.OrderHistoryEntry) {
	if _, busy := m.inflight.LoadOrStore(id, struct{}{}); busy {
		return false, nil
	}
	defer m.inflight.Delete(id)

	order, ok := m.repo.Get(id)
	if !ok || order.Status != models.OrderStatusPending {
		return false, nil
	}

	req := &clients.CreateOrderRequest{
		OrderNumber:         order.ID,
		ShippingCountryCode: order.ShippingCountry,
		ShippingProvince:    order.Customer.Province,
		ShippingCity:        order.Customer.City,
		ShippingAddress:     order.Customer.Address,
		ShippingAddress2:    order.Customer.Address2,
		ShippingCustomer:    order.Customer.Name,
		ShippingZip:         order.Customer.Zip,
		ShippingPhone:       order.Customer.Phone,
		Email:               order.Customer.Email,
		LogisticName:        order.LogisticName,
		FromCountryCode:     m.config.OriginCountry,
	}
	for _, item := range order.Items {
		req.Products = append(req.Products, clients.OrderProduct{VID: item.VID, Quantity: item.Quantity})
	}

	result, err := m.api.CreateOrder(ctx, req)
	var changes []models.OrderHistoryEntry
	m.repo.Apply(func(s *repository.OrderState) {
		o, ok := s.Orders[id]
		if !ok {
			return
		}
		if err != nil {
			o.Error = err.Error()
			o.UpdatedAt = m.now()
			return
		}
		o.SetSupplierID(result.OrderID)
		if result.OrderAmount > 0 {
			o.SupplierCost = result.OrderAmount
		}
		o.Error = ""
		if entry := m.transition(s, o, models.OrderStatusCreated, "submitted to supplier"); entry != nil {
			changes = append(changes, *entry)
		}
	})

	log := m.logger.WithField("order_id", id)
	if err != nil {
		log.WithError(err).Warn("Order submission failed")
		return false, changes
	}
	log.WithField("cj_order_id", result.OrderID).Info("Order submitted")
	return true, changes
}

// transition applies a status change and records it. Illegal edges are
// logged and skipped. The caller holds the order lock.
func (m *OrderManager) transition(s *repository.OrderState, o *models.Order, to models.OrderStatus, note string) *models.OrderHistoryEntry {
	if o.Status == to {
		return nil
	}
	entry, err := o.TransitionTo(to, note, m.now())
	if err != nil {
		m.logger.WithFields(logrus.Fields{"order_id": o.ID, "from": o.Status, "to": to}).Warn("Skipping illegal order transition")
		return nil
	}
	s.AppendHistory(*entry)
	return entry
}

// RunCycle runs retry, confirm, pay, sync, track and balance check in order
func (m *OrderManager) RunCycle(ctx context.Context) (*CycleSummary, error) {
	summary := &CycleSummary{}
	var changes []models.OrderHistoryEntry

	changes = append(changes, m.retryPending(ctx, summary)...)
	changes = append(changes, m.confirmCreated(ctx, summary)...)
	changes = append(changes, m.payConfirmed(ctx, summary)...)
	changes = append(changes, m.syncAll(ctx, summary)...)
	changes = append(changes, m.trackShipped(ctx, summary)...)
	m.checkBalance(ctx, summary)

	now := m.now()
	m.repo.Apply(func(s *repository.OrderState) {
		s.LastCycle = &now
	})
	err := m.repo.Flush(context.WithoutCancel(ctx))
	m.publishChanges(ctx, changes)

	m.logger.WithFields(summary.fields()).Info("Order cycle completed")
	if err != nil {
		return summary, fmt.Errorf("failed to persist orders: %w", err)
	}
	return summary, ctx.Err()
}

// SyncOrders pulls remote status and tracking for every open order
func (m *OrderManager) SyncOrders(ctx context.Context) (*CycleSummary, error) {
	summary := &CycleSummary{}
	changes := m.syncAll(ctx, summary)
	changes = append(changes, m.trackShipped(ctx, summary)...)

	err := m.repo.Flush(context.WithoutCancel(ctx))
	m.publishChanges(ctx, changes)
	if err != nil {
		return summary, fmt.Errorf("failed to persist orders: %w", err)
	}
	return summary, nil
}

// SyncOrder refreshes a single order, looked up by supplier order id or
// local id. It returns ErrOrderNotFound for unknown ids.
func (m *OrderManager) SyncOrder(ctx context.Context, orderID string) error {
	order, ok := m.repo.FindByCJOrderID(orderID)
	if !ok {
		order, ok = m.repo.Get(orderID)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if order.CJOrderID == "" {
		return nil
	}

	summary := &CycleSummary{}
	changes, err := m.syncOne(ctx, order.ID, summary)
	if err == nil {
		var more []models.OrderHistoryEntry
		more, err = m.trackOne(ctx, order.ID, summary)
		changes = append(changes, more...)
	}
	if flushErr := m.repo.Flush(context.WithoutCancel(ctx)); flushErr != nil && err == nil {
		err = fmt.Errorf("failed to persist orders: %w", flushErr)
	}
	m.publishChanges(ctx, changes)
	return err
}

func (m *OrderManager) retryPending(ctx context.Context, summary *CycleSummary) []models.OrderHistoryEntry {
	var changes []models.OrderHistoryEntry
	for _, order := range m.ordersIn(models.OrderStatusPending) {
		if ctx.Err() != nil {
			break
		}
		if _, busy := m.inflight.Load(order.ID); busy {
			continue
		}

		if order.RetryCount >= m.config.MaxRetries {
			m.repo.Apply(func(s *repository.OrderState) {
				if o, ok := s.Orders[order.ID]; ok {
					note := fmt.Sprintf("submission failed after %d retries", o.RetryCount)
					if entry := m.transition(s, o, models.OrderStatusFailed, note); entry != nil {
						changes = append(changes, *entry)
						summary.FailedPermanently++
					}
				}
			})
			continue
		}

		m.repo.Apply(func(s *repository.OrderState) {
			if o, ok := s.Orders[order.ID]; ok {
				o.RetryCount++
			}
		})
		summary.Retried++
		ok, more := m.submit(ctx, order.ID)
		changes = append(changes, more...)
		if ok {
			summary.Submitted++
		} else {
			summary.Errors++
		}
	}
	return changes
}

func (m *OrderManager) confirmCreated(ctx context.Context, summary *CycleSummary) []models.OrderHistoryEntry {
	var changes []models.OrderHistoryEntry
	for _, order := range m.ordersIn(models.OrderStatusCreated) {
		if ctx.Err() != nil {
			break
		}
		if order.CJOrderID == "" {
			continue
		}
		if err := m.api.ConfirmOrder(ctx, order.CJOrderID); err != nil {
			summary.Errors++
			m.recordError(order.ID, err)
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("Order confirmation failed")
			continue
		}
		changes = append(changes, m.advance(order.ID, models.OrderStatusCreated, models.OrderStatusConfirmed, "confirmed with supplier")...)
		summary.Confirmed++
	}
	return changes
}

// payConfirmed reads the balance once and pays confirmed orders oldest
// first, skipping any order the remaining balance cannot cover.
func (m *OrderManager) payConfirmed(ctx context.Context, summary *CycleSummary) []models.OrderHistoryEntry {
	orders := m.ordersIn(models.OrderStatusConfirmed)
	if len(orders) == 0 {
		return nil
	}

	balance, err := m.api.GetBalance(ctx)
	if err != nil {
		summary.Errors++
		m.logger.WithError(err).Warn("Balance check failed, skipping payments")
		return nil
	}
	remaining := balance

	var changes []models.OrderHistoryEntry
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		if order.CJOrderID == "" {
			continue
		}
		// the cost is filled by the next status sync
		if order.SupplierCost <= 0 {
			summary.SkippedBalance++
			m.logger.WithField("order_id", order.ID).Warn("Supplier cost unknown, payment deferred")
			continue
		}
		if order.SupplierCost > remaining {
			summary.SkippedBalance++
			m.logger.WithFields(logrus.Fields{
				"order_id":  order.ID,
				"cost":      order.SupplierCost,
				"remaining": remaining,
			}).Warn("Insufficient balance, payment deferred")
			continue
		}
		if err := m.api.PayOrder(ctx, order.CJOrderID); err != nil {
			summary.Errors++
			m.recordError(order.ID, err)
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("Order payment failed")
			continue
		}
		remaining -= order.SupplierCost
		changes = append(changes, m.advance(order.ID, models.OrderStatusConfirmed, models.OrderStatusPaid, "paid from supplier balance")...)
		summary.Paid++
	}
	return changes
}

func (m *OrderManager) syncAll(ctx context.Context, summary *CycleSummary) []models.OrderHistoryEntry {
	var changes []models.OrderHistoryEntry
	for _, order := range m.repo.List() {
		if ctx.Err() != nil {
			break
		}
		if order.CJOrderID == "" || models.IsTerminalOrderStatus(order.Status) {
			continue
		}
		more, err := m.syncOne(ctx, order.ID, summary)
		if err != nil {
			summary.Errors++
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("Order sync failed")
			continue
		}
		changes = append(changes, more...)
	}
	return changes
}

// syncOne applies the remote order detail. The first appearance of a
// tracking number forces the order to shipped whatever the status text says.
func (m *OrderManager) syncOne(ctx context.Context, id string, summary *CycleSummary) ([]models.OrderHistoryEntry, error) {
	order, ok := m.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	detail, err := m.api.GetOrderDetail(ctx, order.CJOrderID)
	if err != nil {
		return nil, fmt.Errorf("order detail for %s: %w", order.CJOrderID, err)
	}

	var changes []models.OrderHistoryEntry
	m.repo.Apply(func(s *repository.OrderState) {
		o, ok := s.Orders[id]
		if !ok || models.IsTerminalOrderStatus(o.Status) {
			return
		}
		if detail.LogisticName != "" {
			o.LogisticName = detail.LogisticName
		}
		if o.SupplierCost == 0 && detail.OrderAmount > 0 {
			o.SupplierCost = detail.OrderAmount
		}

		if detail.TrackingNumber != "" && o.TrackingNumber == "" {
			o.TrackingNumber = detail.TrackingNumber
			o.TrackingURL = detail.TrackingURL
			o.UpdatedAt = m.now()
			if !models.IsShippedOrLater(o.Status) {
				if entry := m.transition(s, o, models.OrderStatusShipped, "tracking number "+detail.TrackingNumber); entry != nil {
					changes = append(changes, *entry)
					summary.Shipped++
				}
			}
			return
		}

		mapped, known := remoteOrderStatus[strings.ToUpper(detail.Status)]
		if !known || mapped == o.Status || models.IsRegression(o.Status, mapped) {
			return
		}
		if o.Status == models.OrderStatusDisputed && mapped != models.OrderStatusDelivered && mapped != models.OrderStatusCancelled {
			return
		}
		if entry := m.transition(s, o, mapped, "supplier status "+detail.Status); entry != nil {
			changes = append(changes, *entry)
			switch mapped {
			case models.OrderStatusShipped:
				summary.Shipped++
			case models.OrderStatusDelivered:
				summary.Delivered++
			}
		}
	})
	summary.Synced++
	return changes, nil
}

func (m *OrderManager) trackShipped(ctx context.Context, summary *CycleSummary) []models.OrderHistoryEntry {
	var changes []models.OrderHistoryEntry
	for _, order := range m.repo.List() {
		if ctx.Err() != nil {
			break
		}
		if !tracksParcel(order) {
			continue
		}
		more, err := m.trackOne(ctx, order.ID, summary)
		if err != nil {
			summary.Errors++
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("Tracking lookup failed")
			continue
		}
		changes = append(changes, more...)
	}
	return changes
}

func tracksParcel(o models.Order) bool {
	if o.TrackingNumber == "" {
		return false
	}
	switch o.Status {
	case models.OrderStatusShipped, models.OrderStatusInTransit, models.OrderStatusDisputed:
		return true
	}
	return false
}

// trackOne stores the tracking trail and promotes the order to in_transit
// or delivered.
func (m *OrderManager) trackOne(ctx context.Context, id string, summary *CycleSummary) ([]models.OrderHistoryEntry, error) {
	order, ok := m.repo.Get(id)
	if !ok || !tracksParcel(order) {
		return nil, nil
	}
	info, err := m.api.GetTracking(ctx, order.TrackingNumber)
	if err != nil {
		return nil, fmt.Errorf("tracking for %s: %w", order.TrackingNumber, err)
	}

	history := make([]models.TrackingEvent, 0, len(info.Events))
	delivered := false
	for _, ev := range info.Events {
		history = append(history, models.TrackingEvent{Date: ev.Date, Location: ev.Location, Status: ev.Status})
		if deliveredPattern.MatchString(ev.Status) {
			delivered = true
		}
	}
	if deliveredPattern.MatchString(info.Status) {
		delivered = true
	}
	sortTracking(history)

	var changes []models.OrderHistoryEntry
	m.repo.Apply(func(s *repository.OrderState) {
		o, ok := s.Orders[id]
		if !ok || !tracksParcel(*o) {
			return
		}
		if len(history) > 0 {
			o.TrackingHistory = history
			o.UpdatedAt = m.now()
		}
		switch {
		case delivered:
			if entry := m.transition(s, o, models.OrderStatusDelivered, "carrier reports delivery"); entry != nil {
				changes = append(changes, *entry)
				summary.Delivered++
			}
		case len(history) > 0 && o.Status == models.OrderStatusShipped:
			if entry := m.transition(s, o, models.OrderStatusInTransit, "carrier activity"); entry != nil {
				changes = append(changes, *entry)
			}
		}
	})
	return changes, nil
}

// sortTracking orders events oldest first; undated events keep their place
func sortTracking(events []models.TrackingEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		ti, okI := models.ParseTrackingDate(events[i].Date)
		tj, okJ := models.ParseTrackingDate(events[j].Date)
		return okI && okJ && ti.Before(tj)
	})
}

func (m *OrderManager) checkBalance(ctx context.Context, summary *CycleSummary) {
	if ctx.Err() != nil {
		return
	}
	balance, err := m.api.GetBalance(ctx)
	if err != nil {
		summary.Errors++
		m.logger.WithError(err).Warn("Balance check failed")
		return
	}
	summary.Balance = &balance
	m.repo.Apply(func(s *repository.OrderState) {
		s.Balance = &balance
	})

	if balance < m.config.LowBalanceThreshold {
		m.logger.WithFields(logrus.Fields{
			"balance":   balance,
			"threshold": m.config.LowBalanceThreshold,
		}).Warn("Supplier balance is low")
		payload := map[string]float64{"balance": balance, "threshold": m.config.LowBalanceThreshold}
		if err := m.publisher.Publish(ctx, events.OrderBalanceLow, payload); err != nil {
			m.logger.WithError(err).Warn("Failed to publish balance event")
		}
	}
}

// CancelOrder cancels an order that has not shipped. The supplier side is
// best effort; the local cancellation always happens.
func (m *OrderManager) CancelOrder(ctx context.Context, id string) (*models.Order, error) {
	order, ok := m.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if !order.Cancellable() {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotCancellable, order.Status)
	}

	if order.CJOrderID != "" {
		if err := m.api.CancelOrder(ctx, order.CJOrderID); err != nil {
			m.logger.WithError(err).WithField("order_id", id).Warn("Supplier cancellation failed, cancelling locally")
		}
	}

	var change *models.OrderHistoryEntry
	var out models.Order
	err := m.repo.Update(ctx, func(s *repository.OrderState) error {
		o, ok := s.Orders[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		if !o.Cancellable() {
			return fmt.Errorf("%w: status is %s", ErrOrderNotCancellable, o.Status)
		}
		entry, err := o.TransitionTo(models.OrderStatusCancelled, "cancelled on request", m.now())
		if err != nil {
			return err
		}
		s.AppendHistory(*entry)
		change = entry
		out = *o
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.publishChanges(ctx, []models.OrderHistoryEntry{*change})
	m.logger.WithField("order_id", id).Info("Order cancelled")
	return &out, nil
}

// MarkDisputed moves an order to disputed. It returns
// models.ErrInvalidTransition when the order's status does not allow it.
func (m *OrderManager) MarkDisputed(ctx context.Context, id, note string) error {
	var change *models.OrderHistoryEntry
	err := m.repo.Update(ctx, func(s *repository.OrderState) error {
		o, ok := s.Orders[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		entry, err := o.TransitionTo(models.OrderStatusDisputed, note, m.now())
		if err != nil {
			return err
		}
		s.AppendHistory(*entry)
		change = entry
		return nil
	})
	if err != nil {
		return err
	}
	m.publishChanges(ctx, []models.OrderHistoryEntry{*change})
	return nil
}

// advance moves an order between two expected states
func (m *OrderManager) advance(id string, from, to models.OrderStatus, note string) []models.OrderHistoryEntry {
	var changes []models.OrderHistoryEntry
	m.repo.Apply(func(s *repository.OrderState) {
		o, ok := s.Orders[id]
		if !ok || o.Status != from {
			return
		}
		o.Error = ""
		if entry := m.transition(s, o, to, note); entry != nil {
			changes = append(changes, *entry)
		}
	})
	return changes
}

func (m *OrderManager) recordError(id string, cause error) {
	m.repo.Apply(func(s *repository.OrderState) {
		if o, ok := s.Orders[id]; ok {
			o.Error = cause.Error()
			o.UpdatedAt = m.now()
		}
	})
}

func (m *OrderManager) ordersIn(status models.OrderStatus) []models.Order {
	var out []models.Order
	for _, o := range m.repo.List() {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

func (m *OrderManager) persist(ctx context.Context) {
	if err := m.repo.Flush(context.WithoutCancel(ctx)); err != nil {
		m.logger.WithError(err).Error("Failed to persist orders")
	}
}

func (m *OrderManager) publishChanges(ctx context.Context, changes []models.OrderHistoryEntry) {
	for _, change := range changes {
		if err := m.publisher.Publish(ctx, events.OrderStatusChanged, change); err != nil {
			m.logger.WithError(err).Warn("Failed to publish order status event")
		}
	}
}

// ListOrders returns the filtered page, newest first, and the match count
func (m *OrderManager) ListOrders(filter OrderFilter) ([]models.Order, int) {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	all := m.repo.List()

	var matched []models.Order
	for i := len(all) - 1; i >= 0; i-- {
		o := all[i]
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if query != "" {
			haystack := strings.ToLower(strings.Join([]string{o.ID, o.CJOrderID, o.Customer.Name, o.Customer.Email, o.TrackingNumber}, " "))
			if !strings.Contains(haystack, query) {
				continue
			}
		}
		matched = append(matched, o)
	}
	return paginate(matched, filter.Offset, filter.Limit), len(matched)
}

// GetOrder returns an order by local id
func (m *OrderManager) GetOrder(id string) (*models.Order, error) {
	order, ok := m.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return &order, nil
}

// AllOrders returns every order, oldest first
func (m *OrderManager) AllOrders() []models.Order {
	return m.repo.List()
}

// GetOrderStats aggregates the order book. Cancelled and failed orders
// do not count towards revenue.
func (m *OrderManager) GetOrderStats() models.OrderStats {
	stats := models.OrderStats{ByStatus: make(map[models.OrderStatus]int)}
	for _, o := range m.repo.List() {
		stats.Total++
		stats.ByStatus[o.Status]++
		if o.Status == models.OrderStatusCancelled || o.Status == models.OrderStatusFailed {
			continue
		}
		stats.Revenue += o.RetailTotal
		stats.SupplierCost += o.SupplierCost
	}
	stats.Revenue = math.Round(stats.Revenue*100) / 100
	stats.SupplierCost = math.Round(stats.SupplierCost*100) / 100
	stats.Profit = math.Round((stats.Revenue-stats.SupplierCost)*100) / 100
	stats.Balance, stats.LastCycle = m.repo.Meta()
	return stats
}

// GetHistory returns recent status changes, newest first
func (m *OrderManager) GetHistory(limit int) []models.OrderHistoryEntry {
	return m.repo.History(limit)
}

// IsNotFound reports whether err is one of the not-found business errors
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrCatalogItemNotFound) || errors.Is(err, ErrDisputeNotFound)
}
