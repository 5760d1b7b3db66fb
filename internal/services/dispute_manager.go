package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"supplier-engine-service/internal/clients"
	"supplier-engine-service/internal/events"
	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/repository"
)

// OrderReader is the read-only view of the order book the dispute manager needs
type OrderReader interface {
	AllOrders() []models.Order
	GetOrder(id string) (*models.Order, error)
}

// OrderDisputer flags an order as disputed
type OrderDisputer interface {
	MarkDisputed(ctx context.Context, id, note string) error
}

// DisputeConfig holds the SLA thresholds of the detection sweep
type DisputeConfig struct {
	ShipSLA     time.Duration
	TrackingSLA time.Duration
	DeliverySLA time.Duration
}

// DisputeFilter narrows GetDisputes results
type DisputeFilter struct {
	Status  models.DisputeStatus
	Type    models.DisputeType
	OrderID string
	Limit   int
	Offset  int
}

// OpenDisputeRequest is an explicit dispute request
type OpenDisputeRequest struct {
	OrderID string             `json:"orderId"`
	Type    models.DisputeType `json:"type"`
	Reason  string             `json:"reason"`
}

// DisputeCycleSummary counts the work done by one dispute cycle
type DisputeCycleSummary struct {
	Flagged   int `json:"flagged"`
	Opened    int `json:"opened"`
	LocalOnly int `json:"localOnly"`
	Retried   int `json:"retried"`
	Promoted  int `json:"promoted"`
	Synced    int `json:"synced"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// DisputeManager detects problem orders and tracks disputes with the supplier
type DisputeManager struct {
	api       clients.SupplierAPI
	repo      *repository.DisputeRepository
	orders    OrderReader
	disputer  OrderDisputer
	config    DisputeConfig
	publisher events.Publisher
	logger    *logrus.Entry
	now       func() time.Time
}

// NewDisputeManager creates a new dispute manager
func NewDisputeManager(
	api clients.SupplierAPI,
	repo *repository.DisputeRepository,
	orders OrderReader,
	disputer OrderDisputer,
	cfg DisputeConfig,
	publisher events.Publisher,
	logger *logrus.Logger,
) *DisputeManager {
	if cfg.ShipSLA <= 0 {
		cfg.ShipSLA = 7 * 24 * time.Hour
	}
	if cfg.TrackingSLA <= 0 {
		cfg.TrackingSLA = 15 * 24 * time.Hour
	}
	if cfg.DeliverySLA <= 0 {
		cfg.DeliverySLA = 45 * 24 * time.Hour
	}
	return &DisputeManager{
		api:       api,
		repo:      repo,
		orders:    orders,
		disputer:  disputer,
		config:    cfg,
		publisher: publisher,
		logger:    logger.WithField("component", "disputes.manager"),
		now:       time.Now,
	}
}

// RunCycle runs the detection sweep followed by the remote sync
func (m *DisputeManager) RunCycle(ctx context.Context) (*DisputeCycleSummary, error) {
	summary := &DisputeCycleSummary{}
	start := m.now()
	m.detect(ctx, summary)
	m.sync(ctx, summary, start)

	now := m.now()
	m.repo.Apply(func(s *repository.DisputeState) {
		s.Recount()
		s.Stats.LastRun = &now
	})
	if err := m.repo.Flush(context.WithoutCancel(ctx)); err != nil {
		return summary, fmt.Errorf("failed to persist disputes: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"flagged":    summary.Flagged,
		"opened":     summary.Opened,
		"local_only": summary.LocalOnly,
		"promoted":   summary.Promoted,
		"synced":     summary.Synced,
		"updated":    summary.Updated,
		"errors":     summary.Errors,
	}).Info("Dispute cycle completed")
	return summary, ctx.Err()
}

// classify returns the SLA an order violates, if any
func (m *DisputeManager) classify(o models.Order, now time.Time) (models.DisputeType, string, bool) {
	age := now.Sub(o.CreatedAt)
	switch o.Status {
	case models.OrderStatusPaid:
		if age > m.config.ShipSLA {
			return models.DisputeNotShipped, fmt.Sprintf("paid %d days ago and not shipped", int(age.Hours()/24)), true
		}
	case models.OrderStatusShipped, models.OrderStatusInTransit:
		last, ok := o.LatestTrackingTime()
		if !ok {
			switch {
			case o.ShippedAt != nil:
				last = *o.ShippedAt
			default:
				last = o.UpdatedAt
			}
		}
		if now.Sub(last) > m.config.TrackingSLA {
			return models.DisputeTrackingStale, fmt.Sprintf("no tracking activity since %s", last.Format("2006-01-02")), true
		}
	}
	if o.CJOrderID != "" && age > m.config.DeliverySLA {
		return models.DisputeDeliveryTimeout, fmt.Sprintf("not delivered after %d days", int(age.Hours()/24)), true
	}
	return "", "", false
}

func (m *DisputeManager) detect(ctx context.Context, summary *DisputeCycleSummary) {
	now := m.now()
	for _, order := range m.orders.AllOrders() {
		if ctx.Err() != nil {
			return
		}
		if models.IsTerminalOrderStatus(order.Status) || order.Status == models.OrderStatusDisputed {
			continue
		}
		disputeType, reason, flagged := m.classify(order, now)
		if !flagged {
			continue
		}
		summary.Flagged++

		dispute, err := m.open(ctx, order, disputeType, reason, true)
		switch {
		case errors.Is(err, ErrDisputeExists):
			continue
		case err != nil:
			summary.Errors++
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to open dispute")
			continue
		}
		summary.Opened++
		if dispute.Status == models.DisputeStatusPending {
			summary.LocalOnly++
		}
	}
}

// open records a dispute and tries to create it remotely. The local record
// is written first under the lock so two callers can never both open one.
func (m *DisputeManager) open(ctx context.Context, order models.Order, disputeType models.DisputeType, reason string, auto bool) (*models.Dispute, error) {
	now := m.now()
	dispute := &models.Dispute{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		CJOrderID:   order.CJOrderID,
		Type:        disputeType,
		Reason:      reason,
		Status:      models.DisputeStatusPending,
		AutoCreated: auto,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	dispute.Log("created", reason, now)

	err := m.repo.Mutate(func(s *repository.DisputeState) error {
		if active := s.ActiveForOrder(order.ID); active != nil {
			return fmt.Errorf("%w: %s", ErrDisputeExists, active.ID)
		}
		s.Disputes[dispute.ID] = dispute
		if auto {
			s.Stats.AutoCreated++
		}
		s.Recount()
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.createRemote(ctx, dispute.ID)
	if err := m.repo.Flush(context.WithoutCancel(ctx)); err != nil {
		m.logger.WithError(err).Error("Failed to persist disputes")
	}

	if err := m.disputer.MarkDisputed(ctx, order.ID, "dispute "+string(disputeType)); err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Warn("Could not mark order disputed")
	}

	out, _ := m.repo.Get(dispute.ID)
	m.logger.WithFields(logrus.Fields{
		"dispute_id": out.ID,
		"order_id":   out.OrderID,
		"type":       out.Type,
		"status":     out.Status,
	}).Info("Dispute opened")
	if err := m.publisher.Publish(ctx, events.DisputeOpened, out); err != nil {
		m.logger.WithError(err).Warn("Failed to publish dispute event")
	}
	return &out, nil
}

// createRemote submits a pending dispute to the supplier. Without a supplier
// order id, or on failure, the dispute stays pending locally.
func (m *DisputeManager) createRemote(ctx context.Context, id string) bool {
	dispute, ok := m.repo.Get(id)
	if !ok || dispute.Status != models.DisputeStatusPending {
		return false
	}
	cjOrderID := dispute.CJOrderID
	if cjOrderID == "" {
		if order, err := m.orders.GetOrder(dispute.OrderID); err == nil {
			cjOrderID = order.CJOrderID
		}
	}
	if cjOrderID == "" {
		return false
	}

	remote, err := m.api.CreateDispute(ctx, &clients.CreateDisputeRequest{
		OrderID:           cjOrderID,
		BusinessDisputeID: dispute.ID,
		Reason:            string(dispute.Type),
		ExpectType:        1,
		Message:           dispute.Reason,
	})

	m.repo.Apply(func(s *repository.DisputeState) {
		d, ok := s.Disputes[id]
		if !ok || d.Status != models.DisputeStatusPending {
			return
		}
		d.CJOrderID = cjOrderID
		if err != nil {
			d.Log("remote_failed", err.Error(), m.now())
			return
		}
		d.CJDisputeID = remote.ID
		d.Status = models.DisputeStatusOpen
		d.Log("opened", "supplier dispute "+remote.ID, m.now())
		s.Recount()
	})
	if err != nil {
		m.logger.WithError(err).WithField("dispute_id", id).Warn("Remote dispute creation failed, kept locally")
		return false
	}
	return true
}

// sync retries pending disputes older than since and applies the
// supplier's dispute list
func (m *DisputeManager) sync(ctx context.Context, summary *DisputeCycleSummary, since time.Time) {
	for _, d := range m.repo.List() {
		if ctx.Err() != nil {
			return
		}
		// disputes opened by this cycle's sweep already had their attempt
		if d.Status != models.DisputeStatusPending || !d.CreatedAt.Before(since) {
			continue
		}
		summary.Retried++
		if m.createRemote(ctx, d.ID) {
			summary.Promoted++
		}
	}

	remote, err := m.api.ListDisputes(ctx)
	if err != nil {
		summary.Errors++
		m.logger.WithError(err).Warn("Failed to list supplier disputes")
		return
	}

	var updated []models.Dispute
	m.repo.Apply(func(s *repository.DisputeState) {
		byRemoteID := make(map[string]*models.Dispute, len(s.Disputes))
		for _, d := range s.Disputes {
			if d.CJDisputeID != "" {
				byRemoteID[d.CJDisputeID] = d
			}
		}
		for _, r := range remote {
			d := byRemoteID[r.ID]
			if d == nil {
				d = s.Disputes[r.BusinessDisputeID]
			}
			if d == nil {
				continue
			}
			summary.Synced++
			if d.Status == models.DisputeStatusResolved || d.Status == models.DisputeStatusCancelled {
				continue
			}
			mapped := MapDisputeStatus(r.Status)
			if mapped == d.Status {
				continue
			}
			if d.CJDisputeID == "" {
				d.CJDisputeID = r.ID
			}
			d.Status = mapped
			if r.Resolution != "" {
				d.Resolution = r.Resolution
			}
			d.Log("status_"+string(mapped), "supplier status "+r.Status, m.now())
			updated = append(updated, *d)
		}
		s.Recount()
	})

	summary.Updated += len(updated)
	for _, d := range updated {
		if err := m.publisher.Publish(ctx, events.DisputeUpdated, d); err != nil {
			m.logger.WithError(err).Warn("Failed to publish dispute event")
		}
	}
}

// MapDisputeStatus maps free-form supplier status text to a local status
func MapDisputeStatus(remote string) models.DisputeStatus {
	s := strings.ToLower(remote)
	switch {
	case strings.Contains(s, "resolved"), strings.Contains(s, "closed"), strings.Contains(s, "complete"):
		return models.DisputeStatusResolved
	case strings.Contains(s, "cancel"):
		return models.DisputeStatusCancelled
	default:
		return models.DisputeStatusOpen
	}
}

// OpenDispute opens a dispute on explicit request
func (m *DisputeManager) OpenDispute(ctx context.Context, req *OpenDisputeRequest) (*models.Dispute, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrInvalidDisputeRequest)
	}
	disputeType := req.Type
	if disputeType == "" {
		disputeType = models.DisputeManual
	}
	switch disputeType {
	case models.DisputeNotShipped, models.DisputeTrackingStale, models.DisputeDeliveryTimeout, models.DisputeManual:
	default:
		return nil, fmt.Errorf("%w: unknown type %s", ErrInvalidDisputeRequest, disputeType)
	}

	order, err := m.orders.GetOrder(req.OrderID)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "opened on request"
	}
	dispute, err := m.open(ctx, *order, disputeType, reason, false)
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// CancelDispute withdraws an active dispute. The supplier side is best effort.
func (m *DisputeManager) CancelDispute(ctx context.Context, id string) (*models.Dispute, error) {
	dispute, ok := m.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDisputeNotFound, id)
	}
	if !dispute.IsActive() {
		return nil, fmt.Errorf("%w: status is %s", ErrDisputeClosed, dispute.Status)
	}

	if dispute.CJDisputeID != "" {
		if err := m.api.CancelDispute(ctx, dispute.CJDisputeID); err != nil {
			m.logger.WithError(err).WithField("dispute_id", id).Warn("Supplier dispute cancellation failed, cancelling locally")
		}
	}

	var out models.Dispute
	err := m.repo.Update(ctx, func(s *repository.DisputeState) error {
		d, ok := s.Disputes[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrDisputeNotFound, id)
		}
		if !d.IsActive() {
			return fmt.Errorf("%w: status is %s", ErrDisputeClosed, d.Status)
		}
		d.Status = models.DisputeStatusCancelled
		d.Log("cancelled", "cancelled on request", m.now())
		s.Recount()
		out = *d
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := m.publisher.Publish(ctx, events.DisputeUpdated, out); err != nil {
		m.logger.WithError(err).Warn("Failed to publish dispute event")
	}
	return &out, nil
}

// GetDisputes returns the filtered page, newest first, and the match count
func (m *DisputeManager) GetDisputes(filter DisputeFilter) ([]models.Dispute, int) {
	var matched []models.Dispute
	for _, d := range m.repo.List() {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.Type != "" && d.Type != filter.Type {
			continue
		}
		if filter.OrderID != "" && d.OrderID != filter.OrderID {
			continue
		}
		matched = append(matched, d)
	}
	return paginate(matched, filter.Offset, filter.Limit), len(matched)
}

// GetDispute returns a dispute by id
func (m *DisputeManager) GetDispute(id string) (*models.Dispute, error) {
	dispute, ok := m.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDisputeNotFound, id)
	}
	return &dispute, nil
}

// GetStats returns the dispute counters
func (m *DisputeManager) GetStats() models.DisputeStats {
	return m.repo.Stats()
}
