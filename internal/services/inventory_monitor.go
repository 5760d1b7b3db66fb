package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"supplier-engine-service/internal/catalog"
	"supplier-engine-service/internal/clients"
	"supplier-engine-service/internal/events"
	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/repository"
)

// InventoryConfig controls the stock monitor
type InventoryConfig struct {
	LowStockThreshold  int
	PriceChangePercent float64
	AutoReprice        bool
	ItemDelay          time.Duration
}

// stockOutcome is what a single item check changed
type stockOutcome struct {
	record       models.InventoryRecord
	lowStock     bool
	disabled     bool
	reenabled    bool
	priceChanged bool
}

// InventoryMonitor keeps catalog availability in line with supplier stock
type InventoryMonitor struct {
	api         clients.SupplierAPI
	catalogRepo *repository.CatalogRepository
	repo        *repository.InventoryRepository
	policy      catalog.Policy
	config      InventoryConfig
	publisher   events.Publisher
	logger      *logrus.Entry
	now         func() time.Time

	runMu sync.Mutex
}

// NewInventoryMonitor creates a new inventory monitor
func NewInventoryMonitor(
	api clients.SupplierAPI,
	catalogRepo *repository.CatalogRepository,
	repo *repository.InventoryRepository,
	policy catalog.Policy,
	cfg InventoryConfig,
	publisher events.Publisher,
	logger *logrus.Logger,
) *InventoryMonitor {
	if cfg.LowStockThreshold <= 0 {
		cfg.LowStockThreshold = 10
	}
	if cfg.PriceChangePercent <= 0 {
		cfg.PriceChangePercent = 15
	}
	return &InventoryMonitor{
		api:         api,
		catalogRepo: catalogRepo,
		repo:        repo,
		policy:      policy,
		config:      cfg,
		publisher:   publisher,
		logger:      logger.WithField("component", "inventory.monitor"),
		now:         time.Now,
	}
}

// monitored reports whether the monitor checks the item. Manually
// disabled items are left alone.
func monitored(item models.CatalogItem) bool {
	return !item.Disabled || item.DisabledReason == models.DisabledOutOfStock
}

// CheckStock checks every monitored catalog item. Per item failures are
// counted and never abort the run.
func (m *InventoryMonitor) CheckStock(ctx context.Context) (*models.InventoryStats, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	start := m.now()
	stats := models.InventoryStats{}

	checked := 0
	for _, item := range m.catalogRepo.List() {
		if !monitored(item) {
			continue
		}
		if checked > 0 && m.config.ItemDelay > 0 {
			if err := sleepContext(ctx, m.config.ItemDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		checked++

		outcome, err := m.checkItem(ctx, item)
		if err != nil {
			stats.Errors++
			m.logger.WithError(err).WithField("pid", item.PID).Warn("Stock check failed")
			continue
		}
		stats.Tracked++
		if outcome.record.InStock {
			stats.InStock++
		} else {
			stats.OutOfStock++
		}
		if outcome.lowStock {
			stats.LowStock++
		}
		if outcome.reenabled {
			stats.Reenabled++
		}
		if outcome.priceChanged {
			stats.PriceChanges++
		}
	}

	for _, item := range m.catalogRepo.List() {
		if item.Disabled && item.DisabledReason == models.DisabledOutOfStock {
			stats.DisabledOutOfStock++
		}
	}
	finished := m.now()
	stats.LastRun = &finished
	stats.LastDuration = finished.Sub(start)

	m.repo.Apply(func(s *repository.InventoryState) {
		s.Stats = stats
	})
	if err := m.flush(ctx); err != nil {
		return &stats, err
	}

	m.logger.WithFields(logrus.Fields{
		"tracked":      stats.Tracked,
		"in_stock":     stats.InStock,
		"out_of_stock": stats.OutOfStock,
		"low_stock":    stats.LowStock,
		"reenabled":    stats.Reenabled,
		"errors":       stats.Errors,
	}).Info("Stock check completed")
	return &stats, ctx.Err()
}

// CheckProduct checks a single catalog item on demand
func (m *InventoryMonitor) CheckProduct(ctx context.Context, pid string) (*models.InventoryRecord, error) {
	item, ok := m.catalogRepo.Get(pid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCatalogItemNotFound, pid)
	}
	if !monitored(item) {
		record, _ := m.repo.Record(pid)
		return &record, nil
	}

	outcome, err := m.checkItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if err := m.flush(ctx); err != nil {
		return nil, err
	}
	return &outcome.record, nil
}

// checkItem queries stock and cost for one item and applies the rules
func (m *InventoryMonitor) checkItem(ctx context.Context, item models.CatalogItem) (*stockOutcome, error) {
	entries, err := m.api.GetStock(ctx, item.PID, item.VID)
	if err != nil {
		return nil, fmt.Errorf("stock for %s: %w", item.PID, err)
	}
	quantity := 0
	for _, e := range entries {
		if e.Quantity > 0 {
			quantity += e.Quantity
		}
	}

	cost := 0.0
	if detail, err := m.api.GetProduct(ctx, item.PID); err != nil {
		m.logger.WithError(err).WithField("pid", item.PID).Warn("Product detail failed, skipping price check")
	} else {
		cost = currentCost(detail, item.VID)
	}

	now := m.now()
	outcome := &stockOutcome{record: models.InventoryRecord{
		PID:         item.PID,
		VID:         item.VID,
		Quantity:    quantity,
		InStock:     quantity > 0,
		LastCost:    cost,
		LastChecked: now,
	}}
	var alerts []models.InventoryAlert
	var catalogEvents []string

	m.catalogRepo.Apply(func(s *repository.CatalogState) {
		current, ok := s.Items[item.PID]
		if !ok {
			// evicted since the list was read
			return
		}
		alert := func(t models.AlertType, msg string) models.InventoryAlert {
			return models.InventoryAlert{PID: current.PID, Name: current.Name, Type: t, Message: msg, Quantity: quantity, CreatedAt: now}
		}

		switch {
		case quantity == 0 && !current.Disabled:
			current.Disable(models.DisabledOutOfStock, now)
			outcome.disabled = true
			alerts = append(alerts, alert(models.AlertOutOfStock, "out of stock, item disabled"))
			catalogEvents = append(catalogEvents, events.CatalogItemDisabled)
		case quantity > 0 && current.Disabled && current.DisabledReason == models.DisabledOutOfStock:
			current.Enable(now)
			outcome.reenabled = true
			alerts = append(alerts, alert(models.AlertBackInStock, fmt.Sprintf("back in stock (%d), item re-enabled", quantity)))
			catalogEvents = append(catalogEvents, events.CatalogItemEnabled)
		}

		if quantity > 0 && quantity < m.config.LowStockThreshold {
			outcome.lowStock = true
			alerts = append(alerts, alert(models.AlertLowStock, fmt.Sprintf("only %d left", quantity)))
		}

		stored := current.Pricing.WholesaleCost
		if cost > 0 && stored > 0 && math.Abs(cost-stored)/stored*100 >= m.config.PriceChangePercent {
			outcome.priceChanged = true
			a := alert(models.AlertPriceChange, fmt.Sprintf("supplier cost moved from %.2f to %.2f", stored, cost))
			a.OldCost, a.NewCost = stored, cost
			alerts = append(alerts, a)
			if m.config.AutoReprice {
				m.policy.Reprice(current, cost)
				current.UpdatedAt = now
			}
		}
	})

	m.repo.Apply(func(s *repository.InventoryState) {
		if outcome.record.LastCost == 0 {
			outcome.record.LastCost = s.Records[item.PID].LastCost
		}
		s.Records[item.PID] = outcome.record
		for _, a := range alerts {
			s.AddAlert(a)
		}
	})

	for _, a := range alerts {
		m.logger.WithFields(logrus.Fields{"pid": a.PID, "type": a.Type, "quantity": a.Quantity}).Info(a.Message)
		if err := m.publisher.Publish(ctx, events.InventoryAlert, a); err != nil {
			m.logger.WithError(err).Warn("Failed to publish inventory alert")
		}
	}
	for _, eventType := range catalogEvents {
		payload := map[string]string{"pid": item.PID, "reason": string(models.DisabledOutOfStock)}
		if err := m.publisher.Publish(ctx, eventType, payload); err != nil {
			m.logger.WithError(err).Warn("Failed to publish catalog event")
		}
	}
	return outcome, nil
}

// currentCost prefers the tracked variant's price over the product price
func currentCost(detail *clients.ProductDetail, vid string) float64 {
	if vid != "" {
		for _, v := range detail.Variants {
			if v.VID == vid && v.SellPrice > 0 {
				return v.SellPrice
			}
		}
	}
	return detail.SellPrice
}

func (m *InventoryMonitor) flush(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	if err := m.catalogRepo.Flush(ctx); err != nil {
		return fmt.Errorf("failed to persist catalog: %w", err)
	}
	if err := m.repo.Flush(ctx); err != nil {
		return fmt.Errorf("failed to persist inventory: %w", err)
	}
	return nil
}

// GetInventoryStats returns the statistics of the last full check
func (m *InventoryMonitor) GetInventoryStats() models.InventoryStats {
	return m.repo.Stats()
}

// GetAlerts returns recent alerts, newest first
func (m *InventoryMonitor) GetAlerts(limit int) []models.InventoryAlert {
	return m.repo.Alerts(limit)
}

// GetRecord returns the last stock reading for a product
func (m *InventoryMonitor) GetRecord(pid string) (*models.InventoryRecord, error) {
	record, ok := m.repo.Record(pid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCatalogItemNotFound, pid)
	}
	return &record, nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
