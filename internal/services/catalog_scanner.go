package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"supplier-engine-service/internal/catalog"
	"supplier-engine-service/internal/clients"
	"supplier-engine-service/internal/events"
	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/repository"
)

// ScannerConfig controls the catalog sweep
type ScannerConfig struct {
	Keywords       []string
	PageSize       int
	MaxCatalogSize int
}

// CatalogFilter narrows ListCatalog results
type CatalogFilter struct {
	Category    string
	EnabledOnly bool
	MinScore    float64
	Query       string
	Sort        string // score (default), price, price_desc, newest
	Limit       int
	Offset      int
}

type admission int

const (
	admissionDiscarded admission = iota
	admissionInserted
	admissionUpgraded
)

// CatalogScanner refreshes the sellable catalog from supplier searches
type CatalogScanner struct {
	api       clients.SupplierAPI
	repo      *repository.CatalogRepository
	policy    catalog.Policy
	config    ScannerConfig
	publisher events.Publisher
	logger    *logrus.Entry
	now       func() time.Time

	runMu sync.Mutex
}

// NewCatalogScanner creates a new catalog scanner
func NewCatalogScanner(
	api clients.SupplierAPI,
	repo *repository.CatalogRepository,
	policy catalog.Policy,
	cfg ScannerConfig,
	publisher events.Publisher,
	logger *logrus.Logger,
) *CatalogScanner {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.MaxCatalogSize <= 0 {
		cfg.MaxCatalogSize = 200
	}
	return &CatalogScanner{
		api:       api,
		repo:      repo,
		policy:    policy,
		config:    cfg,
		publisher: publisher,
		logger:    logger.WithField("component", "catalog.scanner"),
		now:       time.Now,
	}
}

// Scan walks the keyword list once. Search and analysis failures are
// counted in the returned run and never abort the sweep. A second call
// while a sweep is running returns ErrScanInProgress.
func (s *CatalogScanner) Scan(ctx context.Context, trigger string) (*models.ScanRun, error) {
	if !s.runMu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.runMu.Unlock()

	run := &models.ScanRun{
		StartedAt: s.now(),
		Trigger:   trigger,
		Keywords:  len(s.config.Keywords),
		Rejected:  make(map[string]int),
	}
	seen := catalog.Seen{}

	var sweepErr error
sweep:
	for _, keyword := range s.config.Keywords {
		if err := ctx.Err(); err != nil {
			sweepErr = err
			break
		}

		result, err := s.api.SearchProducts(ctx, &clients.SearchOptions{Keyword: keyword, Page: 1, PageSize: s.config.PageSize})
		if err != nil {
			run.Errors++
			s.logger.WithError(err).WithField("keyword", keyword).Warn("Catalog search failed")
			continue
		}
		run.Searched += len(result.Products)

		for _, raw := range result.Products {
			if err := ctx.Err(); err != nil {
				sweepErr = err
				break sweep
			}
			run.Analyzed++

			item, rejection, err := s.policy.Analyze(ctx, s.api, raw, seen)
			if err != nil {
				run.Errors++
				s.logger.WithError(err).WithField("pid", raw.PID).Warn("Product analysis failed")
				continue
			}
			if rejection != catalog.Admitted {
				run.Rejected[string(rejection)]++
				continue
			}
			item.Keyword = keyword

			var outcome admission
			s.repo.Apply(func(state *repository.CatalogState) {
				outcome = admit(state, item, s.now())
			})
			switch outcome {
			case admissionInserted:
				run.Admitted++
			case admissionUpgraded:
				run.Upgraded++
			default:
				run.Discarded++
			}
		}
	}

	s.repo.Apply(func(state *repository.CatalogState) {
		run.Evicted = trimCatalog(state, s.config.MaxCatalogSize)
		state.Stats = computeCatalogStats(state, s.now())
		run.Total = len(state.Items)
		run.FinishedAt = s.now()
		state.AddRun(*run)
	})
	// a cancelled sweep still persists what it admitted
	if err := s.repo.Flush(context.WithoutCancel(ctx)); err != nil {
		return run, fmt.Errorf("failed to persist catalog: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"trigger":   trigger,
		"searched":  run.Searched,
		"admitted":  run.Admitted,
		"upgraded":  run.Upgraded,
		"discarded": run.Discarded,
		"evicted":   run.Evicted,
		"errors":    run.Errors,
		"total":     run.Total,
	}).Info("Catalog scan completed")

	if err := s.publisher.Publish(ctx, events.CatalogScanCompleted, run); err != nil {
		s.logger.WithError(err).Warn("Failed to publish scan event")
	}
	return run, sweepErr
}

// admit inserts item, or replaces the entry holding its pid or fingerprint
// when the new score is strictly higher.
func admit(state *repository.CatalogState, item *models.CatalogItem, now time.Time) admission {
	byPID := state.Items[item.PID]
	byFingerprint := state.FindByFingerprint(item.Fingerprint)
	if byFingerprint != nil && byFingerprint.PID == item.PID {
		byFingerprint = nil
	}
	for _, existing := range []*models.CatalogItem{byPID, byFingerprint} {
		if existing != nil && item.Score() <= existing.Score() {
			return admissionDiscarded
		}
	}

	previous := byPID
	if previous == nil {
		previous = byFingerprint
	}
	if byFingerprint != nil {
		delete(state.Items, byFingerprint.PID)
	}

	item.UpdatedAt = now
	if previous == nil {
		item.AddedAt = now
		state.Items[item.PID] = item
		return admissionInserted
	}

	item.AddedAt = previous.AddedAt
	item.Disabled = previous.Disabled
	item.DisabledReason = previous.DisabledReason
	item.DisabledAt = previous.DisabledAt
	state.Items[item.PID] = item
	return admissionUpgraded
}

// trimCatalog evicts the lowest scoring items above limit
func trimCatalog(state *repository.CatalogState, limit int) int {
	over := len(state.Items) - limit
	if over <= 0 {
		return 0
	}
	sorted := state.SortedItems()
	for _, item := range sorted[len(sorted)-over:] {
		delete(state.Items, item.PID)
	}
	return over
}

func computeCatalogStats(state *repository.CatalogState, now time.Time) models.CatalogStats {
	stats := models.CatalogStats{
		Count:      len(state.Items),
		Categories: make(map[string]int),
		UpdatedAt:  now,
	}
	if len(state.Items) == 0 {
		return stats
	}

	var scoreSum, marginSum float64
	first := true
	for _, item := range state.Items {
		if !item.Disabled {
			stats.Enabled++
		}
		scoreSum += item.Pricing.OpportunityScore
		marginSum += item.Pricing.Margin
		stats.Categories[item.Category]++

		price := item.Pricing.RetailPrice
		if first || price < stats.MinPrice {
			stats.MinPrice = price
		}
		if first || price > stats.MaxPrice {
			stats.MaxPrice = price
		}
		first = false
	}
	n := float64(len(state.Items))
	stats.AvgScore = math.Round(scoreSum/n*10) / 10
	stats.AvgMargin = math.Round(marginSum/n*100) / 100
	return stats
}

// ListCatalog returns the filtered page and the number of matching items
func (s *CatalogScanner) ListCatalog(filter CatalogFilter) ([]models.CatalogItem, int) {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	var matched []models.CatalogItem
	for _, item := range s.repo.List() {
		if filter.EnabledOnly && item.Disabled {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(item.Category, filter.Category) {
			continue
		}
		if item.Score() < filter.MinScore {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(item.Name+" "+item.NameEn+" "+item.Tag), query) {
			continue
		}
		matched = append(matched, item)
	}

	switch filter.Sort {
	case "price":
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Pricing.RetailPrice < matched[j].Pricing.RetailPrice })
	case "price_desc":
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Pricing.RetailPrice > matched[j].Pricing.RetailPrice })
	case "newest":
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].AddedAt.After(matched[j].AddedAt) })
	}

	return paginate(matched, filter.Offset, filter.Limit), len(matched)
}

// GetCatalogItem returns one item by pid
func (s *CatalogScanner) GetCatalogItem(pid string) (*models.CatalogItem, error) {
	item, ok := s.repo.Get(pid)
	if !ok {
		return nil, ErrCatalogItemNotFound
	}
	return &item, nil
}

// GetStats returns the statistics computed by the last sweep
func (s *CatalogScanner) GetStats() models.CatalogStats {
	return s.repo.Stats()
}

// GetRunHistory returns past sweeps, most recent first
func (s *CatalogScanner) GetRunHistory() []models.ScanRun {
	return s.repo.Runs()
}

// DisableItem takes an item off sale. Manually disabled items are never
// re-enabled by the stock monitor.
func (s *CatalogScanner) DisableItem(ctx context.Context, pid string) (*models.CatalogItem, error) {
	return s.setDisabled(ctx, pid, true)
}

// EnableItem puts an item back on sale regardless of why it was disabled
func (s *CatalogScanner) EnableItem(ctx context.Context, pid string) (*models.CatalogItem, error) {
	return s.setDisabled(ctx, pid, false)
}

func (s *CatalogScanner) setDisabled(ctx context.Context, pid string, disabled bool) (*models.CatalogItem, error) {
	var out models.CatalogItem
	err := s.repo.Update(ctx, func(state *repository.CatalogState) error {
		item, ok := state.Items[pid]
		if !ok {
			return ErrCatalogItemNotFound
		}
		if disabled {
			item.Disable(models.DisabledManual, s.now())
		} else {
			item.Enable(s.now())
		}
		state.Stats = computeCatalogStats(state, s.now())
		out = *item
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := events.CatalogItemEnabled
	if disabled {
		eventType = events.CatalogItemDisabled
	}
	if err := s.publisher.Publish(ctx, eventType, map[string]string{"pid": pid, "reason": string(out.DisabledReason)}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish catalog event")
	}
	s.logger.WithFields(logrus.Fields{"pid": pid, "disabled": disabled}).Info("Catalog item updated manually")
	return &out, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
