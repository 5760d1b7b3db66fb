package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/repository"
)

const maxRecentWebhooks = 100

// OrderSyncer is the order side of webhook routing
type OrderSyncer interface {
	SyncOrder(ctx context.Context, orderID string) error
	SyncOrders(ctx context.Context) (*CycleSummary, error)
}

// StockChecker is the inventory side of webhook routing
type StockChecker interface {
	CheckProduct(ctx context.Context, pid string) (*models.InventoryRecord, error)
	CheckStock(ctx context.Context) (*models.InventoryStats, error)
}

// WebhookConfig controls webhook buffering and deduplication
type WebhookConfig struct {
	BufferSize int
	DedupTTL   time.Duration
}

type queuedWebhook struct {
	envelope   models.WebhookEnvelope
	receivedAt time.Time
}

// WebhookService accepts supplier notifications and routes them to the
// order manager and the inventory monitor on a single background worker.
type WebhookService struct {
	orders OrderSyncer
	stock  StockChecker
	seen   repository.IdempotencyStore
	config WebhookConfig
	logger *logrus.Entry
	now    func() time.Time

	mu     sync.Mutex
	buf    []queuedWebhook
	head   int
	count  int
	recent []models.WebhookEventRecord
	stats  models.WebhookStats

	notify chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebhookService creates a webhook router with a bounded buffer
func NewWebhookService(
	orders OrderSyncer,
	stock StockChecker,
	seen repository.IdempotencyStore,
	cfg WebhookConfig,
	logger *logrus.Logger,
) *WebhookService {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = repository.DefaultWebhookTTL
	}
	return &WebhookService{
		orders: orders,
		stock:  stock,
		seen:   seen,
		config: cfg,
		logger: logger.WithField("component", "webhooks.router"),
		now:    time.Now,
		buf:    make([]queuedWebhook, cfg.BufferSize),
		notify: make(chan struct{}, 1),
	}
}

// Accept validates and enqueues an event. It returns false for a message id
// that was already accepted. It never waits on processing.
func (s *WebhookService) Accept(ctx context.Context, env *models.WebhookEnvelope) (bool, error) {
	env.MessageID = strings.TrimSpace(env.MessageID)
	env.Type = models.WebhookType(strings.ToUpper(strings.TrimSpace(string(env.Type))))
	if env.MessageID == "" {
		return false, fmt.Errorf("%w: messageId is required", ErrInvalidWebhook)
	}
	if !env.Type.IsKnown() {
		return false, fmt.Errorf("%w: unknown type %q", ErrInvalidWebhook, env.Type)
	}

	s.mu.Lock()
	s.stats.Received++
	s.mu.Unlock()

	if s.seen != nil {
		first, err := s.seen.MarkSeen(ctx, env.MessageID, s.config.DedupTTL)
		switch {
		case err != nil:
			// delivery is at-least-once; a broken store must not drop events
			s.logger.WithError(err).WithField("message_id", env.MessageID).Warn("Idempotency check failed")
		case !first:
			s.mu.Lock()
			s.stats.Duplicates++
			s.mu.Unlock()
			return false, nil
		}
	}

	s.push(queuedWebhook{envelope: *env, receivedAt: s.now()})
	return true, nil
}

// push appends to the ring, overwriting the oldest entry when full
func (s *WebhookService) push(item queuedWebhook) {
	s.mu.Lock()
	size := len(s.buf)
	if s.count == size {
		dropped := s.buf[s.head]
		s.head = (s.head + 1) % size
		s.count--
		s.stats.Dropped++
		s.logger.WithField("message_id", dropped.envelope.MessageID).Warn("Webhook buffer full, dropped oldest event")
	}
	s.buf[(s.head+s.count)%size] = item
	s.count++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *WebhookService) pop() (queuedWebhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return queuedWebhook{}, false
	}
	item := s.buf[s.head]
	s.buf[s.head] = queuedWebhook{}
	s.head = (s.head + 1) % len(s.buf)
	s.count--
	return item, true
}

// Start launches the worker
func (s *WebhookService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the worker. Events still queued are abandoned; the supplier
// redelivers and the periodic cycles catch up.
func (s *WebhookService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *WebhookService) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		item, ok := s.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.notify:
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
		s.process(ctx, item)
	}
}

// process routes one event and records the result. Failures are isolated.
func (s *WebhookService) process(ctx context.Context, item queuedWebhook) {
	env := item.envelope
	record := models.WebhookEventRecord{
		MessageID:   env.MessageID,
		Type:        env.Type,
		MessageType: env.MessageType,
		ReceivedAt:  item.receivedAt,
	}

	action, err := s.route(ctx, &env)
	record.Action = action
	processed := s.now()
	record.ProcessedAt = &processed

	log := s.logger.WithFields(logrus.Fields{"message_id": env.MessageID, "type": env.Type, "action": action})
	s.mu.Lock()
	if err != nil {
		record.Error = err.Error()
		s.stats.Failed++
	} else {
		s.stats.Processed++
	}
	s.recent = append(s.recent, record)
	if over := len(s.recent) - maxRecentWebhooks; over > 0 {
		s.recent = append([]models.WebhookEventRecord(nil), s.recent[over:]...)
	}
	s.mu.Unlock()

	if err != nil {
		log.WithError(err).Warn("Webhook processing failed")
		return
	}
	log.Debug("Webhook processed")
}

func (s *WebhookService) route(ctx context.Context, env *models.WebhookEnvelope) (action string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while routing webhook: %v", r)
		}
	}()

	params := env.ParseParams()
	switch env.Type {
	case models.WebhookOrder, models.WebhookOrderSplit, models.WebhookLogistic:
		id := params.OrderID
		if id == "" {
			id = params.OrderNumber
		}
		if id != "" {
			err = s.orders.SyncOrder(ctx, id)
			if !errors.Is(err, ErrOrderNotFound) {
				return "order_sync", err
			}
		}
		_, err = s.orders.SyncOrders(ctx)
		return "order_sync_all", err

	case models.WebhookStock:
		if params.PID != "" {
			_, err = s.stock.CheckProduct(ctx, params.PID)
			if errors.Is(err, ErrCatalogItemNotFound) {
				// stock moves on products we do not sell are irrelevant
				return "ignored", nil
			}
			return "stock_check", err
		}
		_, err = s.stock.CheckStock(ctx)
		return "stock_check_all", err

	default:
		return "logged", nil
	}
}

// RecentEvents returns processed events, newest first
func (s *WebhookService) RecentEvents(limit int) []models.WebhookEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]models.WebhookEventRecord, 0, limit)
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

// Stats returns the webhook counters
func (s *WebhookService) Stats() models.WebhookStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Queued = s.count
	return out
}
