package repository

import (
	"context"
	"sort"
	"time"

	"supplier-engine-service/internal/models"
)

// MaxOrderHistory bounds the persisted status-change log
const MaxOrderHistory = 500

// OrderState is the persisted orders document
type OrderState struct {
	Orders    map[string]*models.Order   `json:"orders"`
	History   []models.OrderHistoryEntry `json:"history"`
	Balance   *float64                   `json:"balance,omitempty"`
	LastCycle *time.Time                 `json:"lastCycle,omitempty"`
}

// AppendHistory records a status change, keeping the most recent entries
func (s *OrderState) AppendHistory(entry models.OrderHistoryEntry) {
	s.History = append(s.History, entry)
	if over := len(s.History) - MaxOrderHistory; over > 0 {
		s.History = append([]models.OrderHistoryEntry(nil), s.History[over:]...)
	}
}

// OrderRepository owns the order book. Only the order manager writes to it.
type OrderRepository struct {
	c *collection[OrderState]
}

// NewOrderRepository creates the repository and loads the stored snapshot
func NewOrderRepository(ctx context.Context, store SnapshotStore) (*OrderRepository, error) {
	r := &OrderRepository{
		c: newCollection(SnapshotOrders, store, OrderState{Orders: map[string]*models.Order{}}),
	}
	if err := r.c.load(ctx); err != nil {
		return nil, err
	}
	if r.c.state.Orders == nil {
		r.c.state.Orders = map[string]*models.Order{}
	}
	return r, nil
}

// Get returns a copy of the order with the given local id
func (r *OrderRepository) Get(id string) (models.Order, bool) {
	var (
		out models.Order
		ok  bool
	)
	r.c.read(func(s *OrderState) {
		var o *models.Order
		if o, ok = s.Orders[id]; ok {
			out = cloneOrder(o)
		}
	})
	return out, ok
}

// FindByCJOrderID returns a copy of the order carrying the supplier order id
func (r *OrderRepository) FindByCJOrderID(cjOrderID string) (models.Order, bool) {
	var (
		out models.Order
		ok  bool
	)
	r.c.read(func(s *OrderState) {
		for _, o := range s.Orders {
			if o.CJOrderID == cjOrderID {
				out, ok = cloneOrder(o), true
				return
			}
		}
	})
	return out, ok
}

// List returns copies of all orders, oldest first
func (r *OrderRepository) List() []models.Order {
	var out []models.Order
	r.c.read(func(s *OrderState) {
		out = make([]models.Order, 0, len(s.Orders))
		for _, o := range s.Orders {
			out = append(out, cloneOrder(o))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// History returns up to limit status changes, most recent first
func (r *OrderRepository) History(limit int) []models.OrderHistoryEntry {
	var out []models.OrderHistoryEntry
	r.c.read(func(s *OrderState) {
		n := len(s.History)
		if limit <= 0 || limit > n {
			limit = n
		}
		out = make([]models.OrderHistoryEntry, 0, limit)
		for i := n - 1; i >= n-limit; i-- {
			out = append(out, s.History[i])
		}
	})
	return out
}

// Meta returns the last known supplier balance and cycle time
func (r *OrderRepository) Meta() (balance *float64, lastCycle *time.Time) {
	r.c.read(func(s *OrderState) {
		if s.Balance != nil {
			b := *s.Balance
			balance = &b
		}
		if s.LastCycle != nil {
			t := *s.LastCycle
			lastCycle = &t
		}
	})
	return balance, lastCycle
}

// Apply changes the state under the lock without persisting. Use it for
// edits that cannot fail.
func (r *OrderRepository) Apply(fn func(*OrderState)) {
	r.c.apply(fn)
}

// Flush persists the order book if it changed
func (r *OrderRepository) Flush(ctx context.Context) error {
	return r.c.flush(ctx)
}

// Update applies fn and persists immediately
func (r *OrderRepository) Update(ctx context.Context, fn func(*OrderState) error) error {
	return r.c.update(ctx, fn)
}

func cloneOrder(o *models.Order) models.Order {
	out := *o
	out.Items = append([]models.OrderItem(nil), o.Items...)
	out.TrackingHistory = append([]models.TrackingEvent(nil), o.TrackingHistory...)
	out.PaidAt = cloneTime(o.PaidAt)
	out.ShippedAt = cloneTime(o.ShippedAt)
	out.DeliveredAt = cloneTime(o.DeliveredAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
