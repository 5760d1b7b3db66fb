package repository

import (
	"context"

	"supplier-engine-service/internal/models"
)

// MaxInventoryAlerts bounds the persisted alert log
const MaxInventoryAlerts = 200

// InventoryState is the persisted inventory document
type InventoryState struct {
	Records map[string]models.InventoryRecord `json:"records"`
	Alerts  []models.InventoryAlert           `json:"alerts"`
	Stats   models.InventoryStats             `json:"stats"`
}

// AddAlert appends an alert, keeping the most recent entries
func (s *InventoryState) AddAlert(alert models.InventoryAlert) {
	s.Alerts = append(s.Alerts, alert)
	if over := len(s.Alerts) - MaxInventoryAlerts; over > 0 {
		s.Alerts = append([]models.InventoryAlert(nil), s.Alerts[over:]...)
	}
}

// InventoryRepository owns the stock cache and alert log
type InventoryRepository struct {
	c *collection[InventoryState]
}

// NewInventoryRepository creates the repository and loads the stored snapshot
func NewInventoryRepository(ctx context.Context, store SnapshotStore) (*InventoryRepository, error) {
	r := &InventoryRepository{
		c: newCollection(SnapshotInventory, store, InventoryState{Records: map[string]models.InventoryRecord{}}),
	}
	if err := r.c.load(ctx); err != nil {
		return nil, err
	}
	if r.c.state.Records == nil {
		r.c.state.Records = map[string]models.InventoryRecord{}
	}
	return r, nil
}

// Record returns the last stock snapshot for a pid
func (r *InventoryRepository) Record(pid string) (models.InventoryRecord, bool) {
	var (
		out models.InventoryRecord
		ok  bool
	)
	r.c.read(func(s *InventoryState) { out, ok = s.Records[pid] })
	return out, ok
}

// Alerts returns up to limit alerts, most recent first
func (r *InventoryRepository) Alerts(limit int) []models.InventoryAlert {
	var out []models.InventoryAlert
	r.c.read(func(s *InventoryState) {
		n := len(s.Alerts)
		if limit <= 0 || limit > n {
			limit = n
		}
		out = make([]models.InventoryAlert, 0, limit)
		for i := n - 1; i >= n-limit; i-- {
			out = append(out, s.Alerts[i])
		}
	})
	return out
}

// Stats returns the statistics of the last stock check
func (r *InventoryRepository) Stats() models.InventoryStats {
	var out models.InventoryStats
	r.c.read(func(s *InventoryState) {
		out = s.Stats
		out.LastRun = cloneTime(s.Stats.LastRun)
	})
	return out
}

// Apply changes the state under the lock without persisting. Use it for
// edits that cannot fail.
func (r *InventoryRepository) Apply(fn func(*InventoryState)) {
	r.c.apply(fn)
}

// Flush persists the inventory document if it changed
func (r *InventoryRepository) Flush(ctx context.Context) error {
	return r.c.flush(ctx)
}

// Update applies fn and persists immediately
func (r *InventoryRepository) Update(ctx context.Context, fn func(*InventoryState) error) error {
	return r.c.update(ctx, fn)
}
