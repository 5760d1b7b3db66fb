package repository

import (
	"context"
	"sort"

	"supplier-engine-service/internal/models"
)

// DisputeState is the persisted disputes document
type DisputeState struct {
	Disputes map[string]*models.Dispute `json:"disputes"`
	Stats    models.DisputeStats        `json:"stats"`
}

// ActiveForOrder returns the pending or open dispute of an order, if any
func (s *DisputeState) ActiveForOrder(orderID string) *models.Dispute {
	for _, d := range s.Disputes {
		if d.OrderID == orderID && d.IsActive() {
			return d
		}
	}
	return nil
}

// Recount rebuilds the status counters from the disputes. The
// auto-created counter is cumulative and left untouched.
func (s *DisputeState) Recount() {
	s.Stats.Total = len(s.Disputes)
	s.Stats.Open, s.Stats.Pending, s.Stats.Resolved, s.Stats.Cancelled = 0, 0, 0, 0
	s.Stats.ByType = map[models.DisputeType]int{}
	for _, d := range s.Disputes {
		s.Stats.ByType[d.Type]++
		switch d.Status {
		case models.DisputeStatusOpen:
			s.Stats.Open++
		case models.DisputeStatusPending:
			s.Stats.Pending++
		case models.DisputeStatusResolved:
			s.Stats.Resolved++
		case models.DisputeStatusCancelled:
			s.Stats.Cancelled++
		}
	}
}

// DisputeRepository owns the dispute collection
type DisputeRepository struct {
	c *collection[DisputeState]
}

// NewDisputeRepository creates the repository and loads the stored snapshot
func NewDisputeRepository(ctx context.Context, store SnapshotStore) (*DisputeRepository, error) {
	r := &DisputeRepository{
		c: newCollection(SnapshotDisputes, store, DisputeState{Disputes: map[string]*models.Dispute{}}),
	}
	if err := r.c.load(ctx); err != nil {
		return nil, err
	}
	if r.c.state.Disputes == nil {
		r.c.state.Disputes = map[string]*models.Dispute{}
	}
	return r, nil
}

// Get returns a copy of the dispute with the given id
func (r *DisputeRepository) Get(id string) (models.Dispute, bool) {
	var (
		out models.Dispute
		ok  bool
	)
	r.c.read(func(s *DisputeState) {
		var d *models.Dispute
		if d, ok = s.Disputes[id]; ok {
			out = cloneDispute(d)
		}
	})
	return out, ok
}

// List returns copies of all disputes, newest first
func (r *DisputeRepository) List() []models.Dispute {
	var out []models.Dispute
	r.c.read(func(s *DisputeState) {
		out = make([]models.Dispute, 0, len(s.Disputes))
		for _, d := range s.Disputes {
			out = append(out, cloneDispute(d))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats returns the dispute counters
func (r *DisputeRepository) Stats() models.DisputeStats {
	var out models.DisputeStats
	r.c.read(func(s *DisputeState) {
		out = s.Stats
		out.ByType = make(map[models.DisputeType]int, len(s.Stats.ByType))
		for k, v := range s.Stats.ByType {
			out.ByType[k] = v
		}
		out.LastRun = cloneTime(s.Stats.LastRun)
	})
	return out
}

// Mutate applies fn under the lock without persisting
func (r *DisputeRepository) Mutate(fn func(*DisputeState) error) error {
	return r.c.mutate(fn)
}

// Apply changes the state under the lock without persisting. Use it for
// edits that cannot fail.
func (r *DisputeRepository) Apply(fn func(*DisputeState)) {
	r.c.apply(fn)
}

// Flush persists the disputes document if it changed
func (r *DisputeRepository) Flush(ctx context.Context) error {
	return r.c.flush(ctx)
}

// Update applies fn and persists immediately
func (r *DisputeRepository) Update(ctx context.Context, fn func(*DisputeState) error) error {
	return r.c.update(ctx, fn)
}

func cloneDispute(d *models.Dispute) models.Dispute {
	out := *d
	out.History = append([]models.DisputeHistoryEntry(nil), d.History...)
	return out
}
