package repository

import (
	"context"
	"sort"

	"supplier-engine-service/internal/models"
)

// MaxScanRuns bounds the persisted run history
const MaxScanRuns = 50

// CatalogState is the persisted catalog document
type CatalogState struct {
	Items map[string]*models.CatalogItem `json:"items"`
	Runs  []models.ScanRun               `json:"runs"`
	Stats models.CatalogStats            `json:"stats"`
}

// FindByFingerprint returns the item holding the fingerprint, if any
func (s *CatalogState) FindByFingerprint(fp string) *models.CatalogItem {
	for _, item := range s.Items {
		if item.Fingerprint == fp {
			return item
		}
	}
	return nil
}

// AddRun appends a run, keeping the most recent MaxScanRuns
func (s *CatalogState) AddRun(run models.ScanRun) {
	s.Runs = append(s.Runs, run)
	if over := len(s.Runs) - MaxScanRuns; over > 0 {
		s.Runs = append([]models.ScanRun(nil), s.Runs[over:]...)
	}
}

// SortedItems returns the items ordered by descending score, ties by pid
func (s *CatalogState) SortedItems() []*models.CatalogItem {
	items := make([]*models.CatalogItem, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score() != items[j].Score() {
			return items[i].Score() > items[j].Score()
		}
		return items[i].PID < items[j].PID
	})
	return items
}

// CatalogRepository owns the catalog collection. The scanner and the
// inventory monitor both write through Update.
type CatalogRepository struct {
	c *collection[CatalogState]
}

// NewCatalogRepository creates the repository and loads the stored snapshot
func NewCatalogRepository(ctx context.Context, store SnapshotStore) (*CatalogRepository, error) {
	r := &CatalogRepository{
		c: newCollection(SnapshotCatalog, store, CatalogState{Items: map[string]*models.CatalogItem{}}),
	}
	if err := r.c.load(ctx); err != nil {
		return nil, err
	}
	if r.c.state.Items == nil {
		r.c.state.Items = map[string]*models.CatalogItem{}
	}
	return r, nil
}

// List returns copies of all items, highest score first
func (r *CatalogRepository) List() []models.CatalogItem {
	var out []models.CatalogItem
	r.c.read(func(s *CatalogState) {
		sorted := s.SortedItems()
		out = make([]models.CatalogItem, 0, len(sorted))
		for _, item := range sorted {
			out = append(out, cloneItem(item))
		}
	})
	return out
}

// Get returns a copy of the item with the given pid
func (r *CatalogRepository) Get(pid string) (models.CatalogItem, bool) {
	var (
		out models.CatalogItem
		ok  bool
	)
	r.c.read(func(s *CatalogState) {
		var item *models.CatalogItem
		if item, ok = s.Items[pid]; ok {
			out = cloneItem(item)
		}
	})
	return out, ok
}

// Count returns the number of items
func (r *CatalogRepository) Count() int {
	var n int
	r.c.read(func(s *CatalogState) { n = len(s.Items) })
	return n
}

// Stats returns the last computed aggregate statistics
func (r *CatalogRepository) Stats() models.CatalogStats {
	var out models.CatalogStats
	r.c.read(func(s *CatalogState) {
		out = s.Stats
		out.Categories = make(map[string]int, len(s.Stats.Categories))
		for k, v := range s.Stats.Categories {
			out.Categories[k] = v
		}
	})
	return out
}

// Runs returns the run history, most recent first
func (r *CatalogRepository) Runs() []models.ScanRun {
	var out []models.ScanRun
	r.c.read(func(s *CatalogState) {
		out = make([]models.ScanRun, 0, len(s.Runs))
		for i := len(s.Runs) - 1; i >= 0; i-- {
			out = append(out, s.Runs[i])
		}
	})
	return out
}

// Apply changes the state under the lock without persisting. Use it for
// edits that cannot fail.
func (r *CatalogRepository) Apply(fn func(*CatalogState)) {
	r.c.apply(fn)
}

// Flush persists the catalog if it changed
func (r *CatalogRepository) Flush(ctx context.Context) error {
	return r.c.flush(ctx)
}

// Update applies fn under the catalog lock and persists the result
func (r *CatalogRepository) Update(ctx context.Context, fn func(*CatalogState) error) error {
	return r.c.update(ctx, fn)
}

func cloneItem(item *models.CatalogItem) models.CatalogItem {
	out := *item
	out.Gallery = append([]string(nil), item.Gallery...)
	if item.DisabledAt != nil {
		t := *item.DisabledAt
		out.DisabledAt = &t
	}
	return out
}
