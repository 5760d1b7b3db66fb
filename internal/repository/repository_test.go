package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-engine-service/internal/models"
)

type failingStore struct {
	*MemoryStore
	fail bool
}

func (s *failingStore) Save(ctx context.Context, name string, data []byte) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, name, data)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.Load(ctx, "catalog")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, store.Save(ctx, "catalog", []byte(`{"a":1}`)))
	require.NoError(t, store.Save(ctx, "catalog", []byte(`{"a":2}`)))

	data, err := store.Load(ctx, "catalog")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")
	assert.Equal(t, "catalog.json", entries[0].Name())
}

func TestCatalogRepositoryPersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	repo, err := NewCatalogRepository(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, repo.Count())

	err = repo.Update(ctx, func(s *CatalogState) error {
		s.Items["P1"] = &models.CatalogItem{PID: "P1", Fingerprint: "brush_5", Pricing: models.Pricing{OpportunityScore: 60}}
		s.Items["P2"] = &models.CatalogItem{PID: "P2", Fingerprint: "lamp_9", Pricing: models.Pricing{OpportunityScore: 80}}
		s.AddRun(models.ScanRun{Trigger: "startup", Admitted: 2})
		return nil
	})
	require.NoError(t, err)

	reloaded, err := NewCatalogRepository(ctx, store)
	require.NoError(t, err)

	items := reloaded.List()
	require.Len(t, items, 2)
	assert.Equal(t, "P2", items[0].PID, "highest score first")
	require.Len(t, reloaded.Runs(), 1)
	assert.Equal(t, 2, reloaded.Runs()[0].Admitted)

	item, ok := reloaded.Get("P1")
	require.True(t, ok)
	assert.Equal(t, "brush_5", item.Fingerprint)
}

func TestCatalogRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo, err := NewCatalogRepository(ctx, NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, func(s *CatalogState) error {
		s.Items["P1"] = &models.CatalogItem{PID: "P1", Gallery: []string{"a"}}
		return nil
	}))

	item, _ := repo.Get("P1")
	item.Gallery[0] = "mutated"
	item.Disabled = true

	again, _ := repo.Get("P1")
	assert.Equal(t, "a", again.Gallery[0])
	assert.False(t, again.Disabled)
}

func TestCatalogStateHelpers(t *testing.T) {
	s := &CatalogState{Items: map[string]*models.CatalogItem{
		"P1": {PID: "P1", Fingerprint: "brush_5"},
	}}
	assert.Equal(t, "P1", s.FindByFingerprint("brush_5").PID)
	assert.Nil(t, s.FindByFingerprint("lamp_9"))

	for i := 0; i < MaxScanRuns+7; i++ {
		s.AddRun(models.ScanRun{Searched: i})
	}
	require.Len(t, s.Runs, MaxScanRuns)
	assert.Equal(t, 7, s.Runs[0].Searched)
}

func TestUpdateErrorLeavesSnapshotUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo, err := NewOrderRepository(ctx, store)
	require.NoError(t, err)

	err = repo.Update(ctx, func(s *OrderState) error {
		return errors.New("rejected")
	})
	require.Error(t, err)

	_, err = store.Load(ctx, SnapshotOrders)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestFlushRetriesAfterSaveFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: NewMemoryStore(), fail: true}
	repo, err := NewOrderRepository(ctx, store)
	require.NoError(t, err)

	repo.Apply(func(s *OrderState) {
		s.Orders["o1"] = &models.Order{ID: "o1", Status: models.OrderStatusPending}
	})
	require.Error(t, repo.Flush(ctx))

	store.fail = false
	require.NoError(t, repo.Flush(ctx))

	reloaded, err := NewOrderRepository(ctx, store)
	require.NoError(t, err)
	_, ok := reloaded.Get("o1")
	assert.True(t, ok)
}

func TestApplyPersistsAndFailedMutateDoesNot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo, err := NewDisputeRepository(ctx, store)
	require.NoError(t, err)

	rejected := errors.New("already disputed")
	err = repo.Mutate(func(s *DisputeState) error {
		return rejected
	})
	assert.ErrorIs(t, err, rejected)
	require.NoError(t, repo.Flush(ctx))
	_, err = store.Load(ctx, SnapshotDisputes)
	assert.ErrorIs(t, err, ErrSnapshotNotFound, "a failed mutation writes nothing")

	repo.Apply(func(s *DisputeState) { s.Recount() })
	require.NoError(t, repo.Flush(ctx))
	_, err = store.Load(ctx, SnapshotDisputes)
	assert.NoError(t, err)
}

func TestOrderRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	repo, err := NewOrderRepository(ctx, NewMemoryStore())
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Update(ctx, func(s *OrderState) error {
		s.Orders["b"] = &models.Order{ID: "b", CJOrderID: "CJ-B", CreatedAt: base.Add(time.Hour)}
		s.Orders["a"] = &models.Order{ID: "a", CreatedAt: base}
		for i := 0; i < MaxOrderHistory+3; i++ {
			s.AppendHistory(models.OrderHistoryEntry{OrderID: fmt.Sprintf("o%d", i)})
		}
		return nil
	}))

	orders := repo.List()
	require.Len(t, orders, 2)
	assert.Equal(t, "a", orders[0].ID)

	found, ok := repo.FindByCJOrderID("CJ-B")
	require.True(t, ok)
	assert.Equal(t, "b", found.ID)

	history := repo.History(2)
	require.Len(t, history, 2)
	assert.Equal(t, fmt.Sprintf("o%d", MaxOrderHistory+2), history[0].OrderID)
	assert.Len(t, repo.History(0), MaxOrderHistory)
}

func TestInventoryAlertsAreCapped(t *testing.T) {
	ctx := context.Background()
	repo, err := NewInventoryRepository(ctx, NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, func(s *InventoryState) error {
		for i := 0; i < MaxInventoryAlerts+10; i++ {
			s.AddAlert(models.InventoryAlert{PID: fmt.Sprintf("P%d", i), Type: models.AlertLowStock})
		}
		s.Records["P1"] = models.InventoryRecord{PID: "P1", Quantity: 4, InStock: true}
		return nil
	}))

	alerts := repo.Alerts(0)
	require.Len(t, alerts, MaxInventoryAlerts)
	assert.Equal(t, fmt.Sprintf("P%d", MaxInventoryAlerts+9), alerts[0].PID)

	rec, ok := repo.Record("P1")
	require.True(t, ok)
	assert.Equal(t, 4, rec.Quantity)
}

func TestDisputeStateHelpers(t *testing.T) {
	s := &DisputeState{Disputes: map[string]*models.Dispute{
		"d1": {ID: "d1", OrderID: "o1", Type: models.DisputeNotShipped, Status: models.DisputeStatusResolved},
		"d2": {ID: "d2", OrderID: "o1", Type: models.DisputeTrackingStale, Status: models.DisputeStatusPending},
		"d3": {ID: "d3", OrderID: "o2", Type: models.DisputeNotShipped, Status: models.DisputeStatusOpen},
	}}

	assert.Equal(t, "d2", s.ActiveForOrder("o1").ID)
	assert.Nil(t, s.ActiveForOrder("o3"))

	s.Recount()
	assert.Equal(t, 3, s.Stats.Total)
	assert.Equal(t, 1, s.Stats.Open)
	assert.Equal(t, 1, s.Stats.Pending)
	assert.Equal(t, 1, s.Stats.Resolved)
	assert.Equal(t, 2, s.Stats.ByType[models.DisputeNotShipped])
}

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(2)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	first, err := store.MarkSeen(ctx, "m1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkSeen(ctx, "m1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	now = now.Add(2 * time.Hour)
	expired, err := store.MarkSeen(ctx, "m1", time.Hour)
	require.NoError(t, err)
	assert.True(t, expired, "ids are forgotten after their ttl")

	_, _ = store.MarkSeen(ctx, "m2", time.Hour)
	_, _ = store.MarkSeen(ctx, "m3", time.Hour)
	assert.LessOrEqual(t, len(store.seen), 2)
}
