package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"supplier-engine-service/internal/catalog"
	"supplier-engine-service/internal/clients"
	"supplier-engine-service/internal/clients/clientsmock"
	"supplier-engine-service/internal/events"
	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/repository"
)

type inventoryFixture struct {
	api      *clientsmock.MockSupplierAPI
	monitor  *InventoryMonitor
	catalog  *repository.CatalogRepository
	repo     *repository.InventoryRepository
	recorder *events.Recorder
}

func newInventoryFixture(t *testing.T, cfg InventoryConfig) *inventoryFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	catalogRepo, err := repository.NewCatalogRepository(context.Background(), store)
	require.NoError(t, err)
	repo, err := repository.NewInventoryRepository(context.Background(), store)
	require.NoError(t, err)

	api := new(clientsmock.MockSupplierAPI)
	recorder := &events.Recorder{}
	m := NewInventoryMonitor(api, catalogRepo, repo, catalog.DefaultPolicy(), cfg, recorder, testLogger())
	m.now = func() time.Time { return testNow }
	return &inventoryFixture{api: api, monitor: m, catalog: catalogRepo, repo: repo, recorder: recorder}
}

func stock(qty int) []clients.StockEntry {
	return []clients.StockEntry{{AreaID: "1", Area: "China Warehouse", CountryCode: "CN", Quantity: qty}}
}

func productAt(pid string, cost float64) *clients.ProductDetail {
	return &clients.ProductDetail{ExternalProduct: clients.ExternalProduct{PID: pid, SellPrice: cost}}
}

func TestCheckStockDisablesAndReenables(t *testing.T) {
	f := newInventoryFixture(t, InventoryConfig{})

	manual := catalogItem("M1", 60)
	manual.Disable(models.DisabledManual, testNow)
	seedCatalog(t, f.catalog, catalogItem("P1", 80), manual)

	f.api.On("GetStock", mock.Anything, "P1", "P1-V").Return(stock(0), nil).Once()
	f.api.On("GetProduct", mock.Anything, "P1").Return(productAt("P1", 5), nil)

	stats, err := f.monitor.CheckStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tracked)
	assert.Equal(t, 1, stats.OutOfStock)
	assert.Equal(t, 1, stats.DisabledOutOfStock)

	item, _ := f.catalog.Get("P1")
	assert.True(t, item.Disabled)
	assert.Equal(t, models.DisabledOutOfStock, item.DisabledReason)

	f.api.On("GetStock", mock.Anything, "P1", "P1-V").Return(stock(3), nil).Once()

	stats, err = f.monitor.CheckStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.InStock)
	assert.Equal(t, 1, stats.Reenabled)
	assert.Equal(t, 1, stats.LowStock)
	assert.Zero(t, stats.DisabledOutOfStock)

	item, _ = f.catalog.Get("P1")
	assert.False(t, item.Disabled)

	manualAfter, _ := f.catalog.Get("M1")
	assert.True(t, manualAfter.Disabled)
	assert.Equal(t, models.DisabledManual, manualAfter.DisabledReason)
	f.api.AssertNotCalled(t, "GetStock", mock.Anything, "M1", mock.Anything)

	alerts := f.monitor.GetAlerts(0)
	require.Len(t, alerts, 3)
	assert.Equal(t, models.AlertLowStock, alerts[0].Type)
	assert.Equal(t, models.AlertBackInStock, alerts[1].Type)
	assert.Equal(t, models.AlertOutOfStock, alerts[2].Type)

	assert.Equal(t, []string{
		events.InventoryAlert, events.CatalogItemDisabled,
		events.InventoryAlert, events.InventoryAlert, events.CatalogItemEnabled,
	}, f.recorder.Types())

	record, err := f.monitor.GetRecord("P1")
	require.NoError(t, err)
	assert.Equal(t, 3, record.Quantity)
	assert.True(t, record.InStock)
}

func TestCheckStockRepricesOnCostMove(t *testing.T) {
	f := newInventoryFixture(t, InventoryConfig{AutoReprice: true})
	seedCatalog(t, f.catalog, catalogItem("P2", 70))

	f.api.On("GetStock", mock.Anything, "P2", "P2-V").Return(stock(50), nil)
	f.api.On("GetProduct", mock.Anything, "P2").Return(&clients.ProductDetail{
		ExternalProduct: clients.ExternalProduct{PID: "P2", SellPrice: 4},
		Variants:        []clients.Variant{{VID: "P2-V", SellPrice: 6}},
	}, nil)

	stats, err := f.monitor.CheckStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PriceChanges)
	assert.Zero(t, stats.LowStock)

	item, _ := f.catalog.Get("P2")
	assert.Equal(t, 6.0, item.Pricing.WholesaleCost)
	assert.Equal(t, 14.99, item.Pricing.RetailPrice)

	alerts := f.monitor.GetAlerts(1)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertPriceChange, alerts[0].Type)
	assert.Equal(t, 5.0, alerts[0].OldCost)
	assert.Equal(t, 6.0, alerts[0].NewCost)

	record, err := f.monitor.GetRecord("P2")
	require.NoError(t, err)
	assert.Equal(t, 6.0, record.LastCost)
}

func TestCheckStockSmallCostMoveIsIgnored(t *testing.T) {
	f := newInventoryFixture(t, InventoryConfig{AutoReprice: true})
	seedCatalog(t, f.catalog, catalogItem("P3", 70))

	f.api.On("GetStock", mock.Anything, "P3", "P3-V").Return(stock(50), nil)
	f.api.On("GetProduct", mock.Anything, "P3").Return(productAt("P3", 5.5), nil)

	stats, err := f.monitor.CheckStock(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.PriceChanges)

	item, _ := f.catalog.Get("P3")
	assert.Equal(t, 5.0, item.Pricing.WholesaleCost)
}

func TestCheckStockCountsErrors(t *testing.T) {
	f := newInventoryFixture(t, InventoryConfig{})
	seedCatalog(t, f.catalog, catalogItem("P1", 80), catalogItem("P2", 70))

	f.api.On("GetStock", mock.Anything, "P1", "P1-V").Return(nil, errors.New("rate limited"))
	f.api.On("GetStock", mock.Anything, "P2", "P2-V").Return(stock(20), nil)
	f.api.On("GetProduct", mock.Anything, "P2").Return(nil, errors.New("not found"))

	stats, err := f.monitor.CheckStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Tracked)
	assert.Equal(t, 1, stats.InStock)

	item, _ := f.catalog.Get("P1")
	assert.False(t, item.Disabled, "a failed check leaves the item alone")
	assert.Equal(t, 1, f.monitor.GetInventoryStats().Errors)
}

func TestCheckProduct(t *testing.T) {
	f := newInventoryFixture(t, InventoryConfig{})
	manual := catalogItem("M1", 60)
	manual.Disable(models.DisabledManual, testNow)
	seedCatalog(t, f.catalog, catalogItem("P1", 80), manual)

	_, err := f.monitor.CheckProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCatalogItemNotFound)

	_, err = f.monitor.CheckProduct(context.Background(), "M1")
	require.NoError(t, err)
	f.api.AssertNotCalled(t, "GetStock", mock.Anything, "M1", mock.Anything)

	f.api.On("GetStock", mock.Anything, "P1", "P1-V").Return(stock(0), nil)
	f.api.On("GetProduct", mock.Anything, "P1").Return(productAt("P1", 5), nil)
	record, err := f.monitor.CheckProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.False(t, record.InStock)

	item, _ := f.catalog.Get("P1")
	assert.True(t, item.Disabled)
}
