package services

import (
	"context"
	"errors"
	"fmt"
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

func newTestScanner(t *testing.T, api clients.SupplierAPI, cfg ScannerConfig) (*CatalogScanner, *repository.CatalogRepository, *events.Recorder) {
	t.Helper()
	repo, err := repository.NewCatalogRepository(context.Background(), repository.NewMemoryStore())
	require.NoError(t, err)
	recorder := &events.Recorder{}
	s := NewCatalogScanner(api, repo, catalog.DefaultPolicy(), cfg, recorder, testLogger())
	s.now = func() time.Time { return testNow }
	return s, repo, recorder
}

func searchHit(pid, name string) clients.ExternalProduct {
	return clients.ExternalProduct{
		PID:       pid,
		NameEn:    name,
		SellPrice: 5,
		Image:     "https://img.example.com/" + pid + ".jpg",
	}
}

// expectAdmissible makes every pid pass the variant and freight gates
// with a $5 variant and free shipping.
func expectAdmissible(api *clientsmock.MockSupplierAPI) {
	api.On("GetVariants", mock.Anything, mock.Anything).Return([]clients.Variant{{VID: "V-5", SellPrice: 5}}, nil)
	api.On("QuoteFreight", mock.Anything, mock.Anything).Return([]clients.FreightOption{
		{LogisticName: "CJPacket Ordinary", Price: 0, Aging: "7-12"},
	}, nil)
}

func TestAdmitKeepsHigherScore(t *testing.T) {
	existing := catalogItem("P1", 70)
	existing.Disable(models.DisabledManual, testNow)
	state := &repository.CatalogState{Items: map[string]*models.CatalogItem{"P1": existing}}

	lower := catalogItem("P1", 70)
	lower.Name = "lower"
	assert.Equal(t, admissionDiscarded, admit(state, lower, testNow))
	assert.Equal(t, "Article P1", state.Items["P1"].Name, "equal score leaves the entry unchanged")

	higher := catalogItem("P1", 80)
	higher.Name = "higher"
	assert.Equal(t, admissionUpgraded, admit(state, higher, testNow))
	got := state.Items["P1"]
	assert.Equal(t, "higher", got.Name)
	assert.Equal(t, existing.AddedAt, got.AddedAt)
	assert.True(t, got.Disabled, "disabled state carries over")
	assert.Equal(t, models.DisabledManual, got.DisabledReason)
}

func TestAdmitReplacesFingerprintHolder(t *testing.T) {
	state := &repository.CatalogState{Items: map[string]*models.CatalogItem{"P1": catalogItem("P1", 60)}}

	twin := catalogItem("P2", 59)
	twin.Fingerprint = "fp-P1"
	assert.Equal(t, admissionDiscarded, admit(state, twin, testNow))

	better := catalogItem("P2", 75)
	better.Fingerprint = "fp-P1"
	assert.Equal(t, admissionUpgraded, admit(state, better, testNow))
	assert.NotContains(t, state.Items, "P1")
	assert.Contains(t, state.Items, "P2")
	assert.Len(t, state.Items, 1)
}

func TestScanEvictsLowestScoresAtCap(t *testing.T) {
	api := new(clientsmock.MockSupplierAPI)
	s, repo, recorder := newTestScanner(t, api, ScannerConfig{Keywords: []string{"pets"}, MaxCatalogSize: 200})

	var seed []*models.CatalogItem
	for i := 0; i < 200; i++ {
		seed = append(seed, catalogItem(fmt.Sprintf("OLD%03d", i), 50+float64(i)*0.1))
	}
	seedCatalog(t, repo, seed...)

	api.On("SearchProducts", mock.Anything, mock.MatchedBy(func(o *clients.SearchOptions) bool { return o.Keyword == "pets" })).
		Return(&clients.ProductsResult{Products: []clients.ExternalProduct{
			searchHit("N1", "Dog Grooming Brush"),
			searchHit("N2", "Led Desk Lamp"),
			searchHit("N3", "Yoga Mat Strap"),
			searchHit("N4", "Phone Holder Stand"),
			searchHit("N5", "Kitchen Garlic Press"),
		}}, nil)
	expectAdmissible(api)

	run, err := s.Scan(context.Background(), "manual")
	require.NoError(t, err)

	assert.Equal(t, 5, run.Admitted)
	assert.Equal(t, 5, run.Evicted)
	assert.Equal(t, 200, run.Total)
	assert.Equal(t, 200, repo.Count())
	for i := 0; i < 5; i++ {
		_, ok := repo.Get(fmt.Sprintf("OLD%03d", i))
		assert.False(t, ok, "lowest scoring item %d evicted", i)
	}
	_, ok := repo.Get("OLD005")
	assert.True(t, ok)
	for _, pid := range []string{"N1", "N2", "N3", "N4", "N5"} {
		item, ok := repo.Get(pid)
		require.True(t, ok, pid)
		assert.Equal(t, "pets", item.Keyword)
		assert.True(t, item.Pricing.FreeShipping)
	}

	stats := repo.Stats()
	assert.Equal(t, 200, stats.Count)
	require.Len(t, repo.Runs(), 1)
	assert.Equal(t, []string{events.CatalogScanCompleted}, recorder.Types())
}

func TestScanCountsFailuresAndKeepsGoing(t *testing.T) {
	api := new(clientsmock.MockSupplierAPI)
	s, repo, _ := newTestScanner(t, api, ScannerConfig{Keywords: []string{"broken", "lamps"}})

	api.On("SearchProducts", mock.Anything, mock.MatchedBy(func(o *clients.SearchOptions) bool { return o.Keyword == "broken" })).
		Return(nil, errors.New("timeout"))
	api.On("SearchProducts", mock.Anything, mock.MatchedBy(func(o *clients.SearchOptions) bool { return o.Keyword == "lamps" })).
		Return(&clients.ProductsResult{Products: []clients.ExternalProduct{
			searchHit("L1", "Led Desk Lamp"),
			searchHit("L2", "Led Desk Lamp"),
			{PID: "L3", NameEn: "Free Gift", SellPrice: 0, Image: "https://img.example.com/l3.jpg"},
		}}, nil)
	api.On("GetVariants", mock.Anything, "L1").Return(nil, errors.New("bad gateway"))
	api.On("GetVariants", mock.Anything, "L2").Return([]clients.Variant{{VID: "L2-V", SellPrice: 5}}, nil)
	api.On("QuoteFreight", mock.Anything, mock.Anything).Return([]clients.FreightOption{{LogisticName: "YunExpress", Price: 0}}, nil)

	run, err := s.Scan(context.Background(), "scheduled")
	require.NoError(t, err)

	assert.Equal(t, 2, run.Errors)
	assert.Equal(t, 3, run.Searched)
	assert.Equal(t, 1, run.Admitted)
	assert.Equal(t, 1, run.Rejected[string(catalog.RejectCost)])
	assert.Equal(t, 1, repo.Count())
}

func TestScanRejectsConcurrentRun(t *testing.T) {
	api := new(clientsmock.MockSupplierAPI)
	s, _, _ := newTestScanner(t, api, ScannerConfig{Keywords: []string{"slow"}})

	started := make(chan struct{})
	release := make(chan struct{})
	api.On("SearchProducts", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(&clients.ProductsResult{}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := s.Scan(context.Background(), "scheduled")
		done <- err
	}()
	<-started

	_, err := s.Scan(context.Background(), "manual")
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestManualDisableAndListing(t *testing.T) {
	api := new(clientsmock.MockSupplierAPI)
	s, _, recorder := newTestScanner(t, api, ScannerConfig{})

	lamp := catalogItem("P1", 80)
	lamp.Category = "Luminaires"
	lamp.Name = "Lampe de bureau LED"
	lamp.Pricing.RetailPrice = 29.99
	brush := catalogItem("P2", 60)
	brush.Pricing.RetailPrice = 14.99
	seedCatalog(t, s.repo, lamp, brush)

	item, err := s.DisableItem(context.Background(), "P1")
	require.NoError(t, err)
	assert.True(t, item.Disabled)
	assert.Equal(t, models.DisabledManual, item.DisabledReason)

	_, err = s.DisableItem(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCatalogItemNotFound)

	items, total := s.ListCatalog(CatalogFilter{EnabledOnly: true})
	assert.Equal(t, 1, total)
	assert.Equal(t, "P2", items[0].PID)

	items, total = s.ListCatalog(CatalogFilter{Query: "lampe"})
	assert.Equal(t, 1, total)
	assert.Equal(t, "P1", items[0].PID)

	items, _ = s.ListCatalog(CatalogFilter{Sort: "price"})
	assert.Equal(t, "P2", items[0].PID)

	items, total = s.ListCatalog(CatalogFilter{MinScore: 70, Limit: 1})
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)

	item, err = s.EnableItem(context.Background(), "P1")
	require.NoError(t, err)
	assert.False(t, item.Disabled)
	assert.Equal(t, []string{events.CatalogItemDisabled, events.CatalogItemEnabled}, recorder.Types())
}
