package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"supplier-engine-service/internal/models"
	"supplier-engine-service/internal/repository"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fixedClock returns a clock that can be moved forward by the test
func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func seedCatalog(t *testing.T, repo *repository.CatalogRepository, items ...*models.CatalogItem) {
	t.Helper()
	require.NoError(t, repo.Update(context.Background(), func(s *repository.CatalogState) error {
		for _, item := range items {
			s.Items[item.PID] = item
		}
		return nil
	}))
}

func seedOrders(t *testing.T, repo *repository.OrderRepository, orders ...*models.Order) {
	t.Helper()
	require.NoError(t, repo.Update(context.Background(), func(s *repository.OrderState) error {
		for _, o := range orders {
			s.Orders[o.ID] = o
		}
		return nil
	}))
}

func catalogItem(pid string, score float64) *models.CatalogItem {
	return &models.CatalogItem{
		PID:         pid,
		VID:         pid + "-V",
		Name:        "Article " + pid,
		NameEn:      "Item " + pid,
		Category:    "Maison",
		Fingerprint: "fp-" + pid,
		Pricing: models.Pricing{
			WholesaleCost:    5,
			RetailPrice:      19.99,
			Margin:           10,
			OpportunityScore: score,
		},
		AddedAt: testNow.Add(-24 * time.Hour),
	}
}
