package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("SCAN_KEYWORDS", "")

	cfg := Load()

	assert.Equal(t, StorageFile, cfg.StorageDriver)
	assert.Equal(t, 350*time.Millisecond, cfg.SupplierMinInterval)
	assert.Equal(t, 2, cfg.SupplierMaxRetries)
	assert.Equal(t, 4*time.Hour, cfg.ScanInterval)
	assert.Equal(t, 2*time.Hour, cfg.StockInterval)
	assert.Equal(t, 5*time.Minute, cfg.OrderInterval)
	assert.Equal(t, 30*time.Minute, cfg.DisputeInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.ShipSLA)
	assert.Equal(t, 15*24*time.Hour, cfg.TrackingSLA)
	assert.Equal(t, 45*24*time.Hour, cfg.DeliverySLA)
	assert.Equal(t, 200, cfg.MaxCatalogSize)
	assert.Equal(t, 3*time.Second, cfg.WebhookAckTimeout)
	assert.Equal(t, DefaultKeywords, cfg.ScanKeywords)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCAN_KEYWORDS", " yoga mat, ,desk lamp ")
	t.Setenv("MAX_CATALOG_SIZE", "50")
	t.Setenv("STOCK_ITEM_DELAY", "0s")
	t.Setenv("AUTO_REPRICE", "false")
	t.Setenv("MARKUP", "3")
	t.Setenv("ORDER_MAX_RETRIES", "not-a-number")

	cfg := Load()

	assert.Equal(t, []string{"yoga mat", "desk lamp"}, cfg.ScanKeywords)
	assert.Equal(t, 50, cfg.MaxCatalogSize)
	assert.Equal(t, time.Duration(0), cfg.StockItemDelay)
	assert.False(t, cfg.AutoReprice)
	assert.Equal(t, 3.0, cfg.Pricing.Markup)
	assert.Equal(t, 3, cfg.OrderMaxRetries)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.StorageDriver = StoragePostgres
	cfg.DatabaseURL = ""
	cfg.Pricing.Markup = 1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "MARKUP")

	cfg.StorageDriver = "s3"
	assert.ErrorContains(t, cfg.Validate(), "unknown STORAGE_DRIVER")
}
