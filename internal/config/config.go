package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
)

// Storage drivers
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Config holds all configuration for the supplier engine
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Supplier API
	SupplierBaseURL     string
	SupplierEmail       string
	SupplierPassword    string
	SupplierAPIKey      string
	SupplierMinInterval time.Duration
	SupplierMaxRetries  int
	SupplierTimeout     time.Duration

	// GCP
	GCPProjectID       string
	SupplierSecretName string

	// Storage
	StorageDriver string
	DataDir       string
	DatabaseURL   string
	RedisURL      string

	// Events
	NATSURL string

	// Webhooks
	WebhookSecret     string
	WebhookBufferSize int
	WebhookAckTimeout time.Duration

	// Catalog scanner
	ScanInterval   time.Duration
	ScanKeywords   []string
	ScanPageSize   int
	MaxCatalogSize int

	// Pricing
	Pricing PricingConfig

	// Inventory monitor
	StockInterval      time.Duration
	StockInitialDelay  time.Duration
	StockItemDelay     time.Duration
	LowStockThreshold  int
	PriceChangePercent float64
	AutoReprice        bool

	// Order manager
	OrderInterval       time.Duration
	OrderMaxRetries     int
	LowBalanceThreshold float64
	DefaultLogistic     string

	// Dispute manager
	DisputeInterval     time.Duration
	DisputeInitialDelay time.Duration
	ShipSLA             time.Duration
	TrackingSLA         time.Duration
	DeliverySLA         time.Duration
}

// PricingConfig holds the admission gates and pricing knobs of the catalog engine
type PricingConfig struct {
	Markup             float64
	USDToEUR           float64
	MinScore           float64
	CostCeiling        float64
	ShippingCeiling    float64
	RetailCeiling      float64
	DestinationCountry string
	OriginCountry      string
}

// DefaultKeywords is the curated search list walked by the catalog scanner
var DefaultKeywords = []string{
	"pet grooming",
	"led strip",
	"phone holder",
	"kitchen gadget",
	"yoga mat",
	"portable blender",
	"car organizer",
	"jewelry box",
	"desk lamp",
	"wireless earbuds",
	"plant pot",
	"makeup brush",
}

// Load loads configuration from environment variables
func Load() *Config {
	storageDriver := strings.ToLower(getEnv("STORAGE_DRIVER", StorageFile))

	// Build DATABASE_URL from components using GCP Secret Manager for password
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" && storageDriver == StoragePostgres {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := secrets.GetDBPassword()
		dbName := getEnv("DB_NAME", "supplier_engine")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	return &Config{
		Port:        getEnv("PORT", "8099"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		SupplierBaseURL:     getEnv("SUPPLIER_BASE_URL", "https://developers.cjdropshipping.com/api2.0/v1"),
		SupplierEmail:       getEnv("SUPPLIER_EMAIL", ""),
		SupplierPassword:    getEnv("SUPPLIER_PASSWORD", ""),
		SupplierAPIKey:      getEnv("SUPPLIER_API_KEY", ""),
		SupplierMinInterval: getEnvAsDuration("SUPPLIER_MIN_INTERVAL", 350*time.Millisecond),
		SupplierMaxRetries:  getEnvAsInt("SUPPLIER_MAX_RETRIES", 2),
		SupplierTimeout:     getEnvAsDuration("SUPPLIER_TIMEOUT", 30*time.Second),

		GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
		SupplierSecretName: getEnv("SUPPLIER_SECRET_NAME", ""),

		StorageDriver: storageDriver,
		DataDir:       getEnv("DATA_DIR", "./data"),
		DatabaseURL:   databaseURL,
		RedisURL:      getEnv("REDIS_URL", ""),

		NATSURL: getEnv("NATS_URL", ""),

		WebhookSecret:     getEnv("WEBHOOK_SECRET", ""),
		WebhookBufferSize: getEnvAsInt("WEBHOOK_BUFFER_SIZE", 256),
		WebhookAckTimeout: getEnvAsDuration("WEBHOOK_ACK_TIMEOUT", 3*time.Second),

		ScanInterval:   getEnvAsDuration("SCAN_INTERVAL", 4*time.Hour),
		ScanKeywords:   getEnvAsList("SCAN_KEYWORDS", DefaultKeywords),
		ScanPageSize:   getEnvAsInt("SCAN_PAGE_SIZE", 20),
		MaxCatalogSize: getEnvAsInt("MAX_CATALOG_SIZE", 200),

		Pricing: PricingConfig{
			Markup:             getEnvAsFloat("MARKUP", 2.5),
			USDToEUR:           getEnvAsFloat("USD_TO_EUR", 0.92),
			MinScore:           getEnvAsFloat("MIN_SCORE", 45),
			CostCeiling:        getEnvAsFloat("COST_CEILING_USD", 40),
			ShippingCeiling:    getEnvAsFloat("SHIPPING_CEILING_USD", 12),
			RetailCeiling:      getEnvAsFloat("RETAIL_CEILING_EUR", 99.99),
			DestinationCountry: getEnv("DESTINATION_COUNTRY", "FR"),
			OriginCountry:      getEnv("ORIGIN_COUNTRY", "CN"),
		},

		StockInterval:      getEnvAsDuration("STOCK_INTERVAL", 2*time.Hour),
		StockInitialDelay:  getEnvAsDuration("STOCK_INITIAL_DELAY", 2*time.Minute),
		StockItemDelay:     getEnvAsDuration("STOCK_ITEM_DELAY", 500*time.Millisecond),
		LowStockThreshold:  getEnvAsInt("LOW_STOCK_THRESHOLD", 10),
		PriceChangePercent: getEnvAsFloat("PRICE_CHANGE_PERCENT", 15),
		AutoReprice:        getEnvAsBool("AUTO_REPRICE", true),

		OrderInterval:       getEnvAsDuration("ORDER_INTERVAL", 5*time.Minute),
		OrderMaxRetries:     getEnvAsInt("ORDER_MAX_RETRIES", 3),
		LowBalanceThreshold: getEnvAsFloat("LOW_BALANCE_THRESHOLD", 50),
		DefaultLogistic:     getEnv("DEFAULT_LOGISTIC", "CJPacket Ordinary"),

		DisputeInterval:     getEnvAsDuration("DISPUTE_INTERVAL", 30*time.Minute),
		DisputeInitialDelay: getEnvAsDuration("DISPUTE_INITIAL_DELAY", 5*time.Minute),
		ShipSLA:             getEnvAsDuration("SHIP_SLA", 7*24*time.Hour),
		TrackingSLA:         getEnvAsDuration("TRACKING_SLA", 15*24*time.Hour),
		DeliverySLA:         getEnvAsDuration("DELIVERY_SLA", 45*24*time.Hour),
	}
}

// Validate checks the settings the engine cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.SupplierBaseURL == "" {
		errs = append(errs, errors.New("SUPPLIER_BASE_URL is required"))
	}
	switch c.StorageDriver {
	case StorageFile:
		if c.DataDir == "" {
			errs = append(errs, errors.New("DATA_DIR is required for file storage"))
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.MaxCatalogSize <= 0 {
		errs = append(errs, errors.New("MAX_CATALOG_SIZE must be positive"))
	}
	if c.Pricing.Markup <= 1 {
		errs = append(errs, errors.New("MARKUP must be greater than 1"))
	}
	if c.WebhookBufferSize <= 0 {
		errs = append(errs, errors.New("WEBHOOK_BUFFER_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// getEnvAsList splits a comma separated variable, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
