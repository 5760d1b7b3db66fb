package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"supplier-engine-service/internal/config"
)

// SupplierSecret is the JSON document stored in Secret Manager for the
// supplier account
type SupplierSecret struct {
	Email         string `json:"email,omitempty"`
	Password      string `json:"password,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// HasCredentials reports whether the secret can authenticate on its own
func (s *SupplierSecret) HasCredentials() bool {
	return s.APIKey != "" || (s.Email != "" && s.Password != "")
}

// Apply fills the supplier settings the environment left empty
func (s *SupplierSecret) Apply(cfg *config.Config) {
	if cfg.SupplierAPIKey == "" {
		cfg.SupplierAPIKey = s.APIKey
	}
	if cfg.SupplierEmail == "" {
		cfg.SupplierEmail = s.Email
	}
	if cfg.SupplierPassword == "" {
		cfg.SupplierPassword = s.Password
	}
	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = s.WebhookSecret
	}
}

// cacheEntry represents a cached secret with expiration
type cacheEntry struct {
	secret    *SupplierSecret
	expiresAt time.Time
}

// GCPSecretManager reads supplier credentials from Google Cloud Secret Manager
type GCPSecretManager struct {
	client    *secretmanager.Client
	projectID string
	fetch     func(ctx context.Context, name string) ([]byte, error)
	cache     map[string]*cacheEntry
	cacheMu   sync.RWMutex
	cacheTTL  time.Duration
}

// NewGCPSecretManager creates a new GCP Secret Manager client
func NewGCPSecretManager(ctx context.Context, projectID string) (*GCPSecretManager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	sm := newManager(projectID, nil)
	sm.client = client
	sm.fetch = sm.accessLatest
	return sm, nil
}

func newManager(projectID string, fetch func(ctx context.Context, name string) ([]byte, error)) *GCPSecretManager {
	return &GCPSecretManager{
		projectID: projectID,
		fetch:     fetch,
		cache:     make(map[string]*cacheEntry),
		cacheTTL:  5 * time.Minute,
	}
}

// Close closes the Secret Manager client
func (sm *GCPSecretManager) Close() error {
	if sm.client != nil {
		return sm.client.Close()
	}
	return nil
}

// BuildSecretName expands a bare secret id to its full resource name.
// Format: projects/{project}/secrets/{secret_id}
func (sm *GCPSecretManager) BuildSecretName(secretID string) string {
	if strings.HasPrefix(secretID, "projects/") {
		return secretID
	}
	return fmt.Sprintf("projects/%s/secrets/%s", sm.projectID, sanitizeSecretID(secretID))
}

// GetSupplierSecret retrieves and caches the supplier credentials secret
func (sm *GCPSecretManager) GetSupplierSecret(ctx context.Context, secretID string) (*SupplierSecret, error) {
	secretName := sm.BuildSecretName(secretID)

	// Check cache first
	sm.cacheMu.RLock()
	if entry, ok := sm.cache[secretName]; ok && time.Now().Before(entry.expiresAt) {
		sm.cacheMu.RUnlock()
		return entry.secret, nil
	}
	sm.cacheMu.RUnlock()

	data, err := sm.fetch(ctx, secretName)
	if err != nil {
		return nil, fmt.Errorf("failed to access secret: %w", err)
	}

	var secret SupplierSecret
	if err := json.Unmarshal(data, &secret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret: %w", err)
	}

	// Cache the result
	sm.cacheMu.Lock()
	sm.cache[secretName] = &cacheEntry{
		secret:    &secret,
		expiresAt: time.Now().Add(sm.cacheTTL),
	}
	sm.cacheMu.Unlock()

	return &secret, nil
}

func (sm *GCPSecretManager) accessLatest(ctx context.Context, secretName string) ([]byte, error) {
	result, err := sm.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName + "/versions/latest",
	})
	if err != nil {
		return nil, err
	}
	return result.Payload.Data, nil
}

// sanitizeSecretID removes or replaces invalid characters for GCP secret IDs
// Secret IDs can only contain alphanumeric characters, hyphens, and underscores
func sanitizeSecretID(input string) string {
	var result strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('-')
		}
	}
	return result.String()
}
