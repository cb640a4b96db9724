package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port string // Service port

	KeycloakURL   string // Provider base URL (no realm path)
	Realm         string // Provider realm
	ClientID      string // Confidential client used for every grant
	ClientSecret  string // Client secret appended to every grant
	AdminUsername string // Realm user holding realm-management roles
	AdminPassword string // Password of the admin realm user

	ProviderTimeout  time.Duration // Per-attempt timeout for provider calls
	RetryAttempts    int           // Total attempts for transport failures
	RetryBaseDelay   time.Duration // First backoff delay, doubled per attempt
	AdminTokenMargin time.Duration // Safety margin subtracted from admin token expiry
	TokenIssuer      string        // Expected iss claim of bearer tokens
	TokenJWKSURL     string        // JWKS endpoint used to verify bearer tokens
	TokenAudience    string        // Expected aud claim, empty to skip the check
	MetricsEnabled   bool          // Expose /metrics
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		Port:             getEnv("PORT", "8080"),
		KeycloakURL:      strings.TrimRight(getEnv("KEYCLOAK_URL", "http://keycloak:8080"), "/"),
		Realm:            getEnv("KEYCLOAK_REALM", ""),
		ClientID:         getEnv("KEYCLOAK_CLIENT_ID", ""),
		ClientSecret:     getEnv("KEYCLOAK_CLIENT_SECRET", ""),
		AdminUsername:    getEnv("KEYCLOAK_ADMIN_USERNAME", ""),
		AdminPassword:    getEnv("KEYCLOAK_ADMIN_PASSWORD", ""),
		ProviderTimeout:  5 * time.Second,
		RetryAttempts:    3,
		RetryBaseDelay:   1 * time.Second,
		AdminTokenMargin: 1 * time.Second,
		TokenAudience:    getEnv("TOKEN_AUDIENCE", ""),
		MetricsEnabled:   getEnv("METRICS_ENABLED", "true") == "true",
	}

	var err error
	if config.ProviderTimeout, err = getDuration("PROVIDER_REQUEST_TIMEOUT", config.ProviderTimeout); err != nil {
		return nil, err
	}
	if config.RetryBaseDelay, err = getDuration("PROVIDER_RETRY_BASE_DELAY", config.RetryBaseDelay); err != nil {
		return nil, err
	}
	if config.AdminTokenMargin, err = getDuration("ADMIN_TOKEN_EXPIRY_MARGIN", config.AdminTokenMargin); err != nil {
		return nil, err
	}

	if attemptsStr := os.Getenv("PROVIDER_RETRY_ATTEMPTS"); attemptsStr != "" {
		attempts, err := strconv.Atoi(attemptsStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PROVIDER_RETRY_ATTEMPTS format: %w", err)
		}
		config.RetryAttempts = attempts
	}

	config.TokenIssuer = getEnv("TOKEN_ISSUER", config.RealmURL())
	config.TokenJWKSURL = getEnv("TOKEN_JWKS_URL", config.TokenIssuer+"/protocol/openid-connect/certs")

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// RealmURL returns the base URL of the configured realm.
func (c *Config) RealmURL() string {
	return fmt.Sprintf("%s/realms/%s", c.KeycloakURL, c.Realm)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.KeycloakURL == "" {
		return fmt.Errorf("KEYCLOAK_URL cannot be empty")
	}

	if c.Realm == "" {
		return fmt.Errorf("KEYCLOAK_REALM cannot be empty")
	}

	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("KEYCLOAK_CLIENT_ID and KEYCLOAK_CLIENT_SECRET are required")
	}

	if c.AdminUsername == "" || c.AdminPassword == "" {
		return fmt.Errorf("KEYCLOAK_ADMIN_USERNAME and KEYCLOAK_ADMIN_PASSWORD are required")
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_REQUEST_TIMEOUT must be positive")
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("PROVIDER_RETRY_ATTEMPTS must be at least 1")
	}

	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("PROVIDER_RETRY_BASE_DELAY must be positive")
	}

	if c.AdminTokenMargin < 0 {
		return fmt.Errorf("ADMIN_TOKEN_EXPIRY_MARGIN cannot be negative")
	}

	return nil
}

// getDuration parses a duration variable, keeping fallback when unset
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return duration, nil
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	// Check for _FILE suffix
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
