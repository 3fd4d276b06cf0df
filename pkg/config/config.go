// Package config loads the portal configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Authentication schemes supported as the primary sign-in provider.
const (
	SchemeGitHub = "github"
	SchemeAAD    = "aad"
)

// Config holds all application configuration
type Config struct {
	Server          ServerConfig
	Authentication  AuthenticationConfig
	ActiveDirectory ActiveDirectoryConfig
	GitHub          GitHubConfig
	Organizations   []OrganizationConfig
	Redis           RedisConfig
	Database        DatabaseConfig
	Observability   ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthenticationConfig selects the primary sign-in provider.
type AuthenticationConfig struct {
	// Scheme is "github" or "aad".
	Scheme string
}

// ActiveDirectoryConfig holds the directory provider settings used to
// verify inbound id tokens.
type ActiveDirectoryConfig struct {
	TenantID string
	ClientID string
	// Issuer defaults to the tenant's login.microsoftonline.com issuer.
	Issuer string
}

// GitHubConfig holds platform API settings.
type GitHubConfig struct {
	APIBaseURL string
	UserAgent  string
}

// OrganizationConfig describes one managed platform organization. The
// first configured organization is the primary one.
type OrganizationConfig struct {
	Name string
	// OwnerToken authorizes organization-scoped API reads.
	OwnerToken string
	// SudoersTeamID identifies the team whose membership confers portal
	// administrator rights.
	SudoersTeamID int64
}

// RedisConfig holds the session/cache redis settings.
type RedisConfig struct {
	Addr     string
	Password string
	Prefix   string
	TTL      time.Duration
}

// DatabaseConfig holds the link store database settings.
type DatabaseConfig struct {
	DSN string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("PORTAL_HOST", "0.0.0.0"),
			Port:            getEnv("PORTAL_PORT", "8080"),
			ReadTimeout:     getEnvDuration("PORTAL_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("PORTAL_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("PORTAL_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("PORTAL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Authentication: AuthenticationConfig{
			Scheme: getEnv("PORTAL_AUTH_SCHEME", SchemeGitHub),
		},
		ActiveDirectory: ActiveDirectoryConfig{
			TenantID: getEnv("PORTAL_AAD_TENANT_ID", ""),
			ClientID: getEnv("PORTAL_AAD_CLIENT_ID", ""),
			Issuer:   getEnv("PORTAL_AAD_ISSUER", ""),
		},
		GitHub: GitHubConfig{
			APIBaseURL: getEnv("PORTAL_GITHUB_API_URL", "https://api.github.com"),
			UserAgent:  getEnv("PORTAL_GITHUB_USER_AGENT", "github-portal"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("PORTAL_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("PORTAL_REDIS_PASSWORD", ""),
			Prefix:   getEnv("PORTAL_REDIS_PREFIX", "portal"),
			TTL:      getEnvDuration("PORTAL_REDIS_TTL", time.Hour),
		},
		Database: DatabaseConfig{
			DSN: getEnv("PORTAL_DATABASE_DSN", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel: getEnv("PORTAL_LOG_LEVEL", "info"),
		},
	}

	orgs, err := loadOrganizations()
	if err != nil {
		return nil, err
	}
	cfg.Organizations = orgs

	if cfg.ActiveDirectory.Issuer == "" && cfg.ActiveDirectory.TenantID != "" {
		cfg.ActiveDirectory.Issuer = "https://login.microsoftonline.com/" + cfg.ActiveDirectory.TenantID + "/v2.0"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadOrganizations reads the managed organization list. PORTAL_ORGANIZATIONS
// is a comma-separated list of organization names; per-organization settings
// come from PORTAL_ORG_<NAME>_OWNER_TOKEN and PORTAL_ORG_<NAME>_SUDOERS_TEAM.
func loadOrganizations() ([]OrganizationConfig, error) {
	raw := getEnv("PORTAL_ORGANIZATIONS", "")
	if raw == "" {
		return nil, nil
	}
	var orgs []OrganizationConfig
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("PORTAL_ORGANIZATIONS contains an empty organization name")
		}
		key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		org := OrganizationConfig{
			Name:       name,
			OwnerToken: getEnv("PORTAL_ORG_"+key+"_OWNER_TOKEN", ""),
		}
		if teamID := getEnv("PORTAL_ORG_"+key+"_SUDOERS_TEAM", ""); teamID != "" {
			id, err := strconv.ParseInt(teamID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid sudoers team id for organization %q: %w", name, err)
			}
			org.SudoersTeamID = id
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Authentication.Scheme != SchemeGitHub && c.Authentication.Scheme != SchemeAAD {
		return fmt.Errorf("unsupported primary authentication scheme type %q", c.Authentication.Scheme)
	}
	if c.Authentication.Scheme == SchemeAAD && c.ActiveDirectory.TenantID == "" {
		return fmt.Errorf("PORTAL_AAD_TENANT_ID is required when the aad scheme is active")
	}
	for _, org := range c.Organizations {
		if org.Name == "" {
			return fmt.Errorf("no organization name has been provided for one of the configured organizations")
		}
	}
	return nil
}

// PrimaryOrganization returns the first configured organization.
func (c *Config) PrimaryOrganization() (OrganizationConfig, bool) {
	if len(c.Organizations) == 0 {
		return OrganizationConfig{}, false
	}
	return c.Organizations[0], true
}

// Organization looks up a configured organization by case-insensitive name.
func (c *Config) Organization(name string) (OrganizationConfig, bool) {
	lower := strings.ToLower(name)
	for _, org := range c.Organizations {
		if strings.ToLower(org.Name) == lower {
			return org, true
		}
	}
	return OrganizationConfig{}, false
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
