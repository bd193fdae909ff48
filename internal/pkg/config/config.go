package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// DefaultPath is read when no explicit path is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes environment overrides; "__" separates nesting levels,
// e.g. OCPI_SERVER__PUBLIC_URL.
const EnvPrefix = "OCPI_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	OCPI      OCPIConfig      `koanf:"ocpi"`
	Storage   StorageConfig   `koanf:"storage"`
	Tenants   []TenantConfig  `koanf:"tenants"`
	Client    ClientConfig    `koanf:"client"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// PublicURL is the scheme://host partners reach the gateway under. When
	// empty it is derived from each request.
	PublicURL      string        `koanf:"public_url"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type OCPIConfig struct {
	Prefix      string          `koanf:"prefix"`
	Component   string          `koanf:"component"`
	MaxPageSize int             `koanf:"max_page_size"`
	Versions    []VersionConfig `koanf:"versions"`
}

// VersionConfig mounts one protocol version.
type VersionConfig struct {
	Version  string       `koanf:"version"`
	Encoding string       `koanf:"encoding"` // plain, base64; empty picks the version default
	Roles    []RoleConfig `koanf:"roles"`
}

// RoleConfig lists the modules served for one role of a version.
type RoleConfig struct {
	Role    string   `koanf:"role"`
	Modules []string `koanf:"modules"`
}

type StorageConfig struct {
	Type     string         `koanf:"type"` // memory, sqlite, postgres, mysql, mongo
	Database DatabaseConfig `koanf:"database"`
	Mongo    MongoConfig    `koanf:"mongo"`
}

// DatabaseConfig is the generic database configuration supporting multiple dialects.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres, mysql
	DSN    string `koanf:"dsn"`    // Data source name / connection string
}

type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

// TenantConfig seeds the memory store and, for SQL and Mongo storage, is
// ignored in favour of the database contents.
type TenantConfig struct {
	ID         string                       `koanf:"id"`
	Subdomain  string                       `koanf:"subdomain"`
	Name       string                       `koanf:"name"`
	Components map[string]ComponentConfig   `koanf:"components"`
	Settings   map[string]map[string]string `koanf:"settings"`
	Tokens     []TokenConfig                `koanf:"tokens"`
	Tariffs    []TariffConfig               `koanf:"tariffs"`
}

type ComponentConfig struct {
	Active   bool              `koanf:"active"`
	Settings map[string]string `koanf:"settings"`
}

type TokenConfig struct {
	ID                string `koanf:"id"`
	Role              string `koanf:"role"`
	LocalID           string `koanf:"local_id"`
	CountryCode       string `koanf:"country_code"`
	PartyID           string `koanf:"party_id"`
	TokenHash         string `koanf:"token_hash"`
	PartnerCredential string `koanf:"partner_credential"`
	PartnerURL        string `koanf:"partner_url"`
}

// TariffConfig seeds a flat per-kWh tariff.
type TariffConfig struct {
	ID          string    `koanf:"id"`
	CountryCode string    `koanf:"country_code"`
	PartyID     string    `koanf:"party_id"`
	Currency    string    `koanf:"currency"`
	Type        string    `koanf:"type"`
	PricePerKWh float64   `koanf:"price_per_kwh"`
	LastUpdated time.Time `koanf:"last_updated"`
}

type ClientConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	// BlockPrivateNetworks refuses partner URLs that resolve to loopback,
	// private or link-local addresses.
	BlockPrivateNetworks bool `koanf:"block_private_networks"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"server.port":            8080,
	"server.read_timeout":    "30s",
	"server.write_timeout":   "30s",
	"server.request_timeout": "30s",
	"ocpi.prefix":            "/ocpi",
	"ocpi.component":         domain.ComponentOCPI,
	"ocpi.max_page_size":     ocpi.MaxPageSize,
	"storage.type":           "memory",
	"client.timeout":         "10s",
	"telemetry.service_name": "ocpi-gateway",
	"metrics.enabled":        true,
	"metrics.path":           "/metrics",
}

// Load reads path (DefaultPath when empty), applies OCPI_ environment
// overrides and defaults, and validates the result. A missing file is not an
// error: the gateway can run on environment variables alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if !k.Exists("ocpi.versions") {
		cfg.OCPI.Versions = DefaultVersions()
	}

	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)
	cfg.Storage.Mongo.URI = substituteEnvVars(cfg.Storage.Mongo.URI)
	for i := range cfg.Tenants {
		for j := range cfg.Tenants[i].Tokens {
			tok := &cfg.Tenants[i].Tokens[j]
			tok.PartnerCredential = substituteEnvVars(tok.PartnerCredential)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultVersions mounts 2.1.1 and 2.2.1 with the bundled modules.
func DefaultVersions() []VersionConfig {
	return []VersionConfig{
		{
			Version:  "2.1.1",
			Encoding: "plain",
			Roles: []RoleConfig{
				{Role: "cpo", Modules: []string{"tariffs", "commands"}},
			},
		},
		{
			Version:  "2.2.1",
			Encoding: "base64",
			Roles: []RoleConfig{
				{Role: "cpo", Modules: []string{"tariffs", "commands"}},
				{Role: "emsp", Modules: []string{"tariffs"}},
			},
		},
	}
}

var storageTypes = map[string]bool{
	"memory":   true,
	"sqlite":   true,
	"postgres": true,
	"mysql":    true,
	"mongo":    true,
}

// Validate checks the configuration for values the gateway cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.PublicURL != "" {
		u, err := url.Parse(c.Server.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.public_url %q must be an absolute URL", c.Server.PublicURL))
		}
	}

	if c.OCPI.MaxPageSize < 1 || c.OCPI.MaxPageSize > ocpi.MaxPageSize {
		errs = append(errs, fmt.Errorf("ocpi.max_page_size must be between 1 and %d", ocpi.MaxPageSize))
	}
	if len(c.OCPI.Versions) == 0 {
		errs = append(errs, errors.New("ocpi.versions must list at least one version"))
	}
	seenVersions := make(map[string]bool)
	for _, v := range c.OCPI.Versions {
		if v.Version == "" {
			errs = append(errs, errors.New("ocpi.versions: version is required"))
			continue
		}
		if seenVersions[v.Version] {
			errs = append(errs, fmt.Errorf("ocpi.versions: %s listed twice", v.Version))
		}
		seenVersions[v.Version] = true
		switch strings.ToLower(v.Encoding) {
		case "", "plain", "base64":
		default:
			errs = append(errs, fmt.Errorf("ocpi.versions %s: unknown token encoding %q", v.Version, v.Encoding))
		}
		if len(v.Roles) == 0 {
			errs = append(errs, fmt.Errorf("ocpi.versions %s: no roles", v.Version))
		}
		for _, r := range v.Roles {
			if _, err := domain.ParseRole(r.Role); err != nil {
				errs = append(errs, fmt.Errorf("ocpi.versions %s: %w", v.Version, err))
			}
		}
	}

	if !storageTypes[c.Storage.Type] {
		errs = append(errs, fmt.Errorf("storage.type %q is not supported", c.Storage.Type))
	}
	switch c.Storage.Type {
	case "sqlite", "postgres", "mysql":
		if c.Storage.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.database.dsn is required for %s", c.Storage.Type))
		}
	case "mongo":
		if c.Storage.Mongo.URI == "" || c.Storage.Mongo.Database == "" {
			errs = append(errs, errors.New("storage.mongo.uri and storage.mongo.database are required"))
		}
	}

	seenTenants := make(map[string]bool)
	for _, t := range c.Tenants {
		if t.ID == "" || t.Subdomain == "" {
			errs = append(errs, errors.New("tenants: id and subdomain are required"))
			continue
		}
		if seenTenants[t.Subdomain] {
			errs = append(errs, fmt.Errorf("tenants: subdomain %q listed twice", t.Subdomain))
		}
		seenTenants[t.Subdomain] = true
		for _, tok := range t.Tokens {
			if _, err := domain.ParseRole(tok.Role); err != nil {
				errs = append(errs, fmt.Errorf("tenant %s token %s: %w", t.ID, tok.ID, err))
			}
			if len(tok.TokenHash) != 64 {
				errs = append(errs, fmt.Errorf("tenant %s token %s: token_hash must be a hex SHA-256", t.ID, tok.ID))
			}
		}
	}

	return errors.Join(errs...)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
