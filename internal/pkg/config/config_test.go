package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 30s", cfg.Server.RequestTimeout)
	}
	if cfg.OCPI.Prefix != "/ocpi" {
		t.Errorf("OCPI.Prefix = %q, want /ocpi", cfg.OCPI.Prefix)
	}
	if cfg.OCPI.MaxPageSize != 100 {
		t.Errorf("OCPI.MaxPageSize = %d, want 100", cfg.OCPI.MaxPageSize)
	}
	if len(cfg.OCPI.Versions) != 2 {
		t.Errorf("OCPI.Versions = %d entries, want 2", len(cfg.OCPI.Versions))
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Client.Timeout != 10*time.Second {
		t.Errorf("Client.Timeout = %v, want 10s", cfg.Client.Timeout)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("OCPI_SERVER__PUBLIC_URL", "https://ocpi.example.com")
	t.Setenv("PARTNER_SECRET", "s3cret")

	path := writeConfig(t, `
server:
  port: 9090
  request_timeout: 5s
ocpi:
  max_page_size: 50
  versions:
    - version: "2.2.1"
      encoding: base64
      roles:
        - role: cpo
          modules: [tariffs]
tenants:
  - id: t1
    subdomain: acme
    components:
      ocpi:
        active: true
    settings:
      pricing:
        type: simple
        price: "0.35"
    tokens:
      - id: p1
        role: emsp
        country_code: NL
        party_id: TNM
        token_hash: `+validHash+`
        partner_credential: ${PARTNER_SECRET}
    tariffs:
      - id: AC1
        currency: EUR
        price_per_kwh: 0.29
        last_updated: 2024-03-01T10:00:00Z
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 5s", cfg.Server.RequestTimeout)
	}
	if cfg.Server.PublicURL != "https://ocpi.example.com" {
		t.Errorf("Server.PublicURL = %q", cfg.Server.PublicURL)
	}
	if cfg.OCPI.MaxPageSize != 50 {
		t.Errorf("OCPI.MaxPageSize = %d, want 50", cfg.OCPI.MaxPageSize)
	}
	if len(cfg.OCPI.Versions) != 1 || cfg.OCPI.Versions[0].Roles[0].Modules[0] != "tariffs" {
		t.Errorf("OCPI.Versions = %+v", cfg.OCPI.Versions)
	}

	if len(cfg.Tenants) != 1 {
		t.Fatalf("Tenants = %d, want 1", len(cfg.Tenants))
	}
	tenant := cfg.Tenants[0]
	if !tenant.Components["ocpi"].Active {
		t.Error("ocpi component not active")
	}
	if tenant.Settings["pricing"]["price"] != "0.35" {
		t.Errorf("pricing settings = %v", tenant.Settings["pricing"])
	}
	if tenant.Tokens[0].PartnerCredential != "s3cret" {
		t.Errorf("PartnerCredential = %q, want substituted secret", tenant.Tokens[0].PartnerCredential)
	}
	if got := tenant.Tariffs[0].LastUpdated; !got.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("LastUpdated = %v", got)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			OCPI: OCPIConfig{
				MaxPageSize: 100,
				Versions:    DefaultVersions(),
			},
			Storage: StorageConfig{Type: "memory"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown storage", func(c *Config) { c.Storage.Type = "redis" }, "storage.type"},
		{"sqlite without dsn", func(c *Config) { c.Storage.Type = "sqlite" }, "storage.database.dsn"},
		{"mongo without uri", func(c *Config) { c.Storage.Type = "mongo" }, "storage.mongo.uri"},
		{"no versions", func(c *Config) { c.OCPI.Versions = nil }, "at least one version"},
		{"unknown encoding", func(c *Config) { c.OCPI.Versions[0].Encoding = "jwt" }, "unknown token encoding"},
		{"unknown role", func(c *Config) { c.OCPI.Versions[0].Roles[0].Role = "hub" }, "unknown role"},
		{"duplicate version", func(c *Config) { c.OCPI.Versions[1].Version = "2.1.1" }, "listed twice"},
		{"page size too large", func(c *Config) { c.OCPI.MaxPageSize = 500 }, "max_page_size"},
		{"relative public url", func(c *Config) { c.Server.PublicURL = "/ocpi" }, "public_url"},
		{"short token hash", func(c *Config) {
			c.Tenants = []TenantConfig{{ID: "t1", Subdomain: "acme", Tokens: []TokenConfig{{ID: "p1", Role: "cpo", TokenHash: "abc"}}}}
		}, "token_hash"},
		{"duplicate subdomain", func(c *Config) {
			c.Tenants = []TenantConfig{{ID: "t1", Subdomain: "acme"}, {ID: "t2", Subdomain: "acme"}}
		}, "listed twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("DB_PASSWORD", "pw")
	got := substituteEnvVars("postgres://ocpi:${DB_PASSWORD}@db/ocpi?x=${UNSET_VAR_FOR_TEST}")
	if got != "postgres://ocpi:pw@db/ocpi?x=" {
		t.Errorf("substituteEnvVars() = %q", got)
	}
}
