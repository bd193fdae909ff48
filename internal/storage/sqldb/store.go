// Package sqldb implements the gateway's stores on SQL databases through
// sqlx, with per-database differences handled by the dialect package.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/storage"
	"github.com/voltgrid/ocpi-gateway/internal/storage/dialect"
)

// Store is a SQL implementation of ports.StorageProvider.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var (
	_ ports.StorageProvider = (*Store)(nil)
	_ storage.Seeder        = (*Store)(nil)
)

// Config holds database connection configuration.
type Config struct {
	Driver string // sqlite, postgres, mysql
	DSN    string
}

// New opens the database, runs dialect initialization and creates the
// schema. The SQLite, PostgreSQL (pgx) and MySQL drivers are linked in.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if n := d.MaxOpenConns(); n > 0 {
		db.SetMaxOpenConns(n)
	}

	for _, stmt := range d.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	store := &Store{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewSQLite opens a SQLite database at dsn.
func NewSQLite(dsn string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dsn})
}

// DB returns the underlying sqlx.DB for administrative tooling.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) initSchema() error {
	boolType := s.dialect.BooleanType()
	textType := s.dialect.TextType()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id VARCHAR(64) PRIMARY KEY,
			subdomain VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_components (
			tenant_id VARCHAR(64) NOT NULL,
			component VARCHAR(64) NOT NULL,
			active ` + boolType + ` NOT NULL,
			settings ` + textType + `,
			PRIMARY KEY (tenant_id, component),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS partner_tokens (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			role VARCHAR(16) NOT NULL,
			local_id VARCHAR(255) NOT NULL DEFAULT '',
			country_code VARCHAR(2) NOT NULL DEFAULT '',
			party_id VARCHAR(3) NOT NULL DEFAULT '',
			token_hash VARCHAR(64) NOT NULL,
			partner_credential ` + textType + `,
			partner_url ` + textType + `,
			UNIQUE (tenant_id, token_hash),
			FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			tenant_id VARCHAR(64) NOT NULL,
			settings_key VARCHAR(64) NOT NULL,
			settings_value ` + textType + ` NOT NULL,
			PRIMARY KEY (tenant_id, settings_key)
		)`,
		`CREATE TABLE IF NOT EXISTS tariffs (
			tenant_id VARCHAR(64) NOT NULL,
			origin VARCHAR(16) NOT NULL DEFAULT 'OWN',
			country_code VARCHAR(2) NOT NULL DEFAULT '',
			party_id VARCHAR(3) NOT NULL DEFAULT '',
			tariff_id VARCHAR(36) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			tariff_type VARCHAR(32) NOT NULL DEFAULT '',
			alt_text ` + textType + `,
			elements ` + textType + ` NOT NULL,
			last_updated BIGINT NOT NULL,
			PRIMARY KEY (tenant_id, country_code, party_id, tariff_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

type tenantRow struct {
	ID        string `db:"id"`
	Subdomain string `db:"subdomain"`
	Name      string `db:"name"`
}

type componentRow struct {
	Component string         `db:"component"`
	Active    bool           `db:"active"`
	Settings  sql.NullString `db:"settings"`
}

func (s *Store) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	var row tenantRow
	err := s.db.GetContext(ctx, &row, s.dialect.Rebind(`SELECT id, subdomain, name FROM tenants WHERE subdomain = ?`), subdomain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %q: %w", subdomain, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	var components []componentRow
	err = s.db.SelectContext(ctx, &components, s.dialect.Rebind(`SELECT component, active, settings FROM tenant_components WHERE tenant_id = ?`), row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant components: %w", err)
	}

	tenant := &domain.Tenant{
		ID:         row.ID,
		Subdomain:  row.Subdomain,
		Name:       row.Name,
		Components: make(map[string]domain.Component, len(components)),
	}
	for _, c := range components {
		var settings domain.Settings
		if c.Settings.Valid && c.Settings.String != "" {
			if err := json.Unmarshal([]byte(c.Settings.String), &settings); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s settings: %w", c.Component, err)
			}
		}
		tenant.Components[c.Component] = domain.Component{Active: c.Active, Settings: settings}
	}
	return tenant, nil
}

type tokenRow struct {
	ID                string         `db:"id"`
	TenantID          string         `db:"tenant_id"`
	Role              string         `db:"role"`
	LocalID           string         `db:"local_id"`
	CountryCode       string         `db:"country_code"`
	PartyID           string         `db:"party_id"`
	TokenHash         string         `db:"token_hash"`
	PartnerCredential sql.NullString `db:"partner_credential"`
	PartnerURL        sql.NullString `db:"partner_url"`
}

func (s *Store) GetByToken(ctx context.Context, tenantID, tokenHash string) (*domain.PartnerToken, error) {
	var row tokenRow
	query := s.dialect.Rebind(`SELECT id, tenant_id, role, local_id, country_code, party_id, token_hash, partner_credential, partner_url
		FROM partner_tokens WHERE tenant_id = ? AND token_hash = ?`)
	err := s.db.GetContext(ctx, &row, query, tenantID, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("partner token: %w", ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get partner token: %w", err)
	}

	role, err := domain.ParseRole(row.Role)
	if err != nil {
		return nil, fmt.Errorf("partner token %s: %w", row.ID, err)
	}
	return &domain.PartnerToken{
		ID:                row.ID,
		TenantID:          row.TenantID,
		Role:              role,
		LocalID:           row.LocalID,
		CountryCode:       row.CountryCode,
		PartyID:           row.PartyID,
		TokenHash:         row.TokenHash,
		PartnerCredential: row.PartnerCredential.String,
		PartnerURL:        row.PartnerURL.String,
	}, nil
}

func (s *Store) GetSettings(ctx context.Context, tenantID, key string) (domain.Settings, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, s.dialect.Rebind(`SELECT settings_value FROM settings WHERE tenant_id = ? AND settings_key = ?`), tenantID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings := domain.Settings{}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings %s: %w", key, err)
	}
	return settings, nil
}

type tariffRow struct {
	TenantID    string         `db:"tenant_id"`
	Origin      string         `db:"origin"`
	CountryCode string         `db:"country_code"`
	PartyID     string         `db:"party_id"`
	TariffID    string         `db:"tariff_id"`
	Currency    string         `db:"currency"`
	TariffType  string         `db:"tariff_type"`
	AltText     sql.NullString `db:"alt_text"`
	Elements    string         `db:"elements"`
	LastUpdated int64          `db:"last_updated"`
}

const tariffColumns = `tenant_id, origin, country_code, party_id, tariff_id, currency, tariff_type, alt_text, elements, last_updated`

func (r tariffRow) toDomain() (*domain.Tariff, error) {
	t := &domain.Tariff{
		TenantID:    r.TenantID,
		Origin:      domain.TariffOrigin(r.Origin),
		ID:          r.TariffID,
		CountryCode: r.CountryCode,
		PartyID:     r.PartyID,
		Currency:    r.Currency,
		Type:        r.TariffType,
		LastUpdated: time.Unix(0, r.LastUpdated).UTC(),
	}
	if err := json.Unmarshal([]byte(r.Elements), &t.Elements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tariff %s elements: %w", r.TariffID, err)
	}
	if r.AltText.Valid && r.AltText.String != "" {
		if err := json.Unmarshal([]byte(r.AltText.String), &t.AltText); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tariff %s alt text: %w", r.TariffID, err)
		}
	}
	return t, nil
}

func tariffToRow(t *domain.Tariff) (tariffRow, error) {
	elements, err := json.Marshal(t.Elements)
	if err != nil {
		return tariffRow{}, fmt.Errorf("failed to marshal elements: %w", err)
	}
	row := tariffRow{
		TenantID:    t.TenantID,
		Origin:      string(t.Origin),
		CountryCode: t.CountryCode,
		PartyID:     t.PartyID,
		TariffID:    t.ID,
		Currency:    t.Currency,
		TariffType:  t.Type,
		Elements:    string(elements),
		LastUpdated: t.LastUpdated.UnixNano(),
	}
	if len(t.AltText) > 0 {
		alt, err := json.Marshal(t.AltText)
		if err != nil {
			return tariffRow{}, fmt.Errorf("failed to marshal alt text: %w", err)
		}
		row.AltText = sql.NullString{String: string(alt), Valid: true}
	}
	return row, nil
}

// tariffWhere renders the WHERE clause for filter.
func tariffWhere(filter domain.TariffFilter) (string, []any) {
	conds := []string{"tenant_id = ?"}
	args := []any{filter.TenantID}
	if filter.Origin != "" {
		conds = append(conds, "origin = ?")
		args = append(args, string(filter.Origin))
	}
	if filter.CountryCode != "" {
		conds = append(conds, "country_code = ?")
		args = append(args, filter.CountryCode)
	}
	if filter.PartyID != "" {
		conds = append(conds, "party_id = ?")
		args = append(args, filter.PartyID)
	}
	if filter.DateFrom != nil {
		conds = append(conds, "last_updated >= ?")
		args = append(args, filter.DateFrom.UnixNano())
	}
	if filter.DateTo != nil {
		conds = append(conds, "last_updated < ?")
		args = append(args, filter.DateTo.UnixNano())
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListTariffs(ctx context.Context, filter domain.TariffFilter) ([]*domain.Tariff, int, error) {
	where, args := tariffWhere(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, s.dialect.Rebind(`SELECT COUNT(*) FROM tariffs`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count tariffs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	query := s.dialect.Rebind(`SELECT ` + tariffColumns + ` FROM tariffs` + where +
		` ORDER BY last_updated, country_code, party_id, tariff_id LIMIT ? OFFSET ?`)

	var rows []tariffRow
	if err := s.db.SelectContext(ctx, &rows, query, append(args, limit, max(filter.Offset, 0))...); err != nil {
		return nil, 0, fmt.Errorf("failed to list tariffs: %w", err)
	}

	tariffs := make([]*domain.Tariff, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, 0, err
		}
		tariffs = append(tariffs, t)
	}
	return tariffs, total, nil
}

func (s *Store) GetTariff(ctx context.Context, tenantID, countryCode, partyID, id string) (*domain.Tariff, error) {
	var row tariffRow
	query := s.dialect.Rebind(`SELECT ` + tariffColumns + ` FROM tariffs
		WHERE tenant_id = ? AND country_code = ? AND party_id = ? AND tariff_id = ?`)
	err := s.db.GetContext(ctx, &row, query, tenantID, countryCode, partyID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tariff %s/%s/%s: %w", countryCode, partyID, id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tariff: %w", err)
	}
	return row.toDomain()
}

func (s *Store) PutTariff(ctx context.Context, tariff *domain.Tariff) error {
	return s.putTariff(ctx, s.db, tariff)
}

func (s *Store) putTariff(ctx context.Context, ext sqlx.ExtContext, tariff *domain.Tariff) error {
	if tariff.TenantID == "" || tariff.ID == "" {
		return fmt.Errorf("tariff requires tenant and id")
	}
	row, err := tariffToRow(tariff)
	if err != nil {
		return err
	}
	query := `INSERT INTO tariffs (` + tariffColumns + `)
		VALUES (:tenant_id, :origin, :country_code, :party_id, :tariff_id, :currency, :tariff_type, :alt_text, :elements, :last_updated) ` +
		s.dialect.Upsert(
			[]string{"tenant_id", "country_code", "party_id", "tariff_id"},
			[]string{"origin", "currency", "tariff_type", "alt_text", "elements", "last_updated"},
		)
	if _, err := sqlx.NamedExecContext(ctx, ext, query, row); err != nil {
		return fmt.Errorf("failed to put tariff: %w", err)
	}
	return nil
}

func (s *Store) DeleteTariff(ctx context.Context, tenantID, countryCode, partyID, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM tariffs
		WHERE tenant_id = ? AND country_code = ? AND party_id = ? AND tariff_id = ?`),
		tenantID, countryCode, partyID, id)
	if err != nil {
		return fmt.Errorf("failed to delete tariff: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete tariff: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("tariff %s/%s/%s: %w", countryCode, partyID, id, ports.ErrNotFound)
	}
	return nil
}

// Seed upserts tenants, their components, tokens, settings and tariffs in
// one transaction. Records missing from the seed are left alone.
func (s *Store) Seed(ctx context.Context, seed *storage.Seed) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, t := range seed.Tenants {
		if err := s.putTenant(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, tok := range seed.Tokens {
		if err := s.putToken(ctx, tx, tok); err != nil {
			return err
		}
	}
	for _, e := range seed.Settings {
		if err := s.putSettings(ctx, tx, e); err != nil {
			return err
		}
	}
	for _, t := range seed.Tariffs {
		if err := s.putTariff(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}

func (s *Store) putTenant(ctx context.Context, tx *sqlx.Tx, t *domain.Tenant) error {
	query := s.dialect.Rebind(`INSERT INTO tenants (id, subdomain, name) VALUES (?, ?, ?) ` +
		s.dialect.Upsert([]string{"id"}, []string{"subdomain", "name"}))
	if _, err := tx.ExecContext(ctx, query, t.ID, t.Subdomain, t.Name); err != nil {
		return fmt.Errorf("failed to put tenant %s: %w", t.ID, err)
	}

	for name, c := range t.Components {
		var settings sql.NullString
		if len(c.Settings) > 0 {
			raw, err := json.Marshal(c.Settings)
			if err != nil {
				return fmt.Errorf("failed to marshal %s settings: %w", name, err)
			}
			settings = sql.NullString{String: string(raw), Valid: true}
		}
		query := s.dialect.Rebind(`INSERT INTO tenant_components (tenant_id, component, active, settings) VALUES (?, ?, ?, ?) ` +
			s.dialect.Upsert([]string{"tenant_id", "component"}, []string{"active", "settings"}))
		if _, err := tx.ExecContext(ctx, query, t.ID, name, c.Active, settings); err != nil {
			return fmt.Errorf("failed to put component %s of tenant %s: %w", name, t.ID, err)
		}
	}
	return nil
}

func (s *Store) putToken(ctx context.Context, tx *sqlx.Tx, tok *domain.PartnerToken) error {
	query := s.dialect.Rebind(`INSERT INTO partner_tokens
		(id, tenant_id, role, local_id, country_code, party_id, token_hash, partner_credential, partner_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ` +
		s.dialect.Upsert([]string{"id"}, []string{
			"tenant_id", "role", "local_id", "country_code", "party_id", "token_hash", "partner_credential", "partner_url",
		}))
	_, err := tx.ExecContext(ctx, query,
		tok.ID, tok.TenantID, string(tok.Role), tok.LocalID, tok.CountryCode, tok.PartyID, tok.TokenHash,
		tok.PartnerCredential, tok.PartnerURL)
	if err != nil {
		return fmt.Errorf("failed to put partner token %s: %w", tok.ID, err)
	}
	return nil
}

func (s *Store) putSettings(ctx context.Context, tx *sqlx.Tx, e storage.SettingsEntry) error {
	raw, err := json.Marshal(e.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal settings %s: %w", e.Key, err)
	}
	query := s.dialect.Rebind(`INSERT INTO settings (tenant_id, settings_key, settings_value) VALUES (?, ?, ?) ` +
		s.dialect.Upsert([]string{"tenant_id", "settings_key"}, []string{"settings_value"}))
	if _, err := tx.ExecContext(ctx, query, e.TenantID, e.Key, string(raw)); err != nil {
		return fmt.Errorf("failed to put settings %s: %w", e.Key, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
