// Package mongo implements the gateway's stores on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/storage"
)

const (
	collectionTenants  = "tenants"
	collectionTokens   = "partner_tokens"
	collectionSettings = "settings"
	collectionTariffs  = "tariffs"
)

// Store implements ports.StorageProvider on one MongoDB database.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

var (
	_ ports.StorageProvider = (*Store)(nil)
	_ storage.Seeder        = (*Store)(nil)
)

// Config holds the connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// New connects to MongoDB, verifies the connection and ensures indexes.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	store := &Store{client: client, database: client.Database(cfg.Database)}
	if err := store.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collectionTenants: {
			{Keys: bson.D{{Key: "subdomain", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collectionTokens: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collectionSettings: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collectionTariffs: {
			{Keys: tariffKeyFields(), Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "last_updated", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}

func tariffKeyFields() bson.D {
	return bson.D{
		{Key: "tenant_id", Value: 1},
		{Key: "country_code", Value: 1},
		{Key: "party_id", Value: 1},
		{Key: "tariff_id", Value: 1},
	}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf(format+": %w", append(args, ports.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func (s *Store) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := s.database.Collection(collectionTenants).
		FindOne(ctx, bson.D{{Key: "subdomain", Value: subdomain}}).
		Decode(&tenant)
	if err != nil {
		return nil, notFound(err, "tenant %q", subdomain)
	}
	return &tenant, nil
}

func (s *Store) GetByToken(ctx context.Context, tenantID, tokenHash string) (*domain.PartnerToken, error) {
	var token domain.PartnerToken
	err := s.database.Collection(collectionTokens).
		FindOne(ctx, bson.D{{Key: "tenant_id", Value: tenantID}, {Key: "token_hash", Value: tokenHash}}).
		Decode(&token)
	if err != nil {
		return nil, notFound(err, "partner token")
	}
	return &token, nil
}

type settingsDoc struct {
	TenantID string          `bson:"tenant_id"`
	Key      string          `bson:"key"`
	Values   domain.Settings `bson:"values"`
}

func (s *Store) GetSettings(ctx context.Context, tenantID, key string) (domain.Settings, error) {
	var doc settingsDoc
	err := s.database.Collection(collectionSettings).
		FindOne(ctx, bson.D{{Key: "tenant_id", Value: tenantID}, {Key: "key", Value: key}}).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if doc.Values == nil {
		doc.Values = domain.Settings{}
	}
	return doc.Values, nil
}

// tariffFilter translates a listing filter into a query document.
func tariffFilter(f domain.TariffFilter) bson.D {
	filter := bson.D{{Key: "tenant_id", Value: f.TenantID}}
	if f.Origin != "" {
		filter = append(filter, bson.E{Key: "origin", Value: string(f.Origin)})
	}
	if f.CountryCode != "" {
		filter = append(filter, bson.E{Key: "country_code", Value: f.CountryCode})
	}
	if f.PartyID != "" {
		filter = append(filter, bson.E{Key: "party_id", Value: f.PartyID})
	}
	window := bson.D{}
	if f.DateFrom != nil {
		window = append(window, bson.E{Key: "$gte", Value: *f.DateFrom})
	}
	if f.DateTo != nil {
		window = append(window, bson.E{Key: "$lt", Value: *f.DateTo})
	}
	if len(window) > 0 {
		filter = append(filter, bson.E{Key: "last_updated", Value: window})
	}
	return filter
}

func tariffKey(tenantID, countryCode, partyID, id string) bson.D {
	return bson.D{
		{Key: "tenant_id", Value: tenantID},
		{Key: "country_code", Value: countryCode},
		{Key: "party_id", Value: partyID},
		{Key: "tariff_id", Value: id},
	}
}

func (s *Store) ListTariffs(ctx context.Context, f domain.TariffFilter) ([]*domain.Tariff, int, error) {
	collection := s.database.Collection(collectionTariffs)
	filter := tariffFilter(f)

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tariffs: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{
			{Key: "last_updated", Value: 1},
			{Key: "country_code", Value: 1},
			{Key: "party_id", Value: 1},
			{Key: "tariff_id", Value: 1},
		}).
		SetSkip(int64(max(f.Offset, 0)))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tariffs: %w", err)
	}
	tariffs := []*domain.Tariff{}
	if err := cursor.All(ctx, &tariffs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode tariffs: %w", err)
	}
	for _, t := range tariffs {
		t.LastUpdated = t.LastUpdated.UTC()
	}
	return tariffs, int(total), nil
}

func (s *Store) GetTariff(ctx context.Context, tenantID, countryCode, partyID, id string) (*domain.Tariff, error) {
	var tariff domain.Tariff
	err := s.database.Collection(collectionTariffs).
		FindOne(ctx, tariffKey(tenantID, countryCode, partyID, id)).
		Decode(&tariff)
	if err != nil {
		return nil, notFound(err, "tariff %s/%s/%s", countryCode, partyID, id)
	}
	tariff.LastUpdated = tariff.LastUpdated.UTC()
	return &tariff, nil
}

func (s *Store) PutTariff(ctx context.Context, tariff *domain.Tariff) error {
	if tariff.TenantID == "" || tariff.ID == "" {
		return fmt.Errorf("tariff requires tenant and id")
	}
	_, err := s.database.Collection(collectionTariffs).ReplaceOne(ctx,
		tariffKey(tariff.TenantID, tariff.CountryCode, tariff.PartyID, tariff.ID),
		tariff,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put tariff: %w", err)
	}
	return nil
}

func (s *Store) DeleteTariff(ctx context.Context, tenantID, countryCode, partyID, id string) error {
	res, err := s.database.Collection(collectionTariffs).DeleteOne(ctx, tariffKey(tenantID, countryCode, partyID, id))
	if err != nil {
		return fmt.Errorf("failed to delete tariff: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("tariff %s/%s/%s: %w", countryCode, partyID, id, ports.ErrNotFound)
	}
	return nil
}

// Seed upserts the seed's records. Records missing from the seed are left alone.
func (s *Store) Seed(ctx context.Context, seed *storage.Seed) error {
	upsert := options.Replace().SetUpsert(true)

	tenants := s.database.Collection(collectionTenants)
	for _, t := range seed.Tenants {
		if _, err := tenants.ReplaceOne(ctx, bson.D{{Key: "_id", Value: t.ID}}, t, upsert); err != nil {
			return fmt.Errorf("failed to put tenant %s: %w", t.ID, err)
		}
	}

	tokens := s.database.Collection(collectionTokens)
	for _, tok := range seed.Tokens {
		if _, err := tokens.ReplaceOne(ctx, bson.D{{Key: "_id", Value: tok.ID}}, tok, upsert); err != nil {
			return fmt.Errorf("failed to put partner token %s: %w", tok.ID, err)
		}
	}

	settings := s.database.Collection(collectionSettings)
	for _, e := range seed.Settings {
		doc := settingsDoc{TenantID: e.TenantID, Key: e.Key, Values: e.Values}
		filter := bson.D{{Key: "tenant_id", Value: e.TenantID}, {Key: "key", Value: e.Key}}
		if _, err := settings.ReplaceOne(ctx, filter, doc, upsert); err != nil {
			return fmt.Errorf("failed to put settings %s: %w", e.Key, err)
		}
	}

	for _, t := range seed.Tariffs {
		if err := s.PutTariff(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
