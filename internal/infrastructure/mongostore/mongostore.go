package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"dealersign/internal/config"
)

// Collection names shared by every tenant database.
const (
	CollectionTemplates   = "esign_templates"
	CollectionDocuments   = "esign_documents"
	CollectionAuditEvents = "audit_events"
)

// Store is the tenant document store: one mongo client, one database per
// company. Repositories resolve collections through Collection so tenant
// scoping stays explicit at every call site.
type Store struct {
	client *mongo.Client
	logger *zap.Logger
}

func NewStore(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Info("Tenant store connected successfully",
		zap.String("uri", cfg.Mongo.URI),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return &Store{client: client, logger: logger}, nil
}

// Collection returns the named collection in the tenant's database.
func (s *Store) Collection(dbName, name string) *mongo.Collection {
	return s.client.Database(dbName).Collection(name)
}

var Module = fx.Module("mongostore",
	fx.Provide(NewStore),
)
