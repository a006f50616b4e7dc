package audit

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"dealersign/internal/domain/entity"
	"dealersign/internal/infrastructure/mongostore"
)

// Sink records structured audit events. Emission is fire-and-forget: a sink
// failure must never fail the operation being audited.
type Sink interface {
	LogEvent(ctx context.Context, dbName string, event entity.AuditEvent)
}

type mongoSink struct {
	store  *mongostore.Store
	logger *zap.Logger
}

func NewSink(store *mongostore.Store, logger *zap.Logger) Sink {
	return &mongoSink{store: store, logger: logger}
}

func (s *mongoSink) LogEvent(_ context.Context, dbName string, event entity.AuditEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Write asynchronously so the primary operation never waits on the
	// audit collection. Detached from the caller's context on purpose.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		coll := s.store.Collection(dbName, mongostore.CollectionAuditEvents)
		if _, err := coll.InsertOne(ctx, event); err != nil {
			s.logger.Warn("Failed to write audit event",
				zap.String("db", dbName),
				zap.String("event_type", event.EventType),
				zap.String("resource", event.Resource),
				zap.Error(err),
			)
		}
	}()
}

var Module = fx.Module("audit",
	fx.Provide(NewSink),
)
