package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"dealersign/internal/domain/entity"
)

// DocumentRepository is the tenant-scoped document store.
type DocumentRepository interface {
	Create(ctx context.Context, dbName string, doc *entity.Document) error
	FindByID(ctx context.Context, dbName string, id primitive.ObjectID) (*entity.Document, error)
	// Update persists signer-state mutations (recipients, values, status).
	Update(ctx context.Context, dbName string, doc *entity.Document) error
	// CountInFlightByTemplate counts documents of a template still in an
	// active signing state; soft-deleting the template is refused while
	// this is non-zero.
	CountInFlightByTemplate(ctx context.Context, dbName string, templateID primitive.ObjectID) (int64, error)
	// FindExpired returns documents in a sweepable status whose expires_at
	// lies before now, up to limit.
	FindExpired(ctx context.Context, dbName string, now time.Time, limit int) ([]entity.Document, error)
	// Expire marks the document expired and nulls every recipient token in
	// one atomic update, so no signer can redeem a token after the status
	// flips.
	Expire(ctx context.Context, dbName string, id primitive.ObjectID) error
	// SetRenderResult stores the final PDF artifact location and hash.
	SetRenderResult(ctx context.Context, dbName string, id primitive.ObjectID, pdfURL, pdfHash string) error
	// MarkError puts the document into the terminal error state with a
	// user-visible reason.
	MarkError(ctx context.Context, dbName string, id primitive.ObjectID, reason string) error
}
