package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"dealersign/internal/domain/entity"
	"dealersign/internal/domain/repository"
	"dealersign/internal/infrastructure/mongostore"
)

type documentRepository struct {
	store  *mongostore.Store
	logger *zap.Logger
}

func NewDocumentRepository(store *mongostore.Store, logger *zap.Logger) repository.DocumentRepository {
	return &documentRepository{store: store, logger: logger}
}

func (r *documentRepository) collection(dbName string) *mongo.Collection {
	return r.store.Collection(dbName, mongostore.CollectionDocuments)
}

func (r *documentRepository) Create(ctx context.Context, dbName string, doc *entity.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	result, err := r.collection(dbName).InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return nil
}

func (r *documentRepository) FindByID(ctx context.Context, dbName string, id primitive.ObjectID) (*entity.Document, error) {
	var doc entity.Document
	err := r.collection(dbName).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return &doc, nil
}

func (r *documentRepository) Update(ctx context.Context, dbName string, doc *entity.Document) error {
	doc.UpdatedAt = time.Now()

	result, err := r.collection(dbName).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *documentRepository) CountInFlightByTemplate(ctx context.Context, dbName string, templateID primitive.ObjectID) (int64, error) {
	count, err := r.collection(dbName).CountDocuments(ctx, bson.M{
		"template_id": templateID,
		"status":      bson.M{"$in": entity.SweepableStatuses},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count in-flight documents: %w", err)
	}
	return count, nil
}

func (r *documentRepository) FindExpired(ctx context.Context, dbName string, now time.Time, limit int) ([]entity.Document, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "expires_at", Value: 1}})

	cursor, err := r.collection(dbName).Find(ctx, bson.M{
		"status":     bson.M{"$in": entity.SweepableStatuses},
		"expires_at": bson.M{"$lt": now},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []entity.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode expired documents: %w", err)
	}
	return docs, nil
}

// Expire flips the status and nulls every recipient token in a single
// update, so the transition and the invalidation cannot be observed apart.
func (r *documentRepository) Expire(ctx context.Context, dbName string, id primitive.ObjectID) error {
	result, err := r.collection(dbName).UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": entity.SweepableStatuses}},
		bson.M{"$set": bson.M{
			"status":                          entity.DocumentStatusExpired,
			"recipients.$[].token":            nil,
			"recipients.$[].token_expires_at": nil,
			"updated_at":                      time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to expire document: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *documentRepository) SetRenderResult(ctx context.Context, dbName string, id primitive.ObjectID, pdfURL, pdfHash string) error {
	result, err := r.collection(dbName).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"pdf_url":    pdfURL,
			"pdf_hash":   pdfHash,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to store render result: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *documentRepository) MarkError(ctx context.Context, dbName string, id primitive.ObjectID, reason string) error {
	result, err := r.collection(dbName).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":       entity.DocumentStatusError,
			"error_reason": reason,
			"updated_at":   time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark document errored: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
