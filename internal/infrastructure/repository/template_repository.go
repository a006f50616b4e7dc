package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"dealersign/internal/domain/entity"
	"dealersign/internal/domain/repository"
	"dealersign/internal/infrastructure/mongostore"
)

// ErrNotFound is returned when the requested record does not exist in the
// tenant database (or is soft-deleted).
var ErrNotFound = errors.New("record not found")

type templateRepository struct {
	store  *mongostore.Store
	logger *zap.Logger
}

func NewTemplateRepository(store *mongostore.Store, logger *zap.Logger) repository.TemplateRepository {
	return &templateRepository{store: store, logger: logger}
}

func (r *templateRepository) collection(dbName string) *mongo.Collection {
	return r.store.Collection(dbName, mongostore.CollectionTemplates)
}

func (r *templateRepository) Create(ctx context.Context, dbName string, tpl *entity.Template) error {
	now := time.Now()
	tpl.Version = 1
	tpl.Status = entity.TemplateStatusDraft
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	result, err := r.collection(dbName).InsertOne(ctx, tpl)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		tpl.ID = oid
	}
	return nil
}

func (r *templateRepository) Update(ctx context.Context, dbName string, tpl *entity.Template) error {
	tpl.Version++
	tpl.UpdatedAt = time.Now()

	result, err := r.collection(dbName).ReplaceOne(ctx,
		bson.M{"_id": tpl.ID, "deleted": false},
		tpl,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *templateRepository) FindByID(ctx context.Context, dbName string, id primitive.ObjectID) (*entity.Template, error) {
	var tpl entity.Template
	err := r.collection(dbName).FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&tpl)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find template: %w", err)
	}
	return &tpl, nil
}

func (r *templateRepository) SetStatus(ctx context.Context, dbName string, id primitive.ObjectID, status entity.TemplateStatus) error {
	result, err := r.collection(dbName).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to set template status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *templateRepository) SoftDelete(ctx context.Context, dbName string, id primitive.ObjectID) error {
	result, err := r.collection(dbName).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete template: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
