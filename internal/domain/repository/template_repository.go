package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"dealersign/internal/domain/entity"
)

// TemplateRepository is the tenant-scoped template store. Every call names
// the tenant database explicitly; there is no ambient tenant state.
type TemplateRepository interface {
	Create(ctx context.Context, dbName string, tpl *entity.Template) error
	// Update persists the template and increments its version.
	Update(ctx context.Context, dbName string, tpl *entity.Template) error
	FindByID(ctx context.Context, dbName string, id primitive.ObjectID) (*entity.Template, error)
	// SetStatus transitions the lifecycle status only.
	SetStatus(ctx context.Context, dbName string, id primitive.ObjectID, status entity.TemplateStatus) error
	// SoftDelete flags the template deleted without removing it.
	SoftDelete(ctx context.Context, dbName string, id primitive.ObjectID) error
}
