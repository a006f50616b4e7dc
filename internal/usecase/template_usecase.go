package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"dealersign/internal/domain/entity"
	"dealersign/internal/domain/esign"
	"dealersign/internal/domain/repository"
	"dealersign/internal/infrastructure/audit"
)

// ErrTemplateInUse is returned when a soft delete is refused because derived
// documents are still in an active signing state.
var ErrTemplateInUse = errors.New("template has documents in an active signing state")

// ErrTemplateNotActive is returned when distribution is attempted from a
// draft or deleted template.
var ErrTemplateNotActive = errors.New("template is not active")

type TemplateUsecase interface {
	// Save creates or updates a template, rescanning its delimiter list
	// against the HTML body. Updates increment the version.
	Save(ctx context.Context, dbName string, tpl *entity.Template) error
	// Activate validates the template and transitions it to active. A
	// non-empty error list means activation was refused with no state
	// change.
	Activate(ctx context.Context, dbName string, id primitive.ObjectID) ([]esign.ValidationError, error)
	// SoftDelete flags the template deleted; refused while any derived
	// document is still being signed.
	SoftDelete(ctx context.Context, dbName string, id primitive.ObjectID) error
	// Preview renders the HTML body with sample values substituted for
	// declared delimiters.
	Preview(ctx context.Context, dbName string, id primitive.ObjectID, samples map[string]string) (string, error)
}

type templateUsecase struct {
	templates repository.TemplateRepository
	documents repository.DocumentRepository
	auditSink audit.Sink
	logger    *zap.Logger
}

func NewTemplateUsecase(
	templates repository.TemplateRepository,
	documents repository.DocumentRepository,
	auditSink audit.Sink,
	logger *zap.Logger,
) TemplateUsecase {
	return &templateUsecase{
		templates: templates,
		documents: documents,
		auditSink: auditSink,
		logger:    logger,
	}
}

func (u *templateUsecase) Save(ctx context.Context, dbName string, tpl *entity.Template) error {
	tpl.Delimiters = esign.ScanAndPopulateDelimiters(tpl.HTMLBody, tpl.Delimiters)

	if tpl.ID.IsZero() {
		if err := u.templates.Create(ctx, dbName, tpl); err != nil {
			u.logger.Error("Failed to create template",
				zap.String("db", dbName),
				zap.String("name", tpl.Name),
				zap.Error(err),
			)
			return err
		}
		u.logger.Info("Template created",
			zap.String("db", dbName),
			zap.String("template_id", tpl.ID.Hex()),
			zap.Int("delimiters", len(tpl.Delimiters)),
		)
		return nil
	}

	if err := u.templates.Update(ctx, dbName, tpl); err != nil {
		u.logger.Error("Failed to update template",
			zap.String("db", dbName),
			zap.String("template_id", tpl.ID.Hex()),
			zap.Error(err),
		)
		return err
	}
	u.logger.Info("Template updated",
		zap.String("db", dbName),
		zap.String("template_id", tpl.ID.Hex()),
		zap.Int("version", tpl.Version),
	)
	return nil
}

func (u *templateUsecase) Activate(ctx context.Context, dbName string, id primitive.ObjectID) ([]esign.ValidationError, error) {
	tpl, err := u.templates.FindByID(ctx, dbName, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	if errs := esign.ValidateTemplate(*tpl); len(errs) > 0 {
		u.logger.Info("Template activation refused",
			zap.String("db", dbName),
			zap.String("template_id", id.Hex()),
			zap.Int("errors", len(errs)),
		)
		return errs, nil
	}

	if err := u.templates.SetStatus(ctx, dbName, id, entity.TemplateStatusActive); err != nil {
		return nil, fmt.Errorf("failed to activate template: %w", err)
	}

	u.auditSink.LogEvent(ctx, dbName, entity.AuditEvent{
		EventType: "template.activated",
		Actor:     entity.ActorSystem,
		Resource:  "template:" + id.Hex(),
		Action:    "activate",
		Metadata: map[string]interface{}{
			"version": tpl.Version,
		},
	})

	u.logger.Info("Template activated",
		zap.String("db", dbName),
		zap.String("template_id", id.Hex()),
	)
	return nil, nil
}

func (u *templateUsecase) SoftDelete(ctx context.Context, dbName string, id primitive.ObjectID) error {
	inFlight, err := u.documents.CountInFlightByTemplate(ctx, dbName, id)
	if err != nil {
		return fmt.Errorf("failed to check in-flight documents: %w", err)
	}
	if inFlight > 0 {
		u.logger.Info("Template delete refused",
			zap.String("db", dbName),
			zap.String("template_id", id.Hex()),
			zap.Int64("in_flight", inFlight),
		)
		return ErrTemplateInUse
	}

	if err := u.templates.SoftDelete(ctx, dbName, id); err != nil {
		return err
	}

	u.auditSink.LogEvent(ctx, dbName, entity.AuditEvent{
		EventType: "template.deleted",
		Actor:     entity.ActorSystem,
		Resource:  "template:" + id.Hex(),
		Action:    "soft_delete",
	})
	return nil
}

func (u *templateUsecase) Preview(ctx context.Context, dbName string, id primitive.ObjectID, samples map[string]string) (string, error) {
	tpl, err := u.templates.FindByID(ctx, dbName, id)
	if err != nil {
		return "", fmt.Errorf("failed to load template: %w", err)
	}
	return esign.RenderPreview(tpl.HTMLBody, tpl.Delimiters, samples), nil
}
