package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"dealersign/internal/domain/entity"
	"dealersign/internal/domain/esign"
	"dealersign/internal/domain/repository"
	"dealersign/internal/infrastructure/audit"
	"dealersign/internal/infrastructure/queue"
)

var (
	// ErrDocumentClosed is returned for signer actions against a document
	// in a terminal state.
	ErrDocumentClosed = errors.New("document is in a terminal state")
	// ErrRecipientNotActionable is returned when the acting recipient is
	// unknown, already settled, or not yet activated in the sequence.
	ErrRecipientNotActionable = errors.New("recipient cannot act on this document")
)

type DocumentUsecase interface {
	// Distribute instantiates an activated template: snapshot, per-recipient
	// tokens, expiry stamp. Contacts are matched to template recipients by
	// signature order; recipients without a contact get no address and are
	// skipped by expiry notices.
	Distribute(ctx context.Context, dbName string, templateID primitive.ObjectID, contacts []entity.RecipientContact) (*entity.Document, error)
	// MarkOpened records the first signer opening the document.
	MarkOpened(ctx context.Context, dbName string, docID primitive.ObjectID) error
	// RecordSignature applies one signer's signature and submitted delimiter
	// values, runs routing, and enqueues the PDF job on completion.
	RecordSignature(ctx context.Context, dbName string, docID primitive.ObjectID, signatureOrder int, values map[string]string) (*entity.Document, error)
	// RecordRejection puts the document into the terminal rejected state and
	// invalidates all outstanding tokens.
	RecordRejection(ctx context.Context, dbName string, docID primitive.ObjectID, signatureOrder int, reason string) (*entity.Document, error)
}

type documentUsecase struct {
	templates repository.TemplateRepository
	documents repository.DocumentRepository
	jobQueue  queue.Queue
	auditSink audit.Sink
	logger    *zap.Logger
	nowFn     func() time.Time
}

func NewDocumentUsecase(
	templates repository.TemplateRepository,
	documents repository.DocumentRepository,
	jobQueue queue.Queue,
	auditSink audit.Sink,
	logger *zap.Logger,
) DocumentUsecase {
	return &documentUsecase{
		templates: templates,
		documents: documents,
		jobQueue:  jobQueue,
		auditSink: auditSink,
		logger:    logger,
		nowFn:     time.Now,
	}
}

func (u *documentUsecase) Distribute(ctx context.Context, dbName string, templateID primitive.ObjectID, contacts []entity.RecipientContact) (*entity.Document, error) {
	tpl, err := u.templates.FindByID(ctx, dbName, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if tpl.Status != entity.TemplateStatusActive {
		return nil, ErrTemplateNotActive
	}

	now := u.nowFn()
	expiresAt := now.Add(linkExpiryDuration(tpl.LinkExpiry))

	doc := &entity.Document{
		CompanyID:        tpl.CompanyID,
		TemplateID:       tpl.ID,
		TemplateVersion:  tpl.Version,
		TemplateSnapshot: tpl.Clone(),
		Values:           map[string]string{},
		Status:           entity.DocumentStatusDistributed,
		ExpiresAt:        expiresAt,
	}

	emailByOrder := make(map[int]string, len(contacts))
	for _, c := range contacts {
		emailByOrder[c.SignatureOrder] = c.Email
	}

	for _, r := range tpl.Recipients {
		token := uuid.NewString()
		tokenExpiry := expiresAt
		doc.Recipients = append(doc.Recipients, entity.DocumentRecipient{
			Label:          r.Label,
			SignatureOrder: r.SignatureOrder,
			Email:          emailByOrder[r.SignatureOrder],
			State:          entity.RecipientStatePending,
			Active:         initiallyActive(tpl.SignatureType, r.SignatureOrder, tpl.Recipients),
			Token:          &token,
			TokenExpiresAt: &tokenExpiry,
		})
	}

	if err := u.documents.Create(ctx, dbName, doc); err != nil {
		return nil, err
	}

	u.auditSink.LogEvent(ctx, dbName, entity.AuditEvent{
		EventType: "document.distributed",
		Actor:     entity.ActorSystem,
		Resource:  "document:" + doc.ID.Hex(),
		Action:    "distribute",
		Metadata: map[string]interface{}{
			"template_id":      tpl.ID.Hex(),
			"template_version": tpl.Version,
			"recipients":       len(doc.Recipients),
			"expires_at":       expiresAt,
		},
	})

	u.logger.Info("Document distributed",
		zap.String("db", dbName),
		zap.String("document_id", doc.ID.Hex()),
		zap.String("template_id", tpl.ID.Hex()),
		zap.Time("expires_at", expiresAt),
	)
	return doc, nil
}

func (u *documentUsecase) MarkOpened(ctx context.Context, dbName string, docID primitive.ObjectID) error {
	doc, err := u.documents.FindByID(ctx, dbName, docID)
	if err != nil {
		return err
	}
	if doc.Status != entity.DocumentStatusDistributed {
		return nil
	}
	doc.Status = entity.DocumentStatusOpened
	return u.documents.Update(ctx, dbName, doc)
}

func (u *documentUsecase) RecordSignature(ctx context.Context, dbName string, docID primitive.ObjectID, signatureOrder int, values map[string]string) (*entity.Document, error) {
	doc, err := u.documents.FindByID(ctx, dbName, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status.IsTerminal() {
		return nil, ErrDocumentClosed
	}

	actor := doc.RecipientByOrder(signatureOrder)
	if actor == nil || actor.State != entity.RecipientStatePending || !actor.Active {
		return nil, ErrRecipientNotActionable
	}

	now := u.nowFn()
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	for k, v := range values {
		doc.Values[k] = v
	}

	actor.State = entity.RecipientStateSigned
	actor.SignedAt = &now
	actor.Active = false
	actor.Token = nil
	actor.TokenExpiresAt = nil

	// Routing sees submitted values overlaid on delimiter defaults.
	outcome := esign.ApplyRouting(doc, signatureOrder, u.evaluationValues(doc))

	// Newly reachable recipients get fresh tokens.
	for _, order := range append(outcome.Activated, outcome.Added...) {
		if r := doc.RecipientByOrder(order); r != nil && r.Token == nil {
			token := uuid.NewString()
			tokenExpiry := doc.ExpiresAt
			r.Token = &token
			r.TokenExpiresAt = &tokenExpiry
		}
	}

	if doc.TemplateSnapshot.SignatureType == entity.SignatureTypeHierarchy && !outcome.Completed {
		u.activateNextInHierarchy(doc)
	}

	completed := outcome.Completed || doc.AllSatisfied()
	if completed {
		doc.Status = entity.DocumentStatusCompleted
		for i := range doc.Recipients {
			doc.Recipients[i].Active = false
			doc.Recipients[i].Token = nil
			doc.Recipients[i].TokenExpiresAt = nil
		}
	} else {
		doc.Status = entity.DocumentStatusPartiallySigned
	}

	if err := u.documents.Update(ctx, dbName, doc); err != nil {
		return nil, err
	}

	u.auditSink.LogEvent(ctx, dbName, entity.AuditEvent{
		EventType: "document.signed",
		Actor:     actor.Label,
		Resource:  "document:" + doc.ID.Hex(),
		Action:    "sign",
		Metadata: map[string]interface{}{
			"signature_order": signatureOrder,
			"activated":       outcome.Activated,
			"skipped":         outcome.Skipped,
			"added":           outcome.Added,
			"completed":       completed,
		},
	})

	if completed {
		if err := u.enqueueRender(ctx, dbName, doc); err != nil {
			return nil, err
		}
	}

	u.logger.Info("Signature recorded",
		zap.String("db", dbName),
		zap.String("document_id", doc.ID.Hex()),
		zap.Int("signature_order", signatureOrder),
		zap.String("status", string(doc.Status)),
	)
	return doc, nil
}

func (u *documentUsecase) RecordRejection(ctx context.Context, dbName string, docID primitive.ObjectID, signatureOrder int, reason string) (*entity.Document, error) {
	doc, err := u.documents.FindByID(ctx, dbName, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status.IsTerminal() {
		return nil, ErrDocumentClosed
	}

	actor := doc.RecipientByOrder(signatureOrder)
	if actor == nil || actor.State != entity.RecipientStatePending || !actor.Active {
		return nil, ErrRecipientNotActionable
	}

	actor.State = entity.RecipientStateRejected
	doc.Status = entity.DocumentStatusRejected
	for i := range doc.Recipients {
		doc.Recipients[i].Active = false
		doc.Recipients[i].Token = nil
		doc.Recipients[i].TokenExpiresAt = nil
	}

	if err := u.documents.Update(ctx, dbName, doc); err != nil {
		return nil, err
	}

	u.auditSink.LogEvent(ctx, dbName, entity.AuditEvent{
		EventType: "document.rejected",
		Actor:     actor.Label,
		Resource:  "document:" + doc.ID.Hex(),
		Action:    "reject",
		Metadata: map[string]interface{}{
			"signature_order": signatureOrder,
			"reason":          reason,
		},
	})
	return doc, nil
}

// evaluationValues merges delimiter defaults under the values signers have
// submitted so far.
func (u *documentUsecase) evaluationValues(doc *entity.Document) map[string]string {
	out := make(map[string]string)
	for _, d := range doc.TemplateSnapshot.Delimiters {
		if !d.Unused && d.DefaultValue != "" {
			out[d.Key] = d.DefaultValue
		}
	}
	for k, v := range doc.Values {
		out[k] = v
	}
	return out
}

// activateNextInHierarchy activates the lowest-order pending recipient so a
// hierarchy document always has exactly one reachable signer.
func (u *documentUsecase) activateNextInHierarchy(doc *entity.Document) {
	next := -1
	for _, r := range doc.Recipients {
		if r.State != entity.RecipientStatePending {
			continue
		}
		if next == -1 || r.SignatureOrder < next {
			next = r.SignatureOrder
		}
	}
	if next == -1 {
		return
	}
	if r := doc.RecipientByOrder(next); r != nil && !r.Active {
		r.Active = true
		if r.Token == nil {
			token := uuid.NewString()
			tokenExpiry := doc.ExpiresAt
			r.Token = &token
			r.TokenExpiresAt = &tokenExpiry
		}
	}
}

func (u *documentUsecase) enqueueRender(ctx context.Context, dbName string, doc *entity.Document) error {
	job := entity.PdfJob{
		DocumentID:    doc.ID.Hex(),
		CompanyID:     doc.CompanyID,
		CompanyDBName: dbName,
		Attempts:      0,
		EnqueuedAt:    u.nowFn(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal pdf job: %w", err)
	}
	if err := u.jobQueue.SendMessage(ctx, string(payload), 0); err != nil {
		u.logger.Error("Failed to enqueue pdf job",
			zap.String("db", dbName),
			zap.String("document_id", doc.ID.Hex()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to enqueue pdf job: %w", err)
	}

	u.logger.Info("PDF job enqueued",
		zap.String("db", dbName),
		zap.String("document_id", doc.ID.Hex()),
	)
	return nil
}

// initiallyActive reports whether a recipient is reachable at distribution
// time. Hierarchy documents open only the lowest signature order; every other
// signature type opens all recipients at once.
func initiallyActive(sigType entity.SignatureType, order int, recipients []entity.Recipient) bool {
	if sigType != entity.SignatureTypeHierarchy {
		return true
	}
	lowest := order
	for _, r := range recipients {
		if r.SignatureOrder < lowest {
			lowest = r.SignatureOrder
		}
	}
	return order == lowest
}

func linkExpiryDuration(cfg entity.LinkExpiryConfig) time.Duration {
	var unit time.Duration
	switch cfg.Unit {
	case "hours":
		unit = time.Hour
	case "days":
		unit = 24 * time.Hour
	case "weeks":
		unit = 7 * 24 * time.Hour
	default:
		unit = 24 * time.Hour
	}
	d := time.Duration(cfg.Value) * unit
	if cfg.GracePeriodHours != nil {
		d += time.Duration(*cfg.GracePeriodHours) * time.Hour
	}
	return d
}
