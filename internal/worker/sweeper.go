package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dealersign/internal/config"
	"dealersign/internal/domain/entity"
	"dealersign/internal/domain/repository"
	"dealersign/internal/infrastructure/audit"
	"dealersign/internal/infrastructure/mailer"
)

// SweepResult is one company's outcome for one sweep pass. A company-level
// failure (registry or tenant store unreachable) fills Error and leaves the
// counters at whatever had been processed.
type SweepResult struct {
	CompanyID          int64  `json:"company_id"`
	CompanyName        string `json:"company_name"`
	Expired            int    `json:"expired"`
	ExpireErrors       int    `json:"expire_errors"`
	NotificationsSent  int    `json:"notifications_sent"`
	NotificationErrors int    `json:"notification_errors"`
	Error              string `json:"error,omitempty"`
}

// Sweeper transitions documents past their expiry into the terminal expired
// state. Companies are processed strictly sequentially, and documents within
// a company sequentially, to bound load on shared infrastructure.
type Sweeper struct {
	companies  repository.CompanyRepository
	documents  repository.DocumentRepository
	mailSender mailer.Sender
	auditSink  audit.Sink
	logger     *zap.Logger
	interval   time.Duration
	batchSize  int
	nowFn      func() time.Time
}

func NewSweeper(
	cfg *config.Config,
	companies repository.CompanyRepository,
	documents repository.DocumentRepository,
	mailSender mailer.Sender,
	auditSink audit.Sink,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		companies:  companies,
		documents:  documents,
		mailSender: mailSender,
		auditSink:  auditSink,
		logger:     logger,
		interval:   cfg.Sweeper.Interval,
		batchSize:  cfg.Sweeper.BatchSize,
		nowFn:      time.Now,
	}
}

// Run executes sweep passes on the configured interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Expiry sweeper started",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over every active company and returns the per-company
// results. One company failing never aborts the rest.
func (s *Sweeper) Sweep(ctx context.Context) []SweepResult {
	companies, err := s.companies.ListActive(ctx)
	if err != nil {
		s.logger.Error("Sweep aborted: failed to list companies", zap.Error(err))
		return nil
	}

	results := make([]SweepResult, 0, len(companies))
	totalExpired, totalExpireErrors, totalSent, totalSendErrors, failedCompanies := 0, 0, 0, 0, 0

	for _, company := range companies {
		result := s.sweepCompany(ctx, company)
		results = append(results, result)

		totalExpired += result.Expired
		totalExpireErrors += result.ExpireErrors
		totalSent += result.NotificationsSent
		totalSendErrors += result.NotificationErrors
		if result.Error != "" {
			failedCompanies++
		}

		if result.Expired > 0 || result.ExpireErrors > 0 || result.Error != "" {
			s.logger.Info("Company sweep finished",
				zap.Int64("company_id", company.ID),
				zap.String("company", company.Name),
				zap.Int("expired", result.Expired),
				zap.Int("expire_errors", result.ExpireErrors),
				zap.Int("notifications_sent", result.NotificationsSent),
				zap.Int("notification_errors", result.NotificationErrors),
				zap.String("error", result.Error),
			)
		}
	}

	s.logger.Info("Sweep pass finished",
		zap.Int("companies", len(companies)),
		zap.Int("companies_failed", failedCompanies),
		zap.Int("documents_expired", totalExpired),
		zap.Int("expire_errors", totalExpireErrors),
		zap.Int("notifications_sent", totalSent),
		zap.Int("notification_errors", totalSendErrors),
	)
	return results
}

func (s *Sweeper) sweepCompany(ctx context.Context, company entity.Company) SweepResult {
	result := SweepResult{CompanyID: company.ID, CompanyName: company.Name}

	docs, err := s.documents.FindExpired(ctx, company.DBName, s.nowFn(), s.batchSize)
	if err != nil {
		result.Error = fmt.Sprintf("failed to query expired documents: %v", err)
		return result
	}

	for i := range docs {
		doc := &docs[i]
		previousStatus := doc.Status
		pending := doc.PendingRecipients()

		// Status flip and token invalidation are one atomic update; a
		// signer can never redeem a token on an expired document.
		if err := s.documents.Expire(ctx, company.DBName, doc.ID); err != nil {
			s.logger.Error("Failed to expire document",
				zap.String("db", company.DBName),
				zap.String("document_id", doc.ID.Hex()),
				zap.Error(err),
			)
			result.ExpireErrors++
			continue
		}
		result.Expired++

		sent, sendErrors := s.notifyExpired(ctx, company, doc, pending)
		result.NotificationsSent += sent
		result.NotificationErrors += sendErrors

		s.auditSink.LogEvent(ctx, company.DBName, entity.AuditEvent{
			EventType: "document.expired",
			Actor:     entity.ActorSystem,
			Resource:  "document:" + doc.ID.Hex(),
			Action:    "expire",
			Metadata: map[string]interface{}{
				"previous_status":    previousStatus,
				"expires_at":         doc.ExpiresAt,
				"pending_recipients": len(pending),
			},
		})
	}

	return result
}

// notifyExpired sends one best-effort expiry notice per still-pending
// recipient. Failures are logged per recipient and never block siblings.
func (s *Sweeper) notifyExpired(ctx context.Context, company entity.Company, doc *entity.Document, pending []entity.DocumentRecipient) (sent, sendErrors int) {
	if !doc.TemplateSnapshot.Notification.NotifyOnExpiry {
		return 0, 0
	}

	provider, err := s.companies.ActiveMailProvider(ctx, company.ID)
	if err != nil {
		s.logger.Warn("Failed to load mail provider, skipping expiry notices",
			zap.Int64("company_id", company.ID),
			zap.Error(err),
		)
		return 0, len(pending)
	}
	if provider == nil {
		return 0, 0
	}

	subject := doc.TemplateSnapshot.Notification.Subject
	if subject == "" {
		subject = "Signing request expired"
	}

	for _, recipient := range pending {
		if recipient.Email == "" {
			// Nothing on file to deliver to; not an error.
			continue
		}
		msg := &mailer.Message{
			To:      recipient.Email,
			Subject: subject,
			Body: fmt.Sprintf("The document %q expired on %s before all signatures were collected.",
				doc.TemplateSnapshot.Name, doc.ExpiresAt.Format(time.RFC1123)),
		}
		if err := s.mailSender.Send(ctx, provider, msg); err != nil {
			s.logger.Warn("Failed to send expiry notice",
				zap.String("db", company.DBName),
				zap.String("document_id", doc.ID.Hex()),
				zap.String("recipient", recipient.Label),
				zap.Error(err),
			)
			sendErrors++
			continue
		}
		sent++
	}
	return sent, sendErrors
}
