package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"dealersign/internal/config"
	"dealersign/internal/domain/entity"
	"dealersign/internal/domain/repository"
	"dealersign/internal/infrastructure/pdfclient"
	"dealersign/internal/infrastructure/queue"
)

// PdfWorker consumes the PDF generation queue. Rendering is delegated to the
// external rendering collaborator; the worker owns retries, backoff and
// terminal failure marking only. The queue is the sole path to a document's
// final PDF artifact.
type PdfWorker struct {
	jobQueue   queue.Queue
	documents  repository.DocumentRepository
	renderer   pdfclient.Renderer
	logger     *zap.Logger
	maxPerPoll int
	waitTime   time.Duration
	maxRetries int
}

func NewPdfWorker(
	cfg *config.Config,
	jobQueue queue.Queue,
	documents repository.DocumentRepository,
	renderer pdfclient.Renderer,
	logger *zap.Logger,
) *PdfWorker {
	return &PdfWorker{
		jobQueue:   jobQueue,
		documents:  documents,
		renderer:   renderer,
		logger:     logger,
		maxPerPoll: cfg.Queue.MaxMessages,
		waitTime:   time.Duration(cfg.Queue.WaitSeconds) * time.Second,
		maxRetries: cfg.Queue.MaxRetries,
	}
}

// Run polls until ctx is done.
func (w *PdfWorker) Run(ctx context.Context) {
	w.logger.Info("PDF worker started",
		zap.Int("max_per_poll", w.maxPerPoll),
		zap.Int("max_retries", w.maxRetries),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("PDF worker stopped")
			return
		default:
		}

		if err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("Queue poll failed", zap.Error(err))
			// Back off briefly so a broken queue does not spin
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// Poll receives one batch and processes each message. Message-level failures
// are handled inside processMessage; only queue-level failures surface.
func (w *PdfWorker) Poll(ctx context.Context) error {
	messages, err := w.jobQueue.ReceiveMessages(ctx, w.maxPerPoll, w.waitTime)
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range messages {
		w.processMessage(ctx, msg)
	}
	return nil
}

func (w *PdfWorker) processMessage(ctx context.Context, msg queue.Message) {
	var job entity.PdfJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("Dropping undecodable pdf job", zap.Error(err))
		w.deleteMessage(ctx, msg)
		return
	}

	result, err := w.renderer.GenerateSignedPdf(ctx, job.DocumentID, pdfclient.RenderContext{
		CompanyID:     job.CompanyID,
		CompanyDBName: job.CompanyDBName,
		Actor:         entity.ActorSystem,
		CorrelationID: uuid.NewString(),
	})
	if err != nil {
		w.handleFailure(ctx, msg, job, err)
		return
	}

	docID, idErr := primitive.ObjectIDFromHex(job.DocumentID)
	if idErr != nil {
		w.logger.Error("Dropping pdf job with malformed document id",
			zap.String("document_id", job.DocumentID),
			zap.Error(idErr),
		)
		w.deleteMessage(ctx, msg)
		return
	}

	if err := w.documents.SetRenderResult(ctx, job.CompanyDBName, docID, result.PdfURL, result.PdfHash); err != nil {
		// The artifact exists but the record does not reflect it;
		// retry the whole job, regeneration is idempotent.
		w.handleFailure(ctx, msg, job, err)
		return
	}

	w.deleteMessage(ctx, msg)
	w.logger.Info("Document rendered",
		zap.String("db", job.CompanyDBName),
		zap.String("document_id", job.DocumentID),
		zap.Int("attempts", job.Attempts+1),
		zap.String("pdf_hash", result.PdfHash),
	)
}

// handleFailure re-enqueues with exponential backoff, or marks the document
// terminally errored once retries are exhausted. The retry copy is enqueued
// before the original is deleted: a crash between the two steps yields a
// duplicate, never a lost job.
func (w *PdfWorker) handleFailure(ctx context.Context, msg queue.Message, job entity.PdfJob, cause error) {
	if job.Attempts < w.maxRetries-1 {
		retry := job
		retry.Attempts++
		delay := time.Duration(1<<uint(retry.Attempts)) * time.Second

		payload, err := json.Marshal(retry)
		if err != nil {
			w.logger.Error("Failed to marshal retry job", zap.Error(err))
			return
		}
		if err := w.jobQueue.SendMessage(ctx, string(payload), delay); err != nil {
			// Leave the original in flight; the visibility timeout
			// will redeliver it.
			w.logger.Error("Failed to re-enqueue pdf job",
				zap.String("document_id", job.DocumentID),
				zap.Error(err),
			)
			return
		}
		w.deleteMessage(ctx, msg)

		w.logger.Warn("PDF render failed, retrying",
			zap.String("db", job.CompanyDBName),
			zap.String("document_id", job.DocumentID),
			zap.Int("attempts", retry.Attempts),
			zap.Duration("delay", delay),
			zap.Error(cause),
		)
		return
	}

	reason := fmt.Sprintf("pdf generation failed after %d attempts: %v", job.Attempts+1, cause)
	docID, idErr := primitive.ObjectIDFromHex(job.DocumentID)
	if idErr == nil {
		if err := w.documents.MarkError(ctx, job.CompanyDBName, docID, reason); err != nil {
			w.logger.Error("Failed to mark document errored",
				zap.String("db", job.CompanyDBName),
				zap.String("document_id", job.DocumentID),
				zap.Error(err),
			)
		}
	}
	w.deleteMessage(ctx, msg)

	w.logger.Error("PDF render retries exhausted",
		zap.String("db", job.CompanyDBName),
		zap.String("document_id", job.DocumentID),
		zap.Int("attempts", job.Attempts+1),
		zap.Error(cause),
	)
}

func (w *PdfWorker) deleteMessage(ctx context.Context, msg queue.Message) {
	if err := w.jobQueue.DeleteMessage(ctx, msg.ReceiptHandle); err != nil {
		w.logger.Warn("Failed to acknowledge message; queue will redeliver",
			zap.String("receipt", msg.ReceiptHandle),
			zap.Error(err),
		)
	}
}
