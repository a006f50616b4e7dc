package usecase

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"dealersign/internal/domain/entity"
	"dealersign/internal/infrastructure/queue"
	"dealersign/internal/infrastructure/repository"
)

// fakeTemplateRepo is an in-memory TemplateRepository keyed by object id.
type fakeTemplateRepo struct {
	mu        sync.Mutex
	templates map[primitive.ObjectID]*entity.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: map[primitive.ObjectID]*entity.Template{}}
}

func (f *fakeTemplateRepo) Create(_ context.Context, _ string, tpl *entity.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl.ID = primitive.NewObjectID()
	tpl.Version = 1
	tpl.Status = entity.TemplateStatusDraft
	stored := tpl.Clone()
	f.templates[tpl.ID] = &stored
	return nil
}

func (f *fakeTemplateRepo) Update(_ context.Context, _ string, tpl *entity.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[tpl.ID]; !ok {
		return repository.ErrNotFound
	}
	tpl.Version++
	stored := tpl.Clone()
	f.templates[tpl.ID] = &stored
	return nil
}

func (f *fakeTemplateRepo) FindByID(_ context.Context, _ string, id primitive.ObjectID) (*entity.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[id]
	if !ok || tpl.Deleted {
		return nil, repository.ErrNotFound
	}
	out := tpl.Clone()
	return &out, nil
}

func (f *fakeTemplateRepo) SetStatus(_ context.Context, _ string, id primitive.ObjectID, status entity.TemplateStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[id]
	if !ok {
		return repository.ErrNotFound
	}
	tpl.Status = status
	return nil
}

func (f *fakeTemplateRepo) SoftDelete(_ context.Context, _ string, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[id]
	if !ok || tpl.Deleted {
		return repository.ErrNotFound
	}
	tpl.Deleted = true
	return nil
}

// fakeDocumentRepo is an in-memory DocumentRepository.
type fakeDocumentRepo struct {
	mu        sync.Mutex
	documents map[primitive.ObjectID]*entity.Document
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{documents: map[primitive.ObjectID]*entity.Document{}}
}

func copyDoc(doc *entity.Document) *entity.Document {
	out := *doc
	out.TemplateSnapshot = doc.TemplateSnapshot.Clone()
	out.Recipients = append([]entity.DocumentRecipient(nil), doc.Recipients...)
	out.Values = map[string]string{}
	for k, v := range doc.Values {
		out.Values[k] = v
	}
	return &out
}

func (f *fakeDocumentRepo) Create(_ context.Context, _ string, doc *entity.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc.ID = primitive.NewObjectID()
	f.documents[doc.ID] = copyDoc(doc)
	return nil
}

func (f *fakeDocumentRepo) FindByID(_ context.Context, _ string, id primitive.ObjectID) (*entity.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyDoc(doc), nil
}

func (f *fakeDocumentRepo) Update(_ context.Context, _ string, doc *entity.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[doc.ID]; !ok {
		return repository.ErrNotFound
	}
	f.documents[doc.ID] = copyDoc(doc)
	return nil
}

func (f *fakeDocumentRepo) CountInFlightByTemplate(_ context.Context, _ string, templateID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, doc := range f.documents {
		if doc.TemplateID == templateID && !doc.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (f *fakeDocumentRepo) FindExpired(_ context.Context, _ string, now time.Time, limit int) ([]entity.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Document
	for _, doc := range f.documents {
		if len(out) >= limit {
			break
		}
		if !doc.Status.IsTerminal() && doc.ExpiresAt.Before(now) {
			out = append(out, *copyDoc(doc))
		}
	}
	return out, nil
}

func (f *fakeDocumentRepo) Expire(_ context.Context, _ string, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return repository.ErrNotFound
	}
	doc.Status = entity.DocumentStatusExpired
	for i := range doc.Recipients {
		doc.Recipients[i].Token = nil
		doc.Recipients[i].TokenExpiresAt = nil
	}
	return nil
}

func (f *fakeDocumentRepo) SetRenderResult(_ context.Context, _ string, id primitive.ObjectID, pdfURL, pdfHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return repository.ErrNotFound
	}
	doc.PdfURL = pdfURL
	doc.PdfHash = pdfHash
	return nil
}

func (f *fakeDocumentRepo) MarkError(_ context.Context, _ string, id primitive.ObjectID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return repository.ErrNotFound
	}
	doc.Status = entity.DocumentStatusError
	doc.ErrorReason = reason
	return nil
}

// fakeQueue records sent messages.
type fakeQueue struct {
	mu       sync.Mutex
	messages []string
	delays   []time.Duration
}

func (f *fakeQueue) SendMessage(_ context.Context, body string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, body)
	f.delays = append(f.delays, delay)
	return nil
}

func (f *fakeQueue) ReceiveMessages(context.Context, int, time.Duration) ([]queue.Message, error) {
	return nil, nil
}

func (f *fakeQueue) DeleteMessage(context.Context, string) error {
	return nil
}

func (f *fakeQueue) GetAttributes(context.Context) (queue.Attributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return queue.Attributes{Ready: int64(len(f.messages))}, nil
}

// fakeAudit records emitted events.
type fakeAudit struct {
	mu     sync.Mutex
	events []entity.AuditEvent
}

func (f *fakeAudit) LogEvent(_ context.Context, _ string, event entity.AuditEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeAudit) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}
