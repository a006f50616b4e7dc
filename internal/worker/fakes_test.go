package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"dealersign/internal/domain/entity"
	"dealersign/internal/infrastructure/mailer"
	"dealersign/internal/infrastructure/pdfclient"
	"dealersign/internal/infrastructure/queue"
	"dealersign/internal/infrastructure/repository"
)

// fakeCompanyRepo serves a fixed company list and per-company mail providers.
type fakeCompanyRepo struct {
	companies []entity.Company
	providers map[int64]*entity.MailProvider
	listErr   error
}

func (f *fakeCompanyRepo) ListActive(context.Context) ([]entity.Company, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.companies, nil
}

func (f *fakeCompanyRepo) ActiveMailProvider(_ context.Context, companyID int64) (*entity.MailProvider, error) {
	return f.providers[companyID], nil
}

// fakeDocumentStore keys documents by tenant db name. findErr poisons a single
// tenant and expireErr a single document, so failure isolation can be
// exercised.
type fakeDocumentStore struct {
	mu        sync.Mutex
	byDB      map[string]map[primitive.ObjectID]*entity.Document
	findErr   map[string]error
	expireErr map[primitive.ObjectID]error
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		byDB:      map[string]map[primitive.ObjectID]*entity.Document{},
		findErr:   map[string]error{},
		expireErr: map[primitive.ObjectID]error{},
	}
}

func (f *fakeDocumentStore) put(dbName string, doc *entity.Document) primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if f.byDB[dbName] == nil {
		f.byDB[dbName] = map[primitive.ObjectID]*entity.Document{}
	}
	f.byDB[dbName][doc.ID] = doc
	return doc.ID
}

func (f *fakeDocumentStore) get(dbName string, id primitive.ObjectID) *entity.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byDB[dbName][id]
}

func (f *fakeDocumentStore) Create(_ context.Context, dbName string, doc *entity.Document) error {
	f.put(dbName, doc)
	return nil
}

func (f *fakeDocumentStore) FindByID(_ context.Context, dbName string, id primitive.ObjectID) (*entity.Document, error) {
	doc := f.get(dbName, id)
	if doc == nil {
		return nil, repository.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocumentStore) Update(_ context.Context, dbName string, doc *entity.Document) error {
	if f.get(dbName, doc.ID) == nil {
		return repository.ErrNotFound
	}
	f.put(dbName, doc)
	return nil
}

func (f *fakeDocumentStore) CountInFlightByTemplate(_ context.Context, dbName string, templateID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, doc := range f.byDB[dbName] {
		if doc.TemplateID == templateID && !doc.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (f *fakeDocumentStore) FindExpired(_ context.Context, dbName string, now time.Time, limit int) ([]entity.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.findErr[dbName]; err != nil {
		return nil, err
	}
	var out []entity.Document
	for _, doc := range f.byDB[dbName] {
		if len(out) >= limit {
			break
		}
		if !doc.Status.IsTerminal() && doc.ExpiresAt.Before(now) {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) Expire(_ context.Context, dbName string, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.expireErr[id]; err != nil {
		return err
	}
	doc := f.byDB[dbName][id]
	if doc == nil {
		return repository.ErrNotFound
	}
	doc.Status = entity.DocumentStatusExpired
	for i := range doc.Recipients {
		doc.Recipients[i].Token = nil
		doc.Recipients[i].TokenExpiresAt = nil
	}
	return nil
}

func (f *fakeDocumentStore) SetRenderResult(_ context.Context, dbName string, id primitive.ObjectID, pdfURL, pdfHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.byDB[dbName][id]
	if doc == nil {
		return repository.ErrNotFound
	}
	doc.PdfURL = pdfURL
	doc.PdfHash = pdfHash
	return nil
}

func (f *fakeDocumentStore) MarkError(_ context.Context, dbName string, id primitive.ObjectID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.byDB[dbName][id]
	if doc == nil {
		return repository.ErrNotFound
	}
	doc.Status = entity.DocumentStatusError
	doc.ErrorReason = reason
	return nil
}

// fakeTemplateStore holds templates as given, keyed by tenant db name.
type fakeTemplateStore struct {
	mu   sync.Mutex
	byDB map[string]map[primitive.ObjectID]*entity.Template
}

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{byDB: map[string]map[primitive.ObjectID]*entity.Template{}}
}

func (f *fakeTemplateStore) Create(_ context.Context, dbName string, tpl *entity.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tpl.ID.IsZero() {
		tpl.ID = primitive.NewObjectID()
	}
	if f.byDB[dbName] == nil {
		f.byDB[dbName] = map[primitive.ObjectID]*entity.Template{}
	}
	f.byDB[dbName][tpl.ID] = tpl
	return nil
}

func (f *fakeTemplateStore) Update(_ context.Context, dbName string, tpl *entity.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byDB[dbName][tpl.ID] == nil {
		return repository.ErrNotFound
	}
	f.byDB[dbName][tpl.ID] = tpl
	return nil
}

func (f *fakeTemplateStore) FindByID(_ context.Context, dbName string, id primitive.ObjectID) (*entity.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl := f.byDB[dbName][id]
	if tpl == nil {
		return nil, repository.ErrNotFound
	}
	return tpl, nil
}

func (f *fakeTemplateStore) SetStatus(_ context.Context, dbName string, id primitive.ObjectID, status entity.TemplateStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl := f.byDB[dbName][id]
	if tpl == nil {
		return repository.ErrNotFound
	}
	tpl.Status = status
	return nil
}

func (f *fakeTemplateStore) SoftDelete(_ context.Context, dbName string, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl := f.byDB[dbName][id]
	if tpl == nil {
		return repository.ErrNotFound
	}
	tpl.Deleted = true
	return nil
}

// fakeSender records deliveries and fails addresses listed in failTo.
type fakeSender struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]bool
}

func (f *fakeSender) Send(_ context.Context, _ *entity.MailProvider, msg *mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return errors.New("smtp relay refused")
	}
	f.sent = append(f.sent, *msg)
	return nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

// fakeSink records audit events.
type fakeSink struct {
	mu     sync.Mutex
	events []entity.AuditEvent
}

func (f *fakeSink) LogEvent(_ context.Context, _ string, event entity.AuditEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeSink) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

// memQueue is an in-memory Queue. Delayed sends go straight to the ready list
// with the delay recorded, so retry tests run without waiting. The ops slice
// records send/delete ordering.
type memQueue struct {
	mu       sync.Mutex
	ready    []string
	inflight map[string]string
	delays   []time.Duration
	ops      []string
	seq      int
}

func newMemQueue() *memQueue {
	return &memQueue{inflight: map[string]string{}}
}

func (q *memQueue) SendMessage(_ context.Context, body string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, body)
	q.delays = append(q.delays, delay)
	q.ops = append(q.ops, "send")
	return nil
}

func (q *memQueue) ReceiveMessages(_ context.Context, max int, _ time.Duration) ([]queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Message
	for len(out) < max && len(q.ready) > 0 {
		body := q.ready[0]
		q.ready = q.ready[1:]
		q.seq++
		receipt := fmt.Sprintf("receipt-%d", q.seq)
		q.inflight[receipt] = body
		out = append(out, queue.Message{Body: body, ReceiptHandle: receipt})
	}
	return out, nil
}

func (q *memQueue) DeleteMessage(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, receiptHandle)
	q.ops = append(q.ops, "delete")
	return nil
}

func (q *memQueue) GetAttributes(context.Context) (queue.Attributes, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queue.Attributes{
		Ready:    int64(len(q.ready)),
		InFlight: int64(len(q.inflight)),
	}, nil
}

func (q *memQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready) + len(q.inflight)
}

// fakeRenderer fails its first failures calls, then succeeds.
type fakeRenderer struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *fakeRenderer) GenerateSignedPdf(_ context.Context, documentID string, _ pdfclient.RenderContext) (*pdfclient.RenderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("render service unavailable")
	}
	return &pdfclient.RenderResult{
		PdfURL:  "https://files.dealersign.example/" + documentID + ".pdf",
		PdfHash: "sha256:" + documentID,
	}, nil
}

func (f *fakeRenderer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
