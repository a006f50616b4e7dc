package entity

import "time"

// PdfJob is the queue payload for one document render attempt. It is
// ephemeral; the document's pdf_url/pdf_hash/status are the durable record.
type PdfJob struct {
	DocumentID    string    `json:"document_id"`
	CompanyID     string    `json:"company_id"`
	CompanyDBName string    `json:"company_db_name"`
	Attempts      int       `json:"attempts"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}
