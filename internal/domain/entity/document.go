package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DocumentStatus string

const (
	DocumentStatusDistributed     DocumentStatus = "distributed"
	DocumentStatusOpened          DocumentStatus = "opened"
	DocumentStatusPartiallySigned DocumentStatus = "partially_signed"
	DocumentStatusCompleted       DocumentStatus = "completed"
	DocumentStatusRejected        DocumentStatus = "rejected"
	DocumentStatusExpired         DocumentStatus = "expired"
	DocumentStatusError           DocumentStatus = "error"
)

// IsTerminal reports whether no further signer action can change the document.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentStatusCompleted, DocumentStatusRejected, DocumentStatusExpired, DocumentStatusError:
		return true
	}
	return false
}

// SweepableStatuses are the document states the expiry sweeper reconciles.
var SweepableStatuses = []DocumentStatus{
	DocumentStatusDistributed,
	DocumentStatusOpened,
	DocumentStatusPartiallySigned,
}

type RecipientState string

const (
	RecipientStatePending  RecipientState = "pending"
	RecipientStateSigned   RecipientState = "signed"
	RecipientStateRejected RecipientState = "rejected"
	RecipientStateSkipped  RecipientState = "skipped"
)

// Satisfied reports whether this recipient no longer blocks completion.
// Skipped recipients count as satisfied without a signature.
func (s RecipientState) Satisfied() bool {
	return s == RecipientStateSigned || s == RecipientStateSkipped
}

// DocumentRecipient is the per-recipient signing state of one document.
// Added is set for recipients appended by an add_signer routing action.
type DocumentRecipient struct {
	Label          string         `bson:"label" json:"label"`
	SignatureOrder int            `bson:"signature_order" json:"signature_order"`
	Email          string         `bson:"email,omitempty" json:"email,omitempty"`
	State          RecipientState `bson:"state" json:"state"`
	Active         bool           `bson:"active" json:"active"`
	Token          *string        `bson:"token" json:"token,omitempty"`
	TokenExpiresAt *time.Time     `bson:"token_expires_at" json:"token_expires_at,omitempty"`
	SignedAt       *time.Time     `bson:"signed_at,omitempty" json:"signed_at,omitempty"`
	Added          bool           `bson:"added,omitempty" json:"added,omitempty"`
}

// RecipientContact supplies the address for one template recipient at
// distribution time. Templates are reusable and carry roles, not people;
// the actual signer contacts arrive with each distribution.
type RecipientContact struct {
	SignatureOrder int    `json:"signature_order"`
	Email          string `json:"email"`
}

// Document is a distributed instance of an activated template. The snapshot is
// copied at distribution time; later template edits never reach it.
type Document struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	CompanyID        string              `bson:"company_id" json:"company_id"`
	TemplateID       primitive.ObjectID  `bson:"template_id" json:"template_id"`
	TemplateVersion  int                 `bson:"template_version" json:"template_version"`
	TemplateSnapshot Template            `bson:"template_snapshot" json:"template_snapshot"`
	Recipients       []DocumentRecipient `bson:"recipients" json:"recipients"`
	Values           map[string]string   `bson:"values,omitempty" json:"values,omitempty"`
	Status           DocumentStatus      `bson:"status" json:"status"`
	ExpiresAt        time.Time           `bson:"expires_at" json:"expires_at"`
	PdfURL           string              `bson:"pdf_url,omitempty" json:"pdf_url,omitempty"`
	PdfHash          string              `bson:"pdf_hash,omitempty" json:"pdf_hash,omitempty"`
	ErrorReason      string              `bson:"error_reason,omitempty" json:"error_reason,omitempty"`
	CreatedAt        time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `bson:"updated_at" json:"updated_at"`
}

// RecipientByOrder returns a pointer into the recipients slice, or nil.
func (d *Document) RecipientByOrder(order int) *DocumentRecipient {
	for i := range d.Recipients {
		if d.Recipients[i].SignatureOrder == order {
			return &d.Recipients[i]
		}
	}
	return nil
}

// PendingRecipients returns recipients still awaiting action (not signed,
// rejected or skipped).
func (d *Document) PendingRecipients() []DocumentRecipient {
	var out []DocumentRecipient
	for _, r := range d.Recipients {
		if r.State == RecipientStatePending {
			out = append(out, r)
		}
	}
	return out
}

// AllSatisfied reports whether every recipient is signed or skipped.
func (d *Document) AllSatisfied() bool {
	for _, r := range d.Recipients {
		if !r.State.Satisfied() {
			return false
		}
	}
	return len(d.Recipients) > 0
}

// NextOrder returns a signature order one past the highest in use. Routing's
// add_signer inserts with this so orders stay stable and append-only.
func (d *Document) NextOrder() int {
	max := 0
	for _, r := range d.Recipients {
		if r.SignatureOrder > max {
			max = r.SignatureOrder
		}
	}
	return max + 1
}
