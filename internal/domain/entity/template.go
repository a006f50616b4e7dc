package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TemplateStatus string

const (
	TemplateStatusDraft  TemplateStatus = "draft"
	TemplateStatusActive TemplateStatus = "active"
)

// SignatureType defines how a template distributes to its recipients.
type SignatureType string

const (
	SignatureTypeSingle    SignatureType = "single"
	SignatureTypeMultiple  SignatureType = "multiple"
	SignatureTypeHierarchy SignatureType = "hierarchy"
	SignatureTypeSendToAll SignatureType = "send_to_all"
)

type DelimiterType string

const (
	DelimiterTypeText      DelimiterType = "text"
	DelimiterTypeEmail     DelimiterType = "email"
	DelimiterTypePhone     DelimiterType = "phone"
	DelimiterTypeDate      DelimiterType = "date"
	DelimiterTypeNumber    DelimiterType = "number"
	DelimiterTypeSignature DelimiterType = "signature"
	DelimiterTypeInitial   DelimiterType = "initial"
)

// Delimiter is a declared {{key}} placeholder in the template HTML. Keys that
// disappear from the HTML are marked unused instead of deleted so their
// type/assignment survive template editing.
type Delimiter struct {
	Key          string        `bson:"key" json:"key"`
	Type         DelimiterType `bson:"type" json:"type"`
	Required     bool          `bson:"required" json:"required"`
	DefaultValue string        `bson:"default_value,omitempty" json:"default_value,omitempty"`
	AssignedTo   *int          `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"` // recipient signature order
	Unused       bool          `bson:"unused" json:"unused"`
}

type RecipientType string

const (
	RecipientTypeIndividual RecipientType = "individual"
	RecipientTypeGroup      RecipientType = "group"
)

type SigningMode string

const (
	SigningModeRemote   SigningMode = "remote"
	SigningModeInPerson SigningMode = "in_person"
)

// Recipient is a position in the signing sequence, identified by its
// signature order (unique within a template).
type Recipient struct {
	Label          string        `bson:"label" json:"label"`
	SignatureOrder int           `bson:"signature_order" json:"signature_order"`
	RecipientType  RecipientType `bson:"recipient_type" json:"recipient_type"`
	SigningGroupID string        `bson:"signing_group_id,omitempty" json:"signing_group_id,omitempty"`
	SignatureType  SigningMode   `bson:"signature_type" json:"signature_type"`
}

type RuleOperator string

const (
	OperatorEquals      RuleOperator = "equals"
	OperatorNotEquals   RuleOperator = "not_equals"
	OperatorGreaterThan RuleOperator = "greater_than"
	OperatorLessThan    RuleOperator = "less_than"
	OperatorContains    RuleOperator = "contains"
	OperatorIsEmpty     RuleOperator = "is_empty"
)

type RuleActionType string

const (
	ActionActivateSigner RuleActionType = "activate_signer"
	ActionSkipSigner     RuleActionType = "skip_signer"
	ActionAddSigner      RuleActionType = "add_signer"
	ActionComplete       RuleActionType = "complete"
)

type RuleCondition struct {
	DelimiterKey string       `bson:"delimiter_key" json:"delimiter_key"`
	Operator     RuleOperator `bson:"operator" json:"operator"`
	Value        string       `bson:"value,omitempty" json:"value,omitempty"`
}

type RuleAction struct {
	Type        RuleActionType `bson:"type" json:"type"`
	TargetOrder int            `bson:"target_order,omitempty" json:"target_order,omitempty"`
	Email       string         `bson:"email,omitempty" json:"email,omitempty"`
}

// RoutingRule alters the signer sequence after the triggering recipient acts.
type RoutingRule struct {
	TriggeredBy int           `bson:"triggered_by" json:"triggered_by"`
	Condition   RuleCondition `bson:"condition" json:"condition"`
	Action      RuleAction    `bson:"action" json:"action"`
}

type MFAChannel string

const (
	MFAChannelEmail MFAChannel = "email"
	MFAChannelSMS   MFAChannel = "sms"
	MFAChannelBoth  MFAChannel = "both"
)

type MFAConfig struct {
	Enabled      bool       `bson:"enabled" json:"enabled"`
	Channel      MFAChannel `bson:"channel,omitempty" json:"channel,omitempty"`
	OtpExpiryMin int        `bson:"otp_expiry_min,omitempty" json:"otp_expiry_min,omitempty"`
}

type LinkExpiryConfig struct {
	Value            int    `bson:"value" json:"value"`
	Unit             string `bson:"unit" json:"unit"` // hours, days, weeks
	GracePeriodHours *int   `bson:"grace_period_hours,omitempty" json:"grace_period_hours,omitempty"`
}

type NotificationConfig struct {
	Subject        string   `bson:"subject,omitempty" json:"subject,omitempty"`
	Body           string   `bson:"body,omitempty" json:"body,omitempty"`
	SMSTemplate    string   `bson:"sms_template,omitempty" json:"sms_template,omitempty"`
	CcEmails       []string `bson:"cc_emails,omitempty" json:"cc_emails,omitempty"`
	NotifyOnExpiry bool     `bson:"notify_on_expiry" json:"notify_on_expiry"`
}

// Template is the authored signing template. Owned by exactly one company;
// documents are instantiated from an immutable snapshot at distribution time.
type Template struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CompanyID     string             `bson:"company_id" json:"company_id"`
	Name          string             `bson:"name" json:"name"`
	HTMLBody      string             `bson:"html_body" json:"html_body"`
	SignatureType SignatureType      `bson:"signature_type" json:"signature_type"`
	Delimiters    []Delimiter        `bson:"delimiters" json:"delimiters"`
	Recipients    []Recipient        `bson:"recipients" json:"recipients"`
	MFA           MFAConfig          `bson:"mfa" json:"mfa"`
	LinkExpiry    LinkExpiryConfig   `bson:"link_expiry" json:"link_expiry"`
	Notification  NotificationConfig `bson:"notification" json:"notification"`
	RoutingRules  []RoutingRule      `bson:"routing_rules,omitempty" json:"routing_rules,omitempty"`
	Version       int                `bson:"version" json:"version"`
	Status        TemplateStatus     `bson:"status" json:"status"`
	Deleted       bool               `bson:"deleted" json:"deleted"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// Clone deep-copies the template so a document snapshot cannot alias the
// live template's slices.
func (t Template) Clone() Template {
	out := t
	out.Delimiters = append([]Delimiter(nil), t.Delimiters...)
	out.Recipients = append([]Recipient(nil), t.Recipients...)
	out.RoutingRules = append([]RoutingRule(nil), t.RoutingRules...)
	out.Notification.CcEmails = append([]string(nil), t.Notification.CcEmails...)
	for i := range out.Delimiters {
		if t.Delimiters[i].AssignedTo != nil {
			v := *t.Delimiters[i].AssignedTo
			out.Delimiters[i].AssignedTo = &v
		}
	}
	if t.LinkExpiry.GracePeriodHours != nil {
		v := *t.LinkExpiry.GracePeriodHours
		out.LinkExpiry.GracePeriodHours = &v
	}
	return out
}

// RecipientByOrder returns the recipient with the given signature order.
func (t Template) RecipientByOrder(order int) (Recipient, bool) {
	for _, r := range t.Recipients {
		if r.SignatureOrder == order {
			return r, true
		}
	}
	return Recipient{}, false
}

// DelimiterByKey returns the declared delimiter for a key.
func (t Template) DelimiterByKey(key string) (Delimiter, bool) {
	for _, d := range t.Delimiters {
		if d.Key == key {
			return d, true
		}
	}
	return Delimiter{}, false
}
