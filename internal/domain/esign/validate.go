package esign

import (
	"fmt"
	"net/mail"
	"strings"

	"dealersign/internal/domain/entity"
)

// ValidationError is one activation-blocking problem. Validation collects
// every error instead of stopping at the first, so a template can be fixed in
// one pass.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const maxSMSLength = 160

var validOperators = map[entity.RuleOperator]bool{
	entity.OperatorEquals:      true,
	entity.OperatorNotEquals:   true,
	entity.OperatorGreaterThan: true,
	entity.OperatorLessThan:    true,
	entity.OperatorContains:    true,
	entity.OperatorIsEmpty:     true,
}

// ValidateTemplate runs every activation rule and returns the full error
// list. An empty result means the template may transition to active.
func ValidateTemplate(t entity.Template) []ValidationError {
	var errs []ValidationError
	add := func(field, code, message string) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: message})
	}

	// 1. HTML body
	if strings.TrimSpace(t.HTMLBody) == "" {
		add("html_body", "empty_body", "template HTML body is empty")
	}

	// 2. At least one delimiter
	if len(t.Delimiters) == 0 {
		add("delimiters", "no_delimiters", "template declares no delimiters")
	}

	// 3. Recipient cardinality per signature type
	switch t.SignatureType {
	case entity.SignatureTypeSingle:
		if len(t.Recipients) != 1 {
			add("recipients", "recipient_count", "signature type single requires exactly one recipient")
		}
	case entity.SignatureTypeMultiple, entity.SignatureTypeHierarchy, entity.SignatureTypeSendToAll:
		if len(t.Recipients) < 2 {
			add("recipients", "recipient_count", fmt.Sprintf("signature type %s requires at least two recipients", t.SignatureType))
		}
	default:
		add("signature_type", "invalid_signature_type", fmt.Sprintf("unknown signature type %q", t.SignatureType))
	}
	if len(t.Recipients) == 0 {
		add("recipients", "no_recipients", "template declares no recipients")
	}

	// 4. Per-recipient structural checks
	orders := make(map[int]bool, len(t.Recipients))
	for i, r := range t.Recipients {
		field := fmt.Sprintf("recipients[%d]", i)
		if strings.TrimSpace(r.Label) == "" {
			add(field, "missing_label", "recipient label is required")
		}
		if r.SignatureOrder <= 0 {
			add(field, "missing_order", "recipient signature_order must be a positive integer")
		} else if orders[r.SignatureOrder] {
			add(field, "duplicate_order", fmt.Sprintf("signature_order %d is used more than once", r.SignatureOrder))
		}
		orders[r.SignatureOrder] = true

		switch r.RecipientType {
		case entity.RecipientTypeIndividual:
		case entity.RecipientTypeGroup:
			if r.SigningGroupID == "" {
				add(field, "missing_signing_group", "group recipients require a signing_group_id")
			}
		default:
			add(field, "invalid_recipient_type", fmt.Sprintf("unknown recipient type %q", r.RecipientType))
		}

		switch r.SignatureType {
		case entity.SigningModeRemote, entity.SigningModeInPerson:
		default:
			add(field, "invalid_signing_mode", fmt.Sprintf("unknown signature type %q", r.SignatureType))
		}
	}

	// 5. MFA configuration
	if t.MFA.Enabled {
		switch t.MFA.Channel {
		case entity.MFAChannelEmail, entity.MFAChannelSMS, entity.MFAChannelBoth:
		default:
			add("mfa.channel", "invalid_mfa_channel", "MFA channel must be email, sms or both")
		}
		if t.MFA.OtpExpiryMin < 1 || t.MFA.OtpExpiryMin > 60 {
			add("mfa.otp_expiry_min", "invalid_otp_expiry", "OTP expiry must be between 1 and 60 minutes")
		}
	}

	// 6. Link expiry
	if t.LinkExpiry.Value < 1 {
		add("link_expiry.value", "invalid_expiry_value", "link expiry value must be at least 1")
	}
	switch t.LinkExpiry.Unit {
	case "hours", "days", "weeks":
	default:
		add("link_expiry.unit", "invalid_expiry_unit", "link expiry unit must be hours, days or weeks")
	}
	if g := t.LinkExpiry.GracePeriodHours; g != nil && (*g < 0 || *g > 168) {
		add("link_expiry.grace_period_hours", "invalid_grace_period", "grace period must be between 0 and 168 hours")
	}

	// 7. Notification config: cc addresses and SMS length bounds
	for i, cc := range t.Notification.CcEmails {
		if _, err := mail.ParseAddress(cc); err != nil {
			add(fmt.Sprintf("notification.cc_emails[%d]", i), "invalid_email", fmt.Sprintf("%q is not a valid email address", cc))
		}
	}
	if sms := t.Notification.SMSTemplate; sms != "" {
		if len(sms) > maxSMSLength {
			add("notification.sms_template", "sms_too_long", fmt.Sprintf("SMS template is %d characters, limit is %d", len(sms), maxSMSLength))
		}
		if stripped := StripDelimiters(sms); len(stripped) > maxSMSLength {
			add("notification.sms_template", "sms_too_long_stripped", fmt.Sprintf("SMS template is %d characters after removing placeholders, limit is %d", len(stripped), maxSMSLength))
		}
	}

	// 8. Notification delimiter references
	errs = append(errs, ValidateNotificationDelimiters(t.Notification, t.Delimiters)...)

	// 9. At least one required delimiter
	hasRequired := false
	for _, d := range t.Delimiters {
		if d.Required && !d.Unused {
			hasRequired = true
			break
		}
	}
	if len(t.Delimiters) > 0 && !hasRequired {
		add("delimiters", "no_required_delimiter", "at least one delimiter must be marked required")
	}

	// 10. Routing rules
	errs = append(errs, validateRoutingRules(t, orders)...)

	return errs
}

func validateRoutingRules(t entity.Template, orders map[int]bool) []ValidationError {
	var errs []ValidationError
	add := func(field, code, message string) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: message})
	}

	for i, rule := range t.RoutingRules {
		field := fmt.Sprintf("routing_rules[%d]", i)

		if !orders[rule.TriggeredBy] {
			add(field+".triggered_by", "unknown_recipient", fmt.Sprintf("triggered_by %d does not match any recipient", rule.TriggeredBy))
		}

		if _, ok := t.DelimiterByKey(rule.Condition.DelimiterKey); !ok {
			add(field+".condition.delimiter_key", "unknown_delimiter", fmt.Sprintf("delimiter %q is not declared", rule.Condition.DelimiterKey))
		}
		if !validOperators[rule.Condition.Operator] {
			add(field+".condition.operator", "invalid_operator", fmt.Sprintf("unknown operator %q", rule.Condition.Operator))
		}
		if rule.Condition.Operator != entity.OperatorIsEmpty && rule.Condition.Value == "" {
			add(field+".condition.value", "missing_value", "condition value is required unless operator is is_empty")
		}

		switch rule.Action.Type {
		case entity.ActionActivateSigner, entity.ActionSkipSigner:
			if !orders[rule.Action.TargetOrder] {
				add(field+".action.target_order", "unknown_recipient", fmt.Sprintf("target_order %d does not match any recipient", rule.Action.TargetOrder))
			}
		case entity.ActionAddSigner:
			if _, err := mail.ParseAddress(rule.Action.Email); err != nil {
				add(field+".action.email", "invalid_email", "add_signer actions require a valid email address")
			}
		case entity.ActionComplete:
		default:
			add(field+".action.type", "invalid_action", fmt.Sprintf("unknown action type %q", rule.Action.Type))
		}
	}

	return errs
}
