// Package esign holds the pure template/document rules of the signing core:
// delimiter scanning and substitution, the activation validator and the
// routing rule evaluator. Nothing here touches storage or the network.
package esign

import (
	"fmt"
	"regexp"
	"strings"

	"dealersign/internal/domain/entity"
)

var delimiterPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

// ExtractKeys returns the distinct {{key}} names in html, in first-occurrence
// order.
func ExtractKeys(html string) []string {
	matches := delimiterPattern.FindAllStringSubmatch(html, -1)
	seen := make(map[string]bool, len(matches))
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// ScanAndPopulateDelimiters reconciles the declared delimiter list against the
// placeholders actually present in html. Existing declarations keep their
// type, required flag, default and assignment and their prior relative order;
// keys no longer present are marked unused but retained. Newly discovered
// keys append as text delimiters in first-occurrence order.
func ScanAndPopulateDelimiters(html string, existing []entity.Delimiter) []entity.Delimiter {
	found := make(map[string]bool)
	for _, key := range ExtractKeys(html) {
		found[key] = true
	}

	out := make([]entity.Delimiter, 0, len(existing))
	declared := make(map[string]bool, len(existing))
	for _, d := range existing {
		declared[d.Key] = true
		d.Unused = !found[d.Key]
		out = append(out, d)
	}

	for _, key := range ExtractKeys(html) {
		if declared[key] {
			continue
		}
		out = append(out, entity.Delimiter{
			Key:  key,
			Type: entity.DelimiterTypeText,
		})
	}

	return out
}

// ValidateNotificationDelimiters checks that every {{key}} referenced in the
// notification subject, body and SMS templates resolves to a declared,
// non-unused delimiter. One error per undeclared reference.
func ValidateNotificationDelimiters(cfg entity.NotificationConfig, delimiters []entity.Delimiter) []ValidationError {
	usable := make(map[string]bool, len(delimiters))
	for _, d := range delimiters {
		if !d.Unused {
			usable[d.Key] = true
		}
	}

	var errs []ValidationError
	check := func(field, text string) {
		reported := make(map[string]bool)
		for _, key := range ExtractKeys(text) {
			if usable[key] || reported[key] {
				continue
			}
			reported[key] = true
			errs = append(errs, ValidationError{
				Field:   field,
				Code:    "undeclared_delimiter",
				Message: fmt.Sprintf("notification %s references undeclared delimiter {{%s}}", field, key),
			})
		}
	}
	check("subject", cfg.Subject)
	check("body", cfg.Body)
	check("sms_template", cfg.SMSTemplate)

	return errs
}

// RenderPreview substitutes every delimiter occurrence in html. Per key the
// value is, in priority order: the supplied sample, the delimiter's default,
// or a bracketed [key] placeholder. All occurrences are replaced.
func RenderPreview(html string, delimiters []entity.Delimiter, samples map[string]string) string {
	out := html
	for _, d := range delimiters {
		value, ok := samples[d.Key]
		if !ok || value == "" {
			value = d.DefaultValue
		}
		if value == "" {
			value = "[" + d.Key + "]"
		}
		out = strings.ReplaceAll(out, "{{"+d.Key+"}}", value)
	}
	return out
}

// StripDelimiters removes every {{key}} placeholder from s. Used for the SMS
// length bound, which applies to the fixed text only.
func StripDelimiters(s string) string {
	return delimiterPattern.ReplaceAllString(s, "")
}
