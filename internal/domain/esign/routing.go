package esign

import (
	"strconv"
	"strings"

	"dealersign/internal/domain/entity"
)

// RoutingOutcome summarizes the effect of one evaluation pass.
type RoutingOutcome struct {
	Completed bool  // a complete action fired; remaining sequence is moot
	Activated []int // signature orders transitioned to active
	Skipped   []int // signature orders marked skipped
	Added     []int // signature orders of recipients appended by add_signer
}

// EvaluateCondition checks a rule condition against the delimiter values
// collected so far. Malformed input (missing key for comparisons, non-numeric
// operands for greater_than/less_than) evaluates to false, never to an error,
// so one bad rule cannot halt a signer's remaining rules.
func EvaluateCondition(cond entity.RuleCondition, values map[string]string) bool {
	value, present := values[cond.DelimiterKey]

	switch cond.Operator {
	case entity.OperatorIsEmpty:
		return !present || value == ""
	case entity.OperatorEquals:
		return present && value == cond.Value
	case entity.OperatorNotEquals:
		return present && value != cond.Value
	case entity.OperatorContains:
		return present && strings.Contains(value, cond.Value)
	case entity.OperatorGreaterThan, entity.OperatorLessThan:
		if !present {
			return false
		}
		left, errL := strconv.ParseFloat(strings.TrimSpace(value), 64)
		right, errR := strconv.ParseFloat(strings.TrimSpace(cond.Value), 64)
		if errL != nil || errR != nil {
			return false
		}
		if cond.Operator == entity.OperatorGreaterThan {
			return left > right
		}
		return left < right
	}
	return false
}

// ApplyRouting runs every routing rule triggered by the acting recipient, in
// declaration order, mutating the document's recipient sequence. When two
// rules touch the same target the later rule wins. A complete action stops
// rule processing immediately.
//
// Recipients are an append-only sequence: add_signer appends with the next
// free signature order, never rewrites existing entries. Token minting for
// newly active recipients is the caller's job.
func ApplyRouting(doc *entity.Document, actorOrder int, values map[string]string) RoutingOutcome {
	var out RoutingOutcome

	for _, rule := range doc.TemplateSnapshot.RoutingRules {
		if rule.TriggeredBy != actorOrder {
			continue
		}
		if !EvaluateCondition(rule.Condition, values) {
			continue
		}

		switch rule.Action.Type {
		case entity.ActionActivateSigner:
			target := doc.RecipientByOrder(rule.Action.TargetOrder)
			if target == nil || target.State == entity.RecipientStateSigned || target.State == entity.RecipientStateRejected {
				continue
			}
			// Later rule overrides an earlier skip on the same target.
			target.State = entity.RecipientStatePending
			target.Active = true
			out.Activated = appendOnce(out.Activated, target.SignatureOrder)
			out.Skipped = removeOrder(out.Skipped, target.SignatureOrder)

		case entity.ActionSkipSigner:
			target := doc.RecipientByOrder(rule.Action.TargetOrder)
			if target == nil || target.State == entity.RecipientStateSigned || target.State == entity.RecipientStateRejected {
				continue
			}
			target.State = entity.RecipientStateSkipped
			target.Active = false
			target.Token = nil
			target.TokenExpiresAt = nil
			out.Skipped = appendOnce(out.Skipped, target.SignatureOrder)
			out.Activated = removeOrder(out.Activated, target.SignatureOrder)

		case entity.ActionAddSigner:
			order := doc.NextOrder()
			doc.Recipients = append(doc.Recipients, entity.DocumentRecipient{
				Label:          rule.Action.Email,
				SignatureOrder: order,
				Email:          rule.Action.Email,
				State:          entity.RecipientStatePending,
				Active:         true,
				Added:          true,
			})
			out.Added = append(out.Added, order)

		case entity.ActionComplete:
			out.Completed = true
			return out
		}
	}

	return out
}

func appendOnce(orders []int, order int) []int {
	for _, o := range orders {
		if o == order {
			return orders
		}
	}
	return append(orders, order)
}

func removeOrder(orders []int, order int) []int {
	out := orders[:0]
	for _, o := range orders {
		if o != order {
			out = append(out, o)
		}
	}
	return out
}
