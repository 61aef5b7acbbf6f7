package models

// Intent is one of the seven fixed categorical labels for a message's
// purpose. Defined as a typed enum (per spec §9's redesign note against
// "dict everywhere" payloads) rather than a bare string.
type Intent string

const (
	IntentOrderPlacement  Intent = "order_placement"
	IntentOrderStatus     Intent = "order_status"
	IntentProductInquiry  Intent = "product_inquiry"
	IntentPolicyQuestion  Intent = "policy_question"
	IntentComplaint       Intent = "complaint"
	IntentGreeting        Intent = "greeting"
	IntentGeneralQuery    Intent = "general_query"
)

// AllIntents lists the fixed taxonomy in prompt-presentation order.
var AllIntents = []Intent{
	IntentOrderPlacement,
	IntentOrderStatus,
	IntentProductInquiry,
	IntentPolicyQuestion,
	IntentComplaint,
	IntentGreeting,
	IntentGeneralQuery,
}

// ValidIntent reports whether i is one of the fixed taxonomy members.
func ValidIntent(i Intent) bool {
	for _, known := range AllIntents {
		if known == i {
			return true
		}
	}
	return false
}

// Entities holds the entity extraction results for a classified message.
type Entities struct {
	OrderIDs     []string
	ProductNames []string
	OutletNames  []string
	Quantities   []int
}

// HasProduct reports whether at least one product entity was extracted —
// the OrderDispatcher trigger condition in spec §4.8.
func (e Entities) HasProduct() bool {
	return len(e.ProductNames) > 0
}

// IntentResult is the IntentClassifier's output for one message.
type IntentResult struct {
	Intent          Intent
	Confidence      float64 // 0.0-1.0
	Reasoning       string
	SecondaryIntent Intent // optional, zero value if absent
	Entities        Entities

	// Degraded is set when the classifier fell back to general_query
	// because the LLM timed out or returned malformed JSON (spec §4.5).
	Degraded bool
}

// OrderDispatchThreshold is the minimum confidence required, together with
// intent==order_placement and at least one product entity, to trigger the
// OrderDispatcher (spec §4.8).
const OrderDispatchThreshold = 0.85

// ShouldDispatchOrder reports whether this IntentResult satisfies the
// OrderDispatcher trigger condition in spec §4.8.
func (r IntentResult) ShouldDispatchOrder() bool {
	return r.Intent == IntentOrderPlacement &&
		r.Confidence >= OrderDispatchThreshold &&
		r.Entities.HasProduct()
}
