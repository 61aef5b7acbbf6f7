// Package intent implements the IntentClassifier contract from spec
// §4.5: tag an incoming message with one of the fixed taxonomy members,
// a confidence score, and extracted entities, by prompting the LLM for
// structured JSON and falling back to general_query on timeout or
// malformed output. Grounded on the teacher's LLM-call-then-parse-JSON
// shape in pkg/agent/base_agent.go, generalized from free-form analysis
// text to a fixed-schema classification payload.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
	"github.com/canadianpizza/orderbot-core/pkg/llm"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

// DefaultTimeout is spec §4.9's per-step deadline for the classification
// call.
const DefaultTimeout = 30 * time.Second

// Classifier implements IntentClassifier.
type Classifier struct {
	provider llm.Provider
	cache    *cache.Hierarchy
	timeout  time.Duration
}

func New(provider llm.Provider, hierarchy *cache.Hierarchy) *Classifier {
	return &Classifier{provider: provider, cache: hierarchy, timeout: DefaultTimeout}
}

// rawResult is the JSON shape requested from the LLM.
type rawResult struct {
	Intent          string   `json:"intent"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	SecondaryIntent string   `json:"secondary_intent"`
	OrderIDs        []string `json:"order_ids"`
	ProductNames    []string `json:"product_names"`
	OutletNames     []string `json:"outlet_names"`
	Quantities      []int    `json:"quantities"`
}

// degradedResult is the fallback IntentResult used on timeout or
// malformed JSON (spec §4.5's error condition), never surfaced as a Go
// error since intent classification failure must not fail the request.
func degradedResult() models.IntentResult {
	return models.IntentResult{
		Intent:     models.IntentGeneralQuery,
		Confidence: 0.0,
		Degraded:   true,
	}
}

// Classify tags message with an intent, consulting the L3 context-free
// cache first (spec §4.9: "classified: IntentClassifier (L3 cache used
// within)").
func (c *Classifier) Classify(ctx context.Context, message string, recentTurns []cache.ConversationTurn) (models.IntentResult, error) {
	normalized := cache.NormalizeText(message)
	key := cache.L3Key(normalized)

	var cached models.IntentResult
	if c.cache != nil {
		if hit, err := c.cache.LookupL3(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.classifyLive(ctx, message, recentTurns)
	if err != nil {
		return degradedResult(), nil
	}

	if c.cache != nil {
		_ = c.cache.StoreL3(ctx, key, result)
	}
	return result, nil
}

func (c *Classifier) classifyLive(ctx context.Context, message string, recentTurns []cache.ConversationTurn) (models.IntentResult, error) {
	system := buildSystemPrompt()
	prompt := buildUserPrompt(message, recentTurns)

	resp, err := c.provider.Chat(ctx, system, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return models.IntentResult{}, fmt.Errorf("intent: llm call failed: %w", err)
	}

	var raw rawResult
	if err := json.Unmarshal(extractJSON(resp.Content), &raw); err != nil {
		return models.IntentResult{}, fmt.Errorf("intent: malformed classification payload: %w", err)
	}

	result := models.IntentResult{
		Intent:          models.Intent(raw.Intent),
		Confidence:      clampConfidence(raw.Confidence),
		Reasoning:       raw.Reasoning,
		SecondaryIntent: models.Intent(raw.SecondaryIntent),
		Entities: models.Entities{
			OrderIDs:     raw.OrderIDs,
			ProductNames: raw.ProductNames,
			OutletNames:  raw.OutletNames,
			Quantities:   raw.Quantities,
		},
	}
	if !models.ValidIntent(result.Intent) {
		return models.IntentResult{}, fmt.Errorf("intent: unknown label %q", raw.Intent)
	}
	return result, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// extractJSON trims any prose the model wrapped around the JSON object,
// a defensive measure against chatty completions that ignore the
// "respond with JSON only" instruction.
func extractJSON(text string) []byte {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return []byte(text)
	}
	return []byte(text[start : end+1])
}

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are an intent classifier for a B2B food-service ordering chat assistant. ")
	b.WriteString("Classify the user's latest message into exactly one of the following intents:\n")
	for _, i := range models.AllIntents {
		b.WriteString("- ")
		b.WriteString(string(i))
		b.WriteString(": ")
		b.WriteString(intentDefinition(i))
		b.WriteString("\n")
	}
	b.WriteString("\nDisambiguation rules:\n")
	b.WriteString("- A question about a specific product's price, availability, or specs is product_inquiry.\n")
	b.WriteString("- A general policy question, including bulk-pricing questions, is policy_question.\n")
	b.WriteString("- Identity-of-business signals (company name, outlet) combined with supply language in later turns indicates order_placement.\n")
	b.WriteString("\nRespond with a single JSON object only, no prose, matching this shape: ")
	b.WriteString(`{"intent": "...", "confidence": 0.0-1.0, "reasoning": "...", "secondary_intent": "", "order_ids": [], "product_names": [], "outlet_names": [], "quantities": []}`)
	return b.String()
}

func intentDefinition(i models.Intent) string {
	switch i {
	case models.IntentOrderPlacement:
		return "the user wants to place or confirm an order"
	case models.IntentOrderStatus:
		return "the user is asking about the status of an existing order"
	case models.IntentProductInquiry:
		return "the user is asking about a specific product"
	case models.IntentPolicyQuestion:
		return "the user is asking about general policy, pricing tiers, or terms"
	case models.IntentComplaint:
		return "the user is expressing dissatisfaction or reporting a problem"
	case models.IntentGreeting:
		return "the user is greeting or making small talk"
	default:
		return "none of the above applies"
	}
}

func buildUserPrompt(message string, recentTurns []cache.ConversationTurn) string {
	var b strings.Builder
	if len(recentTurns) > 0 {
		b.WriteString("Recent conversation turns:\n")
		start := 0
		if len(recentTurns) > 3 {
			start = len(recentTurns) - 3
		}
		for _, t := range recentTurns[start:] {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User message: %s", message)
	return b.String()
}
