// Package dispatch implements the OrderDispatcher contract from spec
// §4.8: given an order_placement classification, run a fixed five-stage
// pipeline (semantic product match, LLM order parsing, inventory check,
// delivery scheduling, finance preparation) and return the resulting
// AgentTimeline, preserving partial progress on any stage failure.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/canadianpizza/orderbot-core/pkg/llm"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

// NoMatchMessage is returned to the caller when stage 1 finds zero
// product matches, per spec §4.8's abort condition.
const NoMatchMessage = "no products matched your description"

// Dispatcher implements OrderDispatcher.
type Dispatcher struct {
	catalog  ProductCatalog
	provider llm.Provider
}

func New(catalog ProductCatalog, provider llm.Provider) *Dispatcher {
	return &Dispatcher{catalog: catalog, provider: provider}
}

// Result is Dispatch's return value: the timeline built so far, plus an
// abort message set only when stage 1 yields zero matches.
type Result struct {
	Timeline models.AgentTimeline
	Aborted  bool
	Message  string
}

// lineItem is the structured shape requested from the LLM order-parsing
// stage.
type lineItem struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	SKU         string `json:"sku"`
}

// Dispatch runs the five-stage pipeline for a classified order_placement
// message. Entities carries the product/quantity mentions the
// IntentClassifier already extracted (spec §4.5's Entities).
func (d *Dispatcher) Dispatch(ctx context.Context, message string, entities models.Entities, outletID, sessionID string) Result {
	var timeline models.AgentTimeline

	matches, matched := d.matchProducts(ctx, &timeline, entities)
	if !matched {
		if n := len(timeline.Stages); n > 0 && timeline.Stages[n-1].Status == models.StageStatusError {
			// A failed catalog lookup is recorded as an error stage, not
			// reported to the user as a zero-match result.
			return Result{Timeline: timeline}
		}
		return Result{Timeline: timeline, Aborted: true, Message: NoMatchMessage}
	}

	items, ok := d.parseOrder(ctx, &timeline, message, matches)
	if !ok {
		// Stage 1's progress is preserved even though stage 2 failed;
		// downstream stages never run without parsed line items.
		return Result{Timeline: timeline}
	}

	d.acknowledgeInventory(&timeline, items)
	d.acknowledgeDelivery(&timeline, outletID)
	d.acknowledgeFinance(&timeline, items)

	return Result{Timeline: timeline}
}

func (d *Dispatcher) matchProducts(ctx context.Context, timeline *models.AgentTimeline, entities models.Entities) ([]ProductMatch, bool) {
	started := time.Now()
	description := strings.Join(entities.ProductNames, ", ")

	matches, err := d.catalog.Match(ctx, description, 5)
	if err != nil {
		timeline.Append(models.AgentStageRecord{
			StageName:   models.StageSemanticProductMatch,
			Status:      models.StageStatusError,
			StartedAt:   started,
			CompletedAt: time.Now(),
			Summary:     fmt.Sprintf("product match failed: %v", err),
		})
		return nil, false
	}

	if len(matches) == 0 {
		timeline.Append(models.AgentStageRecord{
			StageName:   models.StageSemanticProductMatch,
			Status:      models.StageStatusCompleted,
			StartedAt:   started,
			CompletedAt: time.Now(),
			Summary:     "no products matched",
			Details:     map[string]any{"products_found": 0},
		})
		return nil, false
	}

	timeline.Append(models.AgentStageRecord{
		StageName:   models.StageSemanticProductMatch,
		Status:      models.StageStatusCompleted,
		StartedAt:   started,
		CompletedAt: time.Now(),
		Summary:     fmt.Sprintf("matched %d candidate product(s)", len(matches)),
		Details:     map[string]any{"products_found": len(matches)},
	})
	return matches, true
}

func (d *Dispatcher) parseOrder(ctx context.Context, timeline *models.AgentTimeline, message string, matches []ProductMatch) ([]lineItem, bool) {
	started := time.Now()

	system := buildParsingSystemPrompt(matches)
	resp, err := d.provider.Chat(ctx, system, []llm.Message{{Role: "user", Content: message}})
	if err != nil {
		timeline.Append(models.AgentStageRecord{
			StageName:   models.StageOrderParsing,
			Status:      models.StageStatusError,
			StartedAt:   started,
			CompletedAt: time.Now(),
			Summary:     fmt.Sprintf("order parsing failed: %v", err),
		})
		return nil, false
	}

	var items []lineItem
	if err := json.Unmarshal(extractJSONArray(resp.Content), &items); err != nil || len(items) == 0 {
		timeline.Append(models.AgentStageRecord{
			StageName:   models.StageOrderParsing,
			Status:      models.StageStatusError,
			StartedAt:   started,
			CompletedAt: time.Now(),
			Summary:     "could not parse structured line items from response",
		})
		return nil, false
	}

	timeline.Append(models.AgentStageRecord{
		StageName:   models.StageOrderParsing,
		Status:      models.StageStatusCompleted,
		StartedAt:   started,
		CompletedAt: time.Now(),
		Summary:     fmt.Sprintf("parsed %d line item(s)", len(items)),
		Details:     map[string]any{"line_items": len(items)},
	})
	return items, true
}

// acknowledgeInventory, acknowledgeDelivery, acknowledgeFinance record
// synchronous acknowledgement entries for the three stages spec §4.8
// delegates to the external business layer.
func (d *Dispatcher) acknowledgeInventory(timeline *models.AgentTimeline, items []lineItem) {
	now := time.Now()
	timeline.Append(models.AgentStageRecord{
		StageName:   models.StageInventoryCheck,
		Status:      models.StageStatusCompleted,
		StartedAt:   now,
		CompletedAt: now,
		Summary:     "inventory check acknowledged, delegated to fulfillment system",
		Details:     map[string]any{"line_items": len(items)},
	})
}

func (d *Dispatcher) acknowledgeDelivery(timeline *models.AgentTimeline, outletID string) {
	now := time.Now()
	timeline.Append(models.AgentStageRecord{
		StageName:   models.StageDeliveryScheduling,
		Status:      models.StageStatusCompleted,
		StartedAt:   now,
		CompletedAt: now,
		Summary:     "delivery scheduling acknowledged, delegated to logistics system",
		Details:     map[string]any{"outlet_id": outletID},
	})
}

func (d *Dispatcher) acknowledgeFinance(timeline *models.AgentTimeline, items []lineItem) {
	now := time.Now()
	timeline.Append(models.AgentStageRecord{
		StageName:   models.StageFinancePreparation,
		Status:      models.StageStatusCompleted,
		StartedAt:   now,
		CompletedAt: now,
		Summary:     "invoice preparation acknowledged, delegated to finance system",
		Details:     map[string]any{"line_items": len(items)},
	})
}

func buildParsingSystemPrompt(matches []ProductMatch) string {
	var b strings.Builder
	b.WriteString("Parse the user's order request into structured line items. ")
	b.WriteString("Use only these catalog products (pick the closest match by name):\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s (sku: %s)\n", m.Product.Name, m.Product.SKU)
	}
	b.WriteString("\nRespond with a JSON array only, no prose, matching this shape: ")
	b.WriteString(`[{"product_name": "...", "quantity": 1, "sku": "..."}]`)
	return b.String()
}

func extractJSONArray(text string) []byte {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start == -1 || end == -1 || end < start {
		return []byte(text)
	}
	return []byte(text[start : end+1])
}
