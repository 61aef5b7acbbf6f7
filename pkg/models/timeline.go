package models

import "time"

// StageStatus is the lifecycle state of a single AgentTimeline stage.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusError     StageStatus = "error"
)

// StageName identifies one of the five fixed OrderDispatcher stages
// (spec §4.8), in execution order.
type StageName string

const (
	StageSemanticProductMatch StageName = "semantic_product_match"
	StageOrderParsing         StageName = "order_parsing"
	StageInventoryCheck       StageName = "inventory_check"
	StageDeliveryScheduling   StageName = "delivery_scheduling"
	StageFinancePreparation   StageName = "finance_preparation"
)

// OrderedStages is the fixed stage sequence from spec §4.8.
var OrderedStages = []StageName{
	StageSemanticProductMatch,
	StageOrderParsing,
	StageInventoryCheck,
	StageDeliveryScheduling,
	StageFinancePreparation,
}

// AgentStageRecord is a single stage's outcome within an AgentTimeline.
type AgentStageRecord struct {
	StageName   StageName
	Status      StageStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Summary     string
	Details     map[string]any
}

// AgentTimeline is the ordered sequence of stage records returned by
// OrderDispatcher.Dispatch. Partial progress is always preserved: a
// failure at stage N never erases the recorded outcome of stages 1..N-1
// (spec §4.8 failure semantics).
type AgentTimeline struct {
	Stages []AgentStageRecord
}

// Append records a stage outcome, preserving prior entries.
func (t *AgentTimeline) Append(rec AgentStageRecord) {
	t.Stages = append(t.Stages, rec)
}
