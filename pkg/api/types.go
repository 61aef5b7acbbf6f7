package api

import (
	"github.com/canadianpizza/orderbot-core/pkg/models"
	"github.com/canadianpizza/orderbot-core/pkg/orchestrator"
)

// chatRequest is the wire shape of spec §6.1's request body. JSON
// marshaling lives only at this edge package, per spec §9's redesign
// note against "dict everywhere" payloads leaking into the domain
// packages.
type chatRequest struct {
	Message    string  `json:"message" binding:"required"`
	SessionID  *string `json:"session_id"`
	OutletName *string `json:"outlet_name"`
	Language   *string `json:"language"`
	Mode       *string `json:"mode"`
}

// chatResponse is the wire shape of spec §6.1's response body.
type chatResponse struct {
	Success       bool                   `json:"success"`
	SessionID     string                 `json:"session_id"`
	Message       string                 `json:"message"`
	Intent        string                 `json:"intent"`
	Confidence    float64                `json:"confidence"`
	Language      string                 `json:"language"`
	Citations     []citationDTO          `json:"citations"`
	Mode          string                 `json:"mode"`
	Metadata      metadataDTO            `json:"metadata"`
	AgentTimeline []agentStageRecordDTO  `json:"agent_timeline"`
	OrderID       *int                   `json:"order_id"`
}

type citationDTO struct {
	PolicyID       string  `json:"policy_id"`
	PolicyName     string  `json:"policy_name"`
	Section        string  `json:"section"`
	RelevanceScore float64 `json:"relevance_score"`
	Content        string  `json:"content,omitempty"`
}

type metadataDTO struct {
	Degraded             bool   `json:"degraded"`
	RequiresEscalation   bool   `json:"requires_escalation"`
	FromCache            bool   `json:"from_cache"`
	CacheBackend         string `json:"cache_backend,omitempty"`
	Unpersisted          bool   `json:"unpersisted"`
	GenerationCostTokens int    `json:"generation_cost_tokens,omitempty"`
}

type agentStageRecordDTO struct {
	StageName   string         `json:"stage_name"`
	Status      string         `json:"status"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// errorResponse is the wire shape returned on any non-200 status.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

func toOrchestratorRequest(body chatRequest, userID, ip string) orchestrator.Request {
	req := orchestrator.Request{
		Text:   body.Message,
		UserID: userID,
		IP:     ip,
	}
	if body.SessionID != nil {
		req.SessionID = *body.SessionID
	}
	if body.OutletName != nil {
		req.OutletID = *body.OutletName
	}
	if body.Language != nil {
		req.Language = models.Language(*body.Language)
	}
	return req
}

func toChatResponse(result orchestrator.Result) chatResponse {
	citations := make([]citationDTO, 0, len(result.Citations))
	for _, c := range result.Citations {
		citations = append(citations, citationDTO{
			PolicyID:       c.PolicyID,
			PolicyName:     c.PolicyName,
			Section:        c.Section,
			RelevanceScore: c.RelevanceScore,
			Content:        c.Content,
		})
	}

	var timeline []agentStageRecordDTO
	if result.AgentTimeline != nil {
		timeline = make([]agentStageRecordDTO, 0, len(result.AgentTimeline.Stages))
		for _, s := range result.AgentTimeline.Stages {
			rec := agentStageRecordDTO{
				StageName: string(s.StageName),
				Status:    string(s.Status),
				Summary:   s.Summary,
				Details:   s.Details,
			}
			if !s.StartedAt.IsZero() {
				rec.StartedAt = s.StartedAt.Format("2006-01-02T15:04:05Z07:00")
			}
			if !s.CompletedAt.IsZero() {
				rec.CompletedAt = s.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
			}
			timeline = append(timeline, rec)
		}
	}

	return chatResponse{
		Success:    true,
		SessionID:  result.SessionID,
		Message:    result.Message,
		Intent:     string(result.Intent),
		Confidence: result.Confidence,
		Language:   string(result.Language),
		Citations:  citations,
		Mode:       result.Mode,
		Metadata: metadataDTO{
			Degraded:             result.Metadata.Degraded,
			RequiresEscalation:   result.Metadata.RequiresEscalation,
			FromCache:            result.Metadata.FromCache,
			CacheBackend:         result.Metadata.CacheBackend,
			Unpersisted:          result.Metadata.Unpersisted,
			GenerationCostTokens: result.Metadata.GenerationCostTokens,
		},
		AgentTimeline: timeline,
		OrderID:       result.OrderID,
	}
}
