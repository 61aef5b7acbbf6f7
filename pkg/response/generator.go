// Package response implements the ResponseGenerator contract from spec
// §4.7: compose a prompt from the user message, intent, retrieved
// chunks, and recent turns, call the LLM, and surface retrieved chunks
// as citations. On LLM failure, return a user-facing apology with a
// degraded flag rather than an error, escalating complaints.
package response

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
	"github.com/canadianpizza/orderbot-core/pkg/llm"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

// DefaultTimeout is spec §4.9's per-step deadline for generation.
const DefaultTimeout = 60 * time.Second

// MaxChunks and MaxTurns cap prompt composition per spec §4.7.
const (
	MaxChunks = 3
	MaxTurns  = 3
)

// apologyText is returned, per language, when the LLM call fails.
var apologyText = map[models.Language]string{
	models.LanguageEN: "I'm sorry, I'm having trouble answering right now. Please try again shortly.",
	models.LanguageZH: "抱歉,我暂时无法回答。请稍后再试。",
	models.LanguageMS: "Maaf, saya menghadapi masalah untuk menjawab sekarang. Sila cuba lagi sebentar.",
}

// Generator implements ResponseGenerator.
type Generator struct {
	provider llm.Provider
	timeout  time.Duration
}

func New(provider llm.Provider) *Generator {
	return &Generator{provider: provider, timeout: DefaultTimeout}
}

// Generate produces a grounded Response for message, given its
// classified intent, any retrieved knowledge chunks, and recent
// conversation turns.
func (g *Generator) Generate(ctx context.Context, message string, intent models.Intent, chunks []models.KnowledgeChunk, recentTurns []cache.ConversationTurn, language models.Language) models.Response {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if len(chunks) > MaxChunks {
		chunks = chunks[:MaxChunks]
	}

	system := buildSystemPrompt(intent, chunks, language)
	prompt := buildUserPrompt(message, recentTurns)

	resp, err := g.provider.Chat(ctx, system, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return apologyResponse(intent, language)
	}

	citations := make([]models.Citation, 0, len(chunks))
	for _, c := range chunks {
		citations = append(citations, c.ToCitation())
	}

	return models.Response{
		Text:      resp.Content,
		Citations: citations,
		Metadata: models.ResponseMetadata{
			GenerationCostTokens: resp.InputTokens + resp.OutputTokens,
		},
	}
}

func apologyResponse(intent models.Intent, language models.Language) models.Response {
	text, ok := apologyText[language]
	if !ok {
		text = apologyText[models.DefaultLanguage]
	}
	return models.Response{
		Text: text,
		Metadata: models.ResponseMetadata{
			Degraded:           true,
			RequiresEscalation: intent == models.IntentComplaint,
		},
	}
}

func buildSystemPrompt(intent models.Intent, chunks []models.KnowledgeChunk, language models.Language) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant for a B2B food-service ordering platform. ")
	b.WriteString("Respond in ")
	b.WriteString(languageName(language))
	b.WriteString(".\n")
	b.WriteString(taskDirective(intent))
	b.WriteString("\n")

	if len(chunks) > 0 {
		b.WriteString("\nGround your answer in the following reference material. Cite facts from it where relevant and avoid stating facts it does not support:\n")
		for i, c := range chunks {
			fmt.Fprintf(&b, "[%d] %s - %s: %s\n", i+1, c.PolicyName, c.Section, c.Content)
		}
	}
	return b.String()
}

func taskDirective(intent models.Intent) string {
	switch intent {
	case models.IntentPolicyQuestion:
		return "Answer the policy question grounded in the reference material provided."
	case models.IntentProductInquiry:
		return "Answer the product question grounded in the reference material provided."
	case models.IntentOrderStatus:
		return "Help the user understand their order status; ask for an order ID if none was given."
	case models.IntentComplaint:
		return "Acknowledge the complaint empathetically and explain that it is being escalated to a human."
	case models.IntentGreeting:
		return "Greet the user warmly and ask how you can help with their order."
	default:
		return "Answer the user's question as helpfully as possible."
	}
}

func languageName(l models.Language) string {
	switch l {
	case models.LanguageZH:
		return "Chinese"
	case models.LanguageMS:
		return "Malay"
	default:
		return "English"
	}
}

func buildUserPrompt(message string, recentTurns []cache.ConversationTurn) string {
	var b strings.Builder
	if len(recentTurns) > 0 {
		start := 0
		if len(recentTurns) > MaxTurns {
			start = len(recentTurns) - MaxTurns
		}
		b.WriteString("Recent conversation turns:\n")
		for _, t := range recentTurns[start:] {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User message: %s", message)
	return b.String()
}
