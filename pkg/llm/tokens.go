package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token counts for prompts before they are sent,
// used by the Orchestrator to budget the recent-turns context window
// handed to ResponseGenerator (SPEC_FULL.md §11: context-window
// budgeting).
type TokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding, the same family of BPE
// used by Claude-era tooling that reaches for tiktoken-go in the pack
// (teradata-labs-loom uses it for context-window budgeting).
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TokenCounter{enc: enc}, nil
}

// Count returns the estimated token count of text.
func (t *TokenCounter) Count(text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}
