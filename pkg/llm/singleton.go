package llm

import "sync"

// Process-wide client singleton. Spec §9 calls out a real observed bug
// where concurrent first-use initialized the LLM/vector bindings twice,
// leaving one goroutine holding a half-constructed client
// ('RustBindingsAPI' object has no attribute 'bindings'). sync.Once gives
// the same one-shot guarantee as the teacher's globalRateLimiterOnce in
// teradata-labs-loom's pkg/llm/anthropic.Client, generalized here to the
// client itself rather than just its rate limiter.
var (
	singleton     *Client
	singletonOnce sync.Once
	singletonErr  error
)

// Singleton returns the process-wide Client, constructing it on first
// call and every subsequent caller reusing the same instance. Safe for
// concurrent callers: exactly one construction happens no matter how many
// goroutines call Singleton at once.
func Singleton(cfg Config) (*Client, error) {
	singletonOnce.Do(func() {
		singleton, singletonErr = NewClient(cfg)
	})
	return singleton, singletonErr
}

// ResetSingletonForTest clears the cached singleton. Test-only; never
// called from production code paths.
func ResetSingletonForTest() {
	singleton = nil
	singletonErr = nil
	singletonOnce = sync.Once{}
}
