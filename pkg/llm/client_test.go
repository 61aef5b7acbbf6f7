package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestNewClient_AppliesDefaults(t *testing.T) {
	c, err := NewClient(Config{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.model)
	assert.EqualValues(t, DefaultMaxTokens, c.maxTokens)
}

func TestSingleton_ReturnsSameInstance(t *testing.T) {
	ResetSingletonForTest()
	t.Cleanup(ResetSingletonForTest)

	c1, err := Singleton(Config{APIKey: "test-key"})
	require.NoError(t, err)
	c2, err := Singleton(Config{APIKey: "different-key-ignored"})
	require.NoError(t, err)
	assert.Same(t, c1, c2)
}
