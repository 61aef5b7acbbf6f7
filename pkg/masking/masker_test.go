package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrub_RedactsEmail(t *testing.T) {
	r := Scrub("contact me at jane.doe@example.com please")
	assert.True(t, r.Scrubbed)
	assert.Contains(t, r.Text, "[REDACTED_EMAIL]")
	assert.NotContains(t, r.Text, "jane.doe@example.com")
}

func TestScrub_NoPIILeavesTextUnchanged(t *testing.T) {
	r := Scrub("what time does the outlet close tonight")
	assert.False(t, r.Scrubbed)
	assert.Equal(t, "what time does the outlet close tonight", r.Text)
}

func TestScrub_RedactsSSN(t *testing.T) {
	r := Scrub("my ssn is 123-45-6789")
	assert.True(t, r.Scrubbed)
	assert.Contains(t, r.Text, "[REDACTED_SSN]")
}
