package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canadianpizza/orderbot-core/pkg/apierr"
)

func TestValidate_BoundaryLength(t *testing.T) {
	// 1000 five-byte "aaaa " groups: exactly MaxBytes, every token within
	// MaxTokenChars.
	exact := strings.Repeat("aaaa ", MaxBytes/5)
	_, err := Validate(exact)
	assert.NoError(t, err)

	tooLong := exact + "a"
	_, err = Validate(tooLong)
	require.Error(t, err)
	var ve *apierr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, apierr.ValidationTooLong, ve.ValidationKind)
}

func TestValidate_WhitespaceOnlyRejected(t *testing.T) {
	_, err := Validate("   ")
	require.Error(t, err)
	var ve *apierr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, apierr.ValidationTooShort, ve.ValidationKind)
}

func TestValidate_TokenBoundary(t *testing.T) {
	okToken := strings.Repeat("a", MaxTokenChars)
	_, err := Validate(okToken)
	assert.NoError(t, err)

	tooLongToken := strings.Repeat("a", MaxTokenChars+1)
	_, err = Validate(tooLongToken)
	require.Error(t, err)
	var ve *apierr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, apierr.ValidationTokenTooLong, ve.ValidationKind)
}

func TestValidate_RejectsNullBytes(t *testing.T) {
	_, err := Validate("hello\x00world")
	require.Error(t, err)
}

func TestValidate_CollapsesWhitespaceAndTrims(t *testing.T) {
	v, err := Validate("  what   is  your   refund  policy?  ")
	require.NoError(t, err)
	assert.Equal(t, "what is your refund policy?", v.Text)
}

func TestValidate_FlagsSQLInjectionWithoutRejecting(t *testing.T) {
	v, err := Validate("please SELECT our best pizza boxes")
	require.NoError(t, err)
	assert.True(t, v.HasFlag(FlagSQLInjection))
}

func TestValidate_FlagsPIIEmail(t *testing.T) {
	v, err := Validate("contact me at alice@example.com about my order")
	require.NoError(t, err)
	assert.True(t, v.HasFlag(FlagPIIEmail))
}

func TestValidate_FlagsPIISSN(t *testing.T) {
	v, err := Validate("my ssn is 123-45-6789 for the account")
	require.NoError(t, err)
	assert.True(t, v.HasFlag(FlagPIISSN))
}

func TestValidate_NoFlagsForCleanMessage(t *testing.T) {
	v, err := Validate("I need 100 x 10\" pizza boxes")
	require.NoError(t, err)
	assert.Empty(t, v.SecurityFlags)
}
