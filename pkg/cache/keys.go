package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/canadianpizza/orderbot-core/pkg/models"
)

// diacriticFold is an x/text transform.Transformer chain that NFD-
// decomposes, strips combining marks, then NFC-recomposes — the standard
// "diacritic folding" idiom built on golang.org/x/text (runes.Remove +
// transform.Chain), used here to derive the cache's normalized_text key
// (spec §4.3: "lowercased with diacritics folded").
var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicodeMn)), norm.NFC)

var unicodeMn = unicode.Mn

// NormalizeText derives spec §4.3's normalized_text: sanitized text,
// lowercased, with diacritics folded.
func NormalizeText(sanitizedText string) string {
	folded, _, err := transform.String(diacriticFold, sanitizedText)
	if err != nil {
		folded = sanitizedText
	}
	return strings.ToLower(folded)
}

// ConversationTurn is the minimal shape needed to derive a context digest:
// role and normalized content, per spec §4.3.
type ConversationTurn struct {
	Role    models.Role
	Content string
}

// ContextDigest computes a stable hash of the last up-to-3 turns (roles +
// normalized content), used to make the L1 key context-sensitive while L3
// stays context-free (spec §4.3).
func ContextDigest(turns []ConversationTurn) string {
	recent := turns
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	h := sha256.New()
	for _, t := range recent {
		h.Write([]byte(t.Role))
		h.Write([]byte{0})
		h.Write([]byte(NormalizeText(t.Content)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// L1Key derives the exact-match key for the L1 layer: normalized_text +
// context digest + outlet + language (spec §4.3 table).
func L1Key(normalizedText, contextDigest, outletID string, lang models.Language) string {
	return strings.Join([]string{"l1", normalizedText, contextDigest, outletID, string(lang)}, "\x1f")
}

// L3Key derives the context-free key for the L3 layer: normalized_text only.
func L3Key(normalizedText string) string {
	return "l3\x1f" + normalizedText
}

// L4Key derives the key for the L4 knowledge-retrieval layer:
// normalized_query only.
func L4Key(normalizedQuery string) string {
	return "l4\x1f" + normalizedQuery
}
