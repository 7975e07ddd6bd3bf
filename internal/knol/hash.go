// Package knol derives stable card identities from card content.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// Normalize returns the canonical text of a card's front, back and notes:
// lower-cased, CRLF folded to LF, runs of spaces collapsed and blank edges
// trimmed. Category, level and tags are not part of a card's identity.
func Normalize(card domain.Card) string {
	parts := []string{card.Front, card.Back, card.Notes}
	for i, p := range parts {
		parts[i] = normalizePart(p)
	}
	return strings.Join(parts, "\n")
}

func normalizePart(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), "\r\n", "\n")
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Join(lines, "\n")
}

// Hash returns the card ID for the card's content: the first 16 bytes of the
// SHA-256 of Normalize, hex encoded.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:16])
}
