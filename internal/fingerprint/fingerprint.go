// Package fingerprint computes the stable identity digest for canonical
// alert events. Identity is derived from source, title and team only, so a
// firing event and its later resolution hash to the same value and can be
// correlated downstream.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"alert-collector/internal/events"
)

// Length is the number of hex characters in a fingerprint.
const Length = 32

// Generate returns the deterministic fingerprint for an alert event.
// State and occurred_at are deliberately excluded so lifecycle notifications
// about the same underlying condition correlate. Vendor identity tokens are
// excluded too: vendors do not attach them on every delivery path, so a
// token-bearing firing event and a token-less resolution of the same
// condition must still hash identically.
func Generate(e *events.AlertEvent) string {
	parts := []string{
		canonical(string(e.Source)),
		canonical(e.Title),
		canonical(e.Team),
	}

	sum := sha256.Sum256([]byte(join(parts)))
	return hex.EncodeToString(sum[:])[:Length]
}

// canonical normalizes incidental formatting so semantically identical
// events never hash differently.
func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// join concatenates fields with an escaped delimiter so field boundaries
// cannot collide ("a|b","c" and "a","b|c" hash differently).
func join(parts []string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		part = strings.ReplaceAll(part, `\`, `\\`)
		part = strings.ReplaceAll(part, "|", `\|`)
		escaped[i] = part
	}
	return strings.Join(escaped, "|")
}
