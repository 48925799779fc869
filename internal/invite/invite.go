// Package invite generates unique tontine join tokens.
package invite

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// alphabet excludes 0/O/1/I to keep codes unambiguous when read aloud.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the length of generated invite codes.
const CodeLength = 8

// MaxAttempts bounds uniqueness retries during allocation. Exhaustion is
// surfaced as domain.ErrCodeSpaceExhausted by the tontine service.
const MaxAttempts = 10

// Generate produces a short uppercase alphanumeric token. It has no side
// effects; uniqueness is enforced by the registry's unique constraint at
// allocation time.
func Generate() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("invite code entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// Normalize canonicalizes a user-supplied code for lookup: trimmed,
// uppercase, exact match semantics.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
