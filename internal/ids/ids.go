// Package ids mints and validates the ULID-shaped identifiers used for
// sessions and runs.
package ids

import (
	"crypto/rand"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

// Pattern matches a 26-char Crockford base32 ULID, case-sensitive upper.
var Pattern = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)

// entropy is not shared across calls; ulid.New is safe for concurrent use
// only when each caller supplies its own io.Reader, so every New call builds
// a fresh monotonic reader seeded from crypto/rand.
func entropy() *ulid.MonotonicEntropy {
	return ulid.Monotonic(rand.Reader, 0)
}

// NewSessionID mints a new session identifier.
func NewSessionID() string {
	return New()
}

// NewRunID mints a new run identifier. One is minted per WebSocket send.
func NewRunID() string {
	return New()
}

// New mints a ULID-shaped identifier: a 10-char time prefix followed by a
// 16-char random suffix, monotonically-enough ordered within a process.
func New() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy())
	return id.String()
}

// Valid reports whether s has the required ULID shape.
func Valid(s string) bool {
	return Pattern.MatchString(s)
}
