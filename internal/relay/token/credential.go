// Package token keeps the ingestion endpoint's bearer credential valid.
package token

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable is returned when no valid credential could be obtained.
	ErrUnavailable = errors.New("token unavailable")

	// ErrDenied is returned when the portal explicitly refused to issue a token.
	ErrDenied = fmt.Errorf("%w: denied by portal", ErrUnavailable)
)

// DenialSentinel is the phrase the portal uses when it refuses a request.
const DenialSentinel = "Unable to generate token."

// Credential is an issued bearer token. It is immutable once created.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the credential can still be used at now.
func (c *Credential) Valid(now time.Time) bool {
	return c != nil && c.Token != "" && c.ExpiresAt.After(now)
}

// Bearer returns the authorization metadata value.
func (c *Credential) Bearer() string {
	return "Bearer " + c.Token
}
