// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import "github.com/jeranaias/dashgate/internal/token"

// Verifier checks presented session cookie values statelessly. It never
// extends a session, records nothing, and returns only a yes/no answer.
type Verifier struct {
	codec *token.Codec
}

// NewVerifier creates a Verifier backed by the given codec. The codec must
// be the same one (same secret) the Issuer mints with.
func NewVerifier(codec *token.Codec) *Verifier {
	return &Verifier{codec: codec}
}

// Verify reports whether cookieValue is a validly signed session token.
// Empty or malformed values are simply false, never an error.
func (v *Verifier) Verify(cookieValue string) bool {
	if cookieValue == "" {
		return false
	}
	identifier, signature, ok := token.Split(cookieValue)
	if !ok {
		return false
	}
	return v.codec.Verify(identifier, signature)
}
