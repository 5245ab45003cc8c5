// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package token implements the signed session token format.
//
// A session token is two hex strings joined by a dot:
//
//	<identifier>.<signature>
//
// The identifier is 256 bits of cryptographic randomness. The signature is
// an HMAC-SHA256 over the identifier, keyed with a key derived from the
// configured shared secret. Verification is stateless: any holder of the
// secret can check a token without consulting a session store.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// IdentifierBytes is the size of the random session identifier.
	IdentifierBytes = 32

	// IdentifierHexLen is the length of the hex-encoded identifier.
	IdentifierHexLen = IdentifierBytes * 2

	// Separator joins the identifier and signature halves of a token.
	// Cannot occur inside either half (both are lowercase hex).
	Separator = "."

	// signingKeySize is the derived HMAC key size in bytes.
	signingKeySize = 32

	// pbkdf2Iterations is the iteration count for signing key derivation.
	// The derivation runs once per process, not per request.
	pbkdf2Iterations = 10000
)

// signingKeySalt is a fixed application salt for signing key derivation.
// The secret is the only input that must stay private.
var signingKeySalt = []byte("dashgate-session-signing-v1")

// defaultSecret is the built-in development fallback used when no secret is
// configured. Tokens signed with it are forgeable by anyone who reads this
// source; NewCodec logs a warning whenever it is in effect.
const defaultSecret = "dashgate-insecure-dev-secret"

// GenerateIdentifier returns a new random session identifier as 64 lowercase
// hex characters. Returns an error if the system random source fails.
func GenerateIdentifier() (string, error) {
	bytes := make([]byte, IdentifierBytes)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("CRITICAL SECURITY ERROR: crypto/rand failed: %v", err)
		return "", fmt.Errorf("cryptographic random generation failed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Codec signs and verifies session tokens with a key derived from a shared
// secret. A Codec is immutable and safe for concurrent use.
type Codec struct {
	key []byte

	// usingDefault records whether the built-in development secret is in
	// effect, so callers can surface the condition in health output.
	usingDefault bool
}

// NewCodec derives a signing key from the given secret and returns a Codec.
//
// An empty secret falls back to the built-in development secret rather than
// failing, so a partially configured dashboard still starts; the fallback is
// logged loudly because every such deployment shares the same forgeable key.
func NewCodec(secret string) *Codec {
	usingDefault := false
	if secret == "" {
		log.Printf("TOKEN_SECRET_MISSING | using built-in development secret; set DASHGATE_TOKEN_SECRET before production use")
		secret = defaultSecret
		usingDefault = true
	}

	key := pbkdf2.Key([]byte(secret), signingKeySalt, pbkdf2Iterations, signingKeySize, sha256.New)
	return &Codec{key: key, usingDefault: usingDefault}
}

// UsingDefaultSecret reports whether the codec fell back to the built-in
// development secret.
func (c *Codec) UsingDefaultSecret() bool {
	return c.usingDefault
}

// Sign computes the HMAC-SHA256 signature for an identifier, returned as
// lowercase hex.
func (c *Codec) Sign(identifier string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(identifier))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the valid signature for identifier.
// The comparison is constant-time.
func (c *Codec) Verify(identifier, signature string) bool {
	if identifier == "" || signature == "" {
		return false
	}
	expected := c.Sign(identifier)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Mint generates a fresh identifier and returns the complete signed token.
func (c *Codec) Mint() (string, error) {
	identifier, err := GenerateIdentifier()
	if err != nil {
		return "", fmt.Errorf("failed to mint token: %w", err)
	}
	return identifier + Separator + c.Sign(identifier), nil
}

// Split separates a token into its identifier and signature halves.
// ok is false unless the token has exactly two non-empty parts.
func Split(tok string) (identifier, signature string, ok bool) {
	parts := strings.Split(tok, Separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
