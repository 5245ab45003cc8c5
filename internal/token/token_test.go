// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateIdentifier(t *testing.T) {
	id, err := GenerateIdentifier()
	require.NoError(t, err)
	require.Len(t, id, IdentifierHexLen)

	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("identifier contains non-hex character %q", r)
		}
	}
}

func TestGenerateIdentifier_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateIdentifier()
		require.NoError(t, err)
		if seen[id] {
			t.Fatalf("duplicate identifier generated: %s", id)
		}
		seen[id] = true
	}
}

func TestCodec_SignVerify(t *testing.T) {
	codec := NewCodec("test-secret")

	id, err := GenerateIdentifier()
	require.NoError(t, err)

	sig := codec.Sign(id)
	require.NotEmpty(t, sig)
	require.True(t, codec.Verify(id, sig))
}

func TestCodec_VerifyRejectsTamperedIdentifier(t *testing.T) {
	codec := NewCodec("test-secret")

	id, err := GenerateIdentifier()
	require.NoError(t, err)
	sig := codec.Sign(id)

	// Flip one character of the identifier.
	flipped := flipHexChar(id, 0)
	require.False(t, codec.Verify(flipped, sig))
}

func TestCodec_VerifyRejectsTamperedSignature(t *testing.T) {
	codec := NewCodec("test-secret")

	id, err := GenerateIdentifier()
	require.NoError(t, err)
	sig := codec.Sign(id)

	flipped := flipHexChar(sig, len(sig)-1)
	require.False(t, codec.Verify(id, flipped))
}

func TestCodec_VerifyRejectsWrongSecret(t *testing.T) {
	signer := NewCodec("secret-a")
	other := NewCodec("secret-b")

	id, err := GenerateIdentifier()
	require.NoError(t, err)
	sig := signer.Sign(id)

	require.True(t, signer.Verify(id, sig))
	require.False(t, other.Verify(id, sig))
}

func TestCodec_VerifyRejectsEmpty(t *testing.T) {
	codec := NewCodec("test-secret")

	if codec.Verify("", "abc") {
		t.Error("Verify accepted empty identifier")
	}
	if codec.Verify("abc", "") {
		t.Error("Verify accepted empty signature")
	}
}

func TestCodec_DefaultSecretFallback(t *testing.T) {
	codec := NewCodec("")
	require.True(t, codec.UsingDefaultSecret())

	// Fallback codecs still round-trip; they just share a known key.
	tok, err := codec.Mint()
	require.NoError(t, err)

	id, sig, ok := Split(tok)
	require.True(t, ok)
	require.True(t, codec.Verify(id, sig))

	configured := NewCodec("real-secret")
	require.False(t, configured.UsingDefaultSecret())
	require.False(t, configured.Verify(id, sig))
}

func TestMint_Shape(t *testing.T) {
	codec := NewCodec("test-secret")

	tok, err := codec.Mint()
	require.NoError(t, err)

	id, sig, ok := Split(tok)
	require.True(t, ok)
	require.Len(t, id, IdentifierHexLen)
	require.Len(t, sig, 64) // hex SHA-256
	require.True(t, codec.Verify(id, sig))
}

func TestSplit_RejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"nodot",
		".leading",
		"trailing.",
		"a.b.c",
		".",
		"..",
	}
	for _, tc := range cases {
		if _, _, ok := Split(tc); ok {
			t.Errorf("Split(%q) ok = true, want false", tc)
		}
	}
}

// flipHexChar replaces the hex digit at index i with a different digit.
func flipHexChar(s string, i int) string {
	b := []byte(s)
	if b[i] == 'a' {
		b[i] = 'b'
	} else {
		b[i] = 'a'
	}
	return string(b)
}
