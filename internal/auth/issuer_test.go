// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/dashgate/internal/token"
)

const (
	testUser = "admin"
	testPass = "correct horse battery staple"
)

// newTestIssuer builds an issuer with a short failure delay so mismatch
// tests run quickly.
func newTestIssuer(opts ...IssuerOption) *Issuer {
	codec := token.NewCodec("issuer-test-secret")
	base := []IssuerOption{WithFailureDelay(10 * time.Millisecond)}
	return NewIssuer(testUser, testPass, codec, append(base, opts...)...)
}

func TestLogin_Success(t *testing.T) {
	issuer := newTestIssuer()

	ci, err := issuer.Login(context.Background(), Credentials{Username: testUser, Password: testPass})
	require.NoError(t, err)
	require.Equal(t, CookieName, ci.Name)
	require.Equal(t, DefaultCookieTTL, ci.MaxAge)
	require.False(t, ci.Secure)

	// The cookie value must verify against the same codec.
	codec := token.NewCodec("issuer-test-secret")
	require.True(t, NewVerifier(codec).Verify(ci.Value))
}

func TestLogin_CookieAttributes(t *testing.T) {
	issuer := newTestIssuer(WithSecureCookies(true))

	ci, err := issuer.Login(context.Background(), Credentials{Username: testUser, Password: testPass})
	require.NoError(t, err)

	c := ci.Cookie()
	require.Equal(t, "session", c.Name)
	require.Equal(t, "/", c.Path)
	require.Equal(t, 28800, c.MaxAge)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestLogin_MissingFields(t *testing.T) {
	issuer := newTestIssuer()
	ctx := context.Background()

	cases := []Credentials{
		{},
		{Username: testUser},
		{Password: testPass},
	}
	for _, creds := range cases {
		start := time.Now()
		_, err := issuer.Login(ctx, creds)
		elapsed := time.Since(start)

		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Login(%+v) error = %v, want ErrInvalidInput", creds, err)
		}
		// Input validation failures return before the failure delay.
		if elapsed >= 10*time.Millisecond {
			t.Errorf("Login(%+v) took %v, want immediate return", creds, elapsed)
		}
	}
}

func TestLogin_Misconfigured(t *testing.T) {
	codec := token.NewCodec("issuer-test-secret")
	creds := Credentials{Username: testUser, Password: testPass}

	for _, issuer := range []*Issuer{
		NewIssuer("", testPass, codec, WithFailureDelay(0)),
		NewIssuer(testUser, "", codec, WithFailureDelay(0)),
		NewIssuer("", "", codec, WithFailureDelay(0)),
	} {
		_, err := issuer.Login(context.Background(), creds)
		if !errors.Is(err, ErrMisconfigured) {
			t.Errorf("Login with unset reference credentials: error = %v, want ErrMisconfigured", err)
		}
	}
}

func TestLogin_WrongCredentials(t *testing.T) {
	issuer := newTestIssuer()
	ctx := context.Background()

	cases := []Credentials{
		{Username: "wrong", Password: testPass},
		{Username: testUser, Password: "wrong"},
		{Username: "wrong", Password: "wrong"},
	}
	for _, creds := range cases {
		_, err := issuer.Login(ctx, creds)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%+v) error = %v, want ErrInvalidCredentials", creds, err)
		}
	}
}

func TestLogin_MismatchPaysFailureDelay(t *testing.T) {
	delay := 50 * time.Millisecond
	issuer := newTestIssuer(WithFailureDelay(delay))
	ctx := context.Background()

	for _, creds := range []Credentials{
		{Username: "wrong", Password: testPass},
		{Username: testUser, Password: "wrong"},
	} {
		start := time.Now()
		_, err := issuer.Login(ctx, creds)
		elapsed := time.Since(start)

		require.ErrorIs(t, err, ErrInvalidCredentials)
		if elapsed < delay {
			t.Errorf("Login(%+v) returned after %v, want >= %v", creds, elapsed, delay)
		}
	}
}

func TestLogin_DelayRespectsContext(t *testing.T) {
	issuer := newTestIssuer(WithFailureDelay(5 * time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := issuer.Login(ctx, Credentials{Username: testUser, Password: "wrong"})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	if elapsed >= time.Second {
		t.Errorf("cancelled Login took %v, want prompt return", elapsed)
	}
}

func TestLogin_TokensDifferPerLogin(t *testing.T) {
	issuer := newTestIssuer()
	ctx := context.Background()
	creds := Credentials{Username: testUser, Password: testPass}

	a, err := issuer.Login(ctx, creds)
	require.NoError(t, err)
	b, err := issuer.Login(ctx, creds)
	require.NoError(t, err)

	require.NotEqual(t, a.Value, b.Value)
}
