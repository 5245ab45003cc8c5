// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth implements credential verification and session issuance for
// the dashboard.
//
// The Issuer checks a submitted username/password pair against the single
// configured reference pair and, on success, mints a signed session token
// packaged as cookie-setting instructions. The Verifier is its stateless
// counterpart: it checks a presented cookie value against the signing secret
// without any session store.
//
// # Timing posture
//
// Credential comparison is constant-time, both fields are always compared,
// and every mismatch pays the same fixed delay before the error is returned.
// A caller observing response latency learns nothing about which field was
// wrong or how close a guess was.
package auth

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"github.com/jeranaias/dashgate/internal/token"
)

const (
	// CookieName is the session cookie name expected by the dashboard.
	CookieName = "session"

	// DefaultCookieTTL is the session cookie lifetime: 8 hours.
	DefaultCookieTTL = 8 * time.Hour

	// DefaultFailureDelay is the fixed pause imposed on every credential
	// mismatch. It slows online guessing and masks comparison timing.
	DefaultFailureDelay = 100 * time.Millisecond
)

// Credentials is a submitted username/password pair.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CookieInstruction describes the session cookie the transport layer should
// set. Name/Value/MaxAge/Secure vary; the remaining attributes are fixed by
// Cookie.
type CookieInstruction struct {
	Name   string
	Value  string
	MaxAge time.Duration
	Secure bool
}

// Cookie renders the instruction as an *http.Cookie. The cookie is always
// HttpOnly with SameSite=Strict and Path=/; Secure follows the instruction.
func (ci CookieInstruction) Cookie() *http.Cookie {
	return &http.Cookie{
		Name:     ci.Name,
		Value:    ci.Value,
		Path:     "/",
		MaxAge:   int(ci.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   ci.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Issuer verifies credentials against the configured reference pair and
// mints session cookies. An Issuer is immutable and safe for concurrent use.
type Issuer struct {
	username     string
	password     string
	codec        *token.Codec
	cookieTTL    time.Duration
	failureDelay time.Duration
	secure       bool
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithCookieTTL sets the session cookie lifetime.
func WithCookieTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.cookieTTL = ttl
		}
	}
}

// WithFailureDelay sets the fixed delay imposed on credential mismatches.
func WithFailureDelay(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		if d >= 0 {
			i.failureDelay = d
		}
	}
}

// WithSecureCookies marks issued cookies Secure (HTTPS-only). Enabled in
// production deployments.
func WithSecureCookies(secure bool) IssuerOption {
	return func(i *Issuer) {
		i.secure = secure
	}
}

// NewIssuer creates an Issuer for the given reference credentials and codec.
// Empty reference credentials are accepted here; Login reports
// ErrMisconfigured per attempt so a partially configured server still starts.
func NewIssuer(username, password string, codec *token.Codec, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		username:     username,
		password:     password,
		codec:        codec,
		cookieTTL:    DefaultCookieTTL,
		failureDelay: DefaultFailureDelay,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Login verifies the submitted credentials and returns cookie instructions
// for a new session.
//
// Failures map to the package error taxonomy: missing fields return
// ErrInvalidInput immediately, unset reference credentials return
// ErrMisconfigured, and any mismatch returns ErrInvalidCredentials after the
// fixed failure delay. The context bounds the delay wait; cancellation
// surfaces the context error.
func (i *Issuer) Login(ctx context.Context, creds Credentials) (CookieInstruction, error) {
	if creds.Username == "" || creds.Password == "" {
		return CookieInstruction{}, ErrInvalidInput
	}

	if i.username == "" || i.password == "" {
		log.Printf("AUTH_MISCONFIGURED | username_set=%t password_set=%t", i.username != "", i.password != "")
		return CookieInstruction{}, ErrMisconfigured
	}

	// Compare both fields unconditionally and combine the results before
	// branching, so a failed username does not skip the password comparison.
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(i.username))
	passOK := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(i.password))

	if userOK&passOK != 1 {
		if err := i.waitFailureDelay(ctx); err != nil {
			return CookieInstruction{}, err
		}
		log.Printf("LOGIN_DENIED | reason=credential_mismatch")
		return CookieInstruction{}, ErrInvalidCredentials
	}

	tok, err := i.codec.Mint()
	if err != nil {
		log.Printf("LOGIN_FAILED | reason=token_mint error=%v", err)
		return CookieInstruction{}, ErrInternal
	}

	log.Printf("LOGIN_OK | cookie_ttl=%v secure=%t", i.cookieTTL, i.secure)

	return CookieInstruction{
		Name:   CookieName,
		Value:  tok,
		MaxAge: i.cookieTTL,
		Secure: i.secure,
	}, nil
}

// waitFailureDelay blocks for the configured failure delay or until the
// context is cancelled.
func (i *Issuer) waitFailureDelay(ctx context.Context) error {
	if i.failureDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(i.failureDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
