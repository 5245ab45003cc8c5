// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/dashgate/internal/auth"
	"github.com/jeranaias/dashgate/internal/journal"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultListenAddr is the default bind address for the HTTP server.
	DefaultListenAddr = "127.0.0.1:8600"

	// MaxRequestBodySize caps login request bodies (64KB). Login bodies are
	// two short strings; anything larger is hostile or broken.
	MaxRequestBodySize = 64 * 1024

	// Version is the server version.
	Version = "1.0.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Options configures a Server.
type Options struct {
	// ListenAddr is the bind address (empty = DefaultListenAddr).
	ListenAddr string

	// Issuer handles login attempts. Required.
	Issuer *auth.Issuer

	// Verifier checks session cookies. Required.
	Verifier *auth.Verifier

	// Journal records login attempts. Optional; nil disables journaling.
	Journal *journal.Journal

	// TrustProxyHeaders enables X-Forwarded-For handling for requests
	// arriving from trusted proxy ranges.
	TrustProxyHeaders bool

	// LoginRatePerMinute and LoginRateBurst configure the per-IP login
	// rate limiter. Zero values fall back to 10/min with a burst of 5.
	LoginRatePerMinute int
	LoginRateBurst     int
}

// Server is the dashgate HTTP server exposing the login and session
// endpoints.
type Server struct {
	addr       string
	router     *http.ServeMux
	server     *http.Server
	journal    *journal.Journal
	trustProxy bool
	limiter    *RateLimiter

	// authMu guards issuer/verifier so configuration reloads can swap
	// credentials without restarting the listener.
	authMu   sync.RWMutex
	issuer   *auth.Issuer
	verifier *auth.Verifier
}

// NewServer creates a Server from opts and registers its routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Issuer == nil {
		return nil, errors.New("issuer is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("verifier is required")
	}

	addr := opts.ListenAddr
	if addr == "" {
		addr = DefaultListenAddr
	}

	perMinute := opts.LoginRatePerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	burst := opts.LoginRateBurst
	if burst <= 0 {
		burst = 5
	}

	s := &Server{
		addr:       addr,
		router:     http.NewServeMux(),
		issuer:     opts.Issuer,
		verifier:   opts.Verifier,
		journal:    opts.Journal,
		trustProxy: opts.TrustProxyHeaders,
		limiter:    NewRateLimiter(perMinute, burst),
	}

	s.setupRoutes()
	return s, nil
}

// Addr returns the configured bind address.
func (s *Server) Addr() string {
	return s.addr
}

// UpdateAuth swaps the issuer and verifier. Used on configuration reload;
// in-flight requests finish against the pair they started with.
func (s *Server) UpdateAuth(issuer *auth.Issuer, verifier *auth.Verifier) {
	if issuer == nil || verifier == nil {
		return
	}
	s.authMu.Lock()
	s.issuer = issuer
	s.verifier = verifier
	s.authMu.Unlock()
	log.Printf("AUTH_RELOADED | issuer and verifier replaced")
}

func (s *Server) currentAuth() (*auth.Issuer, *auth.Verifier) {
	s.authMu.RLock()
	defer s.authMu.RUnlock()
	return s.issuer, s.verifier
}

// Handler returns the fully assembled HTTP handler, middleware included.
// Exposed for tests driving the server through httptest.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
	)(s.router)
}

// setupRoutes configures all HTTP routes. Rate limiting applies to the
// login endpoint only; session checks are cheap and read-only.
func (s *Server) setupRoutes() {
	loginLimit := RateLimitMiddleware(s.limiter, s.trustProxy)
	s.router.Handle("POST /login", loginLimit(http.HandlerFunc(s.handleLogin)))

	s.router.HandleFunc("GET /session", s.handleSession)
	s.router.HandleFunc("GET /health", s.handleHealth)
}

// Start runs the HTTP server until it is shut down or fails.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("SERVER_START | addr=%s version=%s", s.addr, Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()

	if s.server == nil {
		return nil
	}

	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// REQUEST/RESPONSE TYPES
// ============================================================================

// loginResponse is the JSON body for POST /login.
type loginResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// sessionResponse is the JSON body for GET /session.
type sessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// healthResponse is the JSON body for GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ============================================================================
// HANDLERS
// ============================================================================

// handleLogin verifies submitted credentials and sets the session cookie.
//
// Status codes: 200 on success, 400 for missing/malformed input, 401 for a
// credential mismatch, 500 for server-side problems. The body never says
// which credential field was wrong.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	clientIP := GetClientIP(r, s.trustProxy)

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.recordAttempt(clientIP, "", journal.OutcomeBadInput)
		s.writeJSON(w, http.StatusBadRequest, loginResponse{
			Success: false,
			Error:   auth.ErrInvalidInput.Error(),
		})
		return
	}

	issuer, _ := s.currentAuth()
	instruction, err := issuer.Login(r.Context(), creds)
	if err != nil {
		status, outcome := classifyLoginError(err)
		s.recordAttempt(clientIP, creds.Username, outcome)

		message := err.Error()
		if status == http.StatusInternalServerError {
			// Internal detail stays in the server log.
			message = auth.ErrInternal.Error()
		}
		s.writeJSON(w, status, loginResponse{Success: false, Error: message})
		return
	}

	s.recordAttempt(clientIP, creds.Username, journal.OutcomeSuccess)

	http.SetCookie(w, instruction.Cookie())
	s.writeJSON(w, http.StatusOK, loginResponse{Success: true})
}

// classifyLoginError maps issuer errors to an HTTP status and journal
// outcome. Unknown errors (including context cancellation during the
// failure delay) are treated as internal.
func classifyLoginError(err error) (int, journal.Outcome) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, journal.OutcomeBadInput
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, journal.OutcomeBadCredentials
	case errors.Is(err, auth.ErrMisconfigured):
		return http.StatusInternalServerError, journal.OutcomeMisconfigured
	default:
		return http.StatusInternalServerError, journal.OutcomeError
	}
}

// handleSession reports whether the request carries a valid session cookie.
// Always 200; every failure mode simply reads as unauthenticated.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		_, verifier := s.currentAuth()
		authenticated = verifier.Verify(cookie.Value)
	}

	s.writeJSON(w, http.StatusOK, sessionResponse{Authenticated: authenticated})
}

// handleHealth is a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// ============================================================================
// HELPERS
// ============================================================================

// recordAttempt journals a login attempt. Journal failures degrade to a log
// line; they never fail the login itself.
func (s *Server) recordAttempt(clientIP, username string, outcome journal.Outcome) {
	log.Printf("LOGIN_ATTEMPT | ip=%s outcome=%s", clientIP, outcome)

	if s.journal == nil {
		return
	}
	if err := s.journal.Append(journal.Record{
		ClientIP: clientIP,
		Username: username,
		Outcome:  outcome,
	}); err != nil {
		log.Printf("JOURNAL_APPEND_FAILED | error=%v", err)
	}
}

// writeJSON writes v as a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("RESPONSE_ENCODE_FAILED | error=%v", err)
	}
}
