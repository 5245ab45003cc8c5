// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the dashgate HTTP API.
//
// Endpoints:
//   - POST /login   - Verify credentials and set the session cookie
//   - GET  /session - Report whether the session cookie is valid
//   - GET  /health  - Health check
//
// The middleware stack adds panic recovery, security headers, request
// logging with per-request IDs, and a per-IP rate limit on the login
// endpoint. Responses never carry token material or internal error detail.
package server
