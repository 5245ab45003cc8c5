// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import "errors"

// Login error taxonomy. The transport layer maps these to HTTP statuses;
// nothing else about a failure is exposed to the client.
var (
	// ErrInvalidInput indicates a missing username or password field.
	ErrInvalidInput = errors.New("username and password are required")

	// ErrInvalidCredentials indicates the submitted credentials do not match.
	// Returned identically whether the username, the password, or both were
	// wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMisconfigured indicates the reference credentials are not set on the
	// server. The missing field is logged server-side, never returned.
	ErrMisconfigured = errors.New("authentication is not configured")

	// ErrInternal indicates an unexpected server-side failure such as the
	// random source being unavailable.
	ErrInternal = errors.New("internal authentication error")
)
