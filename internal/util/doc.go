// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across dashgate.
//
// AtomicWriteFile writes files crash-safely with fsync and an atomic
// rename; the config package uses it so credential files are never left
// half-written or with loose permissions. TruncateRunes is UTF-8 safe
// truncation for terminal display.
package util
