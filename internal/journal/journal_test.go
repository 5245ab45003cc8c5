// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_AppendAndRecent(t *testing.T) {
	j := openTestJournal(t)

	base := time.Now().Add(-time.Hour)
	records := []Record{
		{At: base, ClientIP: "10.0.0.1", Username: "admin", Outcome: OutcomeBadCredentials},
		{At: base.Add(time.Minute), ClientIP: "10.0.0.1", Username: "admin", Outcome: OutcomeSuccess},
		{At: base.Add(2 * time.Minute), ClientIP: "10.0.0.2", Username: "", Outcome: OutcomeBadInput},
	}
	for _, r := range records {
		require.NoError(t, j.Append(r))
	}

	recent, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Newest first.
	require.Equal(t, OutcomeBadInput, recent[0].Outcome)
	require.Equal(t, OutcomeSuccess, recent[1].Outcome)
	require.Equal(t, OutcomeBadCredentials, recent[2].Outcome)
	require.Equal(t, "10.0.0.2", recent[0].ClientIP)
}

func TestJournal_RecentLimit(t *testing.T) {
	j := openTestJournal(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(Record{ClientIP: "127.0.0.1", Outcome: OutcomeBadCredentials}))
	}

	recent, err := j.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestJournal_AppendFillsTimestamp(t *testing.T) {
	j := openTestJournal(t)

	before := time.Now().Add(-time.Second)
	require.NoError(t, j.Append(Record{ClientIP: "127.0.0.1", Outcome: OutcomeSuccess}))

	recent, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.False(t, recent[0].At.Before(before))
}

func TestJournal_CountSince(t *testing.T) {
	j := openTestJournal(t)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, j.Append(Record{At: old, ClientIP: "127.0.0.1", Outcome: OutcomeBadCredentials}))
	require.NoError(t, j.Append(Record{ClientIP: "127.0.0.1", Outcome: OutcomeSuccess}))

	count, err := j.CountSince(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = j.CountSince(time.Now().Add(-72 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestJournal_Prune(t *testing.T) {
	j := openTestJournal(t)

	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, j.Append(Record{At: old, ClientIP: "127.0.0.1", Outcome: OutcomeBadCredentials}))
	require.NoError(t, j.Append(Record{ClientIP: "127.0.0.1", Outcome: OutcomeSuccess}))

	removed, err := j.Prune(time.Now().Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	recent, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, OutcomeSuccess, recent[0].Outcome)
}

func TestJournal_ClosedOperationsFail(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Close())

	require.ErrorIs(t, j.Append(Record{Outcome: OutcomeSuccess}), ErrClosed)
	_, err := j.Recent(1)
	require.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	require.NoError(t, j.Close())
}

func TestJournal_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(Record{ClientIP: "127.0.0.1", Username: "admin", Outcome: OutcomeSuccess}))
	require.NoError(t, j.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	recent, err := j2.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "admin", recent[0].Username)
}
