// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppotepa/torrent-bot/internal/search"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndQueryHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	entries := []search.HistoryEntry{
		{Operator: "op-1", Query: "first", Mode: "narrow", ResultCount: 5, Signature: "aaaa"},
		{Operator: "op-1", Query: "second", Mode: "broad", ResultCount: 12, Signature: "bbbb"},
		{Operator: "op-2", Query: "other", Mode: "music", ResultCount: 3, Signature: "cccc"},
	}
	for _, entry := range entries {
		require.NoError(t, db.RecordSearch(ctx, entry))
	}

	mine, err := db.RecentSearches(ctx, "op-1", 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "second", mine[0].Query, "most recent first")
	assert.Equal(t, "first", mine[1].Query)
	assert.False(t, mine[0].CreatedAt.IsZero())

	all, err := db.RecentSearches(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecentSearchesLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, db.RecordSearch(ctx, search.HistoryEntry{
			Operator: "op-1", Query: "q", Mode: "narrow", Signature: "s",
		}))
	}

	entries, err := db.RecentSearches(ctx, "op-1", 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestNotifiedSet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	notified, err := db.WasNotified(ctx, "aaa")
	require.NoError(t, err)
	assert.False(t, notified)

	require.NoError(t, db.MarkNotified(ctx, "aaa"))

	notified, err = db.WasNotified(ctx, "aaa")
	require.NoError(t, err)
	assert.True(t, notified)

	// marking twice is harmless
	require.NoError(t, db.MarkNotified(ctx, "aaa"))
}
