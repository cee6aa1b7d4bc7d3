// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppotepa/torrent-bot/internal/indexer"
)

func TestRankOrdering(t *testing.T) {
	candidates := []indexer.Candidate{
		{Title: "zebra release", Seeders: 10},
		{Title: "Alpha Release", Seeders: 50},
		{Title: "beta release", Seeders: 50},
		{Title: "gamma release", Seeders: 0},
	}

	ranked := Rank(candidates, 0)

	require.Len(t, ranked, 4)
	assert.Equal(t, "Alpha Release", ranked[0].Title, "equal seeders break ties by title, case-insensitive")
	assert.Equal(t, "beta release", ranked[1].Title)
	assert.Equal(t, "zebra release", ranked[2].Title)
	assert.Equal(t, "gamma release", ranked[3].Title)
}

func TestRankDedupByInfoHash(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef01234567"
	candidates := []indexer.Candidate{
		{Title: "Same Release From A", Seeders: 5, InfoHash: hash, Backend: "yts"},
		{Title: "Same Release From B", Seeders: 50, InfoHash: hash, Backend: "eztv"},
		{Title: "Different Release", Seeders: 1, InfoHash: "fedcba9876543210fedcba9876543210fedcba98"},
	}

	ranked := Rank(candidates, 0)

	require.Len(t, ranked, 2)
	// the higher-seeded copy of the duplicate survives
	assert.Equal(t, "eztv", ranked[0].Backend)
	assert.Equal(t, 50, ranked[0].Seeders)
}

func TestRankDedupByTitleAndSize(t *testing.T) {
	candidates := []indexer.Candidate{
		{Title: "Some  Release 1080p", Seeders: 9, Size: 1 << 30},
		{Title: "some release 1080p", Seeders: 3, Size: 1<<30 + 1024},
		{Title: "some release 1080p", Seeders: 2, Size: 40 << 30},
	}

	ranked := Rank(candidates, 0)

	require.Len(t, ranked, 2, "same title in the same size bucket collapses, far sizes stay apart")
	assert.Equal(t, 9, ranked[0].Seeders)
}

func TestRankTruncatesAfterDedup(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef01234567"
	candidates := []indexer.Candidate{
		{Title: "Dup A", Seeders: 100, InfoHash: hash},
		{Title: "Dup B", Seeders: 90, InfoHash: hash},
		{Title: "Unique One", Seeders: 50, InfoHash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{Title: "Unique Two", Seeders: 40, InfoHash: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
	}

	ranked := Rank(candidates, 2)

	require.Len(t, ranked, 2)
	assert.Equal(t, "Dup A", ranked[0].Title)
	assert.Equal(t, "Unique One", ranked[1].Title, "truncation happens after dedup, not before")
}

func TestRankDeterministic(t *testing.T) {
	candidates := []indexer.Candidate{
		{Title: "b", Seeders: 5},
		{Title: "a", Seeders: 5},
		{Title: "c", Seeders: 7},
	}

	first := Rank(candidates, 0)
	second := Rank(candidates, 0)

	assert.Equal(t, first, second)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	candidates := []indexer.Candidate{
		{Title: "b", Seeders: 1},
		{Title: "a", Seeders: 9},
	}

	Rank(candidates, 0)

	assert.Equal(t, "b", candidates[0].Title)
}

func TestSeededCount(t *testing.T) {
	candidates := []indexer.Candidate{
		{Seeders: 3},
		{Seeders: 0},
		{Seeders: 1},
	}

	assert.Equal(t, 2, SeededCount(candidates))
	assert.Zero(t, SeededCount(nil))
}
