// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppotepa/torrent-bot/internal/indexer"
)

// sizeBucket groups sizes into 64 MiB buckets so the same release reported
// with slightly different byte counts still collapses.
const sizeBucketShift = 26

// Rank orders and deduplicates merged candidates: sort by seeders descending
// with case-insensitive title as tiebreak, collapse duplicates, then truncate
// to limit (limit <= 0 means no truncation). Ranking the same input twice
// yields the same output.
func Rank(candidates []indexer.Candidate, limit int) []indexer.Candidate {
	sorted := append([]indexer.Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Seeders != sorted[j].Seeders {
			return sorted[i].Seeders > sorted[j].Seeders
		}
		return strings.ToLower(sorted[i].Title) < strings.ToLower(sorted[j].Title)
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]indexer.Candidate, 0, len(sorted))
	for _, cand := range sorted {
		key := dedupKey(cand)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cand)
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// dedupKey prefers the info hash; candidates without one fall back to
// normalized title plus size bucket.
func dedupKey(c indexer.Candidate) string {
	if c.InfoHash != "" {
		return "h:" + c.InfoHash
	}
	title := strings.Join(strings.Fields(strings.ToLower(c.Title)), " ")
	return fmt.Sprintf("t:%s|%d", title, c.Size>>sizeBucketShift)
}

// SeededCount returns how many candidates report at least one seeder. It
// drives the narrow-mode escalation decision.
func SeededCount(candidates []indexer.Candidate) int {
	n := 0
	for _, c := range candidates {
		if c.Seeders > 0 {
			n++
		}
	}
	return n
}
