// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/ppotepa/torrent-bot/internal/domain"
	"github.com/ppotepa/torrent-bot/internal/indexer"
	"github.com/ppotepa/torrent-bot/internal/metrics"
)

// escalationThreshold is the minimum seeded-result count a narrow search must
// reach before the escalation pass is skipped.
const escalationThreshold = 3

// HistoryEntry is the metadata recorded for one completed search. Result
// payloads are never persisted.
type HistoryEntry struct {
	Operator    string
	Query       string
	Mode        string
	ResultCount int
	Signature   string
	CreatedAt   time.Time
}

// HistoryRecorder persists search metadata.
type HistoryRecorder interface {
	RecordSearch(ctx context.Context, entry HistoryEntry) error
}

// Request describes one operator search.
type Request struct {
	Operator string
	Query    string
	Mode     indexer.Mode
	// Folder is the download destination associated with the session.
	Folder string
	// Limit overrides the mode's configured result limit when positive.
	Limit int
	// OnProgress receives per-backend completion events when set.
	OnProgress func(indexer.Progress)
}

// Response is the outcome of a search: ranked candidates plus the
// per-backend status report.
type Response struct {
	Candidates []indexer.Candidate
	Report     indexer.Report
	Mode       indexer.Mode
	Escalated  bool
}

// Service orchestrates a search: resolve backends, fan out, rank, store the
// operator session, record history.
type Service struct {
	registry *indexer.Registry
	gateway  *indexer.Gateway
	sessions *SessionStore
	history  HistoryRecorder
	cfg      domain.SearchConfig
}

func NewService(registry *indexer.Registry, gateway *indexer.Gateway, sessions *SessionStore, history HistoryRecorder, cfg domain.SearchConfig) *Service {
	return &Service{
		registry: registry,
		gateway:  gateway,
		sessions: sessions,
		history:  history,
		cfg:      cfg,
	}
}

// Sessions exposes the session store for selection handling.
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

func (s *Service) modeConfig(mode indexer.Mode) domain.ModeConfig {
	switch mode {
	case indexer.ModeBroad:
		return s.cfg.Broad
	case indexer.ModeExhaustive:
		return s.cfg.Exhaustive
	case indexer.ModeMusic:
		return s.cfg.Music
	default:
		return s.cfg.Narrow
	}
}

// Search runs the full pipeline and stores the operator's session. Partial
// backend failures are reported, not fatal; an error is returned only when
// the query is unusable or no backend could be resolved.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if req.Operator == "" {
		return nil, fmt.Errorf("operator id must not be empty")
	}
	mode := req.Mode
	if mode == "" {
		mode = indexer.ModeNarrow
	}

	backends, err := s.registry.Resolve(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("resolve backends for mode %s: %w", mode, err)
	}

	modeCfg := s.modeConfig(mode)
	limit := modeCfg.Limit
	if req.Limit > 0 {
		limit = req.Limit
	}
	overall := time.Duration(modeCfg.TimeoutSeconds) * time.Second

	started := time.Now()
	log.Info().Str("module", "search").
		Str("operator", req.Operator).
		Str("mode", string(mode)).
		Int("backends", len(backends)).
		Msg("starting search")

	candidates, report := s.gateway.FanOut(ctx, query, backends, indexer.FanOutOptions{
		OverallTimeout: overall,
		OnProgress:     req.OnProgress,
	})
	ranked := Rank(candidates, limit)

	// A thin narrow-mode answer escalates once over the wider backend set.
	escalated := false
	if mode == indexer.ModeNarrow && SeededCount(ranked) < escalationThreshold {
		if extra := s.registry.ExtendedSet(ctx, backends); len(extra) > 0 {
			log.Debug().Str("module", "search").
				Int("seeded", SeededCount(ranked)).
				Int("extraBackends", len(extra)).
				Msg("escalating narrow search to wider backend set")

			more, extraReport := s.gateway.FanOut(ctx, query, extra, indexer.FanOutOptions{
				OverallTimeout: overall,
				OnProgress:     req.OnProgress,
			})
			for backend, status := range extraReport {
				report[backend] = status
			}
			ranked = Rank(append(candidates, more...), limit)
			escalated = true
		}
	}

	s.sessions.Store(req.Operator, &Session{
		Results: ranked,
		Folder:  req.Folder,
		Mode:    mode,
		Query:   query,
	})

	s.recordHistory(ctx, req.Operator, query, mode, ranked)

	ok, timeout, failed := report.Counts()
	metrics.SearchesTotal.WithLabelValues(string(mode)).Inc()
	metrics.SearchResultsTotal.WithLabelValues(string(mode)).Add(float64(len(ranked)))
	metrics.BackendQueriesTotal.WithLabelValues("ok").Add(float64(ok))
	metrics.BackendQueriesTotal.WithLabelValues("timeout").Add(float64(timeout))
	metrics.BackendQueriesTotal.WithLabelValues("error").Add(float64(failed))

	log.Info().Str("module", "search").
		Str("operator", req.Operator).
		Str("mode", string(mode)).
		Int("results", len(ranked)).
		Bool("escalated", escalated).
		Dur("elapsed", time.Since(started)).
		Msg("search complete")

	return &Response{
		Candidates: ranked,
		Report:     report,
		Mode:       mode,
		Escalated:  escalated,
	}, nil
}

// Select resolves a 1-based pick from the operator's current session.
func (s *Service) Select(operator string, index int) (indexer.Candidate, *Session, error) {
	cand, err := s.sessions.Select(operator, index)
	if err != nil {
		return indexer.Candidate{}, nil, err
	}
	session, _ := s.sessions.Get(operator)
	return cand, session, nil
}

func (s *Service) recordHistory(ctx context.Context, operator, query string, mode indexer.Mode, ranked []indexer.Candidate) {
	if s.history == nil {
		return
	}

	digest := xxhash.New()
	for _, c := range ranked {
		_, _ = digest.WriteString(dedupKey(c))
		_, _ = digest.WriteString("\n")
	}

	entry := HistoryEntry{
		Operator:    operator,
		Query:       query,
		Mode:        string(mode),
		ResultCount: len(ranked),
		Signature:   fmt.Sprintf("%016x", digest.Sum64()),
	}
	if err := s.history.RecordSearch(ctx, entry); err != nil {
		log.Warn().Str("module", "search").Err(err).Msg("failed to record search history")
	}
}
