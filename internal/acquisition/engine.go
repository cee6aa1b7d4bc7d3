// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package acquisition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/ppotepa/torrent-bot/internal/domain"
	"github.com/ppotepa/torrent-bot/internal/indexer"
	"github.com/ppotepa/torrent-bot/internal/metrics"
)

// Strategy names one rung of the acquisition ladder.
type Strategy string

const (
	StrategyMagnet              Strategy = "magnet"
	StrategyDirectFile          Strategy = "direct-file"
	StrategyReconstructedMagnet Strategy = "reconstructed-magnet"
	StrategyAlternateSource     Strategy = "alternate-source"
)

// Outcome is the result of one strategy attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Attempt is one audit-trail entry.
type Attempt struct {
	Strategy Strategy  `json:"strategy"`
	Outcome  Outcome   `json:"outcome"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Result is the terminal state of an acquisition run: either a submitted task
// id or the full trail of what was tried.
type Result struct {
	Succeeded bool              `json:"succeeded"`
	TaskID    string            `json:"taskId,omitempty"`
	Candidate indexer.Candidate `json:"candidate"`
	Attempts  []Attempt         `json:"attempts"`
}

// FailureSummary joins the trail into one line for operator display.
func (r *Result) FailureSummary() string {
	parts := make([]string, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		if a.Outcome == OutcomeSkipped {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", a.Strategy, a.Detail))
	}
	return strings.Join(parts, "; ")
}

// DownloadClient submits payloads to the download client.
type DownloadClient interface {
	SubmitMagnet(ctx context.Context, magnetURI, savePath string) (string, error)
	SubmitFile(ctx context.Context, data []byte, savePath string) (string, error)
}

// FileFetcher retrieves torrent bytes from an indexer download URL.
// Implemented by *indexer.Client.
type FileFetcher interface {
	Download(ctx context.Context, downloadURL string) ([]byte, error)
}

// AlternateSearcher finds same-release candidates on other backends.
type AlternateSearcher interface {
	SearchAlternates(ctx context.Context, cand indexer.Candidate) ([]indexer.Candidate, error)
}

// alternateEnv is the expression environment for the configurable
// alternate-candidate filter.
type alternateEnv struct {
	Title     string `expr:"Title"`
	Seeders   int    `expr:"Seeders"`
	Peers     int    `expr:"Peers"`
	Backend   string `expr:"Backend"`
	Source    string `expr:"Source"`
	Media     string `expr:"Media"`
	Size      int64  `expr:"Size"`
	HasMagnet bool   `expr:"HasMagnet"`
}

// Engine walks the strategy ladder for a selected candidate until one
// submission sticks or every eligible rung has failed.
type Engine struct {
	client     DownloadClient
	fetcher    FileFetcher
	alternates AlternateSearcher
	cfg        domain.FallbackConfig
	filter     *vm.Program
}

func NewEngine(client DownloadClient, fetcher FileFetcher, alternates AlternateSearcher, cfg domain.FallbackConfig) (*Engine, error) {
	if cfg.FetchRetries <= 0 {
		cfg.FetchRetries = 2
	}

	var filter *vm.Program
	if cfg.AlternateFilter != "" {
		program, err := expr.Compile(cfg.AlternateFilter, expr.Env(alternateEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile alternate filter %q: %w", cfg.AlternateFilter, err)
		}
		filter = program
	}

	return &Engine{
		client:     client,
		fetcher:    fetcher,
		alternates: alternates,
		cfg:        cfg,
		filter:     filter,
	}, nil
}

// Run executes the acquisition chain for one candidate. The returned result
// is terminal; callers inspect Succeeded and the attempt trail.
func (e *Engine) Run(ctx context.Context, cand indexer.Candidate, savePath string) *Result {
	res := e.run(ctx, cand, savePath, true)
	if res.Succeeded {
		metrics.AcquisitionsTotal.WithLabelValues("succeeded").Inc()
	} else {
		metrics.AcquisitionsTotal.WithLabelValues("failed").Inc()
	}
	return res
}

func (e *Engine) run(ctx context.Context, cand indexer.Candidate, savePath string, allowDetour bool) *Result {
	res := &Result{Candidate: cand}

	if e.tryMagnet(ctx, res, cand, savePath) {
		return res
	}
	if e.tryDirectFile(ctx, res, cand, savePath) {
		return res
	}
	if e.tryReconstructedMagnet(ctx, res, cand, savePath) {
		return res
	}
	if allowDetour && e.tryAlternateSource(ctx, res, cand, savePath) {
		return res
	}

	log.Warn().Str("module", "acquisition").
		Str("title", cand.Title).
		Str("trail", res.FailureSummary()).
		Msg("acquisition exhausted all strategies")
	return res
}

func (e *Engine) record(res *Result, strategy Strategy, outcome Outcome, detail string) {
	res.Attempts = append(res.Attempts, Attempt{
		Strategy: strategy,
		Outcome:  outcome,
		Detail:   detail,
		At:       time.Now(),
	})
	metrics.AcquisitionAttemptsTotal.WithLabelValues(string(strategy), string(outcome)).Inc()
}

func (e *Engine) succeed(res *Result, strategy Strategy, taskID string) {
	e.record(res, strategy, OutcomeSucceeded, "")
	res.Succeeded = true
	res.TaskID = taskID
	log.Info().Str("module", "acquisition").
		Str("strategy", string(strategy)).
		Str("taskId", taskID).
		Msg("download submitted")
}

func (e *Engine) tryMagnet(ctx context.Context, res *Result, cand indexer.Candidate, savePath string) bool {
	if !cand.HasMagnet() {
		e.record(res, StrategyMagnet, OutcomeSkipped, "candidate has no magnet URI")
		return false
	}

	taskID, err := e.client.SubmitMagnet(ctx, cand.MagnetURI, savePath)
	if err != nil {
		e.record(res, StrategyMagnet, OutcomeFailed, err.Error())
		return false
	}
	e.succeed(res, StrategyMagnet, taskID)
	return true
}

func (e *Engine) tryDirectFile(ctx context.Context, res *Result, cand indexer.Candidate, savePath string) bool {
	if cand.FileURL == "" {
		e.record(res, StrategyDirectFile, OutcomeSkipped, "candidate has no download URL")
		return false
	}
	if e.fetcher == nil {
		e.record(res, StrategyDirectFile, OutcomeSkipped, "no file fetcher configured")
		return false
	}

	var data []byte
	err := retry.Do(
		func() error {
			var err error
			data, err = e.fetcher.Download(ctx, cand.FileURL)
			return err
		},
		retry.Attempts(uint(e.cfg.FetchRetries)),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		e.record(res, StrategyDirectFile, OutcomeFailed, fmt.Sprintf("fetch: %v", err))
		return false
	}

	taskID, err := e.client.SubmitFile(ctx, data, savePath)
	if err != nil {
		e.record(res, StrategyDirectFile, OutcomeFailed, err.Error())
		return false
	}
	e.succeed(res, StrategyDirectFile, taskID)
	return true
}

func (e *Engine) tryReconstructedMagnet(ctx context.Context, res *Result, cand indexer.Candidate, savePath string) bool {
	if cand.InfoHash == "" {
		e.record(res, StrategyReconstructedMagnet, OutcomeSkipped, "candidate has no info hash")
		return false
	}

	magnetURI, err := BuildMagnet(cand.InfoHash, cand.Title)
	if err != nil {
		e.record(res, StrategyReconstructedMagnet, OutcomeFailed, err.Error())
		return false
	}

	taskID, err := e.client.SubmitMagnet(ctx, magnetURI, savePath)
	if err != nil {
		e.record(res, StrategyReconstructedMagnet, OutcomeFailed, err.Error())
		return false
	}
	e.succeed(res, StrategyReconstructedMagnet, taskID)
	return true
}

// tryAlternateSource re-searches other backends for the same release and
// runs the ladder once on the best match. One detour, never nested.
func (e *Engine) tryAlternateSource(ctx context.Context, res *Result, cand indexer.Candidate, savePath string) bool {
	if !e.cfg.Aggressive {
		e.record(res, StrategyAlternateSource, OutcomeSkipped, "aggressive fallback disabled")
		return false
	}
	if e.alternates == nil {
		e.record(res, StrategyAlternateSource, OutcomeSkipped, "no alternate searcher configured")
		return false
	}

	found, err := e.alternates.SearchAlternates(ctx, cand)
	if err != nil {
		e.record(res, StrategyAlternateSource, OutcomeFailed, fmt.Sprintf("alternate search: %v", err))
		return false
	}

	best, ok := e.pickAlternate(cand, found)
	if !ok {
		e.record(res, StrategyAlternateSource, OutcomeFailed, "no matching alternate candidate")
		return false
	}

	log.Debug().Str("module", "acquisition").
		Str("title", best.Title).
		Str("backend", best.Backend).
		Msg("retrying acquisition via alternate source")

	detour := e.run(ctx, best, savePath, false)
	res.Attempts = append(res.Attempts, detour.Attempts...)
	if !detour.Succeeded {
		e.record(res, StrategyAlternateSource, OutcomeFailed, "alternate candidate exhausted its chain")
		return false
	}

	res.Succeeded = true
	res.TaskID = detour.TaskID
	e.record(res, StrategyAlternateSource, OutcomeSucceeded, "via "+best.Backend)
	return true
}

// pickAlternate keeps candidates from other backends whose titles fuzzily
// match the original, applies the configured filter, and returns the best
// seeded match.
func (e *Engine) pickAlternate(original indexer.Candidate, found []indexer.Candidate) (indexer.Candidate, bool) {
	var best indexer.Candidate
	bestScore := -1

	for _, alt := range found {
		if alt.Backend == original.Backend && alt.InfoHash == original.InfoHash {
			continue
		}
		if !alt.HasMagnet() && alt.FileURL == "" && alt.InfoHash == "" {
			continue
		}
		origTitle := sanitizeTitle(original.Title)
		altTitle := sanitizeTitle(alt.Title)
		if !fuzzy.MatchNormalizedFold(origTitle, altTitle) &&
			!fuzzy.MatchNormalizedFold(altTitle, origTitle) {
			continue
		}
		if !e.passesFilter(original, alt) {
			continue
		}
		if alt.Seeders > bestScore {
			bestScore = alt.Seeders
			best = alt
		}
	}

	return best, bestScore >= 0
}

// sanitizeTitle collapses scene-name separators so dotted and spaced
// spellings of the same release compare equal.
func sanitizeTitle(title string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-':
			return ' '
		}
		return r
	}, title)
	return strings.Join(strings.Fields(mapped), " ")
}

func (e *Engine) passesFilter(original, alt indexer.Candidate) bool {
	if e.filter == nil {
		return true
	}
	out, err := expr.Run(e.filter, alternateEnv{
		Title:     alt.Title,
		Seeders:   alt.Seeders,
		Peers:     alt.Peers,
		Backend:   alt.Backend,
		Source:    original.Backend,
		Media:     string(alt.Media),
		Size:      alt.Size,
		HasMagnet: alt.HasMagnet(),
	})
	if err != nil {
		log.Warn().Str("module", "acquisition").Err(err).
			Msg("alternate filter evaluation failed, keeping candidate")
		return true
	}
	pass, _ := out.(bool)
	return pass
}
