// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	minFanOutWorkers = 4
	maxFanOutWorkers = 12
)

// BackendStatus records how a single backend's query ended.
type BackendStatus string

const (
	StatusOK      BackendStatus = "ok"
	StatusTimeout BackendStatus = "timeout"
	StatusError   BackendStatus = "error"
)

// Report maps backend ID to its query outcome.
type Report map[string]BackendStatus

// Counts summarises a report for logging and diagnostics.
func (r Report) Counts() (ok, timeout, failed int) {
	for _, status := range r {
		switch status {
		case StatusOK:
			ok++
		case StatusTimeout:
			timeout++
		default:
			failed++
		}
	}
	return ok, timeout, failed
}

// Progress is an optional per-backend completion event emitted during a
// fan-out, for live operator feedback.
type Progress struct {
	Backend string
	Status  BackendStatus
	Found   int
}

// Searcher executes a single-backend query. Implemented by *Client.
type Searcher interface {
	SearchIndexer(ctx context.Context, indexerID, query string) ([]RawRecord, error)
}

// Gateway fans a query out over a set of backends with a bounded worker pool
// and collects normalized candidates. A slow or failing backend never blocks
// the rest; partial results are valid.
type Gateway struct {
	searcher       Searcher
	perCallTimeout time.Duration
}

func NewGateway(searcher Searcher, perCallTimeout time.Duration) *Gateway {
	if perCallTimeout <= 0 {
		perCallTimeout = 12 * time.Second
	}
	return &Gateway{
		searcher:       searcher,
		perCallTimeout: perCallTimeout,
	}
}

// FanOutOptions tunes a single fan-out.
type FanOutOptions struct {
	// OverallTimeout bounds the whole fan-out; zero means no ceiling beyond
	// the caller's context.
	OverallTimeout time.Duration
	// OnProgress, when set, receives one event per finished backend. Called
	// from the collector goroutine, never concurrently.
	OnProgress func(Progress)
}

type fanOutResult struct {
	backend    string
	candidates []Candidate
	err        error
}

// poolSize scales the worker bound with the backend count: half the backends,
// floored at 4, capped at 12.
func poolSize(backendCount int) int {
	n := backendCount / 2
	if n < minFanOutWorkers {
		n = minFanOutWorkers
	}
	if n > maxFanOutWorkers {
		n = maxFanOutWorkers
	}
	return n
}

// FanOut queries every backend concurrently and returns the merged candidate
// list plus a per-backend status report. The report always has one entry per
// requested backend.
func (g *Gateway) FanOut(ctx context.Context, query string, backends []string, opts FanOutOptions) ([]Candidate, Report) {
	report := make(Report, len(backends))
	if len(backends) == 0 {
		return nil, report
	}

	if opts.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.OverallTimeout)
		defer cancel()
	}

	sem := semaphore.NewWeighted(int64(poolSize(len(backends))))
	results := make(chan fanOutResult, len(backends))

	for _, backend := range backends {
		go func(backend string) {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- fanOutResult{backend: backend, err: err}
				return
			}
			defer sem.Release(1)

			callCtx, cancel := context.WithTimeout(ctx, g.perCallTimeout)
			defer cancel()

			records, err := g.searcher.SearchIndexer(callCtx, backend, query)
			if err != nil {
				results <- fanOutResult{backend: backend, err: err}
				return
			}

			candidates := make([]Candidate, 0, len(records))
			for _, rec := range records {
				cand, err := Normalize(backend, rec)
				if err != nil {
					log.Trace().Str("module", "indexer").
						Str("backend", backend).Err(err).
						Msg("dropping malformed record")
					continue
				}
				candidates = append(candidates, cand)
			}
			results <- fanOutResult{backend: backend, candidates: candidates}
		}(backend)
	}

	var merged []Candidate
	pending := len(backends)

collect:
	for pending > 0 {
		select {
		case res := <-results:
			pending--
			status := StatusOK
			switch {
			case res.err == nil:
				merged = append(merged, res.candidates...)
			case isTimeout(res.err):
				status = StatusTimeout
			default:
				status = StatusError
				log.Debug().Str("module", "indexer").
					Str("backend", res.backend).Err(res.err).
					Msg("backend query failed")
			}
			report[res.backend] = status
			if opts.OnProgress != nil {
				opts.OnProgress(Progress{
					Backend: res.backend,
					Status:  status,
					Found:   len(res.candidates),
				})
			}
		case <-ctx.Done():
			break collect
		}
	}

	// Backends that never reported before the ceiling hit count as timeouts.
	for _, backend := range backends {
		if _, ok := report[backend]; !ok {
			report[backend] = StatusTimeout
			if opts.OnProgress != nil {
				opts.OnProgress(Progress{Backend: backend, Status: StatusTimeout})
			}
		}
	}

	ok, timeout, failed := report.Counts()
	log.Debug().Str("module", "indexer").
		Int("backends", len(backends)).
		Int("ok", ok).Int("timeout", timeout).Int("error", failed).
		Int("candidates", len(merged)).
		Msg("fan-out complete")

	return merged, report
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
