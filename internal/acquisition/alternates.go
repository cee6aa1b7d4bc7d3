// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package acquisition

import (
	"context"
	"fmt"
	"time"

	"github.com/ppotepa/torrent-bot/internal/indexer"
)

// AlternateSource finds other backends carrying the same release by
// re-searching the broad backend set with the candidate's title, excluding
// the backend that already failed.
type AlternateSource struct {
	registry *indexer.Registry
	gateway  *indexer.Gateway
	timeout  time.Duration
}

func NewAlternateSource(registry *indexer.Registry, gateway *indexer.Gateway, timeout time.Duration) *AlternateSource {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AlternateSource{
		registry: registry,
		gateway:  gateway,
		timeout:  timeout,
	}
}

func (a *AlternateSource) SearchAlternates(ctx context.Context, cand indexer.Candidate) ([]indexer.Candidate, error) {
	backends, err := a.registry.Resolve(ctx, indexer.ModeBroad)
	if err != nil {
		return nil, fmt.Errorf("resolve alternate backends: %w", err)
	}

	filtered := make([]string, 0, len(backends))
	for _, backend := range backends {
		if backend != cand.Backend {
			filtered = append(filtered, backend)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no alternate backends beyond %s", cand.Backend)
	}

	found, _ := a.gateway.FanOut(ctx, cand.Title, filtered, indexer.FanOutOptions{
		OverallTimeout: a.timeout,
	})
	return found, nil
}
