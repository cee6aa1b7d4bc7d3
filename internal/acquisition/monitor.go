// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package acquisition

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppotepa/torrent-bot/internal/metrics"
	"github.com/ppotepa/torrent-bot/internal/qbittorrent"
)

// TaskLister reads the download client's current tasks.
type TaskLister interface {
	List(ctx context.Context) ([]qbittorrent.Task, error)
}

// NotifiedStore remembers which completions were already surfaced so a
// restart does not re-notify.
type NotifiedStore interface {
	WasNotified(ctx context.Context, taskID string) (bool, error)
	MarkNotified(ctx context.Context, taskID string) error
}

// CompletionHandler receives a newly completed task at most once: the task is
// marked in the notified set before the handler fires, so a handler is never
// re-invoked for the same completion.
type CompletionHandler func(task qbittorrent.Task)

// Monitor polls the download client and fires the handler for completions
// that have not been notified before.
type Monitor struct {
	client   TaskLister
	store    NotifiedStore
	handler  CompletionHandler
	interval time.Duration
}

func NewMonitor(client TaskLister, store NotifiedStore, handler CompletionHandler, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		client:   client,
		store:    store,
		handler:  handler,
		interval: interval,
	}
}

// Run polls until the context is cancelled. It blocks; run it in its own
// goroutine.
func (m *Monitor) Run(ctx context.Context) {
	log.Info().Str("module", "monitor").
		Dur("interval", m.interval).
		Msg("completion monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "monitor").Msg("completion monitor stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	tasks, err := m.client.List(ctx)
	if err != nil {
		log.Warn().Str("module", "monitor").Err(err).
			Msg("could not list downloads")
		return
	}

	for _, task := range tasks {
		if !task.Complete {
			continue
		}
		notified, err := m.store.WasNotified(ctx, task.ID)
		if err != nil {
			log.Warn().Str("module", "monitor").Err(err).
				Str("taskId", task.ID).
				Msg("notified-set lookup failed")
			continue
		}
		if notified {
			continue
		}

		// Mark before firing: a failed write retries next sweep without the
		// handler having run, so a completion can never notify twice.
		if err := m.store.MarkNotified(ctx, task.ID); err != nil {
			log.Warn().Str("module", "monitor").Err(err).
				Str("taskId", task.ID).
				Msg("could not persist notification state")
			continue
		}
		if m.handler != nil {
			m.handler(task)
		}
		metrics.CompletionsNotifiedTotal.Inc()
		log.Info().Str("module", "monitor").
			Str("taskId", task.ID).
			Str("name", task.Name).
			Msg("download complete")
	}
}
