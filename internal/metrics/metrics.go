// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// SearchesTotal counts completed searches by mode.
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torrentbot_searches_total",
		Help: "Completed searches by mode.",
	}, []string{"mode"})

	// SearchResultsTotal counts ranked results returned to operators.
	SearchResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torrentbot_search_results_total",
		Help: "Ranked results returned, by mode.",
	}, []string{"mode"})

	// BackendQueriesTotal counts per-backend query outcomes.
	BackendQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torrentbot_backend_queries_total",
		Help: "Backend query outcomes (ok, timeout, error).",
	}, []string{"status"})

	// AcquisitionAttemptsTotal counts acquisition strategy attempts.
	AcquisitionAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torrentbot_acquisition_attempts_total",
		Help: "Acquisition attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	// AcquisitionsTotal counts terminal acquisition outcomes.
	AcquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "torrentbot_acquisitions_total",
		Help: "Terminal acquisition outcomes (succeeded, failed).",
	}, []string{"outcome"})

	// CompletionsNotifiedTotal counts download-completion notifications.
	CompletionsNotifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "torrentbot_completions_notified_total",
		Help: "Download completions surfaced to operators.",
	})
)

// Serve starts a dedicated metrics listener. It blocks; run it in its own
// goroutine.
func Serve(host string, port int) error {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("module", "metrics").Str("addr", addr).Msg("metrics listener starting")
	return srv.ListenAndServe()
}
