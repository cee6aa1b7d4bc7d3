// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ppotepa/torrent-bot/internal/indexer"
	"github.com/ppotepa/torrent-bot/internal/search"
)

type SearchHandler struct {
	service *search.Service
}

func NewSearchHandler(service *search.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) Routes(r chi.Router) {
	r.Post("/search", h.search)
}

type searchRequest struct {
	Operator string `json:"operator"`
	Query    string `json:"query"`
	Mode     string `json:"mode"`
	Folder   string `json:"folder"`
	Limit    int    `json:"limit"`
}

type searchResponse struct {
	Results   []resultEntry  `json:"results"`
	Report    indexer.Report `json:"report"`
	Mode      indexer.Mode   `json:"mode"`
	Escalated bool           `json:"escalated"`
}

// resultEntry pairs a candidate with its 1-based selection index so clients
// display exactly what Select expects back.
type resultEntry struct {
	Index int `json:"index"`
	indexer.Candidate
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := indexer.ParseMode(req.Mode)
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Search(r.Context(), search.Request{
		Operator: req.Operator,
		Query:    req.Query,
		Mode:     mode,
		Folder:   req.Folder,
		Limit:    req.Limit,
	})
	if err != nil {
		log.Debug().Err(err).Msg("search request failed")
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := make([]resultEntry, 0, len(resp.Candidates))
	for i, cand := range resp.Candidates {
		results = append(results, resultEntry{Index: i + 1, Candidate: cand})
	}

	RespondJSON(w, http.StatusOK, searchResponse{
		Results:   results,
		Report:    resp.Report,
		Mode:      resp.Mode,
		Escalated: resp.Escalated,
	})
}
