// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ppotepa/torrent-bot/internal/database"
)

type HistoryHandler struct {
	db *database.DB
}

func NewHistoryHandler(db *database.DB) *HistoryHandler {
	return &HistoryHandler{db: db}
}

func (h *HistoryHandler) Routes(r chi.Router) {
	r.Get("/history", h.history)
}

func (h *HistoryHandler) history(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		RespondError(w, http.StatusServiceUnavailable, "history storage is disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.db.RecentSearches(r.Context(), r.URL.Query().Get("operator"), limit)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, entries)
}
