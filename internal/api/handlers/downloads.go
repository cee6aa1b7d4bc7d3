// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ppotepa/torrent-bot/internal/acquisition"
	"github.com/ppotepa/torrent-bot/internal/qbittorrent"
	"github.com/ppotepa/torrent-bot/internal/search"
)

type DownloadsHandler struct {
	service  *search.Service
	engine   *acquisition.Engine
	gateway  *qbittorrent.Gateway
	saveRoot string
}

func NewDownloadsHandler(service *search.Service, engine *acquisition.Engine, gateway *qbittorrent.Gateway, saveRoot string) *DownloadsHandler {
	return &DownloadsHandler{
		service:  service,
		engine:   engine,
		gateway:  gateway,
		saveRoot: saveRoot,
	}
}

func (h *DownloadsHandler) Routes(r chi.Router) {
	r.Post("/select", h.selectResult)
	r.Get("/downloads", h.list)
	r.Get("/downloads/{id}", h.status)
	r.Delete("/downloads/{id}", h.delete)
}

type selectRequest struct {
	Operator string `json:"operator"`
	Index    int    `json:"index"`
}

func (h *DownloadsHandler) selectResult(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cand, session, err := h.service.Select(req.Operator, req.Index)
	if err != nil {
		var rangeErr *search.RangeError
		switch {
		case errors.Is(err, search.ErrNoSession):
			RespondError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &rangeErr):
			RespondError(w, http.StatusBadRequest, err.Error())
		default:
			RespondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	savePath := h.saveRoot
	if session.Folder != "" {
		savePath = session.Folder
	}

	result := h.engine.Run(r.Context(), cand, savePath)
	if !result.Succeeded {
		log.Warn().Str("operator", req.Operator).
			Str("title", cand.Title).
			Msg("acquisition failed for selection")
		RespondJSON(w, http.StatusBadGateway, result)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (h *DownloadsHandler) list(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.gateway.List(r.Context())
	if err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, tasks)
}

func (h *DownloadsHandler) status(w http.ResponseWriter, r *http.Request) {
	task, err := h.gateway.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, qbittorrent.ErrTaskNotFound) {
			RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, task)
}

func (h *DownloadsHandler) delete(w http.ResponseWriter, r *http.Request) {
	removeFiles := r.URL.Query().Get("removeFiles") == "true"
	if err := h.gateway.Delete(r.Context(), chi.URLParam(r, "id"), removeFiles); err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
