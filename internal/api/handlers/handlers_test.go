// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppotepa/torrent-bot/internal/acquisition"
	"github.com/ppotepa/torrent-bot/internal/domain"
	"github.com/ppotepa/torrent-bot/internal/indexer"
	"github.com/ppotepa/torrent-bot/internal/search"
)

type staticSearcher struct {
	records map[string][]indexer.RawRecord
}

func (s *staticSearcher) SearchIndexer(ctx context.Context, indexerID, query string) ([]indexer.RawRecord, error) {
	return s.records[indexerID], nil
}

type fakeDownloadClient struct {
	submitted []string
}

func (f *fakeDownloadClient) SubmitMagnet(ctx context.Context, magnetURI, savePath string) (string, error) {
	f.submitted = append(f.submitted, savePath)
	return indexer.ExtractInfoHash(magnetURI), nil
}

func (f *fakeDownloadClient) SubmitFile(ctx context.Context, data []byte, savePath string) (string, error) {
	return "", nil
}

func newTestRouter(t *testing.T, client acquisition.DownloadClient) (*chi.Mux, *search.Service) {
	t.Helper()

	cfg := domain.SearchConfig{
		Indexers: []string{"yts"},
		Narrow:   domain.ModeConfig{Limit: 10, TimeoutSeconds: 5},
		Broad:    domain.ModeConfig{Limit: 15, TimeoutSeconds: 5},
	}
	registry, err := indexer.NewRegistry(cfg.Indexers, "", nil)
	require.NoError(t, err)

	searcher := &staticSearcher{records: map[string][]indexer.RawRecord{
		"yts": {
			{"Title": "Alpha.1080p", "Seeders": 30,
				"MagnetUri": "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567"},
			{"Title": "Beta.1080p", "Seeders": 20,
				"MagnetUri": "magnet:?xt=urn:btih:fedcba9876543210fedcba9876543210fedcba98"},
			{"Title": "Gamma.1080p", "Seeders": 10,
				"MagnetUri": "magnet:?xt=urn:btih:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		},
	}}
	gateway := indexer.NewGateway(searcher, time.Second)
	service := search.NewService(registry, gateway, search.NewSessionStore(time.Minute), nil, cfg)

	engine, err := acquisition.NewEngine(client, nil, nil, domain.FallbackConfig{})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewHealthHandler("test").Routes(r)
		NewSearchHandler(service).Routes(r)
		NewDownloadsHandler(service, engine, nil, "/downloads/default").Routes(r)
	})
	return r, service
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeDownloadClient{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeDownloadClient{})

	body, _ := json.Marshal(map[string]any{
		"operator": "op-1",
		"query":    "something",
		"mode":     "narrow",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []struct {
			Index   int    `json:"index"`
			Title   string `json:"title"`
			Seeders int    `json:"seeders"`
		} `json:"results"`
		Report map[string]string `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Results, 3)
	assert.Equal(t, 1, resp.Results[0].Index)
	assert.Equal(t, "Alpha.1080p", resp.Results[0].Title)
	assert.Equal(t, "ok", resp.Report["yts"])
}

func TestSearchEndpointRejectsEmptyQuery(t *testing.T) {
	router, _ := newTestRouter(t, &fakeDownloadClient{})

	body, _ := json.Marshal(map[string]any{"operator": "op-1", "query": ""})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpointRejectsUnknownMode(t *testing.T) {
	router, _ := newTestRouter(t, &fakeDownloadClient{})

	body, _ := json.Marshal(map[string]any{"operator": "op-1", "query": "q", "mode": "warp"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectEndpoint(t *testing.T) {
	client := &fakeDownloadClient{}
	router, service := newTestRouter(t, client)

	_, err := service.Search(context.Background(), search.Request{
		Operator: "op-1",
		Query:    "something",
		Mode:     indexer.ModeNarrow,
		Folder:   "/downloads/movies",
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"operator": "op-1", "index": 2})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/select", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var result acquisition.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Succeeded)
	assert.Equal(t, "fedcba9876543210fedcba9876543210fedcba98", result.TaskID)
	assert.Equal(t, []string{"/downloads/movies"}, client.submitted, "session folder wins over the default root")
}

func TestSelectEndpointOutOfRange(t *testing.T) {
	router, service := newTestRouter(t, &fakeDownloadClient{})

	_, err := service.Search(context.Background(), search.Request{
		Operator: "op-1", Query: "something", Mode: indexer.ModeNarrow,
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"operator": "op-1", "index": 99})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/select", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "1-3")
}

func TestSelectEndpointWithoutSession(t *testing.T) {
	router, _ := newTestRouter(t, &fakeDownloadClient{})

	body, _ := json.Marshal(map[string]any{"operator": "ghost", "index": 1})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/select", bytes.NewReader(body)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
