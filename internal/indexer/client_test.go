// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchIndexer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2.0/indexers/yts/results", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "ubuntu", r.URL.Query().Get("Query"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Results":[{"Title":"Ubuntu 24.04","Seeders":120},{"Title":"Ubuntu 22.04","Seeders":80}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5)
	records, err := client.SearchIndexer(context.Background(), "yts", "ubuntu")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Ubuntu 24.04", records[0]["Title"])
}

func TestSearchIndexerHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5)
	_, err := client.SearchIndexer(context.Background(), "yts", "ubuntu")
	assert.ErrorContains(t, err, "status 502")
}

func TestSearchIndexerEmbeddedIndexerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Results":[],"Indexers":[{"ID":"yts","Error":"login failed"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5)
	_, err := client.SearchIndexer(context.Background(), "yts", "ubuntu")
	assert.ErrorContains(t, err, "login failed")
}

func TestSearchIndexerMissingAPIKey(t *testing.T) {
	client := NewClient("http://localhost:9117", "", 5)
	_, err := client.SearchIndexer(context.Background(), "yts", "ubuntu")
	assert.ErrorContains(t, err, "api key")
}

func TestListIndexers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2.0/indexers", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("configured"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"yts","title":"YTS","configured":true},{"id":"nyaa","title":"Nyaa","configured":"false"},{"id":"","title":"broken"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5)
	indexers, err := client.ListIndexers(context.Background(), true)
	require.NoError(t, err)

	require.Len(t, indexers, 2)
	assert.Equal(t, "yts", indexers[0].ID)
	assert.True(t, indexers[0].Configured)
	assert.False(t, indexers[1].Configured)
}

func TestDownload(t *testing.T) {
	payload := []byte("d8:announce3:xyze")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write(payload)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5)
	data, err := client.Download(context.Background(), server.URL+"/dl/yts/blob")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownloadRelativeURL(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5)
	_, err := client.Download(context.Background(), "/dl/yts/blob")
	require.NoError(t, err)
	assert.Equal(t, "/dl/yts/blob", gotPath)
}

func TestDownloadStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5)
	_, err := client.Download(context.Background(), server.URL+"/dl")

	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, http.StatusTooManyRequests, dlErr.StatusCode)
	assert.True(t, dlErr.IsRateLimited())
}

func TestDownloadEmptyURL(t *testing.T) {
	client := NewClient("http://localhost:9117", "test-key", 5)
	_, err := client.Download(context.Background(), "  ")
	assert.Error(t, err)
}
