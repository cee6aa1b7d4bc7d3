// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppotepa/torrent-bot/internal/buildinfo"
)

const maxTorrentDownloadBytes int64 = 16 << 20 // 16 MiB safety limit for torrent blobs

// DownloadError represents an HTTP error during torrent download.
// It preserves the status code for rate-limit detection and retry logic.
type DownloadError struct {
	StatusCode int
	URL        string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("torrent download from %s returned status %d", e.URL, e.StatusCode)
}

func (e *DownloadError) Is(target error) bool {
	_, ok := target.(*DownloadError)
	return ok
}

// IsRateLimited returns true if this error indicates rate limiting (HTTP 429).
func (e *DownloadError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// RawRecord is one untrusted result object as returned by a backend. Field
// names and value types vary per indexer; the normalizer absorbs that.
type RawRecord map[string]any

// IndexerInfo describes one indexer known to the aggregator.
type IndexerInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Configured bool   `json:"configured"`
}

// Client talks to a Jackett aggregator instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
}

func NewClient(baseURL, apiKey string, timeoutSeconds int) *Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 12
	}

	timeout := time.Duration(timeoutSeconds) * time.Second
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Timeout returns the per-request budget this client was configured with.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

type searchEnvelope struct {
	Results  []RawRecord `json:"Results"`
	Indexers []struct {
		ID     string `json:"ID"`
		Error  string `json:"Error"`
		Status int    `json:"Status"`
	} `json:"Indexers"`
}

// SearchIndexer queries a single indexer through the aggregator and returns
// its raw result records.
func (c *Client) SearchIndexer(ctx context.Context, indexerID, query string) ([]RawRecord, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("jackett api key is not configured")
	}

	endpoint, err := url.JoinPath(c.baseURL, "api", "v2.0", "indexers", indexerID, "results")
	if err != nil {
		return nil, fmt.Errorf("build search url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	q := req.URL.Query()
	q.Set("apikey", c.apiKey)
	q.Set("Query", query)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request to %s failed: %w", indexerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("indexer %s returned status %d", indexerID, resp.StatusCode)
	}

	var envelope searchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", indexerID, err)
	}

	// Jackett reports per-indexer errors inside an otherwise-200 envelope.
	for _, idx := range envelope.Indexers {
		if idx.Error != "" && len(envelope.Results) == 0 {
			return nil, fmt.Errorf("indexer %s reported error: %s", indexerID, idx.Error)
		}
	}

	return envelope.Results, nil
}

// ListIndexers fetches the aggregator's indexer registry. With
// includeUnconfigured set it returns every indexer Jackett knows about, not
// just the configured ones.
func (c *Client) ListIndexers(ctx context.Context, includeUnconfigured bool) ([]IndexerInfo, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("jackett api key is not configured")
	}

	endpoint, err := url.JoinPath(c.baseURL, "api", "v2.0", "indexers")
	if err != nil {
		return nil, fmt.Errorf("build indexers url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build indexers request: %w", err)
	}
	q := req.URL.Query()
	q.Set("apikey", c.apiKey)
	if includeUnconfigured {
		q.Set("configured", "false")
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexers request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("indexers endpoint returned status %d", resp.StatusCode)
	}

	var raw []struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Configured any    `json:"configured"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode indexers response: %w", err)
	}

	indexers := make([]IndexerInfo, 0, len(raw))
	for _, entry := range raw {
		if entry.ID == "" {
			continue
		}
		configured := false
		switch v := entry.Configured.(type) {
		case bool:
			configured = v
		case string:
			configured = strings.EqualFold(v, "true")
		}
		indexers = append(indexers, IndexerInfo{
			ID:         entry.ID,
			Title:      entry.Title,
			Configured: configured,
		})
	}

	return indexers, nil
}

// Download retrieves the raw torrent bytes for the provided download URL.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	if strings.TrimSpace(downloadURL) == "" {
		return nil, fmt.Errorf("download URL is required")
	}

	// Normalise relative URLs
	if !strings.HasPrefix(downloadURL, "http://") && !strings.HasPrefix(downloadURL, "https://") {
		downloadURL = c.baseURL + "/" + strings.TrimLeft(downloadURL, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Accept", "application/x-bittorrent, application/octet-stream")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	// Ensure API key is present for backends that require it
	if c.apiKey != "" && !strings.Contains(downloadURL, "apikey=") {
		q := req.URL.Query()
		q.Set("apikey", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torrent download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &DownloadError{StatusCode: resp.StatusCode, URL: downloadURL}
	}

	limitedReader := io.LimitReader(resp.Body, maxTorrentDownloadBytes+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("read torrent body: %w", err)
	}
	if int64(len(data)) > maxTorrentDownloadBytes {
		return nil, fmt.Errorf("torrent download exceeded %d bytes limit", maxTorrentDownloadBytes)
	}

	return data, nil
}
