// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/moistari/rls"
)

// MediaType is the coarse content classification attached to a candidate.
type MediaType string

const (
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
	MediaSoftware MediaType = "software"
	MediaGame     MediaType = "game"
	MediaBook     MediaType = "book"
	MediaOther    MediaType = "other"
)

// Candidate is a normalized search result. All fields besides Title are
// best-effort; absent numeric fields are zero, absent strings empty.
type Candidate struct {
	Title     string    `json:"title"`
	MagnetURI string    `json:"magnetUri,omitempty"`
	FileURL   string    `json:"fileUrl,omitempty"`
	InfoHash  string    `json:"infoHash,omitempty"`
	Size      int64     `json:"size"`
	Seeders   int       `json:"seeders"`
	Peers     int       `json:"peers"`
	Backend   string    `json:"backend"`
	Media     MediaType `json:"media"`
}

// HasMagnet reports whether the candidate carries a usable magnet URI.
func (c Candidate) HasMagnet() bool {
	return strings.HasPrefix(strings.ToLower(c.MagnetURI), "magnet:")
}

// Ordered field-name variants observed across indexers. Matched
// case-insensitively, first hit wins.
var (
	titleFields   = []string{"Title", "title", "name", "ReleaseTitle"}
	seederFields  = []string{"Seeders", "seeders", "Seeds", "seeds", "seed_count", "SeedCount"}
	peerFields    = []string{"Peers", "peers", "Leechers", "leechers", "peer_count"}
	sizeFields    = []string{"Size", "size", "length", "ContentLength"}
	magnetFields  = []string{"MagnetUri", "magnet", "MagnetLink", "magneturl"}
	linkFields    = []string{"Link", "link", "DownloadUrl", "download_url"}
	hashFields    = []string{"InfoHash", "infohash", "info_hash", "hash"}
	backendFields = []string{"Tracker", "TrackerId", "tracker"}
)

var nonNumericRe = regexp.MustCompile(`[^0-9-]`)

var infoHashRe = regexp.MustCompile(`(?i)urn:btih:([0-9a-f]{40})`)

// Normalize converts one raw backend record into a Candidate. Records without
// a usable title are rejected; every other field degrades to its zero value.
func Normalize(backend string, rec RawRecord) (Candidate, error) {
	lowered := make(map[string]any, len(rec))
	for k, v := range rec {
		lowered[strings.ToLower(k)] = v
	}

	title := strings.TrimSpace(stringField(lowered, titleFields))
	if title == "" {
		return Candidate{}, fmt.Errorf("record from %s has no title", backend)
	}

	cand := Candidate{
		Title:     title,
		MagnetURI: stringField(lowered, magnetFields),
		FileURL:   stringField(lowered, linkFields),
		InfoHash:  strings.ToLower(strings.TrimSpace(stringField(lowered, hashFields))),
		Size:      sizeField(lowered, sizeFields),
		Seeders:   countField(lowered, seederFields),
		Peers:     countField(lowered, peerFields),
		Backend:   backend,
	}

	if cand.Backend == "" {
		cand.Backend = strings.ToLower(stringField(lowered, backendFields))
	}

	// A magnet URI is an info-hash carrier of last resort.
	if cand.InfoHash == "" && cand.MagnetURI != "" {
		cand.InfoHash = ExtractInfoHash(cand.MagnetURI)
	}
	if !isHexHash(cand.InfoHash) {
		cand.InfoHash = ""
	}

	cand.Media = ClassifyMedia(title)

	return cand, nil
}

// ExtractInfoHash pulls the 40-char hex info hash out of a magnet URI,
// lowercased. Returns "" when none is present.
func ExtractInfoHash(magnetURI string) string {
	m := infoHashRe.FindStringSubmatch(magnetURI)
	if len(m) != 2 {
		return ""
	}
	return strings.ToLower(m[1])
}

func isHexHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

func stringField(rec map[string]any, names []string) string {
	for _, name := range names {
		v, ok := rec[strings.ToLower(name)]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// countField extracts a non-negative int from the first present variant.
// Indexers return these as numbers, numeric strings, or strings with trailing
// noise ("12 seeders"); anything unparsable counts as zero.
func countField(rec map[string]any, names []string) int {
	for _, name := range names {
		v, ok := rec[strings.ToLower(name)]
		if !ok || v == nil {
			continue
		}
		n, ok := parseCount(v)
		if !ok {
			continue
		}
		if n < 0 {
			return 0
		}
		return n
	}
	return 0
}

func parseCount(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		cleaned := nonNumericRe.ReplaceAllString(t, "")
		if cleaned == "" || cleaned == "-" {
			return 0, false
		}
		n, err := strconv.Atoi(cleaned)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func sizeField(rec map[string]any, names []string) int64 {
	for _, name := range names {
		v, ok := rec[strings.ToLower(name)]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case int:
			return max64(int64(t), 0)
		case int64:
			return max64(t, 0)
		case float64:
			return max64(int64(t), 0)
		case string:
			cleaned := nonNumericRe.ReplaceAllString(t, "")
			n, err := strconv.ParseInt(cleaned, 10, 64)
			if err == nil {
				return max64(n, 0)
			}
		}
	}
	return 0
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

var mediaKeywords = []struct {
	media MediaType
	words []string
}{
	{MediaAudio, []string{"flac", "mp3", "discography", "album", "soundtrack", "320kbps"}},
	{MediaGame, []string{"gog", "fitgirl", "repack", "codex", "skidrow", "plaza"}},
	{MediaSoftware, []string{"keygen", "crack", "portable", "x64 setup", "msi", "iso x64"}},
	{MediaBook, []string{"epub", "mobi", "audiobook", "pdf"}},
	{MediaVideo, []string{"1080p", "720p", "2160p", "bluray", "web-dl", "webrip", "hdtv", "x264", "x265", "hevc"}},
}

// ClassifyMedia tags a release title with a coarse media type. The release
// parser handles well-formed scene names; a keyword scan catches the rest.
func ClassifyMedia(title string) MediaType {
	r := rls.ParseString(title)
	switch r.Type {
	case rls.Music:
		return MediaAudio
	case rls.Movie, rls.Series, rls.Episode:
		return MediaVideo
	case rls.App:
		return MediaSoftware
	case rls.Game:
		return MediaGame
	case rls.Book, rls.Audiobook, rls.Comic, rls.Magazine:
		return MediaBook
	}

	lower := strings.ToLower(title)
	for _, kw := range mediaKeywords {
		for _, w := range kw.words {
			if strings.Contains(lower, w) {
				return kw.media
			}
		}
	}
	return MediaOther
}

// DisplayName returns the candidate title sanitized for use as a magnet dn
// parameter.
func (c Candidate) DisplayName() string {
	return url.QueryEscape(c.Title)
}
