// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/anacrolix/torrent/metainfo"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ppotepa/torrent-bot/internal/domain"
	"github.com/ppotepa/torrent-bot/internal/indexer"
)

// category tags every submission so operator downloads are distinguishable
// in a shared client instance.
const category = "torrent-bot"

var categoriesMinVersion = semver.MustParse("2.1.0")

// ErrTaskNotFound is returned when the client has no torrent for the given id.
var ErrTaskNotFound = errors.New("download task not found")

// SubmitErrorKind classifies a failed submission.
type SubmitErrorKind int

const (
	// KindConnectivity covers transient transport failures; the submission
	// may be retried or the chain may move on.
	KindConnectivity SubmitErrorKind = iota
	// KindDuplicate means the client already holds this torrent. Callers
	// treat it as success.
	KindDuplicate
	// KindMalformed means the payload itself is unusable. Retrying the same
	// input cannot help.
	KindMalformed
)

func (k SubmitErrorKind) String() string {
	switch k {
	case KindDuplicate:
		return "duplicate"
	case KindMalformed:
		return "malformed"
	default:
		return "connectivity"
	}
}

// SubmitError wraps a submission failure with its classification.
type SubmitError struct {
	Kind SubmitErrorKind
	Err  error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit failed (%s): %v", e.Kind, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Task is a download known to the client.
type Task struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Size     int64   `json:"size"`
	SavePath string  `json:"savePath"`
	Complete bool    `json:"complete"`
}

// Gateway wraps the qBittorrent client with lazy login, a single transparent
// re-auth on session expiry, and submit-error classification.
type Gateway struct {
	client  *qbt.Client
	timeout time.Duration

	mu                 sync.Mutex
	loggedIn           bool
	webAPIVersion      string
	supportsCategories bool
}

func NewGateway(cfg domain.QBitConfig, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := qbt.NewClient(qbt.Config{
		Host:          cfg.Host,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Timeout:       int(timeout.Seconds()),
		TLSSkipVerify: cfg.TLSSkipVerify,
	})
	return &Gateway{
		client:  client,
		timeout: timeout,
	}
}

// ensureLoggedIn authenticates on first use. Connection failures surface as
// connectivity errors; credentials are not retried here.
func (g *Gateway) ensureLoggedIn(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loggedIn {
		return nil
	}

	if err := g.client.LoginCtx(ctx); err != nil {
		return errors.Wrap(err, "login to download client failed")
	}
	g.loggedIn = true

	version, err := g.client.GetWebAPIVersionCtx(ctx)
	if err != nil {
		log.Warn().Str("module", "qbittorrent").Err(err).
			Msg("could not determine WebAPI version")
		return nil
	}
	g.webAPIVersion = version
	if v, err := semver.NewVersion(version); err == nil {
		g.supportsCategories = !v.LessThan(categoriesMinVersion)
	}
	log.Debug().Str("module", "qbittorrent").
		Str("webAPIVersion", version).
		Bool("categories", g.supportsCategories).
		Msg("download client connected")
	return nil
}

func (g *Gateway) relogin(ctx context.Context) error {
	g.mu.Lock()
	g.loggedIn = false
	g.mu.Unlock()
	return g.ensureLoggedIn(ctx)
}

// withReauth runs fn, re-authenticating exactly once if the session expired
// mid-call. A second auth failure is surfaced to the caller.
func (g *Gateway) withReauth(ctx context.Context, fn func(context.Context) error) error {
	if err := g.ensureLoggedIn(ctx); err != nil {
		return err
	}
	err := fn(ctx)
	if err == nil || !isAuthError(err) {
		return err
	}

	log.Debug().Str("module", "qbittorrent").
		Msg("session expired, re-authenticating")
	if err := g.relogin(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// WebAPIVersion reports the connected client's WebAPI version, empty before
// first login.
func (g *Gateway) WebAPIVersion() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.webAPIVersion
}

func (g *Gateway) submitOptions(savePath string) map[string]string {
	opts := map[string]string{}
	if savePath != "" {
		opts["savepath"] = savePath
	}
	g.mu.Lock()
	if g.supportsCategories {
		opts["category"] = category
	}
	g.mu.Unlock()
	return opts
}

// SubmitMagnet hands a magnet URI to the client. The returned task id is the
// magnet's info hash.
func (g *Gateway) SubmitMagnet(ctx context.Context, magnetURI, savePath string) (string, error) {
	hash := indexer.ExtractInfoHash(magnetURI)
	if hash == "" {
		return "", &SubmitError{
			Kind: KindMalformed,
			Err:  errors.New("magnet URI carries no info hash"),
		}
	}

	err := g.withReauth(ctx, func(ctx context.Context) error {
		return g.client.AddTorrentFromUrlCtx(ctx, magnetURI, g.submitOptions(savePath))
	})
	if err != nil {
		serr := classifySubmit(err)
		if serr.Kind == KindDuplicate {
			log.Debug().Str("module", "qbittorrent").Str("hash", hash).
				Msg("magnet already present, treating as success")
			return hash, nil
		}
		return "", serr
	}
	return hash, nil
}

// SubmitFile hands raw torrent bytes to the client. The payload is validated
// before submission; the returned task id is the decoded info hash.
func (g *Gateway) SubmitFile(ctx context.Context, data []byte, savePath string) (string, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return "", &SubmitError{
			Kind: KindMalformed,
			Err:  errors.Wrap(err, "payload is not a valid torrent"),
		}
	}
	hash := strings.ToLower(mi.HashInfoBytes().HexString())

	err = g.withReauth(ctx, func(ctx context.Context) error {
		return g.client.AddTorrentFromMemoryCtx(ctx, data, g.submitOptions(savePath))
	})
	if err != nil {
		serr := classifySubmit(err)
		if serr.Kind == KindDuplicate {
			log.Debug().Str("module", "qbittorrent").Str("hash", hash).
				Msg("torrent already present, treating as success")
			return hash, nil
		}
		return "", serr
	}
	return hash, nil
}

// Status fetches one task by id.
func (g *Gateway) Status(ctx context.Context, id string) (*Task, error) {
	var torrents []qbt.Torrent
	err := g.withReauth(ctx, func(ctx context.Context) error {
		var err error
		torrents, err = g.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{
			Hashes: []string{strings.ToLower(id)},
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch task status")
	}
	if len(torrents) == 0 {
		return nil, ErrTaskNotFound
	}
	task := toTask(torrents[0])
	return &task, nil
}

// List returns every task the client holds.
func (g *Gateway) List(ctx context.Context) ([]Task, error) {
	var torrents []qbt.Torrent
	err := g.withReauth(ctx, func(ctx context.Context) error {
		var err error
		torrents, err = g.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	tasks := make([]Task, 0, len(torrents))
	for _, t := range torrents {
		tasks = append(tasks, toTask(t))
	}
	return tasks, nil
}

// Delete removes a task, optionally with its payload on disk.
func (g *Gateway) Delete(ctx context.Context, id string, removeFiles bool) error {
	err := g.withReauth(ctx, func(ctx context.Context) error {
		return g.client.DeleteTorrentsCtx(ctx, []string{strings.ToLower(id)}, removeFiles)
	})
	return errors.Wrap(err, "delete task")
}

func toTask(t qbt.Torrent) Task {
	return Task{
		ID:       strings.ToLower(t.Hash),
		Name:     t.Name,
		State:    string(t.State),
		Progress: t.Progress,
		Size:     t.Size,
		SavePath: t.SavePath,
		Complete: isComplete(t),
	}
}

func isComplete(t qbt.Torrent) bool {
	if t.Progress >= 1.0 {
		return true
	}
	switch t.State {
	case qbt.TorrentStateUploading, qbt.TorrentStateStalledUp,
		qbt.TorrentStateQueuedUp, qbt.TorrentStateCheckingUp,
		qbt.TorrentStateForcedUp, qbt.TorrentStatePausedUp:
		return true
	}
	return false
}

// classifySubmit sorts a submission failure into connectivity, duplicate, or
// malformed. Unknown failures count as connectivity so the caller's fallback
// chain keeps moving.
func classifySubmit(err error) *SubmitError {
	if serr, ok := err.(*SubmitError); ok {
		return serr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already") || strings.Contains(msg, "duplicate"):
		return &SubmitError{Kind: KindDuplicate, Err: err}
	case strings.Contains(msg, "unsupported media type") ||
		strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "invalid magnet") ||
		strings.Contains(msg, "not a valid torrent"):
		return &SubmitError{Kind: KindMalformed, Err: err}
	}

	return &SubmitError{Kind: KindConnectivity, Err: err}
}

func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "403") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "not logged in")
}
