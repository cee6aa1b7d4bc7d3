// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"

	"github.com/ppotepa/torrent-bot/internal/indexer"
)

// ErrNoSession is returned when an operator selects without a live result set.
var ErrNoSession = errors.New("no active search session")

// RangeError reports a selection outside the session's result range.
type RangeError struct {
	Index int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("selection %d is out of range, valid range is 1-%d", e.Index, e.Max)
}

// Session holds one operator's latest ranked results plus the context needed
// to act on a selection later.
type Session struct {
	Results   []indexer.Candidate
	Folder    string
	Mode      indexer.Mode
	Query     string
	CreatedAt time.Time
}

// SessionStore keeps per-operator sessions with a bound TTL. A new search
// replaces the operator's previous session; expired sessions read as absent.
type SessionStore struct {
	cache *ttlcache.Cache[string, *Session]
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		cache: ttlcache.New(ttlcache.Options[string, *Session]{}.
			SetDefaultTTL(ttl)),
	}
}

// Store saves the operator's session, overwriting any previous one.
func (s *SessionStore) Store(operator string, session *Session) {
	session.CreatedAt = time.Now()
	s.cache.Set(operator, session, ttlcache.DefaultTTL)
}

// Get returns the operator's live session, if any.
func (s *SessionStore) Get(operator string) (*Session, bool) {
	return s.cache.Get(operator)
}

// Select resolves a 1-based index against the operator's session.
func (s *SessionStore) Select(operator string, index int) (indexer.Candidate, error) {
	session, ok := s.cache.Get(operator)
	if !ok || session == nil {
		return indexer.Candidate{}, ErrNoSession
	}
	if len(session.Results) == 0 {
		return indexer.Candidate{}, errors.New("search session has no results")
	}
	if index < 1 || index > len(session.Results) {
		return indexer.Candidate{}, &RangeError{Index: index, Max: len(session.Results)}
	}
	return session.Results[index-1], nil
}

// Clear drops the operator's session.
func (s *SessionStore) Clear(operator string) {
	s.cache.Delete(operator)
}
