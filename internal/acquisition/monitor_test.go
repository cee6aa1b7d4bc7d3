// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package acquisition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ppotepa/torrent-bot/internal/qbittorrent"
)

type mockLister struct {
	tasks []qbittorrent.Task
	err   error
}

func (m *mockLister) List(ctx context.Context) ([]qbittorrent.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tasks, nil
}

type memNotifiedStore struct {
	seen    map[string]bool
	markErr error
}

func newMemNotifiedStore() *memNotifiedStore {
	return &memNotifiedStore{seen: map[string]bool{}}
}

func (s *memNotifiedStore) WasNotified(ctx context.Context, taskID string) (bool, error) {
	return s.seen[taskID], nil
}

func (s *memNotifiedStore) MarkNotified(ctx context.Context, taskID string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.seen[taskID] = true
	return nil
}

func TestSweepNotifiesCompletionsOnce(t *testing.T) {
	lister := &mockLister{tasks: []qbittorrent.Task{
		{ID: "aaa", Name: "Done", Complete: true},
		{ID: "bbb", Name: "Still going", Complete: false},
	}}
	store := newMemNotifiedStore()

	var notified []string
	monitor := NewMonitor(lister, store, func(task qbittorrent.Task) {
		notified = append(notified, task.ID)
	}, time.Second)

	monitor.sweep(context.Background())
	monitor.sweep(context.Background())

	assert.Equal(t, []string{"aaa"}, notified, "incomplete tasks skipped, completions fired once")
	assert.True(t, store.seen["aaa"])
}

func TestSweepSkipsPreviouslyNotified(t *testing.T) {
	lister := &mockLister{tasks: []qbittorrent.Task{
		{ID: "aaa", Complete: true},
	}}
	store := newMemNotifiedStore()
	store.seen["aaa"] = true

	fired := 0
	monitor := NewMonitor(lister, store, func(qbittorrent.Task) { fired++ }, time.Second)
	monitor.sweep(context.Background())

	assert.Zero(t, fired, "persisted notified-set survives restarts")
}

func TestSweepMarksBeforeNotifying(t *testing.T) {
	lister := &mockLister{tasks: []qbittorrent.Task{
		{ID: "aaa", Complete: true},
	}}
	store := newMemNotifiedStore()
	store.markErr = errors.New("disk full")

	fired := 0
	monitor := NewMonitor(lister, store, func(qbittorrent.Task) { fired++ }, time.Second)

	monitor.sweep(context.Background())
	assert.Zero(t, fired, "handler must not fire when the notified set cannot be written")

	// store recovers, next sweep delivers the completion exactly once
	store.markErr = nil
	monitor.sweep(context.Background())
	monitor.sweep(context.Background())
	assert.Equal(t, 1, fired)
}

func TestSweepToleratesListErrors(t *testing.T) {
	lister := &mockLister{err: errors.New("client offline")}
	monitor := NewMonitor(lister, newMemNotifiedStore(), func(qbittorrent.Task) {
		t.Fatal("handler must not fire on list error")
	}, time.Second)

	monitor.sweep(context.Background())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	lister := &mockLister{}
	monitor := NewMonitor(lister, newMemNotifiedStore(), nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on cancel")
	}
}
