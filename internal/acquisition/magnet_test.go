// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package acquisition

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMagnet(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef01234567"

	uri, err := BuildMagnet(hash, "Some Release 1080p")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(uri, "magnet:?xt=urn:btih:"+hash))
	assert.Contains(t, uri, "dn=Some+Release+1080p")
	assert.Equal(t, len(publicTrackers), strings.Count(uri, "&tr="))
	assert.Contains(t, uri, "tracker.opentrackr.org")
}

func TestBuildMagnetUppercaseHashLowered(t *testing.T) {
	uri, err := BuildMagnet("ABCDEF0123456789ABCDEF0123456789ABCDEF01", "")
	require.NoError(t, err)
	assert.Contains(t, uri, "urn:btih:abcdef0123456789abcdef0123456789abcdef01")
	assert.NotContains(t, uri, "dn=")
}

func TestBuildMagnetRejectsBadHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{name: "too short", hash: "abcdef"},
		{name: "empty", hash: ""},
		{name: "non-hex", hash: "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildMagnet(tt.hash, "x")
			assert.Error(t, err)
		})
	}
}
