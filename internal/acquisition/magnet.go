// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package acquisition

import (
	"fmt"
	"net/url"
	"strings"
)

// publicTrackers are announced on every reconstructed magnet so the swarm is
// reachable even when the source indexer published none.
var publicTrackers = []string{
	"udp://tracker.openbittorrent.com:80/announce",
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://9.rarbg.to:2710/announce",
	"udp://exodus.desync.com:6969/announce",
}

// BuildMagnet assembles a magnet URI from a bare info hash, attaching the
// display name and the public tracker set.
func BuildMagnet(infoHash, displayName string) (string, error) {
	infoHash = strings.ToLower(strings.TrimSpace(infoHash))
	if len(infoHash) != 40 {
		return "", fmt.Errorf("info hash must be 40 hex chars, got %q", infoHash)
	}
	for _, r := range infoHash {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", fmt.Errorf("info hash contains non-hex character %q", r)
		}
	}

	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(infoHash)
	if displayName != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(displayName))
	}
	for _, tracker := range publicTrackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tracker))
	}
	return b.String(), nil
}
