// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is sent on outgoing indexer and download-client requests.
var UserAgent = fmt.Sprintf("torrent-bot/%s", Version)
