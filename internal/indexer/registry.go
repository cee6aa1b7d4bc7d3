// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Mode selects the backend subset and result budget for a search.
type Mode string

const (
	// ModeNarrow queries the curated list only, for fast interactive answers.
	ModeNarrow Mode = "narrow"
	// ModeBroad queries every indexer the aggregator knows about, with a
	// tighter result and time budget than exhaustive.
	ModeBroad Mode = "broad"
	// ModeExhaustive queries everything the aggregator knows about plus the
	// curated list, under the largest budget.
	ModeExhaustive Mode = "exhaustive"
	// ModeMusic queries the audio-specialist list.
	ModeMusic Mode = "music"
)

// ParseMode maps a user-supplied mode string to a Mode, defaulting to narrow.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "narrow", "fast":
		return ModeNarrow, nil
	case "broad", "rich":
		return ModeBroad, nil
	case "exhaustive", "all":
		return ModeExhaustive, nil
	case "music":
		return ModeMusic, nil
	}
	return "", fmt.Errorf("unknown search mode %q", s)
}

// defaultCurated is the narrow-mode list used when no curated list is
// configured: well-known public indexers that answer quickly.
var defaultCurated = []string{
	"yts", "1337x", "thepiratebay", "eztv", "limetorrents",
	"torrentgalaxy", "torlock", "torrentdownloads", "linuxtracker", "idope",
}

// defaultCatalog is every indexer the exhaustive mode will try when discovery
// is unavailable. Grouped roughly by content focus.
var defaultCatalog = []string{
	// movies & tv
	"1337x", "thepiratebay", "piratebay", "yts", "eztv", "torlock",
	"torrentgalaxyclone", "torrentgalaxy", "torrentdownloads",
	"torrentproject2", "torrentproject", "torrent9", "oxtorrent",
	"oxtorrent-vip", "limetorrents", "torrentkitty", "torrenttip",
	"divxtotal", "cinecalidad", "dontorrent", "elitetorrent-wf",
	"extratorrents", "isohunt2",
	// tv / series specialists
	"showrss", "skidrowrepack", "torrentdosfilmes", "torrentoyunindir",
	"torrentsir", "torrentsome", "zetorrents", "internetarchive",
	// music & audio
	"rutracker", "rutor", "noname-club", "torrentcore", "mixtapetorrent",
	"nipponsei", "tokyotoshokan", "vsttorrentz", "vsthouse", "vstorrent",
	"linuxtracker", "torrentqq",
	// software, games, e-books
	"gamestorrents", "mactorrentsdownload", "pc-torrent", "crackingpatching",
	"byrutor", "torrentssg", "ebookbay", "epublibre", "frozenlayer",
	"bt-etree", "megapeer", "plugintorrent", "wolfmax4k", "idope",
	"idopeclone", "kickasstorrents", "yourbittorrent",
	// legacy / fallback
	"rarbg", "rarbgapi", "nyaa", "glodls", "magnetdl", "btdiggg", "zooqle",
	"torrentfunk", "skytorrents", "solidtorrents",
	// private trackers, reached only when configured in the aggregator
	"iptorrents", "torrentleech", "passthepopcorn", "broadcastthenet",
	"redacted", "orpheus", "gazellegames", "jpopsuki",
}

// defaultMusic is the genre-mode list: audio specialists plus general
// trackers with strong music sections.
var defaultMusic = []string{
	"rutracker", "rutor", "noname-club", "torrentcore", "redacted", "orpheus",
	"1337x", "thepiratebay", "torrentgalaxy", "limetorrents",
	"kickasstorrents", "idope",
	"mixtapetorrent", "nipponsei", "tokyotoshokan", "vsttorrentz", "vsthouse",
	"vstorrent", "torrentqq",
	"nyaa", "linuxtracker", "glodls", "solidtorrents", "zooqle",
}

// defaultAliases collapses alternative spellings of the same indexer to a
// canonical ID. Single-step, acyclic.
var defaultAliases = map[string]string{
	"rarbgapi":            "rarbg",
	"torrentgalaxyclone":  "torrentgalaxy",
	"idopeclone":          "idope",
	"piratebay":           "thepiratebay",
	"kickasstorrents.to":  "kickasstorrents",
	"kickasstorrents.ws":  "kickasstorrents",
	"torrentproject2":     "torrentproject",
	"oxtorrent-vip":       "oxtorrent",
	"elitetorrent-wf":     "elitetorrent",
	"extratorrents":       "extratorrent",
	"tokyotoshokan":       "tokyotosho",
	"vsttorrentz":         "vst-torrents",
	"mactorrentsdownload": "mactorrents",
	"pc-torrent":          "pctorrent",
	"internetarchive":     "archive.org",
}

// Discoverer lists indexers known to the aggregator.
type Discoverer interface {
	ListIndexers(ctx context.Context, includeUnconfigured bool) ([]IndexerInfo, error)
}

// catalogFile is the optional on-disk override for the built-in lists.
type catalogFile struct {
	Catalog []string          `yaml:"catalog"`
	Music   []string          `yaml:"music"`
	Aliases map[string]string `yaml:"aliases"`
}

// Registry resolves a search mode to the ordered set of backend IDs to query.
// Discovery failures degrade to the static lists; Resolve never fails as long
// as at least one backend can be named.
type Registry struct {
	curated    []string
	catalog    []string
	music      []string
	aliases    map[string]string
	discoverer Discoverer
}

func NewRegistry(curated []string, catalogPath string, discoverer Discoverer) (*Registry, error) {
	r := &Registry{
		curated:    append([]string(nil), curated...),
		catalog:    defaultCatalog,
		music:      defaultMusic,
		aliases:    defaultAliases,
		discoverer: discoverer,
	}
	if len(r.curated) == 0 {
		r.curated = defaultCurated
	}

	if catalogPath != "" {
		data, err := os.ReadFile(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("read indexer catalog %s: %w", catalogPath, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse indexer catalog %s: %w", catalogPath, err)
		}
		if len(file.Catalog) > 0 {
			r.catalog = file.Catalog
		}
		if len(file.Music) > 0 {
			r.music = file.Music
		}
		if len(file.Aliases) > 0 {
			r.aliases = file.Aliases
		}
		log.Debug().Str("module", "indexer").
			Str("path", catalogPath).
			Int("catalog", len(r.catalog)).
			Int("music", len(r.music)).
			Msg("loaded indexer catalog override")
	}

	return r, nil
}

// Resolve returns the canonicalized, deduplicated backend list for a mode.
// The same mode and configuration always yield the same list when discovery
// state is unchanged.
func (r *Registry) Resolve(ctx context.Context, mode Mode) ([]string, error) {
	var ids []string

	switch mode {
	case ModeNarrow:
		ids = append(ids, r.curated...)

	case ModeBroad:
		discovered, err := r.discover(ctx, true)
		if err != nil {
			log.Warn().Str("module", "indexer").Err(err).
				Msg("indexer discovery failed, using static catalog")
			ids = append(ids, r.curated...)
			ids = append(ids, r.catalog...)
		} else {
			ids = discovered
		}

	case ModeExhaustive:
		discovered, err := r.discover(ctx, true)
		if err != nil {
			log.Warn().Str("module", "indexer").Err(err).
				Msg("full indexer discovery failed, using static catalog")
			ids = append(ids, r.catalog...)
			ids = append(ids, r.curated...)
		} else {
			ids = discovered
			ids = append(ids, r.curated...)
		}

	case ModeMusic:
		ids = append(ids, r.music...)

	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}

	canonical := r.Canonicalize(ids)
	if len(canonical) == 0 {
		return nil, fmt.Errorf("no backends available for mode %s", mode)
	}
	return canonical, nil
}

// ExtendedSet returns broad-mode backends not already in the given list. It
// backs the narrow-mode escalation path.
func (r *Registry) ExtendedSet(ctx context.Context, already []string) []string {
	broad, err := r.Resolve(ctx, ModeBroad)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(already))
	for _, id := range r.Canonicalize(already) {
		seen[id] = struct{}{}
	}
	var extra []string
	for _, id := range broad {
		if _, ok := seen[id]; !ok {
			extra = append(extra, id)
		}
	}
	return extra
}

// Canonicalize lowercases, applies the alias table, and deduplicates while
// preserving first-seen order.
func (r *Registry) Canonicalize(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if canonical, ok := r.aliases[id]; ok {
			id = canonical
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (r *Registry) discover(ctx context.Context, includeUnconfigured bool) ([]string, error) {
	if r.discoverer == nil {
		return nil, fmt.Errorf("no discoverer configured")
	}
	infos, err := r.discoverer.ListIndexers(ctx, includeUnconfigured)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		if !includeUnconfigured && !info.Configured {
			continue
		}
		ids = append(ids, info.ID)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("discovery returned no usable indexers")
	}
	return ids, nil
}
