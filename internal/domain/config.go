// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config is the runtime configuration. It is unmarshaled once at startup and
// passed into the core components as an immutable value; nothing re-reads it
// mid-run.
type Config struct {
	Version string

	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	DataDir string `mapstructure:"dataDir"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort"`

	Jackett     JackettConfig  `mapstructure:"jackett"`
	QBittorrent QBitConfig     `mapstructure:"qbittorrent"`
	Search      SearchConfig   `mapstructure:"search"`
	Fallback    FallbackConfig `mapstructure:"fallback"`
	Monitor     MonitorConfig  `mapstructure:"monitor"`
}

// JackettConfig describes the indexer aggregator endpoint.
type JackettConfig struct {
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"apiKey"`
	TimeoutSeconds int    `mapstructure:"timeout"`
}

// QBitConfig describes the download client endpoint.
type QBitConfig struct {
	Host          string `mapstructure:"host"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	SaveRoot      string `mapstructure:"saveRoot"`
	TLSSkipVerify bool   `mapstructure:"tlsSkipVerify"`
}

// ModeConfig holds the per-mode result limit and fan-out budget.
type ModeConfig struct {
	Limit          int `mapstructure:"limit"`
	TimeoutSeconds int `mapstructure:"timeout"`
}

// SearchConfig holds backend lists and per-mode budgets. Indexers is the
// curated list for narrow mode; CatalogPath optionally points to a YAML file
// overriding the built-in catalog and alias table.
type SearchConfig struct {
	Indexers          []string   `mapstructure:"indexers"`
	CatalogPath       string     `mapstructure:"catalogPath"`
	SessionTTLMinutes int        `mapstructure:"sessionTtl"`
	Narrow            ModeConfig `mapstructure:"narrow"`
	Broad             ModeConfig `mapstructure:"broad"`
	Exhaustive        ModeConfig `mapstructure:"exhaustive"`
	Music             ModeConfig `mapstructure:"music"`
}

// FallbackConfig controls the acquisition chain.
type FallbackConfig struct {
	// Aggressive enables the alternate-source strategy.
	Aggressive bool `mapstructure:"aggressive"`
	// FetchRetries bounds direct-file fetch attempts.
	FetchRetries int `mapstructure:"fetchRetries"`
	// AlternateFilter is an optional expr filter applied to alternate-source
	// candidates, e.g. "Seeders > 0 && Backend != Source".
	AlternateFilter string `mapstructure:"alternateFilter"`
}

// MonitorConfig controls the download completion monitor.
type MonitorConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval"`
}
