// Package config loads meteorid configuration: defaults, an optional
// meteorid.toml, and METEORID_-prefixed environment overrides, in that
// precedence order.
package config

// Config is the root meteorid configuration.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Server   ServerConfig   `mapstructure:"server"`
}

// SourceConfig configures the remote dataset endpoint.
type SourceConfig struct {
	URL               string  `mapstructure:"url"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	PageSize          int     `mapstructure:"page_size"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// CacheConfig configures the on-disk dataset cache.
type CacheConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig configures the SQLite operational database (refresh journal).
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// DatasetConfig selects normalization variants.
//
// Binning "fixed" is the reference behavior; "quantile" derives equal-count
// bins per dataset and is a documented alternative, not interchangeable with
// fixed for comparisons across deployments.
type DatasetConfig struct {
	Binning     string `mapstructure:"binning"`
	RequireYear bool   `mapstructure:"require_year"`
}

// RefreshConfig configures the periodic staleness check.
type RefreshConfig struct {
	IntervalHours int `mapstructure:"interval_hours"` // 0 disables the ticker
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// ListingCap bounds how many rows the listing endpoint returns
	ListingCap int `mapstructure:"listing_cap"`
}

// DefaultServerPort is above the privileged range and easy to remember.
const DefaultServerPort = 8877

// DefaultSourceURL is the NASA meteorite landings dataset.
const DefaultSourceURL = "https://data.nasa.gov/resource/gh4g-9sfh.json"
