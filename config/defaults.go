package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Remote source defaults
	v.SetDefault("source.url", DefaultSourceURL)
	v.SetDefault("source.timeout_seconds", 30)
	v.SetDefault("source.page_size", 1000)
	v.SetDefault("source.requests_per_second", 5.0) // polite paging against the public API

	// Local storage defaults
	v.SetDefault("cache.path", "landings.csv")
	v.SetDefault("database.path", "meteorid.db")

	// Dataset normalization defaults (the reference behavior)
	v.SetDefault("dataset.binning", "fixed")
	v.SetDefault("dataset.require_year", false)

	// Refresh defaults: the upstream dataset changes a few times a year
	v.SetDefault("refresh.interval_hours", 6)

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.listing_cap", 5000)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
}
