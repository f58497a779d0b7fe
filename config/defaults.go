package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "spuro.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.caller_header", DefaultCallerHeader)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.max_payload_bytes", DefaultMaxPayload)

	// Expiry sweep defaults
	v.SetDefault("sweep.interval_seconds", 30)

	// Watch delivery defaults: unlimited unless capped
	v.SetDefault("watch.delivery_rate_per_second", 0)
	v.SetDefault("watch.delivery_burst", 1)

	// Client defaults
	v.SetDefault("client.base_url", "http://localhost:8090")
	v.SetDefault("client.timeout_seconds", 30)

	// Logging defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// BindSensitiveEnvVars explicitly binds caller identity to its environment
// variable so it never needs to live in a config file.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("client.caller", "SPURO_CALLER")
}
