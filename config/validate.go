package config

import "github.com/spuro/spuro/errors"

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate rejects configurations the server cannot run with. Defaults are
// applied before validation, so an empty file always validates.
func Validate(cfg *Config) error {
	if cfg.Database.Path == "" {
		return errors.NewInvalidInputf("database.path must not be empty")
	}
	if cfg.Server.Port != nil {
		if p := *cfg.Server.Port; p < 1 || p > 65535 {
			return errors.NewInvalidInputf("server.port %d out of range 1-65535", p)
		}
	}
	if cfg.Server.CallerHeader == "" {
		return errors.NewInvalidInputf("server.caller_header must not be empty")
	}
	if cfg.Server.MaxPayloadBytes <= 0 {
		return errors.NewInvalidInputf("server.max_payload_bytes must be positive")
	}
	if cfg.Watch.DeliveryRatePerSecond < 0 {
		return errors.NewInvalidInputf("watch.delivery_rate_per_second must not be negative")
	}
	if cfg.Log.Level != "" && !validLogLevels[cfg.Log.Level] {
		return errors.NewInvalidInputf("log.level %q: want debug, info, warn, or error", cfg.Log.Level)
	}
	return nil
}
