package config

import "time"

const (
	DefaultCountryCode    = "us"
	DefaultProfile        = "default"
	DefaultCaptureTimeout = 10 * time.Minute
	DefaultServeAddr      = "127.0.0.1:8080"
	DefaultLogLevel       = "info"

	sessionFileName = "auth.json"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		CountryCode:    DefaultCountryCode,
		Strategy:       StrategyTerminal,
		SessionPath:    defaultSessionPath(),
		Profile:        DefaultProfile,
		CaptureTimeout: DefaultCaptureTimeout,
		ServeAddr:      DefaultServeAddr,
		LogLevel:       DefaultLogLevel,
	}
}
