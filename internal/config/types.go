package config

import "time"

// Strategy selects how the authorization code is captured.
type Strategy string

const (
	// StrategyTerminal reads the pasted redirect URL from the terminal.
	StrategyTerminal Strategy = "terminal"
	// StrategyServer runs a local sign-in server.
	StrategyServer Strategy = "server"
)

// Config is the top-level CLI configuration.
type Config struct {
	CountryCode    string        `yaml:"country_code"`
	Strategy       Strategy      `yaml:"strategy"`
	WithUsername   bool          `yaml:"with_username"`
	DeviceSerial   string        `yaml:"device_serial,omitempty"`
	SessionPath    string        `yaml:"session_path"`
	Keyring        bool          `yaml:"keyring"`
	Profile        string        `yaml:"profile"`
	CallbackPort   int           `yaml:"callback_port"`
	CaptureTimeout time.Duration `yaml:"capture_timeout"`
	ServeAddr      string        `yaml:"serve_addr"`

	// APIBaseURL overrides https://api.audible.<domain> for signed requests.
	APIBaseURL string `yaml:"api_base_url,omitempty"`

	LogLevel string `yaml:"log_level"`
}
