// Package config loads the CLI configuration.
//
// Configuration lives in a single YAML file, by default
// ~/.config/audible/config.yaml. A missing file is not an error: every field
// has a default, and command-line flags override whatever was loaded.
//
//	country_code: de          # marketplace to sign in to (default: us)
//	strategy: server          # terminal | server (default: terminal)
//	with_username: false      # use the audible.<domain> username login
//	session_path: ~/.config/audible/auth.json
//	keyring: false            # store the session in the OS keychain instead
//	profile: default          # keychain entry name
//	callback_port: 0          # sign-in server port, 0 picks one
//	capture_timeout: 10m      # how long to wait for the browser login
//	serve_addr: 127.0.0.1:8080
//	log_level: info
package config
