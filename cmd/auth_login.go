package cmd

import (
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmarkh/audible-api/internal/capture"
	"github.com/cmarkh/audible-api/internal/cli"
	"github.com/cmarkh/audible-api/internal/config"
	"github.com/cmarkh/audible-api/internal/registration"
	"github.com/cmarkh/audible-api/internal/session"
	"github.com/cmarkh/audible-api/internal/signin"
	"github.com/cmarkh/audible-api/pkg/logging"
)

var (
	loginCountry      string
	loginStrategy     string
	loginWithUsername bool
	loginDeviceSerial string
	loginTimeout      time.Duration
	loginPort         int
)

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Register this machine as an Audible device",
	Long: `Sign in to an Audible marketplace and register a new virtual device.

With the terminal strategy the Amazon login page opens in your browser.
After signing in, the browser lands on a "page not found" URL; copy that
URL from the address bar and paste it here.

With the server strategy a local page walks you through the same steps
and the URL is pasted into a form instead.

Examples:
  audible auth login
  audible auth login --country uk --with-username
  audible auth login --strategy server --port 8080`,
	RunE: runAuthLogin,
}

func applyLoginFlags(cmd *cobra.Command) error {
	if err := applyAuthFlags(cmd); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("country") {
		cfg.CountryCode = loginCountry
	}
	if flags.Changed("strategy") {
		cfg.Strategy = config.Strategy(loginStrategy)
	}
	if flags.Changed("with-username") {
		cfg.WithUsername = loginWithUsername
	}
	if flags.Changed("device-serial") {
		cfg.DeviceSerial = loginDeviceSerial
	}
	if flags.Changed("timeout") {
		cfg.CaptureTimeout = loginTimeout
	}
	if flags.Changed("port") {
		cfg.CallbackPort = loginPort
	}
	return cfg.Validate()
}

// newAcquirer builds the capture strategy selected by the config.
func newAcquirer(cmd *cobra.Command, registrar capture.Registrar) capture.Acquirer {
	if cfg.Strategy == config.StrategyServer {
		return &capture.ServerAcquirer{
			Registrar: registrar,
			Port:      cfg.CallbackPort,
			Out:       cmd.OutOrStdout(),
		}
	}
	return &capture.TerminalAcquirer{
		In:  cmd.InOrStdin(),
		Out: cmd.OutOrStdout(),
	}
}

// newSignInManager builds a sign-in manager from the effective config.
func newSignInManager(cmd *cobra.Command, store session.Store) (*signin.Manager, error) {
	registrar := registration.NewClient(registration.WithLogger(logging.Logger("Registration")))
	return signin.NewManager(signin.Config{
		CountryCode:    cfg.CountryCode,
		DeviceSerial:   cfg.DeviceSerial,
		WithUsername:   cfg.WithUsername,
		Acquirer:       newAcquirer(cmd, registrar),
		Registrar:      registrar,
		Store:          store,
		CaptureTimeout: cfg.CaptureTimeout,
	})
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	if err := applyLoginFlags(cmd); err != nil {
		return err
	}

	store := sessionStore()
	manager, err := newSignInManager(cmd, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := manager.SignInAndSave(ctx)
	if err != nil {
		return cli.SignInError(err, cfg.CountryCode)
	}

	authPrint(cmd, "\nRegistered device %s with audible.%s\n", s.DeviceRegistration.DeviceSerial, s.Locale.Domain)
	authPrint(cmd, "Session saved to %s\n", store.Location())
	return nil
}

func init() {
	authLoginCmd.Flags().StringVar(&loginCountry, "country", "us", "marketplace country code (us, uk, de, ...)")
	authLoginCmd.Flags().StringVar(&loginStrategy, "strategy", string(config.StrategyTerminal), "how to capture the sign-in: terminal or server")
	authLoginCmd.Flags().BoolVar(&loginWithUsername, "with-username", false, "sign in with an Audible username instead of an Amazon account")
	authLoginCmd.Flags().StringVar(&loginDeviceSerial, "device-serial", "", "reuse a device serial instead of generating one")
	authLoginCmd.Flags().DurationVar(&loginTimeout, "timeout", 10*time.Minute, "how long to wait for the sign-in")
	authLoginCmd.Flags().IntVar(&loginPort, "port", 0, "local port for the server strategy (0 picks a free port)")
}
