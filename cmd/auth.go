package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmarkh/audible-api/internal/cli"
	"github.com/cmarkh/audible-api/internal/config"
	"github.com/cmarkh/audible-api/internal/session"
)

var (
	authSessionPath string
	authKeyring     bool
	authProfile     string
	authQuiet       bool
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Audible device registration",
	Long: `Manage the device registration used to sign Audible API requests.

Examples:
  audible auth login                      # Sign in to audible.com, paste the redirect URL
  audible auth login --country de         # Sign in to audible.de
  audible auth login --strategy server    # Sign in through a local web page
  audible auth status                     # Show the stored registration
  audible auth logout                     # Remove the stored registration`,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	Long: `Remove the stored session. The device stays registered with Audible
until it is deregistered from the account's device list.`,
	RunE: runAuthLogout,
}

// authPrint prints output only if the --quiet flag is not set.
func authPrint(cmd *cobra.Command, format string, args ...interface{}) {
	if !authQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

// applyAuthFlags overrides the loaded config with explicitly set auth flags.
func applyAuthFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("session") {
		path, err := config.ExpandHome(authSessionPath)
		if err != nil {
			return err
		}
		cfg.SessionPath = path
	}
	if flags.Changed("keyring") {
		cfg.Keyring = authKeyring
	}
	if flags.Changed("profile") {
		cfg.Profile = authProfile
	}
	return nil
}

// sessionStore returns the store selected by the config.
func sessionStore() session.Store {
	if cfg.Keyring {
		return session.NewKeyringStore(cfg.Profile)
	}
	return session.NewFileStore(cfg.SessionPath)
}

// loadSession loads the stored session, mapping failures to CLI auth errors.
func loadSession() (*session.Session, session.Store, error) {
	store := sessionStore()
	s, err := store.Load()
	if err != nil {
		return nil, store, cli.SessionError(err, store.Location())
	}
	return s, store, nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	if err := applyAuthFlags(cmd); err != nil {
		return err
	}
	store := sessionStore()
	if err := store.Delete(); err != nil {
		return err
	}
	authPrint(cmd, "Removed session from %s\n", store.Location())
	return nil
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)

	authCmd.PersistentFlags().StringVar(&authSessionPath, "session", "", "session file (default is $HOME/.config/audible/auth.json)")
	authCmd.PersistentFlags().BoolVar(&authKeyring, "keyring", false, "store the session in the OS keychain instead of a file")
	authCmd.PersistentFlags().StringVar(&authProfile, "profile", "default", "keychain entry name used with --keyring")
	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "suppress non-essential output")
}
