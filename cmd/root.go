package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmarkh/audible-api/internal/cli"
	"github.com/cmarkh/audible-api/internal/config"
	"github.com/cmarkh/audible-api/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates no usable session is available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the sign-in or device registration failed.
	ExitCodeAuthFailed = 3
)

var (
	configPath string
	logLevel   string

	// cfg is loaded before every command runs.
	cfg config.Config
)

// rootCmd represents the base command for the audible application.
var rootCmd = &cobra.Command{
	Use:   "audible",
	Short: "Register a device with Audible and sign API requests",
	Long: `audible signs in to an Audible marketplace as a virtual iOS device,
stores the resulting device registration, and uses it to sign requests
to the Audible API.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "audible version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authExpired *cli.AuthExpiredError
	if errors.As(err, &authExpired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	level, err := logging.ParseLevel(loaded.LogLevel)
	if err != nil {
		return err
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	cfg = loaded
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/audible/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
