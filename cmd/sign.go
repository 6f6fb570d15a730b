package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cmarkh/audible-api/internal/formatting"
)

var (
	signBody   string
	signOutput string
)

var signCmd = &cobra.Command{
	Use:   "sign METHOD PATH",
	Short: "Print the signature headers for a request",
	Long: `Sign a request with the stored device key and print the x-adp-* headers.

PATH is the request path including its query string, e.g.
/1.0/library?num_results=10.`,
	Args: cobra.ExactArgs(2),
	RunE: runSign,
}

func runSign(cmd *cobra.Command, args []string) error {
	if err := applyAuthFlags(cmd); err != nil {
		return err
	}
	format, err := formatting.ParseFormat(signOutput)
	if err != nil {
		return err
	}

	s, _, err := loadSession()
	if err != nil {
		return err
	}
	signer, err := s.Signer()
	if err != nil {
		return err
	}

	headers, err := signer.Sign(strings.ToUpper(args[0]), args[1], []byte(signBody))
	if err != nil {
		return err
	}
	return formatting.Write(cmd.OutOrStdout(), format, headers.Map())
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVar(&signBody, "body", "", "request body")
	signCmd.Flags().StringVarP(&signOutput, "output", "o", "table", "output format: table, json, yaml")
	signCmd.Flags().StringVar(&authSessionPath, "session", "", "session file (default is $HOME/.config/audible/auth.json)")
	signCmd.Flags().BoolVar(&authKeyring, "keyring", false, "read the session from the OS keychain")
	signCmd.Flags().StringVar(&authProfile, "profile", "default", "keychain entry name used with --keyring")
}
