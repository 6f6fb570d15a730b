package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/cmarkh/audible-api/internal/formatting"
	"github.com/cmarkh/audible-api/internal/session"
)

var authStatusOutput string

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored device registration",
	Long: `Show the marketplace, device and token expiry of the stored session.

Exits with code 2 when no session is stored.`,
	RunE: runAuthStatus,
}

// sessionStatus is the printable, secret-free view of a session.
type sessionStatus struct {
	Location      string     `json:"location"`
	CountryCode   string     `json:"country_code"`
	Domain        string     `json:"domain"`
	MarketplaceID string     `json:"marketplace_id"`
	DeviceSerial  string     `json:"device_serial"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Expired       bool       `json:"expired"`
}

func newSessionStatus(s *session.Session, location string) sessionStatus {
	st := sessionStatus{
		Location:      location,
		CountryCode:   s.Locale.CountryCode,
		Domain:        s.Locale.Domain,
		MarketplaceID: s.Locale.MarketplaceID,
	}
	if reg := s.DeviceRegistration; reg != nil {
		st.DeviceSerial = reg.DeviceSerial
		token := reg.BearerToken()
		st.Expired = token.AccessToken != "" && !token.Valid()
		if !token.Expiry.IsZero() {
			expires := token.Expiry
			st.ExpiresAt = &expires
		}
	}
	return st
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	if err := applyAuthFlags(cmd); err != nil {
		return err
	}
	format, err := formatting.ParseFormat(authStatusOutput)
	if err != nil {
		return err
	}

	s, store, err := loadSession()
	if err != nil {
		return err
	}
	st := newSessionStatus(s, store.Location())

	if format != formatting.FormatTable {
		return formatting.Write(cmd.OutOrStdout(), format, st)
	}

	authPrint(cmd, "Audible session\n")
	authPrint(cmd, "  Location:    %s\n", st.Location)
	authPrint(cmd, "  Marketplace: %s (audible.%s)\n", st.CountryCode, st.Domain)
	authPrint(cmd, "  Device:      %s\n", st.DeviceSerial)
	switch {
	case st.Expired:
		authPrint(cmd, "  Token:       %s\n", text.FgYellow.Sprint("Expired"))
		authPrint(cmd, "               Signed requests still work; bearer requests need: audible auth login\n")
	case st.ExpiresAt == nil:
		authPrint(cmd, "  Token:       %s\n", text.FgHiBlack.Sprint("No expiry recorded"))
	default:
		authPrint(cmd, "  Token:       %s\n", text.FgGreen.Sprint("Valid"))
		authPrint(cmd, "  Expires:     %s\n", formatExpiry(*st.ExpiresAt, time.Now()))
	}
	return nil
}

// formatExpiry renders t with a relative hint, e.g. "2026-01-02 15:04 (in 59m)".
func formatExpiry(t, now time.Time) string {
	d := t.Sub(now).Round(time.Minute)
	stamp := t.Local().Format("2006-01-02 15:04")
	if d < 0 {
		return fmt.Sprintf("%s (%s ago)", stamp, -d)
	}
	return fmt.Sprintf("%s (in %s)", stamp, d)
}

func init() {
	authStatusCmd.Flags().StringVarP(&authStatusOutput, "output", "o", "table", "output format: table, json, yaml")
}
