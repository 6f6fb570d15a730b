package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cmarkh/audible-api/internal/capture"
	"github.com/cmarkh/audible-api/internal/registration"
	"github.com/cmarkh/audible-api/internal/session"
	"github.com/cmarkh/audible-api/pkg/logging"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sign-in server",
	Long: `Run the local sign-in server until interrupted.

Open /audible-signin?country-code=<cc> in a browser to register a device.
Every completed registration is saved as the session.`,
	RunE: runServe,
}

// sessionFromResult turns a completed server capture into a session.
func sessionFromResult(res *capture.Result) *session.Session {
	s := &session.Session{
		Locale:             res.Locale,
		DeviceRegistration: res.Registration,
	}
	if res.Grant != nil {
		s.AuthorizationCode = res.Grant.AuthorizationCode
		s.CodeVerifier = res.Grant.CodeVerifier
	}
	return s
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := applyAuthFlags(cmd); err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.ServeAddr = serveAddr
	}

	store := sessionStore()
	pending := capture.NewPendingDevices(capture.DefaultEntryTTL)
	defer pending.Stop()
	registrations := capture.NewRegistrations(capture.DefaultEntryTTL)
	defer registrations.Stop()

	server := capture.NewCallbackServer(capture.ServerConfig{
		Registrar:     registration.NewClient(registration.WithLogger(logging.Logger("Registration"))),
		Pending:       pending,
		Registrations: registrations,
		WithUsername:  cfg.WithUsername,
		OnRegistered: func(res *capture.Result) {
			if err := store.Save(sessionFromResult(res)); err != nil {
				logging.Error("Serve", err, "Failed to save session for device %s", res.Registration.DeviceSerial)
				return
			}
			logging.Info("Serve", "Session for device %s saved to %s", res.Registration.DeviceSerial, store.Location())
		},
	})

	listener, err := net.Listen("tcp", cfg.ServeAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ServeAddr, err)
	}
	httpServer := server.NewHTTPServer()

	base := "http://" + listener.Addr().String()
	fmt.Fprintf(cmd.OutOrStdout(), "Sign-in server listening on %s\n", base)
	fmt.Fprintf(cmd.OutOrStdout(), "Start a sign-in at %s\n", capture.SignInURL(base, cfg.CountryCode, ""))

	return serveUntilInterrupted(cmd, httpServer, listener)
}

// serveUntilInterrupted serves on listener until the command context ends or
// the process is interrupted, then shuts the server down gracefully.
func serveUntilInterrupted(cmd *cobra.Command, httpServer *http.Server, listener net.Listener) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "address to listen on")
	serveCmd.Flags().StringVar(&authSessionPath, "session", "", "session file (default is $HOME/.config/audible/auth.json)")
	serveCmd.Flags().BoolVar(&authKeyring, "keyring", false, "store sessions in the OS keychain instead of a file")
	serveCmd.Flags().StringVar(&authProfile, "profile", "default", "keychain entry name used with --keyring")
}
