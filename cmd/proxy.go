package cmd

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/cmarkh/audible-api/internal/api"
	"github.com/cmarkh/audible-api/internal/cli"
	"github.com/cmarkh/audible-api/pkg/logging"
)

var proxyAddr string

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Serve a local proxy that signs Audible API requests",
	Long: `Serve a local HTTP proxy that forwards every request to the Audible API
of the session's marketplace, signed with the stored device key.

The session file is watched; a new 'audible auth login' takes effect
without restarting the proxy.

Example:
  audible proxy --addr 127.0.0.1:8081 &
  curl 'http://127.0.0.1:8081/1.0/library?num_results=1'`,
	RunE: runProxy,
}

// newProxyHandler forwards requests to the client's current origin,
// signing them through the client.
func newProxyHandler(client *api.Client) http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			target, err := url.Parse(client.Origin())
			if err != nil {
				logging.Error("Proxy", err, "Invalid API origin %q", client.Origin())
				return
			}
			pr.SetURL(target)
		},
		Transport: client,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logging.Warn("Proxy", "%s %s failed: %v", r.Method, r.URL.RequestURI(), err)
			http.Error(w, "upstream request failed", http.StatusBadGateway)
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Handle("/*", proxy)
	return r
}

func runProxy(cmd *cobra.Command, args []string) error {
	if err := applyAuthFlags(cmd); err != nil {
		return err
	}

	s, store, err := loadSession()
	if err != nil {
		return err
	}

	var opts []api.Option
	if cfg.APIBaseURL != "" {
		opts = append(opts, api.WithBaseURL(cfg.APIBaseURL))
	}
	client, err := api.NewClient(s, opts...)
	if err != nil {
		return cli.SessionError(err, store.Location())
	}

	if cfg.Keyring {
		logging.Info("Proxy", "Session reload is not available with keyring storage")
	} else {
		stop, err := client.WatchSession(cfg.SessionPath)
		if err != nil {
			logging.Warn("Proxy", "Not watching %s: %v", cfg.SessionPath, err)
		} else {
			defer stop()
		}
	}

	listener, err := net.Listen("tcp", proxyAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", proxyAddr, err)
	}
	httpServer := &http.Server{
		Handler:           newProxyHandler(client),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Signing proxy for %s listening on http://%s\n", client.Origin(), listener.Addr())
	return serveUntilInterrupted(cmd, httpServer, listener)
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().StringVar(&proxyAddr, "addr", "127.0.0.1:8081", "address to listen on")
	proxyCmd.Flags().StringVar(&authSessionPath, "session", "", "session file (default is $HOME/.config/audible/auth.json)")
	proxyCmd.Flags().BoolVar(&authKeyring, "keyring", false, "read the session from the OS keychain")
	proxyCmd.Flags().StringVar(&authProfile, "profile", "default", "keychain entry name used with --keyring")
}
