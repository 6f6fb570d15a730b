package capture

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cmarkh/audible-api/internal/locale"
	"github.com/cmarkh/audible-api/internal/registration"
	"github.com/cmarkh/audible-api/pkg/logging"
	"github.com/cmarkh/audible-api/pkg/oauth"
)

// Routes served by the sign-in server.
const (
	SignInPath  = "/audible-signin"
	CapturePath = "/audible-signin/capture"
	SuccessPath = "/audible-signin/success"
)

// maxCaptureBody bounds the JSON body of a capture request.
const maxCaptureBody = 64 << 10

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(
	template.New("pages").Funcs(sprig.HtmlFuncMap()).ParseFS(templateFS, "templates/*.html"),
)

// Registrar registers a device from a captured authorization code.
// *registration.Client satisfies it.
type Registrar interface {
	Register(ctx context.Context, req registration.Request) (*registration.Registration, error)
}

// ServerConfig wires a CallbackServer to the tables and collaborators it uses.
type ServerConfig struct {
	Registrar     Registrar
	Pending       *PendingDevices
	Registrations *Registrations

	// Signal, when set, is fired by the success route. A standalone server
	// leaves it nil.
	Signal *Signal

	// Failures receives capture errors. Sends never block; a full or nil
	// channel drops the report.
	Failures chan<- CaptureFailure

	// OnRegistered is called after each registration is recorded.
	OnRegistered func(*Result)

	// WithUsername selects the username login flow for new sign-ins.
	WithUsername bool
}

// CallbackServer serves the local sign-in pages and captures the vendor
// redirect URL posted back by the browser.
type CallbackServer struct {
	config ServerConfig
	router chi.Router
}

type captureRequest struct {
	ResponseURL string `json:"response_url"`
}

type signInPage struct {
	Locale       locale.Locale
	OAuthURL     string
	CaptureURL   string
	DeviceSerial string
}

// NewCallbackServer builds the router. Pending and Registrations are
// required.
func NewCallbackServer(config ServerConfig) *CallbackServer {
	s := &CallbackServer{config: config}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Get(SignInPath, s.handleSignIn)
	r.Post(CapturePath, s.handleCapture)
	r.Get(SuccessPath, s.handleSuccess)
	s.router = r

	return s
}

// Handler returns the server's HTTP handler.
func (s *CallbackServer) Handler() http.Handler {
	return s.router
}

// NewHTTPServer wraps the handler in an http.Server with the read timeouts
// used for the local listener.
func (s *CallbackServer) NewHTTPServer() *http.Server {
	return &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// SignInURL returns the local URL that starts a sign-in for countryCode.
// An empty deviceSerial lets the server generate one.
func SignInURL(baseURL, countryCode, deviceSerial string) string {
	q := url.Values{}
	q.Set("country-code", countryCode)
	if deviceSerial != "" {
		q.Set("device-id", deviceSerial)
	}
	return baseURL + SignInPath + "?" + q.Encode()
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'; script-src 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *CallbackServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	loc, err := locale.Resolve(query.Get("country-code"))
	if err != nil {
		logging.Warn("Capture", "Sign-in requested for unknown country code %q", query.Get("country-code"))
		http.Error(w, "Country code not found", http.StatusNotFound)
		return
	}

	authURL, err := oauth.BuildAuthorizationURL(oauth.AuthorizationRequest{
		CountryCode:   loc.CountryCode,
		Domain:        loc.Domain,
		MarketplaceID: loc.MarketplaceID,
		DeviceSerial:  query.Get("device-id"),
		WithUsername:  s.config.WithUsername,
	})
	if err != nil {
		logging.Warn("Capture", "Failed to build authorization URL: %v", err)
		if serial := query.Get("device-id"); serial != "" {
			s.reportFailure(serial, err)
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.config.Pending.Put(&PendingDevice{
		DeviceSerial:  authURL.DeviceSerial,
		CodeVerifier:  authURL.CodeVerifier,
		OAuthURL:      authURL.URL,
		CountryCode:   loc.CountryCode,
		Domain:        loc.Domain,
		MarketplaceID: loc.MarketplaceID,
		WithUsername:  s.config.WithUsername,
		CreatedAt:     time.Now(),
	})
	logging.Debug("Capture", "Sign-in started for device %s (%s)", authURL.DeviceSerial, loc.CountryCode)

	s.render(w, "signin.html", signInPage{
		Locale:       loc,
		OAuthURL:     authURL.URL,
		CaptureURL:   CapturePath + "?" + url.Values{"device_id": {authURL.DeviceSerial}}.Encode(),
		DeviceSerial: authURL.DeviceSerial,
	})
}

func (s *CallbackServer) handleCapture(w http.ResponseWriter, r *http.Request) {
	serial := r.URL.Query().Get("device_id")

	res, err := s.capture(r.Context(), serial, r.Body)
	if err != nil {
		logging.Error("Capture", err, "Capture failed for device %s", serial)
		s.reportFailure(serial, err)
		http.Error(w, "Sign-in failed", http.StatusInternalServerError)
		return
	}

	s.config.Registrations.Put(res)
	if s.config.OnRegistered != nil {
		s.config.OnRegistered(res)
	}
	logging.Info("Capture", "Device %s registered", serial)

	http.Redirect(w, r, SuccessPath, http.StatusSeeOther)
}

func (s *CallbackServer) capture(ctx context.Context, serial string, body io.Reader) (*Result, error) {
	var req captureRequest
	if err := json.NewDecoder(io.LimitReader(body, maxCaptureBody)).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid capture body: %w", err)
	}

	code, err := oauth.ExtractAuthorizationCode(req.ResponseURL)
	if err != nil {
		return nil, err
	}

	device, ok := s.config.Pending.Take(serial)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, serial)
	}

	grant := &Grant{
		AuthorizationCode: code,
		CodeVerifier:      device.CodeVerifier,
		Domain:            device.Domain,
		DeviceSerial:      device.DeviceSerial,
	}

	if s.config.Registrar == nil {
		return nil, errors.New("no registrar configured")
	}
	reg, err := s.config.Registrar.Register(ctx, registration.Request{
		AuthorizationCode: grant.AuthorizationCode,
		CodeVerifier:      grant.CodeVerifier,
		Domain:            grant.Domain,
		DeviceSerial:      grant.DeviceSerial,
		WithUsername:      device.WithUsername,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Kind: ResultRegistration,
		Locale: locale.Locale{
			CountryCode:   device.CountryCode,
			Domain:        device.Domain,
			MarketplaceID: device.MarketplaceID,
		},
		Grant:        grant,
		Registration: reg,
	}, nil
}

func (s *CallbackServer) handleSuccess(w http.ResponseWriter, r *http.Request) {
	if s.config.Signal != nil {
		switch {
		case s.config.Registrations == nil || s.config.Registrations.Len() == 0:
			logging.Debug("Capture", "Success page requested with no registration recorded; not signalling")
		case s.config.Signal.Fire():
			logging.Debug("Capture", "Sign-in completion signalled")
		}
	}
	s.render(w, "success.html", nil)
}

func (s *CallbackServer) reportFailure(serial string, err error) {
	if s.config.Failures == nil {
		return
	}
	select {
	case s.config.Failures <- CaptureFailure{DeviceSerial: serial, Err: err}:
	default:
		logging.Warn("Capture", "Dropped capture failure for device %s", serial)
	}
}

func (s *CallbackServer) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		logging.Error("Capture", err, "Failed to render %s", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
