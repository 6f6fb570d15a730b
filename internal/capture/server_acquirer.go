package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cmarkh/audible-api/pkg/logging"
	"github.com/cmarkh/audible-api/pkg/oauth"
)

// ServerAcquirer runs a local sign-in server for the duration of one
// acquisition. The capture endpoint registers the device inline, so the
// result is always a ResultRegistration.
type ServerAcquirer struct {
	Registrar Registrar

	// Port to bind on 127.0.0.1. Zero picks an ephemeral port.
	Port int

	// EntryTTL bounds how long the pending sign-in is kept.
	EntryTTL time.Duration

	// Out receives instructions. Defaults to os.Stdout.
	Out io.Writer

	// OpenBrowser defaults to the package OpenBrowser.
	OpenBrowser func(url string) error

	// OnListening, if set, is called with the local sign-in URL once the
	// listener is bound.
	OnListening func(signInURL string)
}

func (a *ServerAcquirer) Acquire(ctx context.Context, req Request) (*Result, error) {
	out, open := a.Out, a.OpenBrowser
	if out == nil {
		out = os.Stdout
	}
	if open == nil {
		open = OpenBrowser
	}

	serial := req.DeviceSerial
	if serial == "" {
		serial = oauth.NewDeviceSerial()
	}

	if req.WithUsername && !oauth.SupportsUsername(req.Locale.Domain) {
		return nil, fmt.Errorf("%w: %s", oauth.ErrUnsupportedDomain, req.Locale.Domain)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", a.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start sign-in server on %s: %w", addr, err)
	}

	pending := NewPendingDevices(a.EntryTTL)
	defer pending.Stop()
	registrations := NewRegistrations(a.EntryTTL)
	defer registrations.Stop()

	signal := NewSignal()
	failures := make(chan CaptureFailure, 8)

	srv := NewCallbackServer(ServerConfig{
		Registrar:     a.Registrar,
		Pending:       pending,
		Registrations: registrations,
		Signal:        signal,
		Failures:      failures,
		WithUsername:  req.WithUsername,
	})
	httpServer := srv.NewHTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sign-in server failed: %w", err)
		}
		return nil
	})

	signInURL := SignInURL("http://"+listener.Addr().String(), req.Locale.CountryCode, serial)
	logging.Debug("Capture", "Sign-in server listening on %s", listener.Addr())
	if a.OnListening != nil {
		a.OnListening(signInURL)
	}

	if err := open(signInURL); err != nil {
		logging.Warn("Capture", "Could not open browser: %v", err)
		fmt.Fprintf(out, "Open this URL in your browser to sign in:\n\n  %s\n\n", signInURL)
	} else {
		fmt.Fprintf(out, "Opened %s in your default web browser.\n", signInURL)
	}

	result, waitErr := waitForRegistration(gctx, serial, signal, failures, registrations)

	// The result is already recorded; in-flight responses are not drained.
	_ = httpServer.Close()
	if err := g.Wait(); err != nil && waitErr == nil {
		waitErr = err
	}

	if waitErr != nil {
		pending.Remove(serial)
		return nil, waitErr
	}
	return result, nil
}

// waitForRegistration claims the signal as its single waiter and returns
// the registration for serial once it fires, or the first capture failure
// reported for serial.
func waitForRegistration(ctx context.Context, serial string, signal *Signal, failures <-chan CaptureFailure, registrations *Registrations) (*Result, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fired := make(chan error, 1)
	go func() {
		fired <- signal.Wait(waitCtx)
	}()

	for {
		select {
		case err := <-fired:
			if err != nil {
				return nil, err
			}
			res, ok := registrations.Take(serial)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrRegistrationMissing, serial)
			}
			return res, nil

		case failure := <-failures:
			if failure.DeviceSerial == serial {
				return nil, failure
			}
			logging.Warn("Capture", "Ignoring capture failure for unrelated device %s", failure.DeviceSerial)
		}
	}
}
