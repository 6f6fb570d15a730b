package capture

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmarkh/audible-api/internal/locale"
	"github.com/cmarkh/audible-api/internal/registration"
	"github.com/cmarkh/audible-api/pkg/oauth"
)

// browserFor simulates a user completing the sign-in in a browser.
func browserFor(t *testing.T, responseURL string) func(string) error {
	return func(signInURL string) error {
		go func() {
			resp, err := http.Get(signInURL)
			if err != nil {
				t.Errorf("sign-in page: %v", err)
				return
			}
			resp.Body.Close()

			u, _ := url.Parse(signInURL)
			serial := u.Query().Get("device-id")
			capture := u.Scheme + "://" + u.Host + CapturePath + "?device_id=" + url.QueryEscape(serial)
			resp, err = http.Post(capture, "application/json",
				strings.NewReader(`{"response_url": "`+responseURL+`"}`))
			if err != nil {
				return
			}
			resp.Body.Close()
		}()
		return nil
	}
}

func TestServerAcquirer_Acquire(t *testing.T) {
	loc, _ := locale.Resolve("us")
	registrar := &fakeRegistrar{}

	a := &ServerAcquirer{
		Registrar:   registrar,
		Out:         &bytes.Buffer{},
		OpenBrowser: browserFor(t, "https://www.amazon.com/ap/maplanding?openid.oa2.authorization_code=ANcode"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := a.Acquire(ctx, Request{Locale: loc, DeviceSerial: "SERIAL1"})
	require.NoError(t, err)

	assert.Equal(t, ResultRegistration, res.Kind)
	assert.Equal(t, "SERIAL1", res.Registration.DeviceSerial)
	assert.Equal(t, "ANcode", res.Grant.AuthorizationCode)
	assert.Equal(t, loc, res.Locale)
	assert.Equal(t, 1, registrar.callCount())
}

func TestServerAcquirer_CaptureFailure(t *testing.T) {
	loc, _ := locale.Resolve("us")

	a := &ServerAcquirer{
		Registrar:   &fakeRegistrar{},
		Out:         &bytes.Buffer{},
		OpenBrowser: browserFor(t, "https://www.amazon.com/ap/maplanding?openid.mode=cancel"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := a.Acquire(ctx, Request{Locale: loc, DeviceSerial: "SERIAL1"})
	require.Error(t, err)

	var failure CaptureFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "SERIAL1", failure.DeviceSerial)
}

func TestServerAcquirer_UnsupportedUsernameDomain(t *testing.T) {
	loc, _ := locale.Resolve("fr")
	opened := false

	a := &ServerAcquirer{
		Registrar:   &fakeRegistrar{},
		Out:         &bytes.Buffer{},
		OpenBrowser: func(string) error { opened = true; return nil },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := a.Acquire(ctx, Request{Locale: loc, WithUsername: true})
	assert.ErrorIs(t, err, oauth.ErrUnsupportedDomain)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, opened)
}

func TestWaitForRegistration_IsTheSignalWaiter(t *testing.T) {
	signal := NewSignal()
	registrations := NewRegistrations(0)
	defer registrations.Stop()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := waitForRegistration(context.Background(), "SERIAL1", signal, nil, registrations)
		done <- outcome{res, err}
	}()

	require.Eventually(t, func() bool { return signal.waiting.Load() }, 5*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, signal.Wait(context.Background()), ErrSignalAwaited)

	registrations.Put(&Result{
		Kind:         ResultRegistration,
		Grant:        &Grant{DeviceSerial: "SERIAL1"},
		Registration: &registration.Registration{DeviceSerial: "SERIAL1"},
	})
	signal.Fire()

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, "SERIAL1", got.res.Registration.DeviceSerial)
	case <-time.After(5 * time.Second):
		t.Fatal("waitForRegistration did not return after the signal fired")
	}
}

func TestWaitForRegistration_SignalAlreadyAwaited(t *testing.T) {
	signal := NewSignal()
	registrations := NewRegistrations(0)
	defer registrations.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = signal.Wait(ctx) }()
	require.Eventually(t, func() bool { return signal.waiting.Load() }, 5*time.Second, 5*time.Millisecond)

	_, err := waitForRegistration(context.Background(), "SERIAL1", signal, nil, registrations)
	assert.ErrorIs(t, err, ErrSignalAwaited)
}

func TestServerAcquirer_Timeout(t *testing.T) {
	loc, _ := locale.Resolve("us")
	var listening string

	a := &ServerAcquirer{
		Registrar:   &fakeRegistrar{},
		Out:         &bytes.Buffer{},
		OpenBrowser: func(string) error { return nil },
		OnListening: func(u string) { listening = u },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := a.Acquire(ctx, Request{Locale: loc})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotEmpty(t, listening)

	// The listener is closed once the acquisition ends.
	client := &http.Client{Timeout: time.Second}
	_, err = client.Get(listening)
	assert.Error(t, err)
}
