package signin

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmarkh/audible-api/internal/capture"
	"github.com/cmarkh/audible-api/internal/locale"
	"github.com/cmarkh/audible-api/internal/registration"
	"github.com/cmarkh/audible-api/internal/session"
)

type stubRegistrar struct {
	calls atomic.Int32
	last  registration.Request
	err   error
}

func (s *stubRegistrar) Register(_ context.Context, req registration.Request) (*registration.Registration, error) {
	s.calls.Add(1)
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &registration.Registration{
		DeviceSerial:     req.DeviceSerial,
		ADPToken:         "adp",
		DevicePrivateKey: "key",
		Expires:          time.Now().Add(time.Hour).Unix(),
	}, nil
}

func grantAcquirer(calls *atomic.Int32) capture.Acquirer {
	return capture.FuncAcquirer(func(_ context.Context, req capture.Request) (*capture.Result, error) {
		if calls != nil {
			calls.Add(1)
		}
		return &capture.Result{
			Kind:   capture.ResultGrant,
			Locale: req.Locale,
			Grant: &capture.Grant{
				AuthorizationCode: "ANcode",
				CodeVerifier:      "verifier",
				Domain:            req.Locale.Domain,
				DeviceSerial:      "SERIAL1",
			},
		}, nil
	})
}

func TestNewManager_RequiresAcquirer(t *testing.T) {
	_, err := NewManager(Config{CountryCode: "us"})
	assert.Error(t, err)
}

func TestSignIn_GrantIsRegistered(t *testing.T) {
	registrar := &stubRegistrar{}
	m, err := NewManager(Config{
		CountryCode:  "de",
		WithUsername: true,
		Acquirer:     grantAcquirer(nil),
		Registrar:    registrar,
	})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, m.State())

	s, err := m.SignIn(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateRegistered, m.State())
	assert.Equal(t, int32(1), registrar.calls.Load())
	assert.Equal(t, "de", registrar.last.Domain)
	assert.True(t, registrar.last.WithUsername)
	assert.Equal(t, "ANcode", registrar.last.AuthorizationCode)

	assert.Equal(t, "de", s.Locale.CountryCode)
	assert.Equal(t, "SERIAL1", s.DeviceRegistration.DeviceSerial)
	assert.Equal(t, "ANcode", s.AuthorizationCode)
	assert.Equal(t, "verifier", s.CodeVerifier)
}

func TestSignIn_InlineRegistrationSkipsRegistrar(t *testing.T) {
	registrar := &stubRegistrar{}
	loc, _ := locale.Resolve("uk")
	acq := capture.FuncAcquirer(func(context.Context, capture.Request) (*capture.Result, error) {
		return &capture.Result{
			Kind:         capture.ResultRegistration,
			Locale:       loc,
			Grant:        &capture.Grant{AuthorizationCode: "c", CodeVerifier: "v", DeviceSerial: "S"},
			Registration: &registration.Registration{DeviceSerial: "S", ADPToken: "t", DevicePrivateKey: "k"},
		}, nil
	})

	m, err := NewManager(Config{CountryCode: "uk", Acquirer: acq, Registrar: registrar})
	require.NoError(t, err)

	s, err := m.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "S", s.DeviceRegistration.DeviceSerial)
	assert.Equal(t, int32(0), registrar.calls.Load())
}

func TestSignIn_UnknownLocale(t *testing.T) {
	m, _ := NewManager(Config{CountryCode: "zz", Acquirer: grantAcquirer(nil)})

	_, err := m.SignIn(context.Background())
	assert.ErrorIs(t, err, locale.ErrNotFound)
	assert.Equal(t, StateFailed, m.State())
	assert.ErrorIs(t, m.LastError(), locale.ErrNotFound)
}

func TestSignIn_RegistrationFailure(t *testing.T) {
	registrar := &stubRegistrar{err: &registration.Error{StatusCode: 401, Body: "denied"}}
	m, _ := NewManager(Config{CountryCode: "us", Acquirer: grantAcquirer(nil), Registrar: registrar})

	_, err := m.SignIn(context.Background())
	assert.ErrorIs(t, err, registration.ErrRegistrationFailed)
	assert.Equal(t, StateFailed, m.State())
}

func TestSignIn_CaptureTimeout(t *testing.T) {
	blocking := capture.FuncAcquirer(func(ctx context.Context, _ capture.Request) (*capture.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m, _ := NewManager(Config{CountryCode: "us", Acquirer: blocking, CaptureTimeout: 20 * time.Millisecond})

	_, err := m.SignIn(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateCancelled, m.State())
}

func TestLoadOrSignIn_UsesStoredSession(t *testing.T) {
	store := session.NewFileStore(filepath.Join(t.TempDir(), "auth.json"))
	loc, _ := locale.Resolve("us")
	require.NoError(t, store.Save(&session.Session{
		Locale:             loc,
		DeviceRegistration: &registration.Registration{DeviceSerial: "STORED", ADPToken: "t", DevicePrivateKey: "k"},
	}))

	var calls atomic.Int32
	m, _ := NewManager(Config{CountryCode: "us", Acquirer: grantAcquirer(&calls), Registrar: &stubRegistrar{}, Store: store})

	s, err := m.LoadOrSignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "STORED", s.DeviceRegistration.DeviceSerial)
	assert.Equal(t, int32(0), calls.Load())
}

func TestLoadOrSignIn_SignsInAndSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	store := session.NewFileStore(path)

	var calls atomic.Int32
	m, _ := NewManager(Config{CountryCode: "us", Acquirer: grantAcquirer(&calls), Registrar: &stubRegistrar{}, Store: store})

	s, err := m.LoadOrSignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SERIAL1", s.DeviceRegistration.DeviceSerial)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "SERIAL1", saved.DeviceRegistration.DeviceSerial)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoadOrSignIn_CorruptSessionSignsInAgain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))

	var calls atomic.Int32
	m, _ := NewManager(Config{
		CountryCode: "us",
		Acquirer:    grantAcquirer(&calls),
		Registrar:   &stubRegistrar{},
		Store:       session.NewFileStore(path),
	})

	_, err := m.LoadOrSignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoadOrSignIn_ConcurrentCallersShareSignIn(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	acq := capture.FuncAcquirer(func(ctx context.Context, req capture.Request) (*capture.Result, error) {
		calls.Add(1)
		<-release
		return grantAcquirer(nil).Acquire(ctx, req)
	})

	m, _ := NewManager(Config{
		CountryCode: "us",
		Acquirer:    acq,
		Registrar:   &stubRegistrar{},
		Store:       session.NewFileStore(filepath.Join(t.TempDir(), "auth.json")),
	})

	var wg sync.WaitGroup
	results := make([]*session.Session, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.LoadOrSignIn(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_user_login", StateAwaitingUserLogin.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "unknown", State(99).String())
}
