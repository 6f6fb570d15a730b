package signin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cmarkh/audible-api/internal/capture"
	"github.com/cmarkh/audible-api/internal/locale"
	"github.com/cmarkh/audible-api/internal/registration"
	"github.com/cmarkh/audible-api/internal/session"
	"github.com/cmarkh/audible-api/pkg/logging"
)

// State is the progress of the current sign-in.
type State int

const (
	StateIdle State = iota
	StateAwaitingUserLogin
	StateCaptureReceived
	StateRegistered
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingUserLogin:
		return "awaiting_user_login"
	case StateCaptureReceived:
		return "capture_received"
	case StateRegistered:
		return "registered"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Config configures a Manager.
type Config struct {
	// CountryCode selects the marketplace, e.g. "us" or "de".
	CountryCode string

	// DeviceSerial is reused when set.
	DeviceSerial string

	WithUsername bool

	// Acquirer obtains the authorization code. Required.
	Acquirer capture.Acquirer

	// Registrar registers grants returned by the acquirer. Required unless
	// the acquirer registers inline.
	Registrar capture.Registrar

	// Store is consulted and updated by LoadOrSignIn and SignInAndSave.
	Store session.Store

	// CaptureTimeout bounds the wait for the user. Zero means no limit
	// beyond the caller's context.
	CaptureTimeout time.Duration
}

// Manager runs sign-ins and tracks their state. It is safe for concurrent
// use; concurrent LoadOrSignIn calls share one sign-in.
type Manager struct {
	mu        sync.RWMutex
	config    Config
	state     State
	lastError error
	group     singleflight.Group
}

// NewManager creates a manager.
func NewManager(config Config) (*Manager, error) {
	if config.Acquirer == nil {
		return nil, errors.New("signin: an acquirer is required")
	}
	return &Manager{config: config, state: StateIdle}, nil
}

// State returns the state of the most recent sign-in.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastError returns the error that ended the most recent sign-in, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

func (m *Manager) setState(state State, err error) {
	m.mu.Lock()
	m.state = state
	m.lastError = err
	m.mu.Unlock()
	logging.Debug("SignIn", "State: %s", state)
}

func (m *Manager) fail(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		m.setState(StateCancelled, err)
	} else {
		m.setState(StateFailed, err)
	}
	return err
}

// SignIn performs a full interactive sign-in and returns the new session.
// The session is not persisted.
func (m *Manager) SignIn(ctx context.Context) (*session.Session, error) {
	loc, err := locale.Resolve(m.config.CountryCode)
	if err != nil {
		return nil, m.fail(err)
	}

	acquireCtx := ctx
	if m.config.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.config.CaptureTimeout)
		defer cancel()
	}

	m.setState(StateAwaitingUserLogin, nil)
	logging.Info("SignIn", "Waiting for sign-in to Audible %s", loc.CountryCode)

	res, err := m.config.Acquirer.Acquire(acquireCtx, capture.Request{
		Locale:       loc,
		DeviceSerial: m.config.DeviceSerial,
		WithUsername: m.config.WithUsername,
	})
	if err != nil {
		return nil, m.fail(fmt.Errorf("failed to capture authorization code: %w", err))
	}
	if res == nil || res.Grant == nil {
		return nil, m.fail(errors.New("acquirer returned no grant"))
	}
	m.setState(StateCaptureReceived, nil)

	reg, err := m.registrationFor(ctx, res)
	if err != nil {
		return nil, m.fail(err)
	}

	if res.Locale.CountryCode != "" {
		loc = res.Locale
	}
	m.setState(StateRegistered, nil)
	logging.Info("SignIn", "Device %s registered", reg.DeviceSerial)

	return &session.Session{
		Locale:             loc,
		DeviceRegistration: reg,
		AuthorizationCode:  res.Grant.AuthorizationCode,
		CodeVerifier:       res.Grant.CodeVerifier,
	}, nil
}

func (m *Manager) registrationFor(ctx context.Context, res *capture.Result) (*registration.Registration, error) {
	switch res.Kind {
	case capture.ResultRegistration:
		if res.Registration == nil {
			return nil, errors.New("acquirer returned an empty registration")
		}
		return res.Registration, nil

	case capture.ResultGrant:
		if m.config.Registrar == nil {
			return nil, errors.New("signin: no registrar configured for grant")
		}
		reg, err := m.config.Registrar.Register(ctx, registration.Request{
			AuthorizationCode: res.Grant.AuthorizationCode,
			CodeVerifier:      res.Grant.CodeVerifier,
			Domain:            res.Grant.Domain,
			DeviceSerial:      res.Grant.DeviceSerial,
			WithUsername:      m.config.WithUsername,
		})
		if err != nil {
			return nil, err
		}
		return reg, nil

	default:
		return nil, fmt.Errorf("unknown acquisition result %s", res.Kind)
	}
}

// SignInAndSave signs in and persists the session to the configured store.
func (m *Manager) SignInAndSave(ctx context.Context) (*session.Session, error) {
	s, err := m.SignIn(ctx)
	if err != nil {
		return nil, err
	}
	if m.config.Store != nil {
		if err := m.config.Store.Save(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadOrSignIn returns the stored session, signing in and saving a new one
// when none can be loaded. An unreadable stored session is treated as
// absent.
func (m *Manager) LoadOrSignIn(ctx context.Context) (*session.Session, error) {
	v, err, _ := m.group.Do("session", func() (any, error) {
		if m.config.Store != nil {
			s, err := m.config.Store.Load()
			if err == nil {
				if s.Expired(time.Now()) {
					logging.Info("SignIn", "Stored bearer token expired at %s; request signing is unaffected",
						s.DeviceRegistration.ExpiresAt().Format(time.RFC3339))
				}
				return s, nil
			}
			if errors.Is(err, session.ErrNotFound) {
				logging.Debug("SignIn", "No stored session at %s", m.config.Store.Location())
			} else {
				logging.Warn("SignIn", "Stored session unusable, signing in again: %v", err)
			}
		}
		return m.SignInAndSave(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}
