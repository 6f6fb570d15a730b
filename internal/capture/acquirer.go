package capture

import (
	"context"

	"github.com/cmarkh/audible-api/internal/locale"
	"github.com/cmarkh/audible-api/internal/registration"
)

// ResultKind tags the payload carried by a Result.
type ResultKind int

const (
	// ResultGrant carries an authorization code still to be registered.
	ResultGrant ResultKind = iota
	// ResultRegistration carries a completed device registration.
	ResultRegistration
)

func (k ResultKind) String() string {
	switch k {
	case ResultGrant:
		return "grant"
	case ResultRegistration:
		return "registration"
	default:
		return "unknown"
	}
}

// Grant is an authorization code together with the PKCE verifier and device
// serial that produced it.
type Grant struct {
	AuthorizationCode string
	CodeVerifier      string
	Domain            string
	DeviceSerial      string
}

// Result is the outcome of an acquisition. Grant is always set; Registration
// is set only when Kind is ResultRegistration.
type Result struct {
	Kind         ResultKind
	Locale       locale.Locale
	Grant        *Grant
	Registration *registration.Registration
}

// Request describes one acquisition.
type Request struct {
	Locale locale.Locale

	// DeviceSerial is reused when set; a fresh serial is generated otherwise.
	DeviceSerial string

	WithUsername bool
}

// Acquirer obtains an authorization code (or a finished registration) from
// the user. Implementations block until the user completes the login or ctx
// is done.
type Acquirer interface {
	Acquire(ctx context.Context, req Request) (*Result, error)
}

// FuncAcquirer adapts a function to the Acquirer interface. It lets callers
// plug in their own capture, such as a webview or a test double.
type FuncAcquirer func(ctx context.Context, req Request) (*Result, error)

func (f FuncAcquirer) Acquire(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
