package capture

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmarkh/audible-api/internal/locale"
	"github.com/cmarkh/audible-api/pkg/oauth"
)

const pastedURL = "https://www.amazon.com/ap/maplanding?openid.assoc_handle=amzn_audible_ios_us&openid.oa2.authorization_code=ANcodeXYZ&openid.mode=id_res"

func TestReadPastedURL(t *testing.T) {
	var out bytes.Buffer
	got, err := readPastedURL(strings.NewReader("  "+pastedURL+"\n"), &out, "\n")
	require.NoError(t, err)
	assert.Equal(t, pastedURL, got)

	echoed := out.String()
	assert.Contains(t, echoed, "maplanding\n?openid.assoc_handle")
	assert.Contains(t, echoed, "amzn_audible_ios_us\n&openid.oa2.authorization_code")
	assert.Equal(t, pastedURL, strings.TrimSpace(strings.ReplaceAll(echoed, "\n", "")))
}

func TestReadPastedURL_CarriageReturn(t *testing.T) {
	got, err := readPastedURL(strings.NewReader("\r\nabc\rleftover"), &bytes.Buffer{}, "\r\n")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestReadPastedURL_Backspace(t *testing.T) {
	got, err := readPastedURL(strings.NewReader("abx\x7fc\n"), &bytes.Buffer{}, "\n")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestReadPastedURL_Abort(t *testing.T) {
	_, err := readPastedURL(strings.NewReader("abc\x03"), &bytes.Buffer{}, "\n")
	assert.ErrorIs(t, err, ErrInputAborted)

	_, err = readPastedURL(strings.NewReader(""), &bytes.Buffer{}, "\n")
	assert.ErrorIs(t, err, ErrInputAborted)
}

func TestReadPastedURL_EOFWithoutNewline(t *testing.T) {
	got, err := readPastedURL(strings.NewReader("abc"), &bytes.Buffer{}, "\n")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestTerminalAcquirer_Acquire(t *testing.T) {
	loc, err := locale.Resolve("us")
	require.NoError(t, err)

	var opened string
	var out bytes.Buffer
	a := &TerminalAcquirer{
		In:          strings.NewReader(pastedURL + "\n"),
		Out:         &out,
		OpenBrowser: func(u string) error { opened = u; return nil },
	}

	res, err := a.Acquire(context.Background(), Request{Locale: loc, DeviceSerial: "SERIAL1"})
	require.NoError(t, err)

	assert.Equal(t, ResultGrant, res.Kind)
	assert.Nil(t, res.Registration)
	assert.Equal(t, "ANcodeXYZ", res.Grant.AuthorizationCode)
	assert.Equal(t, "SERIAL1", res.Grant.DeviceSerial)
	assert.Equal(t, "com", res.Grant.Domain)
	assert.Equal(t, loc, res.Locale)

	parsed, err := url.Parse(opened)
	require.NoError(t, err)
	assert.Equal(t, oauth.S256Challenge(res.Grant.CodeVerifier), parsed.Query().Get("openid.oa2.code_challenge"))
	assert.Equal(t, "device:"+oauth.ClientID("SERIAL1"), parsed.Query().Get("openid.oa2.client_id"))
	assert.Contains(t, out.String(), "Please log in")
}

func TestTerminalAcquirer_MissingCode(t *testing.T) {
	loc, _ := locale.Resolve("de")
	a := &TerminalAcquirer{
		In:          strings.NewReader("https://www.amazon.de/ap/maplanding?foo=bar\n"),
		Out:         &bytes.Buffer{},
		OpenBrowser: func(string) error { return nil },
	}
	_, err := a.Acquire(context.Background(), Request{Locale: loc})
	assert.ErrorIs(t, err, oauth.ErrAuthorizationCodeMissing)
}

func TestTerminalAcquirer_UnsupportedUsernameDomain(t *testing.T) {
	loc, _ := locale.Resolve("jp")
	a := &TerminalAcquirer{In: strings.NewReader(""), Out: &bytes.Buffer{}}
	_, err := a.Acquire(context.Background(), Request{Locale: loc, WithUsername: true})
	assert.ErrorIs(t, err, oauth.ErrUnsupportedDomain)
}

func TestTerminalAcquirer_BrowserFailurePrintsURL(t *testing.T) {
	loc, _ := locale.Resolve("uk")
	var out bytes.Buffer
	a := &TerminalAcquirer{
		In:          strings.NewReader(pastedURL + "\n"),
		Out:         &out,
		OpenBrowser: func(string) error { return assert.AnError },
	}
	_, err := a.Acquire(context.Background(), Request{Locale: loc})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "https://www.amazon.co.uk/ap/signin?")
}
