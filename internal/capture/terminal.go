package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/cmarkh/audible-api/pkg/logging"
	"github.com/cmarkh/audible-api/pkg/oauth"
)

// ErrInputAborted is returned when the user presses Ctrl-C or Ctrl-D while
// pasting the redirect URL.
var ErrInputAborted = errors.New("input aborted")

// TerminalAcquirer opens the vendor login page in a browser and reads the
// final redirect URL pasted back into the terminal.
type TerminalAcquirer struct {
	// In is read for the pasted URL. Defaults to os.Stdin.
	In io.Reader
	// Out receives instructions and the echoed input. Defaults to os.Stdout.
	Out io.Writer
	// OpenBrowser defaults to the package OpenBrowser.
	OpenBrowser func(url string) error
}

func (a *TerminalAcquirer) Acquire(ctx context.Context, req Request) (*Result, error) {
	in, out, open := a.In, a.Out, a.OpenBrowser
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if open == nil {
		open = OpenBrowser
	}

	authURL, err := oauth.BuildAuthorizationURL(oauth.AuthorizationRequest{
		CountryCode:   req.Locale.CountryCode,
		Domain:        req.Locale.Domain,
		MarketplaceID: req.Locale.MarketplaceID,
		DeviceSerial:  req.DeviceSerial,
		WithUsername:  req.WithUsername,
	})
	if err != nil {
		return nil, err
	}

	if err := open(authURL.URL); err != nil {
		logging.Warn("Capture", "Could not open browser: %v", err)
		fmt.Fprintf(out, "Open this URL in your browser:\n\n  %s\n\n", authURL.URL)
	} else {
		fmt.Fprintf(out, "Opened %s in your default web browser.\n", authURL.URL)
	}
	fmt.Fprintln(out, "Please log in and copy the resulting URL from your browser's address bar:")

	pasted, err := readFromTerminal(ctx, in, out)
	if err != nil {
		return nil, err
	}

	code, err := oauth.ExtractAuthorizationCode(pasted)
	if err != nil {
		return nil, err
	}

	return &Result{
		Kind:   ResultGrant,
		Locale: req.Locale,
		Grant: &Grant{
			AuthorizationCode: code,
			CodeVerifier:      authURL.CodeVerifier,
			Domain:            req.Locale.Domain,
			DeviceSerial:      authURL.DeviceSerial,
		},
	}, nil
}

// readFromTerminal switches a TTY to raw mode so pasted text arrives rune by
// rune, then reads one line. The read runs in its own goroutine so ctx can
// abandon it; the terminal is restored either way.
func readFromTerminal(ctx context.Context, in io.Reader, out io.Writer) (string, error) {
	newline := "\n"
	if f, ok := in.(*os.File); ok && readline.IsTerminal(int(f.Fd())) {
		state, err := readline.MakeRaw(int(f.Fd()))
		if err != nil {
			logging.Debug("Capture", "Raw mode unavailable, reading cooked input: %v", err)
		} else {
			defer readline.Restore(int(f.Fd()), state)
			newline = "\r\n"
		}
	}

	type readResult struct {
		line string
		err  error
	}
	done := make(chan readResult, 1)
	go func() {
		line, err := readPastedURL(bufio.NewReader(in), out, newline)
		done <- readResult{line, err}
	}()

	select {
	case res := <-done:
		fmt.Fprint(out, newline)
		return res.line, res.err
	case <-ctx.Done():
		fmt.Fprint(out, newline)
		return "", ctx.Err()
	}
}

// readPastedURL reads runes until a line terminator, echoing each one and
// starting a new display line before every '&' or '?' so long URLs stay
// legible. Only the display is affected; the returned text is trimmed input.
func readPastedURL(r io.RuneReader, out io.Writer, newline string) (string, error) {
	var sb strings.Builder

	for {
		c, _, err := r.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				break
			}
			if errors.Is(err, io.EOF) {
				return "", ErrInputAborted
			}
			return "", fmt.Errorf("failed to read input: %w", err)
		}

		switch c {
		case '\n', '\r':
			if sb.Len() == 0 {
				continue
			}
			return strings.TrimSpace(sb.String()), nil
		case 3, 4: // Ctrl-C, Ctrl-D
			return "", ErrInputAborted
		case 127, '\b':
			s := []rune(sb.String())
			if len(s) > 0 {
				sb.Reset()
				sb.WriteString(string(s[:len(s)-1]))
				fmt.Fprint(out, "\b \b")
			}
			continue
		case '&', '?':
			fmt.Fprint(out, newline)
		}

		fmt.Fprint(out, string(c))
		sb.WriteRune(c)
	}

	return strings.TrimSpace(sb.String()), nil
}
