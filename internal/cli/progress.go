package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WithSpinner runs fn while showing a spinner with msg on w. The spinner is
// skipped in quiet mode.
func WithSpinner(w io.Writer, quiet bool, msg string, fn func() error) error {
	if quiet {
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + msg
	s.Start()

	err := fn()
	if err != nil {
		s.FinalMSG = text.FgRed.Sprint("✗ "+msg) + "\n"
	} else {
		s.FinalMSG = text.FgGreen.Sprint("✓ "+msg) + "\n"
	}
	s.Stop()
	return err
}
