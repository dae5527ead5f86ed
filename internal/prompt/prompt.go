// Package prompt asks the operator for a yes/no decision on the terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrNotInteractive = errors.New("confirmation required but stdin is not a terminal (use --force)")

// Terminal implements provider.Confirmer by reading answers line by line.
type Terminal struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// New returns a Terminal reading from in and writing to out. When in is an
// *os.File it must be a terminal, other readers are always accepted.
func New(in io.Reader, out io.Writer) *Terminal {
	interactive := true
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &Terminal{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// Confirm prints the question and the affected items, then asks for y or n
// until it gets one. Answers are case-insensitive.
func (t *Terminal) Confirm(ctx context.Context, question string, items []string) (bool, error) {
	if !t.interactive {
		return false, ErrNotInteractive
	}

	fmt.Fprintln(t.out, question)
	for _, item := range items {
		fmt.Fprintln(t.out, item)
	}
	fmt.Fprintln(t.out, "[y/n]")

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		line, err := t.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, errors.New("no answer on stdin")
			}
			return false, err
		}

		fmt.Fprintln(t.out, "please respond with y or n")
	}
}
