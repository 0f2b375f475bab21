// Package prompt asks the operator for input.
package prompt

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/colonyops/tsync/internal/core/styles"
)

// ErrAborted is returned when the operator cancels a prompt.
var ErrAborted = errors.New("prompt aborted")

// Prompter asks questions and returns the answers.
type Prompter interface {
	// Select returns the index of the chosen option.
	Select(ctx context.Context, title string, options []string) (int, error)
	Input(ctx context.Context, title string) (string, error)
}

// Huh prompts with charmbracelet/huh forms. When the input is not a
// terminal the forms run in accessible mode and read plain lines.
type Huh struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

// NewHuh creates a Prompter reading from in and writing to out. Nil values
// default to stdin and stdout.
func NewHuh(in io.Reader, out io.Writer) *Huh {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	accessible := true
	if f, ok := in.(*os.File); ok {
		accessible = !term.IsTerminal(int(f.Fd()))
	}

	return &Huh{in: in, out: out, accessible: accessible}
}

func (h *Huh) Select(ctx context.Context, title string, options []string) (int, error) {
	opts := make([]huh.Option[int], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, i)
	}

	var choice int
	err := h.run(ctx, huh.NewSelect[int]().
		Title(title).
		Options(opts...).
		Value(&choice))
	if err != nil {
		return 0, err
	}
	return choice, nil
}

func (h *Huh) Input(ctx context.Context, title string) (string, error) {
	var value string
	if err := h.run(ctx, huh.NewInput().Title(title).Value(&value)); err != nil {
		return "", err
	}
	return value, nil
}

func (h *Huh) run(ctx context.Context, field huh.Field) error {
	err := huh.NewForm(huh.NewGroup(field)).
		WithTheme(styles.FormTheme()).
		WithAccessible(h.accessible).
		WithInput(h.in).
		WithOutput(h.out).
		WithShowHelp(false).
		RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, io.EOF) {
		return ErrAborted
	}
	return err
}
