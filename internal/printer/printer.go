// Package printer writes operator-facing output. Logs go to the log file;
// everything the operator needs to read goes through a Printer.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/gosuri/uitable"

	"github.com/colonyops/tsync/internal/core/styles"
)

const wordWrap = 100

type ctxKey struct{}

// Printer writes styled status lines, tables and markdown.
type Printer struct {
	w io.Writer
}

// New creates a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// NewContext stores p in ctx.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the Printer stored in ctx, or one writing to stdout.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok && p != nil {
		return p
	}
	return New(os.Stdout)
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) line(prefix, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if prefix != "" {
		msg = prefix + " " + msg
	}
	_, _ = fmt.Fprintln(p.w, msg)
}

func (p *Printer) Printf(format string, args ...any) {
	p.line("", format, args...)
}

func (p *Printer) Infof(format string, args ...any) {
	p.line(styles.TextPrimaryStyle.Render("●"), format, args...)
}

func (p *Printer) Successf(format string, args ...any) {
	p.line(styles.TextSuccessStyle.Render("✔"), format, args...)
}

func (p *Printer) Warnf(format string, args ...any) {
	p.line(styles.TextWarningStyle.Render("▲"), format, args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.line(styles.TextErrorStyle.Render("✘"), format, args...)
}

// Section prints a bold title followed by a divider.
func (p *Printer) Section(title string) {
	_, _ = fmt.Fprintln(p.w, styles.TextPrimaryBoldStyle.Render(title))
	_, _ = fmt.Fprintln(p.w, styles.DividerStyle.Render(strings.Repeat("─", len(title)+4)))
}

// Table prints rows under a header row.
func (p *Printer) Table(header []any, rows [][]any) {
	t := uitable.New()
	t.MaxColWidth = 60
	t.Wrap = true

	t.AddRow(header...)
	for _, r := range rows {
		t.AddRow(r...)
	}
	_, _ = fmt.Fprintln(p.w, t)
}

// Markdown renders md for the terminal. The raw text is printed when
// rendering fails.
func (p *Printer) Markdown(md string) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(styles.GlamourStyle()),
		glamour.WithWordWrap(wordWrap),
	)
	if err == nil {
		var out string
		out, err = r.Render(md)
		if err == nil {
			_, _ = fmt.Fprint(p.w, out)
			return
		}
	}
	_, _ = fmt.Fprintln(p.w, md)
}
