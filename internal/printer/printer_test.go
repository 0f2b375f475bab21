package printer

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	ctx := NewContext(context.Background(), p)
	assert.Same(t, p, Ctx(ctx))

	fallback := Ctx(context.Background())
	assert.Equal(t, os.Stdout, fallback.Writer())
}

func TestStatusLines(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.Infof("fetched %d boards", 3)
	p.Successf("saved %s", "snapshot.json")
	p.Warnf("skipped %d", 1)
	p.Errorf("failed: %s", "boom")
	p.Printf("plain")

	out := buf.String()
	assert.Contains(t, out, "fetched 3 boards")
	assert.Contains(t, out, "saved snapshot.json")
	assert.Contains(t, out, "skipped 1")
	assert.Contains(t, out, "failed: boom")
	assert.Contains(t, out, "plain\n")
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Table([]any{"ID", "NAME"}, [][]any{{"p1", "Roadmap"}, {"p2", "Backlog"}})

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Roadmap")
	assert.Contains(t, out, "Backlog")
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Markdown("# Report\n\n| Boards | Cards |\n|---|---|\n| 1 | 2 |\n")

	out := buf.String()
	assert.Contains(t, out, "Report")
	assert.Contains(t, out, "Cards")
}
