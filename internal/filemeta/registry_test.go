package filemeta_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/tsync/internal/filemeta"
	"github.com/colonyops/tsync/internal/ratelimit"
	"github.com/colonyops/tsync/internal/store/jsonfile"
	"github.com/colonyops/tsync/internal/trello"
	"github.com/colonyops/tsync/internal/trello/trellotest"
)

func size(n int64) *int64 { return &n }

type fixture struct {
	srv      *trellotest.Server
	client   *trello.Client
	registry *filemeta.Registry
	dataDir  string
	boards   []trello.Board
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := trellotest.New(t)
	srv.AddFile("a1", []byte("hello"))
	srv.AddFile("a2", []byte("world!"))

	client, err := trello.New(trello.Options{
		BaseURL: srv.BaseURL(),
		APIKey:  trellotest.Key,
		Token:   trellotest.Token,
		Limiter: ratelimit.New("trello", 1000, time.Second),
	}, zerolog.Nop())
	require.NoError(t, err)

	dataDir := t.TempDir()
	boards := []trello.Board{{
		ID: "b1",
		Lists: []trello.List{{
			ID: "l1",
			Cards: []trello.Card{
				{ID: "c1", ListID: "l1", Attachments: []trello.Attachment{
					{ID: "a1", Name: "a.txt", FileName: "a.txt", Bytes: size(5), IsUpload: true, URL: srv.AttachmentURL("c1", "a1", "a.txt")},
					{ID: "link", Name: "docs", URL: "https://example.com/docs"},
				}},
				{ID: "c2", ListID: "l1", Attachments: []trello.Attachment{
					{ID: "a2", Name: "b.txt", FileName: "b.txt", Bytes: size(6), IsUpload: true, URL: srv.AttachmentURL("c2", "a2", "b.txt")},
				}},
			},
		}},
	}}

	return &fixture{
		srv:      srv,
		client:   client,
		registry: newRegistry(dataDir),
		dataDir:  dataDir,
		boards:   boards,
	}
}

func newRegistry(dataDir string) *filemeta.Registry {
	return filemeta.NewRegistry(
		filepath.Join(dataDir, "files"),
		jsonfile.NewSnapshots(dataDir, filemeta.SnapshotPrefix),
		zerolog.Nop(),
	)
}

func TestRender(t *testing.T) {
	f := newFixture(t)

	catalog, err := f.registry.Render(f.boards)
	require.NoError(t, err)
	require.Len(t, catalog, 3)

	for id, m := range catalog {
		assert.Equal(t, id, m.Attachment.ID)
		assert.Equal(t, "b1", m.OriginBoard)
		assert.False(t, m.Complete)
		assert.Nil(t, m.Hash)
		assert.Nil(t, m.TargetURL)
	}
	assert.NotEqual(t, catalog["a1"].FileID, catalog["a2"].FileID)
	assert.True(t, f.registry.Loaded())
}

func TestRender_NoBoards(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Render(nil)
	require.ErrorIs(t, err, filemeta.ErrNoBoards)
	assert.False(t, f.registry.Loaded())
}

func TestRender_ReplacesCatalog(t *testing.T) {
	f := newFixture(t)

	first, err := f.registry.Render(f.boards)
	require.NoError(t, err)

	second, err := f.registry.Render(f.boards)
	require.NoError(t, err)

	assert.NotEqual(t, first["a1"].FileID, second["a1"].FileID)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	catalog, err := f.registry.Render(f.boards)
	require.NoError(t, err)

	url := "https://contoso.sharepoint.com/a.txt"
	require.NoError(t, f.registry.SetTargetURL(ctx, "a1", &url))

	_, err = f.registry.Save(ctx)
	require.NoError(t, err)

	reloaded := newRegistry(f.dataDir)
	require.NoError(t, reloaded.Load(ctx, ""))

	got := reloaded.Catalog()
	require.Len(t, got, len(catalog))

	// Unset hash and URL survive as nil, not as empty strings.
	assert.Nil(t, got["a2"].Hash)
	assert.Nil(t, got["a2"].TargetURL)
	require.NotNil(t, got["a1"].TargetURL)
	assert.Equal(t, url, *got["a1"].TargetURL)
	assert.Equal(t, catalog["a2"].FileID, got["a2"].FileID)
	assert.Equal(t, catalog["a2"].Attachment.Size(), got["a2"].Attachment.Size())
	assert.True(t, got["link"].Attachment.IsExternal())
}

func TestSetTargetURL_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Render(f.boards)
	require.NoError(t, err)

	err = f.registry.SetTargetURL(context.Background(), "missing", nil)
	require.ErrorIs(t, err, filemeta.ErrUnknownAttachment)
}

func TestDownloadAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.Render(f.boards)
	require.NoError(t, err)

	res, err := f.registry.DownloadAll(ctx, f.client)
	require.NoError(t, err)
	assert.Equal(t, filemeta.DownloadResult{Downloaded: 2, Skipped: 1, Bytes: 11}, res)
	assert.Equal(t, 2, f.srv.Requests(trellotest.RouteDownload))

	m, ok := f.registry.Get("a1")
	require.True(t, ok)
	assert.True(t, m.Complete)

	data, err := os.ReadFile(f.registry.Path(m))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	sum := sha256.Sum256([]byte("hello"))
	require.NotNil(t, m.Hash)
	assert.Equal(t, hex.EncodeToString(sum[:]), *m.Hash)

	// Progress is persisted as it happens.
	reloaded := newRegistry(f.dataDir)
	require.NoError(t, reloaded.Load(ctx, ""))
	assert.Equal(t, 2, reloaded.Stats().Complete)

	t.Run("second run makes no requests", func(t *testing.T) {
		res, err := f.registry.DownloadAll(ctx, f.client)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Downloaded)
		assert.Equal(t, 3, res.Skipped)
		assert.Equal(t, 2, f.srv.Requests(trellotest.RouteDownload))
	})
}

func TestDownloadAll_FailureIsCounted(t *testing.T) {
	f := newFixture(t)
	f.srv.Fail(trellotest.RouteDownload, "a1")

	_, err := f.registry.Render(f.boards)
	require.NoError(t, err)

	res, err := f.registry.DownloadAll(context.Background(), f.client)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Downloaded)

	m, _ := f.registry.Get("a1")
	assert.False(t, m.Complete)
	assert.NoFileExists(t, f.registry.Path(m))

	entries, err := os.ReadDir(filepath.Join(f.dataDir, "files"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestDownloadAll_LogsBoardID(t *testing.T) {
	f := newFixture(t)
	f.srv.Fail(trellotest.RouteDownload, "a1")

	var buf bytes.Buffer
	registry := filemeta.NewRegistry(
		filepath.Join(f.dataDir, "files"),
		jsonfile.NewSnapshots(f.dataDir, filemeta.SnapshotPrefix),
		zerolog.New(&buf),
	)

	_, err := registry.Render(f.boards)
	require.NoError(t, err)

	_, err = registry.DownloadAll(context.Background(), f.client)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"attachment_id":"a1"`)
	assert.Contains(t, buf.String(), `"board_id":"b1"`)
}

func TestDownloadAll_EmptyCatalog(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.DownloadAll(context.Background(), f.client)
	require.ErrorIs(t, err, filemeta.ErrEmptyCatalog)
}

func TestOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.Render(f.boards)
	require.NoError(t, err)

	m, _ := f.registry.Get("a2")
	_, err = f.registry.Open(m)
	require.Error(t, err, "nothing is cached before download")

	_, err = f.registry.DownloadAll(ctx, f.client)
	require.NoError(t, err)

	m, _ = f.registry.Get("a2")
	rc, err := f.registry.Open(m)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	_, err = rc.Seek(2, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "rld!", string(rest))
}

func TestStats(t *testing.T) {
	url := "https://x"
	catalog := filemeta.Catalog{
		"a": {Attachment: trello.Attachment{IsUpload: true, Bytes: size(10)}, Complete: true, TargetURL: &url},
		"b": {Attachment: trello.Attachment{IsUpload: true, Bytes: size(5)}},
		"c": {Attachment: trello.Attachment{}},
	}

	assert.Equal(t, filemeta.Stats{
		Files:      3,
		Uploads:    2,
		External:   1,
		Complete:   1,
		Pending:    1,
		Uploaded:   1,
		Bytes:      15,
		CachedSize: 10,
	}, catalog.Stats())
}
