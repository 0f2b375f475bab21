package filemeta

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/tsync/internal/core/logging"
	"github.com/colonyops/tsync/internal/store/jsonfile"
	"github.com/colonyops/tsync/internal/trello"
)

var (
	ErrNoBoards          = errors.New("no boards to render file metadata from")
	ErrEmptyCatalog      = errors.New("file metadata has not been rendered or loaded")
	ErrUnknownAttachment = errors.New("unknown attachment")
)

// SnapshotPrefix is the snapshot name of the catalog inside the data directory.
const SnapshotPrefix = "filemeta/file-metadata"

// Downloader fetches the bytes behind an attachment URL.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) error
}

// DownloadResult counts the outcome of DownloadAll.
type DownloadResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Registry owns the catalog. Every mutation that must survive a restart is
// followed by a snapshot while the lock is held.
type Registry struct {
	dir   string
	snaps *jsonfile.Snapshots
	log   zerolog.Logger

	mu      sync.Mutex
	catalog Catalog
}

// NewRegistry creates a Registry that caches files under downloadDir and
// persists the catalog through snaps. Download events are tagged with the
// board id of the attachment.
func NewRegistry(downloadDir string, snaps *jsonfile.Snapshots, log zerolog.Logger) *Registry {
	return &Registry{
		dir:     downloadDir,
		snaps:   snaps,
		log:     logging.WithContextHook(log),
		catalog: Catalog{},
	}
}

// Render builds a fresh catalog from boards, replacing the current one.
func (r *Registry) Render(boards []trello.Board) (Catalog, error) {
	if len(boards) == 0 {
		r.log.Error().Msg("no boards loaded, download or load a board snapshot first")
		return nil, ErrNoBoards
	}

	catalog := Catalog{}
	for _, b := range boards {
		for _, l := range b.Lists {
			for _, c := range l.Cards {
				for _, a := range c.Attachments {
					catalog[a.ID] = FileMeta{
						FileID:      uuid.New(),
						Attachment:  a,
						OriginBoard: b.ID,
					}
				}
			}
		}
	}

	r.mu.Lock()
	r.catalog = catalog
	r.mu.Unlock()

	r.log.Info().Int("files", len(catalog)).Msg("file metadata rendered")
	return catalog.Clone(), nil
}

// Loaded reports whether a non-empty catalog is present.
func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.catalog) > 0
}

// Catalog returns a copy of the current catalog.
func (r *Registry) Catalog() Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog.Clone()
}

// Get returns the metadata of an attachment.
func (r *Registry) Get(attachmentID string) (FileMeta, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.catalog[attachmentID]
	return m, ok
}

// Stats summarizes the current catalog.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog.Stats()
}

// Save persists the catalog and returns the timestamped snapshot path.
func (r *Registry) Save(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx)
}

func (r *Registry) save(ctx context.Context) (string, error) {
	path, err := r.snaps.Save(ctx, r.catalog)
	if err != nil {
		return "", fmt.Errorf("save file metadata: %w", err)
	}
	return path, nil
}

// Load replaces the catalog with a snapshot. An empty name loads the latest.
func (r *Registry) Load(ctx context.Context, name string) error {
	var catalog Catalog
	if err := r.snaps.Load(ctx, name, &catalog); err != nil {
		return fmt.Errorf("load file metadata: %w", err)
	}
	if catalog == nil {
		catalog = Catalog{}
	}

	r.mu.Lock()
	r.catalog = catalog
	r.mu.Unlock()

	r.log.Info().Int("files", len(catalog)).Msg("file metadata loaded")
	return nil
}

// Path is where the cached copy of m lives.
func (r *Registry) Path(m FileMeta) string {
	return filepath.Join(r.dir, m.FileID.String())
}

// Open opens the cached copy of m for reading.
func (r *Registry) Open(m FileMeta) (io.ReadSeekCloser, error) {
	f, err := os.Open(r.Path(m))
	if err != nil {
		r.log.Error().Err(err).
			Str("attachment_id", m.Attachment.ID).
			Str("file_id", m.FileID.String()).
			Msg("cannot open cached attachment")
		return nil, fmt.Errorf("open attachment %s: %w", m.Attachment.ID, err)
	}
	return f, nil
}

// SetTargetURL records the upload result for an attachment and persists the
// catalog. A nil url marks a failed upload.
func (r *Registry) SetTargetURL(ctx context.Context, attachmentID string, url *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.catalog[attachmentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAttachment, attachmentID)
	}
	m.TargetURL = url
	r.catalog[attachmentID] = m

	_, err := r.save(ctx)
	return err
}

// DownloadAll fetches every stored attachment that is not yet complete, one
// at a time in attachment id order. After each success the catalog is
// persisted, so an interrupted run resumes where it stopped. Per-file
// failures are logged and counted; they never abort the run.
func (r *Registry) DownloadAll(ctx context.Context, d Downloader) (DownloadResult, error) {
	var res DownloadResult

	catalog := r.Catalog()
	if len(catalog) == 0 {
		return res, ErrEmptyCatalog
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return res, fmt.Errorf("create download dir: %w", err)
	}

	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, id := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		m := catalog[id]
		if !m.Downloadable() {
			res.Skipped++
			continue
		}

		fctx := logging.WithBoardID(ctx, m.OriginBoard)

		hash, n, err := r.fetch(fctx, d, m)
		if err != nil {
			r.log.Error().Ctx(fctx).Err(err).
				Str("attachment_id", id).
				Str("name", m.Attachment.Name).
				Msg("attachment download failed")
			res.Failed++
			continue
		}

		if err := r.markComplete(fctx, id, hash); err != nil {
			return res, err
		}

		r.log.Debug().Ctx(fctx).
			Str("attachment_id", id).
			Int64("bytes", n).
			Msg("attachment downloaded")
		res.Downloaded++
		res.Bytes += n
	}

	return res, nil
}

// fetch writes the attachment to a temporary file, hashing as it goes, and
// moves it into place once complete.
func (r *Registry) fetch(ctx context.Context, d Downloader, m FileMeta) (string, int64, error) {
	dst := r.Path(m)
	tmp, err := os.CreateTemp(r.dir, m.FileID.String()+".*.tmp")
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(tmp, h)}

	if err := d.Download(ctx, m.Attachment.URL, cw); err != nil {
		_ = tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), cw.n, nil
}

func (r *Registry) markComplete(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.catalog[id]
	if !ok {
		// Catalog was replaced mid-run.
		return fmt.Errorf("%w: %s", ErrUnknownAttachment, id)
	}
	m.Complete = true
	m.Hash = &hash
	r.catalog[id] = m

	_, err := r.save(ctx)
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
