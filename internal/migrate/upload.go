package migrate

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/colonyops/tsync/internal/core/logging"
	"github.com/colonyops/tsync/internal/filemeta"
)

// UploadReport counts the outcome of UploadAll.
type UploadReport struct {
	Total    int
	Uploaded int
	Empty    int
	Unmapped int
	Failed   int
}

// UploadAll uploads the cached copy of every attachment to the drive of its
// board's plan. Attachments without bytes, links included, are recorded
// without a request. Failures are recorded with a nil target URL so that
// tasks fall back to the Trello URL.
func (o *Orchestrator) UploadAll(ctx context.Context) (UploadReport, error) {
	var report UploadReport

	if len(o.session.Maps()) == 0 {
		return report, ErrNotMapped
	}
	if !o.files.Loaded() {
		return report, filemeta.ErrEmptyCatalog
	}
	if len(o.session.Uploaded()) > 0 {
		return report, ErrAlreadyUploaded
	}

	catalog := o.files.Catalog()
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	results := make(chan uploadOutcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, id := range ids {
		m := catalog[id]
		g.Go(func() error {
			results <- o.upload(gctx, m)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	for r := range results {
		report.Total++
		switch r {
		case outcomeUploaded:
			report.Uploaded++
		case outcomeEmpty:
			report.Empty++
		case outcomeUnmapped:
			report.Unmapped++
		case outcomeFailed:
			report.Failed++
		}
	}

	o.log.Info().
		Int("uploaded", report.Uploaded).
		Int("empty", report.Empty).
		Int("failed", report.Failed).
		Msg("attachment upload finished")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

type uploadOutcome int

const (
	outcomeUploaded uploadOutcome = iota
	outcomeEmpty
	outcomeUnmapped
	outcomeFailed
)

func (o *Orchestrator) upload(ctx context.Context, m filemeta.FileMeta) uploadOutcome {
	ctx = logging.WithBoardID(ctx, m.OriginBoard)

	if m.Attachment.IsEmpty() {
		o.session.addUploaded(m)
		return outcomeEmpty
	}

	bm, ok := o.session.MapFor(m.OriginBoard)
	if !ok {
		o.log.Warn().Ctx(ctx).Str("attachment_id", m.Attachment.ID).Msg("attachment belongs to an unmapped board")
		return outcomeUnmapped
	}

	m.TargetURL = nil

	f, err := o.files.Open(m)
	if err != nil {
		o.session.addUploaded(m)
		return outcomeFailed
	}
	defer func() { _ = f.Close() }()

	name := m.Attachment.FileName
	if name == "" {
		name = m.FileID.String()
	}

	url, err := o.target.UploadFile(ctx, bm.PlanID, name, f)
	if err != nil {
		o.log.Error().Ctx(ctx).Err(err).Str("attachment_id", m.Attachment.ID).Msg("upload failed")
		o.session.addUploaded(m)
		return outcomeFailed
	}

	m.TargetURL = &url
	o.session.addUploaded(m)

	if err := o.files.SetTargetURL(ctx, m.Attachment.ID, &url); err != nil {
		o.log.Warn().Ctx(ctx).Err(err).Str("attachment_id", m.Attachment.ID).Msg("cannot record upload in file metadata")
	}

	return outcomeUploaded
}

// SaveUploads persists the upload results.
func (o *Orchestrator) SaveUploads(ctx context.Context) (string, error) {
	path, err := o.uploads.Save(ctx, o.session.Uploaded())
	if err != nil {
		return "", fmt.Errorf("save upload state: %w", err)
	}
	return path, nil
}

// LoadUploads restores upload results. An empty name loads the latest.
func (o *Orchestrator) LoadUploads(ctx context.Context, name string) (int, error) {
	var metas []filemeta.FileMeta
	if err := o.uploads.Load(ctx, name, &metas); err != nil {
		return 0, fmt.Errorf("load upload state: %w", err)
	}

	o.session.setUploaded(metas)
	return len(metas), nil
}

// ResetUploads forgets the upload results so UploadAll can run again.
func (o *Orchestrator) ResetUploads() {
	o.session.setUploaded(nil)
}
