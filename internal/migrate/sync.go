package migrate

import (
	"context"

	"github.com/colonyops/tsync/internal/core/logging"
	"github.com/colonyops/tsync/internal/filemeta"
	"github.com/colonyops/tsync/internal/graph"
	"github.com/colonyops/tsync/internal/trello"
)

// SyncReport summarizes a Sync run.
type SyncReport struct {
	Boards               int
	Lists                int
	Cards                int
	BucketsCreated       int
	TasksCreated         int
	TasksWithAttachments int
	CommentsPosted       int
	CommentsFailed       int
	UnmappedBoards       []string
	FailedBuckets        []string
	FailedCards          []string
}

// Sync creates one bucket per list and one task per card on each mapped
// board's plan, in board order. A failed card is recorded and skipped. When
// a bucket cannot be created every card of that list is recorded as failed.
func (o *Orchestrator) Sync(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	boards := o.session.Boards()
	if len(boards) == 0 {
		return report, ErrNoBoards
	}
	if len(o.session.Maps()) == 0 {
		return report, ErrNotMapped
	}

	refs := o.referenceIndex()

	for _, b := range boards {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		bm, ok := o.session.MapFor(b.ID)
		if !ok {
			o.log.Warn().Str("board_id", b.ID).Msg("board is not mapped, skipping")
			report.UnmappedBoards = append(report.UnmappedBoards, b.ID)
			continue
		}

		report.Boards++
		o.syncBoard(logging.WithBoardID(ctx, b.ID), b, bm, refs, &report)
	}

	o.log.Info().
		Int("boards", report.Boards).
		Int("cards", report.Cards).
		Int("tasks", report.TasksCreated).
		Int("failed", len(report.FailedCards)).
		Msg("sync finished")

	return report, nil
}

func (o *Orchestrator) syncBoard(ctx context.Context, b trello.Board, bm BoardMap, refs map[string]filemeta.FileMeta, report *SyncReport) {
	for _, l := range b.Lists {
		report.Lists++

		bucketID, err := o.target.CreateBucket(ctx, bm.PlanID, l.Name)
		if err != nil {
			o.log.Error().Ctx(ctx).Err(err).Str("list_id", l.ID).Msg("bucket creation failed, skipping its cards")
			report.FailedBuckets = append(report.FailedBuckets, l.ID)
			for _, c := range l.Cards {
				report.Cards++
				report.FailedCards = append(report.FailedCards, c.ID)
			}
			continue
		}
		report.BucketsCreated++

		for _, c := range l.Cards {
			report.Cards++
			o.syncCard(logging.WithCardID(ctx, c.ID), c, bm, bucketID, refs, report)
		}
	}
}

func (o *Orchestrator) syncCard(ctx context.Context, c trello.Card, bm BoardMap, bucketID string, refs map[string]filemeta.FileMeta, report *SyncReport) {
	task := graph.NewTask{
		PlanID:   bm.PlanID,
		BucketID: bucketID,
		Title:    c.Name,
		Details: graph.TaskDetails{
			Description: c.Description,
			Checklist:   FlattenChecklists(c.Checklists),
			References:  references(c.Attachments, refs),
		},
	}

	created, err := o.target.CreateTask(ctx, task)
	if err != nil {
		o.log.Error().Ctx(ctx).Err(err).Msg("task creation failed")
		report.FailedCards = append(report.FailedCards, c.ID)
		return
	}

	report.TasksCreated++
	if len(c.Attachments) > 0 {
		report.TasksWithAttachments++
	}

	for _, comment := range c.Comments {
		if err := o.target.PostReply(ctx, created.GroupID, created.ThreadID, comment.String()); err != nil {
			o.log.Error().Ctx(ctx).Err(err).Str("comment_id", comment.ID).Msg("comment post failed")
			report.CommentsFailed++
			continue
		}
		report.CommentsPosted++
	}
}

// referenceIndex collects what is known about every attachment, preferring
// the session's upload results over the file metadata catalog.
func (o *Orchestrator) referenceIndex() map[string]filemeta.FileMeta {
	index := map[string]filemeta.FileMeta{}
	if o.files != nil {
		for id, m := range o.files.Catalog() {
			index[id] = m
		}
	}
	for _, m := range o.session.Uploaded() {
		index[m.Attachment.ID] = m
	}
	return index
}

// references builds one reference per attachment. The uploaded copy is used
// when there is one, the Trello URL otherwise.
func references(attachments []trello.Attachment, known map[string]filemeta.FileMeta) []graph.Reference {
	var out []graph.Reference
	for _, a := range attachments {
		url := a.URL
		if m, ok := known[a.ID]; ok && m.TargetURL != nil {
			url = *m.TargetURL
		}

		alias := a.FileName
		if alias == "" {
			alias = a.Name
		}

		out = append(out, graph.Reference{URL: url, Alias: alias})
	}
	return out
}
