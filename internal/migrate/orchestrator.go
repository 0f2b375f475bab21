package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/colonyops/tsync/internal/filemeta"
	"github.com/colonyops/tsync/internal/graph"
	"github.com/colonyops/tsync/internal/store/jsonfile"
	"github.com/colonyops/tsync/internal/trello"
)

// Snapshot prefixes inside the data directory.
const (
	BoardSnapshotPrefix  = "data-export"
	UploadSnapshotPrefix = "graph-upload-state"
)

var (
	ErrNotMapped       = errors.New("boards have not been mapped to plans")
	ErrAlreadyUploaded = errors.New("attachments were already uploaded in this session")
)

// Target is the planner side of a migration.
type Target interface {
	Plans() []graph.GroupPlan
	UploadFile(ctx context.Context, planID, filename string, r io.ReadSeeker) (string, error)
	CreateBucket(ctx context.Context, planID, name string) (string, error)
	CreateTask(ctx context.Context, t graph.NewTask) (graph.CreatedTask, error)
	PostReply(ctx context.Context, groupID, threadID, text string) error
	ListTaskIDs(ctx context.Context, planID string) ([]graph.Versioned, error)
	ListBucketIDs(ctx context.Context, planID string) ([]graph.Versioned, error)
	DeleteTask(ctx context.Context, id, etag string) error
	DeleteBucket(ctx context.Context, id, etag string) error
}

// Config wires an Orchestrator.
type Config struct {
	Target          Target
	Files           *filemeta.Registry
	BoardSnapshots  *jsonfile.Snapshots
	UploadSnapshots *jsonfile.Snapshots

	// UploadWorkers bounds concurrent uploads; the target's rate limiter
	// still applies.
	UploadWorkers int
}

// Orchestrator runs the migration steps against a Session.
type Orchestrator struct {
	session *Session
	target  Target
	files   *filemeta.Registry
	boards  *jsonfile.Snapshots
	uploads *jsonfile.Snapshots
	workers int
	log     zerolog.Logger
}

// New creates an Orchestrator.
func New(session *Session, cfg Config, log zerolog.Logger) *Orchestrator {
	workers := cfg.UploadWorkers
	if workers < 1 {
		workers = 1
	}

	return &Orchestrator{
		session: session,
		target:  cfg.Target,
		files:   cfg.Files,
		boards:  cfg.BoardSnapshots,
		uploads: cfg.UploadSnapshots,
		workers: workers,
		log:     log,
	}
}

// Session returns the run state.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// SetBoards replaces the session's boards and persists them.
func (o *Orchestrator) SetBoards(ctx context.Context, boards []trello.Board) (string, error) {
	o.session.SetBoards(boards)

	path, err := o.boards.Save(ctx, boards)
	if err != nil {
		return "", fmt.Errorf("save boards: %w", err)
	}
	return path, nil
}

// LoadBoards restores boards from a snapshot. An empty name loads the latest.
func (o *Orchestrator) LoadBoards(ctx context.Context, name string) ([]trello.Board, error) {
	var boards []trello.Board
	if err := o.boards.Load(ctx, name, &boards); err != nil {
		return nil, fmt.Errorf("load boards: %w", err)
	}

	o.session.SetBoards(boards)
	o.log.Info().Int("boards", len(boards)).Msg("boards loaded")
	return boards, nil
}

// Map assigns every loaded board a plan discovered by the target.
func (o *Orchestrator) Map(choose Chooser) ([]BoardMap, error) {
	maps, err := MapBoards(o.session.Boards(), o.target.Plans(), choose)
	if err != nil {
		return nil, err
	}

	o.session.setMaps(maps)
	for _, m := range maps {
		o.log.Info().Str("board_id", m.BoardID).Str("plan_id", m.PlanID).Msg("board mapped")
	}
	return maps, nil
}
