package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/tsync/internal/filemeta"
	"github.com/colonyops/tsync/internal/migrate"
	"github.com/colonyops/tsync/internal/trello"
)

func TestBoardStatsMarkdown(t *testing.T) {
	md := boardStatsMarkdown(trello.BoardStats{Boards: 2, Cards: 1200, UploadBytes: 2_500_000})

	assert.Contains(t, md, "| Boards | 2 |")
	assert.Contains(t, md, "| Cards | 1,200 |")
	assert.Contains(t, md, "| File size | 2.5 MB |")
}

func TestFileStatsMarkdown(t *testing.T) {
	md := fileStatsMarkdown(filemeta.Stats{Files: 3, Pending: 1, CachedSize: 1000})

	assert.Contains(t, md, "| Attachments | 3 |")
	assert.Contains(t, md, "| Pending download | 1 |")
	assert.Contains(t, md, "| Cached size | 1.0 kB |")
}

func TestSyncMarkdown(t *testing.T) {
	md := syncMarkdown(migrate.SyncReport{
		Cards:        3,
		TasksCreated: 1,
		FailedCards:  []string{"c2", "c3"},
	})

	assert.Contains(t, md, "| Tasks created | 1 |")
	assert.Contains(t, md, "### Failed cards")
	assert.Contains(t, md, "- `c2`\n- `c3`\n")
	assert.NotContains(t, md, "Unmapped boards")
}

func TestCleanAndUploadMarkdown(t *testing.T) {
	assert.Contains(t, cleanMarkdown(migrate.CleanReport{TasksDeleted: 4}), "| Tasks deleted | 4 |")
	assert.Contains(t, uploadMarkdown(migrate.UploadReport{Empty: 2}), "| Nothing to upload | 2 |")
	assert.Contains(t, downloadMarkdown(filemeta.DownloadResult{Skipped: 5}), "| Already cached | 5 |")
}
