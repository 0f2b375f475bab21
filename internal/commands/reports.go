package commands

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/colonyops/tsync/internal/filemeta"
	"github.com/colonyops/tsync/internal/migrate"
	"github.com/colonyops/tsync/internal/trello"
)

type row struct {
	label string
	value string
}

func markdownTable(title string, rows []row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n| | |\n|---|---:|\n", title)
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", r.label, r.value)
	}
	return b.String()
}

func count(n int) string { return humanize.Comma(int64(n)) }

func boardStatsMarkdown(s trello.BoardStats) string {
	return markdownTable("Boards", []row{
		{"Boards", count(s.Boards)},
		{"Lists", count(s.Lists)},
		{"Closed lists", count(s.ClosedLists)},
		{"Cards", count(s.Cards)},
		{"Archived cards", count(s.ArchivedCards)},
		{"Comments", count(s.Comments)},
		{"Checklists", count(s.Checklists)},
		{"Checklist items", count(s.CheckItems)},
		{"Attachments", count(s.Attachments)},
		{"Uploaded files", count(s.UploadAttachments)},
		{"Links", count(s.LinkAttachments)},
		{"File size", humanize.Bytes(uint64(s.UploadBytes))},
		{"Name/file name mismatches", count(s.NameMismatches)},
	})
}

func fileStatsMarkdown(s filemeta.Stats) string {
	return markdownTable("File metadata", []row{
		{"Attachments", count(s.Files)},
		{"Files", count(s.Uploads)},
		{"Links", count(s.External)},
		{"Downloaded", count(s.Complete)},
		{"Pending download", count(s.Pending)},
		{"Uploaded to Graph", count(s.Uploaded)},
		{"Total size", humanize.Bytes(uint64(s.Bytes))},
		{"Cached size", humanize.Bytes(uint64(s.CachedSize))},
	})
}

func downloadMarkdown(r filemeta.DownloadResult) string {
	return markdownTable("Attachment download", []row{
		{"Downloaded", count(r.Downloaded)},
		{"Already cached", count(r.Skipped)},
		{"Failed", count(r.Failed)},
		{"Transferred", humanize.Bytes(uint64(r.Bytes))},
	})
}

func uploadMarkdown(r migrate.UploadReport) string {
	return markdownTable("Attachment upload", []row{
		{"Attachments", count(r.Total)},
		{"Uploaded", count(r.Uploaded)},
		{"Nothing to upload", count(r.Empty)},
		{"Unmapped board", count(r.Unmapped)},
		{"Failed", count(r.Failed)},
	})
}

func syncMarkdown(r migrate.SyncReport) string {
	md := markdownTable("Sync", []row{
		{"Boards", count(r.Boards)},
		{"Lists", count(r.Lists)},
		{"Cards", count(r.Cards)},
		{"Buckets created", count(r.BucketsCreated)},
		{"Tasks created", count(r.TasksCreated)},
		{"Tasks with attachments", count(r.TasksWithAttachments)},
		{"Comments posted", count(r.CommentsPosted)},
		{"Comments failed", count(r.CommentsFailed)},
	})

	md += idList("Unmapped boards", r.UnmappedBoards)
	md += idList("Lists without a bucket", r.FailedBuckets)
	md += idList("Failed cards", r.FailedCards)
	return md
}

func cleanMarkdown(r migrate.CleanReport) string {
	return markdownTable("Clean", []row{
		{"Plans", count(r.Plans)},
		{"Tasks deleted", count(r.TasksDeleted)},
		{"Buckets deleted", count(r.BucketsDeleted)},
		{"Failures", count(r.Failures)},
	})
}

func idList(title string, ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n### %s\n\n", title)
	for _, id := range ids {
		fmt.Fprintf(&b, "- `%s`\n", id)
	}
	return b.String()
}
