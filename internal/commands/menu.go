package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/colonyops/tsync/internal/core/styles"
	"github.com/colonyops/tsync/internal/filemeta"
	"github.com/colonyops/tsync/internal/graph"
	"github.com/colonyops/tsync/internal/migrate"
	"github.com/colonyops/tsync/internal/printer"
	"github.com/colonyops/tsync/internal/prompt"
	"github.com/colonyops/tsync/internal/store/jsonfile"
	"github.com/colonyops/tsync/internal/trello"
	"github.com/colonyops/tsync/internal/tsync"
)

// confirmWord must be typed exactly before destructive or bulk steps.
const confirmWord = "understood"

type menuEntry struct {
	key   int
	label string
	run   func(ctx context.Context) error
}

type menuSection struct {
	title   string
	entries []menuEntry
}

// Menu is the numbered operator menu. Each entry runs one migration step
// against the shared App state.
type Menu struct {
	app      *tsync.App
	prompt   prompt.Prompter
	p        *printer.Printer
	log      zerolog.Logger
	dataDir  string
	sections []menuSection
}

// NewMenu builds the menu for app.
func NewMenu(app *tsync.App, pr prompt.Prompter, p *printer.Printer, log zerolog.Logger) *Menu {
	m := &Menu{
		app:     app,
		prompt:  pr,
		p:       p,
		log:     log,
		dataDir: app.Config.DataDir,
	}

	m.sections = []menuSection{
		{title: "Trello", entries: []menuEntry{
			{1, "Download Trello boards", m.downloadBoards},
			{2, "Load board snapshot", m.loadBoards},
			{3, "Board statistics", m.boardStats},
			{4, "Render and save file metadata", m.renderFiles},
			{5, "Load file metadata", m.loadFiles},
			{6, "File metadata statistics", m.fileStats},
			{7, "Download incomplete attachments", m.downloadFiles},
		}},
		{title: "Graph", entries: []menuEntry{
			{10, "Discover Graph plans", m.discoverPlans},
			{11, "Print plans", m.printPlans},
		}},
		{title: "Migration", entries: []menuEntry{
			{20, "Map boards to plans", m.mapBoards},
			{21, "Show board mapping", m.showMapping},
			{22, "Upload attachments", m.uploadFiles},
			{23, "Show plan drives", m.showDrives},
			{24, "Sync boards to plans", m.sync},
			{25, "Show upload state", m.showUploads},
			{26, "Reset upload state", m.resetUploads},
			{27, "Save upload state", m.saveUploads},
			{28, "Load upload state", m.loadUploads},
			{29, "Clean mapped plans", m.clean},
		}},
		{title: "Debug", entries: []menuEntry{
			{101, "Display access token", m.showToken},
			{102, "Show signed-in user", m.showMe},
		}},
	}

	return m
}

// Run shows the menu until the operator picks 0 or aborts the prompt. A
// failing or panicking step is reported and the menu is shown again.
func (m *Menu) Run(ctx context.Context) error {
	for {
		m.render()

		answer, err := m.prompt.Input(ctx, "Choose an action")
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				return nil
			}
			return err
		}

		key, err := strconv.Atoi(strings.TrimSpace(answer))
		if err != nil {
			m.p.Warnf("%q is not a menu number", answer)
			continue
		}
		if key == 0 {
			return nil
		}

		entry, ok := m.lookup(key)
		if !ok {
			m.p.Warnf("no menu entry %d", key)
			continue
		}

		m.invoke(ctx, entry)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (m *Menu) lookup(key int) (menuEntry, bool) {
	for _, s := range m.sections {
		for _, e := range s.entries {
			if e.key == key {
				return e, true
			}
		}
	}
	return menuEntry{}, false
}

func (m *Menu) invoke(ctx context.Context, e menuEntry) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Int("entry", e.key).Msg("menu action panicked")
			m.p.Errorf("%s crashed: %v", e.label, r)
		}
	}()

	start := time.Now()
	m.log.Info().Int("entry", e.key).Str("action", e.label).Msg("menu action started")

	if err := e.run(ctx); err != nil {
		m.log.Error().Err(err).Int("entry", e.key).Msg("menu action failed")
		m.p.Errorf("%s: %v", e.label, err)
		return
	}

	m.log.Info().Int("entry", e.key).Dur("took", time.Since(start)).Msg("menu action finished")
}

func (m *Menu) render() {
	m.p.Printf("")
	m.p.Section("tsync")
	for _, s := range m.sections {
		m.p.Printf("%s", styles.MenuSectionStyle.Render(s.title))
		for _, e := range s.entries {
			m.p.Printf("%s%s", styles.MenuKeyStyle.Render(strconv.Itoa(e.key)), e.label)
		}
	}
	m.p.Printf("%s%s", styles.MenuKeyStyle.Render("0"), "Exit")
	m.p.Printf("")
}

// confirm asks the operator to type the confirmation word. Anything else
// cancels the step.
func (m *Menu) confirm(ctx context.Context, action string) (bool, error) {
	m.p.Warnf("%s writes to Microsoft Graph and cannot be undone.", action)

	answer, err := m.prompt.Input(ctx, fmt.Sprintf("Type %q to continue", confirmWord))
	if err != nil {
		return false, err
	}
	if answer != confirmWord {
		m.p.Infof("%s cancelled", action)
		return false, nil
	}
	return true, nil
}

// pickSnapshot lets the operator choose a snapshot. An empty result means
// the latest one.
func (m *Menu) pickSnapshot(ctx context.Context, prefix string) (string, error) {
	names, err := jsonfile.NewSnapshots(m.dataDir, prefix).List(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no %s snapshots in %s: %w", prefix, m.dataDir, jsonfile.ErrNotFound)
	}

	options := append([]string{"latest"}, names...)
	idx, err := m.prompt.Select(ctx, "Snapshot", options)
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(options) {
		return "", fmt.Errorf("snapshot %d: %w", idx, migrate.ErrInvalidChoice)
	}
	if idx == 0 {
		return "", nil
	}
	return names[idx-1], nil
}

func (m *Menu) downloadBoards(ctx context.Context) error {
	boards, err := m.app.Trello.DownloadBoards(ctx)
	if err != nil {
		return err
	}

	path, err := m.app.Migrate.SetBoards(ctx, boards)
	if err != nil {
		return err
	}

	m.p.Successf("Downloaded %d boards, saved to %s", len(boards), path)
	return nil
}

func (m *Menu) loadBoards(ctx context.Context) error {
	name, err := m.pickSnapshot(ctx, migrate.BoardSnapshotPrefix)
	if err != nil {
		return err
	}

	boards, err := m.app.Migrate.LoadBoards(ctx, name)
	if err != nil {
		return err
	}

	m.p.Successf("Loaded %d boards", len(boards))
	return nil
}

func (m *Menu) boardStats(context.Context) error {
	boards := m.app.Migrate.Session().Boards()
	if len(boards) == 0 {
		return migrate.ErrNoBoards
	}

	m.p.Markdown(boardStatsMarkdown(trello.Stats(boards)))
	return nil
}

func (m *Menu) renderFiles(ctx context.Context) error {
	catalog, err := m.app.Files.Render(m.app.Migrate.Session().Boards())
	if err != nil {
		return err
	}

	path, err := m.app.Files.Save(ctx)
	if err != nil {
		return err
	}

	m.p.Successf("Rendered metadata for %d attachments, saved to %s", len(catalog), path)
	return nil
}

func (m *Menu) loadFiles(ctx context.Context) error {
	name, err := m.pickSnapshot(ctx, filemeta.SnapshotPrefix)
	if err != nil {
		return err
	}

	if err := m.app.Files.Load(ctx, name); err != nil {
		return err
	}

	m.p.Successf("Loaded metadata for %d attachments", len(m.app.Files.Catalog()))
	return nil
}

func (m *Menu) fileStats(context.Context) error {
	if !m.app.Files.Loaded() {
		return filemeta.ErrEmptyCatalog
	}

	m.p.Markdown(fileStatsMarkdown(m.app.Files.Stats()))
	return nil
}

func (m *Menu) downloadFiles(ctx context.Context) error {
	res, err := m.app.Files.DownloadAll(ctx, m.app.Trello)
	if err != nil {
		return err
	}

	m.p.Markdown(downloadMarkdown(res))
	return nil
}

func (m *Menu) discoverPlans(ctx context.Context) error {
	plans, err := m.app.Graph.EnumeratePlans(ctx)
	if err != nil {
		return err
	}

	m.p.Successf("Found %d plans with a group drive", len(plans))
	return nil
}

func (m *Menu) printPlans(context.Context) error {
	plans := m.app.Graph.Plans()
	if len(plans) == 0 {
		return migrate.ErrNoPlans
	}

	rows := make([][]any, len(plans))
	for i, p := range plans {
		rows[i] = []any{i, p.PlanName, p.PlanID, p.GroupName}
	}
	m.p.Table([]any{"#", "PLAN", "PLAN ID", "GROUP"}, rows)
	return nil
}

func (m *Menu) mapBoards(ctx context.Context) error {
	maps, err := m.app.Migrate.Map(func(b trello.Board, remaining []graph.GroupPlan) (int, error) {
		options := make([]string, len(remaining))
		for i, p := range remaining {
			options[i] = fmt.Sprintf("%s (%s)", p.PlanName, p.GroupName)
		}
		return m.prompt.Select(ctx, fmt.Sprintf("Plan for board %q", b.Name), options)
	})
	if err != nil {
		return err
	}

	m.p.Successf("Mapped %d boards", len(maps))
	return m.showMapping(ctx)
}

func (m *Menu) showMapping(context.Context) error {
	maps := m.app.Migrate.Session().Maps()
	if len(maps) == 0 {
		return migrate.ErrNotMapped
	}

	for _, bm := range maps {
		m.p.Printf("%s", bm)
	}
	return nil
}

func (m *Menu) uploadFiles(ctx context.Context) error {
	report, err := m.app.Migrate.UploadAll(ctx)
	if err != nil {
		return err
	}

	m.p.Markdown(uploadMarkdown(report))
	return nil
}

func (m *Menu) showDrives(context.Context) error {
	plans := m.app.Graph.Plans()
	if len(plans) == 0 {
		return migrate.ErrNoPlans
	}

	rows := make([][]any, len(plans))
	for i, p := range plans {
		rows[i] = []any{p.PlanName, p.DriveName, p.DriveID}
	}
	m.p.Table([]any{"PLAN", "DRIVE", "DRIVE ID"}, rows)
	return nil
}

func (m *Menu) sync(ctx context.Context) error {
	ok, err := m.confirm(ctx, "Sync")
	if err != nil || !ok {
		return err
	}

	report, err := m.app.Migrate.Sync(ctx)
	if err != nil {
		return err
	}

	m.p.Markdown(syncMarkdown(report))
	return nil
}

func (m *Menu) showUploads(context.Context) error {
	uploaded := m.app.Migrate.Session().Uploaded()
	if len(uploaded) == 0 {
		m.p.Infof("No attachments uploaded in this session")
		return nil
	}

	rows := make([][]any, len(uploaded))
	for i, u := range uploaded {
		target := "(trello url)"
		if u.TargetURL != nil {
			target = *u.TargetURL
		}
		rows[i] = []any{u.Attachment.Name, u.OriginBoard, humanize.Bytes(uint64(u.Attachment.Size())), target}
	}
	m.p.Table([]any{"ATTACHMENT", "BOARD", "SIZE", "LOCATION"}, rows)
	return nil
}

func (m *Menu) resetUploads(context.Context) error {
	m.app.Migrate.ResetUploads()
	m.p.Successf("Upload state cleared")
	return nil
}

func (m *Menu) saveUploads(ctx context.Context) error {
	path, err := m.app.Migrate.SaveUploads(ctx)
	if err != nil {
		return err
	}

	m.p.Successf("Upload state saved to %s", path)
	return nil
}

func (m *Menu) loadUploads(ctx context.Context) error {
	name, err := m.pickSnapshot(ctx, migrate.UploadSnapshotPrefix)
	if err != nil {
		return err
	}

	n, err := m.app.Migrate.LoadUploads(ctx, name)
	if err != nil {
		return err
	}

	m.p.Successf("Loaded upload state for %d attachments", n)
	return nil
}

func (m *Menu) clean(ctx context.Context) error {
	ok, err := m.confirm(ctx, "Clean")
	if err != nil || !ok {
		return err
	}

	report, err := m.app.Migrate.Clean(ctx)
	if err != nil {
		return err
	}

	m.p.Markdown(cleanMarkdown(report))
	return nil
}

// tokenClaims are shown in this order when present.
var tokenClaims = []string{"name", "upn", "preferred_username", "tid", "aud", "scp"}

func (m *Menu) showToken(context.Context) error {
	tok, err := m.app.Graph.Token()
	if err != nil {
		return err
	}

	m.p.Printf("%s", tok.AccessToken)
	m.p.Printf("")
	m.p.Infof("Expires %s", humanize.Time(tok.Expiry))

	claims, err := graph.TokenClaims(tok.AccessToken)
	if err != nil {
		m.p.Warnf("Token is not a readable JWT: %v", err)
		return nil
	}

	var rows [][]any
	for _, k := range tokenClaims {
		if v, ok := claims[k]; ok {
			rows = append(rows, []any{k, v})
		}
	}
	m.p.Table([]any{"CLAIM", "VALUE"}, rows)
	return nil
}

func (m *Menu) showMe(ctx context.Context) error {
	me, err := m.app.Graph.Me(ctx)
	if err != nil {
		return err
	}

	m.p.Table([]any{"FIELD", "VALUE"}, [][]any{
		{"Name", me.DisplayName},
		{"Principal", me.UserPrincipalName},
		{"Mail", me.Mail},
		{"ID", me.ID},
	})
	return nil
}
