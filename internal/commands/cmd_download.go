package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tsync/internal/printer"
	"github.com/colonyops/tsync/internal/trello"
	"github.com/colonyops/tsync/internal/tsync"
)

type DownloadCmd struct {
	flags       *Flags
	app         *tsync.App
	attachments bool
}

// NewDownloadCmd creates the non-interactive download command.
func NewDownloadCmd(flags *Flags, app *tsync.App) *DownloadCmd {
	return &DownloadCmd{flags: flags, app: app}
}

// Register adds the download command to the application.
func (cmd *DownloadCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "download",
		Usage:     "Download every Trello board and save a snapshot",
		UsageText: "tsync download [options]",
		Description: `Fetches all boards of every organization the token can see, saves the
board snapshot and renders the file metadata. With --attachments the
attachment files are downloaded into the cache as well.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "attachments",
				Usage:       "also download attachment files",
				Destination: &cmd.attachments,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DownloadCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.New(c.Root().Writer)

	boards, err := cmd.app.Trello.DownloadBoards(ctx)
	if err != nil {
		return err
	}

	path, err := cmd.app.Migrate.SetBoards(ctx, boards)
	if err != nil {
		return err
	}
	p.Successf("Saved %d boards to %s", len(boards), path)
	p.Markdown(boardStatsMarkdown(trello.Stats(boards)))

	catalog, err := cmd.app.Files.Render(boards)
	if err != nil {
		return err
	}
	metaPath, err := cmd.app.Files.Save(ctx)
	if err != nil {
		return err
	}
	p.Successf("Saved metadata for %d attachments to %s", len(catalog), metaPath)

	if !cmd.attachments {
		return nil
	}

	res, err := cmd.app.Files.DownloadAll(ctx, cmd.app.Trello)
	if err != nil {
		return err
	}
	p.Markdown(downloadMarkdown(res))

	if res.Failed > 0 {
		p.Warnf("%d attachments failed, run the command again to retry them", res.Failed)
	}
	return nil
}
