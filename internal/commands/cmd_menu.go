package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tsync/internal/core/logging"
	"github.com/colonyops/tsync/internal/printer"
	"github.com/colonyops/tsync/internal/prompt"
	"github.com/colonyops/tsync/internal/tsync"
)

type MenuCmd struct {
	flags *Flags
	app   *tsync.App
}

// NewMenuCmd creates the interactive menu command.
func NewMenuCmd(flags *Flags, app *tsync.App) *MenuCmd {
	return &MenuCmd{flags: flags, app: app}
}

// Register adds the menu command to the application.
func (cmd *MenuCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "menu",
		Usage:       "Open the interactive migration menu",
		UsageText:   "tsync menu",
		Description: "Runs migration steps one at a time from a numbered menu. This is also what 'tsync' runs without a command.",
		Action:      cmd.Run,
	})
	return app
}

// Run opens the menu on the command's reader and writer.
func (cmd *MenuCmd) Run(ctx context.Context, c *cli.Command) error {
	root := c.Root()
	p := printer.New(root.Writer)
	ctx = printer.NewContext(ctx, p)

	menu := NewMenu(cmd.app, prompt.NewHuh(root.Reader, root.Writer), p, logging.Component("menu"))
	return menu.Run(ctx)
}
