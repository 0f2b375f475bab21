package commands

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tsync/internal/printer"
	"github.com/colonyops/tsync/internal/tsync"
	"github.com/colonyops/tsync/pkg/iojson"
)

type PlansCmd struct {
	flags  *Flags
	app    *tsync.App
	asJSON bool
}

// NewPlansCmd creates the plan discovery command.
func NewPlansCmd(flags *Flags, app *tsync.App) *PlansCmd {
	return &PlansCmd{flags: flags, app: app}
}

// Register adds the plans command to the application.
func (cmd *PlansCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "plans",
		Usage:       "List the planner plans a migration can target",
		UsageText:   "tsync plans [options]",
		Description: "Signs in to Microsoft Graph and lists every group plan whose group has a document library.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print plans as JSON",
				Destination: &cmd.asJSON,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *PlansCmd) run(ctx context.Context, c *cli.Command) error {
	w := c.Root().Writer

	plans, err := cmd.app.Graph.EnumeratePlans(ctx)
	if err != nil {
		if cmd.asJSON {
			_ = iojson.WriteError(os.Stderr, "enumerate plans", map[string]any{"error": err.Error()})
		}
		return err
	}

	if cmd.asJSON {
		return iojson.WriteWith(w, os.Stderr, plans)
	}

	p := printer.New(w)
	if len(plans) == 0 {
		p.Infof("No plans found")
		return nil
	}

	rows := make([][]any, len(plans))
	for i, pl := range plans {
		rows[i] = []any{pl.PlanName, pl.PlanID, pl.GroupName, pl.DriveName}
	}
	p.Table([]any{"PLAN", "PLAN ID", "GROUP", "DRIVE"}, rows)
	return nil
}
