package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/sandpad/sandpad/internal/app/workspace"
	"github.com/sandpad/sandpad/internal/printer"
	"github.com/sandpad/sandpad/internal/sandbox/docker"
	"github.com/sandpad/sandpad/internal/storage/sqlite"
)

type DownCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
}

// NewDownCommand returns the down command.
func NewDownCommand(rootCmd *RootCommand, app *kingpin.Application) *DownCommand {
	c := &DownCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("down", "Tear down the running sandbox of a workspace.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)

	return c
}

func (c DownCommand) Name() string { return c.Cmd.FullCommand() }

func (c DownCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Initialize storage (SQLite).
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	svc, err := workspace.NewService(workspace.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	w, err := svc.Get(ctx, c.nameOrID)
	if err != nil {
		return fmt.Errorf("could not get workspace: %w", err)
	}

	eng, err := docker.NewEngine(docker.EngineConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	sess, err := eng.FindWorkspaceSession(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("could not check for running session: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)

	if sess == nil {
		return p.PrintMessage(fmt.Sprintf("Workspace %q has no running sandbox", w.Name))
	}

	if err := eng.Teardown(ctx, sess.ID); err != nil {
		return fmt.Errorf("could not tear down sandbox: %w", err)
	}

	return p.PrintMessage(fmt.Sprintf("Sandbox of workspace %q torn down", w.Name))
}
