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

type RemoveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
}

// NewRemoveCommand returns the rm command.
func NewRemoveCommand(rootCmd *RootCommand, app *kingpin.Application) *RemoveCommand {
	c := &RemoveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("rm", "Remove a workspace, tearing down its sandbox if running.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)

	return c
}

func (c RemoveCommand) Name() string { return c.Cmd.FullCommand() }

func (c RemoveCommand) Run(ctx context.Context) error {
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

	// Tear down a surviving sandbox before dropping the record.
	eng, err := docker.NewEngine(docker.EngineConfig{Logger: logger})
	if err == nil {
		sess, err := eng.FindWorkspaceSession(ctx, w.ID)
		if err != nil {
			logger.Warningf("Could not check for running session: %s", err)
		} else if sess != nil {
			if err := eng.Teardown(ctx, sess.ID); err != nil {
				return fmt.Errorf("could not tear down sandbox: %w", err)
			}
		}
	}

	if err := svc.Delete(ctx, w.ID); err != nil {
		return fmt.Errorf("could not delete workspace: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Workspace %q removed", w.Name))
}
