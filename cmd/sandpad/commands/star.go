package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/sandpad/sandpad/internal/app/workspace"
	"github.com/sandpad/sandpad/internal/printer"
	"github.com/sandpad/sandpad/internal/storage/sqlite"
)

type StarCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
	starred  bool
}

// NewStarCommand returns the star command.
func NewStarCommand(rootCmd *RootCommand, app *kingpin.Application) *StarCommand {
	c := &StarCommand{rootCmd: rootCmd, starred: true}

	c.Cmd = app.Command("star", "Star a workspace so it lists first.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)

	return c
}

// NewUnstarCommand returns the unstar command.
func NewUnstarCommand(rootCmd *RootCommand, app *kingpin.Application) *StarCommand {
	c := &StarCommand{rootCmd: rootCmd, starred: false}

	c.Cmd = app.Command("unstar", "Remove the star from a workspace.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)

	return c
}

func (c StarCommand) Name() string { return c.Cmd.FullCommand() }

func (c StarCommand) Run(ctx context.Context) error {
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

	w, err := svc.SetStarred(ctx, c.nameOrID, c.starred)
	if err != nil {
		return fmt.Errorf("could not update workspace: %w", err)
	}

	msg := fmt.Sprintf("Workspace %q starred", w.Name)
	if !c.starred {
		msg = fmt.Sprintf("Workspace %q unstarred", w.Name)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(msg)
}
