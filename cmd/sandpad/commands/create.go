package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/sandpad/sandpad/internal/app/workspace"
	"github.com/sandpad/sandpad/internal/printer"
	"github.com/sandpad/sandpad/internal/storage/sqlite"
)

type CreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name string
	repo string
}

// NewCreateCommand returns the create command.
func NewCreateCommand(rootCmd *RootCommand, app *kingpin.Application) *CreateCommand {
	c := &CreateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("create", "Create a new workspace.")
	c.Cmd.Arg("name", "Name for the workspace.").Required().StringVar(&c.name)
	c.Cmd.Flag("repo", "GitHub repository (owner/name) to seed the workspace from.").StringVar(&c.repo)

	return c
}

func (c CreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c CreateCommand) Run(ctx context.Context) error {
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

	w, err := svc.Create(ctx, workspace.CreateOptions{
		Name: c.name,
		Repo: c.repo,
	})
	if err != nil {
		return fmt.Errorf("could not create workspace: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Workspace %q created (%s)", w.Name, w.ID))
}
