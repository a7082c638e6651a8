package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/sandpad/sandpad/internal/app/up"
	"github.com/sandpad/sandpad/internal/app/workspace"
	"github.com/sandpad/sandpad/internal/gitimport"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox/docker"
	storageio "github.com/sandpad/sandpad/internal/storage/io"
	"github.com/sandpad/sandpad/internal/storage/sqlite"
	"github.com/sandpad/sandpad/internal/sync"
	"github.com/sandpad/sandpad/internal/termview"
	"github.com/sandpad/sandpad/internal/utils/env"
)

type UpCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name        string
	dir         string
	repo        string
	ref         string
	configPath  string
	envSpecs    []string
	githubToken string
	forceReset  bool
	watch       bool
}

// NewUpCommand returns the up command.
func NewUpCommand(rootCmd *RootCommand, app *kingpin.Application) *UpCommand {
	c := &UpCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("up", "Boot a workspace sandbox, provision it and start the dev process.")
	c.Cmd.Arg("name", "Workspace name (created if it does not exist).").Required().StringVar(&c.name)
	c.Cmd.Flag("dir", "Local project directory to mount.").Default(".").StringVar(&c.dir)
	c.Cmd.Flag("repo", "GitHub repository (owner/name) to import instead of a local directory.").StringVar(&c.repo)
	c.Cmd.Flag("ref", "Git ref to import (defaults to the default branch).").StringVar(&c.ref)
	c.Cmd.Flag("config", "Path to a runtime configuration YAML file.").StringVar(&c.configPath)
	c.Cmd.Flag("env", "Environment variable for the sandbox (KEY=VALUE, or KEY to inherit). Repeatable.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("github-token", "GitHub API token for repository imports.").Envar("SANDPAD_GITHUB_TOKEN").StringVar(&c.githubToken)
	c.Cmd.Flag("force-reset", "Re-provision the sandbox even if it already holds a project.").BoolVar(&c.forceReset)
	c.Cmd.Flag("watch", "Mirror local file edits into the sandbox while running.").BoolVar(&c.watch)

	return c
}

func (c UpCommand) Name() string { return c.Cmd.FullCommand() }

func (c UpCommand) Run(ctx context.Context) error {
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

	wsSvc, err := workspace.NewService(workspace.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create workspace service: %w", err)
	}

	ws, err := c.getOrCreateWorkspace(ctx, wsSvc)
	if err != nil {
		return err
	}

	tree, err := c.loadTree(ctx, *ws)
	if err != nil {
		return err
	}

	runtime, err := c.loadRuntime(ctx)
	if err != nil {
		return err
	}

	envVars, err := env.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("could not parse env specs: %w", err)
	}

	eng, err := docker.NewEngine(docker.EngineConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	// Setup narrative and process output stream straight to stdout.
	view := termview.NewBuffer(0, 0)
	view.SetWriteHook(func(p []byte) {
		_, _ = c.rootCmd.Stdout.Write(p)
	})

	upSvc, err := up.NewService(up.ServiceConfig{
		Engine: eng,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create up service: %w", err)
	}

	result, err := upSvc.Run(ctx, up.Request{
		Workspace:  *ws,
		Tree:       *tree,
		Runtime:    runtime,
		Env:        envVars,
		ForceReset: c.forceReset,
		View:       view,
		OnPreview: func(p *model.PreviewEndpoint) {
			if p != nil {
				logger.Infof("Preview available at %s", p.URL())
			}
		},
	})
	if err != nil {
		return err
	}

	if progress := result.Setup.Progress(); progress.Failed() {
		return fmt.Errorf("setup failed: %s", progress.Reason)
	}

	logger.Infof("Session %s is up, press Ctrl-C to detach (sandbox keeps running, use 'sandpad down' to stop it)", result.Session.ID())

	var g run.Group

	// Stay attached until interrupted.
	{
		waitCtx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				<-waitCtx.Done()
				return waitCtx.Err()
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Mirror local edits into the sandbox.
	if c.watch && c.repo == "" && ws.Repo == "" {
		watcher, err := sync.NewWatcher(sync.WatcherConfig{
			Dir:    c.dir,
			Writer: result.Sessions,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create watcher: %w", err)
		}

		watchCtx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				return watcher.Run(watchCtx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	err = g.Run()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c UpCommand) getOrCreateWorkspace(ctx context.Context, svc *workspace.Service) (*model.Workspace, error) {
	ws, err := svc.Get(ctx, c.name)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("could not get workspace: %w", err)
	}

	ws, err = svc.Create(ctx, workspace.CreateOptions{
		Name: c.name,
		Repo: c.repo,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create workspace: %w", err)
	}
	return ws, nil
}

func (c UpCommand) loadTree(ctx context.Context, ws model.Workspace) (*model.Tree, error) {
	repoName := c.repo
	if repoName == "" {
		repoName = ws.Repo
	}

	if repoName != "" {
		importer, err := gitimport.NewGitHubImporter(gitimport.GitHubImporterConfig{
			Token:  c.githubToken,
			Logger: c.rootCmd.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create importer: %w", err)
		}
		tree, err := importer.Import(ctx, repoName, c.ref)
		if err != nil {
			return nil, fmt.Errorf("could not import repository: %w", err)
		}
		return tree, nil
	}

	tree, err := storageio.LoadTree(os.DirFS(c.dir))
	if err != nil {
		return nil, fmt.Errorf("could not load project directory: %w", err)
	}
	return tree, nil
}

func (c UpCommand) loadRuntime(ctx context.Context) (model.RuntimeConfig, error) {
	if c.configPath == "" {
		return storageio.DefaultRuntimeConfig(), nil
	}

	dir, file := filepath.Split(c.configPath)
	if dir == "" {
		dir = "."
	}

	loader := storageio.NewRuntimeYAMLRepository(os.DirFS(dir))
	runtime, err := loader.GetRuntimeConfig(ctx, file)
	if err != nil {
		return model.RuntimeConfig{}, fmt.Errorf("could not load runtime config: %w", err)
	}
	return runtime, nil
}
