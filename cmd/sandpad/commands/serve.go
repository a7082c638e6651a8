package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/sandpad/sandpad/internal/app/up"
	"github.com/sandpad/sandpad/internal/app/workspace"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox/docker"
	storageio "github.com/sandpad/sandpad/internal/storage/io"
	"github.com/sandpad/sandpad/internal/storage/sqlite"
	"github.com/sandpad/sandpad/internal/termview"
	"github.com/sandpad/sandpad/internal/utils/env"
	"github.com/sandpad/sandpad/internal/ws"
)

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name       string
	addr       string
	dir        string
	configPath string
	envSpecs   []string
	forceReset bool
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Bring a workspace session up and expose it over HTTP (terminal WebSocket and status API).")
	c.Cmd.Arg("name", "Workspace name (created if it does not exist).").Required().StringVar(&c.name)
	c.Cmd.Flag("addr", "HTTP listen address.").Default(":8787").StringVar(&c.addr)
	c.Cmd.Flag("dir", "Local project directory to mount.").Default(".").StringVar(&c.dir)
	c.Cmd.Flag("config", "Path to a runtime configuration YAML file.").StringVar(&c.configPath)
	c.Cmd.Flag("env", "Environment variable for the sandbox (KEY=VALUE, or KEY to inherit). Repeatable.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("force-reset", "Re-provision the sandbox even if it already holds a project.").BoolVar(&c.forceReset)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
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

	w, err := wsSvc.Get(ctx, c.name)
	if errors.Is(err, model.ErrNotFound) {
		w, err = wsSvc.Create(ctx, workspace.CreateOptions{Name: c.name})
	}
	if err != nil {
		return fmt.Errorf("could not resolve workspace: %w", err)
	}

	tree, err := storageio.LoadTree(os.DirFS(c.dir))
	if err != nil {
		return fmt.Errorf("could not load project directory: %w", err)
	}

	runtime := storageio.DefaultRuntimeConfig()
	if c.configPath != "" {
		dir, file := filepath.Split(c.configPath)
		if dir == "" {
			dir = "."
		}
		runtime, err = storageio.NewRuntimeYAMLRepository(os.DirFS(dir)).GetRuntimeConfig(ctx, file)
		if err != nil {
			return fmt.Errorf("could not load runtime config: %w", err)
		}
	}

	envVars, err := env.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("could not parse env specs: %w", err)
	}

	eng, err := docker.NewEngine(docker.EngineConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	// Setup narrative goes to the server log stream.
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
		Workspace:  *w,
		Tree:       *tree,
		Runtime:    runtime,
		Env:        envVars,
		ForceReset: c.forceReset,
		View:       view,
	})
	if err != nil {
		return err
	}

	terminal, err := ws.NewTerminalHandler(ws.TerminalHandlerConfig{
		Sessions: result.Sessions,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create terminal handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws/terminal", terminal)
	mux.HandleFunc("/api/status", func(rw http.ResponseWriter, _ *http.Request) {
		type statusResp struct {
			Workspace string `json:"workspace"`
			Session   string `json:"session"`
			Setup     string `json:"setup"`
			Reason    string `json:"reason,omitempty"`
			Preview   string `json:"preview,omitempty"`
		}
		resp := statusResp{
			Workspace: w.ID,
			Session:   result.Session.ID(),
			Setup:     string(result.Setup.Progress().Status),
			Reason:    result.Setup.Progress().Reason,
		}
		if p := result.Setup.Preview(); p != nil {
			resp.Preview = p.URL()
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	server := &http.Server{Addr: c.addr, Handler: mux}

	var g run.Group

	// HTTP server.
	{
		g.Add(
			func() error {
				logger.Infof("HTTP server listening on %s", c.addr)
				return server.ListenAndServe()
			},
			func(_ error) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			},
		)
	}

	// Context cancellation (termination signal handled by main).
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

	err = g.Run()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
