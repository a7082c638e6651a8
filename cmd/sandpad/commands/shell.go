package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"golang.org/x/term"

	"github.com/sandpad/sandpad/internal/app/workspace"
	"github.com/sandpad/sandpad/internal/conventions"
	"github.com/sandpad/sandpad/internal/sandbox"
	"github.com/sandpad/sandpad/internal/sandbox/docker"
	"github.com/sandpad/sandpad/internal/session"
	storageio "github.com/sandpad/sandpad/internal/storage/io"
	"github.com/sandpad/sandpad/internal/storage/sqlite"
)

type ShellCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
}

// NewShellCommand returns the shell command.
func NewShellCommand(rootCmd *RootCommand, app *kingpin.Application) *ShellCommand {
	c := &ShellCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("shell", "Open an interactive shell in a running workspace sandbox.")
	c.Cmd.Arg("name-or-id", "Workspace name or ID.").Required().StringVar(&c.nameOrID)

	return c
}

func (c ShellCommand) Name() string { return c.Cmd.FullCommand() }

func (c ShellCommand) Run(ctx context.Context) error {
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

	// Only attach to a surviving sandbox, never boot one implicitly.
	existing, err := eng.FindWorkspaceSession(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("could not check for running session: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("workspace %q has no running sandbox, run 'sandpad up' first", w.Name)
	}

	sessions, err := session.NewManager(session.ManagerConfig{
		Engine:      eng,
		WorkspaceID: w.ID,
		Runtime:     storageio.DefaultRuntimeConfig(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create session manager: %w", err)
	}

	sess, err := sessions.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("could not acquire session: %w", err)
	}

	cols, rows := 80, 24
	stdoutFd := int(os.Stdout.Fd())
	if term.IsTerminal(stdoutFd) {
		if tc, tr, err := term.GetSize(stdoutFd); err == nil && tc > 0 && tr > 0 {
			cols, rows = tc, tr
		}
	}

	proc, err := sess.Spawn(ctx, []string{conventions.Shell}, sandbox.SpawnOpts{
		Tty:  true,
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		return fmt.Errorf("could not open shell: %w", err)
	}

	// Raw mode so keystrokes reach the sandbox shell unmangled.
	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("could not set terminal raw mode: %w", err)
		}
		defer func() { _ = term.Restore(stdinFd, oldState) }()
	}

	// Propagate local terminal resizes.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			if tc, tr, err := term.GetSize(stdoutFd); err == nil && tc > 0 && tr > 0 {
				_ = proc.Resize(tc, tr)
			}
		}
	}()

	go func() { _, _ = io.Copy(proc, os.Stdin) }()
	_, _ = io.Copy(os.Stdout, proc.Output())

	code, err := proc.Wait(ctx)
	if err != nil {
		return fmt.Errorf("could not wait for shell: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("shell exited with code %d", code)
	}

	return nil
}
