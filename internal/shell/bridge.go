// Package shell bridges an interactive shell process inside the sandbox
// with a pseudo-terminal view: process output flows to the view, keystrokes
// flow to the process input, and resize events propagate to the process.
package shell

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sandpad/sandpad/internal/conventions"
	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/sandbox"
	"github.com/sandpad/sandpad/internal/session"
	"github.com/sandpad/sandpad/internal/termview"
	"github.com/sandpad/sandpad/internal/utils/scope"
)

const (
	// DefaultLayoutDelay is the bounded wait before measuring the terminal
	// surface, giving it one layout pass.
	DefaultLayoutDelay = 50 * time.Millisecond

	// Fallback dimensions when the surface reports a degenerate size
	// (e.g. the container was not visible yet). Spawning a process with a
	// zero-size terminal is invalid.
	fallbackCols = 80
	fallbackRows = 24
)

// BridgeConfig is the configuration for the shell bridge.
type BridgeConfig struct {
	// Shell is the command spawned inside the sandbox.
	Shell string
	// LayoutDelay overrides DefaultLayoutDelay (tests use a tiny value).
	LayoutDelay time.Duration
	Logger      log.Logger
}

func (c *BridgeConfig) defaults() error {
	if c.Shell == "" {
		c.Shell = conventions.Shell
	}
	if c.LayoutDelay == 0 {
		c.LayoutDelay = DefaultLayoutDelay
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "shell.Bridge"})
	return nil
}

// Bridge owns at most one live shell process per terminal view. Attaching
// while a process is alive kills the old one first; Detach releases every
// acquired resource in reverse order so no callback ever fires against a
// disposed terminal surface.
type Bridge struct {
	shell       string
	layoutDelay time.Duration
	logger      log.Logger

	mu          sync.Mutex
	view        termview.View
	sess        *session.Session
	scope       *scope.Scope
	proc        sandbox.Process
	dataDisp    termview.Disposer
	resizeDisp  termview.Disposer
	initialized bool
	gen         int
}

// NewBridge creates a new shell bridge.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Bridge{
		shell:       cfg.Shell,
		layoutDelay: cfg.LayoutDelay,
		logger:      cfg.Logger,
	}, nil
}

// Attach connects the terminal view to a fresh interactive shell inside the
// session sandbox. The actual spawn is deferred by the layout delay so the
// surface can be measured. Any previous live process is killed first.
func (b *Bridge) Attach(ctx context.Context, view termview.View, sess *session.Session) error {
	if view == nil {
		return fmt.Errorf("terminal view is required")
	}
	if sess == nil {
		return fmt.Errorf("session is required")
	}

	b.mu.Lock()

	// Replace any previous attachment: kill its process and listeners but
	// keep the surface alive, it belongs to the view owner.
	if old := b.scope; old != nil {
		b.mu.Unlock()
		old.Close()
		b.mu.Lock()
	}

	// Initialize the surface exactly once per view instance, even when the
	// host effect fires Attach more than once.
	if b.view != view {
		b.initialized = false
	}
	b.view = view
	b.sess = sess
	b.proc = nil
	b.gen++
	gen := b.gen

	sc := scope.New()
	b.scope = sc

	if !b.initialized {
		b.initialized = true
		view.Focus()
	}

	b.mu.Unlock()

	timer := time.AfterFunc(b.layoutDelay, func() {
		b.spawnShell(ctx, gen)
	})
	sc.Add(func() { timer.Stop() })

	return nil
}

// spawnShell measures the surface and starts the shell process, wiring the
// three data paths. Each path isolates its own failures so a fault in one
// does not break the others.
func (b *Bridge) spawnShell(ctx context.Context, gen int) {
	b.mu.Lock()
	if b.gen != gen || b.view == nil {
		b.mu.Unlock()
		return
	}
	view, sess, sc := b.view, b.sess, b.scope
	b.mu.Unlock()

	cols, rows := view.Size()
	if cols <= 0 || rows <= 0 {
		cols, rows = fallbackCols, fallbackRows
	}

	proc, err := sess.Spawn(ctx, []string{b.shell}, sandbox.SpawnOpts{
		Tty:  true,
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		// Visible in the terminal, no automatic retry: the caller must
		// trigger a fresh attach.
		b.logger.Errorf("Could not spawn shell: %s", err)
		_, _ = view.WriteString(fmt.Sprintf("Error: could not start shell: %s\r\n", err))
		return
	}

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		_ = proc.Kill()
		return
	}
	b.proc = proc
	b.mu.Unlock()

	sc.Add(func() {
		// The process may already be gone, kill errors are swallowed.
		_ = proc.Kill()
	})

	// Path 2: terminal keystrokes -> process input.
	dataDisp := view.OnData(func(p []byte) {
		if _, err := proc.Write(p); err != nil {
			b.logger.Debugf("Could not write keystrokes to shell: %s", err)
		}
	})
	sc.Add(func() { dataDisp() })

	// Path 3: resize events -> process, only with strictly positive
	// dimensions.
	resizeDisp := view.OnResize(func(cols, rows int) {
		if cols <= 0 || rows <= 0 {
			return
		}
		if err := proc.Resize(cols, rows); err != nil {
			b.logger.Debugf("Could not resize shell: %s", err)
		}
	})
	sc.Add(func() { resizeDisp() })

	b.mu.Lock()
	b.dataDisp = dataDisp
	b.resizeDisp = resizeDisp
	b.mu.Unlock()

	// Path 1: process output -> terminal surface.
	go b.pump(gen, view, proc)
}

// pump streams process output to the view and handles process exit: exit
// notice, listener release and handle clearing so a subsequent attach can
// spawn cleanly.
func (b *Bridge) pump(gen int, view termview.View, proc sandbox.Process) {
	_, _ = io.Copy(view, proc.Output())

	code, err := proc.Wait(context.Background())
	if err != nil {
		return
	}

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.proc = nil
	dataDisp, resizeDisp := b.dataDisp, b.resizeDisp
	b.dataDisp, b.resizeDisp = nil, nil
	b.mu.Unlock()

	if dataDisp != nil {
		dataDisp()
	}
	if resizeDisp != nil {
		resizeDisp()
	}

	_, _ = view.WriteString(fmt.Sprintf("\r\nProcess exited with code %d\r\n", code))
}

// Proc returns the live process handle, or nil when none is alive.
func (b *Bridge) Proc() sandbox.Process {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.proc
}

// Detach tears the attachment down: pending spawn timer cancelled,
// listeners released, process killed and the terminal surface disposed, in
// that order. It is implied on view teardown and is idempotent.
func (b *Bridge) Detach() {
	b.mu.Lock()
	sc := b.scope
	view := b.view
	b.scope = nil
	b.view = nil
	b.sess = nil
	b.proc = nil
	b.dataDisp = nil
	b.resizeDisp = nil
	b.initialized = false
	b.gen++
	b.mu.Unlock()

	if sc != nil {
		sc.Close()
	}
	if view != nil {
		view.Dispose()
	}
}
