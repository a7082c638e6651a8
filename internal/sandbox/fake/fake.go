package fake

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox"
)

// EngineConfig is the configuration for the fake engine.
type EngineConfig struct {
	Logger log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Fake"})
	return nil
}

// SpawnCall records one Spawn invocation.
type SpawnCall struct {
	SandboxID string
	Command   []string
	Opts      sandbox.SpawnOpts
	Process   *Process
}

// Engine is a fake implementation of the sandbox.Engine interface. It
// simulates sandbox lifecycle, a virtual filesystem and scripted processes
// without any real infrastructure.
type Engine struct {
	mu       sync.Mutex
	logger   log.Logger
	sessions map[string]*model.Session
	files    map[string]map[string][]byte
	ready    map[string]chan model.PreviewEndpoint

	// BootErr makes Boot fail when set.
	BootErr error
	// BootDelay makes Boot take this long (for in-flight boot races).
	BootDelay time.Duration
	// MountErr makes Mount fail when set.
	MountErr error
	// SpawnErr makes Spawn fail when set.
	SpawnErr error
	// ExitCodes scripts process exit codes by the joined command string
	// prefix (e.g. "npm install"). Unmatched commands keep running until
	// killed or Exit is called on their process.
	ExitCodes map[string]int

	mountCalls    int
	teardownCalls int
	spawns        []SpawnCall
}

// NewEngine creates a new fake engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		logger:   cfg.Logger,
		sessions: map[string]*model.Session{},
		files:    map[string]map[string][]byte{},
		ready:    map[string]chan model.PreviewEndpoint{},
	}, nil
}

// Boot creates a new fake sandbox.
func (e *Engine) Boot(ctx context.Context, cfg sandbox.BootConfig) (*model.Session, error) {
	if e.BootDelay > 0 {
		select {
		case <-time.After(e.BootDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.BootErr != nil {
		return nil, e.BootErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	now := time.Now().UTC()
	session := &model.Session{
		ID:          id,
		WorkspaceID: cfg.WorkspaceID,
		Status:      model.SessionStatusRunning,
		ContainerID: "fake-" + strings.ToLower(id),
		CreatedAt:   now,
		StartedAt:   &now,
	}

	e.sessions[id] = session
	e.files[id] = map[string][]byte{}
	e.logger.Infof("Booted fake sandbox: %s", id)

	return session, nil
}

// Mount stores every file of the tree in the fake filesystem.
func (e *Engine) Mount(ctx context.Context, id string, tree model.Tree) error {
	if e.MountErr != nil {
		return e.MountErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fs, ok := e.files[id]
	if !ok {
		return fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	e.mountCalls++
	return tree.Walk(func(p string, n model.Node) error {
		fs[p] = []byte(n.Content)
		return nil
	})
}

// WriteFile writes a file in the fake filesystem.
func (e *Engine) WriteFile(ctx context.Context, id string, path string, content []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fs, ok := e.files[id]
	if !ok {
		return fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	fs[strings.TrimPrefix(path, "/")] = content
	return nil
}

// ReadFile reads a file from the fake filesystem.
func (e *Engine) ReadFile(ctx context.Context, id string, path string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fs, ok := e.files[id]
	if !ok {
		return nil, fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	content, ok := fs[strings.TrimPrefix(path, "/")]
	if !ok {
		return nil, fmt.Errorf("file %q in sandbox %s: %w", path, id, model.ErrNotFound)
	}

	return content, nil
}

// RemoveFile removes a file from the fake filesystem, tolerating absence.
func (e *Engine) RemoveFile(ctx context.Context, id string, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fs, ok := e.files[id]
	if !ok {
		return fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	delete(fs, strings.TrimPrefix(path, "/"))
	return nil
}

// Spawn creates a scripted fake process.
func (e *Engine) Spawn(ctx context.Context, id string, command []string, opts sandbox.SpawnOpts) (sandbox.Process, error) {
	if e.SpawnErr != nil {
		return nil, e.SpawnErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[id]; !ok {
		return nil, fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	proc := newProcess()

	joined := strings.Join(command, " ")
	for prefix, code := range e.ExitCodes {
		if strings.HasPrefix(joined, prefix) {
			proc.Exit(code)
			break
		}
	}

	e.spawns = append(e.spawns, SpawnCall{SandboxID: id, Command: command, Opts: opts, Process: proc})
	e.logger.Debugf("Spawned fake process in %s: %s", id, joined)

	return proc, nil
}

// NotifyNetworkReady returns a channel fired by FireNetworkReady.
func (e *Engine) NotifyNetworkReady(ctx context.Context, id string, ports []int) (<-chan model.PreviewEndpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[id]; !ok {
		return nil, fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	ch := make(chan model.PreviewEndpoint, 1)
	e.ready[id] = ch

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.ready[id] == ch {
			delete(e.ready, id)
		}
	}()

	return ch, nil
}

// FireNetworkReady delivers the network-ready signal for a sandbox.
func (e *Engine) FireNetworkReady(id string, endpoint model.PreviewEndpoint) {
	e.mu.Lock()
	ch, ok := e.ready[id]
	if ok {
		delete(e.ready, id)
	}
	e.mu.Unlock()

	if ok {
		ch <- endpoint
		close(ch)
	}
}

// Teardown removes the fake sandbox and kills its processes.
func (e *Engine) Teardown(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[id]; !ok {
		// Idempotent, like real providers.
		return nil
	}

	delete(e.sessions, id)
	delete(e.files, id)
	e.teardownCalls++

	// Only the torn-down sandbox's processes die, a successor session's
	// processes keep running.
	for _, call := range e.spawns {
		if call.SandboxID == id {
			_ = call.Process.Kill()
		}
	}

	e.logger.Infof("Tore down fake sandbox: %s", id)
	return nil
}

// MountCalls returns the number of Mount invocations.
func (e *Engine) MountCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mountCalls
}

// TeardownCalls returns the number of effective Teardown invocations.
func (e *Engine) TeardownCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.teardownCalls
}

// Spawns returns the recorded Spawn invocations.
func (e *Engine) Spawns() []SpawnCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SpawnCall{}, e.spawns...)
}

// Process is a fake sandbox process with scripted output and exit code.
type Process struct {
	mu       sync.Mutex
	input    bytes.Buffer
	outR     *io.PipeReader
	outW     *io.PipeWriter
	resizes  [][2]int
	done     chan struct{}
	exitOnce sync.Once
	exitCode int
	killed   bool
}

func newProcess() *Process {
	outR, outW := io.Pipe()
	return &Process{
		outR: outR,
		outW: outW,
		done: make(chan struct{}),
	}
}

func (p *Process) Write(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, fmt.Errorf("process already exited")
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input.Write(b)
}

func (p *Process) Output() io.Reader { return p.outR }

func (p *Process) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizes = append(p.resizes, [2]int{cols, rows})
	return nil
}

func (p *Process) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.Exit(-1)
	return nil
}

func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-p.done:
		return p.exitCode, nil
	}
}

// Exit terminates the fake process with the given code.
func (p *Process) Exit(code int) {
	p.exitOnce.Do(func() {
		p.exitCode = code
		p.outW.Close()
		close(p.done)
	})
}

// Emit writes bytes to the process output stream. Must not be called after
// Exit.
func (p *Process) Emit(s string) {
	_, _ = p.outW.Write([]byte(s))
}

// Input returns everything written to the process standard input.
func (p *Process) Input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input.String()
}

// Resizes returns the recorded resize calls as (cols, rows) pairs.
func (p *Process) Resizes() [][2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]int{}, p.resizes...)
}

// Killed reports whether Kill was called on the process.
func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}
