package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox"
)

// DefaultGraceDelay is the delay between a release request and the actual
// sandbox teardown, so operations started just before release can flush.
const DefaultGraceDelay = 500 * time.Millisecond

// ManagerConfig is the configuration for the session manager.
type ManagerConfig struct {
	Engine      sandbox.Engine
	WorkspaceID string
	Runtime     model.RuntimeConfig
	// GraceDelay overrides DefaultGraceDelay (tests use a tiny value).
	GraceDelay time.Duration
	Logger     log.Logger
}

func (c *ManagerConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.WorkspaceID == "" {
		return fmt.Errorf("workspace id is required")
	}
	if err := c.Runtime.Validate(); err != nil {
		return fmt.Errorf("invalid runtime config: %w", err)
	}
	if c.GraceDelay == 0 {
		c.GraceDelay = DefaultGraceDelay
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "session.Manager", "workspace": c.WorkspaceID})
	return nil
}

// Manager owns the lifecycle of exactly one sandbox runtime per workspace:
// boot, file writes, release. At most one live session exists at a time.
type Manager struct {
	engine      sandbox.Engine
	workspaceID string
	runtime     model.RuntimeConfig
	graceDelay  time.Duration
	logger      log.Logger

	mu       sync.Mutex
	current  *Session
	booting  bool
	bootDone chan struct{}
	bootErr  error
	// released marks a release requested while a boot is still in flight,
	// so the freshly booted sandbox is torn down instead of handed out.
	released bool
	// pending tracks a teardown scheduled behind the grace delay. The next
	// acquire completes it before booting so the engine never hands back a
	// sandbox that is about to be destroyed.
	pending *pendingTeardown
}

// pendingTeardown is a teardown that has been requested but not yet executed.
// done closes once the sandbox is actually destroyed.
type pendingTeardown struct {
	id    string
	timer *time.Timer
	done  chan struct{}
}

// NewManager creates a new session manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{
		engine:      cfg.Engine,
		workspaceID: cfg.WorkspaceID,
		runtime:     cfg.Runtime,
		graceDelay:  cfg.GraceDelay,
		logger:      cfg.Logger,
	}, nil
}

// Acquire returns the live session, booting a fresh sandbox when none
// exists. Concurrent callers while a boot is in flight wait for that same
// boot instead of triggering a second one. Boot failures are not retried,
// the caller must acquire again explicitly.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()

	if m.current != nil && !m.current.TornDown() {
		s := m.current
		m.mu.Unlock()
		return s, nil
	}

	if m.booting {
		done := m.bootDone
		m.mu.Unlock()
		return m.awaitBoot(ctx, done)
	}

	m.booting = true
	m.released = false
	m.bootDone = make(chan struct{})
	done := m.bootDone
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	// A teardown still waiting on its grace delay must finish first,
	// otherwise the engine could hand back the sandbox of the session that
	// was just released and destroy it under the new handle moments later.
	if pending != nil {
		m.completeTeardown(pending)
	}

	info, err := m.engine.Boot(ctx, sandbox.BootConfig{
		WorkspaceID: m.workspaceID,
		Runtime:     m.runtime,
	})

	m.mu.Lock()
	defer func() {
		m.booting = false
		close(done)
		m.mu.Unlock()
	}()

	if err != nil {
		m.bootErr = fmt.Errorf("could not boot sandbox: %w", err)
		m.current = nil
		return nil, m.bootErr
	}

	s := newSession(*info, m.engine)

	if m.released {
		// The consumer released before the boot completed. Hand nothing
		// out and destroy the fresh sandbox so it doesn't leak.
		s.markTornDown()
		m.current = nil
		m.bootErr = fmt.Errorf("released while booting: %w", model.ErrTornDown)
		pt := &pendingTeardown{id: info.ID, done: make(chan struct{})}
		m.pending = pt
		go func() {
			m.teardown(pt.id)
			m.clearPending(pt)
			close(pt.done)
		}()
		return nil, m.bootErr
	}

	m.current = s
	m.bootErr = nil
	m.logger.Infof("Acquired session %s", s.ID())

	return s, nil
}

// awaitBoot blocks until the in-flight boot finishes and returns its result.
func (m *Manager) awaitBoot(ctx context.Context, done chan struct{}) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bootErr != nil {
		return nil, m.bootErr
	}
	if m.current == nil || m.current.TornDown() {
		return nil, fmt.Errorf("session released during boot: %w", model.ErrTornDown)
	}
	return m.current, nil
}

// WriteFile writes a file into the live session's sandbox. Fails fast with a
// descriptive error when there is no live session.
func (m *Manager) WriteFile(ctx context.Context, path string, content []byte) error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s == nil {
		return fmt.Errorf("write %q: no session acquired: %w", path, model.ErrNotFound)
	}
	return s.WriteFile(ctx, path, content)
}

// Release requests teardown of the live session. It is idempotent: releasing
// twice, or before anything was acquired, is a no-op. The session handle is
// marked torn down synchronously so in-flight stage completions abandon their
// continuation; the sandbox itself is destroyed after a short grace delay so
// operations started just before release can still flush.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.booting {
		m.released = true
		m.logger.Debugf("Release requested while boot in flight")
		return
	}

	s := m.current
	if s == nil || s.TornDown() {
		return
	}

	s.markTornDown()
	id := s.ID()
	m.logger.Infof("Released session %s, teardown in %s", id, m.graceDelay)

	pt := &pendingTeardown{id: id, done: make(chan struct{})}
	pt.timer = time.AfterFunc(m.graceDelay, func() {
		m.teardown(pt.id)
		m.clearPending(pt)
		close(pt.done)
	})
	m.pending = pt
}

// completeTeardown executes a pending teardown right away: it either claims
// the grace timer and tears down synchronously, or waits for the already
// running teardown to finish.
func (m *Manager) completeTeardown(pt *pendingTeardown) {
	if pt.timer != nil && pt.timer.Stop() {
		m.teardown(pt.id)
		close(pt.done)
		return
	}
	<-pt.done
}

func (m *Manager) teardown(id string) {
	if err := m.engine.Teardown(context.Background(), id); err != nil {
		m.logger.Errorf("Could not tear down sandbox %s: %s", id, err)
	}
}

func (m *Manager) clearPending(pt *pendingTeardown) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == pt {
		m.pending = nil
	}
}

// Current returns the live session, or nil when none is acquired.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
