package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox"
)

// Session is the handle to one booted sandbox runtime. It is threaded
// explicitly through every operation instead of living in a global, so
// ownership and lifetime stay visible at call sites.
//
// Teardown is monotonic: once the handle is marked torn down it can never be
// revived, a fresh session must be acquired instead. The mark happens
// synchronously on release so in-flight asynchronous work can detect it and
// abandon its continuation.
type Session struct {
	info     model.Session
	engine   sandbox.Engine
	tornDown atomic.Bool
}

func newSession(info model.Session, engine sandbox.Engine) *Session {
	return &Session{info: info, engine: engine}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.info.ID }

// Info returns the session model data.
func (s *Session) Info() model.Session { return s.info }

// TornDown reports whether teardown has been requested for this session.
func (s *Session) TornDown() bool { return s.tornDown.Load() }

func (s *Session) markTornDown() { s.tornDown.Store(true) }

func (s *Session) guard(op string) error {
	if s.tornDown.Load() {
		return fmt.Errorf("%s on session %s: %w", op, s.info.ID, model.ErrTornDown)
	}
	return nil
}

// Mount mounts the project tree into the sandbox.
func (s *Session) Mount(ctx context.Context, tree model.Tree) error {
	if err := s.guard("mount"); err != nil {
		return err
	}
	return s.engine.Mount(ctx, s.info.ID, tree)
}

// WriteFile writes a file inside the sandbox workdir.
func (s *Session) WriteFile(ctx context.Context, path string, content []byte) error {
	if s.tornDown.Load() {
		return fmt.Errorf("write %q on session %s: %w", path, s.info.ID, model.ErrTornDown)
	}
	return s.engine.WriteFile(ctx, s.info.ID, path, content)
}

// ReadFile reads a file from the sandbox workdir.
func (s *Session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if s.tornDown.Load() {
		return nil, fmt.Errorf("read %q on session %s: %w", path, s.info.ID, model.ErrTornDown)
	}
	return s.engine.ReadFile(ctx, s.info.ID, path)
}

// RemoveFile removes a file from the sandbox workdir, tolerating absence.
func (s *Session) RemoveFile(ctx context.Context, path string) error {
	if s.tornDown.Load() {
		return fmt.Errorf("remove %q on session %s: %w", path, s.info.ID, model.ErrTornDown)
	}
	return s.engine.RemoveFile(ctx, s.info.ID, path)
}

// Spawn starts a process inside the sandbox.
func (s *Session) Spawn(ctx context.Context, command []string, opts sandbox.SpawnOpts) (sandbox.Process, error) {
	if err := s.guard("spawn"); err != nil {
		return nil, err
	}
	return s.engine.Spawn(ctx, s.info.ID, command, opts)
}

// NotifyNetworkReady arms the network-ready signal for the sandbox.
func (s *Session) NotifyNetworkReady(ctx context.Context, ports []int) (<-chan model.PreviewEndpoint, error) {
	if err := s.guard("notify network ready"); err != nil {
		return nil, err
	}
	return s.engine.NotifyNetworkReady(ctx, s.info.ID, ports)
}
