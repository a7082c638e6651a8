// Package up implements the session bring-up use case: boot a sandbox for a
// workspace, run the setup protocol on it and hand back live handles.
package up

import (
	"context"
	"fmt"

	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox"
	"github.com/sandpad/sandpad/internal/session"
	"github.com/sandpad/sandpad/internal/setup"
	"github.com/sandpad/sandpad/internal/termview"
	"github.com/sandpad/sandpad/internal/utils/env"
)

// ServiceConfig is the configuration for the up service.
type ServiceConfig struct {
	Engine sandbox.Engine
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Up"})
	return nil
}

// Service handles the session bring-up business logic.
type Service struct {
	engine sandbox.Engine
	logger log.Logger
}

// NewService creates a new up service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine: cfg.Engine,
		logger: cfg.Logger,
	}, nil
}

// Request is the input for a session bring-up.
type Request struct {
	Workspace model.Workspace
	Tree      model.Tree
	Runtime   model.RuntimeConfig
	// Env overrides runtime environment variables.
	Env map[string]string
	// ForceReset re-provisions the sandbox even when an existing project
	// is detected inside it.
	ForceReset bool
	// View receives the setup narrative and later the shell.
	View termview.View
	// OnProgress and OnPreview are forwarded to the setup orchestrator.
	OnProgress func(p model.SetupProgress)
	OnPreview  func(p *model.PreviewEndpoint)
}

// Result holds the live handles of a brought-up session.
type Result struct {
	Sessions *session.Manager
	Setup    *setup.Orchestrator
	Session  *session.Session
}

// Run boots the workspace sandbox and provisions it. The returned manager
// owns the sandbox lifecycle; the caller must release it when done.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	runtime := req.Runtime
	runtime.Env = env.Merge(runtime.Env, req.Env)

	sessions, err := session.NewManager(session.ManagerConfig{
		Engine:      s.engine,
		WorkspaceID: req.Workspace.ID,
		Runtime:     runtime,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create session manager: %w", err)
	}

	sess, err := sessions.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not acquire session: %w", err)
	}

	orchestrator, err := setup.NewOrchestrator(setup.OrchestratorConfig{
		View:         req.View,
		PreviewPorts: runtime.PreviewPorts,
		OnProgress:   req.OnProgress,
		OnPreview:    req.OnPreview,
		Logger:       s.logger,
	})
	if err != nil {
		sessions.Release()
		return nil, fmt.Errorf("could not create setup orchestrator: %w", err)
	}

	if err := orchestrator.Run(ctx, sess, req.Tree, setup.Options{ForceReset: req.ForceReset}); err != nil {
		sessions.Release()
		return nil, fmt.Errorf("could not provision session: %w", err)
	}

	return &Result{
		Sessions: sessions,
		Setup:    orchestrator,
		Session:  sess,
	}, nil
}
