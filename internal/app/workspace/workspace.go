// Package workspace implements the workspace management use cases.
package workspace

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/storage"
)

// ServiceConfig is the configuration for the workspace service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Workspace"})
	return nil
}

// Service handles workspace management business logic.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new workspace service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// CreateOptions are the options for creating a workspace.
type CreateOptions struct {
	Name string
	Repo string
}

// Create creates a new workspace.
func (s *Service) Create(ctx context.Context, opts CreateOptions) (*model.Workspace, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("name is required: %w", model.ErrNotValid)
	}

	// Check name uniqueness
	_, err := s.repo.GetWorkspaceByName(ctx, opts.Name)
	if err == nil {
		return nil, fmt.Errorf("workspace with name %q already exists: %w", opts.Name, model.ErrAlreadyExists)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("could not check name uniqueness: %w", err)
	}

	now := time.Now().UTC()
	workspace := model.Workspace{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Name:      opts.Name,
		Repo:      opts.Repo,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateWorkspace(ctx, workspace); err != nil {
		return nil, fmt.Errorf("could not save workspace: %w", err)
	}

	s.logger.Infof("Created workspace: %s (%s)", workspace.Name, workspace.ID)

	return &workspace, nil
}

// Get retrieves a workspace by name, falling back to ID lookup.
func (s *Service) Get(ctx context.Context, nameOrID string) (*model.Workspace, error) {
	workspace, err := s.repo.GetWorkspaceByName(ctx, nameOrID)
	if err == nil {
		return workspace, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("could not get workspace: %w", err)
	}

	workspace, err = s.repo.GetWorkspace(ctx, nameOrID)
	if err != nil {
		return nil, fmt.Errorf("could not find workspace: %w", err)
	}

	return workspace, nil
}

// List returns all workspaces, starred ones first.
func (s *Service) List(ctx context.Context) ([]model.Workspace, error) {
	workspaces, err := s.repo.ListWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list workspaces: %w", err)
	}

	// Stable partition, repository order is preserved inside each group.
	starred := make([]model.Workspace, 0, len(workspaces))
	rest := make([]model.Workspace, 0, len(workspaces))
	for _, w := range workspaces {
		if w.Starred {
			starred = append(starred, w)
		} else {
			rest = append(rest, w)
		}
	}

	return append(starred, rest...), nil
}

// SetStarred stars or unstars a workspace.
func (s *Service) SetStarred(ctx context.Context, nameOrID string, starred bool) (*model.Workspace, error) {
	workspace, err := s.Get(ctx, nameOrID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetWorkspaceStarred(ctx, workspace.ID, starred); err != nil {
		return nil, fmt.Errorf("could not update workspace: %w", err)
	}

	workspace.Starred = starred
	return workspace, nil
}

// Delete deletes a workspace.
func (s *Service) Delete(ctx context.Context, nameOrID string) error {
	workspace, err := s.Get(ctx, nameOrID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteWorkspace(ctx, workspace.ID); err != nil {
		return fmt.Errorf("could not delete workspace: %w", err)
	}

	s.logger.Infof("Deleted workspace: %s (%s)", workspace.Name, workspace.ID)

	return nil
}
