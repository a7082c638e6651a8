package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	workspaces map[string]model.Workspace
	mu         sync.RWMutex
	logger     log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		workspaces: make(map[string]model.Workspace),
		logger:     cfg.Logger,
	}, nil
}

// CreateWorkspace creates a new workspace in the repository.
func (r *Repository) CreateWorkspace(ctx context.Context, w model.Workspace) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workspaces[w.ID]; ok {
		return fmt.Errorf("workspace with id %s: %w", w.ID, model.ErrAlreadyExists)
	}

	for _, existing := range r.workspaces {
		if existing.Name == w.Name {
			return fmt.Errorf("workspace with name %s: %w", w.Name, model.ErrAlreadyExists)
		}
	}

	r.workspaces[w.ID] = w
	r.logger.Debugf("Created workspace in repository: %s", w.ID)

	return nil
}

// GetWorkspace retrieves a workspace by ID.
func (r *Repository) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workspace, ok := r.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, model.ErrNotFound)
	}

	// Return a copy
	workspaceCopy := workspace
	return &workspaceCopy, nil
}

// GetWorkspaceByName retrieves a workspace by name.
func (r *Repository) GetWorkspaceByName(ctx context.Context, name string) (*model.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, workspace := range r.workspaces {
		if workspace.Name == name {
			// Return a copy
			workspaceCopy := workspace
			return &workspaceCopy, nil
		}
	}

	return nil, fmt.Errorf("workspace with name %s: %w", name, model.ErrNotFound)
}

// ListWorkspaces returns all workspaces, newest first.
func (r *Repository) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workspaces := make([]model.Workspace, 0, len(r.workspaces))
	for _, workspace := range r.workspaces {
		workspaces = append(workspaces, workspace)
	}

	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].CreatedAt.After(workspaces[j].CreatedAt)
	})

	return workspaces, nil
}

// UpdateWorkspace updates an existing workspace.
func (r *Repository) UpdateWorkspace(ctx context.Context, w model.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workspaces[w.ID]; !ok {
		return fmt.Errorf("workspace %s: %w", w.ID, model.ErrNotFound)
	}

	r.workspaces[w.ID] = w
	r.logger.Debugf("Updated workspace in repository: %s", w.ID)

	return nil
}

// DeleteWorkspace deletes a workspace.
func (r *Repository) DeleteWorkspace(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workspaces[id]; !ok {
		return fmt.Errorf("workspace %s: %w", id, model.ErrNotFound)
	}

	delete(r.workspaces, id)
	r.logger.Debugf("Deleted workspace from repository: %s", id)

	return nil
}

// SetWorkspaceStarred sets the starred flag on a workspace.
func (r *Repository) SetWorkspaceStarred(ctx context.Context, id string, starred bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	workspace, ok := r.workspaces[id]
	if !ok {
		return fmt.Errorf("workspace %s: %w", id, model.ErrNotFound)
	}

	workspace.Starred = starred
	r.workspaces[id] = workspace

	return nil
}
