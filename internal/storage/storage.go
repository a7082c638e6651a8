package storage

import (
	"context"

	"github.com/sandpad/sandpad/internal/model"
)

// Repository is the interface for workspace persistence.
type Repository interface {
	CreateWorkspace(ctx context.Context, w model.Workspace) error
	GetWorkspace(ctx context.Context, id string) (*model.Workspace, error)
	GetWorkspaceByName(ctx context.Context, name string) (*model.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)
	UpdateWorkspace(ctx context.Context, w model.Workspace) error
	DeleteWorkspace(ctx context.Context, id string) error
	SetWorkspaceStarred(ctx context.Context, id string, starred bool) error
}
