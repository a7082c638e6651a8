package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/storage/memory"
)

func testWorkspace(id, name string) model.Workspace {
	now := time.Now().UTC()
	return model.Workspace{
		ID:        id,
		Name:      name,
		Repo:      "owner/repo",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepositoryCRUD(t *testing.T) {
	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, repo *memory.Repository) error
		expErr  error
	}{
		"Creating a workspace should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id", "test"))
				require.NoError(t, err)

				retrieved, err := repo.GetWorkspace(ctx, "test-id")
				require.NoError(t, err)
				assert.Equal(t, "test-id", retrieved.ID)
				assert.Equal(t, "test", retrieved.Name)
				assert.Equal(t, "owner/repo", retrieved.Repo)

				return nil
			},
		},

		"Creating an invalid workspace should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.CreateWorkspace(ctx, model.Workspace{ID: "test-id"})
			},
			expErr: model.ErrNotValid,
		},

		"Creating a duplicate ID should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id", "test"))
				require.NoError(t, err)

				return repo.CreateWorkspace(ctx, testWorkspace("test-id", "different"))
			},
			expErr: model.ErrAlreadyExists,
		},

		"Creating a duplicate name should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id-1", "test"))
				require.NoError(t, err)

				return repo.CreateWorkspace(ctx, testWorkspace("test-id-2", "test"))
			},
			expErr: model.ErrAlreadyExists,
		},

		"Getting a non-existent workspace should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				_, err := repo.GetWorkspace(ctx, "non-existent")
				return err
			},
			expErr: model.ErrNotFound,
		},

		"Getting a workspace by name should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id", "test-name"))
				require.NoError(t, err)

				retrieved, err := repo.GetWorkspaceByName(ctx, "test-name")
				require.NoError(t, err)
				assert.Equal(t, "test-id", retrieved.ID)

				return nil
			},
		},

		"Getting a workspace by non-existent name should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				_, err := repo.GetWorkspaceByName(ctx, "non-existent")
				return err
			},
			expErr: model.ErrNotFound,
		},

		"Listing workspaces should return newest first": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				for i := 0; i < 3; i++ {
					ws := testWorkspace(fmt.Sprintf("test-id-%d", i), fmt.Sprintf("test-%d", i))
					ws.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Hour)
					err := repo.CreateWorkspace(ctx, ws)
					require.NoError(t, err)
				}

				workspaces, err := repo.ListWorkspaces(ctx)
				require.NoError(t, err)
				require.Len(t, workspaces, 3)
				assert.Equal(t, "test-id-2", workspaces[0].ID)
				assert.Equal(t, "test-id-0", workspaces[2].ID)

				return nil
			},
		},

		"Listing an empty repository should return an empty slice": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				workspaces, err := repo.ListWorkspaces(ctx)
				require.NoError(t, err)
				assert.Empty(t, workspaces)

				return nil
			},
		},

		"Updating a workspace should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				ws := testWorkspace("test-id", "test")
				err := repo.CreateWorkspace(ctx, ws)
				require.NoError(t, err)

				ws.Repo = "owner/other"
				err = repo.UpdateWorkspace(ctx, ws)
				require.NoError(t, err)

				retrieved, err := repo.GetWorkspace(ctx, "test-id")
				require.NoError(t, err)
				assert.Equal(t, "owner/other", retrieved.Repo)

				return nil
			},
		},

		"Updating a non-existent workspace should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.UpdateWorkspace(ctx, testWorkspace("non-existent", "test"))
			},
			expErr: model.ErrNotFound,
		},

		"Starring a workspace should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id", "test"))
				require.NoError(t, err)

				err = repo.SetWorkspaceStarred(ctx, "test-id", true)
				require.NoError(t, err)

				retrieved, err := repo.GetWorkspace(ctx, "test-id")
				require.NoError(t, err)
				assert.True(t, retrieved.Starred)

				return nil
			},
		},

		"Starring a non-existent workspace should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.SetWorkspaceStarred(ctx, "non-existent", true)
			},
			expErr: model.ErrNotFound,
		},

		"Deleting a workspace should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id", "test"))
				require.NoError(t, err)

				err = repo.DeleteWorkspace(ctx, "test-id")
				require.NoError(t, err)

				_, err = repo.GetWorkspace(ctx, "test-id")
				assert.ErrorIs(t, err, model.ErrNotFound)

				return nil
			},
		},

		"Deleting a non-existent workspace should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.DeleteWorkspace(ctx, "non-existent")
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
			require.NoError(t, err)

			err = test.actions(context.Background(), t, repo)

			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestRepositoryReturnsCopies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	err = repo.CreateWorkspace(ctx, testWorkspace("test-id", "test"))
	require.NoError(t, err)

	// Mutating a retrieved copy must not leak into the repository.
	retrieved, err := repo.GetWorkspace(ctx, "test-id")
	require.NoError(t, err)
	retrieved.Name = "mutated"

	again, err := repo.GetWorkspace(ctx, "test-id")
	require.NoError(t, err)
	assert.Equal("test", again.Name)
}
