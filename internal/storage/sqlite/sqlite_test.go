package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/storage/sqlite"
)

func newTestRepository(t *testing.T) *sqlite.Repository {
	t.Helper()

	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func testWorkspace(id, name string) model.Workspace {
	// SQLite stores second precision timestamps.
	now := time.Unix(time.Now().Unix(), 0).UTC()
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
		actions func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error
		expErr  error
	}{
		"Creating and retrieving a workspace should round-trip every field": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				ws := testWorkspace("test-id", "test")
				err := repo.CreateWorkspace(ctx, ws)
				require.NoError(t, err)

				retrieved, err := repo.GetWorkspace(ctx, "test-id")
				require.NoError(t, err)
				assert.Equal(t, ws, *retrieved)

				return nil
			},
		},

		"Creating a duplicate ID should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id", "test"))
				require.NoError(t, err)

				return repo.CreateWorkspace(ctx, testWorkspace("test-id", "different"))
			},
			expErr: model.ErrAlreadyExists,
		},

		"Creating a duplicate name should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id-1", "test"))
				require.NoError(t, err)

				return repo.CreateWorkspace(ctx, testWorkspace("test-id-2", "test"))
			},
			expErr: model.ErrAlreadyExists,
		},

		"Getting a non-existent workspace should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				_, err := repo.GetWorkspace(ctx, "non-existent")
				return err
			},
			expErr: model.ErrNotFound,
		},

		"Getting a workspace by name should work": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id", "test-name"))
				require.NoError(t, err)

				retrieved, err := repo.GetWorkspaceByName(ctx, "test-name")
				require.NoError(t, err)
				assert.Equal(t, "test-id", retrieved.ID)

				return nil
			},
		},

		"Listing workspaces should return newest first": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				base := time.Unix(time.Now().Unix(), 0).UTC()
				for i, name := range []string{"old", "mid", "new"} {
					ws := testWorkspace(name+"-id", name)
					ws.CreatedAt = base.Add(time.Duration(i) * time.Hour)
					err := repo.CreateWorkspace(ctx, ws)
					require.NoError(t, err)
				}

				workspaces, err := repo.ListWorkspaces(ctx)
				require.NoError(t, err)
				require.Len(t, workspaces, 3)
				assert.Equal(t, "new-id", workspaces[0].ID)
				assert.Equal(t, "old-id", workspaces[2].ID)

				return nil
			},
		},

		"Updating a workspace should persist the change": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				ws := testWorkspace("test-id", "test")
				err := repo.CreateWorkspace(ctx, ws)
				require.NoError(t, err)

				ws.Name = "renamed"
				ws.Repo = "owner/other"
				err = repo.UpdateWorkspace(ctx, ws)
				require.NoError(t, err)

				retrieved, err := repo.GetWorkspace(ctx, "test-id")
				require.NoError(t, err)
				assert.Equal(t, "renamed", retrieved.Name)
				assert.Equal(t, "owner/other", retrieved.Repo)

				return nil
			},
		},

		"Updating a non-existent workspace should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				return repo.UpdateWorkspace(ctx, testWorkspace("non-existent", "test"))
			},
			expErr: model.ErrNotFound,
		},

		"Starring a workspace should persist the flag": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				err := repo.CreateWorkspace(ctx, testWorkspace("test-id", "test"))
				require.NoError(t, err)

				err = repo.SetWorkspaceStarred(ctx, "test-id", true)
				require.NoError(t, err)

				retrieved, err := repo.GetWorkspace(ctx, "test-id")
				require.NoError(t, err)
				assert.True(t, retrieved.Starred)

				err = repo.SetWorkspaceStarred(ctx, "test-id", false)
				require.NoError(t, err)

				retrieved, err = repo.GetWorkspace(ctx, "test-id")
				require.NoError(t, err)
				assert.False(t, retrieved.Starred)

				return nil
			},
		},

		"Starring a non-existent workspace should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				return repo.SetWorkspaceStarred(ctx, "non-existent", true)
			},
			expErr: model.ErrNotFound,
		},

		"Deleting a workspace should work": {
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
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
			actions: func(ctx context.Context, t *testing.T, repo *sqlite.Repository) error {
				return repo.DeleteWorkspace(ctx, "non-existent")
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newTestRepository(t)

			err := test.actions(context.Background(), t, repo)

			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: dbPath})
	require.NoError(t, err)

	ws := testWorkspace("test-id", "test")
	require.NoError(t, repo.CreateWorkspace(ctx, ws))
	require.NoError(t, repo.Close())

	// Reopening runs migrations again and finds the same data.
	repo, err = sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: dbPath})
	require.NoError(t, err)
	defer repo.Close()

	retrieved, err := repo.GetWorkspace(ctx, "test-id")
	require.NoError(t, err)
	assert.Equal(ws, *retrieved)
}
