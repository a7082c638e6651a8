package workspace_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandpad/sandpad/internal/app/workspace"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/storage/memory"
)

func newTestService(t *testing.T) (*workspace.Service, *memory.Repository) {
	t.Helper()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	svc, err := workspace.NewService(workspace.ServiceConfig{Repository: repo})
	require.NoError(t, err)

	return svc, repo
}

func TestServiceCreate(t *testing.T) {
	tests := map[string]struct {
		setup  func(ctx context.Context, t *testing.T, svc *workspace.Service)
		opts   workspace.CreateOptions
		expErr error
	}{
		"Creating a workspace should assign an ID and timestamps": {
			opts: workspace.CreateOptions{Name: "test", Repo: "owner/repo"},
		},

		"Creating without a name should fail": {
			opts:   workspace.CreateOptions{Repo: "owner/repo"},
			expErr: model.ErrNotValid,
		},

		"Creating a duplicate name should fail": {
			setup: func(ctx context.Context, t *testing.T, svc *workspace.Service) {
				_, err := svc.Create(ctx, workspace.CreateOptions{Name: "test"})
				require.NoError(t, err)
			},
			opts:   workspace.CreateOptions{Name: "test"},
			expErr: model.ErrAlreadyExists,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, _ := newTestService(t)

			if test.setup != nil {
				test.setup(ctx, t, svc)
			}

			ws, err := svc.Create(ctx, test.opts)

			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, ws.ID)
			assert.Equal(t, test.opts.Name, ws.Name)
			assert.Equal(t, test.opts.Repo, ws.Repo)
			assert.False(t, ws.CreatedAt.IsZero())
			assert.Equal(t, ws.CreatedAt, ws.UpdatedAt)
		})
	}
}

func TestServiceGet(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.Create(ctx, workspace.CreateOptions{Name: "test"})
	require.NoError(t, err)

	// By name.
	got, err := svc.Get(ctx, "test")
	require.NoError(t, err)
	assert.Equal(created.ID, got.ID)

	// By ID.
	got, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(created.ID, got.ID)

	// Unknown.
	_, err = svc.Get(ctx, "unknown")
	require.Error(t, err)
	assert.ErrorIs(err, model.ErrNotFound)
}

func TestServiceListStarredFirst(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc, repo := newTestService(t)

	// Give each workspace a distinct creation time so the repository order
	// (newest first) is deterministic.
	now := time.Now().UTC()
	for i, name := range []string{"first", "second", "third"} {
		err := repo.CreateWorkspace(ctx, model.Workspace{
			ID:        name + "-id",
			Name:      name,
			CreatedAt: now.Add(time.Duration(i) * time.Hour),
			UpdatedAt: now,
		})
		require.NoError(t, err)
	}

	_, err := svc.SetStarred(ctx, "first", true)
	require.NoError(t, err)

	workspaces, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, workspaces, 3)

	assert.Equal("first", workspaces[0].Name)
	assert.True(workspaces[0].Starred)
	assert.Equal("third", workspaces[1].Name)
	assert.Equal("second", workspaces[2].Name)
}

func TestServiceSetStarred(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, workspace.CreateOptions{Name: "test"})
	require.NoError(t, err)

	ws, err := svc.SetStarred(ctx, "test", true)
	require.NoError(t, err)
	assert.True(ws.Starred)

	ws, err = svc.SetStarred(ctx, "test", false)
	require.NoError(t, err)
	assert.False(ws.Starred)

	_, err = svc.SetStarred(ctx, "unknown", true)
	require.Error(t, err)
	assert.ErrorIs(err, model.ErrNotFound)
}

func TestServiceDelete(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, workspace.CreateOptions{Name: "test"})
	require.NoError(t, err)

	err = svc.Delete(ctx, "test")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "test")
	require.Error(t, err)
	assert.ErrorIs(err, model.ErrNotFound)

	err = svc.Delete(ctx, "test")
	require.Error(t, err)
	assert.ErrorIs(err, model.ErrNotFound)
}
