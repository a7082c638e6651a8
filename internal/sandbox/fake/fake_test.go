package fake_test

import (
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox"
	"github.com/sandpad/sandpad/internal/sandbox/fake"
)

func bootConfig() sandbox.BootConfig {
	return sandbox.BootConfig{
		WorkspaceID: "test-workspace",
		Runtime:     model.RuntimeConfig{Image: "node:22-alpine", Workdir: "/app"},
	}
}

func TestEngineLifecycle(t *testing.T) {
	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, eng *fake.Engine) error
		expErr  error
	}{
		"Booting a sandbox should return a running session": {
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) error {
				sess, err := eng.Boot(ctx, bootConfig())
				require.NoError(t, err)
				assert.NotEmpty(t, sess.ID)
				assert.Equal(t, "test-workspace", sess.WorkspaceID)
				assert.Equal(t, model.SessionStatusRunning, sess.Status)
				assert.NotNil(t, sess.StartedAt)

				return nil
			},
		},

		"Mounting a tree should make its files readable": {
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) error {
				sess, err := eng.Boot(ctx, bootConfig())
				require.NoError(t, err)

				tree := model.Tree{Nodes: []model.Node{
					{Name: "src", Dir: true, Children: []model.Node{
						{Name: "index.js", Content: "console.log(42)"},
					}},
				}}
				err = eng.Mount(ctx, sess.ID, tree)
				require.NoError(t, err)
				assert.Equal(t, 1, eng.MountCalls())

				content, err := eng.ReadFile(ctx, sess.ID, "src/index.js")
				require.NoError(t, err)
				assert.Equal(t, "console.log(42)", string(content))

				return nil
			},
		},

		"File operations on an unknown sandbox should fail": {
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) error {
				return eng.WriteFile(ctx, "unknown", "a.txt", []byte("x"))
			},
			expErr: model.ErrNotFound,
		},

		"Reading a missing file should fail": {
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) error {
				sess, err := eng.Boot(ctx, bootConfig())
				require.NoError(t, err)

				_, err = eng.ReadFile(ctx, sess.ID, "missing.txt")
				return err
			},
			expErr: model.ErrNotFound,
		},

		"Removing a missing file should be tolerated": {
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) error {
				sess, err := eng.Boot(ctx, bootConfig())
				require.NoError(t, err)

				return eng.RemoveFile(ctx, sess.ID, "missing.txt")
			},
		},

		"Tearing down a sandbox should drop its files": {
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) error {
				sess, err := eng.Boot(ctx, bootConfig())
				require.NoError(t, err)

				err = eng.Teardown(ctx, sess.ID)
				require.NoError(t, err)
				assert.Equal(t, 1, eng.TeardownCalls())

				// Idempotent.
				err = eng.Teardown(ctx, sess.ID)
				require.NoError(t, err)
				assert.Equal(t, 1, eng.TeardownCalls())

				_, err = eng.ReadFile(ctx, sess.ID, "anything")
				return err
			},
			expErr: model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			eng, err := fake.NewEngine(fake.EngineConfig{})
			require.NoError(t, err)

			err = test.actions(context.Background(), t, eng)

			if test.expErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, test.expErr)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestEngineScriptedProcesses(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, err := fake.NewEngine(fake.EngineConfig{})
	require.NoError(t, err)
	eng.ExitCodes = map[string]int{"npm install": 2}

	sess, err := eng.Boot(ctx, bootConfig())
	require.NoError(t, err)

	// A scripted command exits immediately with its code.
	proc, err := eng.Spawn(ctx, sess.ID, []string{"npm", "install", "--no-audit"}, sandbox.SpawnOpts{})
	require.NoError(t, err)

	code, err := proc.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(2, code)

	// An unmatched command keeps running until killed.
	proc2, err := eng.Spawn(ctx, sess.ID, []string{"sleep", "infinity"}, sandbox.SpawnOpts{})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = proc2.Wait(waitCtx)
	assert.ErrorIs(err, context.DeadlineExceeded)

	require.NoError(t, proc2.Kill())
	code, err = proc2.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(-1, code)
}

func TestEngineTeardownScopedToSandbox(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, err := fake.NewEngine(fake.EngineConfig{})
	require.NoError(t, err)

	s1, err := eng.Boot(ctx, bootConfig())
	require.NoError(t, err)
	s2, err := eng.Boot(ctx, bootConfig())
	require.NoError(t, err)

	_, err = eng.Spawn(ctx, s1.ID, []string{"npm", "run", "dev"}, sandbox.SpawnOpts{})
	require.NoError(t, err)
	_, err = eng.Spawn(ctx, s2.ID, []string{"npm", "run", "dev"}, sandbox.SpawnOpts{})
	require.NoError(t, err)

	// Tearing down the first sandbox kills its process only, the successor
	// session's process keeps running.
	require.NoError(t, eng.Teardown(ctx, s1.ID))

	spawns := eng.Spawns()
	require.Len(t, spawns, 2)
	assert.True(spawns[0].Process.Killed())
	assert.False(spawns[1].Process.Killed())
}

func TestEngineProcessIO(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, err := fake.NewEngine(fake.EngineConfig{})
	require.NoError(t, err)

	sess, err := eng.Boot(ctx, bootConfig())
	require.NoError(t, err)

	proc, err := eng.Spawn(ctx, sess.ID, []string{"/bin/sh"}, sandbox.SpawnOpts{Tty: true, Cols: 80, Rows: 24})
	require.NoError(t, err)

	calls := eng.Spawns()
	require.Len(t, calls, 1)
	assert.True(calls[0].Opts.Tty)

	_, err = proc.Write([]byte("ls\r"))
	require.NoError(t, err)
	assert.Equal("ls\r", calls[0].Process.Input())

	reader := bufio.NewReader(proc.Output())
	go calls[0].Process.Emit("file.txt\n")
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal("file.txt\n", line)

	require.NoError(t, proc.Resize(100, 40))
	assert.Equal([][2]int{{100, 40}}, calls[0].Process.Resizes())

	calls[0].Process.Exit(0)
	_, err = proc.Write([]byte("x"))
	assert.Error(err)
	assert.False(calls[0].Process.Killed())
}

func TestEngineNetworkReady(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, err := fake.NewEngine(fake.EngineConfig{})
	require.NoError(t, err)

	sess, err := eng.Boot(ctx, bootConfig())
	require.NoError(t, err)

	ch, err := eng.NotifyNetworkReady(ctx, sess.ID, []int{3000})
	require.NoError(t, err)

	endpoint := model.PreviewEndpoint{Port: 3000}
	eng.FireNetworkReady(sess.ID, endpoint)

	got, ok := <-ch
	assert.True(ok)
	assert.Equal(endpoint, got)

	// The channel closes after the signal fires.
	_, ok = <-ch
	assert.False(ok)
}
