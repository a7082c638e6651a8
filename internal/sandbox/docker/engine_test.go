package docker_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox"
	"github.com/sandpad/sandpad/internal/sandbox/docker"
	"github.com/sandpad/sandpad/internal/session"
)

// clientMock fakes the daemon state the engine touches: containers keyed by
// name with their labels.
type clientMock struct {
	mu      sync.Mutex
	creates int
	byName  map[string]container.Summary
	removed []string
}

func newClientMock() *clientMock {
	return &clientMock{byName: map[string]container.Summary{}}
}

func (c *clientMock) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (c *clientMock) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.creates++
	id := fmt.Sprintf("ctr-%d", c.creates)
	c.byName[containerName] = container.Summary{
		ID:      id,
		Names:   []string{"/" + containerName},
		Labels:  config.Labels,
		Created: time.Now().Unix(),
	}

	return container.CreateResponse{ID: id}, nil
}

func (c *clientMock) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return nil
}

func (c *clientMock) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res []container.Summary
	for _, ctr := range c.byName {
		match := true
		for _, f := range options.Filters.Get("label") {
			k, v, _ := strings.Cut(f, "=")
			if ctr.Labels[k] != v {
				match = false
				break
			}
		}
		if match {
			res = append(res, ctr)
		}
	}

	return res, nil
}

func (c *clientMock) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byName[containerID]; !ok {
		return fmt.Errorf("Error response from daemon: No such container: %s", containerID)
	}

	delete(c.byName, containerID)
	c.removed = append(c.removed, containerID)

	return nil
}

func (c *clientMock) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	return container.InspectResponse{}, nil
}

func (c *clientMock) CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error {
	return nil
}

func (c *clientMock) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error) {
	return nil, container.PathStat{}, fmt.Errorf("Could not find the file %s in container %s", srcPath, containerID)
}

func (c *clientMock) Creates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates
}

func (c *clientMock) Removed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.removed...)
}

func testRuntime() model.RuntimeConfig {
	return model.RuntimeConfig{Image: "node:22-alpine", Workdir: "/app"}
}

func newTestEngine(t *testing.T, client *clientMock) *docker.Engine {
	t.Helper()

	eng, err := docker.NewEngine(docker.EngineConfig{Client: client})
	require.NoError(t, err)

	return eng
}

func TestEngineBootAdoptsSurvivingContainer(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	client := newClientMock()
	eng := newTestEngine(t, client)

	cfg := sandbox.BootConfig{WorkspaceID: "test-workspace", Runtime: testRuntime()}

	s1, err := eng.Boot(ctx, cfg)
	require.NoError(t, err)

	// A second boot for the same workspace (e.g. the client reloaded while
	// the container survived) adopts instead of creating a fresh container.
	s2, err := eng.Boot(ctx, cfg)
	require.NoError(t, err)

	assert.Equal(s1.ID, s2.ID)
	assert.Equal(1, client.Creates())
}

func TestEngineTeardownIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	client := newClientMock()
	eng := newTestEngine(t, client)

	s, err := eng.Boot(ctx, sandbox.BootConfig{WorkspaceID: "test-workspace", Runtime: testRuntime()})
	require.NoError(t, err)

	require.NoError(t, eng.Teardown(ctx, s.ID))
	require.NoError(t, eng.Teardown(ctx, s.ID))
	assert.Len(client.Removed(), 1)
}

func TestEngineReleaseThenAcquireInsideGraceWindow(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	client := newClientMock()
	eng := newTestEngine(t, client)

	m, err := session.NewManager(session.ManagerConfig{
		Engine:      eng,
		WorkspaceID: "test-workspace",
		Runtime:     testRuntime(),
		GraceDelay:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	s1, err := m.Acquire(ctx)
	require.NoError(t, err)

	m.Release()

	// Acquiring before the grace delay expires must not adopt the released
	// container: the pending teardown completes first and a fresh container
	// boots.
	s2, err := m.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(s1.ID(), s2.ID())
	assert.Len(client.Removed(), 1)
	assert.Equal(2, client.Creates())

	// The new container survives the original grace deadline.
	time.Sleep(120 * time.Millisecond)
	assert.Len(client.Removed(), 1)
	assert.False(s2.TornDown())
}

func TestEngineConcurrentFileOpsDuringTeardown(t *testing.T) {
	ctx := context.Background()

	client := newClientMock()
	eng := newTestEngine(t, client)

	s, err := eng.Boot(ctx, sandbox.BootConfig{WorkspaceID: "test-workspace", Runtime: testRuntime()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = eng.ReadFile(ctx, s.ID, "package.json")
		}
	}()

	require.NoError(t, eng.Teardown(ctx, s.ID))
	wg.Wait()
}
