package docker

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/sandpad/sandpad/internal/conventions"
	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error
	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error)
}

// EngineConfig is the configuration for the Docker engine.
type EngineConfig struct {
	Client DockerClient
	Logger log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "sandbox.Docker"})
	return nil
}

// Engine is the Docker implementation of the sandbox.Engine interface.
type Engine struct {
	client DockerClient
	logger log.Logger

	// workdirs tracks the configured workdir per booted sandbox so file
	// operations can resolve relative paths. Boot and Teardown run on
	// different goroutines, mu guards the map.
	mu       sync.Mutex
	workdirs map[string]string
}

// NewEngine creates a new Docker engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		client:   cfg.Client,
		logger:   cfg.Logger,
		workdirs: map[string]string{},
	}, nil
}

// Boot pulls the image, creates and starts a new Docker container sandbox.
// When a running container for the workspace already exists (e.g. the
// client reloaded while the sandbox survived), it is adopted instead of
// booting a fresh one, so provisioned state is preserved.
func (e *Engine) Boot(ctx context.Context, cfg sandbox.BootConfig) (*model.Session, error) {
	if err := cfg.Runtime.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runtime config: %w", err)
	}

	if existing, err := e.FindWorkspaceSession(ctx, cfg.WorkspaceID); err == nil && existing != nil {
		e.setWorkdir(existing.ID, cfg.Runtime.Workdir)
		e.logger.Infof("Adopted existing Docker sandbox: %s (container: %s)", existing.ID, existing.ContainerID)
		return existing, nil
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	containerName := e.containerName(id)

	// 1: Pull the image.
	e.logger.Infof("[1/3] Pulling image: %s", cfg.Runtime.Image)
	pullResp, err := e.client.ImagePull(ctx, cfg.Runtime.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("could not pull image %s: %w", cfg.Runtime.Image, err)
	}
	// Consume the pull response to ensure it completes.
	_, _ = io.Copy(io.Discard, pullResp)
	pullResp.Close()

	// 2: Create the container.
	e.logger.Infof("[2/3] Creating container: %s", containerName)
	var envVars []string
	for k, v := range cfg.Runtime.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", k, v))
	}

	containerConfig := &container.Config{
		Image:      cfg.Runtime.Image,
		Env:        envVars,
		WorkingDir: cfg.Runtime.Workdir,
		Cmd:        []string{"tail", "-f", "/dev/null"}, // Keep container running.
		Labels: map[string]string{
			conventions.LabelSession:   id,
			conventions.LabelWorkspace: cfg.WorkspaceID,
		},
	}

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			NanoCPUs: int64(cfg.Runtime.Resources.VCPUs * 1e9),
			Memory:   int64(cfg.Runtime.Resources.MemoryMB * 1024 * 1024),
		},
	}

	resp, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return nil, fmt.Errorf("could not create container: %w", err)
	}

	// 3: Start the container.
	e.logger.Infof("[3/3] Starting container: %s", resp.ID)
	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("could not start container: %w", err)
	}

	e.setWorkdir(id, cfg.Runtime.Workdir)

	now := time.Now().UTC()
	session := &model.Session{
		ID:          id,
		WorkspaceID: cfg.WorkspaceID,
		Status:      model.SessionStatusRunning,
		ContainerID: resp.ID,
		CreatedAt:   now,
		StartedAt:   &now,
	}

	e.logger.Infof("Booted Docker sandbox: %s (container: %s)", id, resp.ID)

	return session, nil
}

// Teardown removes the sandbox container.
func (e *Engine) Teardown(ctx context.Context, id string) error {
	containerName := e.containerName(id)

	err := e.client.ContainerRemove(ctx, containerName, container.RemoveOptions{
		Force: true, // Force removal even if running.
	})
	if err != nil {
		// Idempotent: already removed is fine.
		if strings.Contains(err.Error(), "No such container") {
			e.logger.Debugf("Container %s already removed", containerName)
			e.dropWorkdir(id)
			return nil
		}
		return fmt.Errorf("could not remove container %s: %w", containerName, err)
	}

	e.dropWorkdir(id)
	e.logger.Infof("Tore down Docker sandbox: %s", id)
	return nil
}

// FindWorkspaceSession looks for a running container labeled with the
// workspace ID and returns it as a session. Returns nil when there is none.
func (e *Engine) FindWorkspaceSession(ctx context.Context, workspaceID string) (*model.Session, error) {
	containers, err := e.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=%s", conventions.LabelWorkspace, workspaceID))),
	})
	if err != nil {
		return nil, fmt.Errorf("could not list containers: %w", err)
	}
	if len(containers) == 0 {
		return nil, nil
	}

	c := containers[0]
	id := c.Labels[conventions.LabelSession]
	if id == "" {
		return nil, nil
	}

	created := time.Unix(c.Created, 0).UTC()
	return &model.Session{
		ID:          id,
		WorkspaceID: workspaceID,
		Status:      model.SessionStatusRunning,
		ContainerID: c.ID,
		CreatedAt:   created,
		StartedAt:   &created,
	}, nil
}

func (e *Engine) containerName(id string) string {
	return fmt.Sprintf("%s-%s", conventions.ContainerPrefix, strings.ToLower(id))
}

func (e *Engine) workdir(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if wd, ok := e.workdirs[id]; ok {
		return wd
	}
	return conventions.Workdir
}

func (e *Engine) setWorkdir(id, wd string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workdirs[id] = wd
}

func (e *Engine) dropWorkdir(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.workdirs, id)
}
