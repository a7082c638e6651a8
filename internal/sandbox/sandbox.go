package sandbox

import (
	"context"
	"io"

	"github.com/sandpad/sandpad/internal/model"
)

// BootConfig is the configuration for booting a sandbox.
type BootConfig struct {
	WorkspaceID string
	Runtime     model.RuntimeConfig
}

// SpawnOpts contains options for spawning a process in a sandbox.
type SpawnOpts struct {
	// Workdir is the directory to run the process in (optional, defaults
	// to the sandbox workdir).
	Workdir string
	// Env contains additional environment variables for this process.
	Env map[string]string
	// Tty allocates a pseudo-TTY for the process. Interactive shells need
	// it, install/run processes don't.
	Tty bool
	// Cols and Rows are the initial terminal dimensions. Only meaningful
	// with Tty set.
	Cols int
	Rows int
}

// Process is a handle to one spawned process inside a sandbox.
//
// Implementations vary by sandbox provider, the capability set is fixed:
// write input, read the combined output stream, resize the terminal, kill,
// and wait for exit.
type Process interface {
	// Write sends bytes to the process standard input.
	Write(p []byte) (int, error)
	// Output returns the combined output stream of the process. The reader
	// preserves the producer's emission order and returns io.EOF once the
	// process exits.
	Output() io.Reader
	// Resize changes the terminal dimensions of the process. Fails on
	// processes spawned without a TTY.
	Resize(cols, rows int) error
	// Kill terminates the process. Killing an already exited process is
	// not an error.
	Kill() error
	// Wait blocks until the process exits and returns its exit code.
	Wait(ctx context.Context) (int, error)
}

// Engine is the sandbox provider boundary: an isolated, ephemeral execution
// environment with a virtual filesystem, process spawning and a network-ready
// signal.
type Engine interface {
	// Boot starts a fresh sandbox and returns its session handle.
	Boot(ctx context.Context, cfg BootConfig) (*model.Session, error)

	// Mount converts the project tree into the sandbox native mount format
	// and mounts it at the sandbox workdir, preserving folder nesting.
	Mount(ctx context.Context, id string, tree model.Tree) error

	// WriteFile writes a file inside the sandbox, creating intermediate
	// directories as needed. The path is relative to the sandbox workdir.
	WriteFile(ctx context.Context, id string, path string, content []byte) error

	// ReadFile reads a file from the sandbox. Returns an error wrapping
	// model.ErrNotFound when the file does not exist.
	ReadFile(ctx context.Context, id string, path string) ([]byte, error)

	// RemoveFile removes a file from the sandbox. Removing a missing file
	// is not an error.
	RemoveFile(ctx context.Context, id string, path string) error

	// Spawn starts a process inside the sandbox.
	Spawn(ctx context.Context, id string, command []string, opts SpawnOpts) (Process, error)

	// NotifyNetworkReady returns a channel that receives the preview
	// endpoint once a process inside the sandbox starts accepting inbound
	// connections on one of the candidate ports. The channel is closed
	// after the first notification or when ctx is cancelled.
	NotifyNetworkReady(ctx context.Context, id string, ports []int) (<-chan model.PreviewEndpoint, error)

	// Teardown destroys the sandbox. Tearing down an already destroyed
	// sandbox is not an error.
	Teardown(ctx context.Context, id string) error
}
