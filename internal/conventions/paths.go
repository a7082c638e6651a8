package conventions

const (
	// DefaultDataDir is the default sandpad data directory name (relative to home).
	DefaultDataDir = ".sandpad"
	// DefaultDBFile is the SQLite database filename inside the data dir.
	DefaultDBFile = "sandpad.db"

	// Sandbox-level conventions.

	// Workdir is the directory inside the sandbox where projects mount.
	Workdir = "/app"
	// ManifestFile is the package manifest filename. Its presence at the
	// workdir root marks an already provisioned sandbox.
	ManifestFile = "package.json"
	// LockFile is the dependency lock filename removed before install to
	// avoid platform-specific lock mismatches.
	LockFile = "package-lock.json"
	// DevScript is the conventional manifest script for dev servers.
	DevScript = "dev"
	// StartScript is the fallback manifest script when no dev script exists.
	StartScript = "start"
	// Shell is the interactive shell spawned by the terminal bridge.
	Shell = "/bin/sh"

	// DefaultImage is the default sandbox container image.
	DefaultImage = "node:22-alpine"
	// ContainerPrefix is the prefix of sandbox container names.
	ContainerPrefix = "sandpad"
	// LabelSession is the container label carrying the session ID.
	LabelSession = "sandpad.session"
	// LabelWorkspace is the container label carrying the workspace ID, used
	// to adopt surviving sandboxes after a client reload.
	LabelWorkspace = "sandpad.workspace"
)

// DefaultPreviewPorts are the candidate ports probed for the network-ready
// signal, in priority order. They cover the common dev server defaults.
var DefaultPreviewPorts = []int{3000, 5173, 8080, 4321}
