// Package setup drives the staged provisioning protocol of a runtime
// session: detect existing state, mount the project tree, install
// dependencies and start the run process, streaming narrative output into
// the terminal view along the way.
package setup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sandpad/sandpad/internal/conventions"
	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox"
	"github.com/sandpad/sandpad/internal/session"
	"github.com/sandpad/sandpad/internal/termview"
)

// installCommand relaxes optional/peer dependency strictness so installs of
// arbitrary user projects don't fail on metadata noise.
var installCommand = []string{"npm", "install", "--legacy-peer-deps", "--no-audit", "--no-fund"}

// OrchestratorConfig is the configuration for the setup orchestrator.
type OrchestratorConfig struct {
	View termview.View
	// PreviewPorts are the candidate ports for the network-ready signal.
	PreviewPorts []int
	// OnProgress receives every setup progress change (optional).
	OnProgress func(p model.SetupProgress)
	// OnPreview receives the preview endpoint once the network-ready
	// signal fires, and nil when it is cleared (optional).
	OnPreview func(p *model.PreviewEndpoint)
	Logger    log.Logger
}

func (c *OrchestratorConfig) defaults() error {
	if c.View == nil {
		return fmt.Errorf("terminal view is required")
	}
	if len(c.PreviewPorts) == 0 {
		c.PreviewPorts = conventions.DefaultPreviewPorts
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "setup.Orchestrator"})
	return nil
}

// Orchestrator runs the staged setup protocol on a booted session. At most
// one run is in progress per orchestrator; re-entrant runs are no-ops.
type Orchestrator struct {
	view         termview.View
	previewPorts []int
	onProgress   func(p model.SetupProgress)
	onPreview    func(p *model.PreviewEndpoint)
	logger       log.Logger

	// inProgress guards against re-entrant runs triggered by repeated
	// effect firing from the host UI. Distinct from the progress value.
	inProgress atomic.Bool

	mu        sync.Mutex
	progress  model.SetupProgress
	preview   *model.PreviewEndpoint
	netCancel context.CancelFunc
}

// NewOrchestrator creates a new setup orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Orchestrator{
		view:         cfg.View,
		previewPorts: cfg.PreviewPorts,
		onProgress:   cfg.OnProgress,
		onPreview:    cfg.OnPreview,
		logger:       cfg.Logger,
		progress:     model.SetupProgress{Status: model.SetupStatusUninitialized},
	}, nil
}

// Options are the options for a setup run.
type Options struct {
	// ForceReset skips detection, clears any published preview endpoint
	// and re-provisions the sandbox from scratch.
	ForceReset bool
}

// Run executes the setup protocol on the session. Calling Run while another
// run is in progress for this orchestrator is a no-op. A torn-down session
// detected between stages abandons the run silently; stage errors mark the
// progress failed and are written to the terminal view, never propagated as
// panics or unhandled failures.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session, tree model.Tree, opts Options) error {
	if !o.inProgress.CompareAndSwap(false, true) {
		o.logger.Debugf("Setup already in progress, ignoring re-entrant run")
		return nil
	}
	defer o.inProgress.Store(false)

	if opts.ForceReset {
		o.setPreview(nil)
		o.setProgress(model.SetupProgress{Status: model.SetupStatusUninitialized})
	}

	// Detection: an already populated manifest means the user is resuming
	// a provisioned sandbox (e.g. a page reload while the sandbox itself
	// persisted), re-provisioning it would be destructive.
	o.setProgress(model.SetupProgress{Status: model.SetupStatusDetecting})
	if !opts.ForceReset {
		if done, err := o.reconnect(ctx, sess); done || err != nil {
			return err
		}
	}

	if sess.TornDown() {
		o.logger.Debugf("Session torn down before mount, abandoning setup")
		return nil
	}

	if err := o.mount(ctx, sess, tree); err != nil {
		return err
	}

	if sess.TornDown() {
		o.logger.Debugf("Session torn down before install, abandoning setup")
		return nil
	}

	soft, err := o.install(ctx, sess)
	if err != nil || soft {
		return err
	}

	if sess.TornDown() {
		o.logger.Debugf("Session torn down before start, abandoning setup")
		return nil
	}

	if err := o.start(ctx, sess); err != nil {
		return err
	}

	o.setProgress(model.SetupProgress{Status: model.SetupStatusRunning})
	return nil
}

// Progress returns the current setup progress.
func (o *Orchestrator) Progress() model.SetupProgress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Preview returns the published preview endpoint, or nil when none has been
// signalled yet.
func (o *Orchestrator) Preview() *model.PreviewEndpoint {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.preview
}

// reconnect probes the sandbox for the provisioning marker and, when found,
// re-arms the network-ready listener without re-mounting or reinstalling.
// Returns done=true when the run is finished (reconnected or abandoned).
func (o *Orchestrator) reconnect(ctx context.Context, sess *session.Session) (done bool, err error) {
	_, err = sess.ReadFile(ctx, conventions.ManifestFile)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrTornDown):
		o.logger.Debugf("Session torn down during detection, abandoning setup")
		return true, nil
	default:
		// Fresh sandbox, continue with the full provisioning path.
		return false, nil
	}

	o.setProgress(model.SetupProgress{Status: model.SetupStatusReconnecting})
	o.logger.Infof("Existing project detected in sandbox %s, reconnecting", sess.ID())

	if err := o.armNetworkReady(sess); err != nil {
		o.logger.Warningf("Could not arm network-ready listener on reconnect: %s", err)
	}

	_, _ = o.view.WriteString("Reconnected to existing session\r\n")
	o.setProgress(model.SetupProgress{Status: model.SetupStatusRunning})

	return true, nil
}

func (o *Orchestrator) mount(ctx context.Context, sess *session.Session, tree model.Tree) error {
	o.setProgress(model.SetupProgress{Status: model.SetupStatusMounting})

	if err := sess.Mount(ctx, tree); err != nil {
		return o.fail(fmt.Errorf("could not mount project: %w", err))
	}

	_, _ = o.view.WriteString(fmt.Sprintf("Mounted %d project files\r\n", tree.FileCount()))
	return nil
}

// install runs the dependency installation process streaming its output to
// the terminal view. A non-zero exit code is a soft failure: progress is
// marked failed but no error is returned and the terminal stays usable for
// manual recovery.
func (o *Orchestrator) install(ctx context.Context, sess *session.Session) (soft bool, err error) {
	o.setProgress(model.SetupProgress{Status: model.SetupStatusInstalling})

	// Drop any pre-existing lock file to avoid platform-specific lock
	// mismatches. Absence is fine.
	if err := sess.RemoveFile(ctx, conventions.LockFile); err != nil && !errors.Is(err, model.ErrNotFound) {
		o.logger.Warningf("Could not remove lock file: %s", err)
	}

	proc, err := sess.Spawn(ctx, installCommand, sandbox.SpawnOpts{})
	if err != nil {
		if errors.Is(err, model.ErrTornDown) {
			o.logger.Debugf("Session torn down during install, abandoning setup")
			return true, nil
		}
		return false, o.fail(fmt.Errorf("could not spawn install process: %w", err))
	}

	_, _ = io.Copy(o.view, proc.Output())

	code, err := proc.Wait(ctx)
	if err != nil {
		o.logger.Debugf("Install wait interrupted: %s", err)
		return true, nil
	}

	if sess.TornDown() {
		o.logger.Debugf("Session torn down during install, abandoning setup")
		return true, nil
	}

	if code != 0 {
		_, _ = o.view.WriteString(fmt.Sprintf("Dependency install exited with code %d\r\n", code))
		o.setProgress(model.SetupProgress{
			Status: model.SetupStatusFailed,
			Reason: fmt.Sprintf("install exited with code %d", code),
		})
		return true, nil
	}

	return false, nil
}

func (o *Orchestrator) start(ctx context.Context, sess *session.Session) error {
	o.setProgress(model.SetupProgress{Status: model.SetupStatusStarting})

	script := o.runScript(ctx, sess)

	proc, err := sess.Spawn(ctx, []string{"npm", "run", script}, sandbox.SpawnOpts{})
	if err != nil {
		if errors.Is(err, model.ErrTornDown) {
			o.logger.Debugf("Session torn down during start, abandoning setup")
			return nil
		}
		return o.fail(fmt.Errorf("could not spawn run process: %w", err))
	}

	if err := o.armNetworkReady(sess); err != nil {
		o.logger.Warningf("Could not arm network-ready listener: %s", err)
	}

	// The run process lives as long as the session, stream its output in
	// the background.
	go func() {
		_, _ = io.Copy(o.view, proc.Output())
	}()

	return nil
}

// runScript resolves which manifest script starts the project: "dev" when
// defined, "start" otherwise. An unreadable or unparseable manifest
// downgrades to the fallback with a warning, not a failure.
func (o *Orchestrator) runScript(ctx context.Context, sess *session.Session) string {
	content, err := sess.ReadFile(ctx, conventions.ManifestFile)
	if err != nil {
		o.logger.Warningf("Could not read manifest, falling back to %q script: %s", conventions.StartScript, err)
		return conventions.StartScript
	}

	var manifest struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(content, &manifest); err != nil {
		o.logger.Warningf("Could not parse manifest, falling back to %q script: %s", conventions.StartScript, err)
		return conventions.StartScript
	}

	if _, ok := manifest.Scripts[conventions.DevScript]; ok {
		return conventions.DevScript
	}
	return conventions.StartScript
}

// armNetworkReady subscribes to the sandbox network-ready signal, replacing
// any previous subscription, and publishes the preview endpoint when it
// fires.
func (o *Orchestrator) armNetworkReady(sess *session.Session) error {
	ctx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	if o.netCancel != nil {
		o.netCancel()
	}
	o.netCancel = cancel
	o.mu.Unlock()

	ch, err := sess.NotifyNetworkReady(ctx, o.previewPorts)
	if err != nil {
		cancel()
		return err
	}

	go func() {
		endpoint, ok := <-ch
		if !ok {
			return
		}
		o.logger.Infof("Preview ready at %s", endpoint.URL())
		o.setPreview(&endpoint)
		_, _ = o.view.WriteString(fmt.Sprintf("Server ready at %s\r\n", endpoint.URL()))
	}()

	return nil
}

// fail marks the run failed, surfaces the reason on the terminal view and
// returns the error for the caller.
func (o *Orchestrator) fail(err error) error {
	o.logger.Errorf("Setup failed: %s", err)
	o.setProgress(model.SetupProgress{Status: model.SetupStatusFailed, Reason: err.Error()})
	_, _ = o.view.WriteString(fmt.Sprintf("Error: %s\r\n", err))
	return err
}

func (o *Orchestrator) setProgress(p model.SetupProgress) {
	o.mu.Lock()
	o.progress = p
	o.mu.Unlock()

	if o.onProgress != nil {
		o.onProgress(p)
	}
}

func (o *Orchestrator) setPreview(p *model.PreviewEndpoint) {
	o.mu.Lock()
	o.preview = p
	if p == nil && o.netCancel != nil {
		o.netCancel()
		o.netCancel = nil
	}
	o.mu.Unlock()

	if o.onPreview != nil {
		o.onPreview(p)
	}
}
