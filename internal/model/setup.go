package model

// SetupStatus represents the stage of a session setup run.
type SetupStatus string

const (
	// SetupStatusUninitialized indicates setup has not started yet.
	SetupStatusUninitialized SetupStatus = "uninitialized"
	// SetupStatusDetecting indicates the sandbox is being probed for an
	// already provisioned project.
	SetupStatusDetecting SetupStatus = "detecting"
	// SetupStatusReconnecting indicates an already provisioned sandbox is
	// being reattached without re-mounting or reinstalling.
	SetupStatusReconnecting SetupStatus = "reconnecting"
	// SetupStatusMounting indicates the project tree is being mounted.
	SetupStatusMounting SetupStatus = "mounting"
	// SetupStatusInstalling indicates dependencies are being installed.
	SetupStatusInstalling SetupStatus = "installing"
	// SetupStatusStarting indicates the run process is being started.
	SetupStatusStarting SetupStatus = "starting"
	// SetupStatusRunning indicates setup completed and the process runs.
	SetupStatusRunning SetupStatus = "running"
	// SetupStatusFailed indicates setup stopped with an error.
	SetupStatusFailed SetupStatus = "failed"
)

// SetupProgress is the externally observable state of a setup run. It is
// mutated only by the setup orchestrator.
type SetupProgress struct {
	Status SetupStatus
	// Reason carries the failure cause when Status is failed.
	Reason string
}

// Failed reports whether the setup run ended in a failure state.
func (p SetupProgress) Failed() bool { return p.Status == SetupStatusFailed }

// Terminal reports whether the setup run reached a final state.
func (p SetupProgress) Terminal() bool {
	return p.Status == SetupStatusRunning || p.Status == SetupStatusFailed
}
