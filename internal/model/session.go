package model

import (
	"time"
)

// SessionStatus represents the status of a runtime session.
type SessionStatus string

const (
	// SessionStatusPending indicates the session sandbox is being booted.
	SessionStatusPending SessionStatus = "pending"
	// SessionStatusRunning indicates the session sandbox is running.
	SessionStatusRunning SessionStatus = "running"
	// SessionStatusStopped indicates the session sandbox has been torn down.
	SessionStatusStopped SessionStatus = "stopped"
	// SessionStatusFailed indicates the session sandbox failed to boot or run.
	SessionStatusFailed SessionStatus = "failed"
)

// Session represents one booted sandbox runtime bound to a workspace.
type Session struct {
	ID          string
	WorkspaceID string
	Status      SessionStatus
	ContainerID string
	CreatedAt   time.Time
	StartedAt   *time.Time
	StoppedAt   *time.Time
	Error       string
}
