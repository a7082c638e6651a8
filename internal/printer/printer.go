package printer

import "github.com/sandpad/sandpad/internal/model"

// Status groups everything the status command shows for a workspace.
type Status struct {
	Workspace model.Workspace
	Session   *model.Session
	Setup     model.SetupProgress
	Preview   *model.PreviewEndpoint
}

// Printer knows how to print workspace information in different formats.
type Printer interface {
	PrintList(workspaces []model.Workspace) error
	PrintStatus(status Status) error
	PrintMessage(msg string) error
}
