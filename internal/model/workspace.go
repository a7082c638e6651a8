package model

import (
	"fmt"
	"time"
)

// Workspace represents one editor project workspace. A workspace owns at most
// one runtime session at a time.
type Workspace struct {
	ID        string
	Name      string
	Repo      string // Optional "owner/name" source repository.
	Starred   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the workspace.
func (w *Workspace) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if w.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}
	return nil
}
