package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sandpad/sandpad/internal/model"
)

// JSONPrinter prints workspace information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// listItem represents a workspace in the list output (subset of fields).
type listItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Repo      string    `json:"repo,omitempty"`
	Starred   bool      `json:"starred"`
	CreatedAt time.Time `json:"created_at"`
}

// statusOutput represents the full workspace status output.
type statusOutput struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Repo      string         `json:"repo,omitempty"`
	Starred   bool           `json:"starred"`
	CreatedAt time.Time      `json:"created_at"`
	Session   *sessionOutput `json:"session"`
	Setup     *setupOutput   `json:"setup,omitempty"`
	Preview   string         `json:"preview,omitempty"`
}

// sessionOutput represents the runtime session output.
type sessionOutput struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	ContainerID string     `json:"container_id,omitempty"`
	StartedAt   *time.Time `json:"started_at"`
	StoppedAt   *time.Time `json:"stopped_at"`
	Error       string     `json:"error,omitempty"`
}

// setupOutput represents the setup progress output.
type setupOutput struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintList prints workspaces in JSON format with a subset of fields.
func (j *JSONPrinter) PrintList(workspaces []model.Workspace) error {
	items := make([]listItem, len(workspaces))
	for i, w := range workspaces {
		items[i] = listItem{
			ID:        w.ID,
			Name:      w.Name,
			Repo:      w.Repo,
			Starred:   w.Starred,
			CreatedAt: w.CreatedAt.UTC(),
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintStatus prints detailed workspace status in JSON format.
func (j *JSONPrinter) PrintStatus(status Status) error {
	w := status.Workspace
	output := statusOutput{
		ID:        w.ID,
		Name:      w.Name,
		Repo:      w.Repo,
		Starred:   w.Starred,
		CreatedAt: w.CreatedAt.UTC(),
	}

	if s := status.Session; s != nil {
		so := &sessionOutput{
			ID:          s.ID,
			Status:      string(s.Status),
			ContainerID: s.ContainerID,
			Error:       s.Error,
		}
		if s.StartedAt != nil {
			utcTime := s.StartedAt.UTC()
			so.StartedAt = &utcTime
		}
		if s.StoppedAt != nil {
			utcTime := s.StoppedAt.UTC()
			so.StoppedAt = &utcTime
		}
		output.Session = so

		if status.Setup.Status != "" {
			output.Setup = &setupOutput{
				Status: string(status.Setup.Status),
				Reason: status.Setup.Reason,
			}
		}
		if status.Preview != nil {
			output.Preview = status.Preview.URL()
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	output := messageOutput{Message: msg}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}
