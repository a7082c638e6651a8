package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sandpad/sandpad/internal/model"
)

// TablePrinter prints workspace information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintList prints workspaces in a table format.
func (t *TablePrinter) PrintList(workspaces []model.Workspace) error {
	if len(workspaces) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "NAME\tREPO\tSTARRED\tCREATED")

	// Print rows
	for _, w := range workspaces {
		starred := ""
		if w.Starred {
			starred = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.Name, w.Repo, starred, TimeAgo(w.CreatedAt))
	}

	return nil
}

// PrintStatus prints detailed workspace status.
func (t *TablePrinter) PrintStatus(status Status) error {
	w := status.Workspace
	fmt.Fprintf(t.writer, "Name:       %s\n", w.Name)
	fmt.Fprintf(t.writer, "ID:         %s\n", w.ID)
	if w.Repo != "" {
		fmt.Fprintf(t.writer, "Repo:       %s\n", w.Repo)
	}
	fmt.Fprintf(t.writer, "Starred:    %t\n", w.Starred)
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(w.CreatedAt))

	if status.Session == nil {
		fmt.Fprintf(t.writer, "Session:    none\n")
		return nil
	}

	s := status.Session
	fmt.Fprintf(t.writer, "Session:    %s\n", s.ID)
	fmt.Fprintf(t.writer, "Status:     %s\n", s.Status)
	if s.ContainerID != "" {
		fmt.Fprintf(t.writer, "Container:  %s\n", s.ContainerID)
	}
	if s.StartedAt != nil {
		fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(*s.StartedAt))
	}
	if s.StoppedAt != nil {
		fmt.Fprintf(t.writer, "Stopped:    %s\n", FormatTimestamp(*s.StoppedAt))
	}
	if s.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", s.Error)
	}

	if status.Setup.Status != "" {
		fmt.Fprintf(t.writer, "Setup:      %s\n", status.Setup.Status)
	}
	if status.Setup.Reason != "" {
		fmt.Fprintf(t.writer, "Reason:     %s\n", status.Setup.Reason)
	}

	if status.Preview != nil {
		fmt.Fprintf(t.writer, "Preview:    %s\n", status.Preview.URL())
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
