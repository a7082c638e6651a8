// Package termview defines the pseudo-terminal surface the orchestrator and
// the shell bridge write into. The actual rendering is owned by the UI layer,
// implementations here only carry text and events.
package termview

// Disposer releases a previously registered listener.
type Disposer func()

// View is a pseudo-terminal surface: a text sink plus keystroke and resize
// event sources. All registration methods return a disposer that must be
// invoked during teardown.
type View interface {
	// Write appends raw bytes to the terminal surface.
	Write(p []byte) (int, error)
	// WriteString appends a string to the terminal surface.
	WriteString(s string) (int, error)
	// Clear wipes the terminal surface.
	Clear()
	// Focus moves input focus to the terminal surface.
	Focus()
	// Size returns the current terminal dimensions. Both values are zero
	// when the surface has not had a layout pass yet.
	Size() (cols, rows int)
	// OnData registers a listener for keystroke bytes.
	OnData(fn func(p []byte)) Disposer
	// OnResize registers a listener for dimension changes.
	OnResize(fn func(cols, rows int)) Disposer
	// Dispose releases the surface. Writes after Dispose are dropped.
	Dispose()
}
