package termview

import (
	"strings"
	"sync"
)

// Buffer is a thread-safe in-memory View. It backs the websocket terminal
// adapter and the tests; keystrokes and resizes are injected with SendData
// and SendResize.
type Buffer struct {
	mu       sync.Mutex
	content  strings.Builder
	cols     int
	rows     int
	focused  bool
	disposed bool
	nextID   int
	onData   map[int]func(p []byte)
	onResize map[int]func(cols, rows int)
	onWrite  func(p []byte)
}

// NewBuffer creates a new buffer view with the given initial dimensions.
func NewBuffer(cols, rows int) *Buffer {
	return &Buffer{
		cols:     cols,
		rows:     rows,
		onData:   map[int]func(p []byte){},
		onResize: map[int]func(cols, rows int){},
	}
}

// SetWriteHook registers a callback invoked on every write, used by
// transports that forward terminal output (e.g. a websocket connection).
func (b *Buffer) SetWriteHook(fn func(p []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onWrite = fn
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return len(p), nil
	}
	b.content.Write(p)
	hook := b.onWrite
	b.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return len(p), nil
}

func (b *Buffer) WriteString(s string) (int, error) { return b.Write([]byte(s)) }

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.content.Reset()
}

func (b *Buffer) Focus() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focused = true
}

func (b *Buffer) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cols, b.rows
}

func (b *Buffer) OnData(fn func(p []byte)) Disposer {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.onData[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.onData, id)
	}
}

func (b *Buffer) OnResize(fn func(cols, rows int)) Disposer {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.onResize[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.onResize, id)
	}
}

func (b *Buffer) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposed = true
	b.onData = map[int]func(p []byte){}
	b.onResize = map[int]func(cols, rows int){}
	b.onWrite = nil
}

// SendData delivers keystroke bytes to every data listener.
func (b *Buffer) SendData(p []byte) {
	b.mu.Lock()
	fns := make([]func([]byte), 0, len(b.onData))
	for _, fn := range b.onData {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// SendResize updates the buffer dimensions and notifies resize listeners.
func (b *Buffer) SendResize(cols, rows int) {
	b.mu.Lock()
	b.cols, b.rows = cols, rows
	fns := make([]func(int, int), 0, len(b.onResize))
	for _, fn := range b.onResize {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(cols, rows)
	}
}

// String returns everything written to the buffer.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content.String()
}

// Disposed reports whether the view has been disposed.
func (b *Buffer) Disposed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed
}

// Focused reports whether Focus has been called on the view.
func (b *Buffer) Focused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focused
}
