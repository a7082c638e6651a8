package termview_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sandpad/sandpad/internal/termview"
)

func TestBufferWrite(t *testing.T) {
	assert := assert.New(t)

	b := termview.NewBuffer(80, 24)

	n, err := b.Write([]byte("hello "))
	assert.NoError(err)
	assert.Equal(6, n)

	_, err = b.WriteString("world")
	assert.NoError(err)

	assert.Equal("hello world", b.String())

	b.Clear()
	assert.Equal("", b.String())
}

func TestBufferWriteHook(t *testing.T) {
	assert := assert.New(t)

	b := termview.NewBuffer(80, 24)

	var got []byte
	b.SetWriteHook(func(p []byte) { got = append(got, p...) })

	_, _ = b.WriteString("forwarded")
	assert.Equal("forwarded", string(got))
}

func TestBufferListeners(t *testing.T) {
	assert := assert.New(t)

	b := termview.NewBuffer(80, 24)

	var data []byte
	dataDisp := b.OnData(func(p []byte) { data = append(data, p...) })

	var cols, rows int
	resizeDisp := b.OnResize(func(c, r int) { cols, rows = c, r })

	b.SendData([]byte("ls\r"))
	assert.Equal("ls\r", string(data))

	b.SendResize(100, 40)
	assert.Equal(100, cols)
	assert.Equal(40, rows)
	gotCols, gotRows := b.Size()
	assert.Equal(100, gotCols)
	assert.Equal(40, gotRows)

	// Disposed listeners stop receiving.
	dataDisp()
	resizeDisp()
	b.SendData([]byte("x"))
	b.SendResize(10, 10)
	assert.Equal("ls\r", string(data))
	assert.Equal(100, cols)
}

func TestBufferDispose(t *testing.T) {
	assert := assert.New(t)

	b := termview.NewBuffer(80, 24)

	var fired bool
	b.OnData(func([]byte) { fired = true })

	_, _ = b.WriteString("before")
	b.Dispose()
	assert.True(b.Disposed())

	// Writes after disposal are swallowed and listeners are gone.
	_, _ = b.WriteString("after")
	b.SendData([]byte("x"))
	assert.Equal("before", b.String())
	assert.False(fired)
}

func TestBufferFocus(t *testing.T) {
	assert := assert.New(t)

	b := termview.NewBuffer(80, 24)
	assert.False(b.Focused())

	b.Focus()
	assert.True(b.Focused())
}
