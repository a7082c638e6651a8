package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sandpad/sandpad/internal/utils/scope"
)

func TestScopeCloseReverseOrder(t *testing.T) {
	assert := assert.New(t)

	s := scope.New()

	var order []int
	s.Add(func() { order = append(order, 1) })
	s.Add(func() { order = append(order, 2) })
	s.Add(func() { order = append(order, 3) })

	s.Close()

	assert.Equal([]int{3, 2, 1}, order)
}

func TestScopeCloseIdempotent(t *testing.T) {
	assert := assert.New(t)

	s := scope.New()

	calls := 0
	s.Add(func() { calls++ })

	s.Close()
	s.Close()

	assert.Equal(1, calls)
}

func TestScopeAddAfterClose(t *testing.T) {
	assert := assert.New(t)

	s := scope.New()
	s.Close()

	// Late registrations run immediately so they can't leak.
	called := false
	s.Add(func() { called = true })

	assert.True(called)
}

func TestScopeAddNil(t *testing.T) {
	s := scope.New()
	s.Add(nil)
	s.Close()
}
