package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySurfaceError(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{"wgpu: surface status Lost", ErrSurfaceLost},
		{"Outdated", ErrSurfaceOutdated},
		{"get current texture: TIMEOUT", ErrSurfaceTimeout},
		{"Out_Of_Memory", ErrSurfaceOutOfMemory},
		{"device lost", ErrSurfaceOutOfMemory},
	}
	for _, c := range cases {
		got := ClassifySurfaceError(errors.New(c.raw))
		assert.ErrorIs(t, got, c.want, c.raw)
	}
}

func TestClassifySurfaceErrorPassThrough(t *testing.T) {
	assert.NoError(t, ClassifySurfaceError(nil))

	other := errors.New("something else")
	assert.Same(t, other, ClassifySurfaceError(other))

	wrapped := fmt.Errorf("frame: %w", ErrSurfaceTimeout)
	assert.Same(t, wrapped, ClassifySurfaceError(wrapped))
}
