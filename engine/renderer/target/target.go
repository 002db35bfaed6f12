// Package target holds offscreen render targets: a color and a depth attachment of one
// size that a scene renders into and a compositor samples from.
package target

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/texture"
)

type renderTarget struct {
	mu *sync.Mutex

	device backend.Device
	label  string
	width  uint32
	height uint32

	withColor  bool
	withDepth  bool
	color      *texture.Texture
	depth      *texture.Texture
	generation uint64
}

// RenderTarget owns offscreen attachments of one size. Either attachment may be disabled at
// construction; Resize recreates whichever exist.
type RenderTarget interface {
	// Color returns the color attachment, or nil when disabled.
	Color() *texture.Texture

	// Depth returns the depth attachment, or nil when disabled.
	Depth() *texture.Texture

	// Size returns the attachment size in pixels.
	Size() (uint32, uint32)

	// Generation increments every time the attachments are recreated.
	Generation() uint64

	// Resize recreates the attachments at the new size.
	//
	// Parameters:
	//   - width, height: the new size; both must be non-zero
	//
	// Returns:
	//   - error: an error if the size is zero or allocation failed; the old attachments
	//     are kept in that case
	Resize(width, height uint32) error

	// Release frees both attachments.
	Release()
}

var _ RenderTarget = &renderTarget{}

// New creates a RenderTarget with both attachments at the given size.
//
// Parameters:
//   - device: the device to allocate on
//   - label: the label prefix for the attachments
//   - width, height: the initial size
//   - options: builder options
//
// Returns:
//   - RenderTarget: the target
//   - error: an allocation error
func New(device backend.Device, label string, width, height uint32, options ...RenderTargetBuilderOption) (RenderTarget, error) {
	t := &renderTarget{
		mu:        &sync.Mutex{},
		device:    device,
		label:     label,
		withColor: true,
		withDepth: true,
	}
	for _, opt := range options {
		opt(t)
	}
	if err := t.Resize(width, height); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *renderTarget) Color() *texture.Texture {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.color
}

func (t *renderTarget) Depth() *texture.Texture {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.depth
}

func (t *renderTarget) Size() (uint32, uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width, t.height
}

func (t *renderTarget) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

func (t *renderTarget) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("render target %q: zero size %dx%d", t.label, width, height)
	}

	var color, depth *texture.Texture
	var err error
	if t.withColor {
		color, err = texture.NewColorAttachment(t.device, t.label+" Color", width, height)
		if err != nil {
			return fmt.Errorf("render target %q: %w", t.label, err)
		}
	}
	if t.withDepth {
		depth, err = texture.NewDepthAttachment(t.device, t.label+" Depth", width, height)
		if err != nil {
			if color != nil {
				color.Release()
			}
			return fmt.Errorf("render target %q: %w", t.label, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()
	t.color, t.depth = color, depth
	t.width, t.height = width, height
	t.generation++
	return nil
}

func (t *renderTarget) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()
}

func (t *renderTarget) releaseLocked() {
	if t.color != nil {
		t.color.Release()
		t.color = nil
	}
	if t.depth != nil {
		t.depth.Release()
		t.depth = nil
	}
}
