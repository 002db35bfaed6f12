// Package renderer owns the GPU context: device, queue and presentable surface, the render
// pipeline cache and the shader library every renderer object builds its pipelines from.
package renderer

import (
	"fmt"
	"io/fs"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-forward/shaders"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank (FIFO). This is the default.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents immediately and may tear.
	PresentModeUncapped

	// PresentModeMailbox replaces the queued frame with the newest one without tearing.
	PresentModeMailbox
)

// ParsePresentMode maps a configuration string to a PresentMode. Unknown strings map to
// PresentModeVSync.
//
// Parameters:
//   - s: one of "vsync", "fifo", "uncapped", "immediate", "mailbox"
//
// Returns:
//   - PresentMode: the present mode
func ParsePresentMode(s string) PresentMode {
	switch s {
	case "uncapped", "immediate":
		return PresentModeUncapped
	case "mailbox":
		return PresentModeMailbox
	default:
		return PresentModeVSync
	}
}

func (m PresentMode) wgpu() wgpu.PresentMode {
	switch m {
	case PresentModeUncapped:
		return wgpu.PresentModeImmediate
	case PresentModeMailbox:
		return wgpu.PresentModeMailbox
	default:
		return wgpu.PresentModeFifo
	}
}

type gpuContext struct {
	mu *sync.Mutex

	device  backend.Device
	queue   backend.Queue
	surface backend.Surface
	format  wgpu.TextureFormat
	width   uint32
	height  uint32

	cache   pipeline.Cache
	shaders shader.Library

	presentMode          PresentMode
	forceFallbackAdapter bool
	shaderFS             fs.FS
	shaderIncludes       map[string]string
	validateShaders      bool
}

// Context is the GPU context shared by every renderer object.
type Context interface {
	Device() backend.Device
	Queue() backend.Queue
	Surface() backend.Surface

	// Format returns the surface format chosen at configuration.
	Format() wgpu.TextureFormat

	// Size returns the configured surface size.
	Size() (uint32, uint32)

	// Cache returns the render pipeline cache.
	Cache() pipeline.Cache

	// Shaders returns the shader library.
	Shaders() shader.Library

	// PresentMode returns the configured present mode.
	PresentMode() PresentMode

	// Resize reconfigures the surface when both dimensions are positive.
	//
	// Parameters:
	//   - width, height: the new surface size
	//
	// Returns:
	//   - bool: true when the surface was reconfigured
	Resize(width, height uint32) bool

	// AcquireFrame acquires the next swap-chain image.
	//
	// Returns:
	//   - Frame: the frame to render into and present
	//   - error: an error matching one of backend.ErrSurfaceLost, ErrSurfaceOutdated,
	//     ErrSurfaceTimeout or ErrSurfaceOutOfMemory when classifiable
	AcquireFrame() (Frame, error)

	// Submit hands finished command buffers to the queue.
	Submit(buffers ...backend.CommandBuffer)

	// Release frees the pipeline cache, then the surface, then the device with its adapter
	// and instance. Nothing created from the context may be used afterwards.
	Release()
}

// Frame is one acquired swap-chain image.
type Frame interface {
	// View returns the swap-chain image view.
	View() backend.TextureView

	// Present queues the image for display and releases it.
	Present()
}

type frame struct {
	surface backend.Surface
	texture backend.SurfaceTexture
}

func (f *frame) View() backend.TextureView { return f.texture.View() }

func (f *frame) Present() {
	f.surface.Present()
	f.texture.Release()
}

var _ Context = &gpuContext{}

func newGPUContext(options []ContextBuilderOption) *gpuContext {
	c := &gpuContext{
		mu:             &sync.Mutex{},
		presentMode:    PresentModeVSync,
		shaderFS:       shaders.FS,
		shaderIncludes: map[string]string{},
	}
	for _, opt := range options {
		opt(c)
	}
	if c.cache == nil {
		c.cache = pipeline.NewCache()
	}
	if c.shaders == nil {
		c.shaders = shader.NewLibrary(c.shaderFS,
			shader.WithIncludes(c.shaderIncludes),
			shader.WithValidation(c.validateShaders),
		)
	}
	return c
}

// New creates a Context over an existing device and surface and configures the surface with
// its first reported format.
//
// Parameters:
//   - surface: the presentable surface
//   - device: the device
//   - width, height: the initial surface size
//   - options: builder options
//
// Returns:
//   - Context: the context
//   - error: an error if the surface reports no formats or configuration failed
func New(surface backend.Surface, device backend.Device, width, height uint32, options ...ContextBuilderOption) (Context, error) {
	c := newGPUContext(options)
	if err := c.init(surface, device, width, height); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWGPU acquires a wgpu instance, adapter, device and queue for the surface described by
// surfaceDescriptor and returns a configured Context.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, as produced by the window
//   - width, height: the initial surface size
//   - options: builder options
//
// Returns:
//   - Context: the context
//   - error: an adapter, device or configuration error
func NewWGPU(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height uint32, options ...ContextBuilderOption) (Context, error) {
	c := newGPUContext(options)
	device, surface, err := backend.NewWGPU(surfaceDescriptor, c.forceFallbackAdapter)
	if err != nil {
		return nil, err
	}
	if err := c.init(surface, device, width, height); err != nil {
		surface.Release()
		device.Release()
		return nil, err
	}
	return c, nil
}

func (c *gpuContext) init(surface backend.Surface, device backend.Device, width, height uint32) error {
	formats := surface.Formats()
	if len(formats) == 0 {
		return fmt.Errorf("surface reports no formats")
	}
	c.surface = surface
	c.device = device
	c.queue = device.Queue()
	c.format = formats[0]
	c.width, c.height = max(width, 1), max(height, 1)
	if err := surface.Configure(c.width, c.height, c.format, c.presentMode.wgpu()); err != nil {
		return fmt.Errorf("configure surface: %w", err)
	}
	logger.Debug("surface configured", "format", c.format, "width", c.width, "height", c.height)
	return nil
}

func (c *gpuContext) Device() backend.Device     { return c.device }
func (c *gpuContext) Queue() backend.Queue       { return c.queue }
func (c *gpuContext) Surface() backend.Surface   { return c.surface }
func (c *gpuContext) Format() wgpu.TextureFormat { return c.format }
func (c *gpuContext) Cache() pipeline.Cache      { return c.cache }
func (c *gpuContext) Shaders() shader.Library    { return c.shaders }
func (c *gpuContext) PresentMode() PresentMode   { return c.presentMode }

func (c *gpuContext) Size() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *gpuContext) Resize(width, height uint32) bool {
	if width == 0 || height == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.surface.Configure(width, height, c.format, c.presentMode.wgpu()); err != nil {
		logger.Error("failed to reconfigure surface", "width", width, "height", height, "err", err)
		return false
	}
	c.width, c.height = width, height
	return true
}

func (c *gpuContext) AcquireFrame() (Frame, error) {
	tex, err := c.surface.Acquire()
	if err != nil {
		return nil, backend.ClassifySurfaceError(err)
	}
	return &frame{surface: c.surface, texture: tex}, nil
}

func (c *gpuContext) Submit(buffers ...backend.CommandBuffer) {
	c.queue.Submit(buffers...)
}

func (c *gpuContext) Release() {
	c.cache.Release()
	if c.surface != nil {
		c.surface.Release()
	}
	if c.device != nil {
		c.device.Release()
	}
}

// ShaderIncludes is a helper for merging include maps from several packages.
//
// Parameters:
//   - sets: include maps, later ones winning on name collisions
//
// Returns:
//   - map[string]string: the merged map
func ShaderIncludes(sets ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, s := range sets {
		maps.Copy(out, s)
	}
	return out
}
