// Package compositor draws the offscreen color attachment onto the swap-chain image with a
// fullscreen triangle, using the depth attachment for a depth-based fog.
package compositor

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/target"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/uniform"
	"github.com/Carmen-Shannon/oxy-forward/shaders"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineID is the pipeline cache key of the compositor pipeline.
const PipelineID = "compositor"

// CameraProperties is the part of a camera the compositor reads each frame.
type CameraProperties interface {
	DepthRange() (near, far float32)
	Size() (uint32, uint32)
}

type compositor struct {
	mu *sync.Mutex

	ctx     renderer.Context
	label   string
	uniform *uniform.Uniform[GPUCompositorUniform]

	layout    backend.BindGroupLayout
	bindGroup backend.BindGroup
}

// Compositor is the final post pass of a frame.
type Compositor interface {
	// ReadCameraProperties copies the camera's depth range and size into the uniform,
	// marking it dirty only when a value changed.
	//
	// Parameters:
	//   - camera: the camera whose attachments are composited
	ReadCameraProperties(camera CameraProperties)

	// Dirty reports whether the uniform needs uploading.
	Dirty() bool

	// Uniform returns the compositor uniform holder.
	Uniform() *uniform.Uniform[GPUCompositorUniform]

	// BindGroup returns the attachment bind group (group 0).
	BindGroup() backend.BindGroup

	// Update uploads the uniform when dirty.
	//
	// Parameters:
	//   - queue: the queue to write through
	//
	// Returns:
	//   - error: the write error
	Update(queue backend.Queue) error

	// Resize rebuilds the attachment bind group against the target's current attachments.
	//
	// Parameters:
	//   - target: the render target the scene draws into
	//
	// Returns:
	//   - error: a bind group error; the previous group is kept
	Resize(target target.RenderTarget) error

	// Render records a pass on view that loads its contents and draws one fullscreen triangle.
	//
	// Parameters:
	//   - encoder: the frame's command encoder
	//   - view: the swap-chain image view
	//
	// Returns:
	//   - error: an error ending the pass
	Render(encoder backend.CommandEncoder, view backend.TextureView) error

	// Release frees the bind group, layout and uniform.
	Release()
}

var _ Compositor = &compositor{}

// LayoutEntries returns the entries of group 0: the color view and its filtering sampler,
// then the depth view and its comparison sampler.
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: the four fragment-visible entries
func LayoutEntries() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		},
		{
			Binding:    2,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeDepth,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		},
		{
			Binding:    3,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeComparison},
		},
	}
}

// New creates the compositor, its pipeline and its bind groups over target.
//
// Parameters:
//   - ctx: the GPU context; the pipeline targets its surface format
//   - target: the render target to composite
//   - options: builder options
//
// Returns:
//   - Compositor: the compositor
//   - error: an allocation, shader or pipeline error
func New(ctx renderer.Context, target target.RenderTarget, options ...CompositorBuilderOption) (Compositor, error) {
	c := &compositor{
		mu:    &sync.Mutex{},
		ctx:   ctx,
		label: "Compositor",
	}
	for _, opt := range options {
		opt(c)
	}

	device := ctx.Device()
	u, err := uniform.New[GPUCompositorUniform](device, c.label+" Uniform")
	if err != nil {
		return nil, fmt.Errorf("compositor: %w", err)
	}
	c.uniform = u

	c.layout, err = device.CreateBindGroupLayout(backend.BindGroupLayoutDescriptor{
		Label:   c.label + " Layout",
		Entries: LayoutEntries(),
	})
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("compositor: layout: %w", err)
	}
	if err := c.Resize(target); err != nil {
		c.Release()
		return nil, err
	}
	if err := c.preparePipeline(); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

func (c *compositor) preparePipeline() error {
	device, cache := c.ctx.Device(), c.ctx.Cache()
	if cache.Has(PipelineID) {
		return nil
	}
	src, err := c.ctx.Shaders().Load(shaders.Compositor)
	if err != nil {
		return fmt.Errorf("compositor: %w", err)
	}
	layout, err := device.CreatePipelineLayout(backend.PipelineLayoutDescriptor{
		Label:            c.label + " Pipeline Layout",
		BindGroupLayouts: []backend.BindGroupLayout{c.layout, c.uniform.Layout()},
	})
	if err != nil {
		return fmt.Errorf("compositor: pipeline layout: %w", err)
	}
	defer layout.Release()

	return cache.CreateRenderPipeline(PipelineID, device, pipeline.Properties{
		Pass:               pipeline.PassAmbient,
		Layout:             layout,
		Shader:             src,
		ShaderLabel:        shaders.Compositor,
		VertexEntryPoint:   "compositor_vs_main",
		FragmentEntryPoint: "compositor_fs_main",
		ColorFormat:        c.ctx.Format(),
		DisableCulling:     true,
	})
}

func (c *compositor) ReadCameraProperties(camera CameraProperties) {
	near, far := camera.DepthRange()
	w, h := camera.Size()
	next := GPUCompositorUniform{ZNear: near, ZFar: far, Width: float32(w), Height: float32(h)}
	if c.uniform.Get() == next {
		return
	}
	c.uniform.Set(next)
}

func (c *compositor) Dirty() bool                                     { return c.uniform.Dirty() }
func (c *compositor) Uniform() *uniform.Uniform[GPUCompositorUniform] { return c.uniform }

func (c *compositor) BindGroup() backend.BindGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindGroup
}

func (c *compositor) Update(queue backend.Queue) error {
	if _, err := c.uniform.Write(queue); err != nil {
		return fmt.Errorf("compositor: %w", err)
	}
	return nil
}

func (c *compositor) Resize(target target.RenderTarget) error {
	color, depth := target.Color(), target.Depth()
	if color == nil || depth == nil {
		return fmt.Errorf("compositor: target needs both color and depth attachments")
	}
	group, err := c.ctx.Device().CreateBindGroup(backend.BindGroupDescriptor{
		Label:  c.label + " Bind Group",
		Layout: c.layout,
		Entries: []backend.BindGroupEntry{
			{Binding: 0, TextureView: color.View()},
			{Binding: 1, Sampler: color.Sampler()},
			{Binding: 2, TextureView: depth.View()},
			{Binding: 3, Sampler: depth.Sampler()},
		},
	})
	if err != nil {
		return fmt.Errorf("compositor: bind group: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bindGroup != nil {
		c.bindGroup.Release()
	}
	c.bindGroup = group
	w, h := target.Size()
	logger.Debug("compositor bound to target", "width", w, "height", h)
	return nil
}

func (c *compositor) Render(encoder backend.CommandEncoder, view backend.TextureView) error {
	rp := encoder.BeginRenderPass(backend.RenderPassDescriptor{
		Label: c.label + " Pass",
		Color: backend.ColorAttachment{
			View:    view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		},
	})
	if p, ok := c.ctx.Cache().Get(PipelineID); ok {
		rp.SetPipeline(p)
		rp.SetBindGroup(0, c.BindGroup())
		rp.SetBindGroup(1, c.uniform.BindGroup())
		rp.Draw(3, 1)
	} else {
		logger.Warn("no compositor pipeline, skipping draw", "pipeline", PipelineID)
	}
	return rp.End()
}

func (c *compositor) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bindGroup != nil {
		c.bindGroup.Release()
		c.bindGroup = nil
	}
	if c.layout != nil {
		c.layout.Release()
	}
	if c.uniform != nil {
		c.uniform.Release()
	}
}
