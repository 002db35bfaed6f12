package backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuDevice is the Device implementation over cogentcore/webgpu.
type wgpuDevice struct {
	mu       *sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpuQueue
}

// wgpuSurface is the Surface implementation over cogentcore/webgpu.
type wgpuSurface struct {
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
}

type wgpuQueue struct {
	queue *wgpu.Queue
}

type wgpuBuffer struct {
	buffer *wgpu.Buffer
	label  string
	size   uint64
}

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpuTextureView
	desc    TextureDescriptor
}

type wgpuTextureView struct {
	view *wgpu.TextureView
}

type wgpuSampler struct{ sampler *wgpu.Sampler }

type wgpuBindGroupLayout struct{ layout *wgpu.BindGroupLayout }

type wgpuBindGroup struct{ group *wgpu.BindGroup }

type wgpuPipelineLayout struct{ layout *wgpu.PipelineLayout }

type wgpuShaderModule struct{ module *wgpu.ShaderModule }

type wgpuRenderPipeline struct {
	pipeline *wgpu.RenderPipeline
	label    string
}

type wgpuCommandBuffer struct{ buffer *wgpu.CommandBuffer }

type wgpuCommandEncoder struct{ encoder *wgpu.CommandEncoder }

type wgpuRenderPass struct{ pass *wgpu.RenderPassEncoder }

type wgpuSurfaceTexture struct {
	texture *wgpu.Texture
	view    *wgpuTextureView
}

var (
	_ Device         = &wgpuDevice{}
	_ Surface        = &wgpuSurface{}
	_ Queue          = &wgpuQueue{}
	_ CommandEncoder = &wgpuCommandEncoder{}
	_ RenderPass     = &wgpuRenderPass{}
)

// NewWGPU acquires an instance, a surface, an adapter compatible with that surface, and a
// device with default limits. The calling goroutine is locked to its OS thread since the
// native surface must be driven from the thread that created it.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, usually from wgpuglfw
//   - forceFallbackAdapter: request the software adapter
//
// Returns:
//   - Device: the device wrapper
//   - Surface: the surface wrapper bound to that device
//   - error: an error if any step of acquisition failed
func NewWGPU(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (Device, Surface, error) {
	runtime.LockOSThread()

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(surfaceDescriptor)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		surface.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("request adapter: %w", err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		adapter.Release()
		surface.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("request device: %w", err)
	}

	d := &wgpuDevice{
		mu:       &sync.Mutex{},
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    &wgpuQueue{queue: device.GetQueue()},
	}
	s := &wgpuSurface{
		surface: surface,
		adapter: adapter,
		device:  device,
	}
	return d, s, nil
}

func (d *wgpuDevice) Queue() Queue {
	return d.queue
}

// Release frees the queue, device, adapter and instance in reverse order of acquisition.
// The surface is released separately and should go first.
func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queue != nil {
		d.queue.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

func (d *wgpuDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            desc.Usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buffer: buf, label: desc.Label, size: desc.Size}, nil
}

func (d *wgpuDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc.Layers = max(desc.Layers, 1)
	desc.MipLevels = max(desc.MipLevels, 1)
	if desc.ViewDimension == 0 {
		desc.ViewDimension = wgpu.TextureViewDimension2D
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     desc.Usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Layers,
		},
		Format:        desc.Format,
		MipLevelCount: desc.MipLevels,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Label + " View",
		Format:          desc.Format,
		Dimension:       desc.ViewDimension,
		BaseMipLevel:    0,
		MipLevelCount:   desc.MipLevels,
		BaseArrayLayer:  0,
		ArrayLayerCount: desc.Layers,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return nil, err
	}

	return &wgpuTexture{texture: tex, view: &wgpuTextureView{view: view}, desc: desc}, nil
}

func (d *wgpuDevice) CreateSampler(desc SamplerDescriptor) (Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	addressMode := desc.AddressMode
	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  addressMode,
		AddressModeV:  addressMode,
		AddressModeW:  addressMode,
		MagFilter:     desc.MagFilter,
		MinFilter:     desc.MinFilter,
		MipmapFilter:  desc.MipmapFilter,
		LodMinClamp:   desc.LodMinClamp,
		LodMaxClamp:   desc.LodMaxClamp,
		Compare:       desc.Compare,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{sampler: samp}, nil
}

func (d *wgpuDevice) CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: desc.Entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroupLayout{layout: layout}, nil
}

func (d *wgpuDevice) CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("bind group %q: layout was not created by this device", desc.Label)
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			entry.Buffer = e.Buffer.(*wgpuBuffer).buffer
			entry.Offset = 0
			entry.Size = wgpu.WholeSize
		case e.Sampler != nil:
			entry.Sampler = e.Sampler.(*wgpuSampler).sampler
		case e.TextureView != nil:
			entry.TextureView = e.TextureView.(*wgpuTextureView).view
		default:
			return nil, fmt.Errorf("bind group %q: binding %d has no resource", desc.Label, e.Binding)
		}
		entries[i] = entry
	}

	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{group: group}, nil
}

func (d *wgpuDevice) CreatePipelineLayout(desc PipelineLayoutDescriptor) (PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		layouts[i] = l.(*wgpuBindGroupLayout).layout
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuPipelineLayout{layout: layout}, nil
}

func (d *wgpuDevice) CreateShaderModule(desc ShaderModuleDescriptor) (ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Code,
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuShaderModule{module: module}, nil
}

func (d *wgpuDevice) CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := desc.Layout.(*wgpuPipelineLayout)
	if !ok {
		return nil, fmt.Errorf("render pipeline %q: layout was not created by this device", desc.Label)
	}
	module, ok := desc.Module.(*wgpuShaderModule)
	if !ok {
		return nil, fmt.Errorf("render pipeline %q: shader module was not created by this device", desc.Label)
	}

	pipeline, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.layout,
		Vertex: wgpu.VertexState{
			Module:     module.module,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module.module,
			EntryPoint: desc.FragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    desc.ColorFormat,
					Blend:     desc.Blend,
					WriteMask: desc.WriteMask,
				},
			},
		},
		Primitive: desc.Primitive,
		Multisample: wgpu.MultisampleState{
			Count: max(desc.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: desc.DepthStencil,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuRenderPipeline{pipeline: pipeline, label: desc.Label}, nil
}

func (d *wgpuDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandEncoder{encoder: encoder}, nil
}

func (q *wgpuQueue) WriteBuffer(buffer Buffer, offset uint64, data []byte) error {
	b, ok := buffer.(*wgpuBuffer)
	if !ok {
		return errors.New("write buffer: buffer was not created by this device")
	}
	return q.queue.WriteBuffer(b.buffer, offset, data)
}

func (q *wgpuQueue) WriteTexture(dst TextureWrite, data []byte) error {
	t, ok := dst.Texture.(*wgpuTexture)
	if !ok {
		return errors.New("write texture: texture was not created by this device")
	}
	q.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: dst.MipLevel,
			Origin:   wgpu.Origin3D{Z: dst.Layer},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  dst.Width * 4,
			RowsPerImage: dst.Height,
		},
		&wgpu.Extent3D{
			Width:              dst.Width,
			Height:             dst.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (q *wgpuQueue) Submit(buffers ...CommandBuffer) {
	native := make([]*wgpu.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		native = append(native, b.(*wgpuCommandBuffer).buffer)
	}
	q.queue.Submit(native...)
}

func (e *wgpuCommandEncoder) BeginRenderPass(desc RenderPassDescriptor) RenderPass {
	rp := &wgpu.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       desc.Color.View.(*wgpuTextureView).view,
				LoadOp:     desc.Color.LoadOp,
				StoreOp:    desc.Color.StoreOp,
				ClearValue: desc.Color.ClearValue,
			},
		},
	}
	if desc.Depth != nil {
		rp.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            desc.Depth.View.(*wgpuTextureView).view,
			DepthLoadOp:     desc.Depth.LoadOp,
			DepthStoreOp:    desc.Depth.StoreOp,
			DepthClearValue: desc.Depth.ClearValue,
		}
	}
	return &wgpuRenderPass{pass: e.encoder.BeginRenderPass(rp)}
}

func (e *wgpuCommandEncoder) Finish() (CommandBuffer, error) {
	buf, err := e.encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuCommandBuffer{buffer: buf}, nil
}

func (e *wgpuCommandEncoder) Release() { e.encoder.Release() }

func (p *wgpuRenderPass) SetPipeline(pipeline RenderPipeline) {
	p.pass.SetPipeline(pipeline.(*wgpuRenderPipeline).pipeline)
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, group BindGroup) {
	p.pass.SetBindGroup(index, group.(*wgpuBindGroup).group, nil)
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buffer Buffer) {
	p.pass.SetVertexBuffer(slot, buffer.(*wgpuBuffer).buffer, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) SetIndexBuffer(buffer Buffer, format wgpu.IndexFormat) {
	p.pass.SetIndexBuffer(buffer.(*wgpuBuffer).buffer, format, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) DrawIndexed(indexCount, instanceCount uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount uint32) {
	p.pass.Draw(vertexCount, instanceCount, 0, 0)
}

// End closes the pass and releases the encoder handle; the pass must be released before
// the owning command encoder is finished.
func (p *wgpuRenderPass) End() error {
	p.pass.End()
	p.pass.Release()
	return nil
}

func (s *wgpuSurface) Formats() []wgpu.TextureFormat {
	return s.surface.GetCapabilities(s.adapter).Formats
}

func (s *wgpuSurface) Configure(width, height uint32, format wgpu.TextureFormat, presentMode wgpu.PresentMode) error {
	capabilities := s.surface.GetCapabilities(s.adapter)
	if len(capabilities.AlphaModes) == 0 {
		return errors.New("configure surface: adapter reports no alpha modes")
	}
	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       width,
		Height:      height,
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

func (s *wgpuSurface) Acquire() (SurfaceTexture, error) {
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, ClassifySurfaceError(err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuSurfaceTexture{texture: tex, view: &wgpuTextureView{view: view}}, nil
}

func (s *wgpuSurface) Release() {
	if s.surface != nil {
		s.surface.Release()
		s.surface = nil
	}
}

func (s *wgpuSurface) Present() {
	s.surface.Present()
}

func (t *wgpuSurfaceTexture) View() TextureView { return t.view }

func (t *wgpuSurfaceTexture) Release() {
	t.view.Release()
	t.texture.Release()
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }
func (b *wgpuBuffer) Release()      { b.buffer.Release() }

func (t *wgpuTexture) Label() string              { return t.desc.Label }
func (t *wgpuTexture) Width() uint32              { return t.desc.Width }
func (t *wgpuTexture) Height() uint32             { return t.desc.Height }
func (t *wgpuTexture) Layers() uint32             { return t.desc.Layers }
func (t *wgpuTexture) MipLevels() uint32          { return t.desc.MipLevels }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *wgpuTexture) View() TextureView          { return t.view }
func (t *wgpuTexture) Release() {
	t.view.Release()
	t.texture.Release()
}

func (v *wgpuTextureView) Release()     { v.view.Release() }
func (s *wgpuSampler) Release()         { s.sampler.Release() }
func (l *wgpuBindGroupLayout) Release() { l.layout.Release() }
func (g *wgpuBindGroup) Release()       { g.group.Release() }
func (l *wgpuPipelineLayout) Release()  { l.layout.Release() }
func (m *wgpuShaderModule) Release()    { m.module.Release() }
func (c *wgpuCommandBuffer) Release()   { c.buffer.Release() }

func (p *wgpuRenderPipeline) Label() string { return p.label }
func (p *wgpuRenderPipeline) Release()      { p.pipeline.Release() }
