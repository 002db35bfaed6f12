// Package backend is the thin GPU surface the renderer is written against. Resource handles
// are opaque interfaces so the wgpu implementation and the recording test implementation
// are interchangeable; enum values (formats, usages, blend factors) are the wgpu ones.
package backend

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Releasable is implemented by every GPU handle.
type Releasable interface {
	Release()
}

// Buffer is a GPU buffer handle.
type Buffer interface {
	Releasable
	Label() string
	Size() uint64
}

// TextureView is a view onto a texture, usable as a binding or an attachment.
type TextureView interface {
	Releasable
}

// Texture is a GPU texture handle with its default view.
type Texture interface {
	Releasable
	Label() string
	Width() uint32
	Height() uint32
	Layers() uint32
	MipLevels() uint32
	Format() wgpu.TextureFormat
	View() TextureView
}

// Sampler is a GPU sampler handle.
type Sampler interface {
	Releasable
}

// BindGroupLayout is the typed schema of a bind group.
type BindGroupLayout interface {
	Releasable
}

// BindGroup is a set of shader-visible resources.
type BindGroup interface {
	Releasable
}

// PipelineLayout is the ordered list of bind group layouts a pipeline uses.
type PipelineLayout interface {
	Releasable
}

// ShaderModule is a compiled shader module.
type ShaderModule interface {
	Releasable
}

// RenderPipeline is an immutable render pipeline state object.
type RenderPipeline interface {
	Releasable
	Label() string
}

// CommandBuffer is a finished, submittable command list.
type CommandBuffer interface {
	Releasable
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage wgpu.BufferUsage
}

// TextureDescriptor describes a 2D (or layered 2D) texture to create together with its view.
type TextureDescriptor struct {
	Label         string
	Width         uint32
	Height        uint32
	Layers        uint32
	MipLevels     uint32
	Format        wgpu.TextureFormat
	Usage         wgpu.TextureUsage
	ViewDimension wgpu.TextureViewDimension
}

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label        string
	AddressMode  wgpu.AddressMode
	MagFilter    wgpu.FilterMode
	MinFilter    wgpu.FilterMode
	MipmapFilter wgpu.MipmapFilterMode
	LodMinClamp  float32
	LodMaxClamp  float32
	Compare      wgpu.CompareFunction
}

// BindGroupLayoutDescriptor describes a bind group layout.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []wgpu.BindGroupLayoutEntry
}

// BindGroupEntry binds exactly one of Buffer, Sampler or TextureView at Binding.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Sampler     Sampler
	TextureView TextureView
}

// BindGroupDescriptor describes a bind group.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// PipelineLayoutDescriptor describes a pipeline layout.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
}

// ShaderModuleDescriptor carries WGSL source.
type ShaderModuleDescriptor struct {
	Label string
	Code  string
}

// RenderPipelineDescriptor is the full state needed to build a render pipeline with a
// single color target.
type RenderPipelineDescriptor struct {
	Label              string
	Layout             PipelineLayout
	Module             ShaderModule
	VertexEntryPoint   string
	FragmentEntryPoint string
	VertexBuffers      []wgpu.VertexBufferLayout
	ColorFormat        wgpu.TextureFormat
	Blend              *wgpu.BlendState
	WriteMask          wgpu.ColorWriteMask
	Primitive          wgpu.PrimitiveState
	DepthStencil       *wgpu.DepthStencilState
	SampleCount        uint32
}

// ColorAttachment is the single color output of a render pass.
type ColorAttachment struct {
	View       TextureView
	LoadOp     wgpu.LoadOp
	StoreOp    wgpu.StoreOp
	ClearValue wgpu.Color
}

// DepthAttachment is the depth output of a render pass.
type DepthAttachment struct {
	View       TextureView
	LoadOp     wgpu.LoadOp
	StoreOp    wgpu.StoreOp
	ClearValue float32
}

// RenderPassDescriptor describes the attachments of a render pass.
type RenderPassDescriptor struct {
	Label string
	Color ColorAttachment
	Depth *DepthAttachment
}

// TextureWrite addresses one mip level of one array layer of a texture.
type TextureWrite struct {
	Texture  Texture
	MipLevel uint32
	Layer    uint32
	Width    uint32
	Height   uint32
}

// Device creates GPU resources. Release frees the device together with the adapter and
// instance it was acquired from.
type Device interface {
	Releasable
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateTexture(desc TextureDescriptor) (Texture, error)
	CreateSampler(desc SamplerDescriptor) (Sampler, error)
	CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)
	CreatePipelineLayout(desc PipelineLayoutDescriptor) (PipelineLayout, error)
	CreateShaderModule(desc ShaderModuleDescriptor) (ShaderModule, error)
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	Queue() Queue
}

// Queue orders host-to-device copies and command submission.
type Queue interface {
	WriteBuffer(buffer Buffer, offset uint64, data []byte) error
	WriteTexture(dst TextureWrite, data []byte) error
	Submit(buffers ...CommandBuffer)
}

// CommandEncoder records render passes into a command buffer.
type CommandEncoder interface {
	Releasable
	BeginRenderPass(desc RenderPassDescriptor) RenderPass
	Finish() (CommandBuffer, error)
}

// RenderPass records draw state and draw calls.
type RenderPass interface {
	SetPipeline(pipeline RenderPipeline)
	SetBindGroup(index uint32, group BindGroup)
	SetVertexBuffer(slot uint32, buffer Buffer)
	SetIndexBuffer(buffer Buffer, format wgpu.IndexFormat)
	DrawIndexed(indexCount, instanceCount uint32)
	Draw(vertexCount, instanceCount uint32)
	End() error
}

// SurfaceTexture is a swap-chain image acquired for one frame.
type SurfaceTexture interface {
	View() TextureView
	Release()
}

// Surface is the presentable window surface.
type Surface interface {
	Releasable
	Formats() []wgpu.TextureFormat
	Configure(width, height uint32, format wgpu.TextureFormat, presentMode wgpu.PresentMode) error
	Acquire() (SurfaceTexture, error)
	Present()
}
