// Package backendtest provides an in-memory backend.Device that records every resource it
// creates and every command recorded against it, so renderer behavior can be asserted on
// without a GPU.
package backendtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Op names recorded by Pass.
const (
	OpSetPipeline     = "SetPipeline"
	OpSetBindGroup    = "SetBindGroup"
	OpSetVertexBuffer = "SetVertexBuffer"
	OpSetIndexBuffer  = "SetIndexBuffer"
	OpDrawIndexed     = "DrawIndexed"
	OpDraw            = "Draw"
)

// Command is one recorded render pass command. Label holds the pipeline label for
// SetPipeline and the buffer label for buffer commands; Args holds numeric arguments in call
// order.
type Command struct {
	Op    string
	Label string
	Group *BindGroup
	Args  []uint32
}

// Write is one recorded Queue.WriteBuffer call.
type Write struct {
	Buffer string
	Offset uint64
	Data   []byte
}

// TextureWriteRecord is one recorded Queue.WriteTexture call.
type TextureWriteRecord struct {
	Texture  string
	MipLevel uint32
	Layer    uint32
	Width    uint32
	Height   uint32
	Bytes    int
}

// Device is a recording backend.Device. The zero value is not usable; call NewDevice.
type Device struct {
	mu sync.Mutex

	Buffers          []*Buffer
	Textures         []*Texture
	Samplers         []*Sampler
	BindGroupLayouts []*BindGroupLayout
	BindGroups       []*BindGroup
	PipelineLayouts  []*PipelineLayout
	ShaderModules    []*ShaderModule
	Pipelines        []*Pipeline
	Encoders         []*Encoder
	Released         bool

	// FailPipeline, when set, makes CreateRenderPipeline fail for labels it returns true for.
	FailPipeline func(label string) bool
	// FailShader, when set, makes CreateShaderModule fail for labels it returns true for.
	FailShader func(label string) bool

	queue *Queue
}

var (
	_ backend.Device         = &Device{}
	_ backend.Queue          = &Queue{}
	_ backend.CommandEncoder = &Encoder{}
	_ backend.RenderPass     = &Pass{}
	_ backend.Surface        = &Surface{}
)

// NewDevice creates an empty recording device.
func NewDevice() *Device {
	d := &Device{}
	d.queue = &Queue{device: d}
	return d
}

func (d *Device) Queue() backend.Queue { return d.queue }

// RecordingQueue returns the concrete queue for assertions.
func (d *Device) RecordingQueue() *Queue { return d.queue }

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Released = true
}

func (d *Device) CreateBuffer(desc backend.BufferDescriptor) (backend.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := &Buffer{Desc: desc, Data: make([]byte, desc.Size)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateTexture(desc backend.TextureDescriptor) (backend.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q: zero extent %dx%d", desc.Label, desc.Width, desc.Height)
	}
	desc.Layers = max(desc.Layers, 1)
	desc.MipLevels = max(desc.MipLevels, 1)
	if desc.ViewDimension == 0 {
		desc.ViewDimension = wgpu.TextureViewDimension2D
	}
	t := &Texture{Desc: desc}
	t.view = &TextureView{Texture: t}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) CreateSampler(desc backend.SamplerDescriptor) (backend.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Sampler{Desc: desc}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) CreateBindGroupLayout(desc backend.BindGroupLayoutDescriptor) (backend.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &BindGroupLayout{Desc: desc}
	d.BindGroupLayouts = append(d.BindGroupLayouts, l)
	return l, nil
}

func (d *Device) CreateBindGroup(desc backend.BindGroupDescriptor) (backend.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	layout, ok := desc.Layout.(*BindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("bind group %q: foreign layout", desc.Label)
	}
	if len(desc.Entries) != len(layout.Desc.Entries) {
		return nil, fmt.Errorf("bind group %q: %d entries for a layout of %d", desc.Label, len(desc.Entries), len(layout.Desc.Entries))
	}
	for i, e := range desc.Entries {
		if e.Binding != layout.Desc.Entries[i].Binding {
			return nil, fmt.Errorf("bind group %q: entry %d binds %d, layout expects %d", desc.Label, i, e.Binding, layout.Desc.Entries[i].Binding)
		}
		if e.Buffer == nil && e.Sampler == nil && e.TextureView == nil {
			return nil, fmt.Errorf("bind group %q: binding %d has no resource", desc.Label, e.Binding)
		}
	}
	g := &BindGroup{Desc: desc}
	d.BindGroups = append(d.BindGroups, g)
	return g, nil
}

func (d *Device) CreatePipelineLayout(desc backend.PipelineLayoutDescriptor) (backend.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &PipelineLayout{Desc: desc}
	d.PipelineLayouts = append(d.PipelineLayouts, l)
	return l, nil
}

func (d *Device) CreateShaderModule(desc backend.ShaderModuleDescriptor) (backend.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailShader != nil && d.FailShader(desc.Label) {
		return nil, fmt.Errorf("shader module %q: injected failure", desc.Label)
	}
	m := &ShaderModule{Desc: desc}
	d.ShaderModules = append(d.ShaderModules, m)
	return m, nil
}

func (d *Device) CreateRenderPipeline(desc backend.RenderPipelineDescriptor) (backend.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailPipeline != nil && d.FailPipeline(desc.Label) {
		return nil, fmt.Errorf("render pipeline %q: injected failure", desc.Label)
	}
	p := &Pipeline{Desc: desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) CreateCommandEncoder(label string) (backend.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := &Encoder{Label: label}
	d.Encoders = append(d.Encoders, e)
	return e, nil
}

// BufferByLabel returns the most recently created buffer with label, or nil.
func (d *Device) BufferByLabel(label string) *Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.Buffers) - 1; i >= 0; i-- {
		if d.Buffers[i].Desc.Label == label {
			return d.Buffers[i]
		}
	}
	return nil
}

// TextureByLabel returns the most recently created texture with label, or nil.
func (d *Device) TextureByLabel(label string) *Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.Textures) - 1; i >= 0; i-- {
		if d.Textures[i].Desc.Label == label {
			return d.Textures[i]
		}
	}
	return nil
}

// PipelineByLabel returns the most recently created pipeline with label, or nil.
func (d *Device) PipelineByLabel(label string) *Pipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.Pipelines) - 1; i >= 0; i-- {
		if d.Pipelines[i].Desc.Label == label {
			return d.Pipelines[i]
		}
	}
	return nil
}

// LastEncoder returns the most recently created encoder, or nil.
func (d *Device) LastEncoder() *Encoder {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Encoders) == 0 {
		return nil
	}
	return d.Encoders[len(d.Encoders)-1]
}

// Queue records writes and submissions.
type Queue struct {
	mu     sync.Mutex
	device *Device

	Writes        []Write
	TextureWrites []TextureWriteRecord
	Submitted     []*CommandBuffer

	// FailWrites makes every WriteBuffer call fail.
	FailWrites bool
}

func (q *Queue) WriteBuffer(buffer backend.Buffer, offset uint64, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailWrites {
		return errors.New("write buffer: injected failure")
	}
	b, ok := buffer.(*Buffer)
	if !ok {
		return errors.New("write buffer: foreign buffer")
	}
	if offset+uint64(len(data)) > b.Desc.Size {
		return fmt.Errorf("write buffer %q: %d bytes at %d overflow size %d", b.Desc.Label, len(data), offset, b.Desc.Size)
	}
	copy(b.Data[offset:], data)
	q.Writes = append(q.Writes, Write{Buffer: b.Desc.Label, Offset: offset, Data: append([]byte(nil), data...)})
	return nil
}

func (q *Queue) WriteTexture(dst backend.TextureWrite, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := dst.Texture.(*Texture)
	if !ok {
		return errors.New("write texture: foreign texture")
	}
	if dst.MipLevel >= t.Desc.MipLevels || dst.Layer >= t.Desc.Layers {
		return fmt.Errorf("write texture %q: mip %d layer %d out of range", t.Desc.Label, dst.MipLevel, dst.Layer)
	}
	if want := int(dst.Width * dst.Height * 4); len(data) != want {
		return fmt.Errorf("write texture %q: got %d bytes, want %d", t.Desc.Label, len(data), want)
	}
	q.TextureWrites = append(q.TextureWrites, TextureWriteRecord{
		Texture:  t.Desc.Label,
		MipLevel: dst.MipLevel,
		Layer:    dst.Layer,
		Width:    dst.Width,
		Height:   dst.Height,
		Bytes:    len(data),
	})
	return nil
}

func (q *Queue) Submit(buffers ...backend.CommandBuffer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, b := range buffers {
		q.Submitted = append(q.Submitted, b.(*CommandBuffer))
	}
}

// WritesTo returns every recorded write to the buffer with label.
func (q *Queue) WritesTo(label string) []Write {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Write
	for _, w := range q.Writes {
		if w.Buffer == label {
			out = append(out, w)
		}
	}
	return out
}

// Reset forgets recorded writes and submissions.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Writes = nil
	q.TextureWrites = nil
	q.Submitted = nil
}

// Encoder records render passes.
type Encoder struct {
	Label    string
	Passes   []*Pass
	Finished bool
	Released bool
}

func (e *Encoder) BeginRenderPass(desc backend.RenderPassDescriptor) backend.RenderPass {
	p := &Pass{Desc: desc}
	e.Passes = append(e.Passes, p)
	return p
}

func (e *Encoder) Finish() (backend.CommandBuffer, error) {
	for i, p := range e.Passes {
		if !p.Ended {
			return nil, fmt.Errorf("encoder %q: pass %d was not ended", e.Label, i)
		}
	}
	e.Finished = true
	return &CommandBuffer{Encoder: e}, nil
}

func (e *Encoder) Release() { e.Released = true }

// Pass records commands.
type Pass struct {
	Desc     backend.RenderPassDescriptor
	Commands []Command
	Ended    bool
}

func (p *Pass) SetPipeline(pipeline backend.RenderPipeline) {
	p.Commands = append(p.Commands, Command{Op: OpSetPipeline, Label: pipeline.Label()})
}

func (p *Pass) SetBindGroup(index uint32, group backend.BindGroup) {
	g, _ := group.(*BindGroup)
	p.Commands = append(p.Commands, Command{Op: OpSetBindGroup, Group: g, Args: []uint32{index}})
}

func (p *Pass) SetVertexBuffer(slot uint32, buffer backend.Buffer) {
	p.Commands = append(p.Commands, Command{Op: OpSetVertexBuffer, Label: buffer.Label(), Args: []uint32{slot}})
}

func (p *Pass) SetIndexBuffer(buffer backend.Buffer, format wgpu.IndexFormat) {
	p.Commands = append(p.Commands, Command{Op: OpSetIndexBuffer, Label: buffer.Label(), Args: []uint32{uint32(format)}})
}

func (p *Pass) DrawIndexed(indexCount, instanceCount uint32) {
	p.Commands = append(p.Commands, Command{Op: OpDrawIndexed, Args: []uint32{indexCount, instanceCount}})
}

func (p *Pass) Draw(vertexCount, instanceCount uint32) {
	p.Commands = append(p.Commands, Command{Op: OpDraw, Args: []uint32{vertexCount, instanceCount}})
}

func (p *Pass) End() error {
	if p.Ended {
		return errors.New("render pass ended twice")
	}
	p.Ended = true
	return nil
}

// Ops returns the op names of the recorded commands, in order.
func (p *Pass) Ops() []string {
	ops := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		ops[i] = c.Op
	}
	return ops
}

// Pipelines returns the labels passed to SetPipeline, in order.
func (p *Pass) Pipelines() []string {
	var out []string
	for _, c := range p.Commands {
		if c.Op == OpSetPipeline {
			out = append(out, c.Label)
		}
	}
	return out
}

// Draws returns the recorded draw commands.
func (p *Pass) Draws() []Command {
	var out []Command
	for _, c := range p.Commands {
		if c.Op == OpDrawIndexed || c.Op == OpDraw {
			out = append(out, c)
		}
	}
	return out
}

// Surface is a fake presentable surface with injectable acquisition failures.
type Surface struct {
	mu sync.Mutex

	Format      []wgpu.TextureFormat
	Width       uint32
	Height      uint32
	PresentMode wgpu.PresentMode
	Configured  int
	Presented   int
	Acquired    int
	Released    bool

	// AcquireErrors is consumed front to back, one entry per Acquire call; a nil entry or
	// an exhausted slice acquires successfully.
	AcquireErrors []error
	// ConfigureError, when set, is returned by Configure.
	ConfigureError error
}

// NewSurface creates a fake surface reporting BGRA8UnormSrgb as its preferred format.
func NewSurface() *Surface {
	return &Surface{Format: []wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatBGRA8Unorm}}
}

func (s *Surface) Formats() []wgpu.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Format
}

func (s *Surface) Configure(width, height uint32, format wgpu.TextureFormat, presentMode wgpu.PresentMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConfigureError != nil {
		return s.ConfigureError
	}
	s.Width, s.Height, s.PresentMode = width, height, presentMode
	s.Configured++
	return nil
}

func (s *Surface) Acquire() (backend.SurfaceTexture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.AcquireErrors) > 0 {
		err := s.AcquireErrors[0]
		s.AcquireErrors = s.AcquireErrors[1:]
		if err != nil {
			return nil, backend.ClassifySurfaceError(err)
		}
	}
	s.Acquired++
	return &SurfaceTexture{view: &TextureView{}}, nil
}

func (s *Surface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Released = true
}

func (s *Surface) Present() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Presented++
}

// SurfaceTexture is a fake swap-chain image.
type SurfaceTexture struct {
	view     *TextureView
	Released bool
}

func (t *SurfaceTexture) View() backend.TextureView { return t.view }
func (t *SurfaceTexture) Release()                  { t.Released = true }

// Buffer is a recorded buffer; Data mirrors every write made through the queue.
type Buffer struct {
	Desc     backend.BufferDescriptor
	Data     []byte
	Released bool
}

func (b *Buffer) Label() string { return b.Desc.Label }
func (b *Buffer) Size() uint64  { return b.Desc.Size }
func (b *Buffer) Release()      { b.Released = true }

// Texture is a recorded texture.
type Texture struct {
	Desc     backend.TextureDescriptor
	Released bool
	view     *TextureView
}

func (t *Texture) Label() string              { return t.Desc.Label }
func (t *Texture) Width() uint32              { return t.Desc.Width }
func (t *Texture) Height() uint32             { return t.Desc.Height }
func (t *Texture) Layers() uint32             { return t.Desc.Layers }
func (t *Texture) MipLevels() uint32          { return t.Desc.MipLevels }
func (t *Texture) Format() wgpu.TextureFormat { return t.Desc.Format }
func (t *Texture) View() backend.TextureView  { return t.view }
func (t *Texture) Release()                   { t.Released = true }

// TextureView is a recorded view; Texture is nil for surface views.
type TextureView struct {
	Texture *Texture
}

func (v *TextureView) Release() {}

// Sampler is a recorded sampler.
type Sampler struct {
	Desc     backend.SamplerDescriptor
	Released bool
}

func (s *Sampler) Release() { s.Released = true }

// BindGroupLayout is a recorded bind group layout.
type BindGroupLayout struct {
	Desc     backend.BindGroupLayoutDescriptor
	Released bool
}

func (l *BindGroupLayout) Release() { l.Released = true }

// BindGroup is a recorded bind group.
type BindGroup struct {
	Desc     backend.BindGroupDescriptor
	Released bool
}

func (g *BindGroup) Release() { g.Released = true }

// PipelineLayout is a recorded pipeline layout.
type PipelineLayout struct {
	Desc     backend.PipelineLayoutDescriptor
	Released bool
}

func (l *PipelineLayout) Release() { l.Released = true }

// ShaderModule is a recorded shader module.
type ShaderModule struct {
	Desc     backend.ShaderModuleDescriptor
	Released bool
}

func (m *ShaderModule) Release() { m.Released = true }

// Pipeline is a recorded render pipeline.
type Pipeline struct {
	Desc     backend.RenderPipelineDescriptor
	Released bool
}

func (p *Pipeline) Label() string { return p.Desc.Label }
func (p *Pipeline) Release()      { p.Released = true }

// CommandBuffer is a finished recording.
type CommandBuffer struct {
	Encoder  *Encoder
	Released bool
}

func (c *CommandBuffer) Release() { c.Released = true }
