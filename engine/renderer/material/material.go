// Package material holds surface properties for the forward renderer: the material
// uniform, the nine-binding bind group every model pipeline reads as group 0, and the
// pipeline signature that lets materials with the same texture set share pipelines.
package material

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderName is the shader library name of the model shader every material pipeline uses.
const ShaderName = "model"

// Bindings of group 0.
const (
	BindingUniform = iota
	BindingEnvironment
	BindingEnvironmentSampler
	BindingDiffuse
	BindingDiffuseSampler
	BindingNormal
	BindingNormalSampler
	BindingGlossiness
	BindingGlossinessSampler
)

var materialCount atomic.Uint64

// Properties are the authored surface properties of a material. Colors are authored
// (non-linear) values; the uniform holds their linearized form.
//
// The material takes ownership of the 2D textures. The environment map is shared and is
// retained by each material that binds it.
type Properties struct {
	Name       string
	Ambient    common.Vec4
	Diffuse    common.Vec4
	Specular   common.Vec4
	Glossiness float32

	EnvironmentMap    *texture.Texture
	DiffuseTexture    *texture.Texture
	NormalTexture     *texture.Texture
	GlossinessTexture *texture.Texture
}

// DefaultProperties returns white ambient, diffuse and specular with glossiness 1 and no
// textures.
func DefaultProperties() Properties {
	return Properties{
		Ambient:    common.Vec4{1, 1, 1, 1},
		Diffuse:    common.Vec4{1, 1, 1, 1},
		Specular:   common.Vec4{1, 1, 1, 1},
		Glossiness: 1,
	}
}

type material struct {
	mu *sync.Mutex

	props     Properties
	signature string

	uniform   *uniform.Uniform[GPUMaterialUniform]
	layout    backend.BindGroupLayout
	bindGroup backend.BindGroup

	// bound textures, placeholders included, released with the material
	bound []*texture.Texture
}

// Material is a set of surface properties bound as group 0 of the model pipelines.
type Material interface {
	// Name returns the material name.
	Name() string

	// Properties returns a copy of the authored properties.
	Properties() Properties

	// Signature returns the texture-set signature shared by materials that can use the same
	// pipelines, for example "(env-map-1)(diffuse-3)(normal-5)(glossiness-7)".
	Signature() string

	// PipelineID returns the pipeline cache key for pass.
	//
	// Parameters:
	//   - pass: the pass kind
	//
	// Returns:
	//   - string: "model_ambient_[<signature>]" or "model_lit_[<signature>]"
	PipelineID(pass pipeline.Pass) string

	// VertexEntryPoint returns the vertex entry point used for pass.
	VertexEntryPoint(pass pipeline.Pass) string

	// FragmentEntryPoint returns the fragment entry point used for pass.
	FragmentEntryPoint(pass pipeline.Pass) string

	// ShaderName returns the shader library name of the model shader.
	ShaderName() string

	// SetAmbient linearizes and sets the ambient color.
	SetAmbient(color common.Vec4)

	// SetDiffuse linearizes and sets the diffuse color.
	SetDiffuse(color common.Vec4)

	// SetSpecular linearizes and sets the specular color.
	SetSpecular(color common.Vec4)

	// SetGlossiness sets the glossiness factor.
	SetGlossiness(glossiness float32)

	// Dirty reports whether the uniform needs uploading.
	Dirty() bool

	// Uniform returns the material uniform holder.
	Uniform() *uniform.Uniform[GPUMaterialUniform]

	// BindGroup returns the nine-binding group 0.
	BindGroup() backend.BindGroup

	// Layout returns the nine-binding group layout.
	Layout() backend.BindGroupLayout

	// PreparePipelines builds the ambient and lit pipelines for this material's signature
	// when the cache does not hold them yet. Calling it again is a no-op.
	//
	// Parameters:
	//   - ctx: the GPU context providing the device, cache and shader library
	//   - vertexBuffers: the vertex and instance buffer layouts of the meshes drawn with it
	//
	// Returns:
	//   - error: a shader load, layout or pipeline error
	PreparePipelines(ctx renderer.Context, vertexBuffers []wgpu.VertexBufferLayout) error

	// Update uploads the uniform when dirty.
	//
	// Parameters:
	//   - queue: the queue to write through
	//
	// Returns:
	//   - error: the write error; the uniform stays dirty
	Update(queue backend.Queue) error

	// Release frees the bind group, layout, uniform and textures.
	Release()
}

var _ Material = &material{}

// LayoutEntries returns the nine fragment-visible entries of group 0.
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: uniform, then view and sampler for the environment cube
//     and the diffuse, normal and glossiness textures
func LayoutEntries() []wgpu.BindGroupLayoutEntry {
	textureEntry := func(binding uint32, dim wgpu.TextureViewDimension) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: dim,
				Multisampled:  false,
			},
		}
	}
	samplerEntry := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		}
	}
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    BindingUniform,
			Visibility: wgpu.ShaderStageFragment,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		},
		textureEntry(BindingEnvironment, wgpu.TextureViewDimensionCube),
		samplerEntry(BindingEnvironmentSampler),
		textureEntry(BindingDiffuse, wgpu.TextureViewDimension2D),
		samplerEntry(BindingDiffuseSampler),
		textureEntry(BindingNormal, wgpu.TextureViewDimension2D),
		samplerEntry(BindingNormalSampler),
		textureEntry(BindingGlossiness, wgpu.TextureViewDimension2D),
		samplerEntry(BindingGlossinessSampler),
	}
}

// SignatureOf returns the pipeline signature for a texture set.
//
// Parameters:
//   - hasEnvironmentMap: whether an environment map is bound
//
// Returns:
//   - string: "(env-map-1)" when hasEnvironmentMap, followed by
//     "(diffuse-3)(normal-5)(glossiness-7)"
func SignatureOf(hasEnvironmentMap bool) string {
	var b strings.Builder
	if hasEnvironmentMap {
		fmt.Fprintf(&b, "(env-map-%d)", BindingEnvironment)
	}
	fmt.Fprintf(&b, "(diffuse-%d)(normal-%d)(glossiness-%d)", BindingDiffuse, BindingNormal, BindingGlossiness)
	return b.String()
}

// New creates a material, its uniform and its bind group. Missing textures are bound as
// 1x1 placeholders: white for the 2D slots and a black cube for the environment slot.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used to upload placeholders
//   - options: builder options setting the properties
//
// Returns:
//   - Material: the material
//   - error: an allocation error
func New(device backend.Device, queue backend.Queue, options ...MaterialBuilderOption) (Material, error) {
	m := &material{
		mu:    &sync.Mutex{},
		props: DefaultProperties(),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.props.Name == "" {
		m.props.Name = fmt.Sprintf("Material %d", materialCount.Add(1))
	}
	m.signature = SignatureOf(m.props.EnvironmentMap != nil)

	if err := m.allocate(device, queue); err != nil {
		m.Release()
		return nil, fmt.Errorf("material %q: %w", m.props.Name, err)
	}
	return m, nil
}

func (m *material) allocate(device backend.Device, queue backend.Queue) error {
	label := m.props.Name

	u, err := uniform.New[GPUMaterialUniform](device, label+" Uniform")
	if err != nil {
		return err
	}
	m.uniform = u
	m.uniform.Set(m.gpuData())

	env := m.props.EnvironmentMap
	if env != nil {
		env.Retain()
	} else if env, err = texture.NewPlaceholderCube(device, queue, label+" Environment Placeholder"); err != nil {
		return err
	}
	m.bound = append(m.bound, env)

	slots := []struct {
		tex  *texture.Texture
		name string
	}{
		{m.props.DiffuseTexture, "Diffuse"},
		{m.props.NormalTexture, "Normal"},
		{m.props.GlossinessTexture, "Glossiness"},
	}
	for _, slot := range slots {
		tex := slot.tex
		if tex == nil {
			tex, err = texture.NewPlaceholder(device, queue, label+" "+slot.name+" Placeholder", [4]uint8{255, 255, 255, 255})
			if err != nil {
				return err
			}
		}
		m.bound = append(m.bound, tex)
	}

	m.layout, err = device.CreateBindGroupLayout(backend.BindGroupLayoutDescriptor{
		Label:   label + " Layout",
		Entries: LayoutEntries(),
	})
	if err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	entries := []backend.BindGroupEntry{{Binding: BindingUniform, Buffer: u.Buffer()}}
	for i, tex := range m.bound {
		binding := uint32(BindingEnvironment + 2*i)
		entries = append(entries,
			backend.BindGroupEntry{Binding: binding, TextureView: tex.View()},
			backend.BindGroupEntry{Binding: binding + 1, Sampler: tex.Sampler()},
		)
	}
	m.bindGroup, err = device.CreateBindGroup(backend.BindGroupDescriptor{
		Label:   label + " Bind Group",
		Layout:  m.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("bind group: %w", err)
	}
	return nil
}

// gpuData must be called with m.mu held or before m is shared.
func (m *material) gpuData() GPUMaterialUniform {
	has := func(t *texture.Texture) float32 {
		if t != nil {
			return 1
		}
		return 0
	}
	return GPUMaterialUniform{
		Ambient:    common.Color4(m.props.Ambient),
		Diffuse:    common.Color4(m.props.Diffuse),
		Specular:   common.Color4(m.props.Specular),
		Glossiness: m.props.Glossiness,
		HasTextures: [4]float32{
			has(m.props.DiffuseTexture),
			has(m.props.NormalTexture),
			has(m.props.GlossinessTexture),
			0,
		},
	}
}

func (m *material) Name() string       { return m.props.Name }
func (m *material) Signature() string  { return m.signature }
func (m *material) ShaderName() string { return ShaderName }

func (m *material) Properties() Properties {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.props
}

func (m *material) PipelineID(pass pipeline.Pass) string {
	return fmt.Sprintf("model_%s_[%s]", pass, m.signature)
}

func (m *material) VertexEntryPoint(pipeline.Pass) string {
	return "vs_main"
}

func (m *material) FragmentEntryPoint(pass pipeline.Pass) string {
	if pass == pipeline.PassLit {
		return "fs_main_lit"
	}
	return "fs_main_ambient"
}

func (m *material) SetAmbient(color common.Vec4) {
	m.setColor(&m.props.Ambient, color)
}

func (m *material) SetDiffuse(color common.Vec4) {
	m.setColor(&m.props.Diffuse, color)
}

func (m *material) SetSpecular(color common.Vec4) {
	m.setColor(&m.props.Specular, color)
}

func (m *material) SetGlossiness(glossiness float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if common.ApproxEqual(m.props.Glossiness, glossiness) {
		return
	}
	m.props.Glossiness = glossiness
	m.uniform.Set(m.gpuData())
}

func (m *material) setColor(field *common.Vec4, color common.Vec4) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if common.ApproxEqual4(*field, color) {
		return
	}
	*field = color
	m.uniform.Set(m.gpuData())
}

func (m *material) Dirty() bool                                   { return m.uniform.Dirty() }
func (m *material) Uniform() *uniform.Uniform[GPUMaterialUniform] { return m.uniform }
func (m *material) BindGroup() backend.BindGroup                  { return m.bindGroup }
func (m *material) Layout() backend.BindGroupLayout               { return m.layout }

func (m *material) PreparePipelines(ctx renderer.Context, vertexBuffers []wgpu.VertexBufferLayout) error {
	device, cache := ctx.Device(), ctx.Cache()
	for _, pass := range []pipeline.Pass{pipeline.PassAmbient, pipeline.PassLit} {
		id := m.PipelineID(pass)
		if cache.Has(id) {
			continue
		}
		src, err := ctx.Shaders().Load(ShaderName)
		if err != nil {
			return fmt.Errorf("material %q: %w", m.props.Name, err)
		}
		if err := m.buildPipeline(device, cache, id, pass, src, vertexBuffers); err != nil {
			return fmt.Errorf("material %q: %w", m.props.Name, err)
		}
		logger.Debug("built model pipeline", "id", id, "material", m.props.Name)
	}
	return nil
}

func (m *material) buildPipeline(device backend.Device, cache pipeline.Cache, id string, pass pipeline.Pass, src string, vertexBuffers []wgpu.VertexBufferLayout) error {
	cameraLayout, err := uniform.NewLayout(device, id+" Camera")
	if err != nil {
		return err
	}
	defer cameraLayout.Release()
	lightLayout, err := uniform.NewLayout(device, id+" Light")
	if err != nil {
		return err
	}
	defer lightLayout.Release()

	layout, err := device.CreatePipelineLayout(backend.PipelineLayoutDescriptor{
		Label:            id + " Layout",
		BindGroupLayouts: []backend.BindGroupLayout{m.layout, cameraLayout, lightLayout},
	})
	if err != nil {
		return fmt.Errorf("pipeline layout %q: %w", id, err)
	}
	defer layout.Release()

	return cache.CreateRenderPipeline(id, device, pipeline.Properties{
		Pass:               pass,
		Layout:             layout,
		Shader:             src,
		ShaderLabel:        ShaderName,
		VertexEntryPoint:   m.VertexEntryPoint(pass),
		FragmentEntryPoint: m.FragmentEntryPoint(pass),
		VertexBuffers:      vertexBuffers,
		ColorFormat:        texture.ColorFormat,
		DepthFormat:        texture.DepthFormat,
	})
}

func (m *material) Update(queue backend.Queue) error {
	if _, err := m.uniform.Write(queue); err != nil {
		return fmt.Errorf("material %q: %w", m.props.Name, err)
	}
	return nil
}

func (m *material) Release() {
	if m.bindGroup != nil {
		m.bindGroup.Release()
	}
	if m.layout != nil {
		m.layout.Release()
	}
	if m.uniform != nil {
		m.uniform.Release()
	}
	for _, tex := range m.bound {
		tex.Release()
	}
	m.bound = nil
}
