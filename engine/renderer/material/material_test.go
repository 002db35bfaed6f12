package material

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/texture"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stubModelShader = `
//@oxy:include material
@group(0) @binding(0) var<uniform> material: MaterialUniform;
@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }
@fragment fn fs_main_ambient() -> @location(0) vec4<f32> { return material.diffuse; }
@fragment fn fs_main_lit() -> @location(0) vec4<f32> { return material.specular; }
`

func newTestContext(t *testing.T, files fstest.MapFS) (renderer.Context, *backendtest.Device) {
	t.Helper()
	device := backendtest.NewDevice()
	ctx, err := renderer.New(backendtest.NewSurface(), device, 640, 480,
		renderer.WithShaderFS(files),
		renderer.WithShaderIncludes(map[string]string{IncludeName: GPUMaterialUniformSource}),
	)
	require.NoError(t, err)
	return ctx, device
}

func stubFS() fstest.MapFS {
	return fstest.MapFS{"model.wgsl": {Data: []byte(stubModelShader)}}
}

var testVertexBuffers = []wgpu.VertexBufferLayout{{ArrayStride: 12, StepMode: wgpu.VertexStepModeVertex}}

func TestUniformMatchesWGSL(t *testing.T) {
	r := shader.Reflect(GPUMaterialUniformSource)
	assert.Equal(t, uint64(80), r.StructSizes["MaterialUniform"])
	assert.Equal(t, 80, GPUMaterialUniform{}.Size())
	assert.Len(t, GPUMaterialUniform{}.Marshal(), 80)
}

func TestNewWithoutTextures(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()

	m, err := New(device, queue, WithName("Plain"))
	require.NoError(t, err)

	assert.Equal(t, "(diffuse-3)(normal-5)(glossiness-7)", m.Signature())
	assert.Equal(t, "model_ambient_[(diffuse-3)(normal-5)(glossiness-7)]", m.PipelineID(pipeline.PassAmbient))
	assert.Equal(t, "model_lit_[(diffuse-3)(normal-5)(glossiness-7)]", m.PipelineID(pipeline.PassLit))
	assert.Equal(t, "vs_main", m.VertexEntryPoint(pipeline.PassLit))
	assert.Equal(t, "fs_main_ambient", m.FragmentEntryPoint(pipeline.PassAmbient))
	assert.Equal(t, "fs_main_lit", m.FragmentEntryPoint(pipeline.PassLit))
	assert.Equal(t, "model", m.ShaderName())

	env := device.TextureByLabel("Plain Environment Placeholder")
	require.NotNil(t, env)
	assert.Equal(t, uint32(6), env.Desc.Layers)
	assert.NotNil(t, device.TextureByLabel("Plain Diffuse Placeholder"))
	assert.Len(t, queue.TextureWrites, 9)

	group := device.BindGroups[len(device.BindGroups)-1]
	assert.Equal(t, "Plain Bind Group", group.Desc.Label)
	require.Len(t, group.Desc.Entries, 9)
	for i, e := range group.Desc.Entries {
		assert.Equal(t, uint32(i), e.Binding)
	}

	props := m.Properties()
	assert.Equal(t, common.Vec4{1, 1, 1, 1}, props.Specular)
	assert.Equal(t, float32(1), props.Glossiness)
	assert.Equal(t, [4]float32{0, 0, 0, 0}, m.Uniform().Get().HasTextures)
}

func TestLayoutIsFragmentOnly(t *testing.T) {
	entries := LayoutEntries()
	require.Len(t, entries, 9)
	for _, e := range entries {
		assert.Equal(t, wgpu.ShaderStageFragment, e.Visibility)
	}
	assert.Equal(t, wgpu.TextureViewDimensionCube, entries[BindingEnvironment].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureViewDimension2D, entries[BindingGlossiness].Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries[BindingNormalSampler].Sampler.Type)
}

func TestEnvironmentMapIsShared(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.Queue()
	env, err := texture.NewPlaceholderCube(device, queue, "Sky")
	require.NoError(t, err)
	diffuse, err := texture.NewPlaceholder(device, queue, "Bricks", [4]uint8{120, 60, 30, 255})
	require.NoError(t, err)

	a, err := New(device, queue, WithEnvironmentMap(env), WithDiffuseTexture(diffuse))
	require.NoError(t, err)
	b, err := New(device, queue, WithEnvironmentMap(env))
	require.NoError(t, err)

	assert.Equal(t, "(env-map-1)(diffuse-3)(normal-5)(glossiness-7)", a.Signature())
	assert.Equal(t, a.Signature(), b.Signature())
	assert.Equal(t, int32(3), env.Refs())
	assert.Equal(t, [4]float32{1, 0, 0, 0}, a.Uniform().Get().HasTextures)

	a.Release()
	b.Release()
	assert.Equal(t, int32(1), env.Refs())
	assert.False(t, device.TextureByLabel("Sky").Released)
	assert.True(t, device.TextureByLabel("Bricks").Released)
}

func TestSettersMarkDirty(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()
	m, err := New(device, queue, WithName("Paint"))
	require.NoError(t, err)

	require.NoError(t, m.Update(queue))
	assert.False(t, m.Dirty())

	m.SetDiffuse(common.Vec4{1, 1, 1, 1})
	assert.False(t, m.Dirty())

	m.SetDiffuse(common.Vec4{0.5, 1, 1, 0.5})
	assert.True(t, m.Dirty())
	require.NoError(t, m.Update(queue))

	writes := queue.WritesTo("Paint Uniform")
	require.Len(t, writes, 2)
	data := writes[1].Data
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(data[16:])))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(data[28:])))

	m.SetGlossiness(0.3)
	require.NoError(t, m.Update(queue))
	data = queue.WritesTo("Paint Uniform")[2].Data
	assert.InDelta(t, 0.3, math.Float32frombits(binary.LittleEndian.Uint32(data[48:])), 1e-6)
}

func TestPreparePipelines(t *testing.T) {
	ctx, device := newTestContext(t, stubFS())
	m, err := New(device, ctx.Queue())
	require.NoError(t, err)

	require.NoError(t, m.PreparePipelines(ctx, testVertexBuffers))
	assert.Equal(t, 2, ctx.Cache().Len())
	assert.True(t, ctx.Cache().Has(m.PipelineID(pipeline.PassAmbient)))

	ambient := device.PipelineByLabel(m.PipelineID(pipeline.PassAmbient))
	lit := device.PipelineByLabel(m.PipelineID(pipeline.PassLit))
	require.NotNil(t, ambient)
	require.NotNil(t, lit)
	assert.Equal(t, texture.ColorFormat, ambient.Desc.ColorFormat)
	assert.True(t, ambient.Desc.DepthStencil.DepthWriteEnabled)
	assert.False(t, lit.Desc.DepthStencil.DepthWriteEnabled)
	assert.Equal(t, wgpu.BlendFactorOne, lit.Desc.Blend.Color.DstFactor)
	assert.Equal(t, "fs_main_lit", lit.Desc.FragmentEntryPoint)
	assert.Equal(t, testVertexBuffers, lit.Desc.VertexBuffers)

	layout := device.PipelineLayouts[len(device.PipelineLayouts)-1]
	assert.Len(t, layout.Desc.BindGroupLayouts, 3)

	before := len(device.Pipelines)
	require.NoError(t, m.PreparePipelines(ctx, testVertexBuffers))
	other, err := New(device, ctx.Queue())
	require.NoError(t, err)
	require.NoError(t, other.PreparePipelines(ctx, testVertexBuffers))
	assert.Equal(t, before, len(device.Pipelines))
	assert.Equal(t, 2, ctx.Cache().Len())
}

func TestPreparePipelinesErrors(t *testing.T) {
	ctx, device := newTestContext(t, fstest.MapFS{})
	m, err := New(device, ctx.Queue())
	require.NoError(t, err)
	err = m.PreparePipelines(ctx, testVertexBuffers)
	assert.True(t, errors.Is(err, shader.ErrNotFound))

	ctx, device = newTestContext(t, stubFS())
	device.FailPipeline = func(label string) bool { return label == m.PipelineID(pipeline.PassLit) }
	m, err = New(device, ctx.Queue())
	require.NoError(t, err)
	assert.Error(t, m.PreparePipelines(ctx, testVertexBuffers))
	assert.True(t, ctx.Cache().Has(m.PipelineID(pipeline.PassAmbient)))
	assert.False(t, ctx.Cache().Has(m.PipelineID(pipeline.PassLit)))
}
