// Package pipeline holds the render pipeline cache. Pipelines are keyed by a caller-built
// name; the cache derives depth-write and blend state from the pass kind so that every
// ambient pipeline overwrites and writes depth while every lit pipeline accumulates.
package pipeline

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Pass identifies which sub-pass of the forward renderer a pipeline serves.
type Pass int

const (
	// PassAmbient is the first sub-pass: REPLACE blending with depth writes.
	PassAmbient Pass = iota

	// PassLit is an accumulation sub-pass: additive color with depth writes disabled.
	PassLit
)

func (p Pass) String() string {
	switch p {
	case PassAmbient:
		return "ambient"
	case PassLit:
		return "lit"
	default:
		return fmt.Sprintf("pass(%d)", int(p))
	}
}

// Properties is everything the cache needs to build one render pipeline.
type Properties struct {
	Pass               Pass
	Layout             backend.PipelineLayout
	Shader             string
	ShaderLabel        string
	VertexEntryPoint   string
	FragmentEntryPoint string
	VertexBuffers      []wgpu.VertexBufferLayout
	ColorFormat        wgpu.TextureFormat

	// DepthFormat enables the depth-stencil state when set.
	DepthFormat wgpu.TextureFormat

	// DisableCulling overrides the cache's cull mode with CullModeNone, for fullscreen passes.
	DisableCulling bool
}

var (
	blendReplace = wgpu.BlendState{
		Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorZero, Operation: wgpu.BlendOperationAdd},
		Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorZero, Operation: wgpu.BlendOperationAdd},
	}
	blendAdditive = wgpu.BlendState{
		Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
		Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
	}
)

// BlendReplace returns the overwrite blend state.
func BlendReplace() wgpu.BlendState { return blendReplace }

// BlendFor returns the blend state used for pass.
//
// Parameters:
//   - pass: the pass kind
//
// Returns:
//   - wgpu.BlendState: REPLACE for ambient, additive color with alpha-over for lit
func BlendFor(pass Pass) wgpu.BlendState {
	if pass == PassLit {
		return blendAdditive
	}
	return blendReplace
}

// DepthWriteFor reports whether pipelines for pass write depth.
func DepthWriteFor(pass Pass) bool {
	return pass != PassLit
}

type cache struct {
	mu *sync.Mutex

	depthCompare wgpu.CompareFunction
	cullMode     wgpu.CullMode
	frontFace    wgpu.FrontFace

	pipelines map[string]backend.RenderPipeline
	passes    map[string]Pass
}

// Cache maps pipeline names to compiled render pipelines. Entries are never evicted.
type Cache interface {
	// CreateRenderPipeline compiles props.Shader and builds a pipeline under name. If name is
	// already present the call does nothing and returns nil.
	//
	// Parameters:
	//   - name: the cache key
	//   - device: the device to build on
	//   - props: the pipeline properties
	//
	// Returns:
	//   - error: a shader module or pipeline creation error
	CreateRenderPipeline(name string, device backend.Device, props Properties) error

	// Has reports whether name is cached.
	Has(name string) bool

	// Get returns the pipeline cached under name.
	//
	// Returns:
	//   - backend.RenderPipeline: the pipeline
	//   - bool: false when absent
	Get(name string) (backend.RenderPipeline, bool)

	// PassOf returns the pass kind a cached pipeline was built for.
	PassOf(name string) (Pass, bool)

	// Len returns the number of cached pipelines.
	Len() int

	// Names returns the cached names, sorted.
	Names() []string

	// Release frees every cached pipeline and empties the cache.
	Release()
}

var _ Cache = &cache{}

// NewCache creates an empty Cache.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Cache: the cache
func NewCache(options ...CacheBuilderOption) Cache {
	c := &cache{
		mu:           &sync.Mutex{},
		depthCompare: wgpu.CompareFunctionLessEqual,
		cullMode:     wgpu.CullModeBack,
		frontFace:    wgpu.FrontFaceCCW,
		pipelines:    map[string]backend.RenderPipeline{},
		passes:       map[string]Pass{},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *cache) CreateRenderPipeline(name string, device backend.Device, props Properties) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pipelines[name]; ok {
		return nil
	}

	module, err := device.CreateShaderModule(backend.ShaderModuleDescriptor{
		Label: props.ShaderLabel,
		Code:  props.Shader,
	})
	if err != nil {
		return fmt.Errorf("pipeline %q: shader module: %w", name, err)
	}
	defer module.Release()

	blend := BlendFor(props.Pass)
	cullMode := c.cullMode
	if props.DisableCulling {
		cullMode = wgpu.CullModeNone
	}
	desc := backend.RenderPipelineDescriptor{
		Label:              name,
		Layout:             props.Layout,
		Module:             module,
		VertexEntryPoint:   props.VertexEntryPoint,
		FragmentEntryPoint: props.FragmentEntryPoint,
		VertexBuffers:      props.VertexBuffers,
		ColorFormat:        props.ColorFormat,
		Blend:              &blend,
		WriteMask:          wgpu.ColorWriteMaskAll,
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: c.frontFace,
			CullMode:  cullMode,
		},
		SampleCount: 1,
	}
	if props.DepthFormat != wgpu.TextureFormatUndefined {
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:              props.DepthFormat,
			DepthWriteEnabled:   DepthWriteFor(props.Pass),
			DepthCompare:        c.depthCompare,
			DepthBias:           0,
			DepthBiasSlopeScale: 0,
			StencilFront:        wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:         wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	p, err := device.CreateRenderPipeline(desc)
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", name, err)
	}
	c.pipelines[name] = p
	c.passes[name] = props.Pass
	return nil
}

func (c *cache) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pipelines[name]
	return ok
}

func (c *cache) Get(name string) (backend.RenderPipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pipelines[name]
	return p, ok
}

func (c *cache) PassOf(name string) (Pass, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.passes[name]
	return p, ok
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pipelines)
}

func (c *cache) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.pipelines))
	for name := range c.pipelines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, p := range c.pipelines {
		p.Release()
		delete(c.pipelines, name)
		delete(c.passes, name)
	}
}
