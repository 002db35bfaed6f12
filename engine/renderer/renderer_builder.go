package renderer

import (
	"io/fs"
	"maps"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/shader"
)

// ContextBuilderOption is a functional option applied to a Context during construction.
type ContextBuilderOption func(*gpuContext)

// WithPresentMode sets the surface present mode.
//
// Parameters:
//   - mode: the PresentMode to use (VSync by default)
//
// Returns:
//   - ContextBuilderOption: a function that applies the present mode option
func WithPresentMode(mode PresentMode) ContextBuilderOption {
	return func(c *gpuContext) {
		c.presentMode = mode
	}
}

// WithForceSoftwareRenderer requests the fallback (CPU) adapter from NewWGPU.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - ContextBuilderOption: a function that applies the option
func WithForceSoftwareRenderer(force bool) ContextBuilderOption {
	return func(c *gpuContext) {
		c.forceFallbackAdapter = force
	}
}

// WithPipelineCache replaces the default pipeline cache.
func WithPipelineCache(cache pipeline.Cache) ContextBuilderOption {
	return func(c *gpuContext) {
		c.cache = cache
	}
}

// WithShaderLibrary replaces the default shader library. Options that configure the default
// library (WithShaderFS, WithShaderIncludes, WithShaderValidation) are ignored when set.
func WithShaderLibrary(library shader.Library) ContextBuilderOption {
	return func(c *gpuContext) {
		c.shaders = library
	}
}

// WithShaderFS replaces the embedded shader sources, for example with os.DirFS of a shader
// directory during development.
func WithShaderFS(fsys fs.FS) ContextBuilderOption {
	return func(c *gpuContext) {
		c.shaderFS = fsys
	}
}

// WithShaderIncludes registers @oxy:include sources with the default shader library.
//
// Parameters:
//   - includes: include name to WGSL source
//
// Returns:
//   - ContextBuilderOption: a function that registers the includes
func WithShaderIncludes(includes map[string]string) ContextBuilderOption {
	return func(c *gpuContext) {
		maps.Copy(c.shaderIncludes, includes)
	}
}

// WithShaderValidation enables naga validation in the default shader library.
func WithShaderValidation(validate bool) ContextBuilderOption {
	return func(c *gpuContext) {
		c.validateShaders = validate
	}
}
