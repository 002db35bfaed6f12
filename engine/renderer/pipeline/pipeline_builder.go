package pipeline

import "github.com/cogentcore/webgpu/wgpu"

// CacheBuilderOption is a functional option used to configure a Cache during construction.
type CacheBuilderOption func(*cache)

// WithDepthCompare sets the depth comparison used by every pipeline with a depth format.
// Lit passes only match the depth committed by the ambient pass under LessEqual, which is
// the default.
//
// Parameters:
//   - compare: the depth compare function
//
// Returns:
//   - CacheBuilderOption: a function that sets the depth compare function
func WithDepthCompare(compare wgpu.CompareFunction) CacheBuilderOption {
	return func(c *cache) {
		c.depthCompare = compare
	}
}

// WithCullMode sets the face culling mode. Defaults to back-face culling.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - CacheBuilderOption: a function that sets the cull mode
func WithCullMode(mode wgpu.CullMode) CacheBuilderOption {
	return func(c *cache) {
		c.cullMode = mode
	}
}

// WithFrontFace sets the winding treated as front-facing. Defaults to counter-clockwise.
//
// Parameters:
//   - face: the front face winding
//
// Returns:
//   - CacheBuilderOption: a function that sets the front face
func WithFrontFace(face wgpu.FrontFace) CacheBuilderOption {
	return func(c *cache) {
		c.frontFace = face
	}
}
