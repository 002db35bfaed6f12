package material

import (
	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/texture"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithProperties is an option builder that replaces every property at once.
//
// Parameters:
//   - props: the material properties
//
// Returns:
//   - MaterialBuilderOption: a function that applies the properties to a material
func WithProperties(props Properties) MaterialBuilderOption {
	return func(m *material) {
		m.props = props
	}
}

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.props.Name = name
	}
}

// WithAmbient is an option builder that sets the authored ambient color.
//
// Parameters:
//   - color: the ambient color as RGBA values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the ambient color to a material
func WithAmbient(color common.Vec4) MaterialBuilderOption {
	return func(m *material) {
		m.props.Ambient = color
	}
}

// WithDiffuse is an option builder that sets the authored diffuse color.
//
// Parameters:
//   - color: the diffuse color as RGBA values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the diffuse color to a material
func WithDiffuse(color common.Vec4) MaterialBuilderOption {
	return func(m *material) {
		m.props.Diffuse = color
	}
}

// WithSpecular is an option builder that sets the authored specular color.
//
// Parameters:
//   - color: the specular color as RGBA values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the specular color to a material
func WithSpecular(color common.Vec4) MaterialBuilderOption {
	return func(m *material) {
		m.props.Specular = color
	}
}

// WithGlossiness is an option builder that sets the glossiness factor.
func WithGlossiness(glossiness float32) MaterialBuilderOption {
	return func(m *material) {
		m.props.Glossiness = glossiness
	}
}

// WithEnvironmentMap is an option builder that binds a shared environment cubemap. The
// material retains it.
func WithEnvironmentMap(env *texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.props.EnvironmentMap = env
	}
}

// WithDiffuseTexture is an option builder that binds a diffuse texture. The material takes
// ownership of it.
func WithDiffuseTexture(tex *texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.props.DiffuseTexture = tex
	}
}

// WithNormalTexture is an option builder that binds a tangent-space normal map. The
// material takes ownership of it.
func WithNormalTexture(tex *texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.props.NormalTexture = tex
	}
}

// WithGlossinessTexture is an option builder that binds a glossiness texture read from its
// red channel. The material takes ownership of it.
func WithGlossinessTexture(tex *texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.props.GlossinessTexture = tex
	}
}
