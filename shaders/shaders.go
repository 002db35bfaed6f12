// Package shaders embeds the renderer's WGSL sources. Each file is loaded by name (without
// the .wgsl extension) through a shader.Library.
package shaders

import "embed"

const (
	Model      = "model"
	Compositor = "compositor"
)

//go:embed *.wgsl
var FS embed.FS
