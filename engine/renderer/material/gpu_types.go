package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// IncludeName is the @oxy:include name under which GPUMaterialUniformSource is registered.
const IncludeName = "material"

// GPUMaterialUniformSource is the canonical WGSL definition of the MaterialUniform struct.
// Matches GPUMaterialUniform layout exactly (80 bytes).
//
//go:embed assets/material_uniform.wgsl
var GPUMaterialUniformSource string

// GPUMaterialUniform is the GPU-aligned representation of a material's surface constants.
// HasTextures holds 1 or 0 per optional texture: diffuse, normal, glossiness, unused.
// Size: 80 bytes.
type GPUMaterialUniform struct {
	Ambient     [4]float32 // offset  0: linear ambient reflectance
	Diffuse     [4]float32 // offset 16: linear diffuse color, alpha kept
	Specular    [4]float32 // offset 32: linear specular color
	Glossiness  float32    // offset 48
	_pad        [3]float32 // offset 52
	HasTextures [4]float32 // offset 64
}

// Size returns the size of the GPUMaterialUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g GPUMaterialUniform) Size() int {
	return int(unsafe.Sizeof(g))
}

// Marshal serializes the GPUMaterialUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g GPUMaterialUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	putVec4 := func(off int, v [4]float32) {
		for i := range 4 {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(v[i]))
		}
	}
	putVec4(0, g.Ambient)
	putVec4(16, g.Diffuse)
	putVec4(32, g.Specular)
	binary.LittleEndian.PutUint32(buf[48:], math.Float32bits(g.Glossiness))
	putVec4(64, g.HasTextures)
	return buf
}
