package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// IncludeName is the @oxy:include name under which GPULightUniformSource is registered.
const IncludeName = "light"

// GPULightUniformSource is the canonical WGSL definition of the LightUniform struct.
// Matches GPULightUniform layout exactly (96 bytes).
//
//go:embed assets/light_uniform.wgsl
var GPULightUniformSource string

// GPULightUniform is the GPU-aligned representation of a single light. Every light type
// shares the layout; fields a type does not use are zero.
// Size: 96 bytes.
type GPULightUniform struct {
	Position    [3]float32 // offset  0: world-space position (point/spot)
	_pad0       float32    // offset 12
	Direction   [3]float32 // offset 16: unit direction (spot/directional)
	_pad1       float32    // offset 28
	Ambient     [3]float32 // offset 32: linear ambient color
	_pad2       float32    // offset 44
	Color       [3]float32 // offset 48: linear light color
	_pad3       float32    // offset 60
	Attenuation [4]float32 // offset 64: constant, linear, exponential, cos(spot breadth)
	Kind        int32      // offset 80: Type
	_pad4       [3]int32   // offset 84: padding to 96 bytes
}

// Size returns the size of the GPULightUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g GPULightUniform) Size() int {
	return int(unsafe.Sizeof(g))
}

// Marshal serializes the GPULightUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload
func (g GPULightUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	putVec3 := func(off int, v [3]float32) {
		for i := range 3 {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(v[i]))
		}
	}
	putVec3(0, g.Position)
	putVec3(16, g.Direction)
	putVec3(32, g.Ambient)
	putVec3(48, g.Color)
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.Attenuation[i]))
	}
	binary.LittleEndian.PutUint32(buf[80:], uint32(g.Kind))
	return buf
}
