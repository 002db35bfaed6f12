package compositor

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// IncludeName is the @oxy:include name under which GPUCompositorUniformSource is registered.
const IncludeName = "compositor"

// GPUCompositorUniformSource is the canonical WGSL definition of the CompositorUniform struct.
// Matches GPUCompositorUniform layout exactly (16 bytes).
//
//go:embed assets/compositor_uniform.wgsl
var GPUCompositorUniformSource string

// GPUCompositorUniform carries the camera depth range and the attachment size.
// Size: 16 bytes.
type GPUCompositorUniform struct {
	ZNear  float32 // offset  0
	ZFar   float32 // offset  4
	Width  float32 // offset  8
	Height float32 // offset 12
}

// Size returns the size of the GPUCompositorUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g GPUCompositorUniform) Size() int {
	return int(unsafe.Sizeof(g))
}

// Marshal serializes the GPUCompositorUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g GPUCompositorUniform) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.ZNear))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.ZFar))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Width))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.Height))
	return buf
}
