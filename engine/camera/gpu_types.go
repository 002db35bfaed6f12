package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// IncludeName is the @oxy:include name under which GPUCameraUniformSource is registered.
const IncludeName = "camera"

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (80 bytes).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// Size: 80 bytes.
type GPUCameraUniform struct {
	ViewPosition [4]float32  // offset  0: world-space eye position, w = 1 (vec4<f32>)
	ViewProj     [16]float32 // offset 16: projection · view (mat4x4<f32>)
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ViewPosition[i]))
	}
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.ViewProj[i]))
	}
	return buf
}
