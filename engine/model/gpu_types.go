package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
)

// IncludeName is the @oxy:include name under which GPUModelIOSource is registered.
const IncludeName = "model_io"

// GPUModelIOSource is the canonical WGSL definition of the VertexInput and InstanceInput
// structs. Matches Vertex (56 bytes) and InstanceData (100 bytes) exactly.
//
//go:embed assets/model_io.wgsl
var GPUModelIOSource string

// Vertex buffer slots.
const (
	VertexSlot   = 0
	InstanceSlot = 1
)

// Vertex is the GPU representation of a single mesh vertex, tightly packed.
// Size: 56 bytes.
type Vertex struct {
	Position  [3]float32 // offset  0, location 0
	TexCoords [2]float32 // offset 12, location 1
	Normal    [3]float32 // offset 20, location 2
	Tangent   [3]float32 // offset 32, location 3
	Bitangent [3]float32 // offset 44, location 4
}

// Size returns the size of the Vertex struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (56)
func (v Vertex) Size() int {
	return int(unsafe.Sizeof(v))
}

// Marshal serializes the vertex into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 56-byte buffer
func (v Vertex) Marshal() []byte {
	return v.appendTo(make([]byte, 0, v.Size()))
}

func (v Vertex) appendTo(buf []byte) []byte {
	buf = appendFloats(buf, v.Position[:]...)
	buf = appendFloats(buf, v.TexCoords[:]...)
	buf = appendFloats(buf, v.Normal[:]...)
	buf = appendFloats(buf, v.Tangent[:]...)
	return appendFloats(buf, v.Bitangent[:]...)
}

// InstanceData is the per-instance GPU record: the column-major model matrix followed by
// the column-major 3x3 normal matrix, tightly packed.
// Size: 100 bytes.
type InstanceData struct {
	Model  [16]float32 // offset  0, locations 5..8
	Normal [9]float32  // offset 64, locations 9..11
}

// Size returns the size of the InstanceData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (100)
func (d InstanceData) Size() int {
	return int(unsafe.Sizeof(d))
}

// Marshal serializes the instance record into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 100-byte buffer
func (d InstanceData) Marshal() []byte {
	return d.appendTo(make([]byte, 0, d.Size()))
}

func (d InstanceData) appendTo(buf []byte) []byte {
	buf = appendFloats(buf, d.Model[:]...)
	return appendFloats(buf, d.Normal[:]...)
}

// MarshalVertices packs vertices back to back.
func MarshalVertices(vertices []Vertex) []byte {
	buf := make([]byte, 0, len(vertices)*Vertex{}.Size())
	for _, v := range vertices {
		buf = v.appendTo(buf)
	}
	return buf
}

// MarshalIndices packs 32-bit indices in little-endian order.
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, 4*len(indices))
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

func appendFloats(buf []byte, values ...float32) []byte {
	for _, f := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// VertexBufferLayouts returns the two buffer layouts every model pipeline uses: slot 0 steps
// per vertex (locations 0..4), slot 1 steps per instance (locations 5..11).
//
// Returns:
//   - []wgpu.VertexBufferLayout: the vertex and instance layouts, in slot order
func VertexBufferLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{
		{
			ArrayStride: uint64(Vertex{}.Size()),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 20, ShaderLocation: 2},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 32, ShaderLocation: 3},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 44, ShaderLocation: 4},
			},
		},
		{
			ArrayStride: uint64(InstanceData{}.Size()),
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 5},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 6},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 7},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 48, ShaderLocation: 8},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 64, ShaderLocation: 9},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 76, ShaderLocation: 10},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 88, ShaderLocation: 11},
			},
		},
	}
}
