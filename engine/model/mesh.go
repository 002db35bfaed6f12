package model

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Mesh is an indexed triangle list on the GPU drawn with one material of its model.
type Mesh struct {
	Name         string
	VertexBuffer backend.Buffer
	IndexBuffer  backend.Buffer
	IndexCount   uint32

	// Material indexes the owning model's materials.
	Material int
}

// NewMesh uploads vertices and 32-bit indices into new vertex and index buffers.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used for the upload
//   - name: the mesh name, used for buffer labels
//   - vertices: the vertices
//   - indices: the triangle indices
//   - material: the index of the mesh's material within its model
//
// Returns:
//   - *Mesh: the mesh
//   - error: an error for empty geometry, allocation or upload failures
func NewMesh(device backend.Device, queue backend.Queue, name string, vertices []Vertex, indices []uint32, material int) (*Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("mesh %q: empty geometry", name)
	}

	vertexData := MarshalVertices(vertices)
	vb, err := device.CreateBuffer(backend.BufferDescriptor{
		Label: name + " Vertex Buffer",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("mesh %q: vertex buffer: %w", name, err)
	}
	if err := queue.WriteBuffer(vb, 0, vertexData); err != nil {
		vb.Release()
		return nil, fmt.Errorf("mesh %q: vertex upload: %w", name, err)
	}

	indexData := MarshalIndices(indices)
	ib, err := device.CreateBuffer(backend.BufferDescriptor{
		Label: name + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vb.Release()
		return nil, fmt.Errorf("mesh %q: index buffer: %w", name, err)
	}
	if err := queue.WriteBuffer(ib, 0, indexData); err != nil {
		vb.Release()
		ib.Release()
		return nil, fmt.Errorf("mesh %q: index upload: %w", name, err)
	}

	return &Mesh{
		Name:         name,
		VertexBuffer: vb,
		IndexBuffer:  ib,
		IndexCount:   uint32(len(indices)),
		Material:     material,
	}, nil
}

// Release frees the vertex and index buffers.
func (m *Mesh) Release() {
	m.VertexBuffer.Release()
	m.IndexBuffer.Release()
}
