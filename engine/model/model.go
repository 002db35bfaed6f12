// Package model holds instanced meshes: the vertex and instance layouts shared with the
// model shader, meshes with their materials, the per-model instance buffer, and the draw
// loop the scene runs once per model and light.
package model

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/material"
	"github.com/cogentcore/webgpu/wgpu"
)

// modelCount is an atomic counter used to generate unique labels for each model.
var modelCount atomic.Uint64

type model struct {
	mu *sync.Mutex

	name           string
	meshes         []*Mesh
	materials      []material.Material
	instances      []Instance
	instanceBuffer backend.Buffer
	dirty          bool
}

// Model is a set of meshes and their materials drawn once per instance.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the name of the model
	Name() string

	// Meshes retrieves the meshes of the model.
	//
	// Returns:
	//   - []*Mesh: the meshes
	Meshes() []*Mesh

	// Materials retrieves the materials the meshes index into.
	//
	// Returns:
	//   - []material.Material: the materials
	Materials() []material.Material

	// Instances returns a copy of the instances.
	//
	// Returns:
	//   - []Instance: the instances
	Instances() []Instance

	// InstanceCount returns the number of instances drawn.
	InstanceCount() uint32

	// InstanceBuffer returns the per-instance vertex buffer bound at slot 1.
	InstanceBuffer() backend.Buffer

	// UpdateInstance replaces instance i. Out-of-range indices are ignored.
	//
	// Parameters:
	//   - i: the instance index
	//   - instance: the new value
	//
	// Returns:
	//   - bool: true if the instance was written
	UpdateInstance(i int, instance Instance) bool

	// UpdateInstances replaces several instances. Out-of-range indices are ignored; the model
	// is marked dirty only if at least one instance was written.
	//
	// Parameters:
	//   - updates: instance index to new value
	//
	// Returns:
	//   - int: the number of instances written
	UpdateInstances(updates map[int]Instance) int

	// Dirty reports whether the instance buffer needs uploading.
	Dirty() bool

	// Update repacks and writes the whole instance buffer when dirty, then flushes every
	// material uniform.
	//
	// Parameters:
	//   - queue: the queue to write through
	//
	// Returns:
	//   - error: the first write error; the model stays dirty on failure
	Update(queue backend.Queue) error

	// PreparePipelines prepares the pipelines of every material.
	//
	// Parameters:
	//   - ctx: the GPU context
	//
	// Returns:
	//   - error: the first material error
	PreparePipelines(ctx renderer.Context) error

	// Release frees the meshes, materials and instance buffer.
	Release()
}

var _ Model = &model{}

// New creates a model over meshes and materials with an instance buffer holding instances.
// The instance data is uploaded immediately.
//
// Parameters:
//   - device: the device to allocate on
//   - queue: the queue used for the initial upload
//   - meshes: the meshes; each Material must index materials
//   - materials: the materials
//   - instances: the initial instances
//   - options: builder options
//
// Returns:
//   - Model: the model
//   - error: an error for a mesh with an invalid material index, or an allocation error
func New(device backend.Device, queue backend.Queue, meshes []*Mesh, materials []material.Material, instances []Instance, options ...ModelBuilderOption) (Model, error) {
	m := &model{
		mu:        &sync.Mutex{},
		meshes:    meshes,
		materials: materials,
		instances: append([]Instance(nil), instances...),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.name == "" {
		m.name = fmt.Sprintf("Model %d", modelCount.Add(1))
	}
	for _, mesh := range meshes {
		if mesh.Material < 0 || mesh.Material >= len(materials) {
			return nil, fmt.Errorf("model %q: mesh %q references material %d of %d", m.name, mesh.Name, mesh.Material, len(materials))
		}
	}

	stride := uint64(InstanceData{}.Size())
	buffer, err := device.CreateBuffer(backend.BufferDescriptor{
		Label: m.name + " Instance Buffer",
		Size:  stride * uint64(max(len(instances), 1)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("model %q: instance buffer: %w", m.name, err)
	}
	m.instanceBuffer = buffer

	if len(m.instances) > 0 {
		if err := queue.WriteBuffer(buffer, 0, m.packInstances()); err != nil {
			buffer.Release()
			return nil, fmt.Errorf("model %q: instance upload: %w", m.name, err)
		}
	}
	return m, nil
}

func (m *model) packInstances() []byte {
	buf := make([]byte, 0, len(m.instances)*InstanceData{}.Size())
	for _, inst := range m.instances {
		buf = inst.Data().appendTo(buf)
	}
	return buf
}

func (m *model) Name() string                   { return m.name }
func (m *model) Meshes() []*Mesh                { return m.meshes }
func (m *model) Materials() []material.Material { return m.materials }
func (m *model) InstanceBuffer() backend.Buffer { return m.instanceBuffer }

func (m *model) Instances() []Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Instance(nil), m.instances...)
}

func (m *model) InstanceCount() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint32(len(m.instances))
}

func (m *model) UpdateInstance(i int, instance Instance) bool {
	return m.UpdateInstances(map[int]Instance{i: instance}) == 1
}

func (m *model) UpdateInstances(updates map[int]Instance) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	written := 0
	for i, inst := range updates {
		if i < 0 || i >= len(m.instances) {
			continue
		}
		m.instances[i] = inst
		written++
	}
	if written > 0 {
		m.dirty = true
	}
	return written
}

func (m *model) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

func (m *model) Update(queue backend.Queue) error {
	m.mu.Lock()
	if m.dirty {
		if err := queue.WriteBuffer(m.instanceBuffer, 0, m.packInstances()); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("model %q: instance write: %w", m.name, err)
		}
		m.dirty = false
	}
	m.mu.Unlock()

	for _, mat := range m.materials {
		if err := mat.Update(queue); err != nil {
			return fmt.Errorf("model %q: %w", m.name, err)
		}
	}
	return nil
}

func (m *model) PreparePipelines(ctx renderer.Context) error {
	layouts := VertexBufferLayouts()
	for _, mat := range m.materials {
		if err := mat.PreparePipelines(ctx, layouts); err != nil {
			return fmt.Errorf("model %q: %w", m.name, err)
		}
	}
	return nil
}

func (m *model) Release() {
	for _, mesh := range m.meshes {
		mesh.Release()
	}
	for _, mat := range m.materials {
		mat.Release()
	}
	m.instanceBuffer.Release()
}
