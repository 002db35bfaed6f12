package model

import (
	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// BindGroupSource is anything exposing a bind group, such as a camera or a light.
type BindGroupSource interface {
	BindGroup() backend.BindGroup
}

// Bind groups of the model pipelines.
const (
	GroupMaterial = 0
	GroupCamera   = 1
	GroupLight    = 2
)

// DrawModel records one draw per mesh of m for the given pass. Meshes whose material has no
// cached pipeline for pass are skipped with a warning.
//
// Parameters:
//   - rp: the render pass to record into
//   - cache: the pipeline cache
//   - m: the model to draw
//   - camera: the camera bound as group 1
//   - light: the light bound as group 2
//   - pass: the pass kind selecting the material pipelines
//
// Returns:
//   - int: the number of meshes drawn
func DrawModel(rp backend.RenderPass, cache pipeline.Cache, m Model, camera, light BindGroupSource, pass pipeline.Pass) int {
	instances := m.InstanceCount()
	materials := m.Materials()
	drawn := 0
	for _, mesh := range m.Meshes() {
		mat := materials[mesh.Material]
		id := mat.PipelineID(pass)
		p, ok := cache.Get(id)
		if !ok {
			logger.Warn("no pipeline for mesh, skipping draw", "pipeline", id, "model", m.Name(), "mesh", mesh.Name)
			continue
		}
		rp.SetPipeline(p)
		rp.SetVertexBuffer(VertexSlot, mesh.VertexBuffer)
		rp.SetVertexBuffer(InstanceSlot, m.InstanceBuffer())
		rp.SetIndexBuffer(mesh.IndexBuffer, wgpu.IndexFormatUint32)
		rp.SetBindGroup(GroupMaterial, mat.BindGroup())
		rp.SetBindGroup(GroupCamera, camera.BindGroup())
		rp.SetBindGroup(GroupLight, light.BindGroup())
		rp.DrawIndexed(mesh.IndexCount, instances)
		drawn++
	}
	return drawn
}
