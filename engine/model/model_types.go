package model

import (
	"github.com/Carmen-Shannon/oxy-forward/common"
)

// Instance places one copy of a model in the world.
type Instance struct {
	Position common.Vec3
	Rotation common.Quat
}

// Data returns the GPU record of the instance: model = T·R and normal = R.
//
// Returns:
//   - InstanceData: the packed matrices
func (i Instance) Data() InstanceData {
	rotation := i.Rotation
	if rotation == (common.Quat{}) {
		rotation = common.QuatIdentity()
	}
	r := rotation.Normalize().Mat3()
	return InstanceData{
		Model:  [16]float32(common.RigidTransform(r, i.Position)),
		Normal: [9]float32(r),
	}
}

// Grid lays out rows x cols unrotated instances on the XZ plane, spacing apart and centered
// on the origin.
//
// Parameters:
//   - rows, cols: the grid dimensions
//   - spacing: the distance between neighbours
//   - y: the height of the plane
//
// Returns:
//   - []Instance: the instances, row-major
func Grid(rows, cols int, spacing, y float32) []Instance {
	out := make([]Instance, 0, rows*cols)
	ox := float32(cols-1) * spacing / 2
	oz := float32(rows-1) * spacing / 2
	for r := range rows {
		for c := range cols {
			out = append(out, Instance{
				Position: common.Vec3{float32(c)*spacing - ox, y, float32(r)*spacing - oz},
				Rotation: common.QuatIdentity(),
			})
		}
	}
	return out
}

// --- Import Types ---

// ImportedModel represents a 3D model loaded from an external format before GPU upload.
// This is the universal format importers produce.
type ImportedModel struct {
	// Name is the model identifier.
	Name string

	// Meshes contains all mesh data.
	Meshes []ImportedMesh

	// Materials are the materials referenced by the meshes.
	Materials []common.ImportedMaterial
}

// ImportedMesh represents a single mesh within an imported model.
type ImportedMesh struct {
	// Name is the mesh identifier.
	Name string

	// Vertices are the mesh vertices with their tangent frames.
	Vertices []Vertex

	// Indices are the triangle indices.
	Indices []uint32

	// MaterialIndex references ImportedModel.Materials.
	MaterialIndex int
}
