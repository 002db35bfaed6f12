package model

import (
	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/chewxy/math32"
)

// degenerateUV is the smallest absolute UV determinant treated as a usable triangle.
const degenerateUV = 1e-8

// ComputeTangents fills the tangent and bitangent of every vertex from the triangles that
// reference it. Per-triangle frames are accumulated and normalized; triangles with a
// degenerate UV mapping are skipped. Vertices left without a frame get an arbitrary one
// orthogonal to their normal.
//
// Parameters:
//   - vertices: the vertices, updated in place
//   - indices: the triangle list indices
func ComputeTangents(vertices []Vertex, indices []uint32) {
	tangents := make([]common.Vec3, len(vertices))
	bitangents := make([]common.Vec3, len(vertices))

	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		if int(max(i0, i1, i2)) >= len(vertices) {
			continue
		}
		v0, v1, v2 := vertices[i0], vertices[i1], vertices[i2]

		dp1 := common.Vec3(v1.Position).Sub(v0.Position)
		dp2 := common.Vec3(v2.Position).Sub(v0.Position)
		du1, dv1 := v1.TexCoords[0]-v0.TexCoords[0], v1.TexCoords[1]-v0.TexCoords[1]
		du2, dv2 := v2.TexCoords[0]-v0.TexCoords[0], v2.TexCoords[1]-v0.TexCoords[1]

		det := du1*dv2 - dv1*du2
		if math32.Abs(det) < degenerateUV {
			continue
		}
		r := 1 / det
		tangent := dp1.Scale(dv2).Sub(dp2.Scale(dv1)).Scale(r)
		bitangent := dp2.Scale(du1).Sub(dp1.Scale(du2)).Scale(r)

		for _, i := range [3]uint32{i0, i1, i2} {
			tangents[i] = tangents[i].Add(tangent)
			bitangents[i] = bitangents[i].Add(bitangent)
		}
	}

	for i := range vertices {
		n := common.Vec3(vertices[i].Normal).Normalize()
		t := tangents[i].Normalize()
		b := bitangents[i].Normalize()
		if t == (common.Vec3{}) || b == (common.Vec3{}) {
			t, b = orthogonalFrame(n)
		}
		vertices[i].Tangent = t
		vertices[i].Bitangent = b
	}
}

// orthogonalFrame returns two unit vectors completing n to an orthonormal basis.
func orthogonalFrame(n common.Vec3) (common.Vec3, common.Vec3) {
	if n == (common.Vec3{}) {
		return common.Vec3{1, 0, 0}, common.Vec3{0, 1, 0}
	}
	helper := common.Vec3{0, 1, 0}
	if math32.Abs(n[1]) > 0.9 {
		helper = common.Vec3{1, 0, 0}
	}
	t := helper.Cross(n).Normalize()
	return t, n.Cross(t)
}
