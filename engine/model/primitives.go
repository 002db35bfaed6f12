package model

import "github.com/Carmen-Shannon/oxy-forward/common"

type face struct {
	normal, u, v common.Vec3
}

// cubeFaces lists each face with in-plane axes chosen so that u × v = normal.
var cubeFaces = [6]face{
	{common.Vec3{1, 0, 0}, common.Vec3{0, 0, -1}, common.Vec3{0, 1, 0}},
	{common.Vec3{-1, 0, 0}, common.Vec3{0, 0, 1}, common.Vec3{0, 1, 0}},
	{common.Vec3{0, 1, 0}, common.Vec3{1, 0, 0}, common.Vec3{0, 0, -1}},
	{common.Vec3{0, -1, 0}, common.Vec3{1, 0, 0}, common.Vec3{0, 0, 1}},
	{common.Vec3{0, 0, 1}, common.Vec3{1, 0, 0}, common.Vec3{0, 1, 0}},
	{common.Vec3{0, 0, -1}, common.Vec3{-1, 0, 0}, common.Vec3{0, 1, 0}},
}

// appendQuad appends a counter-clockwise quad of half extent h centered at center.
func appendQuad(vertices []Vertex, indices []uint32, f face, center common.Vec3, h float32) ([]Vertex, []uint32) {
	base := uint32(len(vertices))
	corners := [4]struct {
		su, sv float32
		uv     [2]float32
	}{
		{-1, -1, [2]float32{0, 1}},
		{1, -1, [2]float32{1, 1}},
		{1, 1, [2]float32{1, 0}},
		{-1, 1, [2]float32{0, 0}},
	}
	for _, c := range corners {
		p := center.Add(f.u.Scale(c.su * h)).Add(f.v.Scale(c.sv * h))
		vertices = append(vertices, Vertex{Position: p, TexCoords: c.uv, Normal: f.normal})
	}
	indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	return vertices, indices
}

// Cube returns an axis-aligned cube of edge length size centered on the origin, with four
// vertices per face, outward normals, counter-clockwise winding and tangent frames.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - []Vertex: 24 vertices
//   - []uint32: 36 indices
func Cube(size float32) ([]Vertex, []uint32) {
	h := size / 2
	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range cubeFaces {
		vertices, indices = appendQuad(vertices, indices, f, f.normal.Scale(h), h)
	}
	ComputeTangents(vertices, indices)
	return vertices, indices
}

// Plane returns a square of edge length size on the XZ plane facing +Y.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - []Vertex: 4 vertices
//   - []uint32: 6 indices
func Plane(size float32) ([]Vertex, []uint32) {
	vertices, indices := appendQuad(nil, nil, cubeFaces[2], common.Vec3{}, size/2)
	ComputeTangents(vertices, indices)
	return vertices, indices
}
