package common

import (
	"github.com/chewxy/math32"
)

// Vec3 is a 3-component float32 vector.
type Vec3 [3]float32

// Vec4 is a 4-component float32 vector.
type Vec4 [4]float32

// Quat is a unit quaternion stored as (x, y, z, w).
type Quat [4]float32

// Mat3 is a 3x3 matrix stored in column-major order.
type Mat3 [9]float32

// Mat4 is a 4x4 matrix stored in column-major order.
type Mat4 [16]float32

// DepthRemap maps OpenGL clip-space depth [-1, 1] into the WebGPU range [0, 1].
// Row-major it reads [[1,0,0,0],[0,1,0,0],[0,0,0.5,0.5],[0,0,0,1]]; stored here column-major.
var DepthRemap = Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// WorldUp is the +Y axis used as the yaw axis for cameras and controllers.
var WorldUp = Vec3{0, 1, 0}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

// Scale returns v * s.
func (v Vec3) Scale(s float32) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

// Neg returns -v.
func (v Vec3) Neg() Vec3 { return Vec3{-v[0], -v[1], -v[2]} }

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float32 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// LengthSquared returns |v|².
func (v Vec3) LengthSquared() float32 { return v.Dot(v) }

// Length returns |v|.
func (v Vec3) Length() float32 { return math32.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length. A zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Vec4 extends v with the given w component.
func (v Vec3) Vec4(w float32) Vec4 { return Vec4{v[0], v[1], v[2], w} }

// XYZ drops the w component of v.
func (v Vec4) XYZ() Vec3 { return Vec3{v[0], v[1], v[2]} }

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Identity4 returns the 4x4 identity matrix.
func Identity4() Mat4 {
	return Mat4{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

// Mat3FromColumns builds a 3x3 matrix from three column vectors.
func Mat3FromColumns(c0, c1, c2 Vec3) Mat3 {
	return Mat3{c0[0], c0[1], c0[2], c1[0], c1[1], c1[2], c2[0], c2[1], c2[2]}
}

// Col returns column i of m.
func (m Mat3) Col(i int) Vec3 { return Vec3{m[i*3], m[i*3+1], m[i*3+2]} }

// MulVec returns m · v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[3]*v[1] + m[6]*v[2],
		m[1]*v[0] + m[4]*v[1] + m[7]*v[2],
		m[2]*v[0] + m[5]*v[1] + m[8]*v[2],
	}
}

// Mul returns m · o.
func (m Mat3) Mul(o Mat3) Mat3 {
	return Mat3FromColumns(m.MulVec(o.Col(0)), m.MulVec(o.Col(1)), m.MulVec(o.Col(2)))
}

// Orthonormalize runs Gram-Schmidt over the columns of m, keeping the direction of the
// third (forward) column and rebuilding right and up from it.
func (m Mat3) Orthonormalize() Mat3 {
	forward := m.Col(2).Normalize()
	up := m.Col(1)
	up = up.Sub(forward.Scale(up.Dot(forward))).Normalize()
	right := up.Cross(forward)
	return Mat3FromColumns(right, up, forward)
}

// AxisAngle3 returns the rotation matrix of angle radians about the unit axis.
//
// Parameters:
//   - axis: the rotation axis, expected to be unit length
//   - angle: the rotation angle in radians (counter-clockwise when looking down the axis)
//
// Returns:
//   - Mat3: the column-major rotation matrix
func AxisAngle3(axis Vec3, angle float32) Mat3 {
	s, c := math32.Sincos(angle)
	t := 1 - c
	x, y, z := axis[0], axis[1], axis[2]
	return Mat3{
		t*x*x + c, t*x*y + s*z, t*x*z - s*y,
		t*x*y - s*z, t*y*y + c, t*y*z + s*x,
		t*x*z + s*y, t*y*z - s*x, t*z*z + c,
	}
}

// QuatFromAxisAngle returns the quaternion rotating angle radians about the unit axis.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	s, c := math32.Sincos(angle / 2)
	return Quat{axis[0] * s, axis[1] * s, axis[2] * s, c}
}

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat { return Quat{0, 0, 0, 1} }

// Normalize returns q scaled to unit length. A zero quaternion becomes the identity.
func (q Quat) Normalize() Quat {
	l := math32.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if l == 0 {
		return QuatIdentity()
	}
	return Quat{q[0] / l, q[1] / l, q[2] / l, q[3] / l}
}

// Mul returns the Hamilton product q · o, which applies o first and then q.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		q[3]*o[0] + q[0]*o[3] + q[1]*o[2] - q[2]*o[1],
		q[3]*o[1] - q[0]*o[2] + q[1]*o[3] + q[2]*o[0],
		q[3]*o[2] + q[0]*o[1] - q[1]*o[0] + q[2]*o[3],
		q[3]*o[3] - q[0]*o[0] - q[1]*o[1] - q[2]*o[2],
	}
}

// Mat3 converts q into a column-major rotation matrix.
func (q Quat) Mat3() Mat3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	return Mat3{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy),
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx),
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy),
	}
}

// RigidTransform builds the 4x4 transform whose upper 3x3 block is rotation and whose
// fourth column is translation.
//
// Parameters:
//   - rotation: column-major 3x3 rotation (or any linear part)
//   - translation: the translation column
//
// Returns:
//   - Mat4: the combined column-major transform
func RigidTransform(rotation Mat3, translation Vec3) Mat4 {
	return Mat4{
		rotation[0], rotation[1], rotation[2], 0,
		rotation[3], rotation[4], rotation[5], 0,
		rotation[6], rotation[7], rotation[8], 0,
		translation[0], translation[1], translation[2], 1,
	}
}

// Mul returns m · o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	Mul4(out[:], m[:], o[:])
	return out
}

// MulVec returns m · v.
func (m Mat4) MulVec(v Vec4) Vec4 {
	var out Vec4
	for row := 0; row < 4; row++ {
		out[row] = m[row]*v[0] + m[4+row]*v[1] + m[8+row]*v[2] + m[12+row]*v[3]
	}
	return out
}

// Inverse returns the inverse of m and whether m was invertible.
func (m Mat4) Inverse() (Mat4, bool) {
	var out Mat4
	ok := Invert4(out[:], m[:])
	return out, ok
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order (OpenGL/WebGPU convention).
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// Perspective creates an OpenGL-convention perspective projection matrix whose clip-space
// depth spans [-1, 1]. Compose it with DepthRemap for WebGPU.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - Mat4: the column-major projection matrix
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovY/2)
	var out Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = (far + near) / (near - far)
	out[11] = -1
	out[14] = (2 * far * near) / (near - far)
	return out
}

// Invert4 computes the inverse of a 4x4 column-major matrix using the Laplace
// expansion (cofactor) method. If the matrix is singular (determinant ≈ 0) the
// output is left unchanged and the function returns false.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - bool: true if the matrix was successfully inverted, false if singular
func Invert4(out, m []float32) bool {
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return false
	}

	invDet := 1.0 / det

	out[0] = (m[5]*c5 - m[6]*c4 + m[7]*c3) * invDet
	out[1] = (-m[1]*c5 + m[2]*c4 - m[3]*c3) * invDet
	out[2] = (m[13]*s5 - m[14]*s4 + m[15]*s3) * invDet
	out[3] = (-m[9]*s5 + m[10]*s4 - m[11]*s3) * invDet

	out[4] = (-m[4]*c5 + m[6]*c2 - m[7]*c1) * invDet
	out[5] = (m[0]*c5 - m[2]*c2 + m[3]*c1) * invDet
	out[6] = (-m[12]*s5 + m[14]*s2 - m[15]*s1) * invDet
	out[7] = (m[8]*s5 - m[10]*s2 + m[11]*s1) * invDet

	out[8] = (m[4]*c4 - m[5]*c2 + m[7]*c0) * invDet
	out[9] = (-m[0]*c4 + m[1]*c2 - m[3]*c0) * invDet
	out[10] = (m[12]*s4 - m[13]*s2 + m[15]*s0) * invDet
	out[11] = (-m[8]*s4 + m[9]*s2 - m[11]*s0) * invDet

	out[12] = (-m[4]*c3 + m[5]*c1 - m[6]*c0) * invDet
	out[13] = (m[0]*c3 - m[1]*c1 + m[2]*c0) * invDet
	out[14] = (-m[12]*s3 + m[13]*s1 - m[14]*s0) * invDet
	out[15] = (m[8]*s3 - m[9]*s1 + m[10]*s0) * invDet

	return true
}

// Radians converts degrees to radians.
func Radians(deg float32) float32 { return deg * math32.Pi / 180 }
