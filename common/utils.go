package common

import "github.com/chewxy/math32"

// Epsilon is the tolerance used when deciding whether a setter actually changed a value.
const Epsilon float32 = 1e-4

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// ApproxEqual reports whether a and b differ by at most Epsilon.
func ApproxEqual(a, b float32) bool {
	return math32.Abs(a-b) <= Epsilon
}

// ApproxEqual3 reports whether every component of a and b differ by at most Epsilon.
func ApproxEqual3(a, b Vec3) bool {
	return ApproxEqual(a[0], b[0]) && ApproxEqual(a[1], b[1]) && ApproxEqual(a[2], b[2])
}

// ApproxEqual4 reports whether every component of a and b differ by at most Epsilon.
func ApproxEqual4(a, b Vec4) bool {
	return ApproxEqual3(a.XYZ(), b.XYZ()) && ApproxEqual(a[3], b[3])
}

// Linearize maps an authored color channel into linear space (x → x²).
func Linearize(x float32) float32 {
	return x * x
}

// Color3 linearizes each channel of an authored RGB color.
func Color3(c Vec3) Vec3 {
	return Vec3{Linearize(c[0]), Linearize(c[1]), Linearize(c[2])}
}

// Color4 linearizes the RGB channels of an authored color and keeps alpha as-is.
func Color4(c Vec4) Vec4 {
	return Vec4{Linearize(c[0]), Linearize(c[1]), Linearize(c[2]), c[3]}
}

// ClampMin returns v, or floor when v is smaller.
func ClampMin(v, floor float32) float32 {
	if v < floor {
		return floor
	}
	return v
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}
