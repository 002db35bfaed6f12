package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 0, 3, 4))
	assert.Equal(t, "", Coalesce[string]())
	assert.Equal(t, float32(2), Coalesce(float32(0), 2))
}

func TestApproxEqual(t *testing.T) {
	assert.True(t, ApproxEqual(1, 1.00005))
	assert.False(t, ApproxEqual(1, 1.0002))
	assert.True(t, ApproxEqual3(Vec3{1, 2, 3}, Vec3{1.00001, 2, 2.99999}))
}

func TestColorLinearization(t *testing.T) {
	assert.Equal(t, Vec3{0.25, 0, 1}, Color3(Vec3{0.5, 0, 1}))
	assert.Equal(t, Vec4{0.25, 0.0625, 1, 0.5}, Color4(Vec4{0.5, 0.25, 1, 0.5}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(0), ClampMin(-1, 0))
	assert.Equal(t, float32(2), ClampMin(2, 0))
	assert.Equal(t, float32(100), Clamp(250, -100, 100))
	assert.Equal(t, float32(-100), Clamp(-250, -100, 100))
}
