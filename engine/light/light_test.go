package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend/backendtest"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFloats(data []byte, offset, n int) []float32 {
	out := make([]float32, n)
	for i := range n {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset+i*4:]))
	}
	return out
}

func TestAmbientLight(t *testing.T) {
	device := backendtest.NewDevice()
	l, err := NewAmbient(device, AmbientDescriptor{Ambient: common.Vec3{0.5, 0.2, 1}}, WithLabel("Ambient"))
	require.NoError(t, err)

	assert.Equal(t, TypeAmbient, l.Type())
	assert.True(t, common.ApproxEqual3(common.Vec3{0.25, 0.04, 1}, l.Ambient()))
	assert.Equal(t, common.Vec4{1, 0, 0, 0}, l.Attenuation())
	assert.Equal(t, uint64(96), device.BufferByLabel("Ambient Uniform").Desc.Size)
}

func TestDirectionalLightScenario(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()
	l, err := NewDirectional(device, DirectionalDescriptor{
		Direction: common.Vec3{1, 1, 0},
		Color:     common.Vec3{0, 0, 1},
		Constant:  1,
	}, WithLabel("Sun"))
	require.NoError(t, err)
	require.NoError(t, l.Update(queue))

	s := float32(1 / math.Sqrt2)
	data := device.BufferByLabel("Sun Uniform").Data
	dir := readFloats(data, 16, 3)
	assert.InDelta(t, s, dir[0], 1e-6)
	assert.InDelta(t, s, dir[1], 1e-6)
	assert.InDelta(t, 0, dir[2], 1e-6)
	assert.Equal(t, []float32{1, 0, 0, 0}, readFloats(data, 64, 4))
	assert.Equal(t, []float32{0, 0, 1}, readFloats(data, 48, 3))
	assert.Equal(t, uint32(TypeDirectional), binary.LittleEndian.Uint32(data[80:]))
}

func TestDirectionNormalized(t *testing.T) {
	device := backendtest.NewDevice()
	spot, err := NewSpot(device, SpotDescriptor{Direction: common.Vec3{0, -3, 4}, Breadth: 0.5, Constant: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1, spot.Direction().Length(), 1e-4)

	spot.SetDirection(common.Vec3{10, 0, 0})
	assert.InDelta(t, 1, spot.Direction().Length(), 1e-4)
}

func TestAttenuationClamped(t *testing.T) {
	device := backendtest.NewDevice()
	p, err := NewPoint(device, PointDescriptor{Constant: -1, Linear: 0.5, Exponential: -0.2})
	require.NoError(t, err)
	a := p.Attenuation()
	assert.Equal(t, common.Vec4{0, 0.5, 0, 0}, a)

	p.SetAttenuation(1, -2, 3)
	a = p.Attenuation()
	for i := range 3 {
		assert.GreaterOrEqual(t, a[i], float32(0))
	}
}

func TestSpotBreadthRoundTrip(t *testing.T) {
	device := backendtest.NewDevice()
	spot, err := NewSpot(device, SpotDescriptor{Breadth: 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, spot.SpotBreadth(), 1e-4)

	spot.SetSpotBreadth(0.3)
	assert.InDelta(t, 0.3, spot.SpotBreadth(), 1e-4)
}

func TestSettersDirtyOnlyOnChange(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()
	p, err := NewPoint(device, PointDescriptor{Position: common.Vec3{1, 2, 3}, Color: common.Vec3{1, 1, 1}, Constant: 1}, WithLabel("Bulb"))
	require.NoError(t, err)
	require.NoError(t, p.Update(queue))
	require.False(t, p.Dirty())

	p.SetPosition(common.Vec3{1, 2, 3.00001})
	p.SetColor(common.Vec3{1, 1, 1})
	p.SetAttenuation(1, 0, 0)
	assert.False(t, p.Dirty())

	p.SetColor(common.Vec3{0.5, 1, 1})
	assert.True(t, p.Dirty())
	assert.True(t, common.ApproxEqual3(common.Vec3{0.25, 1, 1}, p.Color()))
}

func TestUpdateWriteEconomy(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()
	l, err := NewAmbient(device, AmbientDescriptor{Ambient: common.Vec3{0.1, 0.1, 0.1}}, WithLabel("Amb"))
	require.NoError(t, err)

	require.NoError(t, l.Update(queue))
	require.NoError(t, l.Update(queue))
	assert.Len(t, queue.WritesTo("Amb Uniform"), 1)

	l.SetLinearAmbient(common.Vec3{0.2, 0.2, 0.2})
	require.NoError(t, l.Update(queue))
	assert.Len(t, queue.WritesTo("Amb Uniform"), 2)
}

func TestUniformMatchesShaderLayout(t *testing.T) {
	r := shader.Reflect(GPULightUniformSource)
	assert.Equal(t, uint64(GPULightUniform{}.Size()), r.StructSizes["LightUniform"])
	assert.Equal(t, 96, GPULightUniform{}.Size())
}

func TestTypeStrings(t *testing.T) {
	assert.Equal(t, "spot", TypeSpot.String())
	assert.Equal(t, "light(9)", Type(9).String())
}
