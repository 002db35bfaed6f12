package uniform

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend/backendtest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBlock struct {
	Value [4]float32
}

func (testBlock) Size() int { return 16 }

func (b testBlock) Marshal() []byte {
	buf := make([]byte, 16)
	for i, v := range b.Value {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func TestNewAllocatesBufferLayoutAndBindGroup(t *testing.T) {
	device := backendtest.NewDevice()
	u, err := New[testBlock](device, "Test Uniform")
	require.NoError(t, err)

	buf := device.BufferByLabel("Test Uniform")
	require.NotNil(t, buf)
	assert.Equal(t, uint64(16), buf.Desc.Size)
	assert.Equal(t, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, buf.Desc.Usage)

	require.Len(t, device.BindGroupLayouts, 1)
	entries := device.BindGroupLayouts[0].Desc.Entries
	require.Len(t, entries, 1)
	assert.Equal(t, uint32(0), entries[0].Binding)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, entries[0].Visibility)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)

	assert.True(t, u.Dirty())
	assert.Equal(t, testBlock{}, u.Get())
}

func TestWriteEconomy(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()
	u, err := New[testBlock](device, "Economy")
	require.NoError(t, err)

	wrote, err := u.Write(queue)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = u.Write(queue)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Len(t, queue.WritesTo("Economy"), 1)

	u.GetMut().Value[2] = 3
	_, err = u.Write(queue)
	require.NoError(t, err)
	_, err = u.Write(queue)
	require.NoError(t, err)

	writes := queue.WritesTo("Economy")
	require.Len(t, writes, 2)
	assert.Equal(t, uint64(0), writes[1].Offset)
	assert.Equal(t, math.Float32bits(3), binary.LittleEndian.Uint32(writes[1].Data[8:]))
}

func TestGetDoesNotMarkDirty(t *testing.T) {
	device := backendtest.NewDevice()
	u, err := New[testBlock](device, "Read")
	require.NoError(t, err)
	_, err = u.Write(device.Queue())
	require.NoError(t, err)

	_ = u.Get()
	assert.False(t, u.Dirty())

	u.Set(testBlock{Value: [4]float32{1, 1, 1, 1}})
	assert.True(t, u.Dirty())
}

func TestWriteFailureKeepsDirty(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()
	u, err := New[testBlock](device, "Failing")
	require.NoError(t, err)

	queue.FailWrites = true
	wrote, err := u.Write(queue)
	assert.Error(t, err)
	assert.False(t, wrote)
	assert.True(t, u.Dirty())

	queue.FailWrites = false
	wrote, err = u.Write(queue)
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestGetReturnsSnapshot(t *testing.T) {
	device := backendtest.NewDevice()
	u, err := New[testBlock](device, "Snapshot")
	require.NoError(t, err)
	u.Set(testBlock{Value: [4]float32{1, 2, 3, 4}})

	got := u.Get()
	got.Value[0] = 9
	assert.Equal(t, float32(1), u.Get().Value[0])

	u.Set(testBlock{Value: [4]float32{5, 6, 7, 8}})
	assert.Equal(t, float32(9), got.Value[0])
	assert.Equal(t, [4]float32{5, 6, 7, 8}, u.Get().Value)
}

func TestGetAndSetFromSeveralGoroutines(t *testing.T) {
	device := backendtest.NewDevice()
	u, err := New[testBlock](device, "Shared")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				u.Set(testBlock{Value: [4]float32{float32(i), float32(i), float32(i), float32(i)}})
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				v := u.Get().Value
				assert.Equal(t, v[0], v[3])
			}
		}()
	}
	wg.Wait()

	wrote, err := u.Write(device.Queue())
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.False(t, u.Dirty())
}
