package texture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend/backendtest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPot(t *testing.T) {
	assert.Equal(t, uint32(256), Pot(511))
	assert.Equal(t, uint32(512), Pot(512))
	assert.Equal(t, uint32(512), Pot(513))
	assert.Equal(t, uint32(1), Pot(1))
	assert.Equal(t, uint32(0), Pot(0))
}

func TestMipLevelCount(t *testing.T) {
	assert.Equal(t, uint32(9), MipLevelCount(512, 1024))
	assert.Equal(t, uint32(1), MipLevelCount(1, 1))
	assert.Equal(t, uint32(1), MipLevelCount(2, 2))
	assert.Equal(t, uint32(2), MipLevelCount(4, 7))
}

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func TestFromImageWithMips(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()

	tex, err := FromImage(device, queue, solid(20, 10), "diffuse", false, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(16), tex.Width())
	assert.Equal(t, uint32(8), tex.Height())
	assert.Equal(t, uint32(3), tex.MipLevels())
	assert.Equal(t, wgpu.TextureFormatRGBA8UnormSrgb, tex.Format())

	require.Len(t, queue.TextureWrites, 3)
	assert.Equal(t, uint32(16), queue.TextureWrites[0].Width)
	assert.Equal(t, uint32(8), queue.TextureWrites[1].Width)
	assert.Equal(t, uint32(2), queue.TextureWrites[2].Height)
	assert.Equal(t, uint32(2), queue.TextureWrites[2].MipLevel)

	s := device.Samplers[0]
	assert.Equal(t, wgpu.AddressModeRepeat, s.Desc.AddressMode)
	assert.Equal(t, wgpu.FilterModeLinear, s.Desc.MagFilter)
	assert.Equal(t, wgpu.MipmapFilterModeLinear, s.Desc.MipmapFilter)
}

func TestFromImageWithoutMips(t *testing.T) {
	device := backendtest.NewDevice()
	tex, err := FromImage(device, device.Queue(), solid(20, 10), "normal", true, false)
	require.NoError(t, err)

	assert.Equal(t, uint32(20), tex.Width())
	assert.Equal(t, uint32(1), tex.MipLevels())
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, tex.Format())
	assert.Equal(t, wgpu.FilterModeNearest, device.Samplers[0].Desc.MinFilter)
}

func TestFromBytesAndImported(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(8, 8)))

	device := backendtest.NewDevice()
	tex, err := FromBytes(device, device.Queue(), buf.Bytes(), "png", false, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), tex.MipLevels())

	_, err = FromBytes(device, device.Queue(), []byte("nope"), "bad", false, true)
	assert.Error(t, err)

	imported := &common.ImportedTexture{
		Data:        buf.Bytes(),
		IsNormalMap: true,
		SamplerData: &common.SamplerStagingData{
			AddressModeU: wgpu.AddressModeMirrorRepeat,
			MagFilter:    wgpu.FilterModeNearest,
			MinFilter:    wgpu.FilterModeNearest,
			MipmapFilter: wgpu.MipmapFilterModeNearest,
		},
	}
	tex, err = FromImported(device, device.Queue(), imported, "imported")
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, tex.Format())
	last := device.Samplers[len(device.Samplers)-1]
	assert.Equal(t, wgpu.AddressModeMirrorRepeat, last.Desc.AddressMode)
	assert.Equal(t, float32(32), last.Desc.LodMaxClamp)
	assert.True(t, device.Samplers[len(device.Samplers)-2].Released)
}

func TestPlaceholders(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()

	p, err := NewPlaceholder(device, queue, "white", [4]uint8{255, 255, 255, 255})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.Width())
	assert.Equal(t, wgpu.TextureViewDimension2D, p.ViewDimension())

	cube, err := NewPlaceholderCube(device, queue, "env")
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureViewDimensionCube, cube.ViewDimension())
	assert.Equal(t, uint32(6), cube.Texture().Layers())
	assert.Len(t, queue.TextureWrites, 7)
}

func TestAttachments(t *testing.T) {
	device := backendtest.NewDevice()

	color, err := NewColorAttachment(device, "color", 800, 600)
	require.NoError(t, err)
	assert.Equal(t, ColorFormat, color.Format())
	rec := device.TextureByLabel("color")
	assert.Equal(t, wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding, rec.Desc.Usage)

	depth, err := NewDepthAttachment(device, "depth", 800, 600)
	require.NoError(t, err)
	assert.Equal(t, DepthFormat, depth.Format())
	s := device.Samplers[len(device.Samplers)-1]
	assert.Equal(t, wgpu.CompareFunctionLessEqual, s.Desc.Compare)
	assert.Equal(t, float32(-100), s.Desc.LodMinClamp)

	_, err = NewColorAttachment(device, "zero", 0, 600)
	assert.Error(t, err)
}

func TestRefCounting(t *testing.T) {
	device := backendtest.NewDevice()
	env, err := NewPlaceholderCube(device, device.Queue(), "shared")
	require.NoError(t, err)

	env.Retain()
	assert.Equal(t, int32(2), env.Refs())
	env.Release()
	assert.False(t, device.TextureByLabel("shared").Released)
	env.Release()
	assert.True(t, device.TextureByLabel("shared").Released)
}

// ddsCube builds a legacy-header 32-bit cubemap of size x size with the given mip count.
func ddsCube(size, mips uint32, rgba bool) []byte {
	var buf bytes.Buffer
	w := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	w(ddsMagic)
	header := make([]uint32, ddsHeaderSize/4)
	header[0] = ddsHeaderSize
	header[2] = size
	header[3] = size
	header[6] = mips
	header[18] = 32
	header[19] = ddsPixelRGB
	header[21] = 32
	if rgba {
		header[22] = 0x000000FF
	} else {
		header[22] = 0x00FF0000
	}
	header[27] = ddsCaps2Cube | ddsCubeAll
	for _, v := range header {
		w(v)
	}
	for face := range 6 {
		s := size
		for range mips {
			for range s * s {
				buf.Write([]byte{byte(face), 2, 3, 255})
			}
			s = max(s/2, 1)
		}
	}
	return buf.Bytes()
}

func TestParseDDS(t *testing.T) {
	d, err := ParseDDS(ddsCube(4, 3, false))
	require.NoError(t, err)
	assert.Equal(t, uint32(4), d.Width)
	assert.Equal(t, uint32(3), d.MipLevels)
	assert.Len(t, d.Faces[5], 3)
	assert.Len(t, d.Faces[5][2], 4)
	assert.Equal(t, byte(5), d.Faces[5][0][0])

	swz, err := ParseDDS(ddsCube(2, 1, true))
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 2, 1, 255}, swz.Faces[1][0][:4])

	_, err = ParseDDS([]byte("garbage"))
	assert.True(t, errors.Is(err, ErrUnsupportedDDS))

	truncated := ddsCube(4, 1, false)
	_, err = ParseDDS(truncated[:len(truncated)-8])
	assert.ErrorContains(t, err, "truncated")
}

func TestCubemapFromDDS(t *testing.T) {
	device := backendtest.NewDevice()
	queue := device.RecordingQueue()
	cube, err := CubemapFromDDS(device, queue, ddsCube(8, 2, false), "sky")
	require.NoError(t, err)

	assert.Equal(t, wgpu.TextureViewDimensionCube, cube.ViewDimension())
	assert.Equal(t, CubeFormat, cube.Format())
	assert.Len(t, queue.TextureWrites, 12)
	assert.Equal(t, uint32(5), queue.TextureWrites[11].Layer)
	assert.Equal(t, uint32(4), queue.TextureWrites[11].Width)
}
