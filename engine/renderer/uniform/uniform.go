// Package uniform provides a typed host-side value paired with a GPU uniform buffer, a
// single-binding bind group and a dirty flag. Every logical renderer object (camera, light,
// material, compositor) owns one holder and uploads through it.
package uniform

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-forward/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Data is implemented by host structs that mirror a WGSL uniform block. Size is the padded
// byte size of the block and Marshal must return exactly Size bytes in little-endian order.
type Data interface {
	Size() int
	Marshal() []byte
}

// Uniform holds a value of D, its uniform buffer, the layout and bind group that expose the
// buffer at binding 0, and a dirty flag that starts true.
type Uniform[D Data] struct {
	mu *sync.Mutex

	label     string
	data      D
	dirty     bool
	buffer    backend.Buffer
	layout    backend.BindGroupLayout
	bindGroup backend.BindGroup
}

// LayoutEntries returns the single layout entry shared by every uniform holder: binding 0,
// a uniform buffer visible to the vertex and fragment stages.
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: the layout entries
func LayoutEntries() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: false,
				MinBindingSize:   0,
			},
		},
	}
}

// NewLayout creates a bind group layout identical to the one every holder uses, for pipeline
// layouts assembled before any holder of that kind exists.
//
// Parameters:
//   - device: the device to create the layout on
//   - label: the debug label
//
// Returns:
//   - backend.BindGroupLayout: the layout
//   - error: an error if creation failed
func NewLayout(device backend.Device, label string) (backend.BindGroupLayout, error) {
	return device.CreateBindGroupLayout(backend.BindGroupLayoutDescriptor{
		Label:   label + " Layout",
		Entries: LayoutEntries(),
	})
}

// New creates a holder with a zero D, a buffer of D's size with Uniform|CopyDst usage, and
// the layout and bind group exposing it. The holder starts dirty.
//
// Parameters:
//   - device: the device to allocate on
//   - label: the debug label; also the buffer label
//
// Returns:
//   - *Uniform[D]: the holder
//   - error: an error if any allocation failed
func New[D Data](device backend.Device, label string) (*Uniform[D], error) {
	var zero D
	buffer, err := device.CreateBuffer(backend.BufferDescriptor{
		Label: label,
		Size:  uint64(zero.Size()),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("uniform %q: buffer: %w", label, err)
	}

	layout, err := NewLayout(device, label)
	if err != nil {
		buffer.Release()
		return nil, fmt.Errorf("uniform %q: layout: %w", label, err)
	}

	bindGroup, err := device.CreateBindGroup(backend.BindGroupDescriptor{
		Label:   label + " Bind Group",
		Layout:  layout,
		Entries: []backend.BindGroupEntry{{Binding: 0, Buffer: buffer}},
	})
	if err != nil {
		layout.Release()
		buffer.Release()
		return nil, fmt.Errorf("uniform %q: bind group: %w", label, err)
	}

	return &Uniform[D]{
		mu:        &sync.Mutex{},
		label:     label,
		data:      zero,
		dirty:     true,
		buffer:    buffer,
		layout:    layout,
		bindGroup: bindGroup,
	}, nil
}

// Get returns a copy of the held value, taken under the holder's lock.
func (u *Uniform[D]) Get() D {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.data
}

// GetMut returns a pointer to the held value and marks the holder dirty. Writes through the
// pointer are not synchronized with Write; callers that share the holder across goroutines
// should use Set instead.
func (u *Uniform[D]) GetMut() *D {
	u.mu.Lock()
	u.dirty = true
	u.mu.Unlock()
	return &u.data
}

// Set replaces the held value and marks the holder dirty.
func (u *Uniform[D]) Set(data D) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.data = data
	u.dirty = true
}

// Write uploads the held value when dirty and clears the flag. A clean holder issues no write.
//
// Parameters:
//   - queue: the queue to write through
//
// Returns:
//   - bool: true when a write was issued
//   - error: the queue error; the holder stays dirty on failure
func (u *Uniform[D]) Write(queue backend.Queue) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.dirty {
		return false, nil
	}
	if err := queue.WriteBuffer(u.buffer, 0, u.data.Marshal()); err != nil {
		return false, fmt.Errorf("uniform %q: write: %w", u.label, err)
	}
	u.dirty = false
	return true, nil
}

// Dirty reports whether the held value has changed since the last successful Write.
func (u *Uniform[D]) Dirty() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dirty
}

// MarkDirty forces the next Write to upload the held value.
func (u *Uniform[D]) MarkDirty() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dirty = true
}

// Label returns the debug label, which is also the buffer label.
func (u *Uniform[D]) Label() string { return u.label }

// Layout returns the bind group layout exposing the buffer at binding 0.
func (u *Uniform[D]) Layout() backend.BindGroupLayout { return u.layout }

// BindGroup returns the bind group over the uniform buffer.
func (u *Uniform[D]) BindGroup() backend.BindGroup { return u.bindGroup }

// Buffer returns the uniform buffer.
func (u *Uniform[D]) Buffer() backend.Buffer { return u.buffer }

// Release frees the bind group, layout and buffer.
func (u *Uniform[D]) Release() {
	u.bindGroup.Release()
	u.layout.Release()
	u.buffer.Release()
}
