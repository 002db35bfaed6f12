package window

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-forward/common"
	"github.com/stretchr/testify/assert"
)

func TestDispatchWithoutCallbacks(t *testing.T) {
	w := &engineWindow{}
	assert.NotPanics(t, func() {
		w.dispatchKey(common.KeyW, true)
		w.dispatchMouseButton(common.MouseButtonLeft, true)
		w.dispatchCursor(1, 2)
		w.dispatchScroll(1)
		w.dispatchResize(640, 480)
	})
	assert.Equal(t, 640, w.Width())
	assert.Equal(t, 480, w.Height())
}

func TestDispatchRoutesToCallbacks(t *testing.T) {
	w := &engineWindow{}
	var keys []int
	var resized [2]int
	var scrolled float32
	var cursor [2]float64
	var left bool

	w.SetKeyCallback(func(key int, pressed bool) {
		if pressed {
			keys = append(keys, key)
		}
	})
	w.SetResizeCallback(func(width, height int) { resized = [2]int{width, height} })
	w.SetScrollCallback(func(lines float32) { scrolled += lines })
	w.SetCursorCallback(func(x, y float64) { cursor = [2]float64{x, y} })
	w.SetMouseButtonCallback(func(button int, pressed bool) {
		if button == common.MouseButtonLeft {
			left = pressed
		}
	})

	w.dispatchKey(common.KeyW, true)
	w.dispatchKey(common.KeyW, false)
	w.dispatchKey(common.KeyEsc, true)
	w.dispatchResize(1024, 768)
	w.dispatchScroll(-2)
	w.dispatchCursor(10, 20)
	w.dispatchMouseButton(common.MouseButtonLeft, true)

	assert.Equal(t, []int{common.KeyW, common.KeyEsc}, keys)
	assert.Equal(t, [2]int{1024, 768}, resized)
	assert.Equal(t, float32(-2), scrolled)
	assert.Equal(t, [2]float64{10, 20}, cursor)
	assert.True(t, left)
}

func TestRequestCloseStopsWithoutPlatformWindow(t *testing.T) {
	w := &engineWindow{}
	assert.False(t, w.IsRunning())
	w.RequestClose()
	assert.False(t, w.IsRunning())
	assert.Error(t, w.Close())
}
