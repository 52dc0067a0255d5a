package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"millionx-backend/domain/config"
)

func testViewConfig() config.ViewConfig {
	return config.DefaultDomainConfig().View
}

func TestViewportRoundTrip(t *testing.T) {
	v := NewViewport(testViewConfig())
	v.Pan(37, -12)
	v.ZoomAt(100, 50, -3)

	sx, sy := v.WorldToScreen(640, 480)
	wx, wy := v.ScreenToWorld(sx, sy)
	assert.InDelta(t, 640, wx, 1e-9)
	assert.InDelta(t, 480, wy, 1e-9)
}

func TestViewportZoomKeepsAnchorFixed(t *testing.T) {
	v := NewViewport(testViewConfig())
	v.CenterOn(300, 200, 800, 600)

	wxBefore, wyBefore := v.ScreenToWorld(250, 130)
	v.ZoomAt(250, 130, -2)
	wxAfter, wyAfter := v.ScreenToWorld(250, 130)

	assert.InDelta(t, wxBefore, wxAfter, 1e-9)
	assert.InDelta(t, wyBefore, wyAfter, 1e-9)
}

func TestViewportZoomClamps(t *testing.T) {
	cfg := testViewConfig()
	v := NewViewport(cfg)

	// Starts at maximum scale, so zooming in is a no-op.
	v.ZoomAt(0, 0, 5)
	assert.Equal(t, cfg.ZoomMax, v.Scale)

	v.ZoomAt(0, 0, -100)
	assert.Equal(t, cfg.ZoomMin, v.Scale)
}

func TestViewportCenterOn(t *testing.T) {
	v := NewViewport(testViewConfig())
	v.CenterOn(1000, 500, 800, 600)

	sx, sy := v.WorldToScreen(1000, 500)
	assert.InDelta(t, 400, sx, 1e-9)
	assert.InDelta(t, 300, sy, 1e-9)
}

func TestGestureClassifiesClick(t *testing.T) {
	g := NewGesture(testViewConfig())
	start := time.Now()

	g.Begin(100, 100, start)
	assert.True(t, g.Active())
	assert.True(t, g.End(103, 102, start.Add(150*time.Millisecond)))
	assert.False(t, g.Active())
}

func TestGestureClassifiesDrag(t *testing.T) {
	cfg := testViewConfig()
	start := time.Now()

	t.Run("moved too far", func(t *testing.T) {
		g := NewGesture(cfg)
		g.Begin(100, 100, start)
		dx, dy := g.Delta(140, 100)
		assert.Equal(t, 40.0, dx)
		assert.Equal(t, 0.0, dy)
		assert.False(t, g.End(140, 100, start.Add(50*time.Millisecond)))
	})

	t.Run("held too long", func(t *testing.T) {
		g := NewGesture(cfg)
		g.Begin(100, 100, start)
		assert.False(t, g.End(101, 101, start.Add(400*time.Millisecond)))
	})

	t.Run("release without press", func(t *testing.T) {
		g := NewGesture(cfg)
		assert.False(t, g.End(100, 100, start))
	})
}
