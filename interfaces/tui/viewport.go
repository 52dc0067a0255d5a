package tui

import (
	"time"

	"millionx-backend/domain/config"
)

// Viewport maps world-space canvas coordinates onto the screen. Zoom is
// anchored at the cursor so the point under it stays put while scaling.
type Viewport struct {
	OffsetX float64
	OffsetY float64
	Scale   float64

	cfg config.ViewConfig
}

// NewViewport creates a viewport at 1:1 scale
func NewViewport(cfg config.ViewConfig) *Viewport {
	return &Viewport{Scale: cfg.ZoomMax, cfg: cfg}
}

// WorldToScreen converts canvas coordinates to screen coordinates
func (v *Viewport) WorldToScreen(wx, wy float64) (float64, float64) {
	return wx*v.Scale + v.OffsetX, wy*v.Scale + v.OffsetY
}

// ScreenToWorld converts screen coordinates to canvas coordinates
func (v *Viewport) ScreenToWorld(sx, sy float64) (float64, float64) {
	return (sx - v.OffsetX) / v.Scale, (sy - v.OffsetY) / v.Scale
}

// Pan shifts the view by a screen-space delta
func (v *Viewport) Pan(dx, dy float64) {
	v.OffsetX += dx
	v.OffsetY += dy
}

// ZoomAt scales around a screen point. steps > 0 zooms in. The world
// point under the anchor is the same before and after.
func (v *Viewport) ZoomAt(sx, sy float64, steps int) {
	factor := 1.0
	for i := 0; i < steps; i++ {
		factor *= v.cfg.ZoomSensitivity
	}
	for i := 0; i > steps; i-- {
		factor /= v.cfg.ZoomSensitivity
	}

	newScale := clamp(v.Scale*factor, v.cfg.ZoomMin, v.cfg.ZoomMax)
	if newScale == v.Scale {
		return
	}

	wx, wy := v.ScreenToWorld(sx, sy)
	v.Scale = newScale
	v.OffsetX = sx - wx*v.Scale
	v.OffsetY = sy - wy*v.Scale
}

// CenterOn positions a world point at the middle of a screen area
func (v *Viewport) CenterOn(wx, wy float64, screenW, screenH float64) {
	v.OffsetX = screenW/2 - wx*v.Scale
	v.OffsetY = screenH/2 - wy*v.Scale
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Gesture classifies a press-move-release sequence as a click or a
// drag. A short press that barely moved selects; anything else pans.
type Gesture struct {
	startX, startY float64
	startedAt      time.Time
	active         bool

	cfg config.ViewConfig
}

// NewGesture creates a gesture classifier
func NewGesture(cfg config.ViewConfig) *Gesture {
	return &Gesture{cfg: cfg}
}

// Begin records the press position
func (g *Gesture) Begin(x, y float64, at time.Time) {
	g.startX, g.startY = x, y
	g.startedAt = at
	g.active = true
}

// Active reports whether a press is in progress
func (g *Gesture) Active() bool {
	return g.active
}

// Delta returns the screen-space movement since the press
func (g *Gesture) Delta(x, y float64) (float64, float64) {
	return x - g.startX, y - g.startY
}

// End classifies the release. Returns true for a click.
func (g *Gesture) End(x, y float64, at time.Time) bool {
	if !g.active {
		return false
	}
	g.active = false

	held := at.Sub(g.startedAt)
	dx, dy := x-g.startX, y-g.startY
	distSq := dx*dx + dy*dy
	threshold := g.cfg.ClickThresholdPX * g.cfg.ClickThresholdPX

	return held <= time.Duration(g.cfg.ClickThresholdMS)*time.Millisecond && distSq <= threshold
}
