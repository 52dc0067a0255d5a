package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"millionx-backend/application/queries"
	"millionx-backend/domain/config"
)

// Terminal cells are taller than wide; these factors turn canvas pixels
// into a roughly proportional character grid.
const (
	pxPerColumn = 12.0
	pxPerRow    = 28.0
)

// graphView projects the session canvas onto a character grid through
// the viewport, with keyboard pan and zoom.
type graphView struct {
	viewport *Viewport
	cfg      *config.DomainConfig
	selected int
	width    int
	height   int
}

func newGraphView(cfg *config.DomainConfig) graphView {
	return graphView{
		viewport: NewViewport(cfg.View),
		cfg:      cfg,
	}
}

func (v *graphView) resize(width, height int) {
	v.width = width
	v.height = height
}

// center positions the active node in the middle of the grid
func (v *graphView) center(s *queries.SessionDTO, activeID string) {
	node := findNode(s, activeID)
	if node == nil {
		return
	}
	cx := (node.X + v.cfg.Layout.NodeWidth/2) / pxPerColumn
	cy := (node.Y + v.cfg.Layout.NodeHeight/2) / pxPerRow
	v.viewport.CenterOn(cx, cy, float64(v.gridWidth()), float64(v.gridHeight()))
	v.selected = 0
}

func (v *graphView) gridWidth() int {
	if v.width < 20 {
		return 80
	}
	return v.width
}

func (v *graphView) gridHeight() int {
	if v.height < 10 {
		return 24
	}
	return v.height - 6
}

func (m Model) updateGraph(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	const panStep = 4

	switch key.String() {
	case "left":
		m.graph.viewport.Pan(panStep, 0)
	case "right":
		m.graph.viewport.Pan(-panStep, 0)
	case "up":
		m.graph.viewport.Pan(0, panStep/2)
	case "down":
		m.graph.viewport.Pan(0, -panStep/2)
	case "+", "=":
		m.graph.viewport.ZoomAt(float64(m.graph.gridWidth())/2, float64(m.graph.gridHeight())/2, 1)
	case "-":
		m.graph.viewport.ZoomAt(float64(m.graph.gridWidth())/2, float64(m.graph.gridHeight())/2, -1)
	case "n":
		if count := len(m.session.Nodes); count > 0 {
			m.graph.selected = (m.graph.selected + 1) % count
		}
	case "p":
		if count := len(m.session.Nodes); count > 0 {
			m.graph.selected = (m.graph.selected + count - 1) % count
		}
	case "enter":
		if m.graph.selected < len(m.session.Nodes) {
			cmd := m.setActive(m.session.Nodes[m.graph.selected].ID)
			return m, cmd
		}
	case "c":
		m.graph.center(m.session, m.activeID)
	}
	return m, nil
}

func (v graphView) view(s *queries.SessionDTO, activeID string) string {
	if s == nil {
		return ""
	}

	w, h := v.gridWidth(), v.gridHeight()
	grid := make([][]rune, h)
	for i := range grid {
		grid[i] = make([]rune, w)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	// Edges first so node labels draw over them
	for _, c := range s.Connections {
		src := findNode(s, c.Source)
		dst := findNode(s, c.Target)
		if src == nil || dst == nil {
			continue
		}
		x1, y1 := v.project(src.X+v.cfg.Layout.NodeWidth, src.Y+v.cfg.Layout.NodeHeight/2)
		x2, y2 := v.project(dst.X, dst.Y+v.cfg.Layout.NodeHeight/2)
		drawLine(grid, x1, y1, x2, y2)
	}

	for i := range s.Nodes {
		node := &s.Nodes[i]
		x, y := v.project(node.X, node.Y+v.cfg.Layout.NodeHeight/2)
		label := node.Title
		if !node.HasExplored {
			label += " *"
		}
		switch {
		case node.ID == activeID:
			label = "[" + label + "]"
		case i == v.selected:
			label = ">" + label + "<"
		}
		drawLabel(grid, x, y, label)
	}

	lines := make([]string, h)
	for i, row := range grid {
		lines[i] = strings.TrimRight(string(row), " ")
	}
	return strings.Join(lines, "\n")
}

// project maps canvas pixels to grid cells through the viewport
func (v graphView) project(px, py float64) (int, int) {
	sx, sy := v.viewport.WorldToScreen(px/pxPerColumn, py/pxPerRow)
	return int(sx), int(sy)
}

func drawLabel(grid [][]rune, x, y int, label string) {
	if y < 0 || y >= len(grid) {
		return
	}
	row := grid[y]
	for i, r := range label {
		pos := x + i
		if pos < 0 || pos >= len(row) {
			continue
		}
		row[pos] = r
	}
}

// drawLine draws a coarse Bresenham segment with dashes
func drawLine(grid [][]rune, x1, y1, x2, y2 int) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx + dy

	x, y := x1, y1
	for {
		if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[y]) && grid[y][x] == ' ' {
			grid[y][x] = '·'
		}
		if x == x2 && y == y2 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
