package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"millionx-backend/application/queries"
)

// treeView is a single-level drill-down list: the active node at the
// top, its children below, backspace to climb toward the root.
type treeView struct {
	parentID string
	items    []string
	selected int
}

func newTreeView() treeView {
	return treeView{}
}

// rebuild recomputes the visible level around the active node
func (v *treeView) rebuild(s *queries.SessionDTO, activeID string) {
	v.parentID = activeID
	v.items = v.items[:0]
	v.selected = 0
	if s == nil {
		return
	}
	for _, child := range childrenOf(s, activeID) {
		v.items = append(v.items, child.ID)
	}
}

func (m Model) updateTree(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.tree.selected > 0 {
			m.tree.selected--
		}
	case "down", "j":
		if m.tree.selected < len(m.tree.items)-1 {
			m.tree.selected++
		}
	case "enter":
		if m.tree.selected < len(m.tree.items) {
			cmd := m.setActive(m.tree.items[m.tree.selected])
			return m, cmd
		}
	case "backspace", "h":
		if parent := parentOf(m.session, m.activeID); parent != nil {
			cmd := m.setActive(parent.ID)
			return m, cmd
		}
	case "e":
		node := findNode(m.session, m.activeID)
		if node != nil && !node.HasExplored && !m.busy {
			cmd := m.expandCmd(m.activeID, "rabbitHole")
			return m, cmd
		}
	case "s":
		node := findNode(m.session, m.activeID)
		if node != nil && !node.HasExplored && !m.busy {
			cmd := m.expandCmd(m.activeID, "subjectMastery")
			return m, cmd
		}
	}
	return m, nil
}

func (v treeView) view(s *queries.SessionDTO) string {
	if s == nil {
		return ""
	}

	var b strings.Builder

	active := findNode(s, v.parentID)
	if active != nil {
		marker := ""
		if !active.HasExplored {
			marker = unexploredStyle.Render("  (press e to expand)")
		}
		b.WriteString(titleStyle.Render(active.Title) + marker + "\n")
		if active.Description != "" {
			b.WriteString(statusStyle.Render(active.Description) + "\n")
		}
	}
	b.WriteString("\n")

	if len(v.items) == 0 {
		b.WriteString(statusStyle.Render("  no subtopics yet"))
		return b.String()
	}

	for i, id := range v.items {
		node := findNode(s, id)
		if node == nil {
			continue
		}
		label := node.Title
		if !node.HasExplored {
			label += " *"
		}
		if i == v.selected {
			b.WriteString("  " + selectedStyle.Render(label))
		} else {
			b.WriteString("  " + label)
		}
		b.WriteString("\n")
	}
	return b.String()
}
