package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"millionx-backend/application/queries"
)

// chatView renders a node's explanation followed by its chat thread
type chatView struct {
	input           textinput.Model
	pendingQuestion string
	width           int
	height          int
}

func newChatView() chatView {
	in := textinput.New()
	in.Placeholder = "Ask a follow-up question"
	in.Prompt = "You> "
	in.Focus()
	in.CharLimit = 4000
	in.Width = 60
	return chatView{input: in}
}

func (v *chatView) resize(width, height int) {
	v.width = width
	v.height = height
	w := width - 8
	if w < 10 {
		w = 10
	}
	v.input.Width = w
}

func (m Model) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		question := strings.TrimSpace(m.chat.input.Value())
		if question == "" || m.busy {
			return m, nil
		}
		m.chat.input.SetValue("")
		m.chat.pendingQuestion = question
		cmd := m.chatCmd(m.activeID, question)
		return m, cmd
	}

	var cmd tea.Cmd
	m.chat.input, cmd = m.chat.input.Update(msg)
	return m, cmd
}

func (v chatView) view(s *queries.SessionDTO, activeID string) string {
	node := findNode(s, activeID)
	if node == nil {
		return statusStyle.Render("no active topic")
	}

	var b strings.Builder

	if node.Content != "" {
		b.WriteString(wrap(node.Content, v.width-2))
		b.WriteString("\n\n")
	}

	for _, turn := range node.ChatHistory {
		if turn.Role == "user" {
			b.WriteString(userStyle.Render("You:") + " " + wrap(turn.Content, v.width-6))
		} else {
			b.WriteString(assistantStyle.Render("Tutor:") + " " + wrap(turn.Content, v.width-8))
		}
		b.WriteString("\n")
	}
	if v.pendingQuestion != "" {
		b.WriteString(userStyle.Render("You:") + " " + v.pendingQuestion + "\n")
	}

	b.WriteString("\n" + v.input.View())
	return b.String()
}

// wrap folds text at word boundaries to fit the given width
func wrap(text string, width int) string {
	if width < 20 {
		width = 20
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		lineLen := 0
		for _, word := range strings.Fields(line) {
			if lineLen > 0 && lineLen+len(word)+1 > width {
				b.WriteString("\n")
				lineLen = 0
			} else if lineLen > 0 {
				b.WriteString(" ")
				lineLen++
			}
			b.WriteString(word)
			lineLen += len(word)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
