package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/lipgloss"
)

const (
	inputPadding   = 2
	inputMaxHeight = 6
)

func newInputModel() textarea.Model {
	input := textarea.New()
	input.Placeholder = "message, or /help"
	input.Prompt = ""
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(1)
	input.KeyMap.InsertNewline.SetEnabled(false)

	focused := lipgloss.NewStyle().Background(inputBg)
	input.FocusedStyle.Base = focused
	input.FocusedStyle.CursorLine = focused
	input.FocusedStyle.Text = focused.Foreground(textColor)
	input.FocusedStyle.Placeholder = focused.Foreground(metaColor)
	input.BlurredStyle = input.FocusedStyle
	input.Cursor.Style = lipgloss.NewStyle().Foreground(caretColor)
	input.Focus()
	return input
}

func (m *Model) insertInputText(text string) {
	if text == "" {
		return
	}
	m.input.InsertString(text)
	m.resize()
}

// restoreDraft puts content back in the composer after a rolled-back send.
func (m *Model) restoreDraft(content string) {
	if strings.TrimSpace(m.input.Value()) != "" {
		content = content + "\n" + m.input.Value()
	}
	m.input.SetValue(content)
	m.input.CursorEnd()
	m.resize()
}

func (m *Model) renderInput() string {
	return lipgloss.NewStyle().Background(inputBg).Padding(0, 1).Width(m.width).Render(m.input.View())
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
