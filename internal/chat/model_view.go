package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) View() string {
	lines := []string{m.viewport.View(), m.renderNotice(), m.renderInput(), m.renderStatus()}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderNotice is the margin line above the input. It doubles as the
// "newer messages" and end-of-history cue.
func (m *Model) renderNotice() string {
	var parts []string
	if m.chrome.newer > 0 {
		parts = append(parts, fmt.Sprintf("↓ %d newer %s (End to jump)", m.chrome.newer, plural(m.chrome.newer, "message", "messages")))
	}
	if m.chrome.end && m.frame.ScrollTop == 0 && m.threadParent == "" {
		parts = append(parts, "beginning of #"+m.chrome.channel)
	}
	if m.loading {
		parts = append(parts, "loading…")
	}
	return lipgloss.NewStyle().Foreground(noticeColor).Render(strings.Join(parts, " · "))
}

func (m *Model) renderStatus() string {
	left := m.statusLine()
	if m.status != "" {
		left += " · " + m.status
	}
	return lipgloss.NewStyle().Foreground(statusColor).MaxWidth(m.width).Render(left)
}

func (m *Model) statusLine() string {
	channel := m.chrome.channel
	if channel == "" {
		channel = m.channel
	}
	parts := []string{"#" + channel}
	if m.threadParent != "" {
		parts = append(parts, fmt.Sprintf("thread %s (%d)", m.threadParent, m.chrome.threadLen))
	}
	if m.chrome.unread > 0 {
		parts = append(parts, fmt.Sprintf("%d unread", m.chrome.unread))
	}
	if m.chrome.pending > 0 {
		parts = append(parts, fmt.Sprintf("%d sending", m.chrome.pending))
	}
	if elsewhere := formatElsewhere(m.chrome.elsewhere); elsewhere != "" {
		parts = append(parts, elsewhere)
	}
	return strings.Join(parts, " · ")
}

// formatElsewhere lists unread counts for other channels, busiest first.
func formatElsewhere(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	channels := make([]string, 0, len(counts))
	for ch := range counts {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool {
		if counts[channels[i]] != counts[channels[j]] {
			return counts[channels[i]] > counts[channels[j]]
		}
		return channels[i] < channels[j]
	})
	parts := make([]string, 0, len(channels))
	for _, ch := range channels {
		parts = append(parts, fmt.Sprintf("#%s %d", ch, counts[ch]))
	}
	return strings.Join(parts, " ")
}
