package chat

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

var authorPalette = []lipgloss.Color{
	lipgloss.Color("111"),
	lipgloss.Color("157"),
	lipgloss.Color("216"),
	lipgloss.Color("36"),
	lipgloss.Color("183"),
	lipgloss.Color("230"),
}

var (
	selfColor    = lipgloss.Color("250")
	metaColor    = lipgloss.Color("242")
	textColor    = lipgloss.Color("252")
	pendingColor = lipgloss.Color("220")
	unreadColor  = lipgloss.Color("203")
	threadColor  = lipgloss.Color("75")
	dayColor     = lipgloss.Color("244")
	statusColor  = lipgloss.Color("241")
	noticeColor  = lipgloss.Color("214")
	inputBg      = lipgloss.Color("235")
	caretColor   = lipgloss.Color("39")
)

func colorForAuthor(author string) lipgloss.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(author))
	return authorPalette[int(h.Sum32()%uint32(len(authorPalette)))]
}
