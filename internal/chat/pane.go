package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/adamavenir/frayfeed/internal/core"
	"github.com/adamavenir/frayfeed/internal/feed"
	"github.com/adamavenir/frayfeed/internal/types"
)

// Pane renders a timeline into terminal rows and implements feed.Viewport
// over that rendering. It is only touched from the feed loop goroutine.
type Pane struct {
	width     int
	height    int
	scrollTop int
	// pinned keeps the pane on the newest row as content grows.
	pinned    bool
	loc       *time.Location
	now       func() time.Time
	userID    string
	userName  string

	// source returns the timeline currently on screen.
	source func() *feed.Timeline

	cache map[string]renderedItem
	// idLen is the short-id length for the current timeline size.
	idLen int
}

type renderedItem struct {
	key   string
	block string
}

// Frame is a snapshot of the pane handed to the UI goroutine.
type Frame struct {
	Content   string
	ScrollTop int
	Visible   []string
}

// NewPane returns a pane that lays out source.
func NewPane(source func() *feed.Timeline, userID string, loc *time.Location) *Pane {
	if loc == nil {
		loc = time.Local
	}
	return &Pane{source: source, userID: userID, loc: loc, now: time.Now, pinned: true, cache: make(map[string]renderedItem)}
}

// Resize sets the pane dimensions in cells.
func (p *Pane) Resize(width, height int) {
	if width != p.width {
		p.cache = make(map[string]renderedItem)
	}
	p.width = width
	p.height = height
}

// Layout implements feed.Viewport.
func (p *Pane) Layout() feed.Layout {
	items, blocks := p.render()
	return feed.StackLayout(items, func(item *feed.Item) int {
		return lipgloss.Height(blocks[item.ID()])
	}, p.scrollTop, p.height)
}

// ScrollTo implements feed.Viewport.
func (p *Pane) ScrollTo(offset int) {
	p.scrollTop = offset
	layout := p.Layout()
	p.scrollTop = layout.ScrollTop
	p.pinned = layout.DistanceToBottom() == 0
}

// ScrollBy moves the pane by delta rows.
func (p *Pane) ScrollBy(delta int) {
	p.ScrollTo(p.scrollTop + delta)
}

// ScrollToBottom pins the pane to the newest row.
func (p *Pane) ScrollToBottom() {
	p.ScrollTo(p.Layout().MaxScroll())
}

// Snapshot renders the whole timeline and reports which items are on screen.
func (p *Pane) Snapshot() Frame {
	items, blocks := p.render()
	layout := feed.StackLayout(items, func(item *feed.Item) int {
		return lipgloss.Height(blocks[item.ID()])
	}, p.scrollTop, p.height)
	if p.pinned {
		layout.ScrollTop = layout.MaxScroll()
	}
	p.scrollTop = layout.ScrollTop

	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, blocks[item.ID()])
	}
	frame := Frame{Content: strings.Join(parts, "\n"), ScrollTop: layout.ScrollTop}
	for _, box := range layout.Visible() {
		frame.Visible = append(frame.Visible, box.ID)
	}
	return frame
}

func (p *Pane) render() ([]*feed.Item, map[string]string) {
	tl := p.source()
	if tl == nil {
		clear(p.cache)
		return nil, nil
	}
	items := tl.Items()
	p.idLen = core.GetDisplayPrefixLength(len(items))
	blocks := make(map[string]string, len(items))
	prevDay := ""
	for _, item := range items {
		day := item.Record.Time().In(p.loc).Format("2006-01-02")
		header := day != prevDay
		prevDay = day

		key := p.cacheKey(item, header)
		if cached, ok := p.cache[item.ID()]; ok && cached.key == key {
			blocks[item.ID()] = cached.block
			continue
		}
		block := p.renderItem(item, header)
		p.cache[item.ID()] = renderedItem{key: key, block: block}
		blocks[item.ID()] = block
	}
	// Drop removed items and whatever a previous channel left behind.
	if len(p.cache) > len(blocks) {
		for id := range p.cache {
			if _, ok := blocks[id]; !ok {
				delete(p.cache, id)
			}
		}
	}
	return items, blocks
}

// cacheKey captures every input renderItem depends on. Relative timestamps
// are deliberately left out so heights stay stable between frames.
func (p *Pane) cacheKey(item *feed.Item, header bool) string {
	var thread string
	if item.Thread != nil {
		thread = fmt.Sprintf("%d/%d/%s", item.Thread.Total, item.Thread.Unread, strings.Join(item.Thread.Avatars, ","))
	}
	return fmt.Sprintf("%d|%t|%s|%t|%s|%d|%s|%s|%d", p.idLen, header, item.State, item.Unread, item.Record.Content,
		item.Record.CreatedAt, item.Record.ReadStatus, thread, len(item.Record.Reactions))
}

func (p *Pane) renderItem(item *feed.Item, header bool) string {
	width := p.width
	if width <= 0 {
		width = 80
	}
	rec := item.Record
	var lines []string
	if header {
		label := dayLabel(rec.Time().In(p.loc), p.now().In(p.loc))
		lines = append(lines, lipgloss.NewStyle().Foreground(dayColor).Render("── "+label+" ──"))
	}

	author := rec.AuthorName
	if author == "" {
		author = rec.AuthorID
	}
	color := colorForAuthor(author)
	if rec.AuthorID == p.userID {
		color = selfColor
	}
	head := lipgloss.NewStyle().Foreground(color).Bold(true).Render("@" + author)
	meta := rec.Time().In(p.loc).Format("15:04")
	if !core.IsTempID(rec.ID) {
		meta += " · " + core.ShortID(rec.ID, p.idLen)
	}
	head += " " + lipgloss.NewStyle().Foreground(metaColor).Render(meta)
	switch item.State {
	case feed.ItemPending:
		head += " " + lipgloss.NewStyle().Foreground(pendingColor).Render("sending…")
	case feed.ItemPersistedPending:
		head += " " + lipgloss.NewStyle().Foreground(pendingColor).Render("not confirmed yet")
	}
	if item.Unread {
		head += " " + lipgloss.NewStyle().Foreground(unreadColor).Render("●")
	}
	if rec.AuthorID != p.userID && core.Mentions(rec.Content, p.userName) {
		head += " " + lipgloss.NewStyle().Foreground(noticeColor).Render("@you")
	}
	lines = append(lines, head)

	body := lipgloss.NewStyle().Foreground(textColor).Width(width).Render(ansi.Strip(rec.Content))
	lines = append(lines, body)

	if cue := threadCue(item.Thread); cue != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(threadColor).Render(cue))
	}
	if r := reactionLine(rec.Reactions); r != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(metaColor).Render(r))
	}
	return strings.Join(lines, "\n")
}

func threadCue(s *types.ThreadSummary) string {
	if s == nil || s.Total <= 0 {
		return ""
	}
	cue := "  ↳ " + humanize.Comma(int64(s.Total)) + " " + plural(s.Total, "reply", "replies")
	if s.Unread > 0 {
		cue += fmt.Sprintf(" (%d unread)", s.Unread)
	}
	if len(s.Avatars) > 0 {
		cue += " · " + strings.Join(s.Avatars, " ")
	}
	return cue
}

func reactionLine(reactions []types.Reaction) string {
	if len(reactions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(reactions))
	for _, r := range reactions {
		parts = append(parts, fmt.Sprintf("%s %d", r.Emoji, r.Count))
	}
	return "  " + strings.Join(parts, "  ")
}

func dayLabel(day, now time.Time) string {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := now.Date()
	switch {
	case y1 == y2 && m1 == m2 && d1 == d2:
		return "Today"
	case y1 == y2 && m1 == m2 && d1 == d2-1:
		return "Yesterday"
	case y1 == y2:
		return day.Format("Monday, January 2")
	default:
		return day.Format("January 2, 2006")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
