package chat

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/adamavenir/frayfeed/internal/feed"
)

type changedMsg struct{}

// refreshMsg redraws without re-arming the change watcher.
type refreshMsg struct{}

type startedMsg struct {
	channel string
	shown   int
	err     error
}

type loadedMsg struct {
	direction feed.LoadDirection
	result    feed.LoadResult
	err       error
}

type sentMsg struct {
	content string
	result  feed.SendResult
	err     error
}

type deletedMsg struct {
	id     string
	result feed.DeleteResult
	err    error
}

type threadMsg struct {
	parentID string
	shown    int
	err      error
}

type statusMsg string

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.MouseMsg:
		return m.handleMouseMsg(msg)
	case changedMsg:
		m.refresh()
		return m, m.waitForChange()
	case refreshMsg:
		m.refresh()
		return m, nil
	case startedMsg:
		return m.handleStarted(msg)
	case loadedMsg:
		return m.handleLoaded(msg)
	case sentMsg:
		return m.handleSent(msg)
	case deletedMsg:
		return m.handleDeleted(msg)
	case threadMsg:
		return m.handleThread(msg)
	case statusMsg:
		m.status = string(msg)
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

// waitForChange blocks until a feed hook fires.
func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return changedMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		if m.threadParent != "" {
			return m, m.closeThreadCmd()
		}
		m.input.Reset()
		m.resize()
		return m, nil
	case tea.KeyPgUp:
		return m, m.scrollCmd(-m.viewport.Height + 1)
	case tea.KeyPgDown:
		return m, m.scrollCmd(m.viewport.Height - 1)
	case tea.KeyCtrlUp, tea.KeyShiftUp:
		return m, m.scrollCmd(-1)
	case tea.KeyCtrlDown, tea.KeyShiftDown:
		return m, m.scrollCmd(1)
	case tea.KeyEnd:
		if m.input.Value() == "" {
			m.scroll(0, true)
			return m, m.loadCmd()
		}
	case tea.KeyCtrlJ:
		m.insertInputText("\n")
		return m, nil
	case tea.KeyEnter:
		return m.submit()
	}
	if msg.Type == tea.KeyRunes && msg.Paste {
		m.insertInputText(normalizeNewlines(string(msg.Runes)))
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.resize()
	return m, cmd
}

func (m *Model) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		return m, m.scrollCmd(-3)
	case tea.MouseButtonWheelDown:
		return m, m.scrollCmd(3)
	}
	return m, nil
}

// scrollCmd applies the scroll immediately and returns the history load the
// new position asks for, if any.
func (m *Model) scrollCmd(delta int) tea.Cmd {
	m.scroll(delta, false)
	return m.loadCmd()
}

func (m *Model) loadCmd() tea.Cmd {
	if m.threadParent != "" || m.loading {
		return nil
	}
	m.loading = true
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		dir, res, err := session.OnScroll(ctx)
		return loadedMsg{direction: dir, result: res, err: err}
	}
}

func (m *Model) startCmd(channel string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		shown, err := session.Start(ctx, channel)
		return startedMsg{channel: channel, shown: shown, err: err}
	}
}

func (m *Model) handleStarted(msg startedMsg) (tea.Model, tea.Cmd) {
	m.refresh()
	if msg.err != nil {
		m.status = fmt.Sprintf("could not load #%s: %v", msg.channel, msg.err)
		return m, nil
	}
	m.channel = msg.channel
	m.status = ""
	if msg.shown == 0 {
		m.status = "no messages in #" + msg.channel + " yet"
	}
	return m, nil
}

func (m *Model) handleLoaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	m.refresh()
	switch {
	case msg.err != nil:
		m.status = "history: " + msg.err.Error()
	case msg.result.Err != nil:
		m.status = "history: " + msg.result.Err.Error()
	case msg.direction != feed.LoadNone && msg.result.Inserted > 0:
		// The viewport may still sit inside the load threshold.
		return m, m.loadCmd()
	}
	return m, nil
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}
	if handled, cmd := m.handleSlashCommand(value); handled {
		return m, cmd
	}
	m.input.Reset()
	m.resize()
	m.scroll(0, true)

	ctx, session, parent := m.ctx, m.session, m.threadParent
	return m, func() tea.Msg {
		res, err := session.Send(ctx, value, parent)
		return sentMsg{content: value, result: res, err: err}
	}
}

func (m *Model) handleSent(msg sentMsg) (tea.Model, tea.Cmd) {
	m.refresh()
	switch {
	case errors.Is(msg.err, feed.ErrEmptyContent):
		return m, nil
	case msg.result.Draft != "":
		m.restoreDraft(msg.result.Draft)
		m.status = "send failed: " + errorText(msg.err, msg.result.Notice)
	case msg.err != nil:
		m.restoreDraft(msg.content)
		m.status = "send failed: " + msg.err.Error()
	case msg.result.Notice != "":
		m.status = msg.result.Notice
	}
	return m, nil
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		res, err := session.Delete(ctx, id)
		return deletedMsg{id: id, result: res, err: err}
	}
}

func (m *Model) handleDeleted(msg deletedMsg) (tea.Model, tea.Cmd) {
	m.refresh()
	switch {
	case msg.err != nil:
		m.status = fmt.Sprintf("delete %s: %v", msg.id, msg.err)
	case msg.result.Notice != "":
		m.status = msg.result.Notice
	default:
		m.status = "deleted " + msg.id
	}
	return m, nil
}

func (m *Model) openThreadCmd(parentID string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		shown, err := session.OpenThread(ctx, parentID)
		return threadMsg{parentID: parentID, shown: shown, err: err}
	}
}

func (m *Model) closeThreadCmd() tea.Cmd {
	m.threadParent = ""
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		if err := session.CloseThread(ctx); err != nil {
			return statusMsg(err.Error())
		}
		return refreshMsg{}
	}
}

func (m *Model) handleThread(msg threadMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = fmt.Sprintf("thread %s: %v", msg.parentID, msg.err)
		return m, nil
	}
	m.threadParent = msg.parentID
	m.status = fmt.Sprintf("thread %s · %d %s · esc to close", msg.parentID, msg.shown, plural(msg.shown, "reply", "replies"))
	m.scroll(0, true)
	return m, nil
}

func errorText(err error, notice string) string {
	if notice != "" {
		return notice
	}
	if err != nil {
		return err.Error()
	}
	return "unknown error"
}
