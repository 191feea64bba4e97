package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/adamavenir/frayfeed/internal/feed"
)

// Options configure chat.
type Options struct {
	Session  *feed.Session
	Channel  string
	UserID   string
	UserName string
	Location *time.Location
	Logger   *slog.Logger
}

// Run starts the chat UI and blocks until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	model, err := NewModel(ctx, opts)
	if err != nil {
		return err
	}
	defer model.Close()

	fmt.Printf("\033]0;%s\007", "frayfeed · #"+opts.Channel)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err = program.Run()
	return err
}

// Model implements the chat UI. Pane state lives on the feed loop goroutine;
// the model only ever sees Frames copied out of it.
type Model struct {
	ctx     context.Context
	session *feed.Session
	loop    *feed.Loop
	log     *slog.Logger

	pane       *Pane
	threadPane *Pane

	viewport viewport.Model
	input    textarea.Model

	channel      string
	threadParent string
	frame        Frame
	chrome       chrome
	status       string
	loading      bool
	width        int
	height       int

	changes chan struct{}
	unsub   []func()
}

// chrome is the status-bar state read from the engine with each frame.
type chrome struct {
	channel   string
	unread    int
	elsewhere map[string]int
	newer     int
	end       bool
	pending   int
	threadLen int
}

// watchedHooks trigger a redraw.
var watchedHooks = []feed.HookName{
	feed.HookMessagesDisplayed,
	feed.HookMessageAdded,
	feed.HookMessageRemoved,
	feed.HookMessageConfirmed,
	feed.HookSendPending,
	feed.HookSendRolledBack,
	feed.HookThreadUpdated,
	feed.HookHistoryEnd,
	feed.HookReadStatus,
	feed.HookChannelSwitched,
}

// NewModel attaches a pane to the session's engine.
func NewModel(ctx context.Context, opts Options) (*Model, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("chat: session is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	m := &Model{
		ctx:      ctx,
		session:  opts.Session,
		loop:     opts.Session.Loop(),
		log:      log,
		viewport: viewport.New(0, 0),
		input:    newInputModel(),
		channel:  opts.Channel,
		changes:  make(chan struct{}, 1),
	}

	err := m.loop.Call(ctx, func(e *feed.Engine) {
		loc := opts.Location
		if loc == nil {
			loc = e.Location()
		}
		m.pane = NewPane(e.Timeline, opts.UserID, loc)
		m.threadPane = NewPane(func() *feed.Timeline {
			if tv := e.ThreadView(); tv != nil {
				return tv.Timeline
			}
			return nil
		}, opts.UserID, loc)
		m.pane.userName = opts.UserName
		m.threadPane.userName = opts.UserName
		e.SetViewport(m.pane)
		for _, name := range watchedHooks {
			m.unsub = append(m.unsub, e.Hooks().On(name, m.signal))
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// signal runs on the loop goroutine and must never block.
func (m *Model) signal(feed.HookEvent) {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// Close detaches the pane from the engine.
func (m *Model) Close() {
	for _, unsub := range m.unsub {
		unsub()
	}
	m.unsub = nil
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = m.loop.Call(ctx, func(e *feed.Engine) { e.SetViewport(nil) })
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.startCmd(m.channel), m.waitForChange())
}

// activePane is the pane the viewport shows. Only call from the loop.
func (m *Model) activePane() *Pane {
	if m.threadParent != "" {
		return m.threadPane
	}
	return m.pane
}

// refresh copies a frame and the status chrome out of the engine.
func (m *Model) refresh() {
	var (
		frame Frame
		c     chrome
	)
	err := m.loop.Call(m.ctx, func(e *feed.Engine) {
		frame = m.activePane().Snapshot()
		e.ObserveVisible(frame.Visible)
		c = chrome{
			channel:   e.Channel(),
			unread:    e.UnreadInView(),
			elsewhere: e.UnreadElsewhere(),
			newer:     e.NewerAvailable(),
			end:       e.EndShown(),
			pending:   len(e.Pending()),
		}
		if tv := e.ThreadView(); tv != nil {
			c.threadLen = tv.Timeline.Len()
		}
	})
	if err != nil {
		m.log.Debug("refresh_failed", "error", err)
		return
	}
	m.frame = frame
	m.chrome = c
	m.viewport.SetContent(frame.Content)
	m.viewport.SetYOffset(frame.ScrollTop)
}

// scroll moves the active pane by delta rows and redraws.
func (m *Model) scroll(delta int, toBottom bool) {
	_ = m.loop.Call(m.ctx, func(*feed.Engine) {
		pane := m.activePane()
		if toBottom {
			pane.ScrollToBottom()
			return
		}
		pane.ScrollBy(delta)
	})
	m.refresh()
}

func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.input.SetWidth(m.width - inputPadding)
	lines := m.input.LineCount()
	if lines < 1 {
		lines = 1
	}
	if lines > inputMaxHeight {
		lines = inputMaxHeight
	}
	m.input.SetHeight(lines)

	const statusHeight, marginHeight = 1, 1
	m.viewport.Width = m.width
	m.viewport.Height = m.height - m.input.Height() - statusHeight - marginHeight
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	width, height := m.viewport.Width, m.viewport.Height
	_ = m.loop.Call(m.ctx, func(*feed.Engine) {
		m.pane.Resize(width, height)
		m.threadPane.Resize(width, height)
	})
	m.refresh()
}
