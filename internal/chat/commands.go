package chat

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/adamavenir/frayfeed/internal/feed"
)

var (
	errAmbiguousID = errors.New("id prefix matches more than one message")
	errUnknownID   = errors.New("no displayed message matches that id")
)

const helpText = "/channel <name> · /thread #id · /close · /rm #id · /read #id · /unread #id · /threads · /quit"

func (m *Model) handleSlashCommand(input string) (bool, tea.Cmd) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return false, nil
	}
	cmd, err := m.runSlashCommand(trimmed)
	if err != nil {
		m.status = err.Error()
		return true, nil
	}
	m.input.Reset()
	m.resize()
	return true, cmd
}

func (m *Model) runSlashCommand(input string) (tea.Cmd, error) {
	name, args := splitCommand(input)
	switch name {
	case "/quit", "/exit", "/q":
		return tea.Quit, nil
	case "/help", "/?":
		m.status = helpText
		return nil, nil
	case "/channel", "/ch", "/join":
		channel, err := parseChannelArg(args)
		if err != nil {
			return nil, err
		}
		m.threadParent = ""
		m.status = "loading #" + channel + "…"
		return m.startCmd(channel), nil
	case "/thread", "/t":
		id, err := m.resolveArg(args)
		if err != nil {
			return nil, err
		}
		return m.openThreadCmd(id), nil
	case "/close":
		if m.threadParent == "" {
			return nil, errors.New("no thread is open")
		}
		m.status = ""
		return m.closeThreadCmd(), nil
	case "/rm", "/delete":
		id, err := m.resolveArg(args)
		if err != nil {
			return nil, err
		}
		return m.deleteCmd(id), nil
	case "/read":
		return m.readCommand(args, true)
	case "/unread", "/reset":
		return m.readCommand(args, false)
	case "/threads":
		return m.refreshThreadsCmd(), nil
	}
	return nil, fmt.Errorf("unknown command %s (try /help)", name)
}

func splitCommand(input string) (string, []string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func parseChannelArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: /channel <name>")
	}
	channel := strings.TrimPrefix(args[0], "#")
	if channel == "" {
		return "", errors.New("usage: /channel <name>")
	}
	return channel, nil
}

// parseIDArg strips the "#" a clicked or copied id carries.
func parseIDArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expected exactly one message id")
	}
	id := strings.TrimPrefix(strings.TrimSpace(args[0]), "#")
	if id == "" {
		return "", errors.New("expected exactly one message id")
	}
	return id, nil
}

func (m *Model) resolveArg(args []string) (string, error) {
	prefix, err := parseIDArg(args)
	if err != nil {
		return "", err
	}
	var (
		id     string
		resErr error
	)
	if err := m.loop.Call(m.ctx, func(e *feed.Engine) {
		timelines := []*feed.Timeline{e.Timeline()}
		if tv := e.ThreadView(); tv != nil {
			timelines = append(timelines, tv.Timeline)
		}
		id, resErr = resolveID(prefix, timelines...)
	}); err != nil {
		return "", err
	}
	return id, resErr
}

// resolveID finds the displayed message whose id equals or starts with prefix.
func resolveID(prefix string, timelines ...*feed.Timeline) (string, error) {
	var match string
	for _, tl := range timelines {
		if tl == nil {
			continue
		}
		if _, ok := tl.Get(prefix); ok {
			return prefix, nil
		}
		for _, id := range tl.IDs() {
			if !strings.HasPrefix(id, prefix) || id == match {
				continue
			}
			if match != "" {
				return "", errAmbiguousID
			}
			match = id
		}
	}
	if match == "" {
		return "", errUnknownID
	}
	return match, nil
}

func (m *Model) readCommand(args []string, read bool) (tea.Cmd, error) {
	id, err := m.resolveArg(args)
	if err != nil {
		return nil, err
	}
	isThread := m.threadParent != ""
	var changed bool
	if err := m.loop.Call(m.ctx, func(e *feed.Engine) {
		if read {
			changed = e.MarkFullyRead(id, isThread)
		} else {
			changed = e.ResetReadStatus(id, isThread)
		}
	}); err != nil {
		return nil, err
	}
	switch {
	case !changed:
		m.status = id + " unchanged"
	case read:
		m.status = "marked " + id + " read"
	default:
		m.status = "marked " + id + " unread"
	}
	m.refresh()
	return nil, nil
}

func (m *Model) refreshThreadsCmd() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		var parents []string
		if err := session.Loop().Call(ctx, func(e *feed.Engine) {
			for _, item := range e.Timeline().Items() {
				if item.Thread != nil || item.Record.ThreadCount > 0 {
					parents = append(parents, item.ID())
				}
			}
		}); err != nil {
			return statusMsg(err.Error())
		}
		applied, err := session.RefreshThreads(ctx, parents)
		if err != nil {
			return statusMsg("thread refresh: " + err.Error())
		}
		return statusMsg(fmt.Sprintf("refreshed %d %s", applied, plural(applied, "thread", "threads")))
	}
}
