// Package notify raises desktop notifications for new feed messages.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/gobwas/glob"

	"github.com/adamavenir/frayfeed/internal/core"
	"github.com/adamavenir/frayfeed/internal/feed"
	"github.com/adamavenir/frayfeed/internal/types"
)

// SendFunc delivers one notification.
type SendFunc func(title, body string) error

// Notifier listens for message_added hooks and raises notifications for
// messages from other people, unless their channel or author is muted.
type Notifier struct {
	userName     string
	mentionsOnly bool
	mute         []glob.Glob
	send         SendFunc
	log          *slog.Logger
	wg           sync.WaitGroup
}

// New compiles cfg's mute patterns. A nil send uses beeep.
func New(cfg core.NotifyConfig, userName string, send SendFunc, log *slog.Logger) (*Notifier, error) {
	if send == nil {
		send = func(title, body string) error { return beeep.Notify(title, body, "") }
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	n := &Notifier{userName: userName, mentionsOnly: cfg.MentionsOnly, send: send, log: log}
	for _, pattern := range cfg.Mute {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("mute pattern %q: %w", pattern, err)
		}
		n.mute = append(n.mute, g)
	}
	return n, nil
}

// Attach subscribes to hooks and returns the unsubscribe function.
func (n *Notifier) Attach(hooks *feed.Hooks) func() {
	return hooks.On(feed.HookMessageAdded, func(ev feed.HookEvent) {
		if ev.Message == nil || !n.ShouldNotify(*ev.Message, ev.Self) {
			return
		}
		title, body := Format(*ev.Message)
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.send(title, body); err != nil {
				n.log.Debug("notify_failed", "id", ev.MessageID, "error", err)
			}
		}()
	})
}

// Wait blocks until queued notifications have been delivered.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// ShouldNotify applies the self, mute and mention filters to msg.
func (n *Notifier) ShouldNotify(msg types.MessageRecord, self bool) bool {
	if self || core.IsTempID(msg.ID) {
		return false
	}
	if n.Muted(msg.ChannelID) || n.Muted(msg.AuthorName) || n.Muted(msg.AuthorID) {
		return false
	}
	if n.mentionsOnly {
		return core.Mentions(msg.Content, n.userName)
	}
	return true
}

// Muted reports whether name matches any mute pattern.
func (n *Notifier) Muted(name string) bool {
	if name == "" {
		return false
	}
	for _, g := range n.mute {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Format builds the notification title and body for msg.
func Format(msg types.MessageRecord) (string, string) {
	author := msg.AuthorName
	if author == "" {
		author = msg.AuthorID
	}
	title := "@" + author
	if msg.ChannelID != "" {
		title = "#" + msg.ChannelID + " · " + title
	}
	return title, truncate(msg.Content, 100)
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
