package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamavenir/frayfeed/internal/backend"
	"github.com/adamavenir/frayfeed/internal/core"
	"github.com/adamavenir/frayfeed/internal/db"
	"github.com/adamavenir/frayfeed/internal/feed"
	"github.com/adamavenir/frayfeed/internal/logging"
	"github.com/adamavenir/frayfeed/internal/metrics"
	"github.com/adamavenir/frayfeed/internal/push"
)

var errNoChannel = errors.New("no channel given; pass --in or set channel in the config")

// CommandContext provides shared command resources. Fields are nil until
// the With* method that builds them has run.
type CommandContext struct {
	Config   core.Config
	JSONMode bool
	Channel  string
	Logger   *slog.Logger
	Client   *backend.Client
	Store    db.Store
	Metrics  *metrics.Recorder

	closers []io.Closer
}

// GetContext loads configuration and logging for a command.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	configPath, _ := cmd.Flags().GetString("config")
	jsonMode, _ := cmd.Flags().GetBool("json")
	channel, _ := cmd.Flags().GetString("in")
	level, _ := cmd.Flags().GetString("log-level")

	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	creds, err := backend.LoadCredentials(configDir(configPath))
	if err != nil {
		return nil, err
	}
	backend.ApplyCredentials(&cfg, creds)
	if level != "" {
		cfg.Log.Level = level
	}

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	channel = strings.TrimPrefix(strings.TrimSpace(channel), "#")
	if channel == "" {
		channel = cfg.Channel
	}
	return &CommandContext{
		Config:   cfg,
		JSONMode: jsonMode,
		Channel:  channel,
		Logger:   log,
		closers:  []io.Closer{closer},
	}, nil
}

// configDir is where credentials live: next to the config file.
func configDir(configPath string) string {
	if configPath != "" {
		return filepath.Dir(configPath)
	}
	path, err := core.DefaultConfigPath()
	if err != nil {
		return "."
	}
	return filepath.Dir(path)
}

// WithClient builds the backend client.
func (c *CommandContext) WithClient() error {
	if c.Config.Backend.BaseURL == "" {
		return fmt.Errorf("no backend configured; run '%s login' or set backend.base_url", AppName)
	}
	client, err := backend.NewClientFromConfig(c.Config.Backend, c.Logger)
	if err != nil {
		return err
	}
	c.Client = client
	return nil
}

// WithStore opens the local state store.
func (c *CommandContext) WithStore() error {
	store, err := db.Open(c.Config.Store, c.Config.Feed.RecentlyDeletedLimit)
	if err != nil {
		return err
	}
	c.Store = store
	c.closers = append(c.closers, store)
	return nil
}

// RequireChannel returns the resolved channel or an error.
func (c *CommandContext) RequireChannel(args []string) (string, error) {
	if len(args) > 0 {
		if ch := strings.TrimPrefix(strings.TrimSpace(args[0]), "#"); ch != "" {
			c.Channel = ch
		}
	}
	if c.Channel == "" {
		return "", errNoChannel
	}
	return c.Channel, nil
}

// Feed is a running engine, loop and session.
type Feed struct {
	Engine  *feed.Engine
	Loop    *feed.Loop
	Session *feed.Session
	Hooks   *feed.Hooks
}

// StartFeed wires an engine to the client, store and metrics and starts its
// loop. The loop stops when ctx is cancelled.
func (c *CommandContext) StartFeed(ctx context.Context) (*Feed, error) {
	if c.Client == nil {
		if err := c.WithClient(); err != nil {
			return nil, err
		}
	}
	if c.Store == nil {
		if err := c.WithStore(); err != nil {
			return nil, err
		}
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New()
	}

	opts := feed.OptionsFromConfig(c.Config)
	opts.Logger = c.Logger
	opts.Metrics = c.Metrics
	opts.Store = c.Store
	opts.Hooks = feed.NewHooks()
	engine := feed.NewEngine(opts)

	loop := feed.NewLoop(engine, c.Config.Feed.SweepInterval, c.Logger)
	loop.Start(ctx)
	session := feed.NewSession(loop, c.Client, c.Logger, feed.DefaultTimeouts())
	c.closers = append(c.closers, closerFunc(func() error {
		session.Close()
		loop.Stop()
		return nil
	}))
	return &Feed{Engine: engine, Loop: loop, Session: session, Hooks: opts.Hooks}, nil
}

// PushSource returns the configured push transport, or nil when none is set.
// onConnect runs after every (re)connect of a websocket source.
func (c *CommandContext) PushSource(onConnect func(context.Context)) push.Source {
	switch {
	case c.Config.Push.URL != "":
		return &push.WebSocketSource{
			URL:            c.Config.Push.URL,
			Token:          c.Config.Backend.Token,
			ReconnectDelay: c.Config.Push.ReconnectDelay,
			Logger:         c.Logger,
			OnConnect:      onConnect,
		}
	case c.Config.Push.File != "":
		return &push.FileSource{Path: c.Config.Push.File, Logger: c.Logger}
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (c *CommandContext) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.Logger.Debug("close_failed", "error", err)
		}
	}
	c.closers = nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
