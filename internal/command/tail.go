package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamavenir/frayfeed/internal/feed"
	"github.com/adamavenir/frayfeed/internal/notify"
	"github.com/adamavenir/frayfeed/internal/types"
)

// NewTailCmd creates the headless follow command.
func NewTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail [channel]",
		Short: "Print a channel's newest page, then follow live events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cctx.Close()

			if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
				cctx.Config.Metrics.Addr = addr
			}
			channel, err := cctx.RequireChannel(args)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			f, err := cctx.StartFeed(ctx)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			printer := &feedPrinter{out: cmd.OutOrStdout(), json: cctx.JSONMode, loc: time.Local}
			defer printer.attach(f.Hooks)()

			if cctx.Config.Notify.Enabled {
				notifier, err := notify.New(cctx.Config.Notify, cctx.Config.UserName, nil, cctx.Logger)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				defer notifier.Wait()
				defer notifier.Attach(f.Hooks)()
			}

			if _, err := f.Session.Start(ctx, channel); err != nil {
				return writeCommandError(cmd, err)
			}
			var initial []types.MessageRecord
			_ = f.Loop.Call(ctx, func(e *feed.Engine) {
				for _, item := range e.Timeline().Items() {
					initial = append(initial, item.Record)
				}
			})
			for _, rec := range initial {
				printer.message(rec)
			}
			printer.live()

			src := cctx.PushSource(resync(f.Session, cctx.Logger))
			if src == nil && cctx.Config.Metrics.Addr == "" {
				return writeCommandError(cmd, fmt.Errorf("no push source configured; set push.url or push.file"))
			}

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			errCh := make(chan error, 2)
			if addr := cctx.Config.Metrics.Addr; addr != "" {
				go func() { errCh <- serveMetrics(runCtx, addr, cctx.Metrics.Handler(), cctx.Logger) }()
			}
			if src != nil {
				go func() { errCh <- follow(runCtx, f.Session, src) }()
			}

			select {
			case <-ctx.Done():
				return nil
			case err := <-errCh:
				if err != nil {
					return writeCommandError(cmd, err)
				}
				<-ctx.Done()
				return nil
			}
		},
	}
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

// feedPrinter writes feed hooks as lines. Hooks fire on the loop goroutine;
// the mutex guards against the initial page being printed concurrently.
type feedPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	json   bool
	loc    *time.Location
	isLive bool
}

func (p *feedPrinter) attach(hooks *feed.Hooks) func() {
	unsubs := []func(){
		hooks.On(feed.HookMessageAdded, func(ev feed.HookEvent) {
			if ev.Message != nil {
				p.liveMessage(*ev.Message)
			}
		}),
		hooks.On(feed.HookMessageRemoved, func(ev feed.HookEvent) {
			p.event("deleted", ev.MessageID)
		}),
		hooks.On(feed.HookHistoryEnd, func(ev feed.HookEvent) {
			p.event("history_end", ev.ChannelID)
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (p *feedPrinter) live() {
	p.mu.Lock()
	p.isLive = true
	p.mu.Unlock()
}

// liveMessage prints hook-delivered messages once the initial page is out.
func (p *feedPrinter) liveMessage(rec types.MessageRecord) {
	p.mu.Lock()
	live := p.isLive
	p.mu.Unlock()
	if live {
		p.message(rec)
	}
}

func (p *feedPrinter) message(rec types.MessageRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		_ = printJSON(p.out, rec)
		return
	}
	fmt.Fprintln(p.out, formatMessage(rec, p.loc))
}

func (p *feedPrinter) event(kind, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isLive {
		return
	}
	if p.json {
		_ = printJSON(p.out, map[string]string{"event": kind, "id": id})
		return
	}
	fmt.Fprintf(p.out, "-- %s %s\n", kind, id)
}
