package command

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adamavenir/frayfeed/internal/chat"
	"github.com/adamavenir/frayfeed/internal/notify"
)

// NewChatCmd creates the interactive chat command.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [channel]",
		Short: "Open the interactive feed for a channel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer cctx.Close()

			// The TUI owns the terminal; stderr logging would draw over it.
			if sink := cctx.Config.Log.Sink; sink == "" || sink == "stderr" {
				cctx.Logger = slog.New(slog.DiscardHandler)
			}

			channel, err := cctx.RequireChannel(args)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			f, err := cctx.StartFeed(ctx)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if cctx.Config.Notify.Enabled {
				notifier, err := notify.New(cctx.Config.Notify, cctx.Config.UserName, nil, cctx.Logger)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				defer notifier.Wait()
				defer notifier.Attach(f.Hooks)()
			}

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			if addr := cctx.Config.Metrics.Addr; addr != "" {
				go func() {
					if err := serveMetrics(runCtx, addr, cctx.Metrics.Handler(), cctx.Logger); err != nil {
						cctx.Logger.Warn("metrics_server_failed", "error", err)
					}
				}()
			}
			if src := cctx.PushSource(resync(f.Session, cctx.Logger)); src != nil {
				go func() {
					if err := follow(runCtx, f.Session, src); err != nil {
						cctx.Logger.Error("push_failed", "error", err)
					}
				}()
			}

			err = chat.Run(runCtx, chat.Options{
				Session:  f.Session,
				Channel:  channel,
				UserID:   cctx.Config.UserID,
				UserName: cctx.Config.UserName,
				Logger:   cctx.Logger,
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}
	return cmd
}
