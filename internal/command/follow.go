package command

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adamavenir/frayfeed/internal/feed"
	"github.com/adamavenir/frayfeed/internal/push"
	"github.com/adamavenir/frayfeed/internal/types"
)

const pushBuffer = 64

// follow pumps src into session until ctx ends. It returns the first
// non-cancellation error from either side.
func follow(ctx context.Context, session *feed.Session, src push.Source) error {
	events := make(chan types.PushEvent, pushBuffer)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return src.Run(ctx, events) })
	g.Go(func() error { return session.Consume(ctx, events) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// resync refreshes every displayed thread summary. It runs after each push
// reconnect to pick up replies missed while disconnected.
func resync(session *feed.Session, log *slog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		var parents []string
		if err := session.Loop().Call(ctx, func(e *feed.Engine) {
			for _, item := range e.Timeline().Items() {
				if item.Thread != nil || item.Record.ThreadCount > 0 {
					parents = append(parents, item.ID())
				}
			}
		}); err != nil {
			return
		}
		if n, err := session.RefreshThreads(ctx, parents); err != nil {
			log.Warn("resync_failed", "error", err)
		} else {
			log.Debug("resynced", "threads", n)
		}
	}
}

// serveMetrics serves handler on addr until ctx ends.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info("metrics_listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
