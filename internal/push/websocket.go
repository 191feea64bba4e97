package push

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/adamavenir/frayfeed/internal/types"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// WebSocketSource reads envelopes from a websocket endpoint, reconnecting
// with exponential backoff whenever the connection drops.
type WebSocketSource struct {
	URL            string
	Token          string
	ReconnectDelay time.Duration
	MaxDelay       time.Duration
	Dialer         *websocket.Dialer
	Logger         *slog.Logger

	// OnConnect, if set, runs after every successful dial. Callers use it to
	// refetch state missed while disconnected.
	OnConnect func(ctx context.Context)
}

// Run dials and pumps events until ctx is done.
func (s *WebSocketSource) Run(ctx context.Context, out chan<- types.PushEvent) error {
	log := s.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	dialer := s.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}

	policy := backoff.NewExponentialBackOff()
	if s.ReconnectDelay > 0 {
		policy.InitialInterval = s.ReconnectDelay
	}
	if s.MaxDelay > 0 {
		policy.MaxInterval = s.MaxDelay
	}

	header := http.Header{}
	if s.Token != "" {
		header.Set("Authorization", "Bearer "+s.Token)
	}

	for {
		conn, _, err := dialer.DialContext(ctx, s.URL, header)
		if err == nil {
			policy.Reset()
			log.Info("push_connected", "url", s.URL)
			if s.OnConnect != nil {
				s.OnConnect(ctx)
			}
			err = s.pump(ctx, conn, out, log)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			wait = policy.MaxInterval
		}
		log.Warn("push_disconnected", "url", s.URL, "error", err, "retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *WebSocketSource) pump(ctx context.Context, conn *websocket.Conn, out chan<- types.PushEvent, log *slog.Logger) error {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("connection closed by server")
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		ev, err := Decode(data)
		if err != nil {
			log.Debug("push_event_skipped", "error", err)
			continue
		}
		if !send(ctx, out, ev) {
			return ctx.Err()
		}
	}
}
